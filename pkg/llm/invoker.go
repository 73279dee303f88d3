package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/openai/openai-go"

	"tradearena/pkg/orchestrator"
)

// Invoker adapts a registry of per-provider LLMClients to the
// orchestrator.ModelInvoker capability interface (spec §6, §9
// "Polymorphism over providers": one shape per provider, one registry
// entry per variant).
type Invoker struct {
	clients map[string]LLMClient
}

// NewInvoker constructs an Invoker from a provider-tag → client registry.
func NewInvoker(clients map[string]LLMClient) *Invoker {
	return &Invoker{clients: clients}
}

// Invoke implements orchestrator.ModelInvoker.
func (i *Invoker) Invoke(ctx context.Context, providerTag, modelID string, configBlob map[string]any, promptText string, deadline time.Time) (orchestrator.InvocationResult, error) {
	client, ok := i.clients[providerTag]
	if !ok {
		return orchestrator.InvocationResult{}, &orchestrator.TransportError{
			Kind: orchestrator.TransportAuth,
			Err:  fmt.Errorf("llm: unknown provider tag %q", providerTag),
		}
	}

	callCtx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	req := &ChatRequest{
		Model:    modelID,
		Messages: []Message{{Role: "user", Content: promptText}},
	}
	applyConfigBlob(req, configBlob)

	resp, err := client.Chat(callCtx, req)
	if err != nil {
		return orchestrator.InvocationResult{}, classifyTransportError(err)
	}

	var responseText string
	if len(resp.Choices) > 0 {
		responseText = resp.Choices[0].Message.Content
	}
	promptTokens := resp.Usage.PromptTokens
	responseTokens := resp.Usage.CompletionTokens

	return orchestrator.InvocationResult{
		ResponseText:   responseText,
		PromptTokens:   &promptTokens,
		ResponseTokens: &responseTokens,
	}, nil
}

// applyConfigBlob reads the small set of per-participant overrides agents
// are allowed to configure; unknown keys are ignored.
func applyConfigBlob(req *ChatRequest, blob map[string]any) {
	if blob == nil {
		return
	}
	if temp, ok := blob["temperature"].(float64); ok {
		req.Temperature = &temp
	}
	if maxTokens, ok := blob["max_tokens"].(float64); ok {
		n := int(maxTokens)
		req.MaxTokens = &n
	}
}

// classifyTransportError maps a Chat error onto the transport taxonomy of
// timeout/auth/transient/cancelled, mirroring retry.go's shouldRetry
// classification. A 4xx the API layer won't retry is surfaced as auth so it
// stays terminal; network-level errors are treated as transient.
func classifyTransportError(err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &orchestrator.TransportError{Kind: orchestrator.TransportTimeout, Err: err}
	case errors.Is(err, context.Canceled):
		return &orchestrator.TransportError{Kind: orchestrator.TransportCancelled, Err: err}
	}

	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return &orchestrator.TransportError{Kind: orchestrator.TransportAuth, Err: err}
		case http.StatusTooManyRequests, http.StatusRequestTimeout, http.StatusInternalServerError,
			http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return &orchestrator.TransportError{Kind: orchestrator.TransportTransient, Err: err}
		default:
			return &orchestrator.TransportError{Kind: orchestrator.TransportAuth, Err: err}
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Temporary() {
		return &orchestrator.TransportError{Kind: orchestrator.TransportTransient, Err: err}
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return &orchestrator.TransportError{Kind: orchestrator.TransportTransient, Err: err}
	}

	return &orchestrator.TransportError{Kind: orchestrator.TransportTransient, Err: err}
}
