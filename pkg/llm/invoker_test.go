package llm

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/openai/openai-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradearena/pkg/orchestrator"
)

type fakeLLMClient struct {
	resp *ChatResponse
	err  error
	req  *ChatRequest
}

func (f *fakeLLMClient) Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	f.req = req
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}
func (f *fakeLLMClient) ChatStream(ctx context.Context, req *ChatRequest) (<-chan StreamResponse, error) {
	return nil, errors.New("not implemented")
}
func (f *fakeLLMClient) ChatStructured(ctx context.Context, req *ChatRequest, target interface{}) (interface{}, error) {
	return nil, errors.New("not implemented")
}
func (f *fakeLLMClient) GetConfig() *Config { return nil }
func (f *fakeLLMClient) Close() error       { return nil }

func TestInvokeReturnsResponseTextAndUsage(t *testing.T) {
	client := &fakeLLMClient{resp: &ChatResponse{
		Choices: []Choice{{Message: Message{Content: `{"decision":"hold"}`}}},
		Usage:   Usage{PromptTokens: 120, CompletionTokens: 40},
	}}
	inv := NewInvoker(map[string]LLMClient{"openai-compatible": client})

	result, err := inv.Invoke(context.Background(), "openai-compatible", "gpt-5", nil, "prompt text", time.Now().Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, `{"decision":"hold"}`, result.ResponseText)
	require.NotNil(t, result.PromptTokens)
	assert.Equal(t, 120, *result.PromptTokens)
	require.NotNil(t, result.ResponseTokens)
	assert.Equal(t, 40, *result.ResponseTokens)
	assert.Equal(t, "prompt text", client.req.Messages[0].Content)
}

func TestInvokeUnknownProviderIsTerminal(t *testing.T) {
	inv := NewInvoker(map[string]LLMClient{})

	_, err := inv.Invoke(context.Background(), "missing", "gpt-5", nil, "prompt", time.Now().Add(time.Minute))
	require.Error(t, err)
	var terr *orchestrator.TransportError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, orchestrator.TransportAuth, terr.Kind)
}

func TestInvokeAppliesConfigBlobOverrides(t *testing.T) {
	client := &fakeLLMClient{resp: &ChatResponse{Choices: []Choice{{Message: Message{Content: "ok"}}}}}
	inv := NewInvoker(map[string]LLMClient{"openai-compatible": client})

	_, err := inv.Invoke(context.Background(), "openai-compatible", "gpt-5",
		map[string]any{"temperature": 0.2, "max_tokens": float64(512)},
		"prompt", time.Now().Add(time.Minute))
	require.NoError(t, err)
	require.NotNil(t, client.req.Temperature)
	assert.InDelta(t, 0.2, *client.req.Temperature, 0.0001)
	require.NotNil(t, client.req.MaxTokens)
	assert.Equal(t, 512, *client.req.MaxTokens)
}

func TestInvokeClassifiesDeadlineExceededAsTimeout(t *testing.T) {
	client := &fakeLLMClient{err: context.DeadlineExceeded}
	inv := NewInvoker(map[string]LLMClient{"openai-compatible": client})

	_, err := inv.Invoke(context.Background(), "openai-compatible", "gpt-5", nil, "prompt", time.Now().Add(time.Minute))
	var terr *orchestrator.TransportError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, orchestrator.TransportTimeout, terr.Kind)
}

func TestInvokeClassifiesAPIErrorsByStatusCode(t *testing.T) {
	cases := []struct {
		name   string
		status int
		want   orchestrator.TransportErrorKind
	}{
		{"unauthorized", 401, orchestrator.TransportAuth},
		{"forbidden", 403, orchestrator.TransportAuth},
		{"rate_limited", 429, orchestrator.TransportTransient},
		{"bad_gateway", 502, orchestrator.TransportTransient},
		{"bad_request", 400, orchestrator.TransportAuth},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			client := &fakeLLMClient{err: &openai.Error{StatusCode: tc.status}}
			inv := NewInvoker(map[string]LLMClient{"openai-compatible": client})

			_, err := inv.Invoke(context.Background(), "openai-compatible", "gpt-5", nil, "prompt", time.Now().Add(time.Minute))
			var terr *orchestrator.TransportError
			require.ErrorAs(t, err, &terr)
			assert.Equal(t, tc.want, terr.Kind)
		})
	}
}

func TestInvokeClassifiesNetOpErrorAsTransient(t *testing.T) {
	client := &fakeLLMClient{err: &net.OpError{Op: "dial", Err: errors.New("connection refused")}}
	inv := NewInvoker(map[string]LLMClient{"openai-compatible": client})

	_, err := inv.Invoke(context.Background(), "openai-compatible", "gpt-5", nil, "prompt", time.Now().Add(time.Minute))
	var terr *orchestrator.TransportError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, orchestrator.TransportTransient, terr.Kind)
}
