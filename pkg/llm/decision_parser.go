package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"tradearena/pkg/domain"
	"tradearena/pkg/orchestrator"
)

// wireDecision is the exact shape a model's response must decode into:
// { decision: "trade"|"hold", reasoning: string, orders: [...] }.
type wireDecision struct {
	Decision  string      `json:"decision"`
	Reasoning string      `json:"reasoning"`
	Orders    []wireOrder `json:"orders"`
}

type wireOrder struct {
	Action     string      `json:"action"`
	Symbol     string      `json:"symbol"`
	Side       string      `json:"side"`
	Quantity   json.Number `json:"quantity"`
	Leverage   json.Number `json:"leverage"`
	PositionID string      `json:"position_id"`
}

// DecisionParser implements orchestrator.Parser against the decision wire
// format. A missing or wrong-typed field anywhere fails the whole parse with
// orchestrator.ErrInvalidResponse, never a partial order list.
type DecisionParser struct{}

// NewDecisionParser constructs a DecisionParser.
func NewDecisionParser() DecisionParser { return DecisionParser{} }

// Parse implements orchestrator.Parser.
func (DecisionParser) Parse(raw string) (orchestrator.ParsedDecision, error) {
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()

	var w wireDecision
	if err := dec.Decode(&w); err != nil {
		return orchestrator.ParsedDecision{}, orchestrator.ErrInvalidResponse
	}
	if w.Decision != "trade" && w.Decision != "hold" {
		return orchestrator.ParsedDecision{}, orchestrator.ErrInvalidResponse
	}

	orders := make([]domain.Order, 0, len(w.Orders))
	for _, wo := range w.Orders {
		order, err := convertOrder(wo)
		if err != nil {
			return orchestrator.ParsedDecision{}, orchestrator.ErrInvalidResponse
		}
		orders = append(orders, order)
	}

	return orchestrator.ParsedDecision{
		Decision:  w.Decision,
		Reasoning: w.Reasoning,
		Orders:    orders,
	}, nil
}

func convertOrder(wo wireOrder) (domain.Order, error) {
	switch wo.Action {
	case "open":
		if wo.Symbol == "" {
			return domain.Order{}, fmt.Errorf("llm: open order missing symbol")
		}
		side, err := parseSide(wo.Side)
		if err != nil {
			return domain.Order{}, err
		}
		quantity, err := parseDecimal(wo.Quantity)
		if err != nil {
			return domain.Order{}, fmt.Errorf("llm: open order quantity: %w", err)
		}
		leverage, err := parseDecimal(wo.Leverage)
		if err != nil {
			return domain.Order{}, fmt.Errorf("llm: open order leverage: %w", err)
		}
		return domain.Order{
			Action:   domain.ActionOpen,
			Symbol:   wo.Symbol,
			Side:     side,
			Quantity: quantity,
			Leverage: leverage,
		}, nil

	case "close":
		if wo.Symbol == "" {
			return domain.Order{}, fmt.Errorf("llm: close order missing symbol")
		}
		order := domain.Order{
			Action:           domain.ActionClose,
			Symbol:           wo.Symbol,
			TargetPositionID: wo.PositionID,
		}
		// side/quantity are optional on close: the engine derives both from
		// the referenced position when omitted.
		if wo.Side != "" {
			side, err := parseSide(wo.Side)
			if err != nil {
				return domain.Order{}, err
			}
			order.Side = side
		}
		if wo.Quantity != "" {
			quantity, err := parseDecimal(wo.Quantity)
			if err != nil {
				return domain.Order{}, fmt.Errorf("llm: close order quantity: %w", err)
			}
			order.Quantity = quantity
		}
		return order, nil

	default:
		return domain.Order{}, fmt.Errorf("llm: unknown order action %q", wo.Action)
	}
}

func parseSide(raw string) (domain.Side, error) {
	switch raw {
	case "buy":
		return domain.SideLong, nil
	case "sell":
		return domain.SideShort, nil
	default:
		return "", fmt.Errorf("llm: unknown order side %q", raw)
	}
}

func parseDecimal(n json.Number) (decimal.Decimal, error) {
	if n == "" {
		return decimal.Decimal{}, fmt.Errorf("llm: missing numeric value")
	}
	return decimal.NewFromString(n.String())
}
