package llm

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradearena/pkg/domain"
	"tradearena/pkg/orchestrator"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func TestParseHoldDecision(t *testing.T) {
	p := NewDecisionParser()
	out, err := p.Parse(`{"decision":"hold","reasoning":"nothing looks good","orders":[]}`)
	require.NoError(t, err)
	assert.Equal(t, "hold", out.Decision)
	assert.Equal(t, "nothing looks good", out.Reasoning)
	assert.Empty(t, out.Orders)
}

func TestParseOpenOrder(t *testing.T) {
	p := NewDecisionParser()
	out, err := p.Parse(`{
		"decision": "trade",
		"reasoning": "momentum long",
		"orders": [
			{"action": "open", "symbol": "BTC-USD", "side": "buy", "quantity": 0.01, "leverage": 3}
		]
	}`)
	require.NoError(t, err)
	require.Len(t, out.Orders, 1)
	order := out.Orders[0]
	assert.Equal(t, domain.ActionOpen, order.Action)
	assert.Equal(t, "BTC-USD", order.Symbol)
	assert.Equal(t, domain.SideLong, order.Side)
	assert.True(t, d("0.01").Equal(order.Quantity))
	assert.True(t, d("3").Equal(order.Leverage))
}

func TestParseCloseOrderByPositionIDOmitsSideAndQuantity(t *testing.T) {
	p := NewDecisionParser()
	out, err := p.Parse(`{
		"decision": "trade",
		"reasoning": "take profit",
		"orders": [
			{"action": "close", "symbol": "ETH-USD", "position_id": "pos-1"}
		]
	}`)
	require.NoError(t, err)
	require.Len(t, out.Orders, 1)
	order := out.Orders[0]
	assert.Equal(t, domain.ActionClose, order.Action)
	assert.Equal(t, "pos-1", order.TargetPositionID)
	assert.True(t, order.Quantity.IsZero())
}

func TestParseSellSideMapsToShort(t *testing.T) {
	p := NewDecisionParser()
	out, err := p.Parse(`{"decision":"trade","reasoning":"r","orders":[
		{"action":"open","symbol":"BTC-USD","side":"sell","quantity":1,"leverage":1}
	]}`)
	require.NoError(t, err)
	assert.Equal(t, domain.SideShort, out.Orders[0].Side)
}

func TestParseRejectsMissingDecisionField(t *testing.T) {
	p := NewDecisionParser()
	_, err := p.Parse(`{"reasoning":"r","orders":[]}`)
	assert.ErrorIs(t, err, orchestrator.ErrInvalidResponse)
}

func TestParseRejectsUnknownDecisionValue(t *testing.T) {
	p := NewDecisionParser()
	_, err := p.Parse(`{"decision":"maybe","reasoning":"r","orders":[]}`)
	assert.ErrorIs(t, err, orchestrator.ErrInvalidResponse)
}

func TestParseRejectsMalformedJSON(t *testing.T) {
	p := NewDecisionParser()
	_, err := p.Parse(`not json at all`)
	assert.ErrorIs(t, err, orchestrator.ErrInvalidResponse)
}

func TestParseRejectsOpenOrderMissingLeverage(t *testing.T) {
	p := NewDecisionParser()
	_, err := p.Parse(`{"decision":"trade","reasoning":"r","orders":[
		{"action":"open","symbol":"BTC-USD","side":"buy","quantity":1}
	]}`)
	assert.ErrorIs(t, err, orchestrator.ErrInvalidResponse)
}

func TestParseRejectsUnknownOrderAction(t *testing.T) {
	p := NewDecisionParser()
	_, err := p.Parse(`{"decision":"trade","reasoning":"r","orders":[
		{"action":"cancel","symbol":"BTC-USD"}
	]}`)
	assert.ErrorIs(t, err, orchestrator.ErrInvalidResponse)
}
