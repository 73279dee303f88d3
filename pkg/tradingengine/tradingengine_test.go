package tradingengine

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradearena/pkg/cfd"
	"tradearena/pkg/domain"
	"tradearena/pkg/portfolio"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

var now = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

type fakeCompetitions struct {
	byID map[string]*domain.Competition
}

func (f *fakeCompetitions) Competition(id string) (*domain.Competition, error) {
	c, ok := f.byID[id]
	if !ok {
		return nil, assert.AnError
	}
	return c, nil
}

type fakeParticipants struct {
	byID map[string]*domain.Participant
}

func (f *fakeParticipants) Participant(id string) (*domain.Participant, error) {
	p, ok := f.byID[id]
	if !ok {
		return nil, assert.AnError
	}
	return p, nil
}

func (f *fakeParticipants) SaveParticipant(p *domain.Participant) error {
	f.byID[p.ID] = p
	return nil
}

type fakePrices struct {
	byQuote map[string]decimal.Decimal
}

func (f *fakePrices) LatestPrice(symbol string) (decimal.Decimal, bool) {
	p, ok := f.byQuote[symbol]
	return p, ok
}

func newFixture(t *testing.T) (*Engine, *fakeCompetitions, *fakeParticipants, *fakePrices, *portfolio.Manager) {
	t.Helper()
	competition := &domain.Competition{
		ID:                   "comp1",
		Status:               domain.CompetitionActive,
		StartAt:              now.Add(-time.Hour),
		EndAt:                now.Add(time.Hour),
		MaxLeverage:          d("10"),
		MaxPositionSizePct:   d("50"),
		MaintenanceMarginPct: d("50"),
		AllowedInstruments:   map[string]struct{}{"BTC-USD": {}, "ETH-USD": {}},
	}
	participant := &domain.Participant{
		ID:            "alice",
		CompetitionID: "comp1",
		Status:        domain.ParticipantActive,
	}
	comps := &fakeCompetitions{byID: map[string]*domain.Competition{"comp1": competition}}
	parts := &fakeParticipants{byID: map[string]*domain.Participant{"alice": participant}}
	prices := &fakePrices{byQuote: map[string]decimal.Decimal{"BTC-USD": d("50000"), "ETH-USD": d("100")}}
	pm := portfolio.NewManager()
	pm.Register(&domain.Portfolio{ID: "pf1", ParticipantID: "alice", Cash: d("10000")})

	engine := New(comps, parts, prices, pm, nil)
	return engine, comps, parts, prices, pm
}

func TestExecuteOpenThenCloseAtProfit(t *testing.T) {
	engine, _, _, prices, pm := newFixture(t)

	openOrder := &domain.Order{ID: "o1", ParticipantID: "alice", Action: domain.ActionOpen, Symbol: "BTC-USD", Side: domain.SideLong, Quantity: d("0.01"), Leverage: d("2")}
	result, trade, err := engine.Execute(openOrder, now, false)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderExecuted, result.Status)
	require.NotNil(t, trade)
	assert.Equal(t, domain.ActionOpen, trade.Action)
	assert.False(t, trade.RealizedPnL.Valid)

	snap, err := pm.Snapshot("alice", d("50"))
	require.NoError(t, err)
	assert.True(t, snap.Portfolio.ReservedMargin.Equal(d("250")), "got %s", snap.Portfolio.ReservedMargin)
	assert.True(t, snap.Equity.Equal(d("10000")))
	assert.True(t, snap.AvailableMargin.Equal(d("9750")))

	prices.byQuote["BTC-USD"] = d("55000")
	posID := openOrder.TargetPositionID
	closeOrder := &domain.Order{ID: "o2", ParticipantID: "alice", Action: domain.ActionClose, Symbol: "BTC-USD", TargetPositionID: posID}
	result, closeTrade, err := engine.Execute(closeOrder, now.Add(time.Hour), false)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderExecuted, result.Status)
	require.NotNil(t, closeTrade)
	assert.True(t, closeTrade.RealizedPnL.Decimal.Equal(d("50")))

	snap, err = pm.Snapshot("alice", d("50"))
	require.NoError(t, err)
	assert.True(t, snap.Portfolio.Cash.Equal(d("10050")))
	assert.True(t, snap.Portfolio.ReservedMargin.IsZero())
	assert.Empty(t, snap.Portfolio.Positions)
}

func TestRejectParticipantInactive(t *testing.T) {
	engine, _, parts, _, _ := newFixture(t)
	parts.byID["alice"].Status = domain.ParticipantLiquidated

	order := &domain.Order{ID: "o1", ParticipantID: "alice", Action: domain.ActionOpen, Symbol: "BTC-USD", Side: domain.SideLong, Quantity: d("0.01"), Leverage: d("2")}
	result, trade, err := engine.Execute(order, now, false)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderRejected, result.Status)
	assert.Equal(t, domain.ReasonParticipantInactive, result.RejectReason)
	assert.Nil(t, trade)
}

func TestRejectInstrumentDisallowed(t *testing.T) {
	engine, _, _, _, _ := newFixture(t)
	order := &domain.Order{ID: "o1", ParticipantID: "alice", Action: domain.ActionOpen, Symbol: "DOGE-USD", Side: domain.SideLong, Quantity: d("1"), Leverage: d("2")}
	result, _, err := engine.Execute(order, now, false)
	require.NoError(t, err)
	assert.Equal(t, domain.ReasonInstrumentDisallow, result.RejectReason)
}

func TestRejectLeverageOutOfBounds(t *testing.T) {
	engine, _, _, _, _ := newFixture(t)
	order := &domain.Order{ID: "o1", ParticipantID: "alice", Action: domain.ActionOpen, Symbol: "BTC-USD", Side: domain.SideLong, Quantity: d("0.01"), Leverage: d("11")}
	result, _, err := engine.Execute(order, now, false)
	require.NoError(t, err)
	assert.Equal(t, domain.ReasonLeverageOutOfBounds, result.RejectReason)
}

func TestRejectQuantityNonPositive(t *testing.T) {
	engine, _, _, _, _ := newFixture(t)
	order := &domain.Order{ID: "o1", ParticipantID: "alice", Action: domain.ActionOpen, Symbol: "BTC-USD", Side: domain.SideLong, Quantity: d("0"), Leverage: d("2")}
	result, _, err := engine.Execute(order, now, false)
	require.NoError(t, err)
	assert.Equal(t, domain.ReasonQuantityNonPositive, result.RejectReason)
}

// Scenario 2 from spec §8: size-cap rejection is independent of leverage.
func TestRejectSizeCapExceededIndependentOfLeverage(t *testing.T) {
	engine, _, _, prices, _ := newFixture(t)
	prices.byQuote["BTC-USD"] = d("100000")

	for _, lev := range []string{"5", "1"} {
		order := &domain.Order{ID: "o1", ParticipantID: "alice", Action: domain.ActionOpen, Symbol: "BTC-USD", Side: domain.SideLong, Quantity: d("0.11"), Leverage: d(lev)}
		result, _, err := engine.Execute(order, now, false)
		require.NoError(t, err)
		assert.Equal(t, domain.ReasonSizeCapExceeded, result.RejectReason, "leverage %s", lev)
	}
}

// Scenario 3 from spec §8: insufficient margin.
func TestRejectInsufficientMargin(t *testing.T) {
	engine, _, _, _, pm := newFixture(t)
	require.NoError(t, pm.Apply("alice", cfd.Delta{ReservedMarginDelta: d("9500")}))

	order := &domain.Order{ID: "o1", ParticipantID: "alice", Action: domain.ActionOpen, Symbol: "BTC-USD", Side: domain.SideLong, Quantity: d("0.012"), Leverage: d("1")}
	result, _, err := engine.Execute(order, now, false)
	require.NoError(t, err)
	assert.Equal(t, domain.ReasonInsufficientMargin, result.RejectReason)
}

func TestRejectPriceUnavailable(t *testing.T) {
	engine, _, _, prices, _ := newFixture(t)
	delete(prices.byQuote, "BTC-USD")

	order := &domain.Order{ID: "o1", ParticipantID: "alice", Action: domain.ActionOpen, Symbol: "BTC-USD", Side: domain.SideLong, Quantity: d("0.01"), Leverage: d("2")}
	result, _, err := engine.Execute(order, now, false)
	require.NoError(t, err)
	assert.Equal(t, domain.ReasonPriceUnavailable, result.RejectReason)
}

func TestRejectPositionNotOwnedOnClose(t *testing.T) {
	engine, _, _, _, _ := newFixture(t)
	order := &domain.Order{ID: "o1", ParticipantID: "alice", Action: domain.ActionClose, Symbol: "BTC-USD", TargetPositionID: "nonexistent"}
	result, _, err := engine.Execute(order, now, false)
	require.NoError(t, err)
	assert.Equal(t, domain.ReasonPositionNotOwned, result.RejectReason)
}

// Scenario 5 from spec §8: close by position_id with omitted side/quantity
// derives them from the referenced position.
func TestCloseDerivesSideAndQuantityFromPosition(t *testing.T) {
	engine, _, _, _, _ := newFixture(t)
	openOrder := &domain.Order{ID: "o1", ParticipantID: "alice", Action: domain.ActionOpen, Symbol: "ETH-USD", Side: domain.SideShort, Quantity: d("1"), Leverage: d("1")}
	_, _, err := engine.Execute(openOrder, now, false)
	require.NoError(t, err)

	closeOrder := &domain.Order{ID: "o2", ParticipantID: "alice", Action: domain.ActionClose, Symbol: "ETH-USD", TargetPositionID: openOrder.TargetPositionID}
	result, trade, err := engine.Execute(closeOrder, now, false)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderExecuted, result.Status)
	assert.Equal(t, domain.SideShort, closeOrder.Side)
	assert.True(t, closeOrder.Quantity.Equal(d("1")))
	assert.True(t, trade.Quantity.Equal(d("1")))
}

func TestBypassLifecycleChecksForLiquidation(t *testing.T) {
	engine, _, parts, _, _ := newFixture(t)
	openOrder := &domain.Order{ID: "o1", ParticipantID: "alice", Action: domain.ActionOpen, Symbol: "BTC-USD", Side: domain.SideLong, Quantity: d("0.01"), Leverage: d("2")}
	_, _, err := engine.Execute(openOrder, now, false)
	require.NoError(t, err)

	// Simulate liquidation: participant goes inactive, but a forced close
	// must still be allowed through.
	parts.byID["alice"].Status = domain.ParticipantLiquidated
	closeOrder := &domain.Order{ID: "o2", ParticipantID: "alice", Action: domain.ActionClose, Symbol: "BTC-USD", TargetPositionID: openOrder.TargetPositionID}
	result, _, err := engine.Execute(closeOrder, now, true)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderExecuted, result.Status)
}
