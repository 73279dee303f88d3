package risk

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradearena/pkg/cfd"
	"tradearena/pkg/domain"
	"tradearena/pkg/portfolio"
	"tradearena/pkg/tradingengine"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

var now = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

type fakeCompetitions struct{ c *domain.Competition }

func (f *fakeCompetitions) Competition(string) (*domain.Competition, error) { return f.c, nil }

type fakeParticipants struct{ byID map[string]*domain.Participant }

func (f *fakeParticipants) Participant(id string) (*domain.Participant, error) {
	return f.byID[id], nil
}
func (f *fakeParticipants) SaveParticipant(p *domain.Participant) error {
	f.byID[p.ID] = p
	return nil
}

type fakePrices struct{ byQuote map[string]decimal.Decimal }

func (f *fakePrices) LatestPrice(symbol string) (decimal.Decimal, bool) {
	p, ok := f.byQuote[symbol]
	return p, ok
}

type fakeAudit struct {
	recorded bool
}

func (f *fakeAudit) RecordLiquidation(string, decimal.Decimal, decimal.Decimal, time.Time) error {
	f.recorded = true
	return nil
}

// Scenario 4 from spec §8: short 1 unit @ 100 leverage 10, reprice to 1200
// drives equity to -100 against reserved margin 10 -> liquidation.
func TestCheckTriggersForcedLiquidation(t *testing.T) {
	competition := &domain.Competition{
		ID: "comp1", Status: domain.CompetitionActive,
		StartAt: now.Add(-time.Hour), EndAt: now.Add(time.Hour),
		MaxLeverage: d("10"), MaxPositionSizePct: d("100"), MaintenanceMarginPct: d("50"),
		AllowedInstruments: map[string]struct{}{"ETH-USD": {}},
	}
	participant := &domain.Participant{ID: "alice", CompetitionID: "comp1", Status: domain.ParticipantActive}
	comps := &fakeCompetitions{c: competition}
	parts := &fakeParticipants{byID: map[string]*domain.Participant{"alice": participant}}
	prices := &fakePrices{byQuote: map[string]decimal.Decimal{"ETH-USD": d("100")}}
	pm := portfolio.NewManager()
	pm.Register(&domain.Portfolio{ID: "pf1", ParticipantID: "alice", Cash: d("1000")})

	pos, delta, err := cfd.Open("pf1", "ETH-USD", domain.SideShort, d("1"), d("10"), d("10"), d("100"), now)
	require.NoError(t, err)
	require.NoError(t, pm.Apply("alice", delta))
	_, err = pm.RepriceAll("alice", map[string]decimal.Decimal{"ETH-USD": d("1200")})
	require.NoError(t, err)

	engine := tradingengine.New(comps, parts, prices, pm, nil)
	audit := &fakeAudit{}
	monitor := New(pm, parts, engine, audit)

	require.NoError(t, monitor.Check("alice", d("50"), now))

	assert.Equal(t, domain.ParticipantLiquidated, parts.byID["alice"].Status)
	assert.True(t, audit.recorded)

	snap, err := pm.Snapshot("alice", d("50"))
	require.NoError(t, err)
	assert.Empty(t, snap.Portfolio.Positions)
	_ = pos
}

func TestCheckIsNoOpWhenHealthy(t *testing.T) {
	competition := &domain.Competition{
		ID: "comp1", Status: domain.CompetitionActive,
		StartAt: now.Add(-time.Hour), EndAt: now.Add(time.Hour),
		MaxLeverage: d("10"), MaxPositionSizePct: d("100"), MaintenanceMarginPct: d("50"),
		AllowedInstruments: map[string]struct{}{"BTC-USD": {}},
	}
	participant := &domain.Participant{ID: "alice", CompetitionID: "comp1", Status: domain.ParticipantActive}
	comps := &fakeCompetitions{c: competition}
	parts := &fakeParticipants{byID: map[string]*domain.Participant{"alice": participant}}
	prices := &fakePrices{byQuote: map[string]decimal.Decimal{"BTC-USD": d("50000")}}
	pm := portfolio.NewManager()
	pm.Register(&domain.Portfolio{ID: "pf1", ParticipantID: "alice", Cash: d("10000")})

	engine := tradingengine.New(comps, parts, prices, pm, nil)
	monitor := New(pm, parts, engine, nil)

	require.NoError(t, monitor.Check("alice", d("50"), now))
	assert.Equal(t, domain.ParticipantActive, parts.byID["alice"].Status)
}

func TestCheckIsIdempotentOnAlreadyLiquidated(t *testing.T) {
	participant := &domain.Participant{ID: "alice", CompetitionID: "comp1", Status: domain.ParticipantLiquidated}
	parts := &fakeParticipants{byID: map[string]*domain.Participant{"alice": participant}}
	pm := portfolio.NewManager()
	pm.Register(&domain.Portfolio{ID: "pf1", ParticipantID: "alice"})
	comps := &fakeCompetitions{c: &domain.Competition{ID: "comp1"}}
	prices := &fakePrices{byQuote: map[string]decimal.Decimal{}}
	engine := tradingengine.New(comps, parts, prices, pm, nil)
	monitor := New(pm, parts, engine, nil)

	require.NoError(t, monitor.Check("alice", d("50"), now))
	assert.Equal(t, domain.ParticipantLiquidated, parts.byID["alice"].Status)
}
