package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradearena/pkg/domain"
	"tradearena/pkg/orchestrator"
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

type fakeLister struct {
	mu           sync.Mutex
	competitions []*domain.Competition
	participants map[string][]*domain.Participant
}

func (f *fakeLister) ActiveCompetitions() ([]*domain.Competition, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.competitions, nil
}

func (f *fakeLister) ActiveParticipants(competitionID string) ([]*domain.Participant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.participants[competitionID], nil
}

type fakePriceRefresher struct {
	prices map[string]decimal.Decimal
	calls  int32
}

func (f *fakePriceRefresher) RefreshPrices(ctx context.Context, symbols []string) (map[string]decimal.Decimal, error) {
	atomic.AddInt32(&f.calls, 1)
	return f.prices, nil
}

type fakeCompetitionStore struct{ c *domain.Competition }

func (f *fakeCompetitionStore) Competition(string) (*domain.Competition, error) { return f.c, nil }

type fakeParticipantStore struct {
	mu   sync.Mutex
	byID map[string]*domain.Participant
}

func (f *fakeParticipantStore) Participant(id string) (*domain.Participant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.byID[id], nil
}
func (f *fakeParticipantStore) SaveParticipant(p *domain.Participant) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byID[p.ID] = p
	return nil
}

type fakePriceSource struct{ byQuote map[string]decimal.Decimal }

func (f *fakePriceSource) LatestPrice(symbol string) (decimal.Decimal, bool) {
	p, ok := f.byQuote[symbol]
	return p, ok
}

type blockingInvoker struct {
	release chan struct{}
	calls   int32
}

func (b *blockingInvoker) Invoke(ctx context.Context, providerTag, modelID string, configBlob map[string]any, promptText string, deadline time.Time) (orchestrator.InvocationResult, error) {
	atomic.AddInt32(&b.calls, 1)
	<-b.release
	return orchestrator.InvocationResult{ResponseText: `{}`}, nil
}

type fixedBuilder struct{}

func (fixedBuilder) Build(orchestrator.RoundSnapshot) (string, error) { return "prompt", nil }

type holdParser struct{}

func (holdParser) Parse(string) (orchestrator.ParsedDecision, error) {
	return orchestrator.ParsedDecision{Decision: "hold"}, nil
}

type recordingRecorder struct {
	mu      sync.Mutex
	records []*domain.DecisionRecord
}

func (r *recordingRecorder) Record(rec *domain.DecisionRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, rec)
	return nil
}

func (r *recordingRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records)
}

func newSchedulerFixture(t *testing.T, invoker *blockingInvoker) (*Scheduler, *fakeLister) {
	t.Helper()
	competition := &domain.Competition{
		ID: "comp1", Status: domain.CompetitionActive,
		StartAt: now.Add(-time.Hour), EndAt: now.Add(time.Hour),
		MaxLeverage: d("10"), MaxPositionSizePct: d("50"), MaintenanceMarginPct: d("50"),
		AllowedInstruments:    map[string]struct{}{"BTC-USD": {}},
		InvocationIntervalMin: 0,
	}
	participant := &domain.Participant{ID: "alice", CompetitionID: "comp1", Status: domain.ParticipantActive, InvocationTimeout: time.Second}
	lister := &fakeLister{
		competitions: []*domain.Competition{competition},
		participants: map[string][]*domain.Participant{"comp1": {participant}},
	}
	comps := &fakeCompetitionStore{c: competition}
	parts := &fakeParticipantStore{byID: map[string]*domain.Participant{"alice": participant}}
	prices := &fakePriceSource{byQuote: map[string]decimal.Decimal{"BTC-USD": d("50000")}}
	pm := portfolio.NewManager()
	pm.Register(&domain.Portfolio{ID: "pf1", ParticipantID: "alice", Cash: d("10000")})
	engine := tradingengine.New(comps, parts, prices, pm, nil)

	orch := orchestrator.New(comps, parts, prices, nil, nil, pm, engine, invoker, fixedBuilder{}, holdParser{}, &recordingRecorder{})
	sched := New(lister, &fakePriceRefresher{prices: map[string]decimal.Decimal{"BTC-USD": d("51000")}}, pm, orch, nil, 20*time.Millisecond)
	return sched, lister
}

func TestFanOutDropsOverlappingTickForSameParticipant(t *testing.T) {
	invoker := &blockingInvoker{release: make(chan struct{})}
	sched, _ := newSchedulerFixture(t, invoker)

	ctx := context.Background()
	sched.fanOutRound(ctx, "alice", "comp1")
	// Allow the goroutine to reach the blocking invoke call and mark itself running.
	require.Eventually(t, func() bool { return atomic.LoadInt32(&invoker.calls) == 1 }, time.Second, time.Millisecond)

	sched.mu.Lock()
	running := sched.running["alice"]
	sched.mu.Unlock()
	assert.True(t, running)

	sched.fanOutRound(ctx, "alice", "comp1") // should be dropped, not a second invoke
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(1), atomic.LoadInt32(&invoker.calls))

	close(invoker.release)
	sched.wg.Wait()

	sched.mu.Lock()
	running = sched.running["alice"]
	sched.mu.Unlock()
	assert.False(t, running)
}

func TestPriceTickRepricesAndRunsRiskCheck(t *testing.T) {
	invoker := &blockingInvoker{release: make(chan struct{})}
	close(invoker.release)
	sched, _ := newSchedulerFixture(t, invoker)

	sched.priceTick(context.Background())

	snap, err := sched.portfolios.Snapshot("alice", d("50"))
	require.NoError(t, err)
	assert.NotNil(t, snap.Portfolio)
}

func TestRunDrainsInFlightRoundsOnShutdown(t *testing.T) {
	invoker := &blockingInvoker{release: make(chan struct{})}
	sched, _ := newSchedulerFixture(t, invoker)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sched.Run(ctx)
		close(done)
	}()

	sched.fanOutRound(ctx, "alice", "comp1")
	require.Eventually(t, func() bool { return atomic.LoadInt32(&invoker.calls) == 1 }, time.Second, time.Millisecond)

	cancel()
	select {
	case <-done:
		t.Fatal("Run returned before the in-flight round drained")
	case <-time.After(30 * time.Millisecond):
	}

	close(invoker.release)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not drain the in-flight round in time")
	}
}
