// Package scheduler implements the periodic scheduler (spec §4.6, C6):
// two jobs — a price-refresh tick and a decision tick —
// with at-most-one-outstanding-round-per-participant overlap policy and
// graceful, draining shutdown.
//
// Grounded on the teacher's cmd/cron/main.go (signal.NotifyContext +
// sync.WaitGroup + timeout-bounded drain on shutdown) and
// pkg/manager/manager.go's RunTradingLoop ticker loop, generalized from a
// single global ticker driving one trader set to one shared ticker pair (a
// fixed-period price tick and a 5-second decision poll that honours each
// competition's own invocation interval) driving the participants of every
// competition concurrently.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/zeromicro/go-zero/core/logx"
	"github.com/zeromicro/go-zero/core/threading"

	"tradearena/pkg/domain"
	"tradearena/pkg/orchestrator"
	"tradearena/pkg/portfolio"
	"tradearena/pkg/risk"
)

// CompetitionLister enumerates active competitions and their participants.
type CompetitionLister interface {
	ActiveCompetitions() ([]*domain.Competition, error)
	ActiveParticipants(competitionID string) ([]*domain.Participant, error)
}

// PriceRefresher pulls the latest marks for a competition's allowed
// instruments and writes them into the price cache the rest of the engine
// reads from (spec §6's market-data interface + TTL cache contract).
type PriceRefresher interface {
	RefreshPrices(ctx context.Context, symbols []string) (map[string]decimal.Decimal, error)
}

// Scheduler drives C5 decision rounds and C3/C7 price-refresh+risk ticks
// for every active competition.
type Scheduler struct {
	lister       CompetitionLister
	prices       PriceRefresher
	portfolios   *portfolio.Manager
	orchestrator *orchestrator.Orchestrator
	risk         *risk.Monitor
	sharpe       *risk.SharpeGate
	sharpeFloor  decimal.Decimal
	cycles       CycleRecorder

	priceInterval    time.Duration
	decisionInterval func(competition *domain.Competition) time.Duration

	mu      sync.Mutex
	running map[string]bool // participantID -> round in flight

	wg       sync.WaitGroup
	stopOnce sync.Once
	stopCh   chan struct{}
}

// Option configures optional Scheduler behavior not carried by New's
// required arguments.
type Option func(*Scheduler)

// WithSharpeGate enables the SUPPLEMENTED FEATURE 3 circuit breaker: every
// price tick, each participant's trailing Sharpe ratio is compared against
// floor and they are paused or resumed accordingly.
func WithSharpeGate(gate *risk.SharpeGate, floor decimal.Decimal) Option {
	return func(s *Scheduler) {
		s.sharpe = gate
		s.sharpeFloor = floor
	}
}

// CycleRecorder appends one row per scheduler fan-out attempt, independent
// of whether the round reached the point of recording a conversation.
type CycleRecorder interface {
	RecordCycle(ctx context.Context, participantID, competitionID string, started, finished time.Time, status, errMsg string) error
}

// WithCycleRecorder enables the scheduler's own audit trail, distinct from
// the model-invocation archive DecisionRecorder writes.
func WithCycleRecorder(recorder CycleRecorder) Option {
	return func(s *Scheduler) { s.cycles = recorder }
}

// New constructs a Scheduler. priceInterval is the fixed period of the
// price-refresh tick; decision-tick period is read per competition from
// Competition.InvocationIntervalMin.
func New(lister CompetitionLister, prices PriceRefresher, portfolios *portfolio.Manager, orch *orchestrator.Orchestrator, riskMonitor *risk.Monitor, priceInterval time.Duration, opts ...Option) *Scheduler {
	s := &Scheduler{
		lister:        lister,
		prices:        prices,
		portfolios:    portfolios,
		orchestrator:  orch,
		risk:          riskMonitor,
		priceInterval: priceInterval,
		decisionInterval: func(c *domain.Competition) time.Duration {
			if c.InvocationIntervalMin <= 0 {
				return time.Minute
			}
			return time.Duration(c.InvocationIntervalMin) * time.Minute
		},
		running: make(map[string]bool),
		stopCh:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run starts the price-refresh and decision-tick loops and blocks until ctx
// is cancelled or Stop is called, then drains in-flight rounds.
func (s *Scheduler) Run(ctx context.Context) {
	s.wg.Add(2)
	threading.GoSafe(func() { s.runPriceTicks(ctx) })
	threading.GoSafe(func() { s.runDecisionTicks(ctx) })

	select {
	case <-ctx.Done():
	case <-s.stopCh:
	}
	logx.Info("scheduler: shutdown signal received, draining in-flight rounds")
	s.wg.Wait()
	logx.Info("scheduler: all rounds drained")
}

// Stop requests a graceful shutdown without requiring ctx cancellation.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
}

func (s *Scheduler) runPriceTicks(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.priceInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.priceTick(ctx)
		}
	}
}

func (s *Scheduler) priceTick(ctx context.Context) {
	competitions, err := s.lister.ActiveCompetitions()
	if err != nil {
		logx.Errorf("scheduler: list active competitions: %v", err)
		return
	}
	for _, competition := range competitions {
		symbols := make([]string, 0, len(competition.AllowedInstruments))
		for symbol := range competition.AllowedInstruments {
			symbols = append(symbols, symbol)
		}
		prices, err := s.prices.RefreshPrices(ctx, symbols)
		if err != nil {
			logx.Errorf("scheduler: competition=%s price refresh failed: %v", competition.ID, err)
			continue
		}

		participants, err := s.lister.ActiveParticipants(competition.ID)
		if err != nil {
			logx.Errorf("scheduler: competition=%s list participants: %v", competition.ID, err)
			continue
		}
		now := time.Now()
		for _, participant := range participants {
			if _, err := s.portfolios.RepriceAll(participant.ID, prices); err != nil {
				logx.Errorf("scheduler: participant=%s reprice failed: %v", participant.ID, err)
				continue
			}
			if s.risk != nil {
				if err := s.risk.Check(participant.ID, competition.MaintenanceMarginPct, now); err != nil {
					logx.Errorf("scheduler: participant=%s risk check failed: %v", participant.ID, err)
				}
			}
			if s.sharpe != nil {
				if err := s.sharpe.Evaluate(ctx, participant.ID, s.sharpeFloor, now); err != nil {
					logx.Errorf("scheduler: participant=%s sharpe gate failed: %v", participant.ID, err)
				}
			}
		}
	}
}

func (s *Scheduler) runDecisionTicks(ctx context.Context) {
	defer s.wg.Done()
	// One sub-ticker per competition is driven by checking, on a short
	// common poll interval, whether that competition's own interval has
	// elapsed since its participants' last rounds — this avoids spawning
	// and tearing down per-competition goroutines as competitions start
	// and stop.
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	lastFired := make(map[string]time.Time)

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.decisionTick(ctx, lastFired)
		}
	}
}

func (s *Scheduler) decisionTick(ctx context.Context, lastFired map[string]time.Time) {
	competitions, err := s.lister.ActiveCompetitions()
	if err != nil {
		logx.Errorf("scheduler: list active competitions: %v", err)
		return
	}
	now := time.Now()
	for _, competition := range competitions {
		interval := s.decisionInterval(competition)
		if last, ok := lastFired[competition.ID]; ok && now.Sub(last) < interval {
			continue
		}
		lastFired[competition.ID] = now

		participants, err := s.lister.ActiveParticipants(competition.ID)
		if err != nil {
			logx.Errorf("scheduler: competition=%s list participants: %v", competition.ID, err)
			continue
		}
		for _, participant := range participants {
			s.fanOutRound(ctx, participant.ID, competition.ID)
		}
	}
}

// fanOutRound launches one participant's decision round in its own
// goroutine, dropping the tick (and logging) if a round for that
// participant is already in flight — the overlap policy of spec §4.6.
func (s *Scheduler) fanOutRound(ctx context.Context, participantID, competitionID string) {
	s.mu.Lock()
	if s.running[participantID] {
		s.mu.Unlock()
		logx.Infof("scheduler: participant=%s tick dropped, prior round still running", participantID)
		return
	}
	s.running[participantID] = true
	s.mu.Unlock()

	s.wg.Add(1)
	threading.GoSafe(func() {
		defer s.wg.Done()
		defer func() {
			s.mu.Lock()
			delete(s.running, participantID)
			s.mu.Unlock()
		}()
		started := time.Now()
		status, errMsg := "completed", ""
		if err := s.orchestrator.Round(ctx, participantID); err != nil {
			logx.Errorf("scheduler: participant=%s round failed: %v", participantID, err)
			status, errMsg = "failed", err.Error()
		}
		if s.cycles != nil {
			if err := s.cycles.RecordCycle(ctx, participantID, competitionID, started, time.Now(), status, errMsg); err != nil {
				logx.Errorf("scheduler: participant=%s cycle record failed: %v", participantID, err)
			}
		}
	})
}
