// Package portfolio implements the portfolio manager (spec §4.3, C3): the
// single authority for applying cfd.Delta values to a domain.Portfolio
// under a per-participant lane, and for repricing all open positions from
// a fresh mark snapshot.
//
// Grounded on the teacher's pkg/manager/manager.go lane pattern (one
// *sync.Mutex per trader, guarding cycle execution while allowing
// concurrent cycles across traders) and on pkg/backtest/portfolio.go's
// equity/reprice bookkeeping, generalized to reserved-margin CFD
// accounting and shopspring/decimal.
package portfolio

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/zeromicro/go-zero/core/logx"

	"tradearena/pkg/calc"
	"tradearena/pkg/cfd"
	"tradearena/pkg/domain"
)

var (
	ErrUnknownParticipant = errors.New("portfolio: unknown participant")
	ErrInvariantViolation = errors.New("portfolio: applying delta would violate an accounting invariant")
)

// Snapshot is a point-in-time read of one participant's financial state,
// with equity/leverage/margin-level derived via pkg/calc.
type Snapshot struct {
	Portfolio       *domain.Portfolio
	Equity          decimal.Decimal
	UnrealizedPnL   decimal.Decimal
	TotalNotional   decimal.Decimal
	CurrentLeverage decimal.Decimal
	MarginLevelPct  decimal.Decimal
	MarginLevelOK   bool
	AvailableMargin decimal.Decimal
	LiquidationDue  bool
}

// Manager owns one lane (mutex) per participant and is the only component
// allowed to mutate a domain.Portfolio in place. The mutating methods
// (Apply, RepriceAll) do not take the participant's lane themselves;
// callers serialize them by holding the lane through Lock until they call
// the unlock function it returns.
// The orchestrator (C5) releases the lane during model invocation by simply
// not holding it — it only calls into Manager for the apply/snapshot step.
type Manager struct {
	lanesMu sync.Mutex
	lanes   map[string]*sync.Mutex

	portfoliosMu sync.RWMutex
	portfolios   map[string]*domain.Portfolio // keyed by participantID
}

// NewManager returns an empty portfolio manager.
func NewManager() *Manager {
	return &Manager{
		lanes:      make(map[string]*sync.Mutex),
		portfolios: make(map[string]*domain.Portfolio),
	}
}

// Register attaches a portfolio to the manager, keyed by its participant.
func (m *Manager) Register(p *domain.Portfolio) {
	m.portfoliosMu.Lock()
	defer m.portfoliosMu.Unlock()
	m.portfolios[p.ParticipantID] = p
}

func (m *Manager) lane(participantID string) *sync.Mutex {
	m.lanesMu.Lock()
	defer m.lanesMu.Unlock()
	l, ok := m.lanes[participantID]
	if !ok {
		l = &sync.Mutex{}
		m.lanes[participantID] = l
	}
	return l
}

// Lock acquires the participant's lane and returns an unlock func. The
// orchestrator calls this around the execute+record phase of a decision
// round and must NOT hold it during the (slow, external) model invocation.
func (m *Manager) Lock(participantID string) func() {
	l := m.lane(participantID)
	l.Lock()
	return l.Unlock
}

func (m *Manager) get(participantID string) (*domain.Portfolio, error) {
	m.portfoliosMu.RLock()
	defer m.portfoliosMu.RUnlock()
	p, ok := m.portfolios[participantID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownParticipant, participantID)
	}
	return p, nil
}

// Snapshot computes a read-only financial view of a participant's
// portfolio. Callers should hold the participant's lane if they need the
// view to be consistent with a subsequent Apply; Snapshot itself is safe
// to call without it (read under portfoliosMu only).
func (m *Manager) Snapshot(participantID string, maintenanceMarginPct decimal.Decimal) (Snapshot, error) {
	p, err := m.get(participantID)
	if err != nil {
		return Snapshot{}, err
	}

	unrealized := decimal.Zero
	notional := decimal.Zero
	for _, pos := range p.Positions {
		unrealized = unrealized.Add(calc.UnrealizedPnL(pos.Side, pos.Quantity, pos.EntryPrice, pos.MarkPrice))
		notional = notional.Add(calc.Notional(pos.Quantity, pos.MarkPrice))
	}
	equity := calc.Equity(p.Cash, unrealized)
	levelPct, ok := calc.MarginLevel(equity, p.ReservedMargin)
	if ok {
		levelPct = levelPct.Mul(decimal.NewFromInt(100))
	}

	return Snapshot{
		Portfolio:       p,
		Equity:          equity,
		UnrealizedPnL:   unrealized,
		TotalNotional:   notional,
		CurrentLeverage: calc.CurrentLeverage(notional, equity),
		MarginLevelPct:  levelPct,
		MarginLevelOK:   ok,
		AvailableMargin: calc.AvailableMargin(equity, p.ReservedMargin),
		LiquidationDue:  calc.LiquidationTriggered(equity, p.ReservedMargin, maintenanceMarginPct),
	}, nil
}

// Apply atomically applies one cfd.Delta to a participant's portfolio:
// cash/reserved-margin/realized-pnl deltas are added, and the position list
// is adjusted (append on open, remove on close). It never leaves the
// portfolio half-updated: any invariant failure aborts before mutation.
func (m *Manager) Apply(participantID string, delta cfd.Delta) error {
	p, err := m.get(participantID)
	if err != nil {
		return err
	}

	newReserved := p.ReservedMargin.Add(delta.ReservedMarginDelta)
	if newReserved.Sign() < 0 {
		logx.Errorf("portfolio: participant=%s delta would drive reserved margin negative (%s)", participantID, newReserved)
		return ErrInvariantViolation
	}

	p.Cash = p.Cash.Add(delta.CashDelta)
	p.ReservedMargin = newReserved
	p.RealizedPnL = p.RealizedPnL.Add(delta.RealizedPnLDelta)

	switch {
	case delta.PositionOpened != nil:
		if delta.PositionOpened.ID == "" {
			delta.PositionOpened.ID = uuid.NewString()
		}
		p.Positions = append(p.Positions, delta.PositionOpened)
	case delta.PositionClosedID != "":
		p.Positions = removePosition(p.Positions, delta.PositionClosedID)
	}
	return nil
}

func removePosition(positions []*domain.Position, id string) []*domain.Position {
	out := positions[:0:0]
	for _, pos := range positions {
		if pos.ID != id {
			out = append(out, pos)
		}
	}
	return out
}

// RepriceAll updates every open position's mark price from the provided
// price map (symbol → latest price). Positions whose symbol has no quote
// are left at their previous mark. Returns the number of positions
// repriced, for logging by the caller.
func (m *Manager) RepriceAll(participantID string, prices map[string]decimal.Decimal) (int, error) {
	p, err := m.get(participantID)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, pos := range p.Positions {
		price, ok := prices[pos.Symbol]
		if !ok {
			continue
		}
		if _, err := cfd.Reprice(pos, price); err != nil {
			logx.Errorf("portfolio: participant=%s symbol=%s reprice failed: %v", participantID, pos.Symbol, err)
			continue
		}
		n++
	}
	return n, nil
}

// Position returns the open position for symbol, if any.
func (m *Manager) Position(participantID, symbol string) (*domain.Position, error) {
	p, err := m.get(participantID)
	if err != nil {
		return nil, err
	}
	for _, pos := range p.Positions {
		if pos.Symbol == symbol {
			return pos, nil
		}
	}
	return nil, nil
}
