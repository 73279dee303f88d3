// Package risk implements the risk monitor (spec §4.7, C7): after every
// reprice, checks each portfolio for a liquidation trigger and, if
// triggered, force-closes every open position in descending notional order
// and transitions the participant to liquidated.
//
// Grounded on the teacher's pkg/manager/manager.go Sharpe-gating block in
// RunTradingLoop (a post-cycle guard that mutates trader state based on a
// performance threshold), generalized from a pause gate to a liquidation
// state transition, and on pkg/calc's liquidation trigger formula.
package risk

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/zeromicro/go-zero/core/logx"

	"tradearena/pkg/calc"
	"tradearena/pkg/domain"
	"tradearena/pkg/portfolio"
	"tradearena/pkg/tradingengine"
)

// ParticipantStore resolves and persists participant state.
type ParticipantStore interface {
	Participant(participantID string) (*domain.Participant, error)
	SaveParticipant(p *domain.Participant) error
}

// AuditRecorder appends an audit record when a liquidation trigger fires.
type AuditRecorder interface {
	RecordLiquidation(participantID string, equity, reservedMargin decimal.Decimal, at time.Time) error
}

// TradeRecorder appends one forced-close trade to the historical ledger —
// the same persistence hook orchestrator.Round uses at its own execute
// site, since tradingengine.Engine.Execute's *domain.Trade return is
// otherwise dropped here too.
type TradeRecorder interface {
	RecordTrade(trade *domain.Trade) error
}

// PortfolioRecorder persists the durable portfolio state once a
// liquidation has finished closing every position.
type PortfolioRecorder interface {
	SavePortfolio(p *domain.Portfolio) error
}

// Monitor is the C7 risk monitor.
type Monitor struct {
	portfolios   *portfolio.Manager
	participants ParticipantStore
	engine       *tradingengine.Engine
	audit        AuditRecorder
	trades       TradeRecorder
	portfolioRec PortfolioRecorder
}

// Option configures optional Monitor behavior not carried by New's required
// collaborators.
type Option func(*Monitor)

// WithTradeRecorder enables persisting each forced-close trade.
func WithTradeRecorder(tr TradeRecorder) Option {
	return func(m *Monitor) { m.trades = tr }
}

// WithPortfolioRecorder enables persisting the portfolio once liquidation
// finishes closing every position.
func WithPortfolioRecorder(pr PortfolioRecorder) Option {
	return func(m *Monitor) { m.portfolioRec = pr }
}

// New constructs a Monitor. audit may be nil to skip the audit trail.
func New(portfolios *portfolio.Manager, participants ParticipantStore, engine *tradingengine.Engine, audit AuditRecorder, opts ...Option) *Monitor {
	m := &Monitor{portfolios: portfolios, participants: participants, engine: engine, audit: audit}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Check evaluates one participant's portfolio for a liquidation trigger and,
// if triggered, force-closes every open position and marks the participant
// liquidated. It is idempotent: calling it again on an already-liquidated
// participant is a no-op.
func (m *Monitor) Check(participantID string, maintenanceMarginPct decimal.Decimal, now time.Time) error {
	participant, err := m.participants.Participant(participantID)
	if err != nil {
		return fmt.Errorf("risk: resolve participant: %w", err)
	}
	if !participant.IsActive() {
		return nil
	}

	snap, err := m.portfolios.Snapshot(participantID, maintenanceMarginPct)
	if err != nil {
		return fmt.Errorf("risk: snapshot: %w", err)
	}
	if !snap.LiquidationDue {
		return nil
	}

	logx.Errorf("risk: participant=%s liquidation triggered equity=%s reserved_margin=%s", participantID, snap.Equity, snap.Portfolio.ReservedMargin)

	positions := descendingByNotional(snap.Portfolio.Positions)
	for _, pos := range positions {
		order := &domain.Order{
			ID:               fmt.Sprintf("liq-%s-%s", participantID, pos.ID),
			ParticipantID:    participantID,
			Action:           domain.ActionClose,
			Symbol:           pos.Symbol,
			TargetPositionID: pos.ID,
		}
		result, trade, err := m.engine.Execute(order, now, true)
		if err != nil {
			logx.Errorf("risk: participant=%s forced close of %s failed: %v", participantID, pos.Symbol, err)
			continue
		}
		if result.Status != domain.OrderExecuted {
			logx.Errorf("risk: participant=%s forced close of %s rejected: %s", participantID, pos.Symbol, result.RejectReason)
			continue
		}
		if trade != nil && m.trades != nil {
			if err := m.trades.RecordTrade(trade); err != nil {
				logx.Errorf("risk: participant=%s forced close trade persist failed: %v", participantID, err)
			}
		}
	}

	participant.Status = domain.ParticipantLiquidated
	if err := m.participants.SaveParticipant(participant); err != nil {
		return fmt.Errorf("risk: save liquidated participant: %w", err)
	}

	if m.portfolioRec != nil {
		if finalSnap, err := m.portfolios.Snapshot(participantID, maintenanceMarginPct); err != nil {
			logx.Errorf("risk: participant=%s post-liquidation snapshot failed: %v", participantID, err)
		} else if err := m.portfolioRec.SavePortfolio(finalSnap.Portfolio); err != nil {
			logx.Errorf("risk: participant=%s post-liquidation portfolio persist failed: %v", participantID, err)
		}
	}

	if m.audit != nil {
		if err := m.audit.RecordLiquidation(participantID, snap.Equity, snap.Portfolio.ReservedMargin, now); err != nil {
			logx.Errorf("risk: participant=%s audit record failed: %v", participantID, err)
		}
	}
	return nil
}

func descendingByNotional(positions []*domain.Position) []*domain.Position {
	out := make([]*domain.Position, len(positions))
	copy(out, positions)
	sort.Slice(out, func(i, j int) bool {
		ni := calc.Notional(out[i].Quantity, out[i].MarkPrice)
		nj := calc.Notional(out[j].Quantity, out[j].MarkPrice)
		return ni.GreaterThan(nj)
	})
	return out
}
