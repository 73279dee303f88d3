// Package tradingengine implements the trading engine (spec §4.4, C4): a
// totally ordered validation pipeline producing stable, machine-readable
// reject reasons, followed by execution through pkg/cfd and pkg/portfolio
// and participant counter bookkeeping.
//
// Grounded on the teacher's pkg/executor/validator.go ValidateDecisions —
// the same "walk the rules in order, return on first failure" shape — ported
// from float64/string-error validation to decimal-typed, reason-coded
// validation against a competition's rule set.
package tradingengine

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/zeromicro/go-zero/core/logx"

	"tradearena/pkg/calc"
	"tradearena/pkg/cfd"
	"tradearena/pkg/domain"
	"tradearena/pkg/portfolio"
)

// CompetitionStore resolves the rule set an order is validated against.
type CompetitionStore interface {
	Competition(competitionID string) (*domain.Competition, error)
}

// ParticipantStore resolves and persists participant state (status,
// counters, equity marks).
type ParticipantStore interface {
	Participant(participantID string) (*domain.Participant, error)
	SaveParticipant(p *domain.Participant) error
}

// PriceSource answers the current mark price for a symbol, per the
// market-data interface of spec §6's price cache.
type PriceSource interface {
	LatestPrice(symbol string) (decimal.Decimal, bool)
}

// MarketClock decides whether a market-hours-gated competition is
// currently open. A nil clock is treated as always-open.
type MarketClock interface {
	IsOpen(now time.Time) bool
}

// Engine is the C4 trading engine.
type Engine struct {
	competitions CompetitionStore
	participants ParticipantStore
	prices       PriceSource
	portfolios   *portfolio.Manager
	clock        MarketClock
}

// New constructs an Engine. clock may be nil (always-open).
func New(competitions CompetitionStore, participants ParticipantStore, prices PriceSource, portfolios *portfolio.Manager, clock MarketClock) *Engine {
	return &Engine{
		competitions: competitions,
		participants: participants,
		prices:       prices,
		portfolios:   portfolios,
		clock:        clock,
	}
}

// Execute validates and, on pass, executes one order. bypassLifecycleChecks
// skips rules 1-3 (participant/competition-active, instrument-allowed) —
// used only by the risk monitor (C7) to force-close positions during
// liquidation, per spec §4.7.
func (e *Engine) Execute(order *domain.Order, now time.Time, bypassLifecycleChecks bool) (domain.OrderExecutionResult, *domain.Trade, error) {
	participant, err := e.participants.Participant(order.ParticipantID)
	if err != nil {
		return domain.OrderExecutionResult{}, nil, fmt.Errorf("tradingengine: resolve participant: %w", err)
	}
	competition, err := e.competitions.Competition(participant.CompetitionID)
	if err != nil {
		return domain.OrderExecutionResult{}, nil, fmt.Errorf("tradingengine: resolve competition: %w", err)
	}

	if !bypassLifecycleChecks {
		if reason, ok := e.checkLifecycle(participant, competition, order.Symbol, now); !ok {
			return e.reject(order, reason), nil, nil
		}
	}

	switch order.Action {
	case domain.ActionOpen:
		return e.executeOpen(order, participant, competition, now)
	case domain.ActionClose:
		return e.executeClose(order, participant, now)
	default:
		return domain.OrderExecutionResult{}, nil, fmt.Errorf("tradingengine: unknown order action %q", order.Action)
	}
}

func (e *Engine) checkLifecycle(participant *domain.Participant, competition *domain.Competition, symbol string, now time.Time) (domain.RejectReason, bool) {
	if !participant.IsActive() {
		return domain.ReasonParticipantInactive, false
	}
	if competition.Status != domain.CompetitionActive || !competition.WithinWindow(now) {
		return domain.ReasonCompetitionInactive, false
	}
	if competition.MarketHoursOnly && e.clock != nil && !e.clock.IsOpen(now) {
		return domain.ReasonCompetitionInactive, false
	}
	if !competition.IsAllowed(symbol) {
		return domain.ReasonInstrumentDisallow, false
	}
	return "", true
}

func (e *Engine) reject(order *domain.Order, reason domain.RejectReason) domain.OrderExecutionResult {
	order.Status = domain.OrderRejected
	order.RejectReason = reason
	return domain.OrderExecutionResult{OrderID: order.ID, Status: domain.OrderRejected, RejectReason: reason}
}

func (e *Engine) executeOpen(order *domain.Order, participant *domain.Participant, competition *domain.Competition, now time.Time) (domain.OrderExecutionResult, *domain.Trade, error) {
	if order.Leverage.Sign() <= 0 || order.Leverage.GreaterThan(competition.MaxLeverage) {
		return e.reject(order, domain.ReasonLeverageOutOfBounds), nil, nil
	}
	if order.Quantity.Sign() <= 0 {
		return e.reject(order, domain.ReasonQuantityNonPositive), nil, nil
	}
	price, ok := e.prices.LatestPrice(order.Symbol)
	if !ok || price.Sign() <= 0 {
		return e.reject(order, domain.ReasonPriceUnavailable), nil, nil
	}

	snap, err := e.portfolios.Snapshot(participant.ID, competition.MaintenanceMarginPct)
	if err != nil {
		return domain.OrderExecutionResult{}, nil, fmt.Errorf("tradingengine: snapshot: %w", err)
	}

	notional := calc.Notional(order.Quantity, price)
	sizeCap := snap.Equity.Mul(competition.MaxPositionSizePct).DivRound(decimal.NewFromInt(100), calc.PriceScale)
	if notional.GreaterThan(sizeCap) {
		return e.reject(order, domain.ReasonSizeCapExceeded), nil, nil
	}

	margin, err := calc.MarginRequired(notional, order.Leverage)
	if err != nil {
		return e.reject(order, domain.ReasonLeverageOutOfBounds), nil, nil
	}
	if margin.GreaterThan(snap.AvailableMargin) {
		return e.reject(order, domain.ReasonInsufficientMargin), nil, nil
	}

	pos, delta, err := cfd.Open(snap.Portfolio.ID, order.Symbol, order.Side, order.Quantity, order.Leverage, competition.MaxLeverage, price, now)
	if err != nil {
		return domain.OrderExecutionResult{}, nil, fmt.Errorf("tradingengine: cfd.Open: %w", err)
	}
	if err := e.portfolios.Apply(participant.ID, delta); err != nil {
		return domain.OrderExecutionResult{}, nil, fmt.Errorf("tradingengine: apply open delta: %w", err)
	}

	trade := &domain.Trade{
		ParticipantID:       participant.ID,
		OrderID:             order.ID,
		Action:              domain.ActionOpen,
		Symbol:              order.Symbol,
		Side:                order.Side,
		Quantity:            order.Quantity,
		ExecutedPrice:       price,
		ReservedMarginDelta: delta.ReservedMarginDelta,
		OccurredAt:          now,
	}

	order.Status = domain.OrderExecuted
	order.ExecutedPrice = price
	order.TargetPositionID = pos.ID

	e.updateCounters(participant, competition, nil)

	return domain.OrderExecutionResult{OrderID: order.ID, Status: domain.OrderExecuted, ExecutedPrice: price}, trade, nil
}

func (e *Engine) executeClose(order *domain.Order, participant *domain.Participant, now time.Time) (domain.OrderExecutionResult, *domain.Trade, error) {
	pos, err := e.resolvePosition(participant.ID, order)
	if err != nil {
		return domain.OrderExecutionResult{}, nil, err
	}
	if pos == nil {
		return e.reject(order, domain.ReasonPositionNotOwned), nil, nil
	}

	price, ok := e.prices.LatestPrice(pos.Symbol)
	if !ok || price.Sign() <= 0 {
		return e.reject(order, domain.ReasonPriceUnavailable), nil, nil
	}

	trade, delta, err := cfd.Close(pos, price, now)
	if err != nil {
		return domain.OrderExecutionResult{}, nil, fmt.Errorf("tradingengine: cfd.Close: %w", err)
	}
	if err := e.portfolios.Apply(participant.ID, delta); err != nil {
		return domain.OrderExecutionResult{}, nil, fmt.Errorf("tradingengine: apply close delta: %w", err)
	}
	trade.ParticipantID = participant.ID
	trade.OrderID = order.ID

	order.Status = domain.OrderExecuted
	order.ExecutedPrice = price
	order.TargetPositionID = pos.ID
	order.Side = pos.Side
	order.Quantity = pos.Quantity

	competition, err := e.competitions.Competition(participant.CompetitionID)
	if err != nil {
		return domain.OrderExecutionResult{}, nil, fmt.Errorf("tradingengine: resolve competition: %w", err)
	}
	e.updateCounters(participant, competition, &trade.RealizedPnL.Decimal)

	return domain.OrderExecutionResult{OrderID: order.ID, Status: domain.OrderExecuted, ExecutedPrice: price}, trade, nil
}

// resolvePosition implements rule CLOSE-4: prefer TargetPositionID; fall
// back to "at most one open position on this symbol".
func (e *Engine) resolvePosition(participantID string, order *domain.Order) (*domain.Position, error) {
	if order.TargetPositionID != "" {
		snap, err := e.portfolios.Snapshot(participantID, decimal.Zero)
		if err != nil {
			return nil, fmt.Errorf("tradingengine: snapshot: %w", err)
		}
		for _, pos := range snap.Portfolio.Positions {
			if pos.ID == order.TargetPositionID {
				return pos, nil
			}
		}
		return nil, nil
	}
	return e.portfolios.Position(participantID, order.Symbol)
}

func (e *Engine) updateCounters(participant *domain.Participant, competition *domain.Competition, realizedPnL *decimal.Decimal) {
	snap, err := e.portfolios.Snapshot(participant.ID, competition.MaintenanceMarginPct)
	if err != nil {
		logx.Errorf("tradingengine: participant=%s counter snapshot failed: %v", participant.ID, err)
		return
	}

	participant.TotalTrades++
	if realizedPnL != nil {
		switch realizedPnL.Sign() {
		case 1:
			participant.WinningTrades++
		case -1:
			participant.LosingTrades++
		}
	}
	participant.CurrentEquity = snap.Equity
	if snap.Equity.GreaterThan(participant.PeakEquity) {
		participant.PeakEquity = snap.Equity
	}

	if err := e.participants.SaveParticipant(participant); err != nil {
		logx.Errorf("tradingengine: participant=%s save failed: %v", participant.ID, err)
	}
}
