// Package cfd implements the CFD (contract-for-difference) engine (spec
// §4.2): opening, closing and repricing a single position under
// reserve-margin accounting. The engine is pure — it returns the position
// and the resulting Delta for the caller (pkg/portfolio, C3) to apply
// transactionally; it never mutates a Portfolio directly.
//
// Grounded on the teacher's pkg/backtest/portfolio.go position bookkeeping,
// generalized from spot P&L to leveraged CFD P&L with explicit reserved
// margin, and rewritten against shopspring/decimal.
package cfd

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"tradearena/pkg/calc"
	"tradearena/pkg/domain"
)

var (
	ErrInvalidQuantity = errors.New("cfd: quantity must be positive")
	ErrInvalidLeverage = errors.New("cfd: leverage out of bounds")
	ErrInvalidPrice    = errors.New("cfd: mark price must be positive")
	ErrNilPosition     = errors.New("cfd: position is nil")
)

// Delta is the accounting effect of one CFD operation, applied atomically
// by the portfolio manager (C3). Exactly one of PositionOpened /
// PositionClosedID is set, depending on the operation.
type Delta struct {
	CashDelta           decimal.Decimal
	ReservedMarginDelta decimal.Decimal
	RealizedPnLDelta    decimal.Decimal

	PositionOpened   *domain.Position // set by Open
	PositionClosedID string           // set by Close
	Trade            *domain.Trade    // set by Close
}

// Open validates and creates a new position. Preconditions: quantity > 0,
// 0 < leverage <= maxLeverage, markPrice > 0. Opening never perturbs
// equity: Δcash = 0, Δreserved_margin = +margin_required, Δrealized_pnl = 0.
func Open(portfolioID, symbol string, side domain.Side, quantity, leverage, maxLeverage, markPrice decimal.Decimal, now time.Time) (*domain.Position, Delta, error) {
	if quantity.Sign() <= 0 {
		return nil, Delta{}, ErrInvalidQuantity
	}
	if leverage.Sign() <= 0 || leverage.GreaterThan(maxLeverage) {
		return nil, Delta{}, ErrInvalidLeverage
	}
	if markPrice.Sign() <= 0 {
		return nil, Delta{}, ErrInvalidPrice
	}

	notional := calc.Notional(quantity, markPrice)
	margin, err := calc.MarginRequired(notional, leverage)
	if err != nil {
		return nil, Delta{}, err
	}

	pos := &domain.Position{
		PortfolioID:    portfolioID,
		Symbol:         symbol,
		Side:           side,
		Quantity:       quantity,
		EntryPrice:     markPrice,
		MarkPrice:      markPrice,
		Leverage:       leverage,
		ReservedMargin: margin,
		OpenedAt:       now,
	}
	delta := Delta{
		CashDelta:           decimal.Zero,
		ReservedMarginDelta: margin,
		RealizedPnLDelta:    decimal.Zero,
		PositionOpened:      pos,
	}
	return pos, delta, nil
}

// Close realizes P&L from the position's side/quantity/entry against
// markPrice, and produces the removal delta: Δcash = +realized_pnl,
// Δreserved_margin = -position.reserved_margin, Δrealized_pnl = +realized_pnl.
// The executed price of the resulting Trade equals markPrice.
func Close(pos *domain.Position, markPrice decimal.Decimal, now time.Time) (*domain.Trade, Delta, error) {
	if pos == nil {
		return nil, Delta{}, ErrNilPosition
	}
	if markPrice.Sign() <= 0 {
		return nil, Delta{}, ErrInvalidPrice
	}

	realized := calc.UnrealizedPnL(pos.Side, pos.Quantity, pos.EntryPrice, markPrice)
	trade := &domain.Trade{
		Action:              domain.ActionClose,
		Symbol:              pos.Symbol,
		Side:                pos.Side,
		Quantity:            pos.Quantity,
		ExecutedPrice:       markPrice,
		RealizedPnL:         decimal.NullDecimal{Decimal: realized, Valid: true},
		ReservedMarginDelta: pos.ReservedMargin.Neg(),
		OccurredAt:          now,
	}
	delta := Delta{
		CashDelta:           realized,
		ReservedMarginDelta: pos.ReservedMargin.Neg(),
		RealizedPnLDelta:    realized,
		PositionClosedID:    pos.ID,
		Trade:               trade,
	}
	return trade, delta, nil
}

// Reprice updates a position's mark price in place and returns its new
// unrealized P&L. It never moves cash or margin. Idempotent: repricing
// twice with the same markPrice leaves the position unchanged.
func Reprice(pos *domain.Position, markPrice decimal.Decimal) (decimal.Decimal, error) {
	if pos == nil {
		return decimal.Zero, ErrNilPosition
	}
	if markPrice.Sign() <= 0 {
		return decimal.Zero, ErrInvalidPrice
	}
	pos.MarkPrice = markPrice
	return calc.UnrealizedPnL(pos.Side, pos.Quantity, pos.EntryPrice, markPrice), nil
}
