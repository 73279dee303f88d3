// Package calc implements the pure, deterministic calculation primitives
// (spec §4.1): notional, margin, unrealized P&L, leverage, margin level and
// the liquidation trigger. Every function here is side-effect free and
// operates on shopspring/decimal values so the engine never rounds through
// binary floating point. Rounding is to the scale of the containing field,
// applied with decimal.DivRound / decimal.Round, which round half away from
// zero; round-half-to-even is not applied. This follows the teacher's
// numeric style in pkg/executor/validator.go ported to fixed-point
// arithmetic.
package calc

import (
	"errors"
	"math"

	"github.com/shopspring/decimal"

	"tradearena/pkg/domain"
)

// ErrBadLeverage is returned by MarginRequired when leverage is <= 0.
var ErrBadLeverage = errors.New("calc: leverage must be positive")

// PriceScale is the rounding scale (half away from zero) applied to price-denominated
// results (cents-equivalent, generous for fractional crypto quantities).
const PriceScale = 8

// Notional returns qty * price.
func Notional(qty, price decimal.Decimal) decimal.Decimal {
	return qty.Mul(price).Round(PriceScale)
}

// MarginRequired returns notional / leverage, rounded half away from zero to
// PriceScale.
// Fails with ErrBadLeverage when leverage <= 0.
func MarginRequired(notional, leverage decimal.Decimal) (decimal.Decimal, error) {
	if leverage.Sign() <= 0 {
		return decimal.Zero, ErrBadLeverage
	}
	return notional.DivRound(leverage, PriceScale), nil
}

// UnrealizedPnL computes (mark-entry)*qty for long, (entry-mark)*qty for short.
func UnrealizedPnL(side domain.Side, qty, entry, mark decimal.Decimal) decimal.Decimal {
	diff := mark.Sub(entry)
	if side == domain.SideShort {
		diff = entry.Sub(mark)
	}
	return diff.Mul(qty).Round(PriceScale)
}

// PnLPct returns pnl/basis*100 when basis > 0, else zero.
func PnLPct(pnl, basis decimal.Decimal) decimal.Decimal {
	if basis.Sign() <= 0 {
		return decimal.Zero
	}
	return pnl.DivRound(basis, PriceScale).Mul(decimal.NewFromInt(100)).Round(PriceScale)
}

// Equity returns cash + unrealized.
func Equity(cash, unrealized decimal.Decimal) decimal.Decimal {
	return cash.Add(unrealized).Round(PriceScale)
}

// CurrentLeverage returns totalNotional/equity when equity > 0, else zero.
func CurrentLeverage(totalNotional, equity decimal.Decimal) decimal.Decimal {
	if equity.Sign() <= 0 {
		return decimal.Zero
	}
	return totalNotional.DivRound(equity, PriceScale)
}

// MarginLevel returns equity/reservedMargin when reservedMargin > 0. The
// second return value is false when margin level is undefined (no margin
// in use), matching spec §4.1's "undefined if no margin used".
func MarginLevel(equity, reservedMargin decimal.Decimal) (decimal.Decimal, bool) {
	if reservedMargin.Sign() <= 0 {
		return decimal.Zero, false
	}
	return equity.DivRound(reservedMargin, PriceScale), true
}

// LiquidationTriggered reports whether reservedMargin > 0 and the margin
// level falls below maintenancePct (expressed as a percentage, e.g. 50 for
// 50%); maintenancePct is compared against margin level * 100.
func LiquidationTriggered(equity, reservedMargin, maintenancePct decimal.Decimal) bool {
	level, ok := MarginLevel(equity, reservedMargin)
	if !ok {
		return false
	}
	levelPct := level.Mul(decimal.NewFromInt(100))
	return levelPct.LessThan(maintenancePct)
}

// AvailableMargin returns equity - reservedMargin.
func AvailableMargin(equity, reservedMargin decimal.Decimal) decimal.Decimal {
	return equity.Sub(reservedMargin).Round(PriceScale)
}

// SharpeRatio computes the mean of periodReturns divided by their
// population standard deviation, unannualized (the caller scales by the
// sampling frequency if it needs an annualized figure). Returns zero when
// fewer than two samples are given or the standard deviation is zero.
func SharpeRatio(periodReturns []decimal.Decimal) decimal.Decimal {
	n := len(periodReturns)
	if n < 2 {
		return decimal.Zero
	}
	count := decimal.NewFromInt(int64(n))
	sum := decimal.Zero
	for _, r := range periodReturns {
		sum = sum.Add(r)
	}
	mean := sum.DivRound(count, PriceScale)

	variance := decimal.Zero
	for _, r := range periodReturns {
		diff := r.Sub(mean)
		variance = variance.Add(diff.Mul(diff))
	}
	variance = variance.DivRound(count, PriceScale)
	if variance.Sign() <= 0 {
		return decimal.Zero
	}
	stddev := decimal.NewFromFloat(math.Sqrt(variance.InexactFloat64()))
	if stddev.Sign() <= 0 {
		return decimal.Zero
	}
	return mean.DivRound(stddev, PriceScale)
}
