package calc

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradearena/pkg/domain"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func TestNotional(t *testing.T) {
	got := Notional(d("0.01"), d("50000"))
	assert.True(t, got.Equal(d("500")), "got %s", got)
}

func TestMarginRequired(t *testing.T) {
	m, err := MarginRequired(d("500"), d("2"))
	require.NoError(t, err)
	assert.True(t, m.Equal(d("250")), "got %s", m)

	_, err = MarginRequired(d("500"), d("0"))
	assert.ErrorIs(t, err, ErrBadLeverage)

	_, err = MarginRequired(d("500"), d("-1"))
	assert.ErrorIs(t, err, ErrBadLeverage)
}

func TestUnrealizedPnL(t *testing.T) {
	long := UnrealizedPnL(domain.SideLong, d("0.01"), d("50000"), d("55000"))
	assert.True(t, long.Equal(d("50")), "got %s", long)

	short := UnrealizedPnL(domain.SideShort, d("1"), d("100"), d("200"))
	assert.True(t, short.Equal(d("-100")), "got %s", short)
}

func TestPnLPct(t *testing.T) {
	assert.True(t, PnLPct(d("50"), d("10000")).Equal(d("0.5")))
	assert.True(t, PnLPct(d("50"), d("0")).Equal(decimal.Zero))
}

func TestEquity(t *testing.T) {
	assert.True(t, Equity(d("10000"), d("50")).Equal(d("10050")))
}

func TestCurrentLeverage(t *testing.T) {
	assert.True(t, CurrentLeverage(d("20000"), d("10000")).Equal(d("2")))
	assert.True(t, CurrentLeverage(d("20000"), d("0")).Equal(decimal.Zero))
	assert.True(t, CurrentLeverage(d("20000"), d("-5")).Equal(decimal.Zero))
}

func TestMarginLevel(t *testing.T) {
	level, ok := MarginLevel(d("900"), d("10"))
	require.True(t, ok)
	assert.True(t, level.Equal(d("90")))

	_, ok = MarginLevel(d("900"), d("0"))
	assert.False(t, ok)
}

func TestLiquidationTriggered(t *testing.T) {
	// Scenario 4 from spec §8: equity -100, reserved margin 10 (short 1 @
	// 100 lev 10, repriced to 1200 => unrealized -1100, equity -100).
	assert.True(t, LiquidationTriggered(d("-100"), d("10"), d("50")))
	// No margin used => never triggers.
	assert.False(t, LiquidationTriggered(d("-100"), d("0"), d("50")))
	// Healthy margin level above maintenance.
	assert.False(t, LiquidationTriggered(d("900"), d("10"), d("50")))
}

func TestAvailableMargin(t *testing.T) {
	assert.True(t, AvailableMargin(d("10000"), d("250")).Equal(d("9750")))
}
