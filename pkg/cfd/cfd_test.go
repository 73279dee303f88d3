package cfd

import (
	"testing"
	"time"

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

var now = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func TestOpenRejectsBadInputs(t *testing.T) {
	_, _, err := Open("pf1", "BTC-USD", domain.SideLong, d("0"), d("2"), d("10"), d("50000"), now)
	assert.ErrorIs(t, err, ErrInvalidQuantity)

	_, _, err = Open("pf1", "BTC-USD", domain.SideLong, d("1"), d("0"), d("10"), d("50000"), now)
	assert.ErrorIs(t, err, ErrInvalidLeverage)

	_, _, err = Open("pf1", "BTC-USD", domain.SideLong, d("1"), d("20"), d("10"), d("50000"), now)
	assert.ErrorIs(t, err, ErrInvalidLeverage)

	_, _, err = Open("pf1", "BTC-USD", domain.SideLong, d("1"), d("2"), d("10"), d("0"), now)
	assert.ErrorIs(t, err, ErrInvalidPrice)
}

func TestOpenComputesReservedMargin(t *testing.T) {
	pos, delta, err := Open("pf1", "BTC-USD", domain.SideLong, d("0.01"), d("2"), d("10"), d("50000"), now)
	require.NoError(t, err)
	assert.True(t, pos.EntryPrice.Equal(d("50000")))
	assert.True(t, pos.MarkPrice.Equal(d("50000")))
	assert.True(t, pos.ReservedMargin.Equal(d("250")), "got %s", pos.ReservedMargin)

	assert.True(t, delta.CashDelta.Equal(decimal.Zero))
	assert.True(t, delta.ReservedMarginDelta.Equal(d("250")))
	assert.True(t, delta.RealizedPnLDelta.Equal(decimal.Zero))
	assert.Equal(t, pos, delta.PositionOpened)
}

// Round-trip law (spec §8): open(q,p,L) followed immediately by close(p)
// yields Δcash=0, Δreserved_margin=0, Δrealized_pnl=0.
func TestOpenThenImmediateCloseIsANoOp(t *testing.T) {
	pos, openDelta, err := Open("pf1", "BTC-USD", domain.SideLong, d("0.01"), d("2"), d("10"), d("50000"), now)
	require.NoError(t, err)

	trade, closeDelta, err := Close(pos, d("50000"), now)
	require.NoError(t, err)

	netCash := openDelta.CashDelta.Add(closeDelta.CashDelta)
	netMargin := openDelta.ReservedMarginDelta.Add(closeDelta.ReservedMarginDelta)
	netRealized := openDelta.RealizedPnLDelta.Add(closeDelta.RealizedPnLDelta)

	assert.True(t, netCash.IsZero(), "net cash delta %s", netCash)
	assert.True(t, netMargin.IsZero(), "net margin delta %s", netMargin)
	assert.True(t, netRealized.IsZero(), "net realized delta %s", netRealized)
	assert.True(t, trade.RealizedPnL.Decimal.IsZero())
}

// Scenario 1 from spec §8: open long then close at a higher mark realizes
// a profit equal to (mark-entry)*qty, and releases the full reserved margin.
func TestOpenThenCloseAtProfit(t *testing.T) {
	pos, openDelta, err := Open("pf1", "BTC-USD", domain.SideLong, d("0.01"), d("2"), d("10"), d("50000"), now)
	require.NoError(t, err)

	trade, closeDelta, err := Close(pos, d("55000"), now.Add(time.Hour))
	require.NoError(t, err)

	assert.True(t, trade.RealizedPnL.Decimal.Equal(d("50")), "got %s", trade.RealizedPnL.Decimal)
	assert.True(t, closeDelta.CashDelta.Equal(d("50")))
	assert.True(t, closeDelta.RealizedPnLDelta.Equal(d("50")))
	assert.True(t, closeDelta.ReservedMarginDelta.Equal(openDelta.ReservedMarginDelta.Neg()))
	assert.Equal(t, domain.ActionClose, trade.Action)
	assert.Equal(t, pos.ID, closeDelta.PositionClosedID)
}

func TestCloseShortRealizesInverseSign(t *testing.T) {
	pos, _, err := Open("pf1", "ETH-USD", domain.SideShort, d("1"), d("1"), d("10"), d("100"), now)
	require.NoError(t, err)

	trade, delta, err := Close(pos, d("200"), now)
	require.NoError(t, err)

	assert.True(t, trade.RealizedPnL.Decimal.Equal(d("-100")), "got %s", trade.RealizedPnL.Decimal)
	assert.True(t, delta.CashDelta.Equal(d("-100")))
}

func TestCloseRejectsNilOrBadPrice(t *testing.T) {
	_, _, err := Close(nil, d("100"), now)
	assert.ErrorIs(t, err, ErrNilPosition)

	pos, _, err := Open("pf1", "BTC-USD", domain.SideLong, d("1"), d("1"), d("10"), d("100"), now)
	require.NoError(t, err)
	_, _, err = Close(pos, d("0"), now)
	assert.ErrorIs(t, err, ErrInvalidPrice)
}

func TestRepriceIsIdempotentAndMovesOnlyUnrealized(t *testing.T) {
	pos, _, err := Open("pf1", "BTC-USD", domain.SideLong, d("0.01"), d("2"), d("10"), d("50000"), now)
	require.NoError(t, err)

	pnl1, err := Reprice(pos, d("55000"))
	require.NoError(t, err)
	assert.True(t, pnl1.Equal(d("50")))
	assert.True(t, pos.MarkPrice.Equal(d("55000")))
	marginAfterFirst := pos.ReservedMargin

	pnl2, err := Reprice(pos, d("55000"))
	require.NoError(t, err)
	assert.True(t, pnl2.Equal(pnl1))
	assert.True(t, pos.ReservedMargin.Equal(marginAfterFirst))
}

func TestRepriceRejectsNilOrBadPrice(t *testing.T) {
	_, err := Reprice(nil, d("100"))
	assert.ErrorIs(t, err, ErrNilPosition)

	pos, _, err := Open("pf1", "BTC-USD", domain.SideLong, d("1"), d("1"), d("10"), d("100"), now)
	require.NoError(t, err)
	_, err = Reprice(pos, d("-1"))
	assert.ErrorIs(t, err, ErrInvalidPrice)
}
