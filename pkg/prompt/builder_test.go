package prompt

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradearena/pkg/domain"
	"tradearena/pkg/orchestrator"
	"tradearena/pkg/portfolio"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func sampleSnapshot() orchestrator.RoundSnapshot {
	pf := &domain.Portfolio{
		ID: "pf1", ParticipantID: "alice", Cash: d("10000"), ReservedMargin: d("500"),
		Positions: []*domain.Position{
			{ID: "pos1", Symbol: "BTC-USD", Side: domain.SideLong, Quantity: d("0.01"), EntryPrice: d("50000"), MarkPrice: d("51000"), Leverage: d("2"), ReservedMargin: d("250")},
		},
	}
	return orchestrator.RoundSnapshot{
		Participant: &domain.Participant{ID: "alice", DisplayName: "Alice Bot"},
		Competition: &domain.Competition{
			ID: "comp1", Name: "Summer Cup", MaxLeverage: d("10"),
			AllowedInstruments: map[string]struct{}{"BTC-USD": {}},
		},
		Portfolio: portfolio.Snapshot{
			Portfolio: pf, Equity: d("10500"), UnrealizedPnL: d("10"),
			CurrentLeverage: d("1.5"), MarginLevelPct: d("200"), AvailableMargin: d("9500"),
		},
		Prices:       map[string]decimal.Decimal{"BTC-USD": d("51000")},
		RecentTrades: []*domain.Trade{{Action: domain.ActionOpen, Symbol: "BTC-USD", Side: domain.SideLong, Quantity: d("0.01"), ExecutedPrice: d("50000"), OccurredAt: time.Now()}},
		Leaderboard:  []orchestrator.LeaderboardEntry{{ParticipantID: "alice", Equity: d("10500"), TotalTrades: 3, Rank: 1}},
		SizeCap:      d("5000"),
	}
}

func TestBuildQuotesExactSizeCap(t *testing.T) {
	b, err := NewBuilder()
	require.NoError(t, err)

	out, err := b.Build(sampleSnapshot())
	require.NoError(t, err)
	assert.Contains(t, out, "5000")
	assert.Contains(t, out, "Per-order notional cap")
}

func TestBuildStatesLeverageAffectsMarginNotCap(t *testing.T) {
	b, err := NewBuilder()
	require.NoError(t, err)

	out, err := b.Build(sampleSnapshot())
	require.NoError(t, err)
	assert.Contains(t, strings.ToLower(out), "does not raise the notional cap")
}

func TestBuildAdvertisesSafetyBuffer(t *testing.T) {
	b, err := NewBuilder(WithSafetyBufferPct(d("10")))
	require.NoError(t, err)

	out, err := b.Build(sampleSnapshot())
	require.NoError(t, err)
	assert.Contains(t, out, "4500") // 5000 * (1 - 10%)
	assert.Contains(t, out, "10% under the cap")
}

func TestBuildIncludesPositionsAndLeaderboard(t *testing.T) {
	b, err := NewBuilder()
	require.NoError(t, err)

	out, err := b.Build(sampleSnapshot())
	require.NoError(t, err)
	assert.Contains(t, out, "BTC-USD")
	assert.Contains(t, out, "Alice Bot")
	assert.Contains(t, out, "#1 alice")
}

func TestBuildRejectsSnapshotWithoutPortfolio(t *testing.T) {
	b, err := NewBuilder()
	require.NoError(t, err)

	_, err = b.Build(orchestrator.RoundSnapshot{})
	assert.Error(t, err)
}

func TestWithTemplateFileOverridesDefault(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.tmpl")
	require.NoError(t, os.WriteFile(path, []byte("custom prompt for {{.Participant.DisplayName}}"), 0o600))

	b, err := NewBuilder(WithTemplateFile(path))
	require.NoError(t, err)

	out, err := b.Build(sampleSnapshot())
	require.NoError(t, err)
	assert.Equal(t, "custom prompt for Alice Bot", out)
}

func TestWithTemplateFileMissingPathErrors(t *testing.T) {
	_, err := NewBuilder(WithTemplateFile("/nonexistent/path.tmpl"))
	assert.Error(t, err)
}
