package cache

import (
	"fmt"
	"strings"
	"time"

	"tradearena/internal/config"
)

// Namespace is the Redis key prefix for the trading arena application.
const Namespace = "tradearena"

// TTLClass represents a config-driven TTL bucket.
type TTLClass string

const (
	TTLShort  TTLClass = "short"
	TTLMedium TTLClass = "medium"
	TTLLong   TTLClass = "long"
)

// TTLSet normalises cache TTLs from config into time.Duration values.
type TTLSet struct {
	Short  time.Duration
	Medium time.Duration
	Long   time.Duration
}

// NewTTLSet converts config TTLs (in seconds) into durations.
func NewTTLSet(cfg config.CacheTTL) TTLSet {
	return TTLSet{
		Short:  durationOrDefault(cfg.Short, 10*time.Second),
		Medium: durationOrDefault(cfg.Medium, time.Minute),
		Long:   durationOrDefault(cfg.Long, 5*time.Minute),
	}
}

func durationOrDefault(seconds int, fallback time.Duration) time.Duration {
	if seconds < 0 {
		return 0
	}
	if seconds == 0 {
		return fallback
	}
	return time.Duration(seconds) * time.Second
}

// Duration returns the configured duration for the given TTL class.
func (t TTLSet) Duration(class TTLClass) time.Duration {
	switch class {
	case TTLShort:
		return t.Short
	case TTLMedium:
		return t.Medium
	case TTLLong:
		return t.Long
	default:
		return 0
	}
}

// Scaled applies a multiplier to a TTL class, useful for half/double TTL variants.
func (t TTLSet) Scaled(class TTLClass, factor float64) time.Duration {
	base := t.Duration(class)
	if base <= 0 || factor <= 0 {
		return base
	}
	return time.Duration(float64(base) * factor)
}

func formatKey(parts ...string) string {
	values := make([]string, 0, len(parts)+1)
	values = append(values, Namespace)
	for _, part := range parts {
		clean := strings.TrimSpace(part)
		if clean == "" {
			continue
		}
		values = append(values, clean)
	}
	return strings.Join(values, ":")
}

// --- Price Keys --------------------------------------------------------------

// PriceLatestKey returns the latest mark-price key for one symbol.
func PriceLatestKey(symbol string) string {
	return formatKey("price", "latest", symbol)
}

// PricesSnapshotKey holds the full refreshed price map for one competition.
func PricesSnapshotKey(competitionID string) string {
	return formatKey("prices", "snapshot", competitionID)
}

// --- Portfolio & Position Keys -----------------------------------------------

// PositionsHashKey caches one participant's open positions.
func PositionsHashKey(participantID string) string {
	return formatKey("positions", participantID)
}

// PositionsLockKey is a short-lived lock guarding a participant's reprice/fill path.
func PositionsLockKey(participantID string) string {
	return formatKey("lock", "positions", participantID)
}

// PortfolioKey caches one participant's cash/margin/equity snapshot.
func PortfolioKey(participantID string) string {
	return formatKey("portfolio", participantID)
}

// --- Trades Keys --------------------------------------------------------------

// TradesRecentKey caches the most recent trades for one participant.
func TradesRecentKey(participantID string) string {
	return formatKey("trades", "recent", participantID)
}

// TradeIngestGuardKey prevents duplicate ingestion of the same trade ID.
func TradeIngestGuardKey(tradeID string) string {
	return formatKey("ingest", "trade", tradeID)
}

// --- Leaderboard & Analytics Keys ---------------------------------------------

// LeaderboardZSetKey is the sorted-set of participants ranked by equity for
// one competition (spec §6's leaderboard view, SUPPLEMENTED FEATURE 1).
func LeaderboardZSetKey(competitionID string) string {
	return formatKey("leaderboard", competitionID)
}

// LeaderboardCacheKey stores a pre-rendered leaderboard payload for one
// competition, rebuilt on every portfolio mutation and served with a short
// TTL rather than recomputed per request.
func LeaderboardCacheKey(competitionID string) string {
	return formatKey("leaderboard", "cache", competitionID)
}

// AnalyticsKey caches one participant's aggregated performance analytics
// (cumulative PnL %, Sharpe, win rate).
func AnalyticsKey(participantID string) string {
	return formatKey("analytics", participantID)
}

// SinceInceptionKey caches a participant's since-inception return series.
func SinceInceptionKey(participantID string) string {
	return formatKey("since_inception", participantID)
}

// --- Conversations & Decisions -------------------------------------------------

// ConversationsKey caches the recent decision-record list for one participant.
func ConversationsKey(participantID string) string {
	return formatKey("conversations", participantID)
}

// DecisionLastKey caches a summary of the latest decision cycle.
func DecisionLastKey(participantID string) string {
	return formatKey("decision", "last", participantID)
}

// --- Trader State ---------------------------------------------------------------

// TraderStateKey caches one participant's scheduling/pause state.
func TraderStateKey(participantID string) string {
	return formatKey("trader", participantID, "state")
}

// --- TTL Helpers ------------------------------------------------------------

// PriceTTL returns the TTL for individual latest-price keys.
func PriceTTL(ttl TTLSet) time.Duration {
	return ttl.Duration(TTLShort)
}

// PricesSnapshotTTL returns the TTL for a competition's full price snapshot.
func PricesSnapshotTTL(ttl TTLSet) time.Duration {
	return ttl.Duration(TTLShort)
}

// PositionsTTL returns the TTL for positions hash payloads.
func PositionsTTL(ttl TTLSet) time.Duration {
	return ttl.Scaled(TTLMedium, 0.5) // target ~30s when medium=60s
}

// PositionsLockTTL returns the TTL for recompute locks.
func PositionsLockTTL(ttl TTLSet) time.Duration {
	return ttl.Scaled(TTLShort, 0.5) // target ~5s when short=10s
}

// PortfolioTTL returns the TTL for cached portfolio snapshots.
func PortfolioTTL(ttl TTLSet) time.Duration {
	return ttl.Duration(TTLShort)
}

// TradesRecentTTL returns the TTL for recent trades lists.
func TradesRecentTTL(ttl TTLSet) time.Duration {
	return ttl.Duration(TTLMedium)
}

// TradeIngestGuardTTL returns the TTL for trade idempotency guards.
func TradeIngestGuardTTL() time.Duration {
	return 24 * time.Hour
}

// LeaderboardTTL returns the TTL for the rendered leaderboard payload — kept
// short since it is rebuilt on every portfolio mutation.
func LeaderboardTTL(ttl TTLSet) time.Duration {
	return ttl.Duration(TTLShort)
}

// SinceInceptionTTL returns the TTL for since-inception caches.
func SinceInceptionTTL(ttl TTLSet) time.Duration {
	return ttl.Duration(TTLLong)
}

// AnalyticsTTL returns the TTL for analytics payloads.
func AnalyticsTTL(ttl TTLSet) time.Duration {
	return ttl.Scaled(TTLLong, 2) // target ~600s when long=300s
}

// ConversationsTTL returns the TTL for conversation lists.
func ConversationsTTL(ttl TTLSet) time.Duration {
	return ttl.Duration(TTLLong)
}

// DecisionLastTTL returns the TTL for last decision snapshots.
func DecisionLastTTL(ttl TTLSet) time.Duration {
	return ttl.Duration(TTLMedium)
}

// TraderStateTTL returns the TTL for cached trader state.
func TraderStateTTL(ttl TTLSet) time.Duration {
	return ttl.Duration(TTLMedium)
}

// FormatCacheKey is exported for dynamic key construction when patterns are
// not covered by helpers (e.g. segmented analytics keys).
func FormatCacheKey(parts ...string) string {
	return formatKey(parts...)
}

// BuildKeyWithSuffix appends an arbitrary suffix to an existing key.
func BuildKeyWithSuffix(baseKey, suffix string) string {
	if strings.TrimSpace(suffix) == "" {
		return baseKey
	}
	return fmt.Sprintf("%s:%s", baseKey, strings.TrimSpace(suffix))
}
