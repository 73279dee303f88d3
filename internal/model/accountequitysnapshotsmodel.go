package model

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/zeromicro/go-zero/core/stores/cache"
	"github.com/zeromicro/go-zero/core/stores/sqlx"
)

var _ AccountEquitySnapshotsModel = (*customAccountEquitySnapshotsModel)(nil)

// EquitySnapshot is one point on a participant's equity curve, used both to
// render leaderboard history and to feed the trailing-Sharpe circuit breaker.
type EquitySnapshot struct {
	ParticipantID string
	CompetitionID string
	Equity        decimal.Decimal
	RealizedPnl   decimal.Decimal
	UnrealizedPnl decimal.Decimal
	CumPnlPct     *decimal.Decimal
	SharpeRatio   *decimal.Decimal
}

type (
	// AccountEquitySnapshotsModel is an interface to be customized, add more methods here,
	// and implement the added methods in customAccountEquitySnapshotsModel.
	AccountEquitySnapshotsModel interface {
		accountEquitySnapshotsModel
		RecordSnapshot(ctx context.Context, s *EquitySnapshot) error
		LatestByCompetition(ctx context.Context, competitionID string, participantIDs []string) (map[string]EquitySnapshot, error)
		TrailingReturns(ctx context.Context, participantID string, lookback int) ([]decimal.Decimal, error)
	}

	customAccountEquitySnapshotsModel struct {
		*defaultAccountEquitySnapshotsModel
	}
)

// NewAccountEquitySnapshotsModel returns a model for the database table.
func NewAccountEquitySnapshotsModel(conn sqlx.SqlConn, c cache.CacheConf, opts ...cache.Option) AccountEquitySnapshotsModel {
	return &customAccountEquitySnapshotsModel{
		defaultAccountEquitySnapshotsModel: newAccountEquitySnapshotsModel(conn, c, opts...),
	}
}

// RecordSnapshot appends one equity point for a participant. Nothing in this
// module calls it; the scheduler's price-refresh tick records no equity
// snapshots.
func (m *customAccountEquitySnapshotsModel) RecordSnapshot(ctx context.Context, s *EquitySnapshot) error {
	row := &AccountEquitySnapshots{
		Id:            uuid.NewString(),
		ParticipantId: s.ParticipantID,
		CompetitionId: s.CompetitionID,
		OccurredAt:    nullTime(time.Now()),
		Equity:        s.Equity,
		RealizedPnl:   s.RealizedPnl,
		UnrealizedPnl: s.UnrealizedPnl,
	}
	if s.CumPnlPct != nil {
		row.CumPnlPct = decimal.NullDecimal{Decimal: *s.CumPnlPct, Valid: true}
	}
	if s.SharpeRatio != nil {
		row.SharpeRatio = decimal.NullDecimal{Decimal: *s.SharpeRatio, Valid: true}
	}
	_, err := m.Insert(ctx, row)
	return err
}

// LatestByCompetition loads the newest equity snapshot per participant.
// When participantIDs is empty it returns every participant in the
// competition that has at least one snapshot.
func (m *customAccountEquitySnapshotsModel) LatestByCompetition(ctx context.Context, competitionID string, participantIDs []string) (map[string]EquitySnapshot, error) {
	const baseQuery = `
SELECT DISTINCT ON (participant_id)
    participant_id, competition_id, occurred_at, equity,
    realized_pnl, unrealized_pnl, cum_pnl_pct, sharpe_ratio
FROM public.account_equity_snapshots
WHERE competition_id = $1 %s
ORDER BY participant_id, occurred_at DESC`

	args := []any{competitionID}
	clause := ""
	if len(participantIDs) > 0 {
		clause = "AND participant_id = ANY($2)"
		args = append(args, pq.Array(participantIDs))
	}

	var rows []AccountEquitySnapshots
	if err := m.QueryRowsNoCacheCtx(ctx, &rows, fmt.Sprintf(baseQuery, clause), args...); err != nil {
		return nil, fmt.Errorf("accountEquitySnapshots.LatestByCompetition query: %w", err)
	}

	result := make(map[string]EquitySnapshot, len(rows))
	for i := range rows {
		result[rows[i].ParticipantId] = buildEquitySnapshot(&rows[i])
	}
	return result, nil
}

// TrailingReturns returns the last `lookback` period-over-period equity
// returns for a participant, oldest first, for SharpeRatio's input.
func (m *customAccountEquitySnapshotsModel) TrailingReturns(ctx context.Context, participantID string, lookback int) ([]decimal.Decimal, error) {
	if lookback <= 0 {
		lookback = 20
	}
	query := fmt.Sprintf(`
SELECT %s FROM %s
WHERE participant_id = $1
ORDER BY occurred_at DESC
LIMIT $2`, accountEquitySnapshotsRows, m.table)
	var rows []AccountEquitySnapshots
	if err := m.QueryRowsNoCacheCtx(ctx, &rows, query, participantID, lookback+1); err != nil {
		return nil, fmt.Errorf("accountEquitySnapshots.TrailingReturns query: %w", err)
	}
	if len(rows) < 2 {
		return nil, nil
	}
	// rows are newest-first; walk backwards to compute oldest-first
	// period returns as equity(t) / equity(t-1) - 1.
	returns := make([]decimal.Decimal, 0, len(rows)-1)
	for i := len(rows) - 1; i > 0; i-- {
		prev, cur := rows[i].Equity, rows[i-1].Equity
		if prev.Sign() <= 0 {
			continue
		}
		returns = append(returns, cur.Sub(prev).DivRound(prev, 8))
	}
	return returns, nil
}

func buildEquitySnapshot(row *AccountEquitySnapshots) EquitySnapshot {
	snapshot := EquitySnapshot{
		ParticipantID: row.ParticipantId,
		CompetitionID: row.CompetitionId,
		Equity:        row.Equity,
		RealizedPnl:   row.RealizedPnl,
		UnrealizedPnl: row.UnrealizedPnl,
	}
	if row.CumPnlPct.Valid {
		value := row.CumPnlPct.Decimal
		snapshot.CumPnlPct = &value
	}
	if row.SharpeRatio.Valid {
		value := row.SharpeRatio.Decimal
		snapshot.SharpeRatio = &value
	}
	return snapshot
}
