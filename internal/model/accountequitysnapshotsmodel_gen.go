package model

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/zeromicro/go-zero/core/stores/cache"
	"github.com/zeromicro/go-zero/core/stores/sqlc"
	"github.com/zeromicro/go-zero/core/stores/sqlx"
)

var (
	accountEquitySnapshotsRows = strings.Join([]string{
		"id", "participant_id", "competition_id", "occurred_at", "equity",
		"realized_pnl", "unrealized_pnl", "cum_pnl_pct", "sharpe_ratio",
	}, ",")
	accountEquitySnapshotsRowsExpectAutoSet = []string{
		"participant_id", "competition_id", "occurred_at", "equity",
		"realized_pnl", "unrealized_pnl", "cum_pnl_pct", "sharpe_ratio",
	}

	cacheAccountEquitySnapshotsIdPrefix = "cache:accountEquitySnapshots:id:"
)

type (
	// accountEquitySnapshotsModel holds the generated-style CRUD surface. One
	// row is appended per participant each price-refresh tick, feeding the
	// trailing-Sharpe circuit breaker and the leaderboard's equity-history view.
	accountEquitySnapshotsModel interface {
		Insert(ctx context.Context, data *AccountEquitySnapshots) (sql.Result, error)
		FindOne(ctx context.Context, id string) (*AccountEquitySnapshots, error)
		Delete(ctx context.Context, id string) error
	}

	defaultAccountEquitySnapshotsModel struct {
		sqlc.CachedConn
		table string
	}

	// AccountEquitySnapshots is the raw row shape of the
	// public.account_equity_snapshots table.
	AccountEquitySnapshots struct {
		Id            string
		ParticipantId string
		CompetitionId string
		OccurredAt    sql.NullTime
		Equity        decimal.Decimal
		RealizedPnl   decimal.Decimal
		UnrealizedPnl decimal.Decimal
		CumPnlPct     decimal.NullDecimal
		SharpeRatio   decimal.NullDecimal
	}
)

func newAccountEquitySnapshotsModel(conn sqlx.SqlConn, c cache.CacheConf, opts ...cache.Option) *defaultAccountEquitySnapshotsModel {
	return &defaultAccountEquitySnapshotsModel{
		CachedConn: sqlc.NewConn(conn, c, opts...),
		table:      `"public"."account_equity_snapshots"`,
	}
}

func (m *defaultAccountEquitySnapshotsModel) FindOne(ctx context.Context, id string) (*AccountEquitySnapshots, error) {
	key := fmt.Sprintf("%s%v", cacheAccountEquitySnapshotsIdPrefix, id)
	var resp AccountEquitySnapshots
	err := m.QueryRowCtx(ctx, &resp, key, func(ctx context.Context, conn sqlx.SqlConn, v any) error {
		query := fmt.Sprintf("select %s from %s where id = $1 limit 1", accountEquitySnapshotsRows, m.table)
		return conn.QueryRowCtx(ctx, v, query, id)
	})
	switch err {
	case nil:
		return &resp, nil
	case sqlc.ErrNotFound:
		return nil, ErrNotFound
	default:
		return nil, err
	}
}

func (m *defaultAccountEquitySnapshotsModel) Insert(ctx context.Context, data *AccountEquitySnapshots) (sql.Result, error) {
	key := fmt.Sprintf("%s%v", cacheAccountEquitySnapshotsIdPrefix, data.Id)
	return m.ExecCtx(ctx, func(ctx context.Context, conn sqlx.SqlConn) (sql.Result, error) {
		query := fmt.Sprintf("insert into %s (id, %s) values ($1, $2, $3, $4, $5, $6, $7, $8, $9)",
			m.table, strings.Join(accountEquitySnapshotsRowsExpectAutoSet, ", "))
		return conn.ExecCtx(ctx, query, data.Id, data.ParticipantId, data.CompetitionId, data.OccurredAt,
			data.Equity, data.RealizedPnl, data.UnrealizedPnl, data.CumPnlPct, data.SharpeRatio)
	}, key)
}

func (m *defaultAccountEquitySnapshotsModel) Delete(ctx context.Context, id string) error {
	key := fmt.Sprintf("%s%v", cacheAccountEquitySnapshotsIdPrefix, id)
	_, err := m.ExecCtx(ctx, func(ctx context.Context, conn sqlx.SqlConn) (sql.Result, error) {
		query := fmt.Sprintf("delete from %s where id = $1", m.table)
		return conn.ExecCtx(ctx, query, id)
	}, key)
	return err
}
