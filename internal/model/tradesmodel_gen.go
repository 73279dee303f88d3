package model

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/zeromicro/go-zero/core/stores/cache"
	"github.com/zeromicro/go-zero/core/stores/sqlc"
	"github.com/zeromicro/go-zero/core/stores/sqlx"

	"github.com/shopspring/decimal"
)

var (
	tradesRows = strings.Join([]string{
		"id", "participant_id", "order_id", "action", "symbol", "side", "quantity",
		"executed_price", "realized_pnl", "reserved_margin_delta", "occurred_at",
	}, ",")
	tradesRowsExpectAutoSet = []string{
		"participant_id", "order_id", "action", "symbol", "side", "quantity",
		"executed_price", "realized_pnl", "reserved_margin_delta", "occurred_at",
	}

	cacheTradesIdPrefix = "cache:trades:id:"
)

type (
	tradesModel interface {
		Insert(ctx context.Context, data *Trades) (sql.Result, error)
		FindOne(ctx context.Context, id string) (*Trades, error)
		Update(ctx context.Context, data *Trades) error
		Delete(ctx context.Context, id string) error
	}

	defaultTradesModel struct {
		sqlc.CachedConn
		table string
	}

	// Trades is the raw row shape of the public.trades table: the historical
	// record of one state-changing execution.
	Trades struct {
		Id                  string
		ParticipantId       string
		OrderId             string
		Action              string
		Symbol              string
		Side                string
		Quantity            decimal.Decimal
		ExecutedPrice       decimal.Decimal
		RealizedPnl         decimal.NullDecimal
		ReservedMarginDelta decimal.Decimal
		OccurredAt          sql.NullTime
	}
)

func newTradesModel(conn sqlx.SqlConn, c cache.CacheConf, opts ...cache.Option) *defaultTradesModel {
	return &defaultTradesModel{
		CachedConn: sqlc.NewConn(conn, c, opts...),
		table:      `"public"."trades"`,
	}
}

func (m *defaultTradesModel) FindOne(ctx context.Context, id string) (*Trades, error) {
	key := fmt.Sprintf("%s%v", cacheTradesIdPrefix, id)
	var resp Trades
	err := m.QueryRowCtx(ctx, &resp, key, func(ctx context.Context, conn sqlx.SqlConn, v any) error {
		query := fmt.Sprintf("select %s from %s where id = $1 limit 1", tradesRows, m.table)
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

func (m *defaultTradesModel) Insert(ctx context.Context, data *Trades) (sql.Result, error) {
	key := fmt.Sprintf("%s%v", cacheTradesIdPrefix, data.Id)
	return m.ExecCtx(ctx, func(ctx context.Context, conn sqlx.SqlConn) (sql.Result, error) {
		query := fmt.Sprintf("insert into %s (id, %s) values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)",
			m.table, strings.Join(tradesRowsExpectAutoSet, ", "))
		return conn.ExecCtx(ctx, query, data.Id, data.ParticipantId, data.OrderId, data.Action, data.Symbol,
			data.Side, data.Quantity, data.ExecutedPrice, data.RealizedPnl, data.ReservedMarginDelta, data.OccurredAt)
	}, key)
}

func (m *defaultTradesModel) Update(ctx context.Context, data *Trades) error {
	key := fmt.Sprintf("%s%v", cacheTradesIdPrefix, data.Id)
	_, err := m.ExecCtx(ctx, func(ctx context.Context, conn sqlx.SqlConn) (sql.Result, error) {
		query := fmt.Sprintf("update %s set %s where id = $11", m.table, buildPlaceholders(tradesRowsExpectAutoSet, 1))
		return conn.ExecCtx(ctx, query, data.ParticipantId, data.OrderId, data.Action, data.Symbol,
			data.Side, data.Quantity, data.ExecutedPrice, data.RealizedPnl, data.ReservedMarginDelta, data.OccurredAt, data.Id)
	}, key)
	return err
}

func (m *defaultTradesModel) Delete(ctx context.Context, id string) error {
	key := fmt.Sprintf("%s%v", cacheTradesIdPrefix, id)
	_, err := m.ExecCtx(ctx, func(ctx context.Context, conn sqlx.SqlConn) (sql.Result, error) {
		query := fmt.Sprintf("delete from %s where id = $1", m.table)
		return conn.ExecCtx(ctx, query, id)
	}, key)
	return err
}
