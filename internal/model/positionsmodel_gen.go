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
	positionsRows = strings.Join([]string{
		"id", "portfolio_id", "symbol", "side", "quantity", "entry_price",
		"mark_price", "leverage", "reserved_margin", "opened_at",
	}, ",")
	positionsRowsExpectAutoSet = []string{
		"portfolio_id", "symbol", "side", "quantity", "entry_price",
		"mark_price", "leverage", "reserved_margin", "opened_at",
	}

	cachePositionsIdPrefix = "cache:positions:id:"
)

type (
	positionsModel interface {
		Insert(ctx context.Context, data *Positions) (sql.Result, error)
		FindOne(ctx context.Context, id string) (*Positions, error)
		Update(ctx context.Context, data *Positions) error
		Delete(ctx context.Context, id string) error
	}

	defaultPositionsModel struct {
		sqlc.CachedConn
		table string
	}

	// Positions is the raw row shape of the public.positions table: one open
	// CFD leg of a participant's portfolio.
	Positions struct {
		Id             string
		PortfolioId    string
		Symbol         string
		Side           string
		Quantity       decimal.Decimal
		EntryPrice     decimal.Decimal
		MarkPrice      decimal.Decimal
		Leverage       decimal.Decimal
		ReservedMargin decimal.Decimal
		OpenedAt       sql.NullTime
	}
)

func newPositionsModel(conn sqlx.SqlConn, c cache.CacheConf, opts ...cache.Option) *defaultPositionsModel {
	return &defaultPositionsModel{
		CachedConn: sqlc.NewConn(conn, c, opts...),
		table:      `"public"."positions"`,
	}
}

func (m *defaultPositionsModel) FindOne(ctx context.Context, id string) (*Positions, error) {
	key := fmt.Sprintf("%s%v", cachePositionsIdPrefix, id)
	var resp Positions
	err := m.QueryRowCtx(ctx, &resp, key, func(ctx context.Context, conn sqlx.SqlConn, v any) error {
		query := fmt.Sprintf("select %s from %s where id = $1 limit 1", positionsRows, m.table)
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

func (m *defaultPositionsModel) Insert(ctx context.Context, data *Positions) (sql.Result, error) {
	key := fmt.Sprintf("%s%v", cachePositionsIdPrefix, data.Id)
	return m.ExecCtx(ctx, func(ctx context.Context, conn sqlx.SqlConn) (sql.Result, error) {
		query := fmt.Sprintf("insert into %s (id, %s) values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)",
			m.table, strings.Join(positionsRowsExpectAutoSet, ", "))
		return conn.ExecCtx(ctx, query, data.Id, data.PortfolioId, data.Symbol, data.Side, data.Quantity,
			data.EntryPrice, data.MarkPrice, data.Leverage, data.ReservedMargin, data.OpenedAt)
	}, key)
}

func (m *defaultPositionsModel) Update(ctx context.Context, data *Positions) error {
	key := fmt.Sprintf("%s%v", cachePositionsIdPrefix, data.Id)
	_, err := m.ExecCtx(ctx, func(ctx context.Context, conn sqlx.SqlConn) (sql.Result, error) {
		query := fmt.Sprintf("update %s set %s where id = $10", m.table, buildPlaceholders(positionsRowsExpectAutoSet, 1))
		return conn.ExecCtx(ctx, query, data.PortfolioId, data.Symbol, data.Side, data.Quantity,
			data.EntryPrice, data.MarkPrice, data.Leverage, data.ReservedMargin, data.OpenedAt, data.Id)
	}, key)
	return err
}

func (m *defaultPositionsModel) Delete(ctx context.Context, id string) error {
	key := fmt.Sprintf("%s%v", cachePositionsIdPrefix, id)
	_, err := m.ExecCtx(ctx, func(ctx context.Context, conn sqlx.SqlConn) (sql.Result, error) {
		query := fmt.Sprintf("delete from %s where id = $1", m.table)
		return conn.ExecCtx(ctx, query, id)
	}, key)
	return err
}
