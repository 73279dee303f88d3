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
	competitionsRows = strings.Join([]string{
		"id", "name", "status", "start_at", "end_at", "initial_capital", "max_leverage",
		"max_position_size_pct", "margin_requirement_pct", "maintenance_margin_pct",
		"invocation_interval_min", "allowed_instruments", "max_participants",
		"market_hours_only", "created_at", "updated_at",
	}, ",")
	competitionsRowsExpectAutoSet = []string{
		"name", "status", "start_at", "end_at", "initial_capital", "max_leverage",
		"max_position_size_pct", "margin_requirement_pct", "maintenance_margin_pct",
		"invocation_interval_min", "allowed_instruments", "max_participants", "market_hours_only",
	}

	cacheCompetitionsIdPrefix = "cache:competitions:id:"
)

type (
	competitionsModel interface {
		Insert(ctx context.Context, data *Competitions) (sql.Result, error)
		FindOne(ctx context.Context, id string) (*Competitions, error)
		Update(ctx context.Context, data *Competitions) error
		Delete(ctx context.Context, id string) error
	}

	defaultCompetitionsModel struct {
		sqlc.CachedConn
		table string
	}

	// Competitions is the raw row shape of the public.competitions table.
	Competitions struct {
		Id                    string
		Name                  string
		Status                string
		StartAt               sql.NullTime
		EndAt                 sql.NullTime
		InitialCapital        decimal.Decimal
		MaxLeverage           decimal.Decimal
		MaxPositionSizePct    decimal.Decimal
		MarginRequirementPct  decimal.Decimal
		MaintenanceMarginPct  decimal.Decimal
		InvocationIntervalMin int64
		AllowedInstruments    []byte
		MaxParticipants       int64
		MarketHoursOnly       bool
		CreatedAt             sql.NullTime
		UpdatedAt             sql.NullTime
	}
)

func newCompetitionsModel(conn sqlx.SqlConn, c cache.CacheConf, opts ...cache.Option) *defaultCompetitionsModel {
	return &defaultCompetitionsModel{
		CachedConn: sqlc.NewConn(conn, c, opts...),
		table:      `"public"."competitions"`,
	}
}

func (m *defaultCompetitionsModel) FindOne(ctx context.Context, id string) (*Competitions, error) {
	key := fmt.Sprintf("%s%v", cacheCompetitionsIdPrefix, id)
	var resp Competitions
	err := m.QueryRowCtx(ctx, &resp, key, func(ctx context.Context, conn sqlx.SqlConn, v any) error {
		query := fmt.Sprintf("select %s from %s where id = $1 limit 1", competitionsRows, m.table)
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

func (m *defaultCompetitionsModel) Insert(ctx context.Context, data *Competitions) (sql.Result, error) {
	key := fmt.Sprintf("%s%v", cacheCompetitionsIdPrefix, data.Id)
	return m.ExecCtx(ctx, func(ctx context.Context, conn sqlx.SqlConn) (sql.Result, error) {
		query := fmt.Sprintf("insert into %s (id, %s, created_at, updated_at) values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, now(), now())",
			m.table, strings.Join(competitionsRowsExpectAutoSet, ", "))
		return conn.ExecCtx(ctx, query, data.Id, data.Name, data.Status, data.StartAt, data.EndAt,
			data.InitialCapital, data.MaxLeverage, data.MaxPositionSizePct, data.MarginRequirementPct,
			data.MaintenanceMarginPct, data.InvocationIntervalMin, data.AllowedInstruments,
			data.MaxParticipants, data.MarketHoursOnly)
	}, key)
}

func (m *defaultCompetitionsModel) Update(ctx context.Context, data *Competitions) error {
	key := fmt.Sprintf("%s%v", cacheCompetitionsIdPrefix, data.Id)
	_, err := m.ExecCtx(ctx, func(ctx context.Context, conn sqlx.SqlConn) (sql.Result, error) {
		query := fmt.Sprintf("update %s set %s, updated_at = now() where id = $14", m.table, buildPlaceholders(competitionsRowsExpectAutoSet, 1))
		return conn.ExecCtx(ctx, query, data.Name, data.Status, data.StartAt, data.EndAt,
			data.InitialCapital, data.MaxLeverage, data.MaxPositionSizePct, data.MarginRequirementPct,
			data.MaintenanceMarginPct, data.InvocationIntervalMin, data.AllowedInstruments,
			data.MaxParticipants, data.MarketHoursOnly, data.Id)
	}, key)
	return err
}

func (m *defaultCompetitionsModel) Delete(ctx context.Context, id string) error {
	key := fmt.Sprintf("%s%v", cacheCompetitionsIdPrefix, id)
	_, err := m.ExecCtx(ctx, func(ctx context.Context, conn sqlx.SqlConn) (sql.Result, error) {
		query := fmt.Sprintf("delete from %s where id = $1", m.table)
		return conn.ExecCtx(ctx, query, id)
	}, key)
	return err
}
