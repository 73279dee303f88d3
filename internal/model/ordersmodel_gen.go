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
	ordersRows = strings.Join([]string{
		"id", "participant_id", "decision_id", "action", "symbol", "side", "quantity",
		"leverage", "target_position_id", "status", "reject_reason", "executed_price", "created_at",
	}, ",")
	ordersRowsExpectAutoSet = []string{
		"participant_id", "decision_id", "action", "symbol", "side", "quantity",
		"leverage", "target_position_id", "status", "reject_reason", "executed_price",
	}

	cacheOrdersIdPrefix = "cache:orders:id:"
)

type (
	ordersModel interface {
		Insert(ctx context.Context, data *Orders) (sql.Result, error)
		FindOne(ctx context.Context, id string) (*Orders, error)
		Update(ctx context.Context, data *Orders) error
		Delete(ctx context.Context, id string) error
	}

	defaultOrdersModel struct {
		sqlc.CachedConn
		table string
	}

	// Orders is the raw row shape of the public.orders table: one intended
	// action from a parsed decision, before or after execution.
	Orders struct {
		Id                string
		ParticipantId     string
		DecisionId        sql.NullString
		Action            string
		Symbol            string
		Side              sql.NullString
		Quantity          decimal.NullDecimal
		Leverage          decimal.NullDecimal
		TargetPositionId  sql.NullString
		Status            string
		RejectReason      sql.NullString
		ExecutedPrice     decimal.NullDecimal
		CreatedAt         sql.NullTime
	}
)

func newOrdersModel(conn sqlx.SqlConn, c cache.CacheConf, opts ...cache.Option) *defaultOrdersModel {
	return &defaultOrdersModel{
		CachedConn: sqlc.NewConn(conn, c, opts...),
		table:      `"public"."orders"`,
	}
}

func (m *defaultOrdersModel) FindOne(ctx context.Context, id string) (*Orders, error) {
	key := fmt.Sprintf("%s%v", cacheOrdersIdPrefix, id)
	var resp Orders
	err := m.QueryRowCtx(ctx, &resp, key, func(ctx context.Context, conn sqlx.SqlConn, v any) error {
		query := fmt.Sprintf("select %s from %s where id = $1 limit 1", ordersRows, m.table)
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

func (m *defaultOrdersModel) Insert(ctx context.Context, data *Orders) (sql.Result, error) {
	key := fmt.Sprintf("%s%v", cacheOrdersIdPrefix, data.Id)
	return m.ExecCtx(ctx, func(ctx context.Context, conn sqlx.SqlConn) (sql.Result, error) {
		query := fmt.Sprintf("insert into %s (id, %s, created_at) values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, now())",
			m.table, strings.Join(ordersRowsExpectAutoSet, ", "))
		return conn.ExecCtx(ctx, query, data.Id, data.ParticipantId, data.DecisionId, data.Action,
			data.Symbol, data.Side, data.Quantity, data.Leverage, data.TargetPositionId,
			data.Status, data.RejectReason, data.ExecutedPrice)
	}, key)
}

func (m *defaultOrdersModel) Update(ctx context.Context, data *Orders) error {
	key := fmt.Sprintf("%s%v", cacheOrdersIdPrefix, data.Id)
	_, err := m.ExecCtx(ctx, func(ctx context.Context, conn sqlx.SqlConn) (sql.Result, error) {
		query := fmt.Sprintf("update %s set %s where id = $12", m.table, buildPlaceholders(ordersRowsExpectAutoSet, 1))
		return conn.ExecCtx(ctx, query, data.ParticipantId, data.DecisionId, data.Action,
			data.Symbol, data.Side, data.Quantity, data.Leverage, data.TargetPositionId,
			data.Status, data.RejectReason, data.ExecutedPrice, data.Id)
	}, key)
	return err
}

func (m *defaultOrdersModel) Delete(ctx context.Context, id string) error {
	key := fmt.Sprintf("%s%v", cacheOrdersIdPrefix, id)
	_, err := m.ExecCtx(ctx, func(ctx context.Context, conn sqlx.SqlConn) (sql.Result, error) {
		query := fmt.Sprintf("delete from %s where id = $1", m.table)
		return conn.ExecCtx(ctx, query, id)
	}, key)
	return err
}
