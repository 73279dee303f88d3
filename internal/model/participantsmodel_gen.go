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
	participantsRows = strings.Join([]string{
		"id", "competition_id", "display_name", "model_provider", "model_id",
		"model_config_blob", "invocation_timeout_ms", "status", "current_equity",
		"peak_equity", "total_trades", "winning_trades", "losing_trades",
		"created_at", "updated_at",
	}, ",")
	participantsRowsExpectAutoSet = []string{
		"competition_id", "display_name", "model_provider", "model_id",
		"model_config_blob", "invocation_timeout_ms", "status", "current_equity",
		"peak_equity", "total_trades", "winning_trades", "losing_trades",
	}

	cacheParticipantsIdPrefix = "cache:participants:id:"
)

type (
	participantsModel interface {
		Insert(ctx context.Context, data *Participants) (sql.Result, error)
		FindOne(ctx context.Context, id string) (*Participants, error)
		Update(ctx context.Context, data *Participants) error
		Delete(ctx context.Context, id string) error
	}

	defaultParticipantsModel struct {
		sqlc.CachedConn
		table string
	}

	// Participants is the raw row shape of the public.participants table.
	Participants struct {
		Id                  string
		CompetitionId       string
		DisplayName         string
		ModelProvider       string
		ModelId             string
		ModelConfigBlob     []byte
		InvocationTimeoutMs int64
		Status              string
		CurrentEquity       decimal.Decimal
		PeakEquity          decimal.Decimal
		TotalTrades         int64
		WinningTrades       int64
		LosingTrades        int64
		CreatedAt           sql.NullTime
		UpdatedAt           sql.NullTime
	}
)

func newParticipantsModel(conn sqlx.SqlConn, c cache.CacheConf, opts ...cache.Option) *defaultParticipantsModel {
	return &defaultParticipantsModel{
		CachedConn: sqlc.NewConn(conn, c, opts...),
		table:      `"public"."participants"`,
	}
}

func (m *defaultParticipantsModel) FindOne(ctx context.Context, id string) (*Participants, error) {
	key := fmt.Sprintf("%s%v", cacheParticipantsIdPrefix, id)
	var resp Participants
	err := m.QueryRowCtx(ctx, &resp, key, func(ctx context.Context, conn sqlx.SqlConn, v any) error {
		query := fmt.Sprintf("select %s from %s where id = $1 limit 1", participantsRows, m.table)
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

func (m *defaultParticipantsModel) Insert(ctx context.Context, data *Participants) (sql.Result, error) {
	key := fmt.Sprintf("%s%v", cacheParticipantsIdPrefix, data.Id)
	return m.ExecCtx(ctx, func(ctx context.Context, conn sqlx.SqlConn) (sql.Result, error) {
		query := fmt.Sprintf("insert into %s (id, %s, created_at, updated_at) values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, now(), now())",
			m.table, strings.Join(participantsRowsExpectAutoSet, ", "))
		return conn.ExecCtx(ctx, query, data.Id, data.CompetitionId, data.DisplayName, data.ModelProvider,
			data.ModelId, data.ModelConfigBlob, data.InvocationTimeoutMs, data.Status, data.CurrentEquity,
			data.PeakEquity, data.TotalTrades, data.WinningTrades, data.LosingTrades)
	}, key)
}

func (m *defaultParticipantsModel) Update(ctx context.Context, data *Participants) error {
	key := fmt.Sprintf("%s%v", cacheParticipantsIdPrefix, data.Id)
	_, err := m.ExecCtx(ctx, func(ctx context.Context, conn sqlx.SqlConn) (sql.Result, error) {
		query := fmt.Sprintf("update %s set %s, updated_at = now() where id = $13", m.table, buildPlaceholders(participantsRowsExpectAutoSet, 1))
		return conn.ExecCtx(ctx, query, data.CompetitionId, data.DisplayName, data.ModelProvider,
			data.ModelId, data.ModelConfigBlob, data.InvocationTimeoutMs, data.Status, data.CurrentEquity,
			data.PeakEquity, data.TotalTrades, data.WinningTrades, data.LosingTrades, data.Id)
	}, key)
	return err
}

func (m *defaultParticipantsModel) Delete(ctx context.Context, id string) error {
	key := fmt.Sprintf("%s%v", cacheParticipantsIdPrefix, id)
	_, err := m.ExecCtx(ctx, func(ctx context.Context, conn sqlx.SqlConn) (sql.Result, error) {
		query := fmt.Sprintf("delete from %s where id = $1", m.table)
		return conn.ExecCtx(ctx, query, id)
	}, key)
	return err
}
