package model

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/zeromicro/go-zero/core/stores/cache"
	"github.com/zeromicro/go-zero/core/stores/sqlc"
	"github.com/zeromicro/go-zero/core/stores/sqlx"
)

var (
	traderStateRows = strings.Join([]string{
		"participant_id", "paused", "paused_reason", "paused_at",
		"last_invoked_at", "next_due_at",
	}, ",")
	traderStateRowsExpectAutoSet = []string{
		"paused", "paused_reason", "paused_at", "last_invoked_at", "next_due_at",
	}

	cacheTraderStateParticipantIdPrefix = "cache:traderState:participantId:"
)

type (
	// traderStateModel holds the generated-style CRUD surface, keyed by
	// participant_id rather than a synthetic id: exactly one scheduling-state
	// row exists per participant.
	traderStateModel interface {
		Insert(ctx context.Context, data *TraderState) (sql.Result, error)
		FindOne(ctx context.Context, participantID string) (*TraderState, error)
		Update(ctx context.Context, data *TraderState) error
		Delete(ctx context.Context, participantID string) error
	}

	defaultTraderStateModel struct {
		sqlc.CachedConn
		table string
	}

	// TraderState is the raw row shape of the public.trader_state table: the
	// scheduler's view of a participant, independent of Participant.Status.
	// Pausing here is a scheduling throttle (spec SUPPLEMENTED FEATURE 3), not
	// a lifecycle transition — a paused participant keeps its positions.
	TraderState struct {
		ParticipantId string
		Paused        bool
		PausedReason  sql.NullString
		PausedAt      sql.NullTime
		LastInvokedAt sql.NullTime
		NextDueAt     sql.NullTime
	}
)

func newTraderStateModel(conn sqlx.SqlConn, c cache.CacheConf, opts ...cache.Option) *defaultTraderStateModel {
	return &defaultTraderStateModel{
		CachedConn: sqlc.NewConn(conn, c, opts...),
		table:      `"public"."trader_state"`,
	}
}

func (m *defaultTraderStateModel) FindOne(ctx context.Context, participantID string) (*TraderState, error) {
	key := fmt.Sprintf("%s%v", cacheTraderStateParticipantIdPrefix, participantID)
	var resp TraderState
	err := m.QueryRowCtx(ctx, &resp, key, func(ctx context.Context, conn sqlx.SqlConn, v any) error {
		query := fmt.Sprintf("select %s from %s where participant_id = $1 limit 1", traderStateRows, m.table)
		return conn.QueryRowCtx(ctx, v, query, participantID)
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

func (m *defaultTraderStateModel) Insert(ctx context.Context, data *TraderState) (sql.Result, error) {
	key := fmt.Sprintf("%s%v", cacheTraderStateParticipantIdPrefix, data.ParticipantId)
	return m.ExecCtx(ctx, func(ctx context.Context, conn sqlx.SqlConn) (sql.Result, error) {
		query := fmt.Sprintf("insert into %s (participant_id, %s) values ($1, $2, $3, $4, $5, $6)",
			m.table, strings.Join(traderStateRowsExpectAutoSet, ", "))
		return conn.ExecCtx(ctx, query, data.ParticipantId, data.Paused, data.PausedReason,
			data.PausedAt, data.LastInvokedAt, data.NextDueAt)
	}, key)
}

func (m *defaultTraderStateModel) Update(ctx context.Context, data *TraderState) error {
	key := fmt.Sprintf("%s%v", cacheTraderStateParticipantIdPrefix, data.ParticipantId)
	_, err := m.ExecCtx(ctx, func(ctx context.Context, conn sqlx.SqlConn) (sql.Result, error) {
		query := fmt.Sprintf("update %s set %s where participant_id = $6", m.table, buildPlaceholders(traderStateRowsExpectAutoSet, 1))
		return conn.ExecCtx(ctx, query, data.Paused, data.PausedReason, data.PausedAt,
			data.LastInvokedAt, data.NextDueAt, data.ParticipantId)
	}, key)
	return err
}

func (m *defaultTraderStateModel) Delete(ctx context.Context, participantID string) error {
	key := fmt.Sprintf("%s%v", cacheTraderStateParticipantIdPrefix, participantID)
	_, err := m.ExecCtx(ctx, func(ctx context.Context, conn sqlx.SqlConn) (sql.Result, error) {
		query := fmt.Sprintf("delete from %s where participant_id = $1", m.table)
		return conn.ExecCtx(ctx, query, participantID)
	}, key)
	return err
}
