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
	decisionCyclesRows = strings.Join([]string{
		"id", "participant_id", "competition_id", "started_at", "finished_at",
		"status", "error_message",
	}, ",")
	decisionCyclesRowsExpectAutoSet = []string{
		"participant_id", "competition_id", "started_at", "finished_at",
		"status", "error_message",
	}

	cacheDecisionCyclesIdPrefix = "cache:decisionCycles:id:"
)

type (
	// decisionCyclesModel holds the generated-style CRUD surface. One row is
	// appended per scheduler fan-out attempt (spec §4.6's overlap policy),
	// independent of whether a conversation row was ever reached — this is the
	// scheduler's own audit trail, not the model-invocation archive.
	decisionCyclesModel interface {
		Insert(ctx context.Context, data *DecisionCycles) (sql.Result, error)
		FindOne(ctx context.Context, id string) (*DecisionCycles, error)
		Delete(ctx context.Context, id string) error
	}

	defaultDecisionCyclesModel struct {
		sqlc.CachedConn
		table string
	}

	// DecisionCycles is the raw row shape of the public.decision_cycles table.
	DecisionCycles struct {
		Id            string
		ParticipantId string
		CompetitionId string
		StartedAt     sql.NullTime
		FinishedAt    sql.NullTime
		Status        string
		ErrorMessage  sql.NullString
	}
)

func newDecisionCyclesModel(conn sqlx.SqlConn, c cache.CacheConf, opts ...cache.Option) *defaultDecisionCyclesModel {
	return &defaultDecisionCyclesModel{
		CachedConn: sqlc.NewConn(conn, c, opts...),
		table:      `"public"."decision_cycles"`,
	}
}

func (m *defaultDecisionCyclesModel) FindOne(ctx context.Context, id string) (*DecisionCycles, error) {
	key := fmt.Sprintf("%s%v", cacheDecisionCyclesIdPrefix, id)
	var resp DecisionCycles
	err := m.QueryRowCtx(ctx, &resp, key, func(ctx context.Context, conn sqlx.SqlConn, v any) error {
		query := fmt.Sprintf("select %s from %s where id = $1 limit 1", decisionCyclesRows, m.table)
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

func (m *defaultDecisionCyclesModel) Insert(ctx context.Context, data *DecisionCycles) (sql.Result, error) {
	key := fmt.Sprintf("%s%v", cacheDecisionCyclesIdPrefix, data.Id)
	return m.ExecCtx(ctx, func(ctx context.Context, conn sqlx.SqlConn) (sql.Result, error) {
		query := fmt.Sprintf("insert into %s (id, %s) values ($1, $2, $3, $4, $5, $6, $7)",
			m.table, strings.Join(decisionCyclesRowsExpectAutoSet, ", "))
		return conn.ExecCtx(ctx, query, data.Id, data.ParticipantId, data.CompetitionId,
			data.StartedAt, data.FinishedAt, data.Status, data.ErrorMessage)
	}, key)
}

func (m *defaultDecisionCyclesModel) Delete(ctx context.Context, id string) error {
	key := fmt.Sprintf("%s%v", cacheDecisionCyclesIdPrefix, id)
	_, err := m.ExecCtx(ctx, func(ctx context.Context, conn sqlx.SqlConn) (sql.Result, error) {
		query := fmt.Sprintf("delete from %s where id = $1", m.table)
		return conn.ExecCtx(ctx, query, id)
	}, key)
	return err
}
