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
	conversationsRows = strings.Join([]string{
		"id", "participant_id", "competition_id", "occurred_at", "latency_ms", "status",
		"error_message", "prompt_tokens", "response_tokens", "cost_estimate",
		"parsed_decision", "reasoning",
	}, ",")
	conversationsRowsExpectAutoSet = []string{
		"participant_id", "competition_id", "occurred_at", "latency_ms", "status",
		"error_message", "prompt_tokens", "response_tokens", "cost_estimate",
		"parsed_decision", "reasoning",
	}

	cacheConversationsIdPrefix = "cache:conversations:id:"
)

type (
	// conversationsModel holds the generated-style CRUD surface. One row per
	// decision round (§3 "Decision Record" header); the prompt/response text
	// itself lives in conversation_messages.
	conversationsModel interface {
		Insert(ctx context.Context, data *Conversations) (sql.Result, error)
		FindOne(ctx context.Context, id string) (*Conversations, error)
		Update(ctx context.Context, data *Conversations) error
		Delete(ctx context.Context, id string) error
	}

	defaultConversationsModel struct {
		sqlc.CachedConn
		table string
	}

	// Conversations is the raw row shape of the public.conversations table.
	Conversations struct {
		Id              string
		ParticipantId   string
		CompetitionId   string
		OccurredAt      sql.NullTime
		LatencyMs       int64
		Status          string
		ErrorMessage    sql.NullString
		PromptTokens    sql.NullInt64
		ResponseTokens  sql.NullInt64
		CostEstimate    decimal.NullDecimal
		ParsedDecision  string
		Reasoning       string
	}
)

func newConversationsModel(conn sqlx.SqlConn, c cache.CacheConf, opts ...cache.Option) *defaultConversationsModel {
	return &defaultConversationsModel{
		CachedConn: sqlc.NewConn(conn, c, opts...),
		table:      `"public"."conversations"`,
	}
}

func (m *defaultConversationsModel) FindOne(ctx context.Context, id string) (*Conversations, error) {
	key := fmt.Sprintf("%s%v", cacheConversationsIdPrefix, id)
	var resp Conversations
	err := m.QueryRowCtx(ctx, &resp, key, func(ctx context.Context, conn sqlx.SqlConn, v any) error {
		query := fmt.Sprintf("select %s from %s where id = $1 limit 1", conversationsRows, m.table)
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

func (m *defaultConversationsModel) Insert(ctx context.Context, data *Conversations) (sql.Result, error) {
	key := fmt.Sprintf("%s%v", cacheConversationsIdPrefix, data.Id)
	return m.ExecCtx(ctx, func(ctx context.Context, conn sqlx.SqlConn) (sql.Result, error) {
		query := fmt.Sprintf("insert into %s (id, %s) values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)",
			m.table, strings.Join(conversationsRowsExpectAutoSet, ", "))
		return conn.ExecCtx(ctx, query, data.Id, data.ParticipantId, data.CompetitionId, data.OccurredAt,
			data.LatencyMs, data.Status, data.ErrorMessage, data.PromptTokens, data.ResponseTokens,
			data.CostEstimate, data.ParsedDecision, data.Reasoning)
	}, key)
}

func (m *defaultConversationsModel) Update(ctx context.Context, data *Conversations) error {
	key := fmt.Sprintf("%s%v", cacheConversationsIdPrefix, data.Id)
	_, err := m.ExecCtx(ctx, func(ctx context.Context, conn sqlx.SqlConn) (sql.Result, error) {
		query := fmt.Sprintf("update %s set %s where id = $12", m.table, buildPlaceholders(conversationsRowsExpectAutoSet, 1))
		return conn.ExecCtx(ctx, query, data.ParticipantId, data.CompetitionId, data.OccurredAt,
			data.LatencyMs, data.Status, data.ErrorMessage, data.PromptTokens, data.ResponseTokens,
			data.CostEstimate, data.ParsedDecision, data.Reasoning, data.Id)
	}, key)
	return err
}

func (m *defaultConversationsModel) Delete(ctx context.Context, id string) error {
	key := fmt.Sprintf("%s%v", cacheConversationsIdPrefix, id)
	_, err := m.ExecCtx(ctx, func(ctx context.Context, conn sqlx.SqlConn) (sql.Result, error) {
		query := fmt.Sprintf("delete from %s where id = $1", m.table)
		return conn.ExecCtx(ctx, query, id)
	}, key)
	return err
}
