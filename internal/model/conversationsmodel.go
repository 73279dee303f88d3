package model

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/zeromicro/go-zero/core/stores/cache"
	"github.com/zeromicro/go-zero/core/stores/sqlx"

	"tradearena/pkg/domain"
)

var _ ConversationsModel = (*customConversationsModel)(nil)

type (
	// ConversationsModel is an interface to be customized, add more methods here,
	// and implement the added methods in customConversationsModel.
	ConversationsModel interface {
		conversationsModel
		// Record persists a full decision round — the conversations header
		// plus its prompt/response messages — as the authoritative
		// Postgres-backed half of orchestrator.DecisionRecorder (the other
		// half is pkg/journal's local mirror; see orchestrator.MultiRecorder).
		Record(ctx context.Context, rec *domain.DecisionRecord) error
		FindByParticipant(ctx context.Context, participantID string, limit int) ([]*domain.DecisionRecord, error)
	}

	customConversationsModel struct {
		*defaultConversationsModel
		conn     sqlx.SqlConn
		messages ConversationMessagesModel
	}
)

// NewConversationsModel returns a model for the database table. conn is the
// raw connection used to wrap the header+message writes in one transaction.
func NewConversationsModel(conn sqlx.SqlConn, c cache.CacheConf, messages ConversationMessagesModel, opts ...cache.Option) ConversationsModel {
	return &customConversationsModel{
		defaultConversationsModel: newConversationsModel(conn, c, opts...),
		conn:                      conn,
		messages:                  messages,
	}
}

// Record writes the conversation header and its two messages (prompt,
// response) in a single transaction, matching spec §5's one-commit-per-round
// durability requirement.
func (m *customConversationsModel) Record(ctx context.Context, rec *domain.DecisionRecord) error {
	row := toConversationsRow(rec)
	insertHeader := fmt.Sprintf("insert into %s (id, %s) values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)",
		m.table, strings.Join(conversationsRowsExpectAutoSet, ", "))
	insertMessage := `insert into "public"."conversation_messages" (id, conversation_id, role, content, seq, created_at) values ($1, $2, $3, $4, $5, now())`

	return m.conn.TransactCtx(ctx, func(ctx context.Context, session sqlx.Session) error {
		if _, err := session.ExecCtx(ctx, insertHeader, row.Id, row.ParticipantId, row.CompetitionId,
			row.OccurredAt, row.LatencyMs, row.Status, row.ErrorMessage, row.PromptTokens, row.ResponseTokens,
			row.CostEstimate, row.ParsedDecision, row.Reasoning); err != nil {
			return fmt.Errorf("conversations.Record insert header: %w", err)
		}
		if _, err := session.ExecCtx(ctx, insertMessage, newMessageID(rec.ID, 1), rec.ID, "user", rec.PromptText, 1); err != nil {
			return fmt.Errorf("conversations.Record insert prompt message: %w", err)
		}
		if _, err := session.ExecCtx(ctx, insertMessage, newMessageID(rec.ID, 2), rec.ID, "assistant", rec.RawResponse, 2); err != nil {
			return fmt.Errorf("conversations.Record insert response message: %w", err)
		}
		return nil
	})
}

// newMessageID derives a stable, deterministic message id from the
// conversation id and its sequence number rather than minting a fresh UUID
// per message.
func newMessageID(conversationID string, seq int) string {
	return fmt.Sprintf("%s-msg-%d", conversationID, seq)
}

// FindByParticipant returns a participant's recent decision rounds with
// their prompt/response text rehydrated, backing
// GET /participants/{id}/invocations.
func (m *customConversationsModel) FindByParticipant(ctx context.Context, participantID string, limit int) ([]*domain.DecisionRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	query := fmt.Sprintf("select %s from %s where participant_id = $1 order by occurred_at desc limit $2", conversationsRows, m.table)
	var rows []Conversations
	if err := m.QueryRowsNoCacheCtx(ctx, &rows, query, participantID, limit); err != nil {
		return nil, fmt.Errorf("conversations.FindByParticipant query: %w", err)
	}

	result := make([]*domain.DecisionRecord, 0, len(rows))
	for i := range rows {
		rec := toDomainDecisionRecord(&rows[i])
		prompt, response, err := m.messages.LoadPromptAndResponse(ctx, rec.ID)
		if err != nil {
			return nil, err
		}
		rec.PromptText = prompt
		rec.RawResponse = response
		result = append(result, rec)
	}
	return result, nil
}

func toConversationsRow(rec *domain.DecisionRecord) *Conversations {
	row := &Conversations{
		Id:             rec.ID,
		ParticipantId:  rec.ParticipantID,
		CompetitionId:  rec.CompetitionID,
		OccurredAt:     nullTime(rec.OccurredAt),
		LatencyMs:      rec.Latency.Milliseconds(),
		Status:         string(rec.Status),
		ErrorMessage:   nullString(rec.ErrorMessage),
		ParsedDecision: rec.ParsedDecision,
		Reasoning:      rec.Reasoning,
	}
	if rec.PromptTokens != nil {
		row.PromptTokens.Int64, row.PromptTokens.Valid = int64(*rec.PromptTokens), true
	}
	if rec.ResponseTokens != nil {
		row.ResponseTokens.Int64, row.ResponseTokens.Valid = int64(*rec.ResponseTokens), true
	}
	if rec.CostEstimate != nil {
		row.CostEstimate = decimal.NullDecimal{Decimal: *rec.CostEstimate, Valid: true}
	}
	return row
}

func toDomainDecisionRecord(row *Conversations) *domain.DecisionRecord {
	rec := &domain.DecisionRecord{
		ID:             row.Id,
		ParticipantID:  row.ParticipantId,
		CompetitionID:  row.CompetitionId,
		OccurredAt:     row.OccurredAt.Time,
		Latency:        time.Duration(row.LatencyMs) * time.Millisecond,
		Status:         domain.InvocationStatus(row.Status),
		ErrorMessage:   stringOrEmpty(row.ErrorMessage),
		ParsedDecision: row.ParsedDecision,
		Reasoning:      row.Reasoning,
	}
	if row.PromptTokens.Valid {
		v := int(row.PromptTokens.Int64)
		rec.PromptTokens = &v
	}
	if row.ResponseTokens.Valid {
		v := int(row.ResponseTokens.Int64)
		rec.ResponseTokens = &v
	}
	if row.CostEstimate.Valid {
		v := row.CostEstimate.Decimal
		rec.CostEstimate = &v
	}
	return rec
}
