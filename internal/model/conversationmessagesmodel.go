package model

import (
	"context"
	"fmt"

	"github.com/zeromicro/go-zero/core/stores/cache"
	"github.com/zeromicro/go-zero/core/stores/sqlx"
)

var _ ConversationMessagesModel = (*customConversationMessagesModel)(nil)

type (
	// ConversationMessagesModel is an interface to be customized, add more methods here,
	// and implement the added methods in customConversationMessagesModel.
	ConversationMessagesModel interface {
		conversationMessagesModel
		LoadPromptAndResponse(ctx context.Context, conversationID string) (prompt, response string, err error)
	}

	customConversationMessagesModel struct {
		*defaultConversationMessagesModel
	}
)

// NewConversationMessagesModel returns a model for the database table.
func NewConversationMessagesModel(conn sqlx.SqlConn, c cache.CacheConf, opts ...cache.Option) ConversationMessagesModel {
	return &customConversationMessagesModel{
		defaultConversationMessagesModel: newConversationMessagesModel(conn, c, opts...),
	}
}

// LoadPromptAndResponse rehydrates a decision round's two archived
// messages. Either string is empty if that message was never written (for
// example a round that failed before the model replied).
func (m *customConversationMessagesModel) LoadPromptAndResponse(ctx context.Context, conversationID string) (string, string, error) {
	query := fmt.Sprintf("select %s from %s where conversation_id = $1 order by seq", conversationMessagesRows, m.table)
	var rows []ConversationMessages
	if err := m.QueryRowsNoCacheCtx(ctx, &rows, query, conversationID); err != nil {
		return "", "", fmt.Errorf("conversationMessages.LoadPromptAndResponse query: %w", err)
	}
	var prompt, response string
	for i := range rows {
		switch rows[i].Role {
		case "user":
			prompt = rows[i].Content
		case "assistant":
			response = rows[i].Content
		}
	}
	return prompt, response, nil
}
