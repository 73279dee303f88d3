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
	conversationMessagesRows = strings.Join([]string{
		"id", "conversation_id", "role", "content", "seq", "created_at",
	}, ",")
	conversationMessagesRowsExpectAutoSet = []string{"conversation_id", "role", "content", "seq"}

	cacheConversationMessagesIdPrefix = "cache:conversationMessages:id:"
)

type (
	// conversationMessagesModel holds the generated-style CRUD surface. Each
	// decision round writes exactly two rows here: the rendered prompt
	// (role="user") and the model's raw response (role="assistant").
	conversationMessagesModel interface {
		Insert(ctx context.Context, data *ConversationMessages) (sql.Result, error)
		FindOne(ctx context.Context, id string) (*ConversationMessages, error)
		Delete(ctx context.Context, id string) error
	}

	defaultConversationMessagesModel struct {
		sqlc.CachedConn
		table string
	}

	// ConversationMessages is the raw row shape of the
	// public.conversation_messages table.
	ConversationMessages struct {
		Id             string
		ConversationId string
		Role           string
		Content        string
		Seq            int64
		CreatedAt      sql.NullTime
	}
)

func newConversationMessagesModel(conn sqlx.SqlConn, c cache.CacheConf, opts ...cache.Option) *defaultConversationMessagesModel {
	return &defaultConversationMessagesModel{
		CachedConn: sqlc.NewConn(conn, c, opts...),
		table:      `"public"."conversation_messages"`,
	}
}

func (m *defaultConversationMessagesModel) FindOne(ctx context.Context, id string) (*ConversationMessages, error) {
	key := fmt.Sprintf("%s%v", cacheConversationMessagesIdPrefix, id)
	var resp ConversationMessages
	err := m.QueryRowCtx(ctx, &resp, key, func(ctx context.Context, conn sqlx.SqlConn, v any) error {
		query := fmt.Sprintf("select %s from %s where id = $1 limit 1", conversationMessagesRows, m.table)
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

func (m *defaultConversationMessagesModel) Insert(ctx context.Context, data *ConversationMessages) (sql.Result, error) {
	key := fmt.Sprintf("%s%v", cacheConversationMessagesIdPrefix, data.Id)
	return m.ExecCtx(ctx, func(ctx context.Context, conn sqlx.SqlConn) (sql.Result, error) {
		query := fmt.Sprintf("insert into %s (id, %s, created_at) values ($1, $2, $3, $4, $5, now())",
			m.table, strings.Join(conversationMessagesRowsExpectAutoSet, ", "))
		return conn.ExecCtx(ctx, query, data.Id, data.ConversationId, data.Role, data.Content, data.Seq)
	}, key)
}

func (m *defaultConversationMessagesModel) Delete(ctx context.Context, id string) error {
	key := fmt.Sprintf("%s%v", cacheConversationMessagesIdPrefix, id)
	_, err := m.ExecCtx(ctx, func(ctx context.Context, conn sqlx.SqlConn) (sql.Result, error) {
		query := fmt.Sprintf("delete from %s where id = $1", m.table)
		return conn.ExecCtx(ctx, query, id)
	}, key)
	return err
}
