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
	portfoliosRows = strings.Join([]string{
		"id", "participant_id", "cash", "reserved_margin", "realized_pnl", "updated_at",
	}, ",")
	portfoliosRowsExpectAutoSet = []string{"participant_id", "cash", "reserved_margin", "realized_pnl"}

	cachePortfoliosIdPrefix            = "cache:portfolios:id:"
	cachePortfoliosParticipantIdPrefix = "cache:portfolios:participantId:"
)

type (
	portfoliosModel interface {
		Insert(ctx context.Context, data *Portfolios) (sql.Result, error)
		FindOne(ctx context.Context, id string) (*Portfolios, error)
		FindOneByParticipantId(ctx context.Context, participantID string) (*Portfolios, error)
		Update(ctx context.Context, data *Portfolios) error
		Delete(ctx context.Context, id string) error
	}

	defaultPortfoliosModel struct {
		sqlc.CachedConn
		table string
	}

	// Portfolios is the raw row shape of the public.portfolios table.
	Portfolios struct {
		Id             string
		ParticipantId  string
		Cash           decimal.Decimal
		ReservedMargin decimal.Decimal
		RealizedPnl    decimal.Decimal
		UpdatedAt      sql.NullTime
	}
)

func newPortfoliosModel(conn sqlx.SqlConn, c cache.CacheConf, opts ...cache.Option) *defaultPortfoliosModel {
	return &defaultPortfoliosModel{
		CachedConn: sqlc.NewConn(conn, c, opts...),
		table:      `"public"."portfolios"`,
	}
}

func (m *defaultPortfoliosModel) FindOne(ctx context.Context, id string) (*Portfolios, error) {
	key := fmt.Sprintf("%s%v", cachePortfoliosIdPrefix, id)
	var resp Portfolios
	err := m.QueryRowCtx(ctx, &resp, key, func(ctx context.Context, conn sqlx.SqlConn, v any) error {
		query := fmt.Sprintf("select %s from %s where id = $1 limit 1", portfoliosRows, m.table)
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

func (m *defaultPortfoliosModel) FindOneByParticipantId(ctx context.Context, participantID string) (*Portfolios, error) {
	key := fmt.Sprintf("%s%v", cachePortfoliosParticipantIdPrefix, participantID)
	var resp Portfolios
	err := m.QueryRowIndexCtx(ctx, &resp, key, m.GenCacheKey, func(ctx context.Context, conn sqlx.SqlConn, v any) (any, error) {
		query := fmt.Sprintf("select %s from %s where participant_id = $1 limit 1", portfoliosRows, m.table)
		if err := conn.QueryRowCtx(ctx, v, query, participantID); err != nil {
			return nil, err
		}
		return v.(*Portfolios).Id, nil
	}, func(ctx context.Context, conn sqlx.SqlConn, v, primary any) error {
		query := fmt.Sprintf("select %s from %s where id = $1 limit 1", portfoliosRows, m.table)
		return conn.QueryRowCtx(ctx, v, query, primary)
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

// GenCacheKey builds the id-keyed cache entry for a portfolio row.
func (m *defaultPortfoliosModel) GenCacheKey(primary any) string {
	return fmt.Sprintf("%s%v", cachePortfoliosIdPrefix, primary)
}

func (m *defaultPortfoliosModel) Insert(ctx context.Context, data *Portfolios) (sql.Result, error) {
	idKey := fmt.Sprintf("%s%v", cachePortfoliosIdPrefix, data.Id)
	participantKey := fmt.Sprintf("%s%v", cachePortfoliosParticipantIdPrefix, data.ParticipantId)
	return m.ExecCtx(ctx, func(ctx context.Context, conn sqlx.SqlConn) (sql.Result, error) {
		query := fmt.Sprintf("insert into %s (id, %s, updated_at) values ($1, $2, $3, $4, $5, now())",
			m.table, strings.Join(portfoliosRowsExpectAutoSet, ", "))
		return conn.ExecCtx(ctx, query, data.Id, data.ParticipantId, data.Cash, data.ReservedMargin, data.RealizedPnl)
	}, idKey, participantKey)
}

func (m *defaultPortfoliosModel) Update(ctx context.Context, data *Portfolios) error {
	idKey := fmt.Sprintf("%s%v", cachePortfoliosIdPrefix, data.Id)
	participantKey := fmt.Sprintf("%s%v", cachePortfoliosParticipantIdPrefix, data.ParticipantId)
	_, err := m.ExecCtx(ctx, func(ctx context.Context, conn sqlx.SqlConn) (sql.Result, error) {
		query := fmt.Sprintf("update %s set %s, updated_at = now() where id = $5", m.table, buildPlaceholders(portfoliosRowsExpectAutoSet, 1))
		return conn.ExecCtx(ctx, query, data.ParticipantId, data.Cash, data.ReservedMargin, data.RealizedPnl, data.Id)
	}, idKey, participantKey)
	return err
}

func (m *defaultPortfoliosModel) Delete(ctx context.Context, id string) error {
	row, err := m.FindOne(ctx, id)
	if err != nil {
		return err
	}
	idKey := fmt.Sprintf("%s%v", cachePortfoliosIdPrefix, id)
	participantKey := fmt.Sprintf("%s%v", cachePortfoliosParticipantIdPrefix, row.ParticipantId)
	_, err = m.ExecCtx(ctx, func(ctx context.Context, conn sqlx.SqlConn) (sql.Result, error) {
		query := fmt.Sprintf("delete from %s where id = $1", m.table)
		return conn.ExecCtx(ctx, query, id)
	}, idKey, participantKey)
	return err
}
