package model

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/zeromicro/go-zero/core/stores/cache"
	"github.com/zeromicro/go-zero/core/stores/sqlx"

	"tradearena/pkg/domain"
)

var _ PositionsModel = (*customPositionsModel)(nil)

type (
	// PositionsModel is an interface to be customized, add more methods here,
	// and implement the added methods in customPositionsModel.
	PositionsModel interface {
		positionsModel
		FindByPortfolio(ctx context.Context, portfolioID string) ([]*domain.Position, error)
		ReplaceForPortfolio(ctx context.Context, portfolioID string, positions []*domain.Position) error
	}

	customPositionsModel struct {
		*defaultPositionsModel
	}
)

// NewPositionsModel returns a model for the database table.
func NewPositionsModel(conn sqlx.SqlConn, c cache.CacheConf, opts ...cache.Option) PositionsModel {
	return &customPositionsModel{
		defaultPositionsModel: newPositionsModel(conn, c, opts...),
	}
}

// FindByPortfolio returns every open position belonging to one portfolio.
func (m *customPositionsModel) FindByPortfolio(ctx context.Context, portfolioID string) ([]*domain.Position, error) {
	query := fmt.Sprintf("select %s from %s where portfolio_id = $1 order by opened_at", positionsRows, m.table)
	var rows []Positions
	if err := m.QueryRowsNoCacheCtx(ctx, &rows, query, portfolioID); err != nil {
		return nil, fmt.Errorf("positions.FindByPortfolio query: %w", err)
	}
	result := make([]*domain.Position, 0, len(rows))
	for i := range rows {
		result = append(result, toDomainPosition(&rows[i]))
	}
	return result, nil
}

// ReplaceForPortfolio deletes a portfolio's existing rows and re-inserts the
// in-memory position set, keeping DB and the engine's working copy
// consistent after every round. Positions that arrived without an ID (newly
// opened this round) are assigned one.
func (m *customPositionsModel) ReplaceForPortfolio(ctx context.Context, portfolioID string, positions []*domain.Position) error {
	_, err := m.ExecCtx(ctx, func(ctx context.Context, conn sqlx.SqlConn) (sql.Result, error) {
		return conn.ExecCtx(ctx, fmt.Sprintf(`delete from %s where portfolio_id = $1`, m.table), portfolioID)
	})
	if err != nil {
		return fmt.Errorf("positions.ReplaceForPortfolio delete: %w", err)
	}
	for _, p := range positions {
		if p.ID == "" {
			p.ID = uuid.NewString()
		}
		if _, err := m.Insert(ctx, toPositionsRow(portfolioID, p)); err != nil {
			return fmt.Errorf("positions.ReplaceForPortfolio insert %s: %w", p.ID, err)
		}
	}
	return nil
}

func toPositionsRow(portfolioID string, p *domain.Position) *Positions {
	return &Positions{
		Id:             p.ID,
		PortfolioId:    portfolioID,
		Symbol:         p.Symbol,
		Side:           string(p.Side),
		Quantity:       p.Quantity,
		EntryPrice:     p.EntryPrice,
		MarkPrice:      p.MarkPrice,
		Leverage:       p.Leverage,
		ReservedMargin: p.ReservedMargin,
		OpenedAt:       nullTime(p.OpenedAt),
	}
}

func toDomainPosition(row *Positions) *domain.Position {
	return &domain.Position{
		ID:             row.Id,
		PortfolioID:    row.PortfolioId,
		Symbol:         row.Symbol,
		Side:           domain.Side(row.Side),
		Quantity:       row.Quantity,
		EntryPrice:     row.EntryPrice,
		MarkPrice:      row.MarkPrice,
		Leverage:       row.Leverage,
		ReservedMargin: row.ReservedMargin,
		OpenedAt:       row.OpenedAt.Time,
	}
}
