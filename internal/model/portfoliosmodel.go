package model

import (
	"context"
	"fmt"

	"github.com/zeromicro/go-zero/core/stores/cache"
	"github.com/zeromicro/go-zero/core/stores/sqlx"

	"tradearena/pkg/domain"
)

var _ PortfoliosModel = (*customPortfoliosModel)(nil)

type (
	// PortfoliosModel is an interface to be customized, add more methods here,
	// and implement the added methods in customPortfoliosModel.
	PortfoliosModel interface {
		portfoliosModel
		LoadByParticipant(ctx context.Context, participantID string) (*domain.Portfolio, error)
		SavePortfolio(ctx context.Context, p *domain.Portfolio) error
	}

	customPortfoliosModel struct {
		*defaultPortfoliosModel
		positions PositionsModel
	}
)

// NewPortfoliosModel returns a model for the database table. positions is
// used to hydrate/persist the portfolio's open legs alongside its cash state.
func NewPortfoliosModel(conn sqlx.SqlConn, c cache.CacheConf, positions PositionsModel, opts ...cache.Option) PortfoliosModel {
	return &customPortfoliosModel{
		defaultPortfoliosModel: newPortfoliosModel(conn, c, opts...),
		positions:              positions,
	}
}

// LoadByParticipant loads a portfolio and its open positions, used to
// hydrate portfolio.Manager at startup.
func (m *customPortfoliosModel) LoadByParticipant(ctx context.Context, participantID string) (*domain.Portfolio, error) {
	row, err := m.FindOneByParticipantId(ctx, participantID)
	if err != nil {
		return nil, err
	}
	positions, err := m.positions.FindByPortfolio(ctx, row.Id)
	if err != nil {
		return nil, fmt.Errorf("portfolios.LoadByParticipant positions: %w", err)
	}
	return &domain.Portfolio{
		ID:             row.Id,
		ParticipantID:  row.ParticipantId,
		Cash:           row.Cash,
		ReservedMargin: row.ReservedMargin,
		RealizedPnL:    row.RealizedPnl,
		Positions:      positions,
	}, nil
}

// SavePortfolio upserts the portfolio's cash/margin state and replaces its
// position set wholesale — simpler and safe at this volume than a diffing
// merge, and consistent with the engine holding the single writable copy in
// memory between persistence calls.
func (m *customPortfoliosModel) SavePortfolio(ctx context.Context, p *domain.Portfolio) error {
	row := &Portfolios{
		Id:             p.ID,
		ParticipantId:  p.ParticipantID,
		Cash:           p.Cash,
		ReservedMargin: p.ReservedMargin,
		RealizedPnl:    p.RealizedPnL,
	}
	if _, err := m.FindOne(ctx, p.ID); err == ErrNotFound {
		if _, err := m.Insert(ctx, row); err != nil {
			return err
		}
	} else if err != nil {
		return err
	} else if err := m.Update(ctx, row); err != nil {
		return err
	}
	return m.positions.ReplaceForPortfolio(ctx, p.ID, p.Positions)
}
