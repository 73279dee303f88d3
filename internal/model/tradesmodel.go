package model

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/zeromicro/go-zero/core/stores/cache"
	"github.com/zeromicro/go-zero/core/stores/sqlx"

	"tradearena/pkg/domain"
)

var _ TradesModel = (*customTradesModel)(nil)

type (
	// TradesModel is an interface to be customized, add more methods here,
	// and implement the added methods in customTradesModel.
	TradesModel interface {
		tradesModel
		RecentByParticipant(ctx context.Context, participantID string, limit int) ([]*domain.Trade, error)
		RecordTrade(ctx context.Context, t *domain.Trade) error
	}

	customTradesModel struct {
		*defaultTradesModel
	}
)

// NewTradesModel returns a model for the database table.
func NewTradesModel(conn sqlx.SqlConn, c cache.CacheConf, opts ...cache.Option) TradesModel {
	return &customTradesModel{
		defaultTradesModel: newTradesModel(conn, c, opts...),
	}
}

// RecentByParticipant returns a participant's most recent trades, newest
// first, backing orchestrator.RecentTradesStore.RecentTrades.
func (m *customTradesModel) RecentByParticipant(ctx context.Context, participantID string, limit int) ([]*domain.Trade, error) {
	if limit <= 0 {
		limit = 20
	}
	query := fmt.Sprintf("select %s from %s where participant_id = $1 order by occurred_at desc limit $2", tradesRows, m.table)
	var rows []Trades
	if err := m.QueryRowsNoCacheCtx(ctx, &rows, query, participantID, limit); err != nil {
		return nil, fmt.Errorf("trades.RecentByParticipant query: %w", err)
	}
	result := make([]*domain.Trade, 0, len(rows))
	for i := range rows {
		result = append(result, toDomainTrade(&rows[i]))
	}
	return result, nil
}

// RecordTrade appends one trade to the historical ledger. Trades are
// append-only: closing and reopening a symbol writes a new row rather than
// mutating one.
func (m *customTradesModel) RecordTrade(ctx context.Context, t *domain.Trade) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	row := &Trades{
		Id:                  t.ID,
		ParticipantId:       t.ParticipantID,
		OrderId:             t.OrderID,
		Action:              string(t.Action),
		Symbol:              t.Symbol,
		Side:                string(t.Side),
		Quantity:            t.Quantity,
		ExecutedPrice:       t.ExecutedPrice,
		RealizedPnl:         t.RealizedPnL,
		ReservedMarginDelta: t.ReservedMarginDelta,
		OccurredAt:          nullTime(t.OccurredAt),
	}
	_, err := m.Insert(ctx, row)
	return err
}

func toDomainTrade(row *Trades) *domain.Trade {
	return &domain.Trade{
		ID:                  row.Id,
		ParticipantID:       row.ParticipantId,
		OrderID:             row.OrderId,
		Action:              domain.OrderAction(row.Action),
		Symbol:              row.Symbol,
		Side:                domain.Side(row.Side),
		Quantity:            row.Quantity,
		ExecutedPrice:       row.ExecutedPrice,
		RealizedPnL:         row.RealizedPnl,
		ReservedMarginDelta: row.ReservedMarginDelta,
		OccurredAt:          row.OccurredAt.Time,
	}
}
