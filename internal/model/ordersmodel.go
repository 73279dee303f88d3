package model

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/zeromicro/go-zero/core/stores/cache"
	"github.com/zeromicro/go-zero/core/stores/sqlx"

	"tradearena/pkg/domain"
)

var _ OrdersModel = (*customOrdersModel)(nil)

type (
	// OrdersModel is an interface to be customized, add more methods here,
	// and implement the added methods in customOrdersModel.
	OrdersModel interface {
		ordersModel
		FindByDecision(ctx context.Context, decisionID string) ([]domain.OrderExecutionResult, error)
		SaveOrder(ctx context.Context, decisionID string, o *domain.Order) error
	}

	customOrdersModel struct {
		*defaultOrdersModel
	}
)

// NewOrdersModel returns a model for the database table.
func NewOrdersModel(conn sqlx.SqlConn, c cache.CacheConf, opts ...cache.Option) OrdersModel {
	return &customOrdersModel{
		defaultOrdersModel: newOrdersModel(conn, c, opts...),
	}
}

// FindByDecision returns the execution outcome of every order that belonged
// to one decision round, reconstructing DecisionRecord.OrderResults for
// callers reading the audit trail back out.
func (m *customOrdersModel) FindByDecision(ctx context.Context, decisionID string) ([]domain.OrderExecutionResult, error) {
	query := fmt.Sprintf("select %s from %s where decision_id = $1 order by created_at", ordersRows, m.table)
	var rows []Orders
	if err := m.QueryRowsNoCacheCtx(ctx, &rows, query, decisionID); err != nil {
		return nil, fmt.Errorf("orders.FindByDecision query: %w", err)
	}
	result := make([]domain.OrderExecutionResult, 0, len(rows))
	for i := range rows {
		row := &rows[i]
		result = append(result, domain.OrderExecutionResult{
			OrderID:       row.Id,
			Status:        domain.OrderStatus(row.Status),
			RejectReason:  domain.RejectReason(stringOrEmpty(row.RejectReason)),
			ExecutedPrice: nullDecimalOrZero(row.ExecutedPrice),
		})
	}
	return result, nil
}

// SaveOrder persists one order of a decision round's execution pass.
func (m *customOrdersModel) SaveOrder(ctx context.Context, decisionID string, o *domain.Order) error {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	row := &Orders{
		Id:               o.ID,
		ParticipantId:    o.ParticipantID,
		DecisionId:       nullString(decisionID),
		Action:           string(o.Action),
		Symbol:           o.Symbol,
		Side:             nullString(string(o.Side)),
		Quantity:         nullDecimal(o.Quantity),
		Leverage:         nullDecimal(o.Leverage),
		TargetPositionId: nullString(o.TargetPositionID),
		Status:           string(o.Status),
		RejectReason:     nullString(string(o.RejectReason)),
		ExecutedPrice:    nullDecimal(o.ExecutedPrice),
	}
	_, err := m.Insert(ctx, row)
	return err
}

func nullDecimal(d decimal.Decimal) decimal.NullDecimal {
	if d.IsZero() {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: d, Valid: true}
}

func nullDecimalOrZero(nd decimal.NullDecimal) decimal.Decimal {
	if !nd.Valid {
		return decimal.Zero
	}
	return nd.Decimal
}
