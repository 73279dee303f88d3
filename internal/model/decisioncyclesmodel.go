package model

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/zeromicro/go-zero/core/stores/cache"
	"github.com/zeromicro/go-zero/core/stores/sqlx"
)

var _ DecisionCyclesModel = (*customDecisionCyclesModel)(nil)

type (
	// DecisionCyclesModel is an interface to be customized, add more methods here,
	// and implement the added methods in customDecisionCyclesModel.
	DecisionCyclesModel interface {
		decisionCyclesModel
		RecordCycle(ctx context.Context, participantID, competitionID string, started, finished time.Time, status, errMsg string) error
	}

	customDecisionCyclesModel struct {
		*defaultDecisionCyclesModel
	}
)

// NewDecisionCyclesModel returns a model for the database table.
func NewDecisionCyclesModel(conn sqlx.SqlConn, c cache.CacheConf, opts ...cache.Option) DecisionCyclesModel {
	return &customDecisionCyclesModel{
		defaultDecisionCyclesModel: newDecisionCyclesModel(conn, c, opts...),
	}
}

// RecordCycle appends one scheduler fan-out attempt to the audit log,
// regardless of whether it reached the point of recording a conversation.
func (m *customDecisionCyclesModel) RecordCycle(ctx context.Context, participantID, competitionID string, started, finished time.Time, status, errMsg string) error {
	row := &DecisionCycles{
		Id:            uuid.NewString(),
		ParticipantId: participantID,
		CompetitionId: competitionID,
		StartedAt:     nullTime(started),
		FinishedAt:    nullTime(finished),
		Status:        status,
		ErrorMessage:  nullString(errMsg),
	}
	_, err := m.Insert(ctx, row)
	return err
}
