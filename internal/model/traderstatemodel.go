package model

import (
	"context"
	"fmt"
	"time"

	"github.com/zeromicro/go-zero/core/stores/cache"
	"github.com/zeromicro/go-zero/core/stores/sqlx"
)

var _ TraderStateModel = (*customTraderStateModel)(nil)

type (
	// TraderStateModel is an interface to be customized, add more methods here,
	// and implement the added methods in customTraderStateModel.
	TraderStateModel interface {
		traderStateModel
		IsPaused(ctx context.Context, participantID string) (bool, error)
		Pause(ctx context.Context, participantID, reason string, at time.Time) error
		Resume(ctx context.Context, participantID string) error
		MarkInvoked(ctx context.Context, participantID string, at, nextDue time.Time) error
		PausedParticipantIDs(ctx context.Context, participantIDs []string) (map[string]bool, error)
	}

	customTraderStateModel struct {
		*defaultTraderStateModel
	}
)

// NewTraderStateModel returns a model for the database table.
func NewTraderStateModel(conn sqlx.SqlConn, c cache.CacheConf, opts ...cache.Option) TraderStateModel {
	return &customTraderStateModel{
		defaultTraderStateModel: newTraderStateModel(conn, c, opts...),
	}
}

// IsPaused reports whether the participant is currently paused by the
// Sharpe circuit breaker. A participant with no state row is unpaused.
func (m *customTraderStateModel) IsPaused(ctx context.Context, participantID string) (bool, error) {
	row, err := m.FindOne(ctx, participantID)
	switch {
	case err == ErrNotFound:
		return false, nil
	case err != nil:
		return false, fmt.Errorf("traderState.IsPaused: %w", err)
	default:
		return row.Paused, nil
	}
}

// Pause flags a participant as paused, upserting its state row.
func (m *customTraderStateModel) Pause(ctx context.Context, participantID, reason string, at time.Time) error {
	return m.upsertPause(ctx, participantID, true, reason, at)
}

// Resume clears a participant's pause flag.
func (m *customTraderStateModel) Resume(ctx context.Context, participantID string) error {
	return m.upsertPause(ctx, participantID, false, "", time.Time{})
}

func (m *customTraderStateModel) upsertPause(ctx context.Context, participantID string, paused bool, reason string, at time.Time) error {
	existing, err := m.FindOne(ctx, participantID)
	if err == ErrNotFound {
		row := &TraderState{
			ParticipantId: participantID,
			Paused:        paused,
			PausedReason:  nullString(reason),
			PausedAt:      nullTime(at),
		}
		_, err := m.Insert(ctx, row)
		return err
	}
	if err != nil {
		return fmt.Errorf("traderState.upsertPause find: %w", err)
	}
	existing.Paused = paused
	existing.PausedReason = nullString(reason)
	existing.PausedAt = nullTime(at)
	return m.Update(ctx, existing)
}

// MarkInvoked records a decision round's completion time and the next
// scheduled due time, upserting the state row.
func (m *customTraderStateModel) MarkInvoked(ctx context.Context, participantID string, at, nextDue time.Time) error {
	existing, err := m.FindOne(ctx, participantID)
	if err == ErrNotFound {
		row := &TraderState{
			ParticipantId: participantID,
			LastInvokedAt: nullTime(at),
			NextDueAt:     nullTime(nextDue),
		}
		_, err := m.Insert(ctx, row)
		return err
	}
	if err != nil {
		return fmt.Errorf("traderState.MarkInvoked find: %w", err)
	}
	existing.LastInvokedAt = nullTime(at)
	existing.NextDueAt = nullTime(nextDue)
	return m.Update(ctx, existing)
}

// PausedParticipantIDs returns the subset of participantIDs currently
// paused. CompetitionLister.ActiveParticipants does not call it: paused
// participants are filtered out in SQL by
// ParticipantsModel.FindActiveByCompetition.
func (m *customTraderStateModel) PausedParticipantIDs(ctx context.Context, participantIDs []string) (map[string]bool, error) {
	result := make(map[string]bool)
	for _, id := range participantIDs {
		paused, err := m.IsPaused(ctx, id)
		if err != nil {
			return nil, err
		}
		if paused {
			result[id] = true
		}
	}
	return result, nil
}
