package model

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/zeromicro/go-zero/core/stores/cache"
	"github.com/zeromicro/go-zero/core/stores/sqlx"

	"tradearena/pkg/domain"
)

var _ ParticipantsModel = (*customParticipantsModel)(nil)

type (
	// ParticipantsModel is an interface to be customized, add more methods here,
	// and implement the added methods in customParticipantsModel.
	ParticipantsModel interface {
		participantsModel
		FindByCompetition(ctx context.Context, competitionID string) ([]*domain.Participant, error)
		FindActiveByCompetition(ctx context.Context, competitionID string) ([]*domain.Participant, error)
		SaveParticipant(ctx context.Context, p *domain.Participant) error
		LoadParticipant(ctx context.Context, id string) (*domain.Participant, error)
	}

	customParticipantsModel struct {
		*defaultParticipantsModel
	}
)

// NewParticipantsModel returns a model for the database table.
func NewParticipantsModel(conn sqlx.SqlConn, c cache.CacheConf, opts ...cache.Option) ParticipantsModel {
	return &customParticipantsModel{
		defaultParticipantsModel: newParticipantsModel(conn, c, opts...),
	}
}

// FindByCompetition returns every participant enrolled in a competition.
func (m *customParticipantsModel) FindByCompetition(ctx context.Context, competitionID string) ([]*domain.Participant, error) {
	query := fmt.Sprintf("select %s from %s where competition_id = $1 order by created_at", participantsRows, m.table)
	var rows []Participants
	if err := m.QueryRowsNoCacheCtx(ctx, &rows, query, competitionID); err != nil {
		return nil, fmt.Errorf("participants.FindByCompetition query: %w", err)
	}
	return toDomainParticipants(rows), nil
}

// FindActiveByCompetition returns the active, non-paused participants,
// backing scheduler.CompetitionLister.ActiveParticipants. A participant
// paused by the SharpeGate circuit breaker (trader_state.paused) is
// skipped here without changing its Status — see risk.SharpeGate.
func (m *customParticipantsModel) FindActiveByCompetition(ctx context.Context, competitionID string) ([]*domain.Participant, error) {
	prefixedRows := "p." + strings.ReplaceAll(participantsRows, ",", ",p.")
	query := fmt.Sprintf(`
select %s
from %s p
left join "public"."trader_state" ts on ts.participant_id = p.id
where p.competition_id = $1 and p.status = $2 and coalesce(ts.paused, false) = false
order by p.created_at`, prefixedRows, m.table)
	var rows []Participants
	if err := m.QueryRowsNoCacheCtx(ctx, &rows, query, competitionID, string(domain.ParticipantActive)); err != nil {
		return nil, fmt.Errorf("participants.FindActiveByCompetition query: %w", err)
	}
	return toDomainParticipants(rows), nil
}

// LoadParticipant fetches one participant by ID, backing
// tradingengine.ParticipantStore.Participant.
func (m *customParticipantsModel) LoadParticipant(ctx context.Context, id string) (*domain.Participant, error) {
	row, err := m.FindOne(ctx, id)
	if err != nil {
		return nil, err
	}
	return toDomainParticipant(row)
}

// SaveParticipant upserts a participant, backing
// tradingengine.ParticipantStore.SaveParticipant.
func (m *customParticipantsModel) SaveParticipant(ctx context.Context, p *domain.Participant) error {
	row, err := toParticipantsRow(p)
	if err != nil {
		return err
	}
	if _, err := m.FindOne(ctx, p.ID); err == ErrNotFound {
		_, err := m.Insert(ctx, row)
		return err
	} else if err != nil {
		return err
	}
	return m.Update(ctx, row)
}

func toDomainParticipants(rows []Participants) []*domain.Participant {
	result := make([]*domain.Participant, 0, len(rows))
	for i := range rows {
		p, err := toDomainParticipant(&rows[i])
		if err != nil {
			continue
		}
		result = append(result, p)
	}
	return result
}

func toParticipantsRow(p *domain.Participant) (*Participants, error) {
	blob := []byte("{}")
	if len(p.ModelConfigBlob) > 0 {
		b, err := json.Marshal(p.ModelConfigBlob)
		if err != nil {
			return nil, fmt.Errorf("participants: marshal model_config_blob: %w", err)
		}
		blob = b
	}
	return &Participants{
		Id:                  p.ID,
		CompetitionId:       p.CompetitionID,
		DisplayName:         p.DisplayName,
		ModelProvider:       p.ModelProvider,
		ModelId:             p.ModelID,
		ModelConfigBlob:     blob,
		InvocationTimeoutMs: p.InvocationTimeout.Milliseconds(),
		Status:              string(p.Status),
		CurrentEquity:       p.CurrentEquity,
		PeakEquity:          p.PeakEquity,
		TotalTrades:         int64(p.TotalTrades),
		WinningTrades:       int64(p.WinningTrades),
		LosingTrades:        int64(p.LosingTrades),
	}, nil
}

func toDomainParticipant(row *Participants) (*domain.Participant, error) {
	var blob map[string]any
	if len(row.ModelConfigBlob) > 0 {
		if err := json.Unmarshal(row.ModelConfigBlob, &blob); err != nil {
			return nil, fmt.Errorf("participants: unmarshal model_config_blob: %w", err)
		}
	}
	return &domain.Participant{
		ID:                row.Id,
		CompetitionID:     row.CompetitionId,
		DisplayName:       row.DisplayName,
		ModelProvider:     row.ModelProvider,
		ModelID:           row.ModelId,
		ModelConfigBlob:   blob,
		InvocationTimeout: time.Duration(row.InvocationTimeoutMs) * time.Millisecond,
		Status:            domain.ParticipantStatus(row.Status),
		CurrentEquity:     row.CurrentEquity,
		PeakEquity:        row.PeakEquity,
		TotalTrades:       int(row.TotalTrades),
		WinningTrades:     int(row.WinningTrades),
		LosingTrades:      int(row.LosingTrades),
	}, nil
}
