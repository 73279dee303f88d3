package model

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/zeromicro/go-zero/core/stores/cache"
	"github.com/zeromicro/go-zero/core/stores/sqlx"

	"tradearena/pkg/domain"
)

var _ CompetitionsModel = (*customCompetitionsModel)(nil)

type (
	// CompetitionsModel is an interface to be customized, add more methods here,
	// and implement the added methods in customCompetitionsModel.
	CompetitionsModel interface {
		competitionsModel
		FindActive(ctx context.Context) ([]*domain.Competition, error)
		SaveCompetition(ctx context.Context, c *domain.Competition) error
		LoadCompetition(ctx context.Context, id string) (*domain.Competition, error)
	}

	customCompetitionsModel struct {
		*defaultCompetitionsModel
	}
)

// NewCompetitionsModel returns a model for the database table.
func NewCompetitionsModel(conn sqlx.SqlConn, c cache.CacheConf, opts ...cache.Option) CompetitionsModel {
	return &customCompetitionsModel{
		defaultCompetitionsModel: newCompetitionsModel(conn, c, opts...),
	}
}

// FindActive returns every competition currently in the active status,
// backing scheduler.CompetitionLister.ActiveCompetitions.
func (m *customCompetitionsModel) FindActive(ctx context.Context) ([]*domain.Competition, error) {
	query := fmt.Sprintf("select %s from %s where status = $1 order by start_at", competitionsRows, m.table)
	var rows []Competitions
	if err := m.QueryRowsNoCacheCtx(ctx, &rows, query, string(domain.CompetitionActive)); err != nil {
		return nil, fmt.Errorf("competitions.FindActive query: %w", err)
	}
	result := make([]*domain.Competition, 0, len(rows))
	for i := range rows {
		c, err := toDomainCompetition(&rows[i])
		if err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	return result, nil
}

// SaveCompetition upserts a competition row, used by both the competition
// creation handler and the scheduler's lifecycle transitions.
func (m *customCompetitionsModel) SaveCompetition(ctx context.Context, c *domain.Competition) error {
	row, err := toCompetitionsRow(c)
	if err != nil {
		return err
	}
	if _, err := m.FindOne(ctx, c.ID); err == ErrNotFound {
		_, err := m.Insert(ctx, row)
		return err
	} else if err != nil {
		return err
	}
	return m.Update(ctx, row)
}

// LoadCompetition fetches one competition by ID, backing
// tradingengine.CompetitionStore.Competition.
func (m *customCompetitionsModel) LoadCompetition(ctx context.Context, id string) (*domain.Competition, error) {
	row, err := m.FindOne(ctx, id)
	if err != nil {
		return nil, err
	}
	return toDomainCompetition(row)
}

func toCompetitionsRow(c *domain.Competition) (*Competitions, error) {
	instruments := make([]string, 0, len(c.AllowedInstruments))
	for symbol := range c.AllowedInstruments {
		instruments = append(instruments, symbol)
	}
	blob, err := json.Marshal(instruments)
	if err != nil {
		return nil, fmt.Errorf("competitions: marshal allowed_instruments: %w", err)
	}
	return &Competitions{
		Id:                    c.ID,
		Name:                  c.Name,
		Status:                string(c.Status),
		StartAt:               nullTime(c.StartAt),
		EndAt:                 nullTime(c.EndAt),
		InitialCapital:        c.InitialCapital,
		MaxLeverage:           c.MaxLeverage,
		MaxPositionSizePct:    c.MaxPositionSizePct,
		MarginRequirementPct:  c.MarginRequirementPct,
		MaintenanceMarginPct:  c.MaintenanceMarginPct,
		InvocationIntervalMin: int64(c.InvocationIntervalMin),
		AllowedInstruments:    blob,
		MaxParticipants:       int64(c.MaxParticipants),
		MarketHoursOnly:       c.MarketHoursOnly,
	}, nil
}

func toDomainCompetition(row *Competitions) (*domain.Competition, error) {
	var instruments []string
	if len(row.AllowedInstruments) > 0 {
		if err := json.Unmarshal(row.AllowedInstruments, &instruments); err != nil {
			return nil, fmt.Errorf("competitions: unmarshal allowed_instruments: %w", err)
		}
	}
	allowed := make(map[string]struct{}, len(instruments))
	for _, symbol := range instruments {
		allowed[symbol] = struct{}{}
	}
	return &domain.Competition{
		ID:                    row.Id,
		Name:                  row.Name,
		Status:                domain.CompetitionStatus(row.Status),
		StartAt:               row.StartAt.Time,
		EndAt:                 row.EndAt.Time,
		InitialCapital:        row.InitialCapital,
		MaxLeverage:           row.MaxLeverage,
		MaxPositionSizePct:    row.MaxPositionSizePct,
		MarginRequirementPct:  row.MarginRequirementPct,
		MaintenanceMarginPct:  row.MaintenanceMarginPct,
		InvocationIntervalMin: int(row.InvocationIntervalMin),
		AllowedInstruments:    allowed,
		MaxParticipants:       int(row.MaxParticipants),
		MarketHoursOnly:       row.MarketHoursOnly,
	}, nil
}
