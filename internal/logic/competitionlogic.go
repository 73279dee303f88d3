package logic

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/zeromicro/go-zero/core/logx"

	"tradearena/internal/svc"
	"tradearena/internal/types"
	"tradearena/pkg/domain"
)

// CreateCompetitionLogic handles POST /competitions.
type CreateCompetitionLogic struct {
	logx.Logger
	ctx    context.Context
	svcCtx *svc.ServiceContext
}

func NewCreateCompetitionLogic(ctx context.Context, svcCtx *svc.ServiceContext) *CreateCompetitionLogic {
	return &CreateCompetitionLogic{Logger: logx.WithContext(ctx), ctx: ctx, svcCtx: svcCtx}
}

func (l *CreateCompetitionLogic) CreateCompetition(req *types.CreateCompetitionReq) (*types.CompetitionResp, error) {
	if l.svcCtx.Persistence == nil {
		return nil, errPersistenceUnavailable
	}

	initialCapital, err := decimal.NewFromString(req.InitialCapital)
	if err != nil {
		return nil, fmt.Errorf("invalid initial_capital: %w", err)
	}
	maxLeverage, err := decimal.NewFromString(req.MaxLeverage)
	if err != nil {
		return nil, fmt.Errorf("invalid max_leverage: %w", err)
	}
	maxPositionSizePct, err := decimal.NewFromString(req.MaxPositionSizePct)
	if err != nil {
		return nil, fmt.Errorf("invalid max_position_size_pct: %w", err)
	}
	marginRequirementPct, err := decimal.NewFromString(req.MarginRequirementPct)
	if err != nil {
		return nil, fmt.Errorf("invalid margin_requirement_pct: %w", err)
	}
	maintenanceMarginPct, err := decimal.NewFromString(req.MaintenanceMarginPct)
	if err != nil {
		return nil, fmt.Errorf("invalid maintenance_margin_pct: %w", err)
	}

	instruments := make(map[string]struct{}, len(req.AllowedInstruments))
	for _, symbol := range req.AllowedInstruments {
		instruments[symbol] = struct{}{}
	}

	competition := &domain.Competition{
		ID:                    uuid.NewString(),
		Name:                  req.Name,
		Status:                domain.CompetitionPending,
		StartAt:               req.StartAt,
		EndAt:                 req.EndAt,
		InitialCapital:        initialCapital,
		MaxLeverage:           maxLeverage,
		MaxPositionSizePct:    maxPositionSizePct,
		MarginRequirementPct:  marginRequirementPct,
		MaintenanceMarginPct:  maintenanceMarginPct,
		InvocationIntervalMin: req.InvocationIntervalMin,
		AllowedInstruments:    instruments,
		MaxParticipants:       req.MaxParticipants,
		MarketHoursOnly:       req.MarketHoursOnly,
	}

	if err := l.svcCtx.CompetitionsModel.SaveCompetition(l.ctx, competition); err != nil {
		return nil, fmt.Errorf("save competition: %w", err)
	}

	resp := competitionToResp(competition)
	return &resp, nil
}

// ListCompetitionsLogic handles GET /competitions.
type ListCompetitionsLogic struct {
	logx.Logger
	ctx    context.Context
	svcCtx *svc.ServiceContext
}

func NewListCompetitionsLogic(ctx context.Context, svcCtx *svc.ServiceContext) *ListCompetitionsLogic {
	return &ListCompetitionsLogic{Logger: logx.WithContext(ctx), ctx: ctx, svcCtx: svcCtx}
}

func (l *ListCompetitionsLogic) ListCompetitions() (*types.CompetitionListResp, error) {
	if l.svcCtx.Persistence == nil {
		return nil, errPersistenceUnavailable
	}
	competitions, err := l.svcCtx.Persistence.ActiveCompetitions()
	if err != nil {
		return nil, fmt.Errorf("list active competitions: %w", err)
	}
	resp := &types.CompetitionListResp{Competitions: make([]types.CompetitionResp, 0, len(competitions))}
	for _, c := range competitions {
		resp.Competitions = append(resp.Competitions, competitionToResp(c))
	}
	return resp, nil
}

// GetCompetitionLogic handles GET /competitions/{id}.
type GetCompetitionLogic struct {
	logx.Logger
	ctx    context.Context
	svcCtx *svc.ServiceContext
}

func NewGetCompetitionLogic(ctx context.Context, svcCtx *svc.ServiceContext) *GetCompetitionLogic {
	return &GetCompetitionLogic{Logger: logx.WithContext(ctx), ctx: ctx, svcCtx: svcCtx}
}

func (l *GetCompetitionLogic) GetCompetition(req *types.IDPathReq) (*types.CompetitionResp, error) {
	if l.svcCtx.Persistence == nil {
		return nil, errPersistenceUnavailable
	}
	competition, err := l.svcCtx.Persistence.Competition(req.ID)
	if err != nil {
		return nil, fmt.Errorf("load competition %s: %w", req.ID, err)
	}
	resp := competitionToResp(competition)
	return &resp, nil
}

// StartCompetitionLogic handles POST /competitions/{id}/start.
type StartCompetitionLogic struct {
	logx.Logger
	ctx    context.Context
	svcCtx *svc.ServiceContext
}

func NewStartCompetitionLogic(ctx context.Context, svcCtx *svc.ServiceContext) *StartCompetitionLogic {
	return &StartCompetitionLogic{Logger: logx.WithContext(ctx), ctx: ctx, svcCtx: svcCtx}
}

func (l *StartCompetitionLogic) StartCompetition(req *types.IDPathReq) (*types.CompetitionResp, error) {
	return setCompetitionStatus(l.ctx, l.svcCtx, req.ID, domain.CompetitionActive)
}

// StopCompetitionLogic handles POST /competitions/{id}/stop.
type StopCompetitionLogic struct {
	logx.Logger
	ctx    context.Context
	svcCtx *svc.ServiceContext
}

func NewStopCompetitionLogic(ctx context.Context, svcCtx *svc.ServiceContext) *StopCompetitionLogic {
	return &StopCompetitionLogic{Logger: logx.WithContext(ctx), ctx: ctx, svcCtx: svcCtx}
}

func (l *StopCompetitionLogic) StopCompetition(req *types.IDPathReq) (*types.CompetitionResp, error) {
	return setCompetitionStatus(l.ctx, l.svcCtx, req.ID, domain.CompetitionCompleted)
}

func setCompetitionStatus(ctx context.Context, svcCtx *svc.ServiceContext, id string, status domain.CompetitionStatus) (*types.CompetitionResp, error) {
	if svcCtx.Persistence == nil {
		return nil, errPersistenceUnavailable
	}
	competition, err := svcCtx.Persistence.Competition(id)
	if err != nil {
		return nil, fmt.Errorf("load competition %s: %w", id, err)
	}
	competition.Status = status
	if err := svcCtx.CompetitionsModel.SaveCompetition(ctx, competition); err != nil {
		return nil, fmt.Errorf("save competition %s: %w", id, err)
	}
	resp := competitionToResp(competition)
	return &resp, nil
}

// errPersistenceUnavailable is returned by every logic method that needs
// Postgres when the service context was wired without it.
var errPersistenceUnavailable = errors.New("logic: postgres is not configured")

// LeaderboardLogic handles GET /competitions/{id}/leaderboard.
type LeaderboardLogic struct {
	logx.Logger
	ctx    context.Context
	svcCtx *svc.ServiceContext
}

func NewLeaderboardLogic(ctx context.Context, svcCtx *svc.ServiceContext) *LeaderboardLogic {
	return &LeaderboardLogic{Logger: logx.WithContext(ctx), ctx: ctx, svcCtx: svcCtx}
}

func (l *LeaderboardLogic) Leaderboard(req *types.IDPathReq) (*types.LeaderboardResp, error) {
	if l.svcCtx.Persistence == nil {
		return nil, errPersistenceUnavailable
	}
	entries, err := l.svcCtx.Persistence.Leaderboard(req.ID)
	if err != nil {
		return nil, fmt.Errorf("leaderboard competition=%s: %w", req.ID, err)
	}
	resp := leaderboardToResp(entries)
	return &resp, nil
}
