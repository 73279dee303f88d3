package logic

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/zeromicro/go-zero/core/logx"

	"tradearena/internal/svc"
	"tradearena/internal/types"
	"tradearena/pkg/domain"
)

// AddParticipantLogic handles POST /competitions/{id}/participants.
type AddParticipantLogic struct {
	logx.Logger
	ctx    context.Context
	svcCtx *svc.ServiceContext
}

func NewAddParticipantLogic(ctx context.Context, svcCtx *svc.ServiceContext) *AddParticipantLogic {
	return &AddParticipantLogic{Logger: logx.WithContext(ctx), ctx: ctx, svcCtx: svcCtx}
}

func (l *AddParticipantLogic) AddParticipant(req *types.AddParticipantReq) (*types.ParticipantResp, error) {
	if l.svcCtx.Persistence == nil {
		return nil, errPersistenceUnavailable
	}

	competitionID := req.CompetitionID
	competition, err := l.svcCtx.Persistence.Competition(competitionID)
	if err != nil {
		return nil, fmt.Errorf("load competition %s: %w", competitionID, err)
	}

	timeout := 30 * time.Second
	if req.InvocationTimeout != "" {
		parsed, err := time.ParseDuration(req.InvocationTimeout)
		if err != nil {
			return nil, fmt.Errorf("invalid invocation_timeout: %w", err)
		}
		timeout = parsed
	}

	participant := &domain.Participant{
		ID:                uuid.NewString(),
		CompetitionID:     competitionID,
		DisplayName:       req.DisplayName,
		ModelProvider:     req.ModelProvider,
		ModelID:           req.ModelID,
		ModelConfigBlob:   req.ModelConfigBlob,
		InvocationTimeout: timeout,
		Status:            domain.ParticipantActive,
		CurrentEquity:     competition.InitialCapital,
		PeakEquity:        competition.InitialCapital,
	}

	if err := l.svcCtx.Persistence.SaveParticipant(participant); err != nil {
		return nil, fmt.Errorf("save participant: %w", err)
	}

	portfolio := &domain.Portfolio{
		ID:            uuid.NewString(),
		ParticipantID: participant.ID,
		Cash:          competition.InitialCapital,
	}
	if err := l.svcCtx.PortfoliosModel.SavePortfolio(l.ctx, portfolio); err != nil {
		return nil, fmt.Errorf("save initial portfolio: %w", err)
	}
	l.svcCtx.PortfolioManager.Register(portfolio)

	resp := participantToResp(participant)
	return &resp, nil
}

// GetParticipantLogic handles GET /participants/{id}.
type GetParticipantLogic struct {
	logx.Logger
	ctx    context.Context
	svcCtx *svc.ServiceContext
}

func NewGetParticipantLogic(ctx context.Context, svcCtx *svc.ServiceContext) *GetParticipantLogic {
	return &GetParticipantLogic{Logger: logx.WithContext(ctx), ctx: ctx, svcCtx: svcCtx}
}

func (l *GetParticipantLogic) GetParticipant(req *types.IDPathReq) (*types.ParticipantResp, error) {
	if l.svcCtx.Persistence == nil {
		return nil, errPersistenceUnavailable
	}
	participant, err := l.svcCtx.Persistence.Participant(req.ID)
	if err != nil {
		return nil, fmt.Errorf("load participant %s: %w", req.ID, err)
	}
	resp := participantToResp(participant)
	return &resp, nil
}

// GetPortfolioLogic handles GET /participants/{id}/portfolio.
type GetPortfolioLogic struct {
	logx.Logger
	ctx    context.Context
	svcCtx *svc.ServiceContext
}

func NewGetPortfolioLogic(ctx context.Context, svcCtx *svc.ServiceContext) *GetPortfolioLogic {
	return &GetPortfolioLogic{Logger: logx.WithContext(ctx), ctx: ctx, svcCtx: svcCtx}
}

func (l *GetPortfolioLogic) GetPortfolio(req *types.IDPathReq) (*types.PortfolioResp, error) {
	competition, _, err := loadCompetitionForParticipant(l.svcCtx, req.ID)
	if err != nil {
		return nil, err
	}
	snap, err := l.svcCtx.PortfolioManager.Snapshot(req.ID, competition.MaintenanceMarginPct)
	if err != nil {
		return nil, fmt.Errorf("snapshot portfolio %s: %w", req.ID, err)
	}
	resp := portfolioSnapshotToResp(req.ID, snap)
	return &resp, nil
}

func loadCompetitionForParticipant(svcCtx *svc.ServiceContext, participantID string) (*domain.Competition, *domain.Participant, error) {
	if svcCtx.Persistence == nil {
		return nil, nil, errPersistenceUnavailable
	}
	participant, err := svcCtx.Persistence.Participant(participantID)
	if err != nil {
		return nil, nil, fmt.Errorf("load participant %s: %w", participantID, err)
	}
	competition, err := svcCtx.Persistence.Competition(participant.CompetitionID)
	if err != nil {
		return nil, nil, fmt.Errorf("load competition %s: %w", participant.CompetitionID, err)
	}
	return competition, participant, nil
}

// GetPositionsLogic handles GET /participants/{id}/positions.
type GetPositionsLogic struct {
	logx.Logger
	ctx    context.Context
	svcCtx *svc.ServiceContext
}

func NewGetPositionsLogic(ctx context.Context, svcCtx *svc.ServiceContext) *GetPositionsLogic {
	return &GetPositionsLogic{Logger: logx.WithContext(ctx), ctx: ctx, svcCtx: svcCtx}
}

func (l *GetPositionsLogic) GetPositions(req *types.IDPathReq) (*types.PositionListResp, error) {
	if l.svcCtx.Persistence == nil {
		return nil, errPersistenceUnavailable
	}
	competition, _, err := loadCompetitionForParticipant(l.svcCtx, req.ID)
	if err != nil {
		return nil, err
	}
	snap, err := l.svcCtx.PortfolioManager.Snapshot(req.ID, competition.MaintenanceMarginPct)
	if err != nil {
		return nil, fmt.Errorf("snapshot portfolio %s: %w", req.ID, err)
	}
	resp := &types.PositionListResp{Positions: make([]types.PositionResp, 0, len(snap.Portfolio.Positions))}
	for _, p := range snap.Portfolio.Positions {
		resp.Positions = append(resp.Positions, positionToResp(p))
	}
	return resp, nil
}

// GetTradesLogic handles GET /participants/{id}/trades.
type GetTradesLogic struct {
	logx.Logger
	ctx    context.Context
	svcCtx *svc.ServiceContext
}

func NewGetTradesLogic(ctx context.Context, svcCtx *svc.ServiceContext) *GetTradesLogic {
	return &GetTradesLogic{Logger: logx.WithContext(ctx), ctx: ctx, svcCtx: svcCtx}
}

const defaultHistoryLimit = 50

func (l *GetTradesLogic) GetTrades(req *types.IDPathReq) (*types.TradeListResp, error) {
	if l.svcCtx.Persistence == nil {
		return nil, errPersistenceUnavailable
	}
	trades, err := l.svcCtx.Persistence.RecentTrades(req.ID, defaultHistoryLimit)
	if err != nil {
		return nil, fmt.Errorf("recent trades participant=%s: %w", req.ID, err)
	}
	resp := &types.TradeListResp{Trades: make([]types.TradeResp, 0, len(trades))}
	for _, t := range trades {
		resp.Trades = append(resp.Trades, tradeToResp(t))
	}
	return resp, nil
}

// GetInvocationsLogic handles GET /participants/{id}/invocations.
type GetInvocationsLogic struct {
	logx.Logger
	ctx    context.Context
	svcCtx *svc.ServiceContext
}

func NewGetInvocationsLogic(ctx context.Context, svcCtx *svc.ServiceContext) *GetInvocationsLogic {
	return &GetInvocationsLogic{Logger: logx.WithContext(ctx), ctx: ctx, svcCtx: svcCtx}
}

func (l *GetInvocationsLogic) GetInvocations(req *types.IDPathReq) (*types.InvocationListResp, error) {
	if l.svcCtx.ConversationsModel == nil {
		return nil, errPersistenceUnavailable
	}
	records, err := l.svcCtx.ConversationsModel.FindByParticipant(l.ctx, req.ID, defaultHistoryLimit)
	if err != nil {
		return nil, fmt.Errorf("invocations participant=%s: %w", req.ID, err)
	}
	resp := &types.InvocationListResp{Invocations: make([]types.InvocationResp, 0, len(records))}
	for _, rec := range records {
		resp.Invocations = append(resp.Invocations, decisionRecordToResp(rec))
	}
	return resp, nil
}

// GetPerformanceLogic handles GET /participants/{id}/performance.
type GetPerformanceLogic struct {
	logx.Logger
	ctx    context.Context
	svcCtx *svc.ServiceContext
}

func NewGetPerformanceLogic(ctx context.Context, svcCtx *svc.ServiceContext) *GetPerformanceLogic {
	return &GetPerformanceLogic{Logger: logx.WithContext(ctx), ctx: ctx, svcCtx: svcCtx}
}

func (l *GetPerformanceLogic) GetPerformance(req *types.IDPathReq) (*types.PerformanceResp, error) {
	if l.svcCtx.Persistence == nil {
		return nil, errPersistenceUnavailable
	}
	p, err := l.svcCtx.Persistence.Participant(req.ID)
	if err != nil {
		return nil, fmt.Errorf("load participant %s: %w", req.ID, err)
	}
	winRate := "0"
	if p.TotalTrades > 0 {
		winRate = fmt.Sprintf("%.4f", float64(p.WinningTrades)/float64(p.TotalTrades)*100)
	}
	return &types.PerformanceResp{
		ParticipantID: p.ID,
		CurrentEquity: p.CurrentEquity.String(),
		PeakEquity:    p.PeakEquity.String(),
		TotalTrades:   p.TotalTrades,
		WinningTrades: p.WinningTrades,
		LosingTrades:  p.LosingTrades,
		WinRatePct:    winRate,
	}, nil
}
