package logic

import (
	"context"
	"fmt"

	"github.com/zeromicro/go-zero/core/logx"

	"tradearena/internal/svc"
	"tradearena/internal/types"
)

// InvokeParticipantsLogic handles POST /internal/invoke-participants: forces
// a decision round for every active participant of a competition (or every
// active competition when none is given) outside the scheduler's own tick
// cadence, for manual testing and incident response.
type InvokeParticipantsLogic struct {
	logx.Logger
	ctx    context.Context
	svcCtx *svc.ServiceContext
}

func NewInvokeParticipantsLogic(ctx context.Context, svcCtx *svc.ServiceContext) *InvokeParticipantsLogic {
	return &InvokeParticipantsLogic{Logger: logx.WithContext(ctx), ctx: ctx, svcCtx: svcCtx}
}

func (l *InvokeParticipantsLogic) InvokeParticipants(req *types.InvokeParticipantsReq) (*types.InvokeParticipantsResp, error) {
	if l.svcCtx.Persistence == nil {
		return nil, errPersistenceUnavailable
	}

	competitionIDs := []string{req.CompetitionID}
	if req.CompetitionID == "" {
		competitions, err := l.svcCtx.Persistence.ActiveCompetitions()
		if err != nil {
			return nil, fmt.Errorf("list active competitions: %w", err)
		}
		competitionIDs = competitionIDs[:0]
		for _, c := range competitions {
			competitionIDs = append(competitionIDs, c.ID)
		}
	}

	resp := &types.InvokeParticipantsResp{}
	for _, competitionID := range competitionIDs {
		participants, err := l.svcCtx.Persistence.ActiveParticipants(competitionID)
		if err != nil {
			return nil, fmt.Errorf("list active participants competition=%s: %w", competitionID, err)
		}
		for _, participant := range participants {
			outcome := types.RoundOutcomeResp{ParticipantID: participant.ID}
			if err := l.svcCtx.Orchestrator.Round(l.ctx, participant.ID); err != nil {
				outcome.Error = err.Error()
			}
			resp.Outcomes = append(resp.Outcomes, outcome)
		}
	}
	return resp, nil
}

// TriggerInvocationLogic handles POST /internal/trigger-invocation/{id}: a
// single participant's forced round, the one-line version of
// InvokeParticipantsLogic used by per-participant admin tooling.
type TriggerInvocationLogic struct {
	logx.Logger
	ctx    context.Context
	svcCtx *svc.ServiceContext
}

func NewTriggerInvocationLogic(ctx context.Context, svcCtx *svc.ServiceContext) *TriggerInvocationLogic {
	return &TriggerInvocationLogic{Logger: logx.WithContext(ctx), ctx: ctx, svcCtx: svcCtx}
}

func (l *TriggerInvocationLogic) TriggerInvocation(req *types.IDPathReq) (*types.InvokeParticipantsResp, error) {
	outcome := types.RoundOutcomeResp{ParticipantID: req.ID}
	if err := l.svcCtx.Orchestrator.Round(l.ctx, req.ID); err != nil {
		outcome.Error = err.Error()
	}
	return &types.InvokeParticipantsResp{Outcomes: []types.RoundOutcomeResp{outcome}}, nil
}

// ResetCompetitionLogic handles POST /internal/reset-competition: re-hydrates
// portfolio.Manager's in-memory state for one competition from Postgres,
// undoing any in-memory drift without restarting the process.
type ResetCompetitionLogic struct {
	logx.Logger
	ctx    context.Context
	svcCtx *svc.ServiceContext
}

func NewResetCompetitionLogic(ctx context.Context, svcCtx *svc.ServiceContext) *ResetCompetitionLogic {
	return &ResetCompetitionLogic{Logger: logx.WithContext(ctx), ctx: ctx, svcCtx: svcCtx}
}

func (l *ResetCompetitionLogic) ResetCompetition(req *types.ResetCompetitionReq) error {
	if l.svcCtx.Persistence == nil {
		return errPersistenceUnavailable
	}
	participants, err := l.svcCtx.Persistence.ActiveParticipants(req.CompetitionID)
	if err != nil {
		return fmt.Errorf("list active participants competition=%s: %w", req.CompetitionID, err)
	}
	for _, participant := range participants {
		folio, err := l.svcCtx.PortfoliosModel.LoadByParticipant(l.ctx, participant.ID)
		if err != nil {
			return fmt.Errorf("reload portfolio participant=%s: %w", participant.ID, err)
		}
		l.svcCtx.PortfolioManager.Register(folio)
	}
	return nil
}
