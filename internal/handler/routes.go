package handler

import (
	"net/http"

	"github.com/zeromicro/go-zero/rest"

	"tradearena/internal/middleware"
	"tradearena/internal/svc"
)

// RegisterHandlers wires every spec §6 REST endpoint onto server. Read
// routes are open; every mutating or /internal route is gated by the
// X-API-Key middleware.
func RegisterHandlers(server *rest.Server, svcCtx *svc.ServiceContext) {
	gate := middleware.NewAPIKeyMiddleware(svcCtx.Config)

	server.AddRoutes([]rest.Route{
		{Method: http.MethodPost, Path: "/competitions", Handler: gate.Handle(CreateCompetitionHandler(svcCtx))},
		{Method: http.MethodGet, Path: "/competitions", Handler: ListCompetitionsHandler(svcCtx)},
		{Method: http.MethodGet, Path: "/competitions/:id", Handler: GetCompetitionHandler(svcCtx)},
		{Method: http.MethodPost, Path: "/competitions/:id/start", Handler: gate.Handle(StartCompetitionHandler(svcCtx))},
		{Method: http.MethodPost, Path: "/competitions/:id/stop", Handler: gate.Handle(StopCompetitionHandler(svcCtx))},
		{Method: http.MethodPost, Path: "/competitions/:id/participants", Handler: gate.Handle(AddParticipantHandler(svcCtx))},
		{Method: http.MethodGet, Path: "/competitions/:id/leaderboard", Handler: LeaderboardHandler(svcCtx)},

		{Method: http.MethodGet, Path: "/participants/:id", Handler: GetParticipantHandler(svcCtx)},
		{Method: http.MethodGet, Path: "/participants/:id/portfolio", Handler: GetPortfolioHandler(svcCtx)},
		{Method: http.MethodGet, Path: "/participants/:id/positions", Handler: GetPositionsHandler(svcCtx)},
		{Method: http.MethodGet, Path: "/participants/:id/trades", Handler: GetTradesHandler(svcCtx)},
		{Method: http.MethodGet, Path: "/participants/:id/invocations", Handler: GetInvocationsHandler(svcCtx)},
		{Method: http.MethodGet, Path: "/participants/:id/performance", Handler: GetPerformanceHandler(svcCtx)},

		{Method: http.MethodPost, Path: "/internal/invoke-participants", Handler: gate.Handle(InvokeParticipantsHandler(svcCtx))},
		{Method: http.MethodPost, Path: "/internal/trigger-invocation/:id", Handler: gate.Handle(TriggerInvocationHandler(svcCtx))},
		{Method: http.MethodPost, Path: "/internal/reset-competition", Handler: gate.Handle(ResetCompetitionHandler(svcCtx))},
	})
}
