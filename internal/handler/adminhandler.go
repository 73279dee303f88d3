package handler

import (
	"net/http"

	"github.com/zeromicro/go-zero/rest/httpx"

	"tradearena/internal/logic"
	"tradearena/internal/svc"
	"tradearena/internal/types"
)

func InvokeParticipantsHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.InvokeParticipantsReq
		if err := httpx.Parse(r, &req); err != nil {
			httpx.Error(w, err)
			return
		}
		l := logic.NewInvokeParticipantsLogic(r.Context(), svcCtx)
		resp, err := l.InvokeParticipants(&req)
		if err != nil {
			httpx.Error(w, err)
			return
		}
		httpx.OkJson(w, resp)
	}
}

func TriggerInvocationHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.IDPathReq
		if err := httpx.Parse(r, &req); err != nil {
			httpx.Error(w, err)
			return
		}
		l := logic.NewTriggerInvocationLogic(r.Context(), svcCtx)
		resp, err := l.TriggerInvocation(&req)
		if err != nil {
			httpx.Error(w, err)
			return
		}
		httpx.OkJson(w, resp)
	}
}

func ResetCompetitionHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.ResetCompetitionReq
		if err := httpx.Parse(r, &req); err != nil {
			httpx.Error(w, err)
			return
		}
		l := logic.NewResetCompetitionLogic(r.Context(), svcCtx)
		if err := l.ResetCompetition(&req); err != nil {
			httpx.Error(w, err)
			return
		}
		httpx.Ok(w)
	}
}
