package logic

import (
	"sort"

	"tradearena/internal/types"
	"tradearena/pkg/domain"
	"tradearena/pkg/orchestrator"
	"tradearena/pkg/portfolio"
)

func competitionToResp(c *domain.Competition) types.CompetitionResp {
	instruments := make([]string, 0, len(c.AllowedInstruments))
	for symbol := range c.AllowedInstruments {
		instruments = append(instruments, symbol)
	}
	sort.Strings(instruments)
	return types.CompetitionResp{
		ID:                    c.ID,
		Name:                  c.Name,
		Status:                string(c.Status),
		StartAt:               c.StartAt,
		EndAt:                 c.EndAt,
		InitialCapital:        c.InitialCapital.String(),
		MaxLeverage:           c.MaxLeverage.String(),
		MaxPositionSizePct:    c.MaxPositionSizePct.String(),
		MarginRequirementPct:  c.MarginRequirementPct.String(),
		MaintenanceMarginPct:  c.MaintenanceMarginPct.String(),
		InvocationIntervalMin: c.InvocationIntervalMin,
		AllowedInstruments:    instruments,
		MaxParticipants:       c.MaxParticipants,
		MarketHoursOnly:       c.MarketHoursOnly,
	}
}

func participantToResp(p *domain.Participant) types.ParticipantResp {
	return types.ParticipantResp{
		ID:            p.ID,
		CompetitionID: p.CompetitionID,
		DisplayName:   p.DisplayName,
		ModelProvider: p.ModelProvider,
		ModelID:       p.ModelID,
		Status:        string(p.Status),
		CurrentEquity: p.CurrentEquity.String(),
		PeakEquity:    p.PeakEquity.String(),
		TotalTrades:   p.TotalTrades,
		WinningTrades: p.WinningTrades,
		LosingTrades:  p.LosingTrades,
	}
}

func positionToResp(p *domain.Position) types.PositionResp {
	return types.PositionResp{
		ID:             p.ID,
		Symbol:         p.Symbol,
		Side:           string(p.Side),
		Quantity:       p.Quantity.String(),
		EntryPrice:     p.EntryPrice.String(),
		MarkPrice:      p.MarkPrice.String(),
		Leverage:       p.Leverage.String(),
		ReservedMargin: p.ReservedMargin.String(),
		OpenedAt:       p.OpenedAt,
	}
}

func portfolioSnapshotToResp(participantID string, snap portfolio.Snapshot) types.PortfolioResp {
	positions := make([]types.PositionResp, 0, len(snap.Portfolio.Positions))
	for _, p := range snap.Portfolio.Positions {
		positions = append(positions, positionToResp(p))
	}
	return types.PortfolioResp{
		ParticipantID:   participantID,
		Cash:            snap.Portfolio.Cash.String(),
		Equity:          snap.Equity.String(),
		UnrealizedPnL:   snap.UnrealizedPnL.String(),
		ReservedMargin:  snap.Portfolio.ReservedMargin.String(),
		AvailableMargin: snap.AvailableMargin.String(),
		CurrentLeverage: snap.CurrentLeverage.String(),
		MarginLevelPct:  snap.MarginLevelPct.String(),
		LiquidationDue:  snap.LiquidationDue,
		Positions:       positions,
	}
}

func tradeToResp(t *domain.Trade) types.TradeResp {
	resp := types.TradeResp{
		ID:            t.ID,
		OrderID:       t.OrderID,
		Action:        string(t.Action),
		Symbol:        t.Symbol,
		Side:          string(t.Side),
		Quantity:      t.Quantity.String(),
		ExecutedPrice: t.ExecutedPrice.String(),
		OccurredAt:    t.OccurredAt,
	}
	if t.RealizedPnL.Valid {
		s := t.RealizedPnL.Decimal.String()
		resp.RealizedPnL = &s
	}
	return resp
}

func decisionRecordToResp(rec *domain.DecisionRecord) types.InvocationResp {
	results := make([]types.OrderResultResp, 0, len(rec.OrderResults))
	for _, r := range rec.OrderResults {
		results = append(results, types.OrderResultResp{
			OrderID:       r.OrderID,
			Status:        string(r.Status),
			RejectReason:  string(r.RejectReason),
			ExecutedPrice: r.ExecutedPrice.String(),
		})
	}
	return types.InvocationResp{
		ID:             rec.ID,
		PromptText:     rec.PromptText,
		RawResponse:    rec.RawResponse,
		ParsedDecision: rec.ParsedDecision,
		Reasoning:      rec.Reasoning,
		OrderResults:   results,
		OccurredAt:     rec.OccurredAt,
		LatencyMs:      rec.Latency.Milliseconds(),
		Status:         string(rec.Status),
		ErrorMessage:   rec.ErrorMessage,
	}
}

func leaderboardToResp(entries []orchestrator.LeaderboardEntry) types.LeaderboardResp {
	out := make([]types.LeaderboardEntryResp, 0, len(entries))
	for _, e := range entries {
		out = append(out, types.LeaderboardEntryResp{
			Rank:          e.Rank,
			ParticipantID: e.ParticipantID,
			Equity:        e.Equity.String(),
			TotalTrades:   e.TotalTrades,
		})
	}
	return types.LeaderboardResp{Entries: out}
}
