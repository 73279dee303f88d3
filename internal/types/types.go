// Package types holds the REST request/response DTOs for cmd/api — the
// shape that crosses the wire, kept distinct from pkg/domain's internal
// entities so a schema change on one side never leaks into the other.
package types

import "time"

// IDPathReq is reused by every handler that addresses one resource by its
// path segment.
type IDPathReq struct {
	ID string `path:"id"`
}

// CreateCompetitionReq is the body of POST /competitions.
type CreateCompetitionReq struct {
	Name                  string    `json:"name"`
	StartAt               time.Time `json:"start_at"`
	EndAt                 time.Time `json:"end_at"`
	InitialCapital        string    `json:"initial_capital"`
	MaxLeverage           string    `json:"max_leverage"`
	MaxPositionSizePct    string    `json:"max_position_size_pct"`
	MarginRequirementPct  string    `json:"margin_requirement_pct"`
	MaintenanceMarginPct  string    `json:"maintenance_margin_pct"`
	InvocationIntervalMin int       `json:"invocation_interval_min"`
	AllowedInstruments    []string  `json:"allowed_instruments"`
	MaxParticipants       int       `json:"max_participants,optional"`
	MarketHoursOnly       bool      `json:"market_hours_only,optional"`
}

// CompetitionResp is the wire shape of a domain.Competition.
type CompetitionResp struct {
	ID                    string    `json:"id"`
	Name                  string    `json:"name"`
	Status                string    `json:"status"`
	StartAt               time.Time `json:"start_at"`
	EndAt                 time.Time `json:"end_at"`
	InitialCapital        string    `json:"initial_capital"`
	MaxLeverage           string    `json:"max_leverage"`
	MaxPositionSizePct    string    `json:"max_position_size_pct"`
	MarginRequirementPct  string    `json:"margin_requirement_pct"`
	MaintenanceMarginPct  string    `json:"maintenance_margin_pct"`
	InvocationIntervalMin int       `json:"invocation_interval_min"`
	AllowedInstruments    []string  `json:"allowed_instruments"`
	MaxParticipants       int       `json:"max_participants"`
	MarketHoursOnly       bool      `json:"market_hours_only"`
}

// CompetitionListResp is the body of GET /competitions.
type CompetitionListResp struct {
	Competitions []CompetitionResp `json:"competitions"`
}

// AddParticipantReq is the body of POST /competitions/{id}/participants.
type AddParticipantReq struct {
	CompetitionID     string         `path:"id"`
	DisplayName       string         `json:"display_name"`
	ModelProvider     string         `json:"model_provider"`
	ModelID           string         `json:"model_id"`
	ModelConfigBlob   map[string]any `json:"model_config_blob,optional"`
	InvocationTimeout string         `json:"invocation_timeout"` // Go duration string, e.g. "30s"
}

// ParticipantResp is the wire shape of a domain.Participant.
type ParticipantResp struct {
	ID            string `json:"id"`
	CompetitionID string `json:"competition_id"`
	DisplayName   string `json:"display_name"`
	ModelProvider string `json:"model_provider"`
	ModelID       string `json:"model_id"`
	Status        string `json:"status"`
	CurrentEquity string `json:"current_equity"`
	PeakEquity    string `json:"peak_equity"`
	TotalTrades   int    `json:"total_trades"`
	WinningTrades int    `json:"winning_trades"`
	LosingTrades  int    `json:"losing_trades"`
}

// PositionResp is the wire shape of one open domain.Position.
type PositionResp struct {
	ID             string    `json:"id"`
	Symbol         string    `json:"symbol"`
	Side           string    `json:"side"`
	Quantity       string    `json:"quantity"`
	EntryPrice     string    `json:"entry_price"`
	MarkPrice      string    `json:"mark_price"`
	Leverage       string    `json:"leverage"`
	ReservedMargin string    `json:"reserved_margin"`
	OpenedAt       time.Time `json:"opened_at"`
}

// PortfolioResp is the body of GET /participants/{id}/portfolio.
type PortfolioResp struct {
	ParticipantID   string         `json:"participant_id"`
	Cash            string         `json:"cash"`
	Equity          string         `json:"equity"`
	UnrealizedPnL   string         `json:"unrealized_pnl"`
	ReservedMargin  string         `json:"reserved_margin"`
	AvailableMargin string         `json:"available_margin"`
	CurrentLeverage string         `json:"current_leverage"`
	MarginLevelPct  string         `json:"margin_level_pct"`
	LiquidationDue  bool           `json:"liquidation_due"`
	Positions       []PositionResp `json:"positions"`
}

// PositionListResp is the body of GET /participants/{id}/positions.
type PositionListResp struct {
	Positions []PositionResp `json:"positions"`
}

// TradeResp is the wire shape of one domain.Trade.
type TradeResp struct {
	ID            string    `json:"id"`
	OrderID       string    `json:"order_id"`
	Action        string    `json:"action"`
	Symbol        string    `json:"symbol"`
	Side          string    `json:"side"`
	Quantity      string    `json:"quantity"`
	ExecutedPrice string    `json:"executed_price"`
	RealizedPnL   *string   `json:"realized_pnl,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// TradeListResp is the body of GET /participants/{id}/trades.
type TradeListResp struct {
	Trades []TradeResp `json:"trades"`
}

// OrderResultResp mirrors one domain.OrderExecutionResult.
type OrderResultResp struct {
	OrderID       string `json:"order_id"`
	Status        string `json:"status"`
	RejectReason  string `json:"reject_reason,omitempty"`
	ExecutedPrice string `json:"executed_price"`
}

// InvocationResp is the wire shape of one domain.DecisionRecord.
type InvocationResp struct {
	ID             string            `json:"id"`
	PromptText     string            `json:"prompt_text"`
	RawResponse    string            `json:"raw_response"`
	ParsedDecision string            `json:"parsed_decision"`
	Reasoning      string            `json:"reasoning"`
	OrderResults   []OrderResultResp `json:"order_results"`
	OccurredAt     time.Time         `json:"occurred_at"`
	LatencyMs      int64             `json:"latency_ms"`
	Status         string            `json:"status"`
	ErrorMessage   string            `json:"error_message,omitempty"`
}

// InvocationListResp is the body of GET /participants/{id}/invocations.
type InvocationListResp struct {
	Invocations []InvocationResp `json:"invocations"`
}

// PerformanceResp is the body of GET /participants/{id}/performance.
type PerformanceResp struct {
	ParticipantID string `json:"participant_id"`
	CurrentEquity string `json:"current_equity"`
	PeakEquity    string `json:"peak_equity"`
	TotalTrades   int    `json:"total_trades"`
	WinningTrades int    `json:"winning_trades"`
	LosingTrades  int    `json:"losing_trades"`
	WinRatePct    string `json:"win_rate_pct"`
}

// LeaderboardEntryResp is one row of GET /competitions/{id}/leaderboard.
type LeaderboardEntryResp struct {
	Rank          int    `json:"rank"`
	ParticipantID string `json:"participant_id"`
	Equity        string `json:"equity"`
	TotalTrades   int    `json:"total_trades"`
}

// LeaderboardResp is the full body of GET /competitions/{id}/leaderboard.
type LeaderboardResp struct {
	Entries []LeaderboardEntryResp `json:"entries"`
}

// InvokeParticipantsReq is the body of POST /internal/invoke-participants.
type InvokeParticipantsReq struct {
	CompetitionID string `json:"competition_id,optional"`
}

// ResetCompetitionReq is the body of POST /internal/reset-competition.
type ResetCompetitionReq struct {
	CompetitionID string `json:"competition_id"`
}

// RoundOutcomeResp reports one participant's forced round outcome.
type RoundOutcomeResp struct {
	ParticipantID string `json:"participant_id"`
	Error         string `json:"error,omitempty"`
}

// InvokeParticipantsResp is the body returned by the invoke-participants and
// trigger-invocation admin endpoints.
type InvokeParticipantsResp struct {
	Outcomes []RoundOutcomeResp `json:"outcomes"`
}
