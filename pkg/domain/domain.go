// Package domain defines the core entities shared by the trading engine:
// competitions, participants, portfolios, positions, orders, trades and
// decision records. All monetary, quantity and leverage fields use
// shopspring/decimal so the engine never performs binary floating point
// arithmetic on money.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// CompetitionStatus enumerates the lifecycle of a Competition.
type CompetitionStatus string

const (
	CompetitionPending   CompetitionStatus = "pending"
	CompetitionActive    CompetitionStatus = "active"
	CompetitionCompleted CompetitionStatus = "completed"
	CompetitionCancelled CompetitionStatus = "cancelled"
)

// ParticipantStatus enumerates the lifecycle of a Participant.
type ParticipantStatus string

const (
	ParticipantActive       ParticipantStatus = "active"
	ParticipantLiquidated   ParticipantStatus = "liquidated"
	ParticipantDisqualified ParticipantStatus = "disqualified"
	ParticipantWithdrawn    ParticipantStatus = "withdrawn"
)

// Side is the direction of a CFD position or open order.
type Side string

const (
	SideLong  Side = "long"
	SideShort Side = "short"
)

// Sign returns +1 for long and -1 for short, used in P&L formulas.
func (s Side) Sign() int64 {
	if s == SideShort {
		return -1
	}
	return 1
}

// Opposite returns the closing side for a position of this side.
func (s Side) Opposite() Side {
	if s == SideLong {
		return SideShort
	}
	return SideLong
}

// OrderAction is the intended action of one order in a decision.
type OrderAction string

const (
	ActionOpen  OrderAction = "open"
	ActionClose OrderAction = "close"
)

// OrderStatus tracks an order through the validation/execution pipeline.
type OrderStatus string

const (
	OrderPending  OrderStatus = "pending"
	OrderAccepted OrderStatus = "accepted"
	OrderRejected OrderStatus = "rejected"
	OrderExecuted OrderStatus = "executed"
)

// InvocationStatus records the outcome of one decision round.
type InvocationStatus string

const (
	InvocationSuccess        InvocationStatus = "success"
	InvocationTimeout        InvocationStatus = "timeout"
	InvocationTransportError InvocationStatus = "transport_error"
	InvocationInvalidResp    InvocationStatus = "invalid_response"
)

// RejectReason enumerates the stable, machine-readable validation outcomes
// from §4.4/§7 of the specification.
type RejectReason string

const (
	ReasonParticipantInactive RejectReason = "participant_inactive"
	ReasonCompetitionInactive RejectReason = "competition_inactive"
	ReasonInstrumentDisallow  RejectReason = "instrument_disallowed"
	ReasonLeverageOutOfBounds RejectReason = "leverage_out_of_bounds"
	ReasonQuantityNonPositive RejectReason = "quantity_non_positive"
	ReasonPriceUnavailable    RejectReason = "price_unavailable"
	ReasonSizeCapExceeded     RejectReason = "size_cap_exceeded"
	ReasonInsufficientMargin  RejectReason = "insufficient_margin"
	ReasonPositionNotOwned    RejectReason = "position_not_owned"
)

// Competition is the rule-set and time window of one contest.
type Competition struct {
	ID                   string
	Name                 string
	Status               CompetitionStatus
	StartAt              time.Time
	EndAt                time.Time
	InitialCapital       decimal.Decimal
	MaxLeverage          decimal.Decimal
	MaxPositionSizePct   decimal.Decimal // % of current equity
	MarginRequirementPct decimal.Decimal
	MaintenanceMarginPct decimal.Decimal
	InvocationIntervalMin int
	AllowedInstruments   map[string]struct{}
	MaxParticipants      int
	MarketHoursOnly      bool
}

// IsAllowed reports whether symbol is in the competition's instrument set.
func (c *Competition) IsAllowed(symbol string) bool {
	if c == nil || c.AllowedInstruments == nil {
		return false
	}
	_, ok := c.AllowedInstruments[symbol]
	return ok
}

// WithinWindow reports whether now falls inside [StartAt, EndAt).
func (c *Competition) WithinWindow(now time.Time) bool {
	if c == nil {
		return false
	}
	return !now.Before(c.StartAt) && now.Before(c.EndAt)
}

// Participant is one agent enrolled in one competition.
type Participant struct {
	ID               string
	CompetitionID    string
	DisplayName      string
	ModelProvider    string
	ModelID          string
	ModelConfigBlob  map[string]any
	InvocationTimeout time.Duration
	Status           ParticipantStatus
	CurrentEquity    decimal.Decimal
	PeakEquity       decimal.Decimal
	TotalTrades      int
	WinningTrades    int
	LosingTrades     int
}

// IsActive reports whether the participant may currently receive orders.
func (p *Participant) IsActive() bool {
	return p != nil && p.Status == ParticipantActive
}

// Portfolio is the financial state of one participant (1:1).
type Portfolio struct {
	ID             string
	ParticipantID  string
	Cash           decimal.Decimal
	ReservedMargin decimal.Decimal
	RealizedPnL    decimal.Decimal
	Positions      []*Position
}

// Position is one open CFD leg.
type Position struct {
	ID             string
	PortfolioID    string
	Symbol         string
	Side           Side
	Quantity       decimal.Decimal
	EntryPrice     decimal.Decimal
	MarkPrice      decimal.Decimal
	Leverage       decimal.Decimal
	ReservedMargin decimal.Decimal
	OpenedAt       time.Time
}

// Order is one intended action from an agent decision.
type Order struct {
	ID              string
	ParticipantID   string
	DecisionID      string
	Action          OrderAction
	Symbol          string
	Side            Side
	Quantity        decimal.Decimal
	Leverage        decimal.Decimal
	TargetPositionID string
	Status          OrderStatus
	RejectReason    RejectReason
	ExecutedPrice   decimal.Decimal
}

// Trade is the historical record of one state-changing execution.
type Trade struct {
	ID                 string
	ParticipantID      string
	OrderID            string
	Action             OrderAction
	Symbol             string
	Side               Side
	Quantity           decimal.Decimal
	ExecutedPrice      decimal.Decimal
	RealizedPnL        decimal.NullDecimal
	ReservedMarginDelta decimal.Decimal
	OccurredAt         time.Time
}

// OrderExecutionResult is the audit record of one order's pass through C4.
type OrderExecutionResult struct {
	OrderID       string
	Status        OrderStatus
	RejectReason  RejectReason
	ExecutedPrice decimal.Decimal
}

// DecisionRecord is the audit of one agent round (§3 "Decision Record").
type DecisionRecord struct {
	ID              string
	ParticipantID   string
	CompetitionID   string
	PromptText      string
	PromptTokens    *int
	ResponseTokens  *int
	RawResponse     string
	ParsedDecision  string // "trade" | "hold"
	Reasoning       string
	OrderResults    []OrderExecutionResult
	OccurredAt      time.Time
	Latency         time.Duration
	Status          InvocationStatus
	ErrorMessage    string
	CostEstimate    *decimal.Decimal
}
