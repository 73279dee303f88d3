// Package orchestrator implements the decision orchestrator (spec §4.5,
// C5): the per-participant round state machine
// Idle → Building → Invoking → Parsing → Executing → Recording → Idle,
// with short-circuit transitions to Recording on any terminal failure.
//
// Grounded on the teacher's pkg/executor/executor.go GetFullDecision
// (render prompt → call LLM → parse → return) fused with
// pkg/manager/manager.go's RunTradingLoop cycle body (journal the cycle,
// execute each decision, update trader state), generalized from a single
// live trader to one participant round with an explicit lane release
// around model invocation.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/zeromicro/go-zero/core/logx"

	"tradearena/pkg/domain"
	"tradearena/pkg/market"
	"tradearena/pkg/portfolio"
	"tradearena/pkg/tradingengine"
)

// RoundState is one stage of the per-participant decision state machine.
type RoundState string

const (
	StateIdle      RoundState = "idle"
	StateBuilding  RoundState = "building"
	StateInvoking  RoundState = "invoking"
	StateParsing   RoundState = "parsing"
	StateExecuting RoundState = "executing"
	StateRecording RoundState = "recording"
)

// TransportErrorKind classifies a model-invocation failure per spec §7.
type TransportErrorKind string

const (
	TransportTimeout   TransportErrorKind = "timeout"
	TransportAuth      TransportErrorKind = "auth"
	TransportTransient TransportErrorKind = "transient"
	TransportCancelled TransportErrorKind = "cancelled"
)

// TransportError is returned by a ModelInvoker on failure; only
// TransportTransient is retried, and at most once, by the orchestrator.
type TransportError struct {
	Kind TransportErrorKind
	Err  error
}

func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("orchestrator: transport error (%s): %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("orchestrator: transport error (%s)", e.Kind)
}

func (e *TransportError) Unwrap() error { return e.Err }

// InvocationResult is the model's response (spec §6's invoke(...) success shape).
type InvocationResult struct {
	ResponseText   string
	PromptTokens   *int
	ResponseTokens *int
	CostEstimate   *decimal.Decimal
}

// ModelInvoker is the capability interface consumed by C5 (spec §6,
// "Polymorphism over providers" in §9: one shape for every provider).
type ModelInvoker interface {
	Invoke(ctx context.Context, providerTag, modelID string, configBlob map[string]any, promptText string, deadline time.Time) (InvocationResult, error)
}

// ParsedDecision is the structured result of parsing the model's response.
type ParsedDecision struct {
	Decision  string // "trade" | "hold"
	Reasoning string
	Orders    []domain.Order
}

// ErrInvalidResponse is returned by a Parser when the response cannot be
// decoded into the expected wire shape.
var ErrInvalidResponse = errors.New("orchestrator: invalid model response")

// Parser extracts a ParsedDecision from the model's raw response text.
type Parser interface {
	Parse(raw string) (ParsedDecision, error)
}

// PromptBuilder assembles the prompt text from a round's snapshot. It must
// quote the exact per-order notional cap, state that leverage affects
// margin and not the cap, and advertise a safety buffer (spec §4.5 step 2).
type PromptBuilder interface {
	Build(snapshot RoundSnapshot) (string, error)
}

// LeaderboardEntry is one row of the competition leaderboard slice
// included in a round's snapshot.
type LeaderboardEntry struct {
	ParticipantID string
	Equity        decimal.Decimal
	TotalTrades   int
	Rank          int
}

// RoundSnapshot is the single, consistent view an agent sees for one round
// (spec §4.5 step 1).
type RoundSnapshot struct {
	Participant  *domain.Participant
	Competition  *domain.Competition
	Portfolio    portfolio.Snapshot
	Prices       map[string]decimal.Decimal
	Indicators   map[string]market.IndicatorInfo // SUPPLEMENTED FEATURE 4: read-only technical context, never consulted by validation/execution
	RecentTrades []*domain.Trade
	Leaderboard  []LeaderboardEntry
	SizeCap      decimal.Decimal // qty*price ceiling for one order, quoted verbatim in the prompt
}

// IndicatorSource supplies the technical indicators computed for a symbol's
// most recent market snapshot. Optional: a nil IndicatorSource simply omits
// the indicator block from the prompt.
type IndicatorSource interface {
	Indicators(symbol string) (market.IndicatorInfo, bool)
}

// CompetitionStore, ParticipantStore and PriceSource are reused from
// pkg/tradingengine so the orchestrator and the engine share one view of
// competition rules, participant state and marks.
type CompetitionStore = tradingengine.CompetitionStore
type ParticipantStore = tradingengine.ParticipantStore
type PriceSource = tradingengine.PriceSource

// RecentTradesStore supplies the recent-trades slice for a round's snapshot.
type RecentTradesStore interface {
	RecentTrades(participantID string, limit int) ([]*domain.Trade, error)
}

// LeaderboardStore supplies the leaderboard slice for a round's snapshot.
type LeaderboardStore interface {
	Leaderboard(competitionID string) ([]LeaderboardEntry, error)
}

// DecisionRecorder persists the DecisionRecord produced by a round,
// regardless of outcome.
type DecisionRecorder interface {
	Record(rec *domain.DecisionRecord) error
}

// MultiRecorder fans one DecisionRecord out to several recorders — the
// authoritative persistence-backed store and the local journal mirror, for
// instance. All recorders are attempted even if one fails; the first
// error encountered is returned after every recorder has run.
type MultiRecorder []DecisionRecorder

// Record implements DecisionRecorder.
func (m MultiRecorder) Record(rec *domain.DecisionRecord) error {
	var firstErr error
	for _, recorder := range m {
		if err := recorder.Record(rec); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// TradeRecorder appends one executed trade to the historical ledger. A nil
// TradeRecorder simply skips persistence — the in-memory portfolio mutation
// from tradingengine.Engine.Execute already happened regardless.
type TradeRecorder interface {
	RecordTrade(trade *domain.Trade) error
}

// Option configures optional Orchestrator behavior not carried by New's
// required collaborators.
type Option func(*Orchestrator)

// WithTradeRecorder enables persisting each executed trade at the point
// Engine.Execute returns one, since domain.DecisionRecord.OrderResults
// carries only the execution outcome, not a full domain.Trade row.
func WithTradeRecorder(tr TradeRecorder) Option {
	return func(o *Orchestrator) { o.tradeRecorder = tr }
}

// PortfolioRecorder persists the durable cash/margin/position state after a
// round executes orders. pkg/portfolio.Manager only ever mutates its
// in-memory copy; without this hook a process restart would lose every
// fill since the last snapshot.
type PortfolioRecorder interface {
	SavePortfolio(p *domain.Portfolio) error
}

// WithPortfolioRecorder enables persisting the participant's portfolio once
// per round, right after order execution, mirroring WithTradeRecorder's
// execute-site timing.
func WithPortfolioRecorder(pr PortfolioRecorder) Option {
	return func(o *Orchestrator) { o.portfolioRecorder = pr }
}

// WithIndicatorSource enriches every round's snapshot with the technical
// indicators computed for each priced symbol (SUPPLEMENTED FEATURE 4).
func WithIndicatorSource(src IndicatorSource) Option {
	return func(o *Orchestrator) { o.indicators = src }
}

// Orchestrator runs one round of the C5 state machine per call to Round.
type Orchestrator struct {
	competitions      CompetitionStore
	participants      ParticipantStore
	prices            PriceSource
	trades            RecentTradesStore
	leaderboard       LeaderboardStore
	portfolios        *portfolio.Manager
	engine            *tradingengine.Engine
	invoker           ModelInvoker
	builder           PromptBuilder
	parser            Parser
	recorder          DecisionRecorder
	tradeRecorder     TradeRecorder
	portfolioRecorder PortfolioRecorder
	indicators        IndicatorSource

	// RecentTradesLimit bounds the recent-trades slice in a snapshot.
	RecentTradesLimit int
}

// New constructs an Orchestrator from its collaborators.
func New(
	competitions CompetitionStore,
	participants ParticipantStore,
	prices PriceSource,
	trades RecentTradesStore,
	leaderboard LeaderboardStore,
	portfolios *portfolio.Manager,
	engine *tradingengine.Engine,
	invoker ModelInvoker,
	builder PromptBuilder,
	parser Parser,
	recorder DecisionRecorder,
	opts ...Option,
) *Orchestrator {
	o := &Orchestrator{
		competitions:      competitions,
		participants:      participants,
		prices:            prices,
		trades:            trades,
		leaderboard:       leaderboard,
		portfolios:        portfolios,
		engine:            engine,
		invoker:           invoker,
		builder:           builder,
		parser:            parser,
		recorder:          recorder,
		RecentTradesLimit: 20,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Round executes one full decision round for participantID. It never
// returns an error for recoverable outcomes (validation, parse, transport
// failures); those are captured on the persisted DecisionRecord per spec
// §7. A non-nil error here means the round could not even be recorded —
// an infrastructure failure the scheduler should log and move past.
func (o *Orchestrator) Round(ctx context.Context, participantID string) error {
	state := StateBuilding
	startedAt := time.Now()

	participant, err := o.participants.Participant(participantID)
	if err != nil {
		return fmt.Errorf("orchestrator: resolve participant: %w", err)
	}
	competition, err := o.competitions.Competition(participant.CompetitionID)
	if err != nil {
		return fmt.Errorf("orchestrator: resolve competition: %w", err)
	}

	unlock := o.portfolios.Lock(participantID)
	snapshot, err := o.buildSnapshot(participant, competition)
	if err != nil {
		unlock()
		return fmt.Errorf("orchestrator: build snapshot: %w", err)
	}
	promptText, err := o.builder.Build(snapshot)
	unlock() // lane is released before the (slow) model invocation, per spec §5.
	if err != nil {
		return fmt.Errorf("orchestrator: build prompt: %w", err)
	}

	state = StateInvoking
	deadline := startedAt.Add(participant.InvocationTimeout)
	result, invokeErr := o.invokeWithRetry(ctx, participant, promptText, deadline)
	if invokeErr != nil {
		rec := o.recordFor(participant, competition, promptText, startedAt)
		rec.Status, rec.ErrorMessage = classifyTransportError(invokeErr)
		return o.persist(rec)
	}

	state = StateParsing
	parsed, parseErr := o.parser.Parse(result.ResponseText)
	rec := o.recordFor(participant, competition, promptText, startedAt)
	rec.RawResponse = result.ResponseText
	rec.PromptTokens = result.PromptTokens
	rec.ResponseTokens = result.ResponseTokens
	rec.CostEstimate = result.CostEstimate
	if parseErr != nil {
		rec.Status = domain.InvocationInvalidResp
		rec.ErrorMessage = parseErr.Error()
		return o.persist(rec)
	}
	rec.ParsedDecision = parsed.Decision
	rec.Reasoning = parsed.Reasoning

	state = StateExecuting
	unlock = o.portfolios.Lock(participantID)
	results := o.executeOrders(participant, parsed.Orders)
	rec.OrderResults = results
	rec.Status = domain.InvocationSuccess

	if o.portfolioRecorder != nil && len(parsed.Orders) > 0 {
		if snap, err := o.portfolios.Snapshot(participant.ID, competition.MaintenanceMarginPct); err != nil {
			logx.Errorf("orchestrator: participant=%s post-execute snapshot failed: %v", participant.ID, err)
		} else if err := o.portfolioRecorder.SavePortfolio(snap.Portfolio); err != nil {
			logx.Errorf("orchestrator: participant=%s portfolio persist failed: %v", participant.ID, err)
		}
	}

	state = StateRecording
	err = o.persist(rec)
	unlock()
	logx.Debugf("orchestrator: participant=%s round reached state=%s", participantID, state)
	return err
}

func (o *Orchestrator) buildSnapshot(participant *domain.Participant, competition *domain.Competition) (RoundSnapshot, error) {
	snap, err := o.portfolios.Snapshot(participant.ID, competition.MaintenanceMarginPct)
	if err != nil {
		return RoundSnapshot{}, err
	}

	prices := make(map[string]decimal.Decimal, len(competition.AllowedInstruments))
	var indicators map[string]market.IndicatorInfo
	for symbol := range competition.AllowedInstruments {
		if price, ok := o.prices.LatestPrice(symbol); ok {
			prices[symbol] = price
		}
		if o.indicators != nil {
			if info, ok := o.indicators.Indicators(symbol); ok {
				if indicators == nil {
					indicators = make(map[string]market.IndicatorInfo, len(competition.AllowedInstruments))
				}
				indicators[symbol] = info
			}
		}
	}

	var recent []*domain.Trade
	if o.trades != nil {
		recent, err = o.trades.RecentTrades(participant.ID, o.RecentTradesLimit)
		if err != nil {
			return RoundSnapshot{}, err
		}
	}

	var board []LeaderboardEntry
	if o.leaderboard != nil {
		board, err = o.leaderboard.Leaderboard(competition.ID)
		if err != nil {
			return RoundSnapshot{}, err
		}
	}

	sizeCap := snap.Equity.Mul(competition.MaxPositionSizePct).DivRound(decimal.NewFromInt(100), 8)

	return RoundSnapshot{
		Participant:  participant,
		Competition:  competition,
		Portfolio:    snap,
		Prices:       prices,
		Indicators:   indicators,
		RecentTrades: recent,
		Leaderboard:  board,
		SizeCap:      sizeCap,
	}, nil
}

// invokeWithRetry calls the model invoker, retrying exactly once on a
// transient transport failure. Timeouts and auth failures are terminal.
func (o *Orchestrator) invokeWithRetry(ctx context.Context, participant *domain.Participant, promptText string, deadline time.Time) (InvocationResult, error) {
	result, err := o.invoker.Invoke(ctx, participant.ModelProvider, participant.ModelID, participant.ModelConfigBlob, promptText, deadline)
	if err == nil {
		return result, nil
	}
	var terr *TransportError
	if errors.As(err, &terr) && terr.Kind == TransportTransient {
		logx.Infof("orchestrator: participant=%s transient transport error, retrying once: %v", participant.ID, err)
		return o.invoker.Invoke(ctx, participant.ModelProvider, participant.ModelID, participant.ModelConfigBlob, promptText, deadline)
	}
	return InvocationResult{}, err
}

func classifyTransportError(err error) (domain.InvocationStatus, string) {
	var terr *TransportError
	if errors.As(err, &terr) {
		switch terr.Kind {
		case TransportTimeout:
			return domain.InvocationTimeout, "timeout"
		case TransportCancelled:
			return domain.InvocationTransportError, "cancelled"
		default:
			return domain.InvocationTransportError, terr.Error()
		}
	}
	return domain.InvocationTransportError, err.Error()
}

// executeOrders submits each parsed order to C4 in list order, assigning
// identity where the parser did not (agents never mint order/decision ids).
func (o *Orchestrator) executeOrders(participant *domain.Participant, orders []domain.Order) []domain.OrderExecutionResult {
	results := make([]domain.OrderExecutionResult, 0, len(orders))
	now := time.Now()
	for i := range orders {
		order := orders[i]
		if order.ID == "" {
			order.ID = uuid.NewString()
		}
		order.ParticipantID = participant.ID
		result, trade, err := o.engine.Execute(&order, now, false)
		if err != nil {
			logx.Errorf("orchestrator: participant=%s order execution error: %v", participant.ID, err)
			result = domain.OrderExecutionResult{OrderID: order.ID, Status: domain.OrderRejected, RejectReason: domain.ReasonPriceUnavailable}
		}
		if trade != nil && o.tradeRecorder != nil {
			if err := o.tradeRecorder.RecordTrade(trade); err != nil {
				logx.Errorf("orchestrator: participant=%s trade persist failed: %v", participant.ID, err)
			}
		}
		results = append(results, result)
	}
	return results
}

func (o *Orchestrator) recordFor(participant *domain.Participant, competition *domain.Competition, promptText string, startedAt time.Time) *domain.DecisionRecord {
	return &domain.DecisionRecord{
		ID:            uuid.NewString(),
		ParticipantID: participant.ID,
		CompetitionID: competition.ID,
		PromptText:    promptText,
		OccurredAt:    startedAt,
		Latency:       time.Since(startedAt),
	}
}

func (o *Orchestrator) persist(rec *domain.DecisionRecord) error {
	rec.Latency = time.Since(rec.OccurredAt)
	if err := o.recorder.Record(rec); err != nil {
		return fmt.Errorf("orchestrator: persist decision record: %w", err)
	}
	return nil
}
