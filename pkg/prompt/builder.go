package prompt

import (
	"bytes"
	"fmt"
	"text/template"

	"github.com/shopspring/decimal"

	"tradearena/pkg/calc"
	"tradearena/pkg/domain"
	"tradearena/pkg/market"
	"tradearena/pkg/orchestrator"
)

// defaultSafetyBufferPct is the recommended slack below the per-order
// notional cap a builder advertises when the caller doesn't override it.
var defaultSafetyBufferPct = decimal.NewFromInt(5)

// defaultDecisionTemplate renders a decision round's snapshot into the
// prompt text, using text/template in the teacher's own idiom
// (pkg/llm/prompt.go's PromptTemplate). It deliberately states the three
// things spec §4.5 step 2 requires verbatim: the exact per-order notional
// cap, that leverage affects margin rather than the cap, and a recommended
// safety buffer below the cap.
const defaultDecisionTemplate = `You are the trading agent for participant {{.Participant.DisplayName}} ({{.Participant.ID}}) in competition {{.Competition.Name}} ({{.Competition.ID}}).

ACCOUNT
  Cash: {{.Cash}}
  Equity: {{.Equity}}
  Unrealized P&L: {{.UnrealizedPnL}}
  Reserved margin / available margin: {{.ReservedMargin}} / {{.AvailableMargin}}
  Current leverage: {{.CurrentLeverage}}x
  Margin level: {{.MarginLevelPct}}%{{if .LiquidationDue}} (LIQUIDATION PENDING){{end}}

OPEN POSITIONS
{{range .Positions}}  {{.Symbol}} {{.Side}} qty={{.Quantity}} entry={{.EntryPrice}} mark={{.MarkPrice}} leverage={{.Leverage}}x reserved_margin={{.ReservedMargin}}
{{else}}  (none)
{{end}}
RECENT TRADES
{{range .RecentTrades}}  {{.Action}} {{.Symbol}} {{.Side}} qty={{.Quantity}} price={{.ExecutedPrice}}{{if .RealizedPnL.Valid}} pnl={{.RealizedPnL.Decimal}}{{end}}
{{else}}  (none)
{{end}}
LEADERBOARD
{{range .Leaderboard}}  #{{.Rank}} {{.ParticipantID}} equity={{.Equity}} trades={{.TotalTrades}}
{{else}}  (unavailable)
{{end}}
CURRENT PRICES
{{range $symbol, $price := .Prices}}  {{$symbol}}: {{$price}}
{{end}}
TECHNICAL INDICATORS (context only — not a trading signal)
{{range $symbol, $ind := .Indicators}}  {{$symbol}}: MACD={{$ind.MACD}} {{range $k, $v := $ind.EMA}}{{$k}}={{$v}} {{end}}{{range $k, $v := $ind.RSI}}{{$k}}={{$v}} {{end}}
{{else}}  (unavailable)
{{end}}
RULES
  Allowed instruments: {{.AllowedInstruments}}
  Max leverage: {{.Competition.MaxLeverage}}x
  Per-order notional cap: {{.SizeCap}} (quantity * price must not exceed this, regardless of leverage).
  Leverage changes how much margin an order reserves against your available margin; it does NOT raise the notional cap above.
  Recommended safety buffer: keep new order notional at or below {{.SafeSizeCap}} ({{.SafetyBufferPct}}% under the cap) to absorb price drift between this snapshot and execution.

Respond with a single JSON object shaped exactly as:
{ "decision": "trade" | "hold", "reasoning": "<free text>", "orders": [
  { "action": "open",  "symbol": "...", "side": "buy"|"sell", "quantity": <decimal>, "leverage": <decimal> },
  { "action": "close", "symbol": "...", "position_id": "<uuid>" }
] }
Respond with "hold" and an empty orders list if no action is warranted.
`

// templateRenderer is satisfied by both *Template (a file-backed,
// hot-reloadable template) and the package-default inline template, so
// Builder can be swapped between them without changing its Build method.
type templateRenderer interface {
	Render(data any) (string, error)
}

type inlineTemplate struct{ tmpl *template.Template }

func (t inlineTemplate) Render(data any) (string, error) {
	var buf bytes.Buffer
	if err := t.tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("execute default decision template: %w", err)
	}
	return buf.String(), nil
}

// Builder implements orchestrator.PromptBuilder by rendering a
// RoundSnapshot through a template — the built-in default above, or a
// file-backed override loaded via WithTemplateFile for operators who want
// to tune wording without a rebuild.
type Builder struct {
	renderer        templateRenderer
	safetyBufferPct decimal.Decimal
}

// BuilderOption customises a Builder.
type BuilderOption func(*Builder)

// WithTemplateFile overrides the built-in prompt with one loaded from disk.
func WithTemplateFile(path string) BuilderOption {
	return func(b *Builder) {
		tpl, err := NewTemplate(path, nil)
		if err != nil {
			// Surfaced by NewBuilder's own error path via a sentinel field;
			// simplest to defer the error by wrapping a renderer that
			// always fails with the same message.
			b.renderer = failingRenderer{err: err}
			return
		}
		b.renderer = tpl
	}
}

// WithSafetyBufferPct overrides the default 5% safety-buffer recommendation.
func WithSafetyBufferPct(pct decimal.Decimal) BuilderOption {
	return func(b *Builder) { b.safetyBufferPct = pct }
}

type failingRenderer struct{ err error }

func (f failingRenderer) Render(any) (string, error) { return "", f.err }

// NewBuilder constructs a Builder with the built-in default template
// unless overridden by WithTemplateFile.
func NewBuilder(opts ...BuilderOption) (*Builder, error) {
	tmpl, err := template.New("decision").Parse(defaultDecisionTemplate)
	if err != nil {
		return nil, fmt.Errorf("parse default decision template: %w", err)
	}
	b := &Builder{
		renderer:        inlineTemplate{tmpl: tmpl},
		safetyBufferPct: defaultSafetyBufferPct,
	}
	for _, opt := range opts {
		opt(b)
	}
	if fr, ok := b.renderer.(failingRenderer); ok {
		return nil, fr.err
	}
	return b, nil
}

// view is the data passed to the template; it flattens orchestrator types
// into simple, pre-formatted fields so the template itself stays free of
// decimal-arithmetic logic.
type view struct {
	Participant        *domain.Participant
	Competition        *domain.Competition
	Positions          []*domain.Position
	RecentTrades       []*domain.Trade
	Leaderboard        []orchestrator.LeaderboardEntry
	Prices             map[string]decimal.Decimal
	Indicators         map[string]market.IndicatorInfo
	AllowedInstruments []string

	Cash            decimal.Decimal
	Equity          decimal.Decimal
	UnrealizedPnL   decimal.Decimal
	ReservedMargin  decimal.Decimal
	AvailableMargin decimal.Decimal
	CurrentLeverage decimal.Decimal
	MarginLevelPct  decimal.Decimal
	LiquidationDue  bool

	SizeCap         decimal.Decimal
	SafeSizeCap     decimal.Decimal
	SafetyBufferPct decimal.Decimal
}

// Build implements orchestrator.PromptBuilder.
func (b *Builder) Build(snapshot orchestrator.RoundSnapshot) (string, error) {
	if snapshot.Portfolio.Portfolio == nil {
		return "", fmt.Errorf("prompt: round snapshot has no portfolio")
	}

	allowed := make([]string, 0, len(snapshot.Competition.AllowedInstruments))
	for symbol := range snapshot.Competition.AllowedInstruments {
		allowed = append(allowed, symbol)
	}

	bufferFactor := decimal.NewFromInt(100).Sub(b.safetyBufferPct).DivRound(decimal.NewFromInt(100), calc.PriceScale)
	safeCap := snapshot.SizeCap.Mul(bufferFactor).Round(calc.PriceScale)

	v := view{
		Participant:        snapshot.Participant,
		Competition:        snapshot.Competition,
		Positions:          snapshot.Portfolio.Portfolio.Positions,
		RecentTrades:       snapshot.RecentTrades,
		Leaderboard:        snapshot.Leaderboard,
		Prices:             snapshot.Prices,
		Indicators:         snapshot.Indicators,
		AllowedInstruments: allowed,

		Cash:            snapshot.Portfolio.Portfolio.Cash,
		Equity:          snapshot.Portfolio.Equity,
		UnrealizedPnL:   snapshot.Portfolio.UnrealizedPnL,
		ReservedMargin:  snapshot.Portfolio.Portfolio.ReservedMargin,
		AvailableMargin: snapshot.Portfolio.AvailableMargin,
		CurrentLeverage: snapshot.Portfolio.CurrentLeverage,
		MarginLevelPct:  snapshot.Portfolio.MarginLevelPct,
		LiquidationDue:  snapshot.Portfolio.LiquidationDue,

		SizeCap:         snapshot.SizeCap,
		SafeSizeCap:     safeCap,
		SafetyBufferPct: b.safetyBufferPct,
	}

	return b.renderer.Render(v)
}
