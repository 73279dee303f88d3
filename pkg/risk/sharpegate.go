package risk

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/zeromicro/go-zero/core/logx"

	"tradearena/pkg/calc"
)

// EquityHistory supplies the trailing period returns a SharpeGate scores.
type EquityHistory interface {
	TrailingReturns(ctx context.Context, participantID string, lookback int) ([]decimal.Decimal, error)
}

// PauseStore persists the scheduling-level pause flag a SharpeGate flips.
// Pausing never touches Participant.Status or triggers liquidation — it is
// purely a "skip this participant's next tick" throttle (spec SUPPLEMENTED
// FEATURE 3), distinct from Monitor's margin-call liquidation path above.
type PauseStore interface {
	Pause(ctx context.Context, participantID, reason string, at time.Time) error
	Resume(ctx context.Context, participantID string) error
}

// SharpeGate is the generalized form of the teacher's Sharpe-pause block in
// pkg/manager/manager.go's RunTradingLoop: there it halted a single trader
// outright, here it pauses one competition participant's invocation
// schedule while leaving their portfolio and status untouched.
type SharpeGate struct {
	history  EquityHistory
	pauses   PauseStore
	lookback int
}

// NewSharpeGate constructs a SharpeGate. lookback is the number of trailing
// equity snapshots used to compute the Sharpe ratio; <=0 defaults to 20.
func NewSharpeGate(history EquityHistory, pauses PauseStore, lookback int) *SharpeGate {
	if lookback <= 0 {
		lookback = 20
	}
	return &SharpeGate{history: history, pauses: pauses, lookback: lookback}
}

// Evaluate recomputes a participant's trailing Sharpe ratio and pauses or
// resumes them against floor. Fewer than two trailing snapshots is treated
// as "not enough history yet" and never pauses.
func (g *SharpeGate) Evaluate(ctx context.Context, participantID string, floor decimal.Decimal, now time.Time) error {
	returns, err := g.history.TrailingReturns(ctx, participantID, g.lookback)
	if err != nil {
		return fmt.Errorf("sharpegate: trailing returns: %w", err)
	}
	if len(returns) < 2 {
		return nil
	}

	sharpe := calc.SharpeRatio(returns)
	if sharpe.LessThan(floor) {
		logx.Infof("sharpegate: participant=%s sharpe=%s below floor=%s, pausing", participantID, sharpe, floor)
		reason := fmt.Sprintf("trailing sharpe %s below floor %s", sharpe, floor)
		return g.pauses.Pause(ctx, participantID, reason, now)
	}
	return g.pauses.Resume(ctx, participantID)
}
