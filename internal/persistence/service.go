// Package persistence wires the internal/model Postgres layer and the
// internal/cache Redis layer into concrete implementations of every
// persistence port the engine packages (tradingengine, orchestrator,
// scheduler, risk) consume as plain interfaces.
//
// Grounded on the teacher's internal/persistence/engine.Service: one struct
// holding an sqlx.SqlConn, a set of internal/model models and a
// gocache.Cache, constructed by a Config/NewService pair that returns nil
// when no SQLConn is configured so callers can wire an optional DB cleanly.
package persistence

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/zeromicro/go-zero/core/logx"
	gocache "github.com/zeromicro/go-zero/core/stores/cache"
	"github.com/zeromicro/go-zero/core/stores/sqlx"

	cachekeys "tradearena/internal/cache"
	"tradearena/internal/model"
	"tradearena/pkg/domain"
	"tradearena/pkg/orchestrator"
	"tradearena/pkg/portfolio"
	"tradearena/pkg/risk"
	"tradearena/pkg/scheduler"
	"tradearena/pkg/tradingengine"
)

var (
	_ tradingengine.CompetitionStore = (*Service)(nil)
	_ tradingengine.ParticipantStore = (*Service)(nil)
	_ orchestrator.RecentTradesStore = (*Service)(nil)
	_ orchestrator.LeaderboardStore  = (*Service)(nil)
	_ orchestrator.DecisionRecorder  = (*Service)(nil)
	_ orchestrator.TradeRecorder     = (*Service)(nil)
	_ orchestrator.PortfolioRecorder = (*Service)(nil)
	_ scheduler.CompetitionLister    = (*Service)(nil)
	_ scheduler.CycleRecorder        = (*Service)(nil)
	_ risk.AuditRecorder             = (*Service)(nil)
)

// Config enumerates the models and cache collaborators a Service needs.
// risk.EquityHistory and risk.PauseStore are deliberately not part of this
// surface: model.AccountEquitySnapshotsModel and model.TraderStateModel
// already match those two interfaces method-for-method (both already take
// a context.Context) and are wired directly, without a Service adapter.
type Config struct {
	SQLConn        sqlx.SqlConn
	Cache          gocache.Cache
	TTL            cachekeys.TTLSet
	Competitions   model.CompetitionsModel
	Participants   model.ParticipantsModel
	Portfolios     model.PortfoliosModel
	Trades         model.TradesModel
	Conversations  model.ConversationsModel
	DecisionCycles model.DecisionCyclesModel
}

// Service adapts the ctx-less ports most engine packages consume
// (tradingengine.ParticipantStore, orchestrator.DecisionRecorder, ...) onto
// the ctx-carrying internal/model methods, and layers a Redis-backed
// leaderboard cache (SUPPLEMENTED FEATURE 1) over the participant table.
type Service struct {
	sqlConn sqlx.SqlConn
	cache   gocache.Cache
	ttl     cachekeys.TTLSet

	competitions   model.CompetitionsModel
	participants   model.ParticipantsModel
	portfolios     model.PortfoliosModel
	trades         model.TradesModel
	conversations  model.ConversationsModel
	decisionCycles model.DecisionCyclesModel
}

// NewService returns nil when SQLConn is unset, mirroring the teacher's
// "DB is optional, business logic still runs off in-memory state" pattern.
func NewService(cfg Config) *Service {
	if cfg.SQLConn == nil {
		return nil
	}
	return &Service{
		sqlConn:        cfg.SQLConn,
		cache:          cfg.Cache,
		ttl:            cfg.TTL,
		competitions:   cfg.Competitions,
		participants:   cfg.Participants,
		portfolios:     cfg.Portfolios,
		trades:         cfg.Trades,
		conversations:  cfg.Conversations,
		decisionCycles: cfg.DecisionCycles,
	}
}

// Competition implements tradingengine.CompetitionStore.
func (s *Service) Competition(competitionID string) (*domain.Competition, error) {
	return s.competitions.LoadCompetition(context.Background(), competitionID)
}

// Participant implements tradingengine.ParticipantStore.
func (s *Service) Participant(participantID string) (*domain.Participant, error) {
	return s.participants.LoadParticipant(context.Background(), participantID)
}

// SaveParticipant implements tradingengine.ParticipantStore. Every save is
// an equity mutation, so the competition's leaderboard cache is rebuilt
// inline rather than left to expire — spec SUPPLEMENTED FEATURE 1's "rebuilt
// on each portfolio mutation" requirement.
func (s *Service) SaveParticipant(p *domain.Participant) error {
	ctx := context.Background()
	if err := s.participants.SaveParticipant(ctx, p); err != nil {
		return err
	}
	if _, err := s.rebuildLeaderboard(ctx, p.CompetitionID); err != nil {
		logx.Errorf("persistence: leaderboard rebuild after save participant=%s: %v", p.ID, err)
	}
	return nil
}

// RecentTrades implements orchestrator.RecentTradesStore.
func (s *Service) RecentTrades(participantID string, limit int) ([]*domain.Trade, error) {
	return s.trades.RecentByParticipant(context.Background(), participantID, limit)
}

// RecordTrade implements orchestrator.TradeRecorder, persisting the full
// domain.Trade row at the tradingengine.Engine.Execute call site — the only
// place a complete Trade (as opposed to the thinner OrderExecutionResult)
// is in scope.
func (s *Service) RecordTrade(trade *domain.Trade) error {
	return s.trades.RecordTrade(context.Background(), trade)
}

// SavePortfolio implements orchestrator.PortfolioRecorder, persisting the
// durable cash/margin/position state once per round right after execution —
// pkg/portfolio.Manager itself never touches Postgres.
func (s *Service) SavePortfolio(p *domain.Portfolio) error {
	return s.portfolios.SavePortfolio(context.Background(), p)
}

// Record implements orchestrator.DecisionRecorder.
func (s *Service) Record(rec *domain.DecisionRecord) error {
	return s.conversations.Record(context.Background(), rec)
}

// ActiveCompetitions implements scheduler.CompetitionLister.
func (s *Service) ActiveCompetitions() ([]*domain.Competition, error) {
	return s.competitions.FindActive(context.Background())
}

// ActiveParticipants implements scheduler.CompetitionLister. Sharpe-paused
// participants are already excluded at the SQL level by
// ParticipantsModel.FindActiveByCompetition.
func (s *Service) ActiveParticipants(competitionID string) ([]*domain.Participant, error) {
	return s.participants.FindActiveByCompetition(context.Background(), competitionID)
}

// RecordLiquidation implements risk.AuditRecorder, appending a forced
// liquidation to the system audit log (spec §4.7: "append an audit record
// noting the trigger"). It shares decisioncycles with the scheduler's own
// fan-out log rather than adding a fourth near-empty table — both are
// "something happened to this participant outside the normal request
// path" events, distinguished by Status.
func (s *Service) RecordLiquidation(participantID string, equity, reservedMargin decimal.Decimal, at time.Time) error {
	ctx := context.Background()
	p, err := s.participants.LoadParticipant(ctx, participantID)
	if err != nil {
		return fmt.Errorf("persistence: resolve participant for liquidation audit: %w", err)
	}
	msg := fmt.Sprintf("liquidated: equity=%s reserved_margin=%s", equity, reservedMargin)
	return s.decisionCycles.RecordCycle(ctx, participantID, p.CompetitionID, at, at, "liquidated", msg)
}

// Leaderboard implements orchestrator.LeaderboardStore, serving the cached
// payload when present and rebuilding it on a miss.
func (s *Service) Leaderboard(competitionID string) ([]orchestrator.LeaderboardEntry, error) {
	ctx := context.Background()
	if s.cache != nil {
		var entries []orchestrator.LeaderboardEntry
		err := s.cache.GetCtx(ctx, cachekeys.LeaderboardCacheKey(competitionID), &entries)
		if err == nil {
			return entries, nil
		}
		if !s.cache.IsNotFound(err) {
			logx.Errorf("persistence: leaderboard cache get competition=%s: %v", competitionID, err)
		}
	}
	return s.rebuildLeaderboard(ctx, competitionID)
}

func (s *Service) rebuildLeaderboard(ctx context.Context, competitionID string) ([]orchestrator.LeaderboardEntry, error) {
	participants, err := s.participants.FindByCompetition(ctx, competitionID)
	if err != nil {
		return nil, fmt.Errorf("persistence: leaderboard source: %w", err)
	}
	sort.Slice(participants, func(i, j int) bool {
		a, b := participants[i], participants[j]
		if !a.CurrentEquity.Equal(b.CurrentEquity) {
			return a.CurrentEquity.GreaterThan(b.CurrentEquity)
		}
		if a.TotalTrades != b.TotalTrades {
			return a.TotalTrades < b.TotalTrades
		}
		return a.ID < b.ID
	})
	entries := make([]orchestrator.LeaderboardEntry, 0, len(participants))
	for i, p := range participants {
		entries = append(entries, orchestrator.LeaderboardEntry{
			ParticipantID: p.ID,
			Equity:        p.CurrentEquity,
			TotalTrades:   p.TotalTrades,
			Rank:          i + 1,
		})
	}
	if s.cache != nil {
		key := cachekeys.LeaderboardCacheKey(competitionID)
		ttl := cachekeys.LeaderboardTTL(s.ttl)
		if ttl > 0 {
			if err := s.cache.SetWithExpireCtx(ctx, key, entries, ttl); err != nil {
				logx.Errorf("persistence: leaderboard cache set competition=%s: %v", competitionID, err)
			}
		}
	}
	return entries, nil
}

// HydratePortfolios loads the persisted portfolio of every participant, of
// any status, in every active competition and registers it with pm, bringing portfolio.Manager's
// in-memory state up to date at process startup — grounded on the
// teacher's Service.HydrateCaches warm-up pass, generalized from a
// cache-only warm-up to the authoritative in-memory store the engine reads
// from on every tick.
func (s *Service) HydratePortfolios(ctx context.Context, pm *portfolio.Manager) error {
	competitions, err := s.competitions.FindActive(ctx)
	if err != nil {
		return fmt.Errorf("persistence: hydrate portfolios list competitions: %w", err)
	}
	for _, competition := range competitions {
		participants, err := s.participants.FindByCompetition(ctx, competition.ID)
		if err != nil {
			return fmt.Errorf("persistence: hydrate portfolios list participants competition=%s: %w", competition.ID, err)
		}
		for _, p := range participants {
			folio, err := s.portfolios.LoadByParticipant(ctx, p.ID)
			if err == model.ErrNotFound {
				continue
			}
			if err != nil {
				return fmt.Errorf("persistence: hydrate portfolio participant=%s: %w", p.ID, err)
			}
			pm.Register(folio)
		}
	}
	return nil
}
