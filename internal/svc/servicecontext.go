package svc

import (
	"database/sql"
	"log"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx driver
	"github.com/shopspring/decimal"
	"github.com/zeromicro/go-zero/core/stat"
	gocache "github.com/zeromicro/go-zero/core/stores/cache"
	"github.com/zeromicro/go-zero/core/stores/sqlx"
	"github.com/zeromicro/go-zero/core/syncx"

	"tradearena/internal/cache"
	"tradearena/internal/config"
	"tradearena/internal/model"
	"tradearena/internal/persistence"
	"tradearena/pkg/confkit"
	"tradearena/pkg/journal"
	llmpkg "tradearena/pkg/llm"
	marketpkg "tradearena/pkg/market"
	_ "tradearena/pkg/market/exchanges/hyperliquid"
	"tradearena/pkg/orchestrator"
	"tradearena/pkg/portfolio"
	"tradearena/pkg/prompt"
	"tradearena/pkg/risk"
	"tradearena/pkg/scheduler"
	"tradearena/pkg/tradingengine"
)

// ServiceContext assembles the full C1-C7 dependency graph from Config:
// Postgres-backed models, the Redis-backed persistence/cache layer, the
// market data feed, the LLM invoker, and the engine/orchestrator/
// scheduler/risk collaborators that run on top of them.
type ServiceContext struct {
	Config config.Config

	LLMConfig    *llmpkg.Config
	MarketConfig *marketpkg.Config

	DBConn sqlx.SqlConn
	Cache  gocache.Cache
	TTL    cache.TTLSet

	CompetitionsModel           model.CompetitionsModel
	ParticipantsModel           model.ParticipantsModel
	PortfoliosModel             model.PortfoliosModel
	PositionsModel              model.PositionsModel
	TradesModel                 model.TradesModel
	OrdersModel                 model.OrdersModel
	ConversationsModel          model.ConversationsModel
	ConversationMessagesModel   model.ConversationMessagesModel
	AccountEquitySnapshotsModel model.AccountEquitySnapshotsModel
	TraderStateModel            model.TraderStateModel
	DecisionCyclesModel         model.DecisionCyclesModel

	Persistence *persistence.Service

	MarketProviders map[string]marketpkg.Provider
	PriceFeed       *marketpkg.PriceFeed

	Journal *journal.Writer

	PortfolioManager *portfolio.Manager
	TradingEngine    *tradingengine.Engine
	SharpeGate       *risk.SharpeGate
	RiskMonitor      *risk.Monitor
	Orchestrator     *orchestrator.Orchestrator
	Scheduler        *scheduler.Scheduler
}

// NewServiceContext wires every collaborator named by Config into a
// runnable ServiceContext. Postgres/Redis wiring is skipped entirely when
// Postgres.DSN is unset, matching the teacher's "DB is optional" posture —
// useful for unit tests and for the cmd/api read paths that only need the
// in-memory engine state.
func NewServiceContext(c config.Config, mainConfigPath string) *ServiceContext {
	svcCtx := &ServiceContext{Config: c}

	baseDir := confkit.BaseDir(mainConfigPath)

	if c.LLM.File != "" {
		llmCfg, err := llmpkg.LoadConfig(confkit.ResolvePath(baseDir, c.LLM.File))
		if err != nil {
			log.Fatalf("failed to load llm config: %v", err)
		}
		if c.IsTestEnv() {
			llmCfg.DefaultModel = "google/gemini-2.5-flash-lite"
		}
		svcCtx.LLMConfig = llmCfg
	}

	if c.Market.File != "" {
		marketCfg, err := marketpkg.LoadConfig(confkit.ResolvePath(baseDir, c.Market.File))
		if err != nil {
			log.Fatalf("failed to load market config: %v", err)
		}
		providers, err := marketCfg.BuildProviders()
		if err != nil {
			log.Fatalf("failed to build market providers: %v", err)
		}
		svcCtx.MarketConfig = marketCfg
		svcCtx.MarketProviders = providers
		var defaultProvider marketpkg.Provider
		if marketCfg.Default != "" {
			defaultProvider = providers[marketCfg.Default]
		}
		if defaultProvider != nil {
			svcCtx.PriceFeed = marketpkg.NewPriceFeed(defaultProvider)
		}
	}

	svcCtx.PortfolioManager = portfolio.NewManager()
	ttl := cache.NewTTLSet(c.TTL)
	svcCtx.TTL = ttl

	if c.Postgres.DSN != "" {
		conn := sqlx.NewSqlConn("pgx", c.Postgres.DSN)
		svcCtx.DBConn = conn

		cacheConf := c.Cache
		svcCtx.CompetitionsModel = model.NewCompetitionsModel(conn, cacheConf)
		svcCtx.ParticipantsModel = model.NewParticipantsModel(conn, cacheConf)
		svcCtx.PositionsModel = model.NewPositionsModel(conn, cacheConf)
		svcCtx.PortfoliosModel = model.NewPortfoliosModel(conn, cacheConf, svcCtx.PositionsModel)
		svcCtx.TradesModel = model.NewTradesModel(conn, cacheConf)
		svcCtx.OrdersModel = model.NewOrdersModel(conn, cacheConf)
		svcCtx.ConversationMessagesModel = model.NewConversationMessagesModel(conn, cacheConf)
		svcCtx.ConversationsModel = model.NewConversationsModel(conn, cacheConf, svcCtx.ConversationMessagesModel)
		svcCtx.AccountEquitySnapshotsModel = model.NewAccountEquitySnapshotsModel(conn, cacheConf)
		svcCtx.TraderStateModel = model.NewTraderStateModel(conn, cacheConf)
		svcCtx.DecisionCyclesModel = model.NewDecisionCyclesModel(conn, cacheConf)

		if len(cacheConf) > 0 {
			svcCtx.Cache = gocache.New(cacheConf, syncx.NewSingleFlight(), stat.NewStat("tradearena-cache"), sql.ErrNoRows)
		}

		svcCtx.Persistence = persistence.NewService(persistence.Config{
			SQLConn:        conn,
			Cache:          svcCtx.Cache,
			TTL:            ttl,
			Competitions:   svcCtx.CompetitionsModel,
			Participants:   svcCtx.ParticipantsModel,
			Portfolios:     svcCtx.PortfoliosModel,
			Trades:         svcCtx.TradesModel,
			Conversations:  svcCtx.ConversationsModel,
			DecisionCycles: svcCtx.DecisionCyclesModel,
		})

		svcCtx.SharpeGate = risk.NewSharpeGate(svcCtx.AccountEquitySnapshotsModel, svcCtx.TraderStateModel, c.Risk.SharpeLookback)
	}

	svcCtx.wireEngine()
	return svcCtx
}

// wireEngine builds C4-C7 from whatever collaborators are available.
// tradingengine.Engine and orchestrator.Orchestrator always construct
// (PortfolioManager and PriceFeed are purely in-memory), but every
// Postgres-backed recorder/store is nil until Persistence is wired, in
// which case trades/portfolios/decisions/leaderboard persist as the
// engine runs instead of living only in memory for the process lifetime.
func (s *ServiceContext) wireEngine() {
	var competitions tradingengine.CompetitionStore
	var participants tradingengine.ParticipantStore
	if s.Persistence != nil {
		competitions = s.Persistence
		participants = s.Persistence
	}

	var prices tradingengine.PriceSource
	if s.PriceFeed != nil {
		prices = s.PriceFeed
	}

	s.TradingEngine = tradingengine.New(competitions, participants, prices, s.PortfolioManager, nil)

	s.Journal = journal.NewWriter(s.Config.DataPath)

	var trades orchestrator.RecentTradesStore
	var leaderboard orchestrator.LeaderboardStore
	recorder := orchestrator.DecisionRecorder(s.Journal)
	riskOpts := make([]risk.Option, 0, 2)
	orchOpts := make([]orchestrator.Option, 0, 2)
	var audit risk.AuditRecorder
	if s.Persistence != nil {
		trades = s.Persistence
		leaderboard = s.Persistence
		recorder = orchestrator.MultiRecorder{s.Persistence, s.Journal}
		audit = s.Persistence
		riskOpts = append(riskOpts, risk.WithTradeRecorder(s.Persistence), risk.WithPortfolioRecorder(s.Persistence))
		orchOpts = append(orchOpts, orchestrator.WithTradeRecorder(s.Persistence), orchestrator.WithPortfolioRecorder(s.Persistence))
	}

	s.RiskMonitor = risk.New(s.PortfolioManager, participants, s.TradingEngine, audit, riskOpts...)

	var invoker orchestrator.ModelInvoker
	if s.LLMConfig != nil {
		client, err := llmpkg.NewClient(s.LLMConfig)
		if err != nil {
			log.Fatalf("failed to build llm client: %v", err)
		}
		invoker = llmpkg.NewInvoker(map[string]llmpkg.LLMClient{"zenmux": client})
	}

	builder, err := prompt.NewBuilder()
	if err != nil {
		log.Fatalf("failed to build prompt builder: %v", err)
	}
	parser := llmpkg.NewDecisionParser()

	if s.PriceFeed != nil {
		orchOpts = append(orchOpts, orchestrator.WithIndicatorSource(s.PriceFeed))
	}

	s.Orchestrator = orchestrator.New(
		competitions,
		participants,
		prices,
		trades,
		leaderboard,
		s.PortfolioManager,
		s.TradingEngine,
		invoker,
		builder,
		parser,
		recorder,
		orchOpts...,
	)

	if s.Persistence == nil {
		// No CompetitionLister without Postgres: the scheduler has
		// nothing to enumerate, so it is left unwired (cmd/scheduler
		// requires Postgres to be configured).
		return
	}

	schedOpts := make([]scheduler.Option, 0, 2)
	if s.SharpeGate != nil {
		floor := decimal.NewFromFloat(s.Config.Risk.SharpeFloor)
		schedOpts = append(schedOpts, scheduler.WithSharpeGate(s.SharpeGate, floor))
	}
	schedOpts = append(schedOpts, scheduler.WithCycleRecorder(s.DecisionCyclesModel))

	var priceRefresher scheduler.PriceRefresher
	if s.PriceFeed != nil {
		priceRefresher = s.PriceFeed
	}

	s.Scheduler = scheduler.New(
		s.Persistence,
		priceRefresher,
		s.PortfolioManager,
		s.Orchestrator,
		s.RiskMonitor,
		s.Config.Scheduler.PriceInterval,
		schedOpts...,
	)
}
