package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/zeromicro/go-zero/core/logx"

	"tradearena/internal/cli"
	"tradearena/internal/config"
	"tradearena/internal/svc"
)

const shutdownTimeout = 10 * time.Second

// main drives the C6 scheduler daemon: repriced ticks, decision-round
// fan-out and the C7 risk/Sharpe checks that ride along each price tick.
// Grounded on the teacher's cmd/cron/main.go shutdown shape (signal.NotifyContext
// + bounded drain), generalized from two fixed monitor goroutines to
// scheduler.Scheduler.Run's own price/decision tick loops.
func main() {
	flag.Parse()
	logx.DisableStat()

	configPath := config.ConfigFile()
	cfg, err := config.Load(configPath)
	if err != nil {
		logx.Errorf("scheduler: failed to load config %s: %v", configPath, err)
		os.Exit(1)
	}

	logx.Info("scheduler: configuration loaded")
	for _, line := range cli.ConfigSummaryLines(cfg) {
		logx.Infof("scheduler: config • %s", line)
	}

	if cfg.Postgres.DSN == "" {
		logx.Error("scheduler: postgres.dsn is required to run the scheduler daemon")
		os.Exit(1)
	}

	svcCtx := svc.NewServiceContext(*cfg, configPath)
	if svcCtx.Scheduler == nil {
		logx.Error("scheduler: service context has no scheduler wired, check postgres configuration")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if svcCtx.Persistence != nil {
		hydrateCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
		if err := svcCtx.Persistence.HydratePortfolios(hydrateCtx, svcCtx.PortfolioManager); err != nil {
			logx.Errorf("scheduler: hydrate portfolios: %v", err)
		}
		cancel()
	}

	logx.Info("scheduler: starting, press Ctrl+C to stop")
	svcCtx.Scheduler.Run(ctx)
	logx.Info("scheduler: stopped")
}
