// Code scaffolded by goctl. Safe to edit.
package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/zeromicro/go-zero/core/logx"
	"github.com/zeromicro/go-zero/rest"

	"tradearena/internal/config"
	"tradearena/internal/handler"
	"tradearena/internal/svc"
)

const hydrateTimeout = 10 * time.Second

func main() {
	flag.Parse()

	configPath := config.ConfigFile()
	cfg, err := config.Load(configPath)
	if err != nil {
		logx.Errorf("api: failed to load config %s: %v", configPath, err)
		return
	}

	server := rest.MustNewServer(cfg.RestConf)
	defer server.Stop()

	svcCtx := svc.NewServiceContext(*cfg, configPath)
	if svcCtx.Persistence != nil {
		hydrateCtx, cancel := context.WithTimeout(context.Background(), hydrateTimeout)
		if err := svcCtx.Persistence.HydratePortfolios(hydrateCtx, svcCtx.PortfolioManager); err != nil {
			logx.Errorf("api: hydrate portfolios: %v", err)
		}
		cancel()
	}
	handler.RegisterHandlers(server, svcCtx)

	fmt.Printf("Starting tradearena api at %s:%d...\n", cfg.Host, cfg.Port)
	server.Start()
}
