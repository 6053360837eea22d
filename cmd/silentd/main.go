package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/zmlAEQ/silent-threshold/internal/config"
	"github.com/zmlAEQ/silent-threshold/internal/node"
	"github.com/zmlAEQ/silent-threshold/pkg/logger"
)

func main() {
	var (
		cfgPath string
		listen  string
	)
	flag.StringVar(&cfgPath, "config", "", "Path to the TOML node configuration")
	flag.StringVar(&listen, "listen", "", "Override the API listen address")
	flag.Parse()

	if listen != "" {
		_ = os.Setenv("STE_LISTEN", listen)
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		logger.Error(err.Error())
		os.Exit(2)
	}
	if err := logger.SetLevel(cfg.LogLevel); err != nil {
		logger.Error(err.Error())
		os.Exit(2)
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	n, err := node.New(ctx, cfg)
	if err != nil {
		logger.ErrorJ("startup", map[string]any{"result": "error", "err": err.Error()})
		os.Exit(1)
	}
	if err := n.Start(ctx); err != nil {
		logger.Error(err.Error())
		os.Exit(1)
	}
	logger.InfoJ("startup", map[string]any{"result": "ok", "addr": n.API.Addr(), "committee": cfg.Committee, "party_id": cfg.PartyID, "strategy": cfg.Strategy})
	<-ctx.Done()

	stopCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	if err := n.Stop(stopCtx); err != nil {
		logger.Error(err.Error())
	}
}
