package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os/signal"
	"syscall"

	"backtester/internal/api"
	"backtester/internal/config"
	"backtester/internal/marketdata"
	"backtester/internal/strategy"
	"backtester/internal/strategy/builtins"
	"backtester/internal/util"
)

func main() {
	cfgPath := flag.String("config", "", "config file (default $BACKTESTER_CONFIG or "+config.DefaultPath+")")
	flag.Parse()

	cfg, err := config.Load(config.Path(*cfgPath))
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	util.SetDefault(util.NewLogger(cfg.Logging.Level, cfg.Logging.Format))

	src, closer, err := marketdata.Open(cfg)
	if err != nil {
		log.Fatalf("failed to open data source: %v", err)
	}
	defer closer.Close()

	defaults, err := strategy.RequestFromConfig(cfg.Backtest)
	if err != nil {
		log.Fatalf("invalid backtest defaults: %v", err)
	}

	registry := builtins.Registry()
	svc := api.NewService(strategy.NewBacktester(src, registry), registry, defaults)
	srv := api.NewServer(cfg, svc)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	slog.Info("backtest-server starting", "grpc_port", cfg.Server.GRPCPort, "metrics_port", cfg.Server.MetricsPort, "source", cfg.Data.Source)
	if err := srv.ListenAndServe(ctx); err != nil {
		slog.Error("server stopped", "error", err)
		closer.Close()
		log.Fatalf("server error: %v", err)
	}
	slog.Info("server stopped")
}
