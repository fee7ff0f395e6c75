package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"backtester/internal/config"
	"backtester/internal/domain"
	"backtester/internal/gather"
	"backtester/internal/marketdata"
	"backtester/internal/report"
	"backtester/internal/store"
)

func main() {
	cfgPath := flag.String("config", "", "config file (default $BACKTESTER_CONFIG or "+config.DefaultPath+")")
	symbols := flag.String("symbols", "", "comma separated symbols to fetch (default: backtest.symbol)")
	workers := flag.Int("workers", 4, "concurrent fetches")
	listCached := flag.Bool("cached", false, "list symbols already in the cache and exit")
	flag.Parse()

	cfg, err := config.Load(config.Path(*cfgPath))
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if *listCached {
		ps := store.NewParquetStore(cfg.Storage.DataDir)
		for _, m := range []domain.Market{domain.MarketUS, domain.MarketIN} {
			syms, err := ps.ListSymbols(context.Background(), m)
			if err != nil {
				log.Fatalf("listing cache: %v", err)
			}
			for _, s := range syms {
				fmt.Printf("%s\t%s\n", m, s)
			}
		}
		return
	}

	// Dual logger: stdout + temp log file.
	logFileName := filepath.Join(os.TempDir(), fmt.Sprintf("backtest-fetch-%s.log", time.Now().Format("2006-01-02")))
	logFile, err := os.OpenFile(logFileName, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		log.Fatalf("failed to open log file: %v", err)
	}
	defer logFile.Close()
	w := io.MultiWriter(os.Stdout, logFile)
	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelInfo})))

	// Fetching only makes sense into the cache.
	cfg.Data.Cache = true
	src, closer, err := marketdata.Open(cfg)
	if err != nil {
		log.Fatalf("failed to open data source: %v", err)
	}
	defer closer.Close()

	start, end, err := cfg.Range(time.Now())
	if err != nil {
		log.Fatalf("invalid date range: %v", err)
	}

	list := gather.ParseSymbols(*symbols)
	if len(list) == 0 {
		list = []string{cfg.Backtest.Symbol}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	slog.Info("starting fetch", "symbols", len(list), "start", start.Format("2006-01-02"),
		"end", end.Format("2006-01-02"), "logFile", logFileName)
	results, err := gather.NewWarmer(src, *workers).Run(ctx, list, gather.DateRange{Start: start, End: end})

	var bars, failed int
	for _, r := range results {
		if r.Err != nil {
			failed++
			continue
		}
		bars += r.Bars
	}
	fmt.Printf("%s symbols, %s bars, %s failed\n",
		report.FormatInt(len(results)-failed), report.FormatInt(bars), report.FormatInt(failed))
	if err != nil || failed > 0 {
		closer.Close()
		os.Exit(1)
	}
}
