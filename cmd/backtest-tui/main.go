package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"backtester/internal/config"
	"backtester/internal/marketdata"
	"backtester/internal/strategy"
	"backtester/internal/strategy/builtins"
	"backtester/internal/tui"
	"backtester/internal/util"
)

func main() {
	cfgPath := flag.String("config", "", "config file (default $BACKTESTER_CONFIG or "+config.DefaultPath+")")
	symbol := flag.String("symbol", "", "ticker symbol")
	flag.Parse()

	cfg, err := config.Load(config.Path(*cfgPath))
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading config: %v\n", err)
		os.Exit(1)
	}
	if *symbol != "" {
		cfg.Backtest.Symbol = strings.ToUpper(*symbol)
	}

	// The terminal belongs to the UI, so logs go to a file.
	logPath := filepath.Join(os.TempDir(), fmt.Sprintf("backtest-tui-%s.log", time.Now().Format("2006-01-02")))
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "opening log file: %v\n", err)
		os.Exit(1)
	}
	defer logFile.Close()
	util.SetDefault(slog.New(slog.NewTextHandler(logFile, &slog.HandlerOptions{Level: util.ParseLevel(cfg.Logging.Level)})))

	src, closer, err := marketdata.Open(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "opening data source: %v\n", err)
		os.Exit(1)
	}
	defer closer.Close()

	req, err := strategy.RequestFromConfig(cfg.Backtest)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid options: %v\n", err)
		os.Exit(1)
	}
	// The UI loads bars once and re-runs on the cached frame, so the range
	// is fixed up front.
	if req.Start, req.End, err = cfg.Range(time.Now()); err != nil {
		fmt.Fprintf(os.Stderr, "invalid options: %v\n", err)
		os.Exit(1)
	}

	registry := builtins.Registry()
	slog.Info("starting", "symbol", req.Symbol, "strategy", req.Strategy, "source", cfg.Data.Source)

	p := tea.NewProgram(
		tui.New(strategy.NewBacktester(src, registry), src, registry, req),
		tea.WithAltScreen(),
	)
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
