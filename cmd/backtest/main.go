package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"backtester/internal/config"
	"backtester/internal/marketdata"
	"backtester/internal/report"
	"backtester/internal/strategy"
	"backtester/internal/strategy/builtins"
	"backtester/internal/util"
)

func main() {
	var (
		cfgPath   = flag.String("config", "", "config file (default $BACKTESTER_CONFIG or "+config.DefaultPath+")")
		symbol    = flag.String("symbol", "", "ticker symbol")
		strat     = flag.String("strategy", "", "strategy name or ID")
		start     = flag.String("start", "", "start date YYYY-MM-DD")
		end       = flag.String("end", "", "end date YYYY-MM-DD")
		capital   = flag.Float64("capital", 0, "initial capital")
		stopLoss  = flag.Float64("stop-loss", 0, "stop-loss percent, 0-100")
		short     = flag.Int("short", 0, "short SMA window")
		long      = flag.Int("long", 0, "long SMA window")
		source    = flag.String("source", "", "data source: alpaca or csv")
		csvPath   = flag.String("csv", "", "CSV file or directory (implies -source csv)")
		tradesCSV = flag.String("trades-csv", "", "write the trade log to this CSV file")
		width     = flag.Int("width", 100, "report width in columns")
		list      = flag.Bool("list", false, "list strategies and exit")
	)
	flag.Parse()

	registry := builtins.Registry()
	if *list {
		for _, name := range registry.List() {
			s, _ := registry.Get(name)
			fmt.Printf("%-16s %s\n", s.ID(), s.Name())
		}
		return
	}

	cfg, err := config.Load(config.Path(*cfgPath))
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// Flags set on the command line win over the config file.
	flag.Visit(func(f *flag.Flag) {
		b := &cfg.Backtest
		switch f.Name {
		case "symbol":
			b.Symbol = strings.ToUpper(*symbol)
		case "strategy":
			b.Strategy = *strat
		case "start":
			b.StartDate = *start
		case "end":
			b.EndDate = *end
		case "capital":
			b.InitialCapital = *capital
		case "stop-loss":
			b.StopLossPct = *stopLoss
		case "short":
			b.ShortWindow = *short
		case "long":
			b.LongWindow = *long
		case "source":
			cfg.Data.Source = *source
		case "csv":
			cfg.Data.Source = "csv"
			cfg.Data.CSVPath = *csvPath
		}
	})
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid options: %v", err)
	}

	util.SetDefault(util.NewLogger(cfg.Logging.Level, cfg.Logging.Format))

	src, closer, err := marketdata.Open(cfg)
	if err != nil {
		log.Fatalf("failed to open data source: %v", err)
	}
	defer closer.Close()

	req, err := strategy.RequestFromConfig(cfg.Backtest)
	if err != nil {
		log.Fatalf("invalid options: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	rep, err := strategy.NewBacktester(src, registry).Run(ctx, req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "backtest failed: %v\n", err)
		closer.Close()
		os.Exit(1)
	}

	fmt.Println(report.Render(rep, *width))

	if *tradesCSV != "" {
		if err := writeTrades(*tradesCSV, rep); err != nil {
			fmt.Fprintf(os.Stderr, "writing trade log: %v\n", err)
			closer.Close()
			os.Exit(1)
		}
		fmt.Fprintf(os.Stderr, "trade log written to %s\n", *tradesCSV)
	}
}

func writeTrades(path string, rep *strategy.Report) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := report.WriteTradeLogCSV(f, rep.Result.TradeLog()); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
