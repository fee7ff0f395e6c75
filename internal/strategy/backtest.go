package strategy

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"backtester/internal/domain"
	"backtester/internal/engine"
	"backtester/internal/util"
)

// BarSource loads a daily price series for one symbol over an inclusive
// date range.
type BarSource interface {
	Bars(ctx context.Context, symbol string, start, end time.Time) ([]domain.Bar, error)
}

// Request describes one backtest run. A zero End means today and a zero
// Start means one year before End.
type Request struct {
	Symbol          string
	Start           time.Time
	End             time.Time
	Strategy        string
	Params          Params
	InitialCapital  float64
	StopLossPercent float64
}

// EngineConfig returns the engine part of the request.
func (r Request) EngineConfig() engine.Config {
	return engine.Config{InitialCapital: r.InitialCapital, StopLossPercent: r.StopLossPercent}
}

// Report is the outcome of a backtest run.
type Report struct {
	Strategy string // display name
	Request  Request
	Frame    domain.Frame
	Signals  []domain.Signal
	Result   *engine.Result
	Metrics  engine.Metrics
}

// Backtester replays historical bar data through a strategy and computes
// performance metrics.
type Backtester struct {
	source   BarSource
	registry *Registry
	now      func() time.Time
	log      *slog.Logger
}

// NewBacktester creates a Backtester that reads bars from source and looks
// up strategies in the provided registry.
func NewBacktester(source BarSource, registry *Registry) *Backtester {
	return &Backtester{
		source:   source,
		registry: registry,
		now:      time.Now,
		log:      slog.Default().With("component", "backtester"),
	}
}

// Run loads the price series for req and runs it. Parameters are checked
// before any data is fetched.
func (bt *Backtester) Run(ctx context.Context, req Request) (*Report, error) {
	s, err := bt.check(req)
	if err != nil {
		return nil, err
	}

	start, end, err := util.ResolveRange(req.Start, req.End, bt.now())
	if err != nil {
		return nil, err
	}
	req.Start, req.End = start, end

	bars, err := bt.source.Bars(ctx, req.Symbol, start, end)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", req.Symbol, err)
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("%w for symbol %s", domain.ErrNoData, req.Symbol)
	}
	bt.log.Debug("loaded bars", "symbol", req.Symbol, "count", len(bars),
		"start", start.Format("2006-01-02"), "end", end.Format("2006-01-02"))

	return bt.runFrame(s, domain.NewFrame(req.Symbol, bars), req)
}

// RunFrame runs req against an already loaded frame. It does no I/O, so
// callers that vary only the parameters can reuse one frame.
func (bt *Backtester) RunFrame(frame domain.Frame, req Request) (*Report, error) {
	s, err := bt.check(req)
	if err != nil {
		return nil, err
	}
	return bt.runFrame(s, frame, req)
}

func (bt *Backtester) check(req Request) (Strategy, error) {
	s, err := bt.registry.Lookup(req.Strategy)
	if err != nil {
		return nil, err
	}
	if err := s.Validate(req.Params); err != nil {
		return nil, err
	}
	if err := req.EngineConfig().Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (bt *Backtester) runFrame(s Strategy, frame domain.Frame, req Request) (*Report, error) {
	annotated := s.Annotate(frame, req.Params)

	signals, err := s.Signals(annotated, req.Params)
	if err != nil {
		return nil, fmt.Errorf("generating %s signals: %w", s.Name(), err)
	}

	res, err := engine.Run(annotated.Bars, signals, req.EngineConfig())
	if err != nil {
		return nil, fmt.Errorf("running %s on %s: %w", s.Name(), frame.Symbol, err)
	}

	m := engine.ComputeMetrics(res)
	bt.log.Info("backtest complete",
		"symbol", frame.Symbol,
		"strategy", s.Name(),
		"bars", frame.Len(),
		"trades", m.TradeCount,
		"return_pct", m.TotalReturnPct,
	)

	return &Report{
		Strategy: s.Name(),
		Request:  req,
		Frame:    annotated,
		Signals:  signals,
		Result:   res,
		Metrics:  m,
	}, nil
}
