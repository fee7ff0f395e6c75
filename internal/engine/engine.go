// Package engine replays a signal series against a price series and tracks
// the resulting long/flat position, portfolio value and trades.
//
// The engine is the single writer of position state. Signals are intents: a
// +1 while long or a -1 while flat is ignored, and the stop-loss rule may
// replace any signal with a forced exit. A run is a pure fold of Step over
// the bars, so identical inputs always give identical results.
package engine

import (
	"fmt"
	"math"

	"backtester/internal/domain"
)

// Config holds the run parameters. It is passed by value; the engine never
// reads ambient state.
type Config struct {
	InitialCapital  float64
	StopLossPercent float64
}

// Validate checks the capital and stop-loss bounds.
func (c Config) Validate() error {
	if math.IsNaN(c.InitialCapital) || math.IsInf(c.InitialCapital, 0) || c.InitialCapital <= 0 {
		return fmt.Errorf("%w: initial capital must be positive, got %v", domain.ErrConfiguration, c.InitialCapital)
	}
	if math.IsNaN(c.StopLossPercent) || c.StopLossPercent < 0 || c.StopLossPercent > 100 {
		return fmt.Errorf("%w: stop loss must be within [0, 100], got %v", domain.ErrConfiguration, c.StopLossPercent)
	}
	return nil
}

// State is the portfolio carried from one period to the next.
//
// While flat, Cash is the authoritative portfolio value and Holdings is zero.
// While long, Holdings is positive and the value floats with the price; Cash
// keeps the value at entry and is stale until the next exit.
type State struct {
	Position   domain.Position
	Holdings   float64
	Cash       float64
	EntryPrice float64 // zero while flat
}

// NewState returns a flat portfolio holding capital in cash.
func NewState(capital float64) State {
	return State{Position: domain.PositionFlat, Cash: capital}
}

// Value marks the portfolio to market at price.
func (s State) Value(price float64) float64 {
	if s.Holdings > 0 {
		return s.Holdings * price
	}
	return s.Cash
}

// Engine applies the position rules for one configuration.
type Engine struct {
	cfg  Config
	stop StopLoss
}

// NewEngine validates cfg and returns an Engine for it.
func NewEngine(cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Engine{cfg: cfg, stop: NewStopLoss(cfg.StopLossPercent)}, nil
}

// Config returns the configuration the engine was built with.
func (e *Engine) Config() Config { return e.cfg }

// Step advances the portfolio by one period. It returns the next state, the
// output row for the period and the executed trade, if any.
func (e *Engine) Step(s State, bar domain.Bar, sig domain.Signal) (State, domain.Row, *domain.TradeEvent) {
	price := bar.Close

	forced := false
	if s.Position == domain.PositionLong && e.stop.Triggered(s.EntryPrice, price) {
		sig = domain.SignalExit
		forced = true
	}

	var trade *domain.TradeEvent
	switch {
	case sig == domain.SignalEnter && s.Position == domain.PositionFlat:
		s.Position = domain.PositionLong
		s.Holdings = s.Cash / price
		s.EntryPrice = price
		trade = &domain.TradeEvent{
			Timestamp: bar.Timestamp,
			Action:    domain.TradeBuy,
			Price:     price,
			Value:     s.Cash,
		}

	case sig == domain.SignalExit && s.Position == domain.PositionLong:
		s.Position = domain.PositionFlat
		s.Cash = s.Holdings * price
		s.Holdings = 0
		s.EntryPrice = 0
		trade = &domain.TradeEvent{
			Timestamp: bar.Timestamp,
			Action:    domain.TradeSell,
			Price:     price,
			Value:     s.Cash,
			StopLoss:  forced,
		}
	}

	row := domain.Row{
		Timestamp:       bar.Timestamp,
		Position:        s.Position,
		PortfolioValue:  s.Value(price),
		PositionChanged: trade != nil,
		Close:           price,
	}
	if trade != nil {
		row.TradeType = trade.Action
	}
	return s, row, trade
}

// Run replays signals over bars. It fails before touching any state if the
// inputs are empty, misaligned, contain an invalid signal or a close price
// that is not a finite positive number.
func (e *Engine) Run(bars []domain.Bar, signals []domain.Signal) (*Result, error) {
	if err := validateInputs(bars, signals); err != nil {
		return nil, err
	}

	res := &Result{
		InitialCapital: e.cfg.InitialCapital,
		Rows:           make([]domain.Row, 0, len(bars)),
	}

	state := NewState(e.cfg.InitialCapital)
	for i, bar := range bars {
		var (
			row   domain.Row
			trade *domain.TradeEvent
		)
		state, row, trade = e.Step(state, bar, signals[i])
		res.Rows = append(res.Rows, row)
		if trade != nil {
			res.Trades = append(res.Trades, *trade)
		}
	}
	return res, nil
}

// Run is a convenience wrapper that builds an Engine from cfg and runs it.
func Run(bars []domain.Bar, signals []domain.Signal, cfg Config) (*Result, error) {
	e, err := NewEngine(cfg)
	if err != nil {
		return nil, err
	}
	return e.Run(bars, signals)
}

func validateInputs(bars []domain.Bar, signals []domain.Signal) error {
	if len(bars) == 0 {
		return fmt.Errorf("%w: empty price series", domain.ErrData)
	}
	if len(signals) != len(bars) {
		return fmt.Errorf("%w: %d signals for %d bars", domain.ErrData, len(signals), len(bars))
	}
	for i, b := range bars {
		if math.IsNaN(b.Close) || math.IsInf(b.Close, 0) || b.Close <= 0 {
			return fmt.Errorf("%w: close price %v at %s (period %d) is not a positive number",
				domain.ErrComputation, b.Close, b.Timestamp.Format("2006-01-02"), i)
		}
		if !signals[i].Valid() {
			return fmt.Errorf("%w: signal %d at period %d is outside {-1, 0, 1}", domain.ErrData, signals[i], i)
		}
	}
	return nil
}
