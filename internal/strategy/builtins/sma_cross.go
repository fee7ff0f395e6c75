package builtins

import (
	"fmt"
	"math"

	"backtester/internal/domain"
	"backtester/internal/indicator"
	"backtester/internal/strategy"
)

// Compile-time interface check.
var _ strategy.Strategy = (*SMACross)(nil)

// SMACross implements a simple moving average crossover strategy. It enters
// when the short-window SMA crosses above the long-window SMA and exits when
// it crosses back below.
type SMACross struct{}

// NewSMACross creates a new SMACross strategy. The windows are supplied per
// call through strategy.Params.
func NewSMACross() *SMACross {
	return &SMACross{}
}

// Name returns "Simple Moving Average Crossover".
func (s *SMACross) Name() string {
	return "Simple Moving Average Crossover"
}

// ID returns "sma-cross".
func (s *SMACross) ID() string {
	return "sma-cross"
}

// Validate requires both windows to be positive. The short window is not
// required to be smaller than the long one.
func (s *SMACross) Validate(p strategy.Params) error {
	if p.ShortWindow <= 0 {
		return fmt.Errorf("%w: short_window must be a positive integer, got %d", domain.ErrConfiguration, p.ShortWindow)
	}
	if p.LongWindow <= 0 {
		return fmt.Errorf("%w: long_window must be a positive integer, got %d", domain.ErrConfiguration, p.LongWindow)
	}
	return nil
}

// Annotate adds the SMA columns for both windows.
func (s *SMACross) Annotate(frame domain.Frame, p strategy.Params) domain.Frame {
	return indicator.Annotate(frame, p.ShortWindow, p.LongWindow)
}

// Signals converts the fast-above-slow state into edge triggers: +1 on the
// period the state turns true, -1 on the period it turns false. The first
// period is always 0. Undefined averages compare as false.
func (s *SMACross) Signals(frame domain.Frame, p strategy.Params) ([]domain.Signal, error) {
	fast, okFast := frame.Column(indicator.ColumnName(p.ShortWindow))
	slow, okSlow := frame.Column(indicator.ColumnName(p.LongWindow))
	if !okFast || !okSlow {
		return nil, fmt.Errorf("%w: required SMA columns %s/%s not found; indicators must be added before applying the strategy",
			domain.ErrConfiguration, indicator.ColumnName(p.ShortWindow), indicator.ColumnName(p.LongWindow))
	}
	n := frame.Len()
	if len(fast) != n || len(slow) != n {
		return nil, fmt.Errorf("%w: SMA columns not aligned with %d bars", domain.ErrData, n)
	}

	signals := make([]domain.Signal, n)
	prev := false
	for i := 0; i < n; i++ {
		above := !math.IsNaN(fast[i]) && !math.IsNaN(slow[i]) && fast[i] > slow[i]
		if i > 0 {
			switch {
			case above && !prev:
				signals[i] = domain.SignalEnter
			case !above && prev:
				signals[i] = domain.SignalExit
			}
		}
		prev = above
	}
	return signals, nil
}
