package builtins

import (
	"backtester/internal/domain"
	"backtester/internal/strategy"
)

var _ strategy.Strategy = (*BuyAndHold)(nil)

// BuyAndHold enters on the first bar and never asks to exit.
type BuyAndHold struct{}

// NewBuyAndHold creates a BuyAndHold strategy.
func NewBuyAndHold() *BuyAndHold {
	return &BuyAndHold{}
}

// Name returns "Buy and Hold".
func (s *BuyAndHold) Name() string { return "Buy and Hold" }

// ID returns "buy-and-hold".
func (s *BuyAndHold) ID() string { return "buy-and-hold" }

// Validate accepts any parameters; none are used.
func (s *BuyAndHold) Validate(_ strategy.Params) error { return nil }

// Annotate returns frame unchanged.
func (s *BuyAndHold) Annotate(frame domain.Frame, _ strategy.Params) domain.Frame {
	return frame
}

// Signals emits +1 at the first period and 0 everywhere else.
func (s *BuyAndHold) Signals(frame domain.Frame, _ strategy.Params) ([]domain.Signal, error) {
	signals := make([]domain.Signal, frame.Len())
	if len(signals) > 0 {
		signals[0] = domain.SignalEnter
	}
	return signals, nil
}
