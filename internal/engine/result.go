package engine

import (
	"slices"

	"backtester/internal/domain"
)

// Result is the output of a backtest run: one row per input bar plus the
// trades executed along the way. It is read-only once returned.
type Result struct {
	InitialCapital float64
	Rows           []domain.Row
	Trades         []domain.TradeEvent
}

// FinalValue returns the portfolio value of the last period.
func (r *Result) FinalValue() float64 {
	if len(r.Rows) == 0 {
		return r.InitialCapital
	}
	return r.Rows[len(r.Rows)-1].PortfolioValue
}

// TotalReturnPct returns (final - initial) / initial * 100.
func (r *Result) TotalReturnPct() float64 {
	return (r.FinalValue() - r.InitialCapital) / r.InitialCapital * 100
}

// TradeCount returns the number of periods in which the position changed.
func (r *Result) TradeCount() int {
	n := 0
	for _, row := range r.Rows {
		if row.PositionChanged {
			n++
		}
	}
	return n
}

// TradeLog returns a copy of the executed trades in chronological order.
func (r *Result) TradeLog() []domain.TradeEvent {
	return slices.Clone(r.Trades)
}

// EquityCurve returns the portfolio value of each period.
func (r *Result) EquityCurve() []float64 {
	out := make([]float64, len(r.Rows))
	for i, row := range r.Rows {
		out[i] = row.PortfolioValue
	}
	return out
}

// Positions returns the position held at the end of each period.
func (r *Result) Positions() []domain.Position {
	out := make([]domain.Position, len(r.Rows))
	for i, row := range r.Rows {
		out[i] = row.Position
	}
	return out
}
