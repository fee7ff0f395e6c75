package engine

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"backtester/internal/domain"
)

// PeriodsPerYear is the annualisation factor for daily bars.
const PeriodsPerYear = 252

// Metrics summarises a Result beyond the headline return.
type Metrics struct {
	TotalReturnPct float64
	FinalValue     float64
	TradeCount     int
	RoundTrips     int     // completed buy/sell pairs
	WinRatePct     float64 // share of round trips that closed above entry value
	StopLossExits  int
	MaxDrawdownPct float64
	VolatilityPct  float64 // annualised stdev of per-period returns
	SharpeRatio    float64 // annualised, zero risk-free rate
	ExposurePct    float64 // share of periods spent long
}

// ComputeMetrics derives Metrics from a Result. It does not modify r.
func ComputeMetrics(r *Result) Metrics {
	m := Metrics{
		TotalReturnPct: r.TotalReturnPct(),
		FinalValue:     r.FinalValue(),
		TradeCount:     r.TradeCount(),
	}

	equity := r.EquityCurve()
	m.MaxDrawdownPct = maxDrawdownPct(equity)

	if rets := periodReturns(equity); len(rets) > 1 {
		mean, std := stat.MeanStdDev(rets, nil)
		m.VolatilityPct = std * math.Sqrt(PeriodsPerYear) * 100
		if std > 0 {
			m.SharpeRatio = mean / std * math.Sqrt(PeriodsPerYear)
		}
	}

	if len(r.Rows) > 0 {
		long := make([]float64, len(r.Rows))
		for i, row := range r.Rows {
			if row.Position == domain.PositionLong {
				long[i] = 1
			}
		}
		m.ExposurePct = floats.Sum(long) / float64(len(long)) * 100
	}

	var (
		entryValue float64
		open       bool
		wins       int
	)
	for _, t := range r.Trades {
		switch t.Action {
		case domain.TradeBuy:
			entryValue = t.Value
			open = true
		case domain.TradeSell:
			if t.StopLoss {
				m.StopLossExits++
			}
			if open {
				m.RoundTrips++
				if t.Value > entryValue {
					wins++
				}
				open = false
			}
		}
	}
	if m.RoundTrips > 0 {
		m.WinRatePct = float64(wins) / float64(m.RoundTrips) * 100
	}
	return m
}

func periodReturns(equity []float64) []float64 {
	if len(equity) < 2 {
		return nil
	}
	rets := make([]float64, len(equity)-1)
	for i := 1; i < len(equity); i++ {
		rets[i-1] = equity[i]/equity[i-1] - 1
	}
	return rets
}

// maxDrawdownPct returns the largest peak-to-trough decline as a positive
// percentage of the peak.
func maxDrawdownPct(equity []float64) float64 {
	var peak, worst float64
	for _, v := range equity {
		if v > peak {
			peak = v
		}
		if peak > 0 {
			if dd := (peak - v) / peak; dd > worst {
				worst = dd
			}
		}
	}
	return worst * 100
}
