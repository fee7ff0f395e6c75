// Package indicator computes derived columns over a price series.
package indicator

import (
	"math"
	"strconv"

	"backtester/internal/domain"
)

// ColumnName returns the frame column name used for a simple moving average
// of the given window, e.g. "SMA_20".
func ColumnName(window int) string {
	return "SMA_" + strconv.Itoa(window)
}

// SMA returns the rolling arithmetic mean of x over the last window values,
// aligned to x. The first window-1 entries are NaN. A non-positive window
// yields an all-NaN slice.
func SMA(x []float64, window int) []float64 {
	out := make([]float64, len(x))
	if window <= 0 {
		for i := range out {
			out[i] = math.NaN()
		}
		return out
	}

	for i := range x {
		if i < window-1 {
			out[i] = math.NaN()
			continue
		}
		out[i] = windowMean(x[i-window+1 : i+1])
	}
	return out
}

// windowMean averages w as offsets from its first value. Summing the
// offsets keeps a flat window exact, so windows of different lengths over
// the same constant price compare equal.
func windowMean(w []float64) float64 {
	base := w[0]
	var dev float64
	for _, v := range w[1:] {
		dev += v - base
	}
	return base + dev/float64(len(w))
}

// Annotate returns frame with one SMA column per distinct window. Columns
// that already exist are recomputed.
func Annotate(frame domain.Frame, windows ...int) domain.Frame {
	closes := frame.Closes()
	seen := make(map[int]bool, len(windows))
	for _, w := range windows {
		if seen[w] {
			continue
		}
		seen[w] = true
		frame = frame.WithColumn(ColumnName(w), SMA(closes, w))
	}
	return frame
}
