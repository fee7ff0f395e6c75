package domain

import (
	"maps"
	"time"
)

// Frame is a price series together with indicator columns derived from it.
// Every column has exactly one value per bar; undefined values are NaN.
//
// A Frame is treated as immutable: WithColumn returns a new Frame and never
// modifies the receiver's column map.
type Frame struct {
	Symbol  string
	Bars    []Bar
	columns map[string][]float64
}

// NewFrame wraps bars in a Frame with no indicator columns.
func NewFrame(symbol string, bars []Bar) Frame {
	return Frame{Symbol: symbol, Bars: bars}
}

// Len returns the number of periods in the frame.
func (f Frame) Len() int { return len(f.Bars) }

// Closes returns the close prices in bar order.
func (f Frame) Closes() []float64 {
	out := make([]float64, len(f.Bars))
	for i, b := range f.Bars {
		out[i] = b.Close
	}
	return out
}

// Timestamps returns the bar timestamps in order.
func (f Frame) Timestamps() []time.Time {
	out := make([]time.Time, len(f.Bars))
	for i, b := range f.Bars {
		out[i] = b.Timestamp
	}
	return out
}

// Column returns the named indicator column.
func (f Frame) Column(name string) ([]float64, bool) {
	c, ok := f.columns[name]
	return c, ok
}

// ColumnNames returns the names of all indicator columns (unordered).
func (f Frame) ColumnNames() []string {
	names := make([]string, 0, len(f.columns))
	for n := range f.columns {
		names = append(names, n)
	}
	return names
}

// WithColumn returns a copy of f with the named column set to values.
func (f Frame) WithColumn(name string, values []float64) Frame {
	cols := make(map[string][]float64, len(f.columns)+1)
	maps.Copy(cols, f.columns)
	cols[name] = values
	f.columns = cols
	return f
}
