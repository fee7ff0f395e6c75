package engine

// StopLoss forces an exit once a long position has lost at least a fixed
// fraction of its entry price.
type StopLoss struct {
	threshold float64 // fraction, e.g. 0.05 for 5%
}

// NewStopLoss creates a StopLoss from a percentage in [0, 100].
//
//   - 0 exits on the first period that does not close above the entry.
//   - 100 only exits if the price reaches zero.
func NewStopLoss(percent float64) StopLoss {
	return StopLoss{threshold: percent / 100}
}

// Triggered reports whether a position entered at entry must be closed at
// price. An unset entry (zero) never triggers.
func (sl StopLoss) Triggered(entry, price float64) bool {
	if entry <= 0 {
		return false
	}
	return (entry-price)/entry >= sl.threshold
}
