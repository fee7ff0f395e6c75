// Package marketdata loads daily price series from Alpaca, local CSV files
// or a local cache in front of either.
package marketdata

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"backtester/internal/domain"
)

// Source loads a daily price series for one symbol over an inclusive date
// range. Implementations return bars in strictly ascending timestamp order.
type Source interface {
	Bars(ctx context.Context, symbol string, start, end time.Time) ([]domain.Bar, error)
}

// Named is implemented by sources that identify themselves in the fetch log.
type Named interface {
	Name() string
}

// normalize sorts bars by timestamp and drops repeated timestamps, keeping
// the last occurrence. An empty result is a data error.
func normalize(symbol string, bars []domain.Bar) ([]domain.Bar, error) {
	if len(bars) == 0 {
		return nil, fmt.Errorf("%w for symbol %s", domain.ErrNoData, strings.ToUpper(symbol))
	}
	sort.SliceStable(bars, func(i, j int) bool {
		return bars[i].Timestamp.Before(bars[j].Timestamp)
	})
	out := bars[:0]
	for _, b := range bars {
		if n := len(out); n > 0 && out[n-1].Timestamp.Equal(b.Timestamp) {
			out[n-1] = b
			continue
		}
		out = append(out, b)
	}
	return out, nil
}
