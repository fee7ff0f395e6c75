// Package store caches market data locally: bar series in Parquet files and
// a log of upstream fetches in SQLite.
package store

import (
	"context"
	"time"

	"backtester/internal/domain"
)

// BarStore persists and retrieves OHLCV bar data.
type BarStore interface {
	// WriteBars persists a batch of bars under the given market, merging
	// with what is already stored.
	WriteBars(ctx context.Context, market domain.Market, bars []domain.Bar) error

	// ReadBars returns bars for the given symbol and market within
	// [start, end], ascending by timestamp.
	ReadBars(ctx context.Context, market domain.Market, symbol string, start, end time.Time) ([]domain.Bar, error)

	// ListSymbols returns all distinct symbols available in the given market.
	ListSymbols(ctx context.Context, market domain.Market) ([]string, error)
}

// Fetch records one successful upstream download.
type Fetch struct {
	Source    string
	Symbol    string
	Start     time.Time
	End       time.Time
	Bars      int
	FetchedAt time.Time
}

// FetchLog remembers which ranges have been downloaded and when.
type FetchLog interface {
	// RecordFetch stores f, replacing any earlier fetch of the same range.
	RecordFetch(ctx context.Context, f Fetch) error

	// LastFetch returns the most recent fetch of exactly (source, symbol,
	// start, end). The bool is false if the range was never fetched.
	LastFetch(ctx context.Context, source, symbol string, start, end time.Time) (Fetch, bool, error)
}
