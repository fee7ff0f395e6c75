package marketdata

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"backtester/internal/domain"
	"backtester/internal/store"
)

// Compile-time interface check.
var _ Source = (*CachedSource)(nil)

// CachedSource serves repeated requests for the same range from a local
// BarStore. A range counts as cached when the fetch log shows it was
// downloaded within the TTL. Cache failures are logged and fall through to
// the upstream source.
type CachedSource struct {
	upstream Source
	bars     store.BarStore
	fetches  store.FetchLog
	ttl      time.Duration
	now      func() time.Time
	log      *slog.Logger
}

// NewCachedSource wraps upstream with a cache held in bars and fetches.
func NewCachedSource(upstream Source, bars store.BarStore, fetches store.FetchLog, ttl time.Duration) *CachedSource {
	return &CachedSource{
		upstream: upstream,
		bars:     bars,
		fetches:  fetches,
		ttl:      ttl,
		now:      time.Now,
		log:      slog.Default().With("source", "cache"),
	}
}

// Name returns the upstream source name.
func (c *CachedSource) Name() string { return sourceName(c.upstream) }

// Bars returns cached bars when the range is fresh, otherwise fetches from
// upstream and refreshes the cache.
func (c *CachedSource) Bars(ctx context.Context, symbol string, start, end time.Time) ([]domain.Bar, error) {
	symbol = strings.ToUpper(symbol)
	name := sourceName(c.upstream)

	if bars, ok := c.fromCache(ctx, name, symbol, start, end); ok {
		return bars, nil
	}

	bars, err := c.upstream.Bars(ctx, symbol, start, end)
	if err != nil {
		return nil, err
	}

	if err := c.bars.WriteBars(ctx, domain.MarketOf(symbol), bars); err != nil {
		c.log.Warn("caching bars failed", "symbol", symbol, "error", err)
		return bars, nil
	}
	err = c.fetches.RecordFetch(ctx, store.Fetch{
		Source:    name,
		Symbol:    symbol,
		Start:     start,
		End:       end,
		Bars:      len(bars),
		FetchedAt: c.now(),
	})
	if err != nil {
		c.log.Warn("recording fetch failed", "symbol", symbol, "error", err)
	}
	return bars, nil
}

func (c *CachedSource) fromCache(ctx context.Context, name, symbol string, start, end time.Time) ([]domain.Bar, bool) {
	f, ok, err := c.fetches.LastFetch(ctx, name, symbol, start, end)
	if err != nil {
		c.log.Warn("fetch log lookup failed", "symbol", symbol, "error", err)
		return nil, false
	}
	if !ok || c.now().Sub(f.FetchedAt) > c.ttl {
		return nil, false
	}

	bars, err := c.bars.ReadBars(ctx, domain.MarketOf(symbol), symbol, start, end)
	if err != nil {
		c.log.Warn("reading cached bars failed", "symbol", symbol, "error", err)
		return nil, false
	}
	// A short read means the files were pruned or overwritten since.
	if len(bars) < f.Bars || len(bars) == 0 {
		return nil, false
	}
	c.log.Debug("cache hit", "symbol", symbol, "bars", len(bars), "age", c.now().Sub(f.FetchedAt).Round(time.Second))
	out, err := normalize(symbol, bars)
	if err != nil {
		return nil, false
	}
	return out, true
}

func sourceName(s Source) string {
	if n, ok := s.(Named); ok {
		return n.Name()
	}
	return "upstream"
}
