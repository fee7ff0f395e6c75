// Package gather prefetches daily bars for many symbols so later backtests
// run from the local cache.
package gather

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"backtester/internal/domain"
)

// Source loads daily bars for one symbol.
type Source interface {
	Bars(ctx context.Context, symbol string, start, end time.Time) ([]domain.Bar, error)
}

// DateRange represents a time range for data fetching.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// Result is the outcome of fetching one symbol.
type Result struct {
	Symbol string
	Bars   int
	Err    error
}

// Warmer fetches symbols through a Source with bounded concurrency. Pointed
// at a caching source it fills the cache.
type Warmer struct {
	source     Source
	maxWorkers int
	log        *slog.Logger
}

// NewWarmer creates a Warmer running at most maxWorkers fetches at once.
func NewWarmer(source Source, maxWorkers int) *Warmer {
	if maxWorkers <= 0 {
		maxWorkers = 4
	}
	return &Warmer{
		source:     source,
		maxWorkers: maxWorkers,
		log:        slog.Default().With("component", "gather"),
	}
}

// Run fetches every symbol over r and returns one Result per distinct
// symbol, in input order. A failed symbol does not stop the others; the
// returned error is non-nil only when ctx ends first.
func (w *Warmer) Run(ctx context.Context, symbols []string, r DateRange) ([]Result, error) {
	symbols = dedupe(symbols)
	results := make([]Result, len(symbols))

	var (
		done     atomic.Int64
		failed   atomic.Int64
		runStart = time.Now()
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.maxWorkers)

	for i, sym := range symbols {
		g.Go(func() error {
			if gctx.Err() != nil {
				results[i] = Result{Symbol: sym, Err: gctx.Err()}
				return nil
			}
			bars, err := w.source.Bars(gctx, sym, r.Start, r.End)
			results[i] = Result{Symbol: sym, Bars: len(bars), Err: err}

			n := done.Add(1)
			if err != nil {
				failed.Add(1)
				w.log.Warn("fetch failed", "symbol", sym, "error", err)
				return nil
			}
			w.log.Info("symbol done",
				"symbol", sym,
				"progress", fmt.Sprintf("%d/%d", n, len(symbols)),
				"bars", len(bars),
				"elapsed", time.Since(runStart).Round(time.Millisecond),
			)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return results, err
	}
	w.log.Info("gather complete", "symbols", len(symbols), "failed", failed.Load(),
		"elapsed", time.Since(runStart).Round(time.Millisecond))
	return results, nil
}

// ParseSymbols splits a comma or whitespace separated symbol list.
func ParseSymbols(s string) []string {
	return dedupe(strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n'
	}))
}

func dedupe(symbols []string) []string {
	seen := make(map[string]bool, len(symbols))
	out := make([]string, 0, len(symbols))
	for _, s := range symbols {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
