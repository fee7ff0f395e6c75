package marketdata

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"

	"backtester/internal/domain"
	"backtester/internal/util"
)

// Compile-time interface check.
var _ Source = (*AlpacaSource)(nil)

// barsClient is the part of the Alpaca market-data client used here.
type barsClient interface {
	GetBars(symbol string, req marketdata.GetBarsRequest) ([]marketdata.Bar, error)
}

// AlpacaOptions configures an AlpacaSource.
type AlpacaOptions struct {
	APIKey          string
	APISecret       string
	DataURL         string // market-data API; empty for the SDK default
	BaseURL         string // trading API, used for the calendar
	Feed            string // "iex" or "sip"
	RateLimitPerMin int
	MaxAttempts     int
	RetryDelay      time.Duration
}

// AlpacaSource loads daily bars from the Alpaca market-data REST API.
// Requests are paced by a rate limiter and retried with exponential backoff.
type AlpacaSource struct {
	client      barsClient
	calendar    *TradingCalendar
	feed        string
	limiter     *util.RateLimiter
	maxAttempts int
	retryDelay  time.Duration
	log         *slog.Logger
}

// NewAlpacaSource creates an AlpacaSource. When trading credentials are
// present the requested end date is clamped to the latest finished trading
// session.
func NewAlpacaSource(opts AlpacaOptions) *AlpacaSource {
	clientOpts := marketdata.ClientOpts{
		APIKey:     opts.APIKey,
		APISecret:  opts.APISecret,
		HTTPClient: &http.Client{
			Timeout:   time.Minute,
			Transport: statusTransport{},
		},
	}
	if opts.DataURL != "" {
		clientOpts.BaseURL = opts.DataURL
	}

	s := newAlpacaSource(marketdata.NewClient(clientOpts), opts)
	if opts.APIKey != "" && opts.APISecret != "" {
		s.calendar = NewTradingCalendar(opts.APIKey, opts.APISecret, opts.BaseURL)
	}
	return s
}

func newAlpacaSource(client barsClient, opts AlpacaOptions) *AlpacaSource {
	if opts.RateLimitPerMin <= 0 {
		opts.RateLimitPerMin = 200
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = time.Second
	}
	if opts.Feed == "" {
		opts.Feed = "iex"
	}
	return &AlpacaSource{
		client:      client,
		feed:        opts.Feed,
		limiter:     util.NewRateLimiter(opts.RateLimitPerMin),
		maxAttempts: opts.MaxAttempts,
		retryDelay:  opts.RetryDelay,
		log:         slog.Default().With("source", "alpaca"),
	}
}

// Name returns "alpaca".
func (s *AlpacaSource) Name() string { return "alpaca" }

// Bars fetches daily bars for symbol within [start, end].
func (s *AlpacaSource) Bars(ctx context.Context, symbol string, start, end time.Time) ([]domain.Bar, error) {
	symbol = strings.ToUpper(symbol)
	end = s.clampEnd(end)
	if end.Before(start) {
		return nil, fmt.Errorf("%w: no finished trading session in range for %s", domain.ErrData, symbol)
	}

	var raw []marketdata.Bar
	retry := util.Backoff{Attempts: s.maxAttempts, Delay: s.retryDelay, MaxDelay: 30 * time.Second}
	err := util.Retry(ctx, retry, func() error {
		if err := s.limiter.Wait(ctx); err != nil {
			return util.Permanent(err)
		}
		var err error
		raw, err = s.client.GetBars(symbol, marketdata.GetBarsRequest{
			TimeFrame: marketdata.OneDay,
			Start:     start,
			End:       end,
			Feed:      marketdata.Feed(s.feed),
		})
		if err != nil && isPermanent(err) {
			s.log.Warn("GetBars rejected", "symbol", symbol, "error", err)
			return util.Permanent(err)
		}
		if err != nil {
			s.log.Warn("GetBars failed", "symbol", symbol, "error", err)
		}
		return err
	})
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("%w: fetching %s from Alpaca: %v", domain.ErrData, symbol, err)
	}

	bars := make([]domain.Bar, 0, len(raw))
	for _, ab := range raw {
		bars = append(bars, domain.Bar{
			Symbol:     symbol,
			Timestamp:  ab.Timestamp.UTC(),
			Open:       ab.Open,
			High:       ab.High,
			Low:        ab.Low,
			Close:      ab.Close,
			Volume:     int64(ab.Volume),
			TradeCount: int64(ab.TradeCount),
			VWAP:       ab.VWAP,
		})
	}
	s.log.Debug("fetched bars", "symbol", symbol, "count", len(bars))
	return normalize(symbol, bars)
}

// clampEnd pulls end back to the last finished session. Calendar failures
// leave end unchanged.
func (s *AlpacaSource) clampEnd(end time.Time) time.Time {
	if s.calendar == nil {
		return end
	}
	last, err := s.calendar.LatestFinishedTradingDay()
	if err != nil {
		s.log.Warn("trading calendar unavailable, not clamping end date", "error", err)
		return end
	}
	lastEnd := last.Add(24*time.Hour - time.Nanosecond)
	if end.After(lastEnd) {
		return lastEnd
	}
	return end
}
