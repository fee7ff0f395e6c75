package marketdata

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"backtester/internal/config"
	"backtester/internal/domain"
	"backtester/internal/store"
)

// Open builds the Source described by cfg. The returned closer releases the
// cache database, if one was opened.
func Open(cfg *config.Config) (Source, io.Closer, error) {
	var src Source
	switch strings.ToLower(cfg.Data.Source) {
	case "csv":
		src = NewCSVSource(cfg.Data.CSVPath)
	case "alpaca":
		if !cfg.HasTradingCredentials() {
			return nil, nil, fmt.Errorf("%w: Alpaca credentials are not set (APCA_API_KEY_ID / APCA_API_SECRET_KEY)", domain.ErrConfiguration)
		}
		src = NewAlpacaSource(AlpacaOptions{
			APIKey:          cfg.Alpaca.APIKey,
			APISecret:       cfg.Alpaca.APISecret,
			DataURL:         cfg.Alpaca.DataURL,
			BaseURL:         cfg.Alpaca.BaseURL,
			Feed:            cfg.Alpaca.Feed,
			RateLimitPerMin: cfg.Alpaca.RateLimitPerMin,
		})
	default:
		return nil, nil, fmt.Errorf("%w: unknown data source %q", domain.ErrConfiguration, cfg.Data.Source)
	}

	if !cfg.Data.Cache {
		return src, nopCloser{}, nil
	}

	fetches, err := store.NewSQLiteStore(cfg.Storage.SQLitePath)
	if err != nil {
		return nil, nil, fmt.Errorf("opening fetch log %s: %w", cfg.Storage.SQLitePath, err)
	}
	bars := store.NewParquetStore(filepath.Clean(cfg.Storage.DataDir))
	return NewCachedSource(src, bars, fetches, cfg.Data.CacheTTL), fetches, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
