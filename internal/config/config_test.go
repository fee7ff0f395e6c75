package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"backtester/internal/domain"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "backtester.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}
	return path
}

// clearEnv blanks every override Load consults so the host environment
// cannot leak into a test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"DATA_DIR", "SQLITE_PATH", "ALPACA_API_KEY", "ALPACA_API_SECRET",
		"APCA_API_KEY_ID", "APCA_API_SECRET_KEY", "ALPACA_BASE_URL",
		"ALPACA_DATA_URL", "LOG_LEVEL", "BACKTEST_SYMBOL", "BACKTEST_STRATEGY",
		"BACKTESTER_CONFIG",
	} {
		t.Setenv(k, "")
	}
	// Keep godotenv from picking up a stray .env next to the test binary.
	t.Chdir(t.TempDir())
}

func TestLoadFile(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
storage:
  data_dir: "/tmp/backtester/data"
  sqlite_path: "/tmp/backtester/fetch.db"
server:
  host: "0.0.0.0"
  grpc_port: 9191
alpaca:
  api_key: "test-key"
  api_secret: "test-secret"
  feed: "sip"
logging:
  level: "debug"
  format: "json"
data:
  source: "alpaca"
  cache: true
  cache_ttl: 30m
backtest:
  symbol: "MSFT"
  strategy: "sma-cross"
  start_date: "2023-01-01"
  end_date: "2023-12-31"
  initial_capital: 50000
  stop_loss_pct: 0
  short_window: 10
  long_window: 30
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.Storage.DataDir != "/tmp/backtester/data" {
		t.Errorf("Storage.DataDir = %q", cfg.Storage.DataDir)
	}
	if cfg.Server.GRPCPort != 9191 {
		t.Errorf("Server.GRPCPort = %d, want 9191", cfg.Server.GRPCPort)
	}
	if cfg.Alpaca.Feed != "sip" || !cfg.HasTradingCredentials() {
		t.Errorf("Alpaca = %+v", cfg.Alpaca)
	}
	if !cfg.Data.Cache || cfg.Data.CacheTTL != 30*time.Minute {
		t.Errorf("Data = %+v", cfg.Data)
	}

	b := cfg.Backtest
	if b.Symbol != "MSFT" || b.Strategy != "sma-cross" {
		t.Errorf("Backtest symbol/strategy = %q/%q", b.Symbol, b.Strategy)
	}
	if b.InitialCapital != 50000 || b.ShortWindow != 10 || b.LongWindow != 30 {
		t.Errorf("Backtest = %+v", b)
	}
	// An explicit zero stop-loss is kept, not replaced by the default.
	if b.StopLossPct != 0 {
		t.Errorf("StopLossPct = %v, want 0", b.StopLossPct)
	}

	start, end, err := cfg.Range(time.Now())
	if err != nil {
		t.Fatalf("Range: %v", err)
	}
	if start.Format("2006-01-02") != "2023-01-01" || end.Format("2006-01-02") != "2023-12-31" {
		t.Errorf("Range = %v..%v", start, end)
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load(\"\"): %v", err)
	}
	b := cfg.Backtest
	if b.InitialCapital != 100000 || b.StopLossPct != 5 || b.ShortWindow != 20 || b.LongWindow != 50 {
		t.Errorf("Backtest defaults = %+v", b)
	}
	if b.Strategy != "Buy and Hold" {
		t.Errorf("Strategy default = %q", b.Strategy)
	}
	if cfg.Data.Source != "alpaca" || cfg.Data.CacheTTL != time.Hour {
		t.Errorf("Data defaults = %+v", cfg.Data)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("Logging.Level = %q", cfg.Logging.Level)
	}

	now := time.Date(2025, 5, 10, 12, 0, 0, 0, time.UTC)
	start, end, err := cfg.Range(now)
	if err != nil {
		t.Fatalf("Range: %v", err)
	}
	if start.Format("2006-01-02") != "2024-05-10" || end.Format("2006-01-02") != "2025-05-10" {
		t.Errorf("default Range = %v..%v", start, end)
	}
}

func TestLoadEndDateOnly(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
backtest:
  end_date: "2020-06-30"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	start, end, err := cfg.Range(time.Date(2025, 10, 18, 12, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("Range: %v", err)
	}
	// The start defaults to a year before the configured end, not before today.
	if start.Format("2006-01-02") != "2019-06-30" || end.Format("2006-01-02") != "2020-06-30" {
		t.Errorf("Range = %v..%v, want 2019-06-30..2020-06-30", start, end)
	}
}

func TestEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATA_DIR", "/env/data")
	t.Setenv("ALPACA_API_KEY", "alpaca-key")
	t.Setenv("APCA_API_KEY_ID", "apca-key")
	t.Setenv("BACKTEST_SYMBOL", "NVDA")
	t.Setenv("LOG_LEVEL", "warn")

	path := writeConfig(t, "storage:\n  data_dir: /file/data\nbacktest:\n  symbol: MSFT\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Storage.DataDir != "/env/data" {
		t.Errorf("DataDir = %q, want env override", cfg.Storage.DataDir)
	}
	if cfg.Storage.SQLitePath != "/env/data/backtester.db" {
		t.Errorf("SQLitePath = %q", cfg.Storage.SQLitePath)
	}
	// APCA_* wins over ALPACA_*.
	if cfg.Alpaca.APIKey != "apca-key" {
		t.Errorf("APIKey = %q, want apca-key", cfg.Alpaca.APIKey)
	}
	if cfg.Backtest.Symbol != "NVDA" || cfg.Logging.Level != "warn" {
		t.Errorf("Symbol/Level = %q/%q", cfg.Backtest.Symbol, cfg.Logging.Level)
	}
	if cfg.Backtest.StopLossPct != 5 {
		t.Errorf("StopLossPct = %v, want default 5", cfg.Backtest.StopLossPct)
	}
}

func TestDotEnv(t *testing.T) {
	clearEnv(t)
	if err := os.WriteFile(".env", []byte("BACKTEST_STRATEGY=sma-cross\n"), 0o644); err != nil {
		t.Fatalf("write .env: %v", err)
	}
	// godotenv never overrides a variable that is already set, even to "".
	os.Unsetenv("BACKTEST_STRATEGY")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Backtest.Strategy != "sma-cross" {
		t.Errorf("Strategy = %q, want value from .env", cfg.Backtest.Strategy)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"negative capital", "backtest:\n  initial_capital: -1\n"},
		{"stop above 100", "backtest:\n  stop_loss_pct: 150\n"},
		{"negative window", "backtest:\n  short_window: -5\n"},
		{"bad date", "backtest:\n  start_date: 01/02/2024\n"},
		{"inverted range", "backtest:\n  start_date: 2024-02-01\n  end_date: 2024-01-01\n"},
		{"unknown source", "data:\n  source: bloomberg\n"},
		{"csv without path", "data:\n  source: csv\n"},
		{"malformed yaml", "backtest: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			_, err := Load(writeConfig(t, tt.body))
			if !errors.Is(err, domain.ErrConfiguration) {
				t.Errorf("Load error = %v, want ErrConfiguration", err)
			}
		})
	}

	t.Run("missing file", func(t *testing.T) {
		clearEnv(t)
		_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
		if !errors.Is(err, domain.ErrConfiguration) {
			t.Errorf("Load error = %v, want ErrConfiguration", err)
		}
	})
}

func TestPath(t *testing.T) {
	clearEnv(t)
	if got := Path("explicit.yaml"); got != "explicit.yaml" {
		t.Errorf("Path(flag) = %q", got)
	}
	if got := Path(""); got != "" {
		t.Errorf("Path with nothing configured = %q, want empty", got)
	}
	t.Setenv("BACKTESTER_CONFIG", "/etc/bt.yaml")
	if got := Path(""); got != "/etc/bt.yaml" {
		t.Errorf("Path(env) = %q", got)
	}
}
