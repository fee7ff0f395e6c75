package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"backtester/internal/domain"
	"backtester/internal/util"
)

// DefaultPath is the config file read when neither the -config flag nor
// BACKTESTER_CONFIG names one.
const DefaultPath = "config/backtester.yaml"

// ---------------------------------------------------------------------------
// Configuration structs
// ---------------------------------------------------------------------------

// Config is the top-level configuration for the backtester.
type Config struct {
	Storage  Storage  `yaml:"storage"`
	Server   Server   `yaml:"server"`
	Alpaca   Alpaca   `yaml:"alpaca"`
	Logging  Logging  `yaml:"logging"`
	Data     Data     `yaml:"data"`
	Backtest Backtest `yaml:"backtest"`
}

// Storage holds paths for the market-data cache.
type Storage struct {
	DataDir    string `yaml:"data_dir"`
	SQLitePath string `yaml:"sqlite_path"`
}

// Server holds network listener configuration.
type Server struct {
	Host        string `yaml:"host"`
	GRPCPort    int    `yaml:"grpc_port"`
	MetricsPort int    `yaml:"metrics_port"` // Prometheus /metrics; -1 disables
}

// Alpaca holds credentials and endpoints for the Alpaca APIs.
type Alpaca struct {
	APIKey          string `yaml:"api_key"`
	APISecret       string `yaml:"api_secret"`
	BaseURL         string `yaml:"base_url"`
	DataURL         string `yaml:"data_url"`
	Feed            string `yaml:"feed"`
	RateLimitPerMin int    `yaml:"rate_limit_per_min"`
}

// Logging configures the application logger.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Data selects where price series come from.
type Data struct {
	Source   string        `yaml:"source"` // "alpaca" or "csv"
	CSVPath  string        `yaml:"csv_path"`
	Cache    bool          `yaml:"cache"`
	CacheTTL time.Duration `yaml:"cache_ttl"`
}

// Backtest holds the default run parameters. Command-line flags override
// them.
type Backtest struct {
	Symbol         string  `yaml:"symbol"`
	Strategy       string  `yaml:"strategy"`
	StartDate      string  `yaml:"start_date"`
	EndDate        string  `yaml:"end_date"`
	InitialCapital float64 `yaml:"initial_capital"`
	StopLossPct    float64 `yaml:"stop_loss_pct"`
	ShortWindow    int     `yaml:"short_window"`
	LongWindow     int     `yaml:"long_window"`
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Path returns the config file to load: flagValue if set, otherwise
// BACKTESTER_CONFIG, otherwise DefaultPath when that file exists. An empty
// result means no file.
func Path(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if v := os.Getenv("BACKTESTER_CONFIG"); v != "" {
		return v
	}
	if _, err := os.Stat(DefaultPath); err == nil {
		return DefaultPath
	}
	return ""
}

// Load reads an optional .env file, then the YAML configuration file at the
// given path, applies environment variable overrides and defaults, and
// validates the result. An empty path skips the YAML file.
func Load(path string) (*Config, error) {
	// A missing .env is not an error.
	_ = godotenv.Load()

	// stop_loss_pct of 0 is meaningful (exit on any loss), so its default is
	// set before decoding rather than filled in afterwards.
	cfg := &Config{Backtest: Backtest{StopLossPct: 5}}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("%w: config file %s not found", domain.ErrConfiguration, path)
			}
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("%w: parsing config %s: %v", domain.ErrConfiguration, path, err)
		}
	}

	applyEnvOverrides(cfg)
	applyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides checks well-known environment variables and overrides the
// corresponding configuration fields when they are set.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
	}

	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Storage.SQLitePath = v
	}

	if v := os.Getenv("ALPACA_API_KEY"); v != "" {
		cfg.Alpaca.APIKey = v
	}

	if v := os.Getenv("ALPACA_API_SECRET"); v != "" {
		cfg.Alpaca.APISecret = v
	}

	if v := os.Getenv("ALPACA_BASE_URL"); v != "" {
		cfg.Alpaca.BaseURL = v
	}

	if v := os.Getenv("ALPACA_DATA_URL"); v != "" {
		cfg.Alpaca.DataURL = v
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	if v := os.Getenv("BACKTEST_SYMBOL"); v != "" {
		cfg.Backtest.Symbol = v
	}

	if v := os.Getenv("BACKTEST_STRATEGY"); v != "" {
		cfg.Backtest.Strategy = v
	}

	// Standard Alpaca env vars take precedence: they are the names the SDK
	// itself reads.
	if v := os.Getenv("APCA_API_KEY_ID"); v != "" {
		cfg.Alpaca.APIKey = v
	}
	if v := os.Getenv("APCA_API_SECRET_KEY"); v != "" {
		cfg.Alpaca.APISecret = v
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Storage.DataDir == "" {
		cfg.Storage.DataDir = "data"
	}
	if cfg.Storage.SQLitePath == "" {
		cfg.Storage.SQLitePath = cfg.Storage.DataDir + "/backtester.db"
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "127.0.0.1"
	}
	if cfg.Server.GRPCPort == 0 {
		cfg.Server.GRPCPort = 9090
	}
	if cfg.Server.MetricsPort == 0 {
		cfg.Server.MetricsPort = 9091
	}
	if cfg.Alpaca.Feed == "" {
		cfg.Alpaca.Feed = "iex"
	}
	if cfg.Alpaca.RateLimitPerMin == 0 {
		cfg.Alpaca.RateLimitPerMin = 200
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
	if cfg.Data.Source == "" {
		cfg.Data.Source = "alpaca"
	}
	if cfg.Data.CacheTTL == 0 {
		cfg.Data.CacheTTL = time.Hour
	}
	if cfg.Backtest.Symbol == "" {
		cfg.Backtest.Symbol = "AAPL"
	}
	if cfg.Backtest.Strategy == "" {
		cfg.Backtest.Strategy = "Buy and Hold"
	}
	if cfg.Backtest.InitialCapital == 0 {
		cfg.Backtest.InitialCapital = 100000
	}
	if cfg.Backtest.ShortWindow == 0 {
		cfg.Backtest.ShortWindow = 20
	}
	if cfg.Backtest.LongWindow == 0 {
		cfg.Backtest.LongWindow = 50
	}
}

// Validate reports the first invalid setting as a configuration error.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Data.Source) {
	case "alpaca":
	case "csv":
		if c.Data.CSVPath == "" {
			return fmt.Errorf("%w: data.csv_path is required for the csv source", domain.ErrConfiguration)
		}
	default:
		return fmt.Errorf("%w: unknown data source %q (want alpaca or csv)", domain.ErrConfiguration, c.Data.Source)
	}

	b := c.Backtest
	if b.InitialCapital <= 0 {
		return fmt.Errorf("%w: initial_capital must be positive, got %v", domain.ErrConfiguration, b.InitialCapital)
	}
	if b.StopLossPct < 0 || b.StopLossPct > 100 {
		return fmt.Errorf("%w: stop_loss_pct must be within [0, 100], got %v", domain.ErrConfiguration, b.StopLossPct)
	}
	if b.ShortWindow <= 0 || b.LongWindow <= 0 {
		return fmt.Errorf("%w: moving-average windows must be positive, got %d/%d",
			domain.ErrConfiguration, b.ShortWindow, b.LongWindow)
	}
	if _, _, err := c.Range(time.Now()); err != nil {
		return err
	}
	return nil
}

// Range returns the configured date range. A missing end_date means today
// and a missing start_date means one year before the end.
func (c *Config) Range(now time.Time) (time.Time, time.Time, error) {
	start, err := util.ParseOptionalDate(c.Backtest.StartDate)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end, err := util.ParseOptionalDate(c.Backtest.EndDate)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return util.ResolveRange(start, end, now)
}

// HasTradingCredentials reports whether Alpaca API keys are configured.
func (c *Config) HasTradingCredentials() bool {
	return c.Alpaca.APIKey != "" && c.Alpaca.APISecret != ""
}
