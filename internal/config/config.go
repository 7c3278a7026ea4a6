package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/newthinker/tradeboard/internal/core"
	"github.com/newthinker/tradeboard/internal/filter"
	"github.com/spf13/viper"
)

// Environment variables consulted for the backend base URL when the config
// file leaves it empty, in order.
const (
	EnvBaseURL         = "TRADEBOARD_API_BASE"
	EnvBaseURLFallback = "API_BASE"
)

type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Backend     BackendConfig     `mapstructure:"backend"`
	Polling     PollingConfig     `mapstructure:"polling"`
	View        ViewConfig        `mapstructure:"view"`
	Sessions    SessionsConfig    `mapstructure:"sessions"`
	Preferences PreferencesConfig `mapstructure:"preferences"`
	Metrics     MetricsConfig     `mapstructure:"metrics"`
}

type ServerConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Mode         string `mapstructure:"mode"`
	APIKey       string `mapstructure:"api_key"`
	TemplatesDir string `mapstructure:"templates_dir"`
}

// BackendConfig describes the signals backend. An empty BaseURL disables fetching.
type BackendConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	Timeout        time.Duration `mapstructure:"timeout"`
	RecentLimit    int           `mapstructure:"recent_limit"`
	TableLimit     int           `mapstructure:"table_limit"`
	GeneratedLimit int           `mapstructure:"generated_limit"`
	SummaryGroupBy string        `mapstructure:"summary_group_by"`
}

type PollingConfig struct {
	SignalsInterval     time.Duration `mapstructure:"signals_interval"`
	AutoRefreshInterval time.Duration `mapstructure:"auto_refresh_interval"`
	Scheduler           string        `mapstructure:"scheduler"` // "ticker" or "cron"
}

type ViewConfig struct {
	PageSize      int      `mapstructure:"page_size"`
	DefaultSince  string   `mapstructure:"default_since"`
	DefaultRange  string   `mapstructure:"default_range"`
	DefaultTicker string   `mapstructure:"default_ticker"`
	AutoRefresh   bool     `mapstructure:"auto_refresh"`
	StockTickers  []string `mapstructure:"stock_tickers"`
	CryptoTickers []string `mapstructure:"crypto_tickers"`
}

// SessionsConfig bounds the number and lifetime of dashboard sessions.
type SessionsConfig struct {
	TTL           time.Duration `mapstructure:"ttl"`
	Max           int           `mapstructure:"max"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

type PreferencesConfig struct {
	Type string   `mapstructure:"type"` // "memory", "localfs" or "s3"
	Path string   `mapstructure:"path"` // For localfs
	S3   S3Config `mapstructure:"s3"`   // For S3
}

type S3Config struct {
	Bucket    string `mapstructure:"bucket"`
	Endpoint  string `mapstructure:"endpoint"`
	Region    string `mapstructure:"region"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Prefix    string `mapstructure:"prefix"`
}

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// LoadDotEnv loads variables from the given .env files (default ".env")
// without overriding the existing environment. Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("loading %s: %w", p, err)
		}
	}
	return nil
}

// Load reads configuration from file on top of Defaults
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v, Defaults())
	v.SetConfigFile(path)

	// Support environment variable overrides
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	// Expand environment variables in string values
	for _, key := range v.AllKeys() {
		val := v.GetString(key)
		if strings.HasPrefix(val, "${") && strings.HasSuffix(val, "}") {
			envKey := strings.TrimSuffix(strings.TrimPrefix(val, "${"), "}")
			v.Set(key, os.Getenv(envKey))
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	cfg.ResolveBaseURL()

	return &cfg, nil
}

// Defaults returns a config with sensible defaults
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
			Mode: "release",
		},
		Backend: BackendConfig{
			Timeout:        10 * time.Second,
			RecentLimit:    100,
			TableLimit:     500,
			GeneratedLimit: 20,
			SummaryGroupBy: "signal_type",
		},
		Polling: PollingConfig{
			SignalsInterval:     3 * time.Minute,
			AutoRefreshInterval: 60 * time.Second,
			Scheduler:           "ticker",
		},
		View: ViewConfig{
			PageSize:      filter.DefaultPageSize,
			DefaultSince:  string(filter.Window24h),
			DefaultRange:  string(filter.Window24h),
			DefaultTicker: "AAPL",
			AutoRefresh:   true,
			StockTickers:  []string{"AAPL", "MSFT", "TSLA", "AMZN", "GOOGL", "META", "NVDA", "^GSPC"},
			CryptoTickers: []string{"BTC-USD", "ETH-USD", "SOL-USD"},
		},
		Sessions: SessionsConfig{
			TTL:           30 * time.Minute,
			Max:           1000,
			SweepInterval: time.Minute,
		},
		Preferences: PreferencesConfig{
			Type: "memory",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}

// FromEnv returns Defaults with the base URL taken from the environment.
func FromEnv() *Config {
	cfg := Defaults()
	cfg.ResolveBaseURL()
	return cfg
}

// ResolveBaseURL fills an empty backend base URL from the environment.
func (c *Config) ResolveBaseURL() {
	if strings.TrimSpace(c.Backend.BaseURL) != "" {
		return
	}
	for _, key := range []string{EnvBaseURL, EnvBaseURLFallback} {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			c.Backend.BaseURL = v
			return
		}
	}
}

// Tickers returns the chart ticker choices, stocks first.
func (c *Config) Tickers() []string {
	out := make([]string, 0, len(c.View.StockTickers)+len(c.View.CryptoTickers))
	out = append(out, c.View.StockTickers...)
	return append(out, c.View.CryptoTickers...)
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	// Server validation
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("port must be between 1 and 65535, got %d", c.Server.Port))
	}

	if c.Backend.BaseURL != "" &&
		!strings.HasPrefix(c.Backend.BaseURL, "http://") && !strings.HasPrefix(c.Backend.BaseURL, "https://") {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("backend base_url must be an http(s) URL, got %q", c.Backend.BaseURL))
	}
	if c.Backend.TableLimit < 1 || c.Backend.RecentLimit < 1 || c.Backend.GeneratedLimit < 1 {
		return core.WrapError(core.ErrConfigInvalid, fmt.Errorf("backend limits must be positive"))
	}

	// Polling validation
	if c.Polling.SignalsInterval < time.Second || c.Polling.AutoRefreshInterval < time.Second {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("polling intervals must be at least 1s, got %s and %s",
				c.Polling.SignalsInterval, c.Polling.AutoRefreshInterval))
	}
	switch c.Polling.Scheduler {
	case "ticker", "cron":
	default:
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("polling scheduler must be ticker or cron, got %q", c.Polling.Scheduler))
	}

	// View validation
	if c.View.PageSize < 1 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("page_size must be positive, got %d", c.View.PageSize))
	}
	if _, err := filter.ParseWindow(c.View.DefaultSince, filter.TableWindows); err != nil {
		return core.WrapError(core.ErrConfigInvalid, err)
	}
	if _, err := filter.ParseWindow(c.View.DefaultRange, filter.RangeWindows); err != nil {
		return core.WrapError(core.ErrConfigInvalid, err)
	}
	if c.View.DefaultTicker == "" {
		return core.WrapError(core.ErrConfigMissing, fmt.Errorf("view default_ticker required"))
	}

	if c.Sessions.Max < 1 || c.Sessions.TTL <= 0 || c.Sessions.SweepInterval <= 0 {
		return core.WrapError(core.ErrConfigInvalid, fmt.Errorf("sessions ttl, max and sweep_interval must be positive"))
	}

	// Preferences backend - check required settings exist
	switch c.Preferences.Type {
	case "", "memory":
	case "localfs":
		if c.Preferences.Path == "" {
			return core.WrapError(core.ErrConfigMissing,
				fmt.Errorf("preferences path required when type is localfs"))
		}
	case "s3":
		if c.Preferences.S3.Bucket == "" {
			return core.WrapError(core.ErrConfigMissing,
				fmt.Errorf("preferences s3 bucket required when type is s3"))
		}
	default:
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("unknown preferences type %q", c.Preferences.Type))
	}

	return nil
}

// setDefaults registers every default with v so file values and
// environment overrides layer on top of them.
func setDefaults(v *viper.Viper, d *Config) {
	defaults := map[string]any{
		"server.host":                   d.Server.Host,
		"server.port":                   d.Server.Port,
		"server.mode":                   d.Server.Mode,
		"server.api_key":                d.Server.APIKey,
		"server.templates_dir":          d.Server.TemplatesDir,
		"backend.base_url":              d.Backend.BaseURL,
		"backend.timeout":               d.Backend.Timeout,
		"backend.recent_limit":          d.Backend.RecentLimit,
		"backend.table_limit":           d.Backend.TableLimit,
		"backend.generated_limit":       d.Backend.GeneratedLimit,
		"backend.summary_group_by":      d.Backend.SummaryGroupBy,
		"polling.signals_interval":      d.Polling.SignalsInterval,
		"polling.auto_refresh_interval": d.Polling.AutoRefreshInterval,
		"polling.scheduler":             d.Polling.Scheduler,
		"view.page_size":                d.View.PageSize,
		"view.default_since":            d.View.DefaultSince,
		"view.default_range":            d.View.DefaultRange,
		"view.default_ticker":           d.View.DefaultTicker,
		"view.auto_refresh":             d.View.AutoRefresh,
		"view.stock_tickers":            d.View.StockTickers,
		"view.crypto_tickers":           d.View.CryptoTickers,
		"sessions.ttl":                  d.Sessions.TTL,
		"sessions.max":                  d.Sessions.Max,
		"sessions.sweep_interval":       d.Sessions.SweepInterval,
		"preferences.type":              d.Preferences.Type,
		"preferences.path":              d.Preferences.Path,
		"metrics.enabled":               d.Metrics.Enabled,
		"metrics.path":                  d.Metrics.Path,
	}
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
}
