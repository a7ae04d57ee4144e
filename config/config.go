package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration. Values come from defaults,
// an optional backtest.yaml, and environment variables, in rising priority.
type Config struct {
	// HTTP
	ListenAddr     string `mapstructure:"listen_addr"`
	LogLevel       string `mapstructure:"log_level"`
	MetricsEnabled bool   `mapstructure:"metrics_enabled"`

	// Pipeline
	RSIWindow    int           `mapstructure:"rsi_window"`
	MaxYears     int           `mapstructure:"max_years"`
	FetchTimeout time.Duration `mapstructure:"fetch_timeout"`

	// Market data
	YahooBaseURL string `mapstructure:"yahoo_base_url"`

	// Redis bar cache (empty address disables it)
	RedisAddr     string        `mapstructure:"redis_addr"`
	RedisPassword string        `mapstructure:"redis_password"`
	RedisDB       int           `mapstructure:"redis_db"`
	CacheTTL      time.Duration `mapstructure:"cache_ttl"`

	// SQLite bar archive (empty path disables it)
	SQLitePath string `mapstructure:"sqlite_path"`
}

// Load reads configuration with sensible defaults.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("backtest")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("listen_addr", ":8080")
	v.SetDefault("log_level", "info")
	v.SetDefault("metrics_enabled", true)

	v.SetDefault("rsi_window", 14)
	v.SetDefault("max_years", 30)
	v.SetDefault("fetch_timeout", "15s")

	v.SetDefault("yahoo_base_url", "https://query1.finance.yahoo.com")

	v.SetDefault("redis_addr", "")
	v.SetDefault("redis_password", "")
	v.SetDefault("redis_db", 0)
	v.SetDefault("cache_ttl", "6h")

	v.SetDefault("sqlite_path", "")
}

// Validate rejects settings the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.RSIWindow < 1 {
		return fmt.Errorf("[config] RSI_WINDOW must be positive, got %d", c.RSIWindow)
	}
	if c.MaxYears < 1 {
		return fmt.Errorf("[config] MAX_YEARS must be positive, got %d", c.MaxYears)
	}
	if c.FetchTimeout <= 0 {
		return fmt.Errorf("[config] FETCH_TIMEOUT must be positive, got %s", c.FetchTimeout)
	}
	if c.RedisAddr != "" && c.CacheTTL <= 0 {
		return fmt.Errorf("[config] CACHE_TTL must be positive when REDIS_ADDR is set, got %s", c.CacheTTL)
	}
	if c.YahooBaseURL == "" {
		return errors.New("[config] YAHOO_BASE_URL must not be empty")
	}
	return nil
}

// CacheEnabled reports whether a Redis bar cache is configured.
func (c *Config) CacheEnabled() bool { return c.RedisAddr != "" }

// ArchiveEnabled reports whether a SQLite bar archive is configured.
func (c *Config) ArchiveEnabled() bool { return c.SQLitePath != "" }
