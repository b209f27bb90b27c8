// Package config loads the stocker configuration from TOML files, a .env file
// and STOCKER_* environment variables, in that order of precedence.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/etnz/stocker"
	"github.com/joho/godotenv"
	toml "github.com/pelletier/go-toml/v2"
	"github.com/shopspring/decimal"
)

// Config holds all configuration for stocker
type Config struct {
	BaseCurrency string         `toml:"base_currency"`
	Timezone     string         `toml:"timezone"` // IANA name of the calendar of daily snapshots
	AllowShort   bool           `toml:"allow_short"`
	Storage      StorageConfig  `toml:"storage"`
	Snapshot     SnapshotConfig `toml:"snapshot"`
	Prices       PriceConfig    `toml:"prices"`
	Rates        RateConfig     `toml:"rates"`
	Logging      LoggingConfig  `toml:"logging"`
}

// StorageConfig holds the SQLite database location.
type StorageConfig struct {
	Path string `toml:"path"`
}

// SnapshotConfig holds the daily snapshot job configuration.
type SnapshotConfig struct {
	Schedule string `toml:"schedule"` // cron expression with seconds
	Workers  int    `toml:"workers"`  // users captured in parallel
	Refresh  bool   `toml:"refresh"`  // overwrite today's snapshot on each run
}

// PriceConfig holds the quote provider configuration.
type PriceConfig struct {
	Provider  string            `toml:"provider"` // yahoo, eodhd or static
	BaseURL   string            `toml:"base_url"`
	APIKey    string            `toml:"api_key"`
	RateLimit int               `toml:"rate_limit"` // requests per second
	Timeout   string            `toml:"timeout"`
	Workers   int               `toml:"workers"`
	Static    map[string]string `toml:"static"` // symbol -> "150.25 USD"
}

// GetTimeout parses and returns the per symbol timeout
func (c *PriceConfig) GetTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 10 * time.Second
	}
	return d
}

// StaticPrices parses the static price table.
func (c *PriceConfig) StaticPrices() (stocker.StaticPrices, error) {
	prices := make(stocker.StaticPrices, len(c.Static))
	for symbol, v := range c.Static {
		amount, currency, _ := strings.Cut(strings.TrimSpace(v), " ")
		price, err := stocker.ParseMoney(amount, strings.TrimSpace(currency))
		if err != nil {
			return nil, fmt.Errorf("static price of %s: %w", symbol, err)
		}
		prices[symbol] = price
	}
	return prices, nil
}

// RateConfig holds the exchange rate provider configuration.
type RateConfig struct {
	Provider string            `toml:"provider"` // yahoo or static
	Timeout  string            `toml:"timeout"`
	Cache    bool              `toml:"cache"`  // cache rates on disk for the day
	Static   map[string]string `toml:"static"` // pair ("USDHKD") -> rate
}

// GetTimeout parses and returns the rate request timeout
func (c *RateConfig) GetTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 10 * time.Second
	}
	return d
}

// StaticRates parses the static rate table.
func (c *RateConfig) StaticRates() (stocker.StaticRates, error) {
	rates := make(stocker.StaticRates, len(c.Static))
	for pair, v := range c.Static {
		pair = strings.ToUpper(pair)
		if len(pair) != 6 {
			return nil, fmt.Errorf("%w: rate pair %q", stocker.ErrInvalidInput, pair)
		}
		rate, err := decimal.NewFromString(v)
		if err != nil || !rate.IsPositive() {
			return nil, fmt.Errorf("%w: rate %s = %q", stocker.ErrInvalidInput, pair, v)
		}
		rates[pair] = rate
	}
	return rates, nil
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `toml:"level"`
	Pretty bool   `toml:"pretty"`
}

// NewDefaultConfig returns a Config with sensible defaults
func NewDefaultConfig() *Config {
	return &Config{
		BaseCurrency: "USD",
		Timezone:     "UTC",
		AllowShort:   true,
		Storage:      StorageConfig{Path: "data/stocker.db"},
		Snapshot: SnapshotConfig{
			Schedule: "0 0 0 * * *",
			Workers:  4,
		},
		Prices: PriceConfig{
			Provider:  "yahoo",
			RateLimit: 5,
			Timeout:   "10s",
			Workers:   8,
		},
		Rates: RateConfig{
			Provider: "yahoo",
			Timeout:  "10s",
			Cache:    true,
		},
		Logging: LoggingConfig{Level: "info"},
	}
}

// Load loads configuration from files with environment overrides.
// Missing files are skipped; a .env file in the working directory is loaded
// into the environment first.
func Load(paths ...string) (*Config, error) {
	_ = godotenv.Load()

	config := NewDefaultConfig()
	for _, path := range paths {
		if path == "" {
			continue
		}
		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func applyEnvOverrides(config *Config) {
	if v := os.Getenv("STOCKER_BASE_CURRENCY"); v != "" {
		config.BaseCurrency = strings.ToUpper(v)
	}
	if v := os.Getenv("STOCKER_TIMEZONE"); v != "" {
		config.Timezone = v
	}
	if v := os.Getenv("STOCKER_ALLOW_SHORT"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			config.AllowShort = b
		}
	}
	if v := os.Getenv("STOCKER_DB_PATH"); v != "" {
		config.Storage.Path = v
	}
	if v := os.Getenv("STOCKER_SNAPSHOT_SCHEDULE"); v != "" {
		config.Snapshot.Schedule = v
	}
	if v := os.Getenv("STOCKER_PRICE_PROVIDER"); v != "" {
		config.Prices.Provider = v
	}
	if v := os.Getenv("STOCKER_EODHD_API_KEY"); v != "" {
		config.Prices.APIKey = v
	}
	if v := os.Getenv("STOCKER_LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}
	if v := os.Getenv("STOCKER_LOG_PRETTY"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			config.Logging.Pretty = b
		}
	}
}

// Validate checks the configuration values that have no usable fallback.
func (c *Config) Validate() error {
	if err := stocker.ValidateCurrency(c.BaseCurrency); err != nil {
		return fmt.Errorf("base_currency: %w", err)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if c.Storage.Path == "" {
		return fmt.Errorf("%w: storage.path is required", stocker.ErrInvalidInput)
	}
	switch c.Prices.Provider {
	case "yahoo", "static":
	case "eodhd":
		if c.Prices.APIKey == "" {
			return fmt.Errorf("%w: prices.api_key is required by eodhd", stocker.ErrInvalidInput)
		}
	default:
		return fmt.Errorf("%w: unknown price provider %q", stocker.ErrInvalidInput, c.Prices.Provider)
	}
	switch c.Rates.Provider {
	case "yahoo", "static":
	default:
		return fmt.Errorf("%w: unknown rate provider %q", stocker.ErrInvalidInput, c.Rates.Provider)
	}
	return nil
}

// Location returns the time zone of the snapshot calendar.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("%w: timezone %q: %v", stocker.ErrInvalidInput, c.Timezone, err)
	}
	return loc, nil
}
