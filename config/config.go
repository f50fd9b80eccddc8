package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration.
type Config struct {
	// Binance API
	APIKey    string `envconfig:"BINANCE_API_KEY"`
	SecretKey string `envconfig:"BINANCE_API_SECRET"`
	IsTestnet bool   `envconfig:"IS_TESTNET" default:"true"`

	// Reconciliation
	PollInterval    time.Duration `envconfig:"PRICE_ORDER_CHECK_INTERVAL" default:"30s"`
	TradeBatchLimit int           `envconfig:"TRADE_BATCH_LIMIT" default:"100"`

	// Venue
	QuoteAsset string `envconfig:"QUOTE_ASSET" default:"USDT"`

	// Database
	DBPath string `envconfig:"DB_PATH" default:"./data/trading.db"`

	// Logging
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
}

// Load reads configuration from environment variables, with an optional .env
// file as the source (pure env vars are fine too).
func Load() (*Config, error) {
	// Load .env file, but don't fail if it doesn't exist
	_ = godotenv.Load()

	cfg := &Config{}
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment configuration: %w", err)
	}

	var errs []string

	if cfg.APIKey == "" {
		errs = append(errs, "BINANCE_API_KEY must be set")
	}
	if cfg.SecretKey == "" {
		errs = append(errs, "BINANCE_API_SECRET must be set")
	}
	if cfg.PollInterval <= 0 {
		errs = append(errs, "PRICE_ORDER_CHECK_INTERVAL must be positive")
	}
	if cfg.TradeBatchLimit <= 0 {
		errs = append(errs, "TRADE_BATCH_LIMIT must be positive")
	}
	if cfg.DBPath == "" {
		errs = append(errs, "DB_PATH must be set")
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}

	return cfg, nil
}
