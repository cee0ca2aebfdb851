// Package config defines the top-level configuration for the liquidation
// coordinator and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ilertha/Solana-AI-agent-tool/internal/domain"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by SOLAGENT_* environment
// variables.
type Config struct {
	Solana     SolanaConfig     `toml:"solana"`
	Database   DatabaseConfig   `toml:"database"`
	Redis      RedisConfig      `toml:"redis"`
	Sonar      SonarConfig      `toml:"sonar"`
	Backend    BackendConfig    `toml:"backend"`
	Market     MarketConfig     `toml:"market"`
	Liquidator LiquidatorConfig `toml:"liquidator"`
	Archive    ArchiveConfig    `toml:"archive"`
	Notify     NotifyConfig     `toml:"notify"`
	Mode       string           `toml:"mode"`
	LogLevel   string           `toml:"log_level"`
}

// SolanaConfig holds RPC endpoint and chain parameters.
type SolanaConfig struct {
	RPCURL string `toml:"rpc_url"`
	// QuoteAsset is the mint of the native quote token, wrapped SOL by
	// default.
	QuoteAsset string `toml:"quote_asset"`
}

// DatabaseConfig holds PostgreSQL connection parameters.
type DatabaseConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters and the trade-queue stream
// coordinates.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	TLSEnabled bool   `toml:"tls_enabled"`

	QueueStream   string `toml:"queue_stream"`
	QueueGroup    string `toml:"queue_group"`
	QueueConsumer string `toml:"queue_consumer"`
}

// SonarConfig holds the remote execution backend endpoint and credentials.
type SonarConfig struct {
	BaseURL string `toml:"base_url"`
	APIKey  string `toml:"api_key"`
}

// BackendConfig holds the analytics backend endpoint and the trade-report
// retry policy.
type BackendConfig struct {
	BaseURL    string   `toml:"base_url"`
	Token      string   `toml:"token"`
	Retries    int      `toml:"retries"`
	RetryDelay duration `toml:"retry_delay"`
}

// MarketConfig holds market-data API parameters.
type MarketConfig struct {
	BaseURL  string   `toml:"base_url"`
	APIKey   string   `toml:"api_key"`
	CacheTTL duration `toml:"cache_ttl"`
}

// LiquidatorConfig holds coordinator tunables.
type LiquidatorConfig struct {
	ScanInterval duration `toml:"scan_interval"`
	Simulation   bool     `toml:"simulation"`
}

// ArchiveConfig holds cold-storage parameters for aged trade records.
type ArchiveConfig struct {
	Enabled        bool     `toml:"enabled"`
	Endpoint       string   `toml:"endpoint"`
	Region         string   `toml:"region"`
	Bucket         string   `toml:"bucket"`
	AccessKey      string   `toml:"access_key"`
	SecretKey      string   `toml:"secret_key"`
	UseSSL         bool     `toml:"use_ssl"`
	ForcePathStyle bool     `toml:"force_path_style"`
	Interval       duration `toml:"interval"`
	RetentionDays  int      `toml:"retention_days"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// duration wraps time.Duration so the TOML decoder accepts strings like "5m"
// or "30s".
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values. These
// match config.example.toml.
func Defaults() Config {
	return Config{
		Solana: SolanaConfig{
			RPCURL:     "https://api.mainnet-beta.solana.com",
			QuoteAsset: domain.WrappedSOL,
		},
		Database: DatabaseConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "postgres",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:          "localhost:6379",
			DB:            0,
			PoolSize:      20,
			QueueStream:   "trade_sell_queue",
			QueueGroup:    "liquidators",
			QueueConsumer: "liquidator-1",
		},
		Backend: BackendConfig{
			Retries:    3,
			RetryDelay: duration{2 * time.Second},
		},
		Market: MarketConfig{
			BaseURL:  "https://public-api.birdeye.so",
			CacheTTL: duration{30 * time.Second},
		},
		Liquidator: LiquidatorConfig{
			ScanInterval: duration{time.Minute},
			Simulation:   true,
		},
		Archive: ArchiveConfig{
			Enabled:        false,
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "solagent-archive",
			ForcePathStyle: true,
			Interval:       duration{24 * time.Hour},
			RetentionDays:  90,
		},
		Notify: NotifyConfig{
			Events: []string{"sell_settled", "rapid_dump", "sync_failed", "error"},
		},
		Mode:     "full",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"liquidate": true,
	"scan":      true,
	"archive":   true,
	"full":      true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns
// a combined error describing every problem found. A validation failure is
// fatal; the process must not start on a bad configuration.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: liquidate, scan, archive, full)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Solana
	if c.Solana.RPCURL == "" {
		errs = append(errs, "solana: rpc_url must not be empty")
	}
	if err := domain.ValidateTokenAddress(c.Solana.QuoteAsset); err != nil {
		errs = append(errs, fmt.Sprintf("solana: quote_asset %q is not a valid mint address", c.Solana.QuoteAsset))
	}

	// Database
	if strings.TrimSpace(c.Database.DSN) == "" {
		if c.Database.Host == "" {
			errs = append(errs, "database: host must not be empty (or set database.dsn)")
		}
		if c.Database.Port <= 0 || c.Database.Port > 65535 {
			errs = append(errs, fmt.Sprintf("database: port must be 1-65535, got %d", c.Database.Port))
		}
		if c.Database.Database == "" {
			errs = append(errs, "database: database must not be empty")
		}
	}
	if c.Database.PoolMaxConns < 1 {
		errs = append(errs, "database: pool_max_conns must be >= 1")
	}
	if c.Database.PoolMinConns < 0 {
		errs = append(errs, "database: pool_min_conns must be >= 0")
	}
	if c.Database.PoolMinConns > c.Database.PoolMaxConns {
		errs = append(errs, "database: pool_min_conns must not exceed pool_max_conns")
	}

	// Redis
	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}
	if c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}
	if c.Redis.QueueStream == "" {
		errs = append(errs, "redis: queue_stream must not be empty")
	}
	if c.Redis.QueueGroup == "" {
		errs = append(errs, "redis: queue_group must not be empty")
	}
	if c.Redis.QueueConsumer == "" {
		errs = append(errs, "redis: queue_consumer must not be empty")
	}

	// Sonar is required whenever the scan path runs.
	if c.Mode == "scan" || c.Mode == "full" || c.Mode == "liquidate" {
		if c.Sonar.BaseURL == "" {
			errs = append(errs, "sonar: base_url must not be empty for mode "+c.Mode)
		}
		if c.Sonar.APIKey == "" {
			errs = append(errs, "sonar: api_key must not be empty for mode "+c.Mode)
		}
	}

	// Backend
	if c.Backend.BaseURL == "" {
		errs = append(errs, "backend: base_url must not be empty")
	}
	if c.Backend.Retries < 1 {
		errs = append(errs, "backend: retries must be >= 1")
	}
	if c.Backend.RetryDelay.Duration < 0 {
		errs = append(errs, "backend: retry_delay must not be negative")
	}

	// Market
	if c.Market.BaseURL == "" {
		errs = append(errs, "market: base_url must not be empty")
	}
	if c.Market.APIKey == "" {
		errs = append(errs, "market: api_key must not be empty")
	}

	// Liquidator
	if c.Liquidator.ScanInterval.Duration <= 0 {
		errs = append(errs, "liquidator: scan_interval must be > 0")
	}

	// Archive
	if c.Archive.Enabled {
		if c.Archive.Bucket == "" {
			errs = append(errs, "archive: bucket must not be empty when enabled")
		}
		if c.Archive.Region == "" {
			errs = append(errs, "archive: region must not be empty when enabled")
		}
		if c.Archive.RetentionDays < 1 {
			errs = append(errs, "archive: retention_days must be >= 1")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
