package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies SOLAGENT_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known SOLAGENT_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject secrets at deploy time without touching the TOML
// file.
func applyEnvOverrides(cfg *Config) {
	// ── Solana ──
	setStr(&cfg.Solana.RPCURL, "SOLAGENT_SOLANA_RPC_URL")
	setStr(&cfg.Solana.QuoteAsset, "SOLAGENT_SOLANA_QUOTE_ASSET")

	// ── Database ──
	setStr(&cfg.Database.DSN, "SOLAGENT_DATABASE_DSN")
	setStr(&cfg.Database.DSN, "SOLAGENT_DATABASE_URL") // compatibility alias
	setStr(&cfg.Database.Host, "SOLAGENT_DATABASE_HOST")
	setInt(&cfg.Database.Port, "SOLAGENT_DATABASE_PORT")
	setStr(&cfg.Database.Database, "SOLAGENT_DATABASE_NAME")
	setStr(&cfg.Database.User, "SOLAGENT_DATABASE_USER")
	setStr(&cfg.Database.Password, "SOLAGENT_DATABASE_PASSWORD")
	setStr(&cfg.Database.SSLMode, "SOLAGENT_DATABASE_SSLMODE")
	setInt(&cfg.Database.PoolMaxConns, "SOLAGENT_DATABASE_POOL_MAX_CONNS")
	setInt(&cfg.Database.PoolMinConns, "SOLAGENT_DATABASE_POOL_MIN_CONNS")
	setBool(&cfg.Database.RunMigrations, "SOLAGENT_DATABASE_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "SOLAGENT_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "SOLAGENT_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "SOLAGENT_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "SOLAGENT_REDIS_POOL_SIZE")
	setBool(&cfg.Redis.TLSEnabled, "SOLAGENT_REDIS_TLS_ENABLED")
	setStr(&cfg.Redis.QueueStream, "SOLAGENT_REDIS_QUEUE_STREAM")
	setStr(&cfg.Redis.QueueGroup, "SOLAGENT_REDIS_QUEUE_GROUP")
	setStr(&cfg.Redis.QueueConsumer, "SOLAGENT_REDIS_QUEUE_CONSUMER")

	// ── Sonar ──
	setStr(&cfg.Sonar.BaseURL, "SOLAGENT_SONAR_BASE_URL")
	setStr(&cfg.Sonar.APIKey, "SOLAGENT_SONAR_API_KEY")

	// ── Backend ──
	setStr(&cfg.Backend.BaseURL, "SOLAGENT_BACKEND_BASE_URL")
	setStr(&cfg.Backend.Token, "SOLAGENT_BACKEND_TOKEN")
	setInt(&cfg.Backend.Retries, "SOLAGENT_BACKEND_RETRIES")
	setDuration(&cfg.Backend.RetryDelay, "SOLAGENT_BACKEND_RETRY_DELAY")

	// ── Market ──
	setStr(&cfg.Market.BaseURL, "SOLAGENT_MARKET_BASE_URL")
	setStr(&cfg.Market.APIKey, "SOLAGENT_MARKET_API_KEY")
	setDuration(&cfg.Market.CacheTTL, "SOLAGENT_MARKET_CACHE_TTL")

	// ── Liquidator ──
	setDuration(&cfg.Liquidator.ScanInterval, "SOLAGENT_LIQUIDATOR_SCAN_INTERVAL")
	setBool(&cfg.Liquidator.Simulation, "SOLAGENT_LIQUIDATOR_SIMULATION")

	// ── Archive ──
	setBool(&cfg.Archive.Enabled, "SOLAGENT_ARCHIVE_ENABLED")
	setStr(&cfg.Archive.Endpoint, "SOLAGENT_ARCHIVE_ENDPOINT")
	setStr(&cfg.Archive.Region, "SOLAGENT_ARCHIVE_REGION")
	setStr(&cfg.Archive.Bucket, "SOLAGENT_ARCHIVE_BUCKET")
	setStr(&cfg.Archive.AccessKey, "SOLAGENT_ARCHIVE_ACCESS_KEY")
	setStr(&cfg.Archive.SecretKey, "SOLAGENT_ARCHIVE_SECRET_KEY")
	setBool(&cfg.Archive.UseSSL, "SOLAGENT_ARCHIVE_USE_SSL")
	setBool(&cfg.Archive.ForcePathStyle, "SOLAGENT_ARCHIVE_FORCE_PATH_STYLE")
	setDuration(&cfg.Archive.Interval, "SOLAGENT_ARCHIVE_INTERVAL")
	setInt(&cfg.Archive.RetentionDays, "SOLAGENT_ARCHIVE_RETENTION_DAYS")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "SOLAGENT_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "SOLAGENT_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "SOLAGENT_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "SOLAGENT_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "SOLAGENT_MODE")
	setStr(&cfg.LogLevel, "SOLAGENT_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
