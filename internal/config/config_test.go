package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// validConfig returns defaults patched to pass validation.
func validConfig() Config {
	cfg := Defaults()
	cfg.Sonar.BaseURL = "https://sonar.example.com"
	cfg.Sonar.APIKey = "k"
	cfg.Backend.BaseURL = "https://backend.example.com"
	cfg.Market.APIKey = "k"
	return cfg
}

func TestValidate_AcceptsValidConfig(t *testing.T) {
	cfg := validConfig()
	require.NoError(t, cfg.Validate())
}

func TestValidate_CollectsAllProblems(t *testing.T) {
	cfg := validConfig()
	cfg.Mode = "bogus"
	cfg.Solana.QuoteAsset = "not-base58!"
	cfg.Redis.QueueStream = ""
	cfg.Backend.Retries = 0

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
	assert.Contains(t, err.Error(), "quote_asset")
	assert.Contains(t, err.Error(), "queue_stream")
	assert.Contains(t, err.Error(), "retries")
}

func TestValidate_ArchiveOnlyCheckedWhenEnabled(t *testing.T) {
	cfg := validConfig()
	cfg.Archive.Enabled = false
	cfg.Archive.Bucket = ""
	require.NoError(t, cfg.Validate())

	cfg.Archive.Enabled = true
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "archive: bucket")
}

func TestLoad_MergesFileOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
mode = "scan"
log_level = "debug"

[liquidator]
scan_interval = "30s"
simulation = false

[redis]
queue_consumer = "liquidator-7"
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "scan", cfg.Mode)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 30*time.Second, cfg.Liquidator.ScanInterval.Duration)
	assert.False(t, cfg.Liquidator.Simulation)
	assert.Equal(t, "liquidator-7", cfg.Redis.QueueConsumer)
	// Untouched sections keep their defaults.
	assert.Equal(t, "trade_sell_queue", cfg.Redis.QueueStream)
	assert.Equal(t, 3, cfg.Backend.Retries)
}

func TestLoad_EnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("mode = \"full\"\n"), 0o600))

	t.Setenv("SOLAGENT_MODE", "liquidate")
	t.Setenv("SOLAGENT_BACKEND_TOKEN", "secret-token")
	t.Setenv("SOLAGENT_BACKEND_RETRY_DELAY", "500ms")
	t.Setenv("SOLAGENT_LIQUIDATOR_SIMULATION", "false")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "liquidate", cfg.Mode)
	assert.Equal(t, "secret-token", cfg.Backend.Token)
	assert.Equal(t, 500*time.Millisecond, cfg.Backend.RetryDelay.Duration)
	assert.False(t, cfg.Liquidator.Simulation)
}

func TestRedactedConfig_HidesSecrets(t *testing.T) {
	cfg := validConfig()
	cfg.Database.Password = "db-pass"
	cfg.Backend.Token = "tkn"
	cfg.Market.APIKey = "mk"
	cfg.Notify.TelegramToken = "tg"

	red := RedactedConfig(&cfg)

	assert.Equal(t, "***", red.Database.Password)
	assert.Equal(t, "***", red.Backend.Token)
	assert.Equal(t, "***", red.Market.APIKey)
	assert.Equal(t, "***", red.Notify.TelegramToken)
	// Original untouched.
	assert.Equal(t, "db-pass", cfg.Database.Password)
	// Non-secret fields survive.
	assert.Equal(t, cfg.Redis.Addr, red.Redis.Addr)
}
