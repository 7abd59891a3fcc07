package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	t.Parallel()

	cfg := Default()
	require.NoError(t, cfg.Validate())
	require.Equal(t, 30*time.Second, cfg.Sync.RetryInterval())
	require.Equal(t, time.Minute, cfg.Sync.RatesExpiration())
	require.Equal(t, "BTC", cfg.CryptoCompare.Symbols["bitcoin"])
}

func TestLoad_JSONFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"server": {"port": "9090"},
		"sync": {"retry_interval_sec": 10, "rates_expiration_sec": 120, "buffer_interval_sec": 5},
		"cryptocompare": {"symbols": {"bitcoin": "XBT", "monero": "XMR"}}
	}`), 0o600))

	cfg, err := Load(path)

	require.NoError(t, err)
	require.Equal(t, "9090", cfg.Server.Port)
	require.Equal(t, 10, cfg.Sync.RetryIntervalSec)
	require.Equal(t, 120, cfg.Sync.RatesExpirationSec)
	require.Equal(t, "XBT", cfg.CryptoCompare.Symbols["bitcoin"])
	require.Equal(t, "XMR", cfg.CryptoCompare.Symbols["monero"])
	require.Equal(t, "ETH", cfg.CryptoCompare.Symbols["ethereum"], "file symbols extend the defaults")
	require.Equal(t, "memory", cfg.Storage.Driver)
}

func TestLoad_YAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
log:
  level: debug
  format: json
storage:
  driver: sqlite
  dsn: "file:marketkit.db"
janitor:
  chart_max_age_hours: 48
`), 0o600))

	cfg, err := Load(path)

	require.NoError(t, err)
	require.Equal(t, "debug", cfg.Log.Level)
	require.Equal(t, "json", cfg.Log.Format)
	require.Equal(t, "sqlite", cfg.Storage.Driver)
	require.Equal(t, 48, cfg.Janitor.ChartMaxAgeHours)
	require.Equal(t, 60, cfg.Janitor.IntervalMin)
}

func TestLoad_MissingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.json"))

	require.NoError(t, err)
	require.Equal(t, Default().Server, cfg.Server)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("PORT", "7070")
	t.Setenv("STORAGE_DRIVER", "redis")
	t.Setenv("REDIS_ADDR", "cache:6379")
	t.Setenv("SYNC_RETRY_INTERVAL_SEC", "15")
	t.Setenv("SYNC_BUFFER_INTERVAL_SEC", "not-a-number")
	t.Setenv("COINGECKO_API_KEY", "cg-key")
	t.Setenv("CRYPTOCOMPARE_ENABLED", "false")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.json"))

	require.NoError(t, err)
	require.Equal(t, "7070", cfg.Server.Port)
	require.Equal(t, "redis", cfg.Storage.Driver)
	require.Equal(t, "cache:6379", cfg.Storage.Redis.Addr)
	require.Equal(t, 15, cfg.Sync.RetryIntervalSec)
	require.Equal(t, 5, cfg.Sync.BufferIntervalSec)
	require.Equal(t, "cg-key", cfg.CoinGecko.APIKey)
	require.False(t, cfg.CryptoCompare.Enabled)
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown driver", func(c *Config) { c.Storage.Driver = "oracle" }},
		{"sql without dsn", func(c *Config) { c.Storage.Driver = "postgres" }},
		{"zero retry", func(c *Config) { c.Sync.RetryIntervalSec = 0 }},
		{"expiration inside buffer", func(c *Config) { c.Sync.RatesExpirationSec = c.Sync.BufferIntervalSec }},
		{"no providers", func(c *Config) {
			c.CoinGecko.Enabled = false
			c.CryptoCompare.Enabled = false
		}},
	}
	for _, tt := range tests {
		cfg := Default()
		tt.mutate(&cfg)
		require.Errorf(t, cfg.Validate(), "case %s", tt.name)
	}
}
