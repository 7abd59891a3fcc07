package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Server struct {
	Port               string `json:"port" yaml:"port"`
	RequestTimeoutSec  int    `json:"request_timeout_sec" yaml:"request_timeout_sec"`
	ShutdownTimeoutSec int    `json:"shutdown_timeout_sec" yaml:"shutdown_timeout_sec"`
}

type Log struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"`
}

type Redis struct {
	Addr     string `json:"addr" yaml:"addr"`
	Password string `json:"password" yaml:"password"`
	DB       int    `json:"db" yaml:"db"`
	Prefix   string `json:"prefix" yaml:"prefix"`
	TTLSec   int    `json:"ttl_sec" yaml:"ttl_sec"`
}

// Storage selects the cache backend: memory, sqlite, postgres or redis.
type Storage struct {
	Driver string `json:"driver" yaml:"driver"`
	DSN    string `json:"dsn" yaml:"dsn"`
	Redis  Redis  `json:"redis" yaml:"redis"`
}

type Sync struct {
	RetryIntervalSec     int `json:"retry_interval_sec" yaml:"retry_interval_sec"`
	BufferIntervalSec    int `json:"buffer_interval_sec" yaml:"buffer_interval_sec"`
	RatesExpirationSec   int `json:"rates_expiration_sec" yaml:"rates_expiration_sec"`
	MarketsExpirationSec int `json:"markets_expiration_sec" yaml:"markets_expiration_sec"`
	SyncTimeoutSec       int `json:"sync_timeout_sec" yaml:"sync_timeout_sec"`
	FailureRetentionSec  int `json:"failure_retention_sec" yaml:"failure_retention_sec"`
	ObserverBuffer       int `json:"observer_buffer" yaml:"observer_buffer"`
	MarketsLimit         int `json:"markets_limit" yaml:"markets_limit"`
}

type CoinGecko struct {
	Enabled               bool   `json:"enabled" yaml:"enabled"`
	APIKey                string `json:"api_key" yaml:"api_key"`
	BaseURL               string `json:"base_url" yaml:"base_url"`
	MaxRequestsPerMinute  int    `json:"max_requests_per_minute" yaml:"max_requests_per_minute"`
	MinRequestIntervalSec int    `json:"min_request_interval_sec" yaml:"min_request_interval_sec"`
	Burst                 int    `json:"burst" yaml:"burst"`
	MaxRetries            int    `json:"max_retries" yaml:"max_retries"`
	CacheTTLSec           int    `json:"cache_ttl_sec" yaml:"cache_ttl_sec"`
	CacheMaxItems         int    `json:"cache_max_items" yaml:"cache_max_items"`
}

type CryptoCompare struct {
	Enabled               bool              `json:"enabled" yaml:"enabled"`
	APIKey                string            `json:"api_key" yaml:"api_key"`
	BaseURL               string            `json:"base_url" yaml:"base_url"`
	Symbols               map[string]string `json:"symbols" yaml:"symbols"`
	MaxRequestsPerMinute  int               `json:"max_requests_per_minute" yaml:"max_requests_per_minute"`
	MinRequestIntervalSec int               `json:"min_request_interval_sec" yaml:"min_request_interval_sec"`
	Burst                 int               `json:"burst" yaml:"burst"`
	MaxRetries            int               `json:"max_retries" yaml:"max_retries"`
	CacheTTLSec           int               `json:"cache_ttl_sec" yaml:"cache_ttl_sec"`
	CacheMaxItems         int               `json:"cache_max_items" yaml:"cache_max_items"`
}

type Reachability struct {
	Enabled     bool   `json:"enabled" yaml:"enabled"`
	URL         string `json:"url" yaml:"url"`
	IntervalSec int    `json:"interval_sec" yaml:"interval_sec"`
	TimeoutSec  int    `json:"timeout_sec" yaml:"timeout_sec"`
}

type Janitor struct {
	Enabled          bool `json:"enabled" yaml:"enabled"`
	IntervalMin      int  `json:"interval_min" yaml:"interval_min"`
	ChartMaxAgeHours int  `json:"chart_max_age_hours" yaml:"chart_max_age_hours"`
}

type Config struct {
	Server        Server        `json:"server" yaml:"server"`
	Log           Log           `json:"log" yaml:"log"`
	Storage       Storage       `json:"storage" yaml:"storage"`
	Sync          Sync          `json:"sync" yaml:"sync"`
	CoinGecko     CoinGecko     `json:"coingecko" yaml:"coingecko"`
	CryptoCompare CryptoCompare `json:"cryptocompare" yaml:"cryptocompare"`
	Reachability  Reachability  `json:"reachability" yaml:"reachability"`
	Janitor       Janitor       `json:"janitor" yaml:"janitor"`
}

func Default() Config {
	return Config{
		Server: Server{Port: "8080", RequestTimeoutSec: 10, ShutdownTimeoutSec: 5},
		Log:    Log{Level: "info", Format: "text"},
		Storage: Storage{
			Driver: "memory",
			Redis:  Redis{Addr: "localhost:6379", Prefix: "marketkit"},
		},
		Sync: Sync{
			RetryIntervalSec:     30,
			BufferIntervalSec:    5,
			RatesExpirationSec:   60,
			MarketsExpirationSec: 300,
			SyncTimeoutSec:       30,
			FailureRetentionSec:  600,
			ObserverBuffer:       16,
			MarketsLimit:         100,
		},
		CoinGecko: CoinGecko{
			Enabled:              true,
			MaxRequestsPerMinute: 30,
			Burst:                2,
			MaxRetries:           2,
			CacheTTLSec:          15,
			CacheMaxItems:        5000,
		},
		CryptoCompare: CryptoCompare{
			Enabled: true,
			Symbols: map[string]string{
				"bitcoin":     "BTC",
				"ethereum":    "ETH",
				"tether":      "USDT",
				"binancecoin": "BNB",
				"solana":      "SOL",
				"ripple":      "XRP",
				"cardano":     "ADA",
				"dogecoin":    "DOGE",
				"tron":        "TRX",
				"litecoin":    "LTC",
			},
			MaxRequestsPerMinute: 50,
			Burst:                2,
			MaxRetries:           2,
			CacheTTLSec:          15,
			CacheMaxItems:        5000,
		},
		Reachability: Reachability{
			Enabled:     true,
			URL:         "https://api.coingecko.com/api/v3/ping",
			IntervalSec: 30,
			TimeoutSec:  5,
		},
		Janitor: Janitor{Enabled: true, IntervalMin: 60, ChartMaxAgeHours: 24 * 7},
	}
}

// Load reads config from path. JSON is assumed unless the extension is
// .yaml or .yml. If path is empty, config.json then config.yaml in the
// working directory are tried; a missing file yields defaults. Environment
// variables override select fields for secrecy.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		for _, candidate := range []string{"config.json", "config.yaml"} {
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				break
			}
		}
	}
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err == nil {
			if err := decode(path, b, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config: %w", err)
			}
		}
	}
	applyEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func decode(path string, b []byte, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Unmarshal(b, cfg)
	default:
		return json.Unmarshal(b, cfg)
	}
}

// Validate rejects settings the engine cannot run with.
func (c Config) Validate() error {
	switch c.Storage.Driver {
	case "memory", "redis":
	case "sqlite", "postgres":
		if c.Storage.DSN == "" {
			return fmt.Errorf("storage.dsn is required for driver %q", c.Storage.Driver)
		}
	default:
		return fmt.Errorf("unknown storage.driver %q", c.Storage.Driver)
	}
	if c.Sync.RetryIntervalSec <= 0 {
		return errors.New("sync.retry_interval_sec must be positive")
	}
	if c.Sync.RatesExpirationSec <= c.Sync.BufferIntervalSec {
		return errors.New("sync.rates_expiration_sec must exceed sync.buffer_interval_sec")
	}
	if !c.CoinGecko.Enabled && !c.CryptoCompare.Enabled {
		return errors.New("at least one provider must be enabled")
	}
	return nil
}

func seconds(n int) time.Duration { return time.Duration(n) * time.Second }

func (s Sync) RetryInterval() time.Duration     { return seconds(s.RetryIntervalSec) }
func (s Sync) BufferInterval() time.Duration    { return seconds(s.BufferIntervalSec) }
func (s Sync) RatesExpiration() time.Duration   { return seconds(s.RatesExpirationSec) }
func (s Sync) MarketsExpiration() time.Duration { return seconds(s.MarketsExpirationSec) }
func (s Sync) SyncTimeout() time.Duration       { return seconds(s.SyncTimeoutSec) }
func (s Sync) FailureRetention() time.Duration  { return seconds(s.FailureRetentionSec) }

func applyEnv(cfg *Config) {
	envString("PORT", &cfg.Server.Port)
	envInt("REQUEST_TIMEOUT_SEC", &cfg.Server.RequestTimeoutSec, 1)
	envString("LOG_LEVEL", &cfg.Log.Level)
	envString("LOG_FORMAT", &cfg.Log.Format)

	envString("STORAGE_DRIVER", &cfg.Storage.Driver)
	envString("STORAGE_DSN", &cfg.Storage.DSN)
	envString("REDIS_ADDR", &cfg.Storage.Redis.Addr)
	envString("REDIS_PASSWORD", &cfg.Storage.Redis.Password)
	envInt("REDIS_DB", &cfg.Storage.Redis.DB, 0)

	envInt("SYNC_RETRY_INTERVAL_SEC", &cfg.Sync.RetryIntervalSec, 1)
	envInt("SYNC_BUFFER_INTERVAL_SEC", &cfg.Sync.BufferIntervalSec, 0)
	envInt("SYNC_RATES_EXPIRATION_SEC", &cfg.Sync.RatesExpirationSec, 1)
	envInt("SYNC_MARKETS_EXPIRATION_SEC", &cfg.Sync.MarketsExpirationSec, 1)
	envInt("MARKETS_LIMIT", &cfg.Sync.MarketsLimit, 1)

	envBool("COINGECKO_ENABLED", &cfg.CoinGecko.Enabled)
	envString("COINGECKO_API_KEY", &cfg.CoinGecko.APIKey)
	envString("COINGECKO_BASE_URL", &cfg.CoinGecko.BaseURL)
	envInt("COINGECKO_MAX_RPM", &cfg.CoinGecko.MaxRequestsPerMinute, 0)

	envBool("CRYPTOCOMPARE_ENABLED", &cfg.CryptoCompare.Enabled)
	envString("CRYPTOCOMPARE_API_KEY", &cfg.CryptoCompare.APIKey)
	envString("CRYPTOCOMPARE_BASE_URL", &cfg.CryptoCompare.BaseURL)
	envInt("CRYPTOCOMPARE_MAX_RPM", &cfg.CryptoCompare.MaxRequestsPerMinute, 0)

	envBool("REACHABILITY_ENABLED", &cfg.Reachability.Enabled)
	envString("REACHABILITY_URL", &cfg.Reachability.URL)
	envBool("JANITOR_ENABLED", &cfg.Janitor.Enabled)
}

func envString(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// envInt sets dst when the variable parses to an int of at least floor.
func envInt(key string, dst *int, floor int) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	x, err := strconv.Atoi(strings.TrimSpace(v))
	if err == nil && x >= floor {
		*dst = x
	}
}

func envBool(key string, dst *bool) {
	switch strings.ToLower(os.Getenv(key)) {
	case "1", "true", "yes", "y":
		*dst = true
	case "0", "false", "no", "n":
		*dst = false
	}
}
