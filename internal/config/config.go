package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/kelseyhightower/envconfig"
)

// Config is the top-level configuration loaded from defaults/file/env.
type Config struct {
	// StationID namespaces the local queue's persistence key and travels with
	// every redemption as part of the entry identity.
	StationID string `json:"stationId" envconfig:"STATION_ID"`
	// ServerURL is the base URL of the remote redemption service.
	ServerURL string `json:"serverUrl" envconfig:"SERVER_URL"`
	// DataDir holds the local Pebble store. Empty means DefaultDataDir().
	DataDir string `json:"dataDir" envconfig:"DATA_DIR"`
	// HTTPAddr is the reference server's listen address.
	HTTPAddr string `json:"httpAddr" envconfig:"HTTP_ADDR"`
	// RequestTimeoutMs bounds each remote redeem call. Expiry is treated as a
	// retryable transport error.
	RequestTimeoutMs int `json:"requestTimeoutMs" envconfig:"REQUEST_TIMEOUT_MS"`
	// ProbeIntervalMs is the connectivity probe period.
	ProbeIntervalMs int `json:"probeIntervalMs" envconfig:"PROBE_INTERVAL_MS"`
	// BackoffMs is the finite retry delay table in milliseconds; the last
	// value is reused once attempts exceed the table length.
	BackoffMs []int64 `json:"backoffMs" envconfig:"BACKOFF_MS"`
	// LogLevel is one of debug|info|warn|error.
	LogLevel string `json:"logLevel" envconfig:"LOG_LEVEL"`
	// LogFormat is one of text|json.
	LogFormat string `json:"logFormat" envconfig:"LOG_FORMAT"`
}

// Default returns built-in defaults.
func Default() Config {
	return Config{
		StationID:        "default",
		ServerURL:        "http://127.0.0.1:8080",
		HTTPAddr:         ":8080",
		RequestTimeoutMs: 15_000,
		ProbeIntervalMs:  10_000,
		BackoffMs:        []int64{1_000, 5_000, 15_000, 60_000, 300_000},
		LogLevel:         "info",
		LogFormat:        "text",
	}
}

// Load reads configuration from a JSON file over defaults. An empty path
// returns defaults unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	if ext := filepath.Ext(path); ext != "" && ext != ".json" {
		return Config{}, fmt.Errorf("config: unsupported extension %q; use JSON", ext)
	}
	if err := json.Unmarshal(b, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// FromEnv overlays REDEEMQ_* environment variables onto cfg.
func FromEnv(cfg *Config) error {
	return envconfig.Process("redeemq", cfg)
}
