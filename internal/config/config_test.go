package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultBackoffTableIncreases(t *testing.T) {
	cfg := Default()
	if len(cfg.BackoffMs) == 0 {
		t.Fatalf("empty backoff table")
	}
	for i := 1; i < len(cfg.BackoffMs); i++ {
		if cfg.BackoffMs[i] <= cfg.BackoffMs[i-1] {
			t.Fatalf("backoff table not strictly increasing at %d", i)
		}
	}
}

func TestLoadJSONOverlaysDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	body := `{"stationId":"st-042","requestTimeoutMs":2000}`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.StationID != "st-042" {
		t.Fatalf("stationId = %q", cfg.StationID)
	}
	if cfg.RequestTimeoutMs != 2000 {
		t.Fatalf("requestTimeoutMs = %d", cfg.RequestTimeoutMs)
	}
	// untouched fields keep defaults
	if cfg.HTTPAddr != Default().HTTPAddr {
		t.Fatalf("httpAddr = %q", cfg.HTTPAddr)
	}
}

func TestLoadRejectsNonJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("a: b"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected error for yaml config")
	}
}

func TestFromEnvOverlay(t *testing.T) {
	t.Setenv("REDEEMQ_STATION_ID", "st-env")
	t.Setenv("REDEEMQ_PROBE_INTERVAL_MS", "1234")
	cfg := Default()
	if err := FromEnv(&cfg); err != nil {
		t.Fatalf("from env: %v", err)
	}
	if cfg.StationID != "st-env" {
		t.Fatalf("stationId = %q", cfg.StationID)
	}
	if cfg.ProbeIntervalMs != 1234 {
		t.Fatalf("probeIntervalMs = %d", cfg.ProbeIntervalMs)
	}
	if cfg.ServerURL != Default().ServerURL {
		t.Fatalf("serverUrl changed without env var: %q", cfg.ServerURL)
	}
}
