package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.APIPort != "8080" {
		t.Fatalf("expected default port 8080, got %s", cfg.APIPort)
	}
	if len(cfg.OriginWhitelist) != 3 {
		t.Fatalf("expected default whitelist of 3 origins, got %v", cfg.OriginWhitelist)
	}
	if cfg.AnnualStaleDays != 400 || cfg.QuarterlyStaleDays != 120 || cfg.ChatterStaleHours != 48 {
		t.Fatalf("unexpected default thresholds: %+v", cfg)
	}
	if cfg.StorageTimeout != 10*time.Second {
		t.Fatalf("expected 10s storage timeout, got %s", cfg.StorageTimeout)
	}
	if cfg.MergeSchedule != "@every 5m" {
		t.Fatalf("expected default merge schedule, got %s", cfg.MergeSchedule)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("ORIGIN_WHITELIST", "NSE , BSE")
	t.Setenv("ANNUAL_STALE_DAYS", "300")
	t.Setenv("API_RATE_LIMIT_RPS", "5")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(cfg.OriginWhitelist) != 2 || cfg.OriginWhitelist[0] != "NSE" || cfg.OriginWhitelist[1] != "BSE" {
		t.Fatalf("expected trimmed whitelist, got %v", cfg.OriginWhitelist)
	}
	if cfg.AnnualStaleDays != 300 {
		t.Fatalf("expected overridden threshold 300, got %d", cfg.AnnualStaleDays)
	}
	if cfg.APIRateLimitRPS != 5 {
		t.Fatalf("expected rate limit 5, got %d", cfg.APIRateLimitRPS)
	}
}

func TestLoadRejectsMalformedInt(t *testing.T) {
	t.Setenv("ANNUAL_STALE_DAYS", "four hundred")

	if _, err := Load(); err == nil {
		t.Fatalf("malformed integer env value must fail, not fall back")
	}
}

func TestLoadRejectsEmptyWhitelist(t *testing.T) {
	t.Setenv("ORIGIN_WHITELIST", "  ,  ")

	if _, err := Load(); err == nil {
		t.Fatalf("empty whitelist must fail")
	}
}

func TestLoadAppliesYAMLOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "overrides.yaml")
	overlay := []byte("origin_whitelist:\n  - NSE\nquarterly_stale_days: 90\nmerge_schedule: \"@every 1m\"\n")
	if err := os.WriteFile(path, overlay, 0o600); err != nil {
		t.Fatalf("write overlay: %v", err)
	}
	t.Setenv("VERIFIED_INGEST_CONFIG", path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(cfg.OriginWhitelist) != 1 || cfg.OriginWhitelist[0] != "NSE" {
		t.Fatalf("expected overlay whitelist, got %v", cfg.OriginWhitelist)
	}
	if cfg.QuarterlyStaleDays != 90 {
		t.Fatalf("expected overlay threshold 90, got %d", cfg.QuarterlyStaleDays)
	}
	if cfg.MergeSchedule != "@every 1m" {
		t.Fatalf("expected overlay schedule, got %s", cfg.MergeSchedule)
	}
	// Values the overlay does not name keep their environment defaults.
	if cfg.AnnualStaleDays != 400 {
		t.Fatalf("expected untouched annual threshold, got %d", cfg.AnnualStaleDays)
	}
}
