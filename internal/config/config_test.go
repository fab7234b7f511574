package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("MIRADOR_UPTIME_CONFIG", "")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Analysis.BadLatencyThresholdMs != 250 || cfg.Analysis.TimeframeLeniencyMs != 500 {
		t.Fatalf("unexpected analysis defaults: %+v", cfg.Analysis)
	}
	if cfg.Analysis.RTTBinSizeMs != 5 {
		t.Fatalf("unexpected bin size: %v", cfg.Analysis.RTTBinSizeMs)
	}
	if len(cfg.Probe.Targets) == 0 {
		t.Fatalf("expected default targets")
	}
}

func TestLoadFileAndEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
analysis:
  badLatencyThresholdMs: 120
  connectionTimeout: 3s
probe:
  targets: ["10.0.0.1:80"]
store:
  driver: sqlite
  path: /tmp/uptime.db
`)
	t.Setenv("MIRADOR_UPTIME_TIMEFRAME_LENIENCY_MS", "750")
	t.Setenv("MIRADOR_UPTIME_TARGETS", "a:1, b:2")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Analysis.BadLatencyThresholdMs != 120 {
		t.Fatalf("file value not applied: %v", cfg.Analysis.BadLatencyThresholdMs)
	}
	if cfg.Analysis.ConnectionTimeout != 3*time.Second {
		t.Fatalf("unexpected timeout: %v", cfg.Analysis.ConnectionTimeout)
	}
	if cfg.Analysis.TimeframeLeniencyMs != 750 {
		t.Fatalf("env override not applied: %v", cfg.Analysis.TimeframeLeniencyMs)
	}
	if len(cfg.Probe.Targets) != 2 || cfg.Probe.Targets[1] != "b:2" {
		t.Fatalf("unexpected targets: %v", cfg.Probe.Targets)
	}
	if cfg.Store.Driver != "sqlite" || cfg.Analysis.RTTBinSizeMs != 5 {
		t.Fatalf("defaults not preserved alongside file values: %+v", cfg)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestValidateRejectsNegativeParameters(t *testing.T) {
	path := writeConfig(t, "analysis:\n  timeframeLeniencyMs: -1\n")
	_, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), "timeframeLeniencyMs") {
		t.Fatalf("expected leniency validation error, got %v", err)
	}
}

func TestValidateRejectsDuplicateTargets(t *testing.T) {
	cfg := defaultConfig()
	cfg.Probe.Targets = []string{"a:1", "a:1"}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected duplicate target error")
	}
	cfg.Probe.Targets = nil
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected error without targets")
	}
}

func TestValidateRejectsUnknownDriver(t *testing.T) {
	cfg := defaultConfig()
	cfg.Store.Driver = "weaviate"
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected driver validation error")
	}
}
