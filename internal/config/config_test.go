package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

var envVars = []string{
	"STORYLOOP_PORT", "STORYLOOP_METRICS_PORT", "STORYLOOP_ADMIN_TOKEN",
	"STORYLOOP_DATABASE_DRIVER", "STORYLOOP_DATABASE_URL", "STORYLOOP_DATABASE_PATH",
	"STORYLOOP_HERMES_URL", "STORYLOOP_SCORECARD_URL", "STORYLOOP_SCORECARD_TOKEN",
	"STORYLOOP_ROSTER_URL", "STORYLOOP_ROSTER_TOKEN", "STORYLOOP_MERCH_URL", "STORYLOOP_MERCH_TOKEN",
	"STORYLOOP_DEFAULT_MODE", "STORYLOOP_CADENCE_HOURS", "STORYLOOP_SWEEPER_ENABLED",
	"STORYLOOP_SWEEPER_SCHEDULE", "STORYLOOP_TELEMETRY_ENABLED", "STORYLOOP_OTLP_ENDPOINT",
	"STORYLOOP_LOG_LEVEL",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envVars {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Port != 8700 {
		t.Errorf("expected port 8700, got %d", cfg.Server.Port)
	}
	if cfg.Server.MetricsPort != 8701 {
		t.Errorf("expected metrics port 8701, got %d", cfg.Server.MetricsPort)
	}
	if cfg.Database.Driver != "postgres" {
		t.Errorf("expected postgres driver, got %s", cfg.Database.Driver)
	}
	if cfg.Hermes.URL != "nats://localhost:4222" {
		t.Errorf("expected nats URL, got %s", cfg.Hermes.URL)
	}
	if cfg.Autonomy.DefaultMode != "assist" {
		t.Errorf("expected assist mode, got %s", cfg.Autonomy.DefaultMode)
	}
	if cfg.Autonomy.CadenceHours != 12 || cfg.Autonomy.Cycles != 3 {
		t.Errorf("expected 12h cadence with 3 cycles, got %d / %d", cfg.Autonomy.CadenceHours, cfg.Autonomy.Cycles)
	}
	if cfg.Autonomy.StaleAfterHours != 72 {
		t.Errorf("expected stale after 72h, got %d", cfg.Autonomy.StaleAfterHours)
	}
	if cfg.Autonomy.BatchConcurrency != 4 {
		t.Errorf("expected batch concurrency 4, got %d", cfg.Autonomy.BatchConcurrency)
	}
	f := cfg.Autonomy.Features
	if !f.Learning || !f.Governance || !f.Optimizer || !f.Strategy || !f.WindowGate || !f.SelfHealing {
		t.Errorf("expected every stage enabled, got %+v", f)
	}
	if !cfg.Sweeper.Enabled || cfg.Sweeper.Schedule != "*/30 * * * *" {
		t.Errorf("unexpected sweeper defaults %+v", cfg.Sweeper)
	}
	if cfg.Telemetry.Enabled {
		t.Error("expected telemetry disabled by default")
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "json" {
		t.Errorf("unexpected logging defaults %+v", cfg.Logging)
	}
}

func TestLoadFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("STORYLOOP_PORT", "9000")
	t.Setenv("STORYLOOP_ADMIN_TOKEN", "secret-token")
	t.Setenv("STORYLOOP_DATABASE_DRIVER", "sqlite")
	t.Setenv("STORYLOOP_DATABASE_PATH", "/tmp/loop.db")
	t.Setenv("STORYLOOP_SCORECARD_URL", "http://scorecard:8710")
	t.Setenv("STORYLOOP_ROSTER_TOKEN", "roster-secret")
	t.Setenv("STORYLOOP_CADENCE_HOURS", "6")
	t.Setenv("STORYLOOP_SWEEPER_ENABLED", "false")
	t.Setenv("STORYLOOP_LOG_LEVEL", "debug")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Port != 9000 {
		t.Errorf("expected port 9000, got %d", cfg.Server.Port)
	}
	if cfg.Server.AdminToken != "secret-token" {
		t.Errorf("expected admin token 'secret-token', got '%s'", cfg.Server.AdminToken)
	}
	if cfg.Database.Driver != "sqlite" || cfg.Database.Path != "/tmp/loop.db" {
		t.Errorf("unexpected database config %+v", cfg.Database)
	}
	if cfg.Scorecard.URL != "http://scorecard:8710" {
		t.Errorf("expected scorecard URL, got '%s'", cfg.Scorecard.URL)
	}
	if cfg.Roster.Token != "roster-secret" {
		t.Errorf("expected roster token, got '%s'", cfg.Roster.Token)
	}
	if cfg.Autonomy.CadenceHours != 6 {
		t.Errorf("expected cadence 6, got %d", cfg.Autonomy.CadenceHours)
	}
	if cfg.Sweeper.Enabled {
		t.Error("expected sweeper disabled")
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("expected log level 'debug', got '%s'", cfg.Logging.Level)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("env config invalid: %v", err)
	}
}

func TestLoadFromYAML(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "storyloop.yaml")
	body := `
database:
  driver: postgres
  url: postgres://localhost/storyloop
autonomy:
  default_mode: auto
  cycles: 2
  features:
    learning: true
    governance: true
    optimizer: false
    strategy: true
    window_gate: false
    self_healing: false
sweeper:
  schedule: "0 * * * *"
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("STORYLOOP_DEFAULT_MODE", "manual")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Autonomy.DefaultMode != "manual" {
		t.Errorf("env should override yaml, got %s", cfg.Autonomy.DefaultMode)
	}
	if cfg.Autonomy.Cycles != 2 || cfg.Autonomy.CadenceHours != 12 {
		t.Errorf("expected yaml cycles with default cadence, got %d / %d", cfg.Autonomy.Cycles, cfg.Autonomy.CadenceHours)
	}
	if cfg.Autonomy.Features.Optimizer || !cfg.Autonomy.Features.Governance {
		t.Errorf("features not read from yaml: %+v", cfg.Autonomy.Features)
	}
	if cfg.Sweeper.Schedule != "0 * * * *" {
		t.Errorf("expected hourly schedule, got %s", cfg.Sweeper.Schedule)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("yaml config invalid: %v", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestValidate(t *testing.T) {
	clearEnv(t)
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"unknown driver", func(c *Config) { c.Database.Driver = "mysql" }, "unknown database driver"},
		{"postgres without url", func(c *Config) { c.Database.URL = "" }, "database.url"},
		{"bad mode", func(c *Config) { c.Autonomy.DefaultMode = "turbo" }, "default_mode"},
		{"cadence out of range", func(c *Config) { c.Autonomy.CadenceHours = 30 }, "cadence_hours"},
		{"cycles out of range", func(c *Config) { c.Autonomy.Cycles = 0 }, "cycles"},
		{"bad cron", func(c *Config) { c.Sweeper.Schedule = "every half hour" }, "sweeper.schedule"},
		{"zero concurrency", func(c *Config) { c.Autonomy.BatchConcurrency = 0 }, "batch_concurrency"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load("")
			if err != nil {
				t.Fatal(err)
			}
			cfg.Database.URL = "postgres://localhost/storyloop"
			tt.mutate(cfg)
			err = cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}
