package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"github.com/MikeSquared-Agency/Storyloop/internal/autonomy"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Hermes    HermesConfig    `yaml:"hermes"`
	Scorecard ServiceConfig   `yaml:"scorecard"`
	Roster    ServiceConfig   `yaml:"roster"`
	Merch     ServiceConfig   `yaml:"merch"`
	Autonomy  AutonomyConfig  `yaml:"autonomy"`
	Sweeper   SweeperConfig   `yaml:"sweeper"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Logging   LoggingConfig   `yaml:"logging"`
}

type ServerConfig struct {
	Port        int    `yaml:"port"`
	MetricsPort int    `yaml:"metrics_port"`
	AdminToken  string `yaml:"admin_token"`
}

type DatabaseConfig struct {
	// Driver is postgres or sqlite.
	Driver string `yaml:"driver"`
	URL    string `yaml:"url"`
	Path   string `yaml:"path"`
}

type HermesConfig struct {
	URL string `yaml:"url"`
}

// ServiceConfig points at one external collaborator. An empty URL disables it.
type ServiceConfig struct {
	URL   string `yaml:"url"`
	Token string `yaml:"token"`
}

type AutonomyConfig struct {
	DefaultMode      string              `yaml:"default_mode"`
	CadenceHours     int                 `yaml:"cadence_hours"`
	Cycles           int                 `yaml:"cycles"`
	StaleAfterHours  int                 `yaml:"stale_after_hours"`
	HistoryLimit     int                 `yaml:"history_limit"`
	BatchConcurrency int                 `yaml:"batch_concurrency"`
	Features         autonomy.FeatureSet `yaml:"features"`
}

type SweeperConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Schedule string `yaml:"schedule"`
	Mode     string `yaml:"mode"`
	MaxRuns  int    `yaml:"max_runs"`
}

type TelemetryConfig struct {
	Enabled     bool    `yaml:"enabled"`
	Exporter    string  `yaml:"exporter"`
	Endpoint    string  `yaml:"endpoint"`
	ServiceName string  `yaml:"service_name"`
	SampleRate  float64 `yaml:"sample_rate"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func Load(path string) (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:        8700,
			MetricsPort: 8701,
		},
		Database: DatabaseConfig{
			Driver: "postgres",
			Path:   "storyloop.db",
		},
		Hermes: HermesConfig{
			URL: "nats://localhost:4222",
		},
		Scorecard: ServiceConfig{URL: "http://localhost:8710"},
		Roster:    ServiceConfig{URL: "http://localhost:8711"},
		Merch:     ServiceConfig{URL: "http://localhost:8712"},
		Autonomy: AutonomyConfig{
			DefaultMode:      string(autonomy.ModeAssist),
			CadenceHours:     autonomy.DefaultCadenceHours,
			Cycles:           autonomy.DefaultCycles,
			StaleAfterHours:  autonomy.DefaultStaleAfterHours,
			HistoryLimit:     200,
			BatchConcurrency: 4,
			Features:         autonomy.AllFeatures(),
		},
		Sweeper: SweeperConfig{
			Enabled:  true,
			Schedule: "*/30 * * * *",
			Mode:     string(autonomy.ModeAssist),
			MaxRuns:  autonomy.DefaultOutcomeAgentMaxRuns,
		},
		Telemetry: TelemetryConfig{
			Exporter:    "otlp-http",
			ServiceName: "storyloop",
			SampleRate:  1.0,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnv(cfg)
	return cfg, nil
}

// Validate rejects settings the pipeline would refuse at request time.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "postgres":
		if c.Database.URL == "" {
			return fmt.Errorf("database.url is required for postgres")
		}
	case "sqlite":
		if c.Database.Path == "" {
			return fmt.Errorf("database.path is required for sqlite")
		}
	default:
		return fmt.Errorf("unknown database driver %q", c.Database.Driver)
	}

	a := c.Autonomy
	if _, err := autonomy.ParseMode(a.DefaultMode); err != nil {
		return fmt.Errorf("autonomy.default_mode: %w", err)
	}
	if err := autonomy.CheckRange("autonomy.cadence_hours", a.CadenceHours, autonomy.MinCadenceHours, autonomy.MaxCadenceHours); err != nil {
		return err
	}
	if err := autonomy.CheckRange("autonomy.cycles", a.Cycles, autonomy.MinCycles, autonomy.MaxCycles); err != nil {
		return err
	}
	if err := autonomy.CheckRange("autonomy.stale_after_hours", a.StaleAfterHours, 1, 720); err != nil {
		return err
	}
	if a.HistoryLimit < 1 {
		return fmt.Errorf("autonomy.history_limit must be positive")
	}
	if a.BatchConcurrency < 1 {
		return fmt.Errorf("autonomy.batch_concurrency must be positive")
	}

	if c.Sweeper.Enabled {
		if _, err := cron.ParseStandard(c.Sweeper.Schedule); err != nil {
			return fmt.Errorf("sweeper.schedule %q: %w", c.Sweeper.Schedule, err)
		}
		if _, err := autonomy.ParseMode(c.Sweeper.Mode); err != nil {
			return fmt.Errorf("sweeper.mode: %w", err)
		}
		if err := autonomy.CheckRange("sweeper.max_runs", c.Sweeper.MaxRuns, 1, 50); err != nil {
			return err
		}
	}
	return nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("STORYLOOP_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = n
		}
	}
	if v := os.Getenv("STORYLOOP_METRICS_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Server.MetricsPort = n
		}
	}
	if v := os.Getenv("STORYLOOP_ADMIN_TOKEN"); v != "" {
		cfg.Server.AdminToken = v
	}
	if v := os.Getenv("STORYLOOP_DATABASE_DRIVER"); v != "" {
		cfg.Database.Driver = v
	}
	if v := os.Getenv("STORYLOOP_DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("STORYLOOP_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("STORYLOOP_HERMES_URL"); v != "" {
		cfg.Hermes.URL = v
	}
	if v := os.Getenv("STORYLOOP_SCORECARD_URL"); v != "" {
		cfg.Scorecard.URL = v
	}
	if v := os.Getenv("STORYLOOP_SCORECARD_TOKEN"); v != "" {
		cfg.Scorecard.Token = v
	}
	if v := os.Getenv("STORYLOOP_ROSTER_URL"); v != "" {
		cfg.Roster.URL = v
	}
	if v := os.Getenv("STORYLOOP_ROSTER_TOKEN"); v != "" {
		cfg.Roster.Token = v
	}
	if v := os.Getenv("STORYLOOP_MERCH_URL"); v != "" {
		cfg.Merch.URL = v
	}
	if v := os.Getenv("STORYLOOP_MERCH_TOKEN"); v != "" {
		cfg.Merch.Token = v
	}
	if v := os.Getenv("STORYLOOP_DEFAULT_MODE"); v != "" {
		cfg.Autonomy.DefaultMode = v
	}
	if v := os.Getenv("STORYLOOP_CADENCE_HOURS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Autonomy.CadenceHours = n
		}
	}
	if v := os.Getenv("STORYLOOP_SWEEPER_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Sweeper.Enabled = b
		}
	}
	if v := os.Getenv("STORYLOOP_SWEEPER_SCHEDULE"); v != "" {
		cfg.Sweeper.Schedule = v
	}
	if v := os.Getenv("STORYLOOP_TELEMETRY_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Telemetry.Enabled = b
		}
	}
	if v := os.Getenv("STORYLOOP_OTLP_ENDPOINT"); v != "" {
		cfg.Telemetry.Endpoint = v
	}
	if v := os.Getenv("STORYLOOP_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}
