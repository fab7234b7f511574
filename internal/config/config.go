package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config captures every setting required to boot the uptime engine.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Logging  LoggingConfig  `yaml:"logging"`
	Analysis AnalysisConfig `yaml:"analysis"`
	Schedule ScheduleConfig `yaml:"schedule"`
	Probe    ProbeConfig    `yaml:"probe"`
	Store    StoreConfig    `yaml:"store"`
	Rules    RulesConfig    `yaml:"rules"`
}

// ServerConfig controls the gRPC and HTTP listeners.
type ServerConfig struct {
	Address         string        `yaml:"address"`
	HTTPAddress     string        `yaml:"httpAddress"`
	GracefulTimeout time.Duration `yaml:"gracefulTimeout"`
	StatusPush      time.Duration `yaml:"statusPush"`
}

// LoggingConfig controls structured logging.
type LoggingConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// AnalysisConfig holds the numeric parameters of the analysis passes.
type AnalysisConfig struct {
	BadLatencyThresholdMs float64       `yaml:"badLatencyThresholdMs"`
	TimeframeLeniencyMs   float64       `yaml:"timeframeLeniencyMs"`
	RTTBinSizeMs          float64       `yaml:"rttBinSizeMs"`
	ConnectionTimeout     time.Duration `yaml:"connectionTimeout"`
}

// ScheduleConfig sets how often each pass runs over the live history.
type ScheduleConfig struct {
	Outages     time.Duration `yaml:"outages"`
	Correlation time.Duration `yaml:"correlation"`
	Connection  time.Duration `yaml:"connection"`
	Stats       time.Duration `yaml:"stats"`
}

// ProbeConfig configures the built-in TCP prober.
type ProbeConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Targets  []string      `yaml:"targets"`
	Interval time.Duration `yaml:"interval"`
	Timeout  time.Duration `yaml:"timeout"`
}

// StoreConfig selects where session logs are written.
type StoreConfig struct {
	Driver     string `yaml:"driver"`
	Path       string `yaml:"path"`
	MaxHistory int    `yaml:"maxHistory"`
}

// RulesConfig controls rule-pack loading for operator notices.
type RulesConfig struct {
	Path string `yaml:"path"`
}

// Load initialises Config from a YAML file and optional environment overrides.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("MIRADOR_UPTIME_CONFIG")
	}

	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("config file %s not found: %w", path, err)
			}
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the analysis passes cannot work with.
func (c *Config) Validate() error {
	if c.Analysis.BadLatencyThresholdMs < 0 {
		return fmt.Errorf("analysis.badLatencyThresholdMs must be non-negative")
	}
	if c.Analysis.TimeframeLeniencyMs < 0 {
		return fmt.Errorf("analysis.timeframeLeniencyMs must be non-negative")
	}
	if c.Analysis.RTTBinSizeMs < 0 {
		return fmt.Errorf("analysis.rttBinSizeMs must be non-negative")
	}
	if len(c.Probe.Targets) == 0 {
		return fmt.Errorf("probe.targets must list at least one target")
	}
	seen := make(map[string]struct{}, len(c.Probe.Targets))
	for _, target := range c.Probe.Targets {
		if strings.TrimSpace(target) == "" {
			return fmt.Errorf("probe.targets contains an empty entry")
		}
		if _, dup := seen[target]; dup {
			return fmt.Errorf("probe.targets lists %s twice", target)
		}
		seen[target] = struct{}{}
	}
	switch c.Store.Driver {
	case "", "none", "json", "sqlite":
	default:
		return fmt.Errorf("store.driver %q is not supported", c.Store.Driver)
	}
	if c.Probe.Enabled && c.Probe.Interval <= 0 {
		return fmt.Errorf("probe.interval must be positive when probing is enabled")
	}
	return nil
}

func defaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Address:         ":50061",
			HTTPAddress:     ":2113",
			GracefulTimeout: 10 * time.Second,
			StatusPush:      2 * time.Second,
		},
		Logging: LoggingConfig{Level: "info", JSON: false},
		Analysis: AnalysisConfig{
			BadLatencyThresholdMs: 250,
			TimeframeLeniencyMs:   500,
			RTTBinSizeMs:          5,
			ConnectionTimeout:     5 * time.Second,
		},
		Schedule: ScheduleConfig{
			Outages:     10 * time.Second,
			Correlation: 30 * time.Second,
			Connection:  time.Second,
			Stats:       15 * time.Second,
		},
		Probe: ProbeConfig{
			Enabled:  true,
			Targets:  []string{"8.8.8.8:53", "1.1.1.1:53", "9.9.9.9:53"},
			Interval: time.Second,
			Timeout:  2 * time.Second,
		},
		Store: StoreConfig{
			Driver:     "json",
			Path:       "data/session.json",
			MaxHistory: 86400,
		},
		Rules: RulesConfig{Path: "configs/rules/default.yaml"},
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("MIRADOR_UPTIME_SERVER_ADDRESS"); v != "" {
		cfg.Server.Address = v
	}
	if v := os.Getenv("MIRADOR_UPTIME_HTTP_ADDRESS"); v != "" {
		cfg.Server.HTTPAddress = v
	}
	if v := os.Getenv("MIRADOR_UPTIME_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("MIRADOR_UPTIME_LOG_FORMAT"); v == "json" {
		cfg.Logging.JSON = true
	}
	if v := os.Getenv("MIRADOR_UPTIME_BAD_LATENCY_THRESHOLD_MS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Analysis.BadLatencyThresholdMs = f
		}
	}
	if v := os.Getenv("MIRADOR_UPTIME_TIMEFRAME_LENIENCY_MS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Analysis.TimeframeLeniencyMs = f
		}
	}
	if v := os.Getenv("MIRADOR_UPTIME_RTT_BIN_SIZE_MS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Analysis.RTTBinSizeMs = f
		}
	}
	if v := os.Getenv("MIRADOR_UPTIME_CONNECTION_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Analysis.ConnectionTimeout = d
		}
	}
	if v := os.Getenv("MIRADOR_UPTIME_TARGETS"); v != "" {
		var targets []string
		for _, target := range strings.Split(v, ",") {
			if target = strings.TrimSpace(target); target != "" {
				targets = append(targets, target)
			}
		}
		cfg.Probe.Targets = targets
	}
	if v := os.Getenv("MIRADOR_UPTIME_PROBE_ENABLED"); v != "" {
		cfg.Probe.Enabled = strings.EqualFold(v, "true") || strings.EqualFold(v, "1")
	}
	if v := os.Getenv("MIRADOR_UPTIME_PROBE_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Probe.Interval = d
		}
	}
	if v := os.Getenv("MIRADOR_UPTIME_STORE_DRIVER"); v != "" {
		cfg.Store.Driver = v
	}
	if v := os.Getenv("MIRADOR_UPTIME_STORE_PATH"); v != "" {
		cfg.Store.Path = v
	}
	if v := os.Getenv("MIRADOR_UPTIME_MAX_HISTORY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Store.MaxHistory = n
		}
	}
	if v := os.Getenv("MIRADOR_UPTIME_RULES_PATH"); v != "" {
		cfg.Rules.Path = v
	}
}
