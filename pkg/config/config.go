// Package config loads parley configuration from YAML with environment
// overrides. Defaults come first, then the user file (~/.parley/config.yaml),
// then the project file (./.parley/config.yaml), then the environment.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Default configuration values exported for documentation and validation.
const (
	DefaultPollInterval  = time.Second
	DefaultWatchInterval = 250 * time.Millisecond
	DefaultHTTPTimeout   = 30 * time.Second
	DefaultBusKind       = "memory"
	DefaultLogLevel      = "info"
)

// Config is the complete parley configuration.
type Config struct {
	Backend BackendConfig  `yaml:"backend"`
	Polling PollingConfig  `yaml:"polling"`
	Bus     BusConfig      `yaml:"bus"`
	Logging LoggingConfig  `yaml:"logging"`
	Widgets []WidgetConfig `yaml:"widgets"`
}

// BackendConfig points at the agent backend entry point.
type BackendConfig struct {
	URL     string        `yaml:"url"`
	Token   string        `yaml:"token"`
	AgentID string        `yaml:"agent_id"`
	Timeout time.Duration `yaml:"timeout"`
}

// PollingConfig paces the run poller and the command watcher.
type PollingConfig struct {
	Interval        time.Duration `yaml:"interval"`
	CommandInterval time.Duration `yaml:"command_interval"`
}

// BusConfig selects the event bus implementation.
type BusConfig struct {
	Kind string     `yaml:"kind"` // "memory" or "nats"
	NATS NATSConfig `yaml:"nats"`
}

// NATSConfig configures the NATS-backed bus.
type NATSConfig struct {
	URL     string        `yaml:"url"`
	Name    string        `yaml:"name"`
	Timeout time.Duration `yaml:"timeout"`
}

// LoggingConfig controls the slog output.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// WidgetConfig declares one content type the model may answer with. The
// renderer itself is registered in code; config contributes the prompt
// material.
type WidgetConfig struct {
	Type         string         `yaml:"type"`
	Instructions string         `yaml:"instructions"`
	SourceShape  string         `yaml:"source_shape"`
	Options      map[string]any `yaml:"options"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Backend: BackendConfig{
			Timeout: DefaultHTTPTimeout,
		},
		Polling: PollingConfig{
			Interval:        DefaultPollInterval,
			CommandInterval: DefaultWatchInterval,
		},
		Bus: BusConfig{
			Kind: DefaultBusKind,
		},
		Logging: LoggingConfig{
			Level: DefaultLogLevel,
		},
	}
}

// Load builds the configuration from defaults, the user and project config
// files, and environment overrides.
func Load() (*Config, error) {
	cfg := DefaultConfig()

	home, err := os.UserHomeDir()
	if err != nil {
		home = os.Getenv("HOME")
	}
	if home != "" {
		userPath := filepath.Join(home, ".parley", "config.yaml")
		if err := loadAndMerge(cfg, userPath); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("loading user config: %w", err)
		}
	}

	projectPath := filepath.Join(".", ".parley", "config.yaml")
	if err := loadAndMerge(cfg, projectPath); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("loading project config: %w", err)
	}

	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

// LoadFromPath loads configuration from a specific file path.
func LoadFromPath(path string) (*Config, error) {
	cfg := DefaultConfig()
	if err := loadAndMerge(cfg, path); err != nil {
		return nil, fmt.Errorf("loading config from %s: %w", path, err)
	}
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

func loadAndMerge(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("PARLEY_BACKEND_URL"); v != "" {
		cfg.Backend.URL = v
	}
	if v := os.Getenv("PARLEY_BACKEND_TOKEN"); v != "" {
		cfg.Backend.Token = v
	}
	if v := os.Getenv("PARLEY_AGENT_ID"); v != "" {
		cfg.Backend.AgentID = v
	}
	if v := os.Getenv("PARLEY_POLL_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.Polling.Interval = d
		}
	}
	if v := os.Getenv("PARLEY_BUS"); v != "" {
		cfg.Bus.Kind = strings.ToLower(strings.TrimSpace(v))
	}
	if v := os.Getenv("PARLEY_NATS_URL"); v != "" {
		cfg.Bus.NATS.URL = v
	}
	if v := os.Getenv("PARLEY_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = strings.ToLower(strings.TrimSpace(v))
	}
}

// Validate checks the configuration for contradictions and bad values.
func (c *Config) Validate() error {
	if c.Backend.URL != "" {
		raw := c.Backend.URL
		if !strings.Contains(raw, "://") {
			raw = "https://" + raw
		}
		if _, err := url.Parse(raw); err != nil {
			return fmt.Errorf("backend.url %q: %w", c.Backend.URL, err)
		}
	}
	if c.Backend.Timeout < 0 {
		return fmt.Errorf("backend.timeout must not be negative")
	}
	if c.Polling.Interval < 0 {
		return fmt.Errorf("polling.interval must not be negative")
	}
	switch c.Bus.Kind {
	case "", "memory", "nats":
	default:
		return fmt.Errorf("bus.kind %q: must be memory or nats", c.Bus.Kind)
	}
	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level %q: must be debug, info, warn, or error", c.Logging.Level)
	}
	seen := make(map[string]bool, len(c.Widgets))
	for _, w := range c.Widgets {
		typ := strings.TrimSpace(w.Type)
		if typ == "" {
			return fmt.Errorf("widgets: entry with empty type")
		}
		if seen[typ] {
			return fmt.Errorf("widgets: duplicate type %q", typ)
		}
		seen[typ] = true
	}
	return nil
}
