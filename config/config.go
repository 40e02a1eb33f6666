// Package config provides configuration loading for the planner service.
package config

import (
	_ "embed"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/MaastrichtU-BISS/grid-planner/planner"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Config holds all service configuration parameters.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Grid      GridConfig      `yaml:"grid"`
	Planner   PlannerConfig   `yaml:"planner"`
	Log       LogConfig       `yaml:"log"`
	Telemetry TelemetryConfig `yaml:"telemetry"`

	// Derived values computed after loading
	Derived DerivedConfig `yaml:"-"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Addr              string        `yaml:"addr"`
	AllowedOrigin     string        `yaml:"allowed_origin"`
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout"`
}

// GridConfig says where the navigation grid asset lives.
type GridConfig struct {
	Path    string `yaml:"path"`
	MapsDir string `yaml:"maps_dir"` // /loadGrid only reads assets below this directory
	Watch   bool   `yaml:"watch"`    // reload the asset when the file changes
}

// PlannerConfig holds search parameters.
type PlannerConfig struct {
	MaxIterations int    `yaml:"max_iterations"`
	CornerPolicy  string `yaml:"corner_policy"` // permissive or strict
	HeuristicBias bool   `yaml:"heuristic_bias"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}

// TelemetryConfig selects where traces and metrics are exported.
type TelemetryConfig struct {
	Exporter       string        `yaml:"exporter"` // none or stdout
	MetricInterval time.Duration `yaml:"metric_interval"`
}

// DerivedConfig holds computed values derived from the loaded config.
type DerivedConfig struct {
	CornerPolicy planner.CornerPolicy
	LogLevel     slog.Level
}

// Load loads configuration from a YAML file, merging with embedded defaults.
// If path is empty, only embedded defaults are used.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Unmarshal into same struct - only overwrites fields present in file
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := cfg.computeDerived(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// computeDerived validates the loaded values and fills Derived.
func (c *Config) computeDerived() error {
	switch strings.ToLower(c.Planner.CornerPolicy) {
	case "", "permissive":
		c.Derived.CornerPolicy = planner.CornerPermissive
	case "strict":
		c.Derived.CornerPolicy = planner.CornerStrict
	default:
		return fmt.Errorf("invalid planner.corner_policy %q", c.Planner.CornerPolicy)
	}

	if c.Planner.MaxIterations <= 0 {
		c.Planner.MaxIterations = planner.DefaultMaxIterations
	}

	if err := c.Derived.LogLevel.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return fmt.Errorf("invalid log.level %q: %w", c.Log.Level, err)
	}
	switch c.Log.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("invalid log.format %q", c.Log.Format)
	}

	switch c.Telemetry.Exporter {
	case "", "none", "stdout":
	default:
		return fmt.Errorf("invalid telemetry.exporter %q", c.Telemetry.Exporter)
	}
	if c.Telemetry.MetricInterval <= 0 {
		c.Telemetry.MetricInterval = time.Minute
	}
	return nil
}

// PlannerOptions converts the planner section into planner options.
func (c *Config) PlannerOptions() []planner.Option {
	return []planner.Option{
		planner.WithMaxIterations(c.Planner.MaxIterations),
		planner.WithCornerPolicy(c.Derived.CornerPolicy),
		planner.WithHeuristicBias(c.Planner.HeuristicBias),
	}
}

// NewLogger builds a slog logger writing to w.
func (c *Config) NewLogger(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: c.Derived.LogLevel}
	if c.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
