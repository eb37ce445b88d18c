package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/ghalamif/BrewFlow/internal/app/connection"
	"github.com/ghalamif/BrewFlow/internal/chart"
	"github.com/ghalamif/BrewFlow/internal/domain"
	"github.com/ghalamif/BrewFlow/internal/ports"
)

// ErrInvalid wraps every validation failure returned by Load and Validate.
var ErrInvalid = errors.New("invalid config")

// Environment overrides, applied after the YAML file is read.
const (
	EnvEndpoint = "BREWFLOW_MQTT_ENDPOINT"
	EnvUsername = "BREWFLOW_MQTT_USERNAME"
	EnvPassword = "BREWFLOW_MQTT_PASSWORD"
	EnvTopic    = "BREWFLOW_MQTT_TOPIC"
)

type Config struct {
	Broker    connection.Config `yaml:"broker"`
	Outbox    OutboxConfig      `yaml:"outbox"`
	Chart     ChartConfig       `yaml:"chart"`
	Metrics   MetricsConfig     `yaml:"metrics"`
	Dashboard DashboardConfig   `yaml:"dashboard"`
	Archive   ArchiveConfig     `yaml:"archive"`
	Log       LogConfig         `yaml:"log"`
}

// OutboxConfig is the offline buffer for messages published while disconnected.
// Enabled is a pointer so an omitted key keeps the default of true.
type OutboxConfig struct {
	Enabled      *bool `yaml:"enabled"`
	Capacity     int   `yaml:"capacity"`
	Persist      bool  `yaml:"persist"`
	DeleteOldest bool  `yaml:"delete_oldest"`
}

func (o OutboxConfig) Policy() ports.BufferPolicy {
	enabled := o.Enabled == nil || *o.Enabled
	return ports.BufferPolicy{
		Enabled:      enabled,
		Capacity:     o.Capacity,
		Persist:      o.Persist,
		DeleteOldest: o.DeleteOldest,
	}
}

type ChartConfig struct {
	Width           float64            `yaml:"width"`
	Height          float64            `yaml:"height"`
	WindowCap       int                `yaml:"window_cap"`
	XStepsPerScreen int                `yaml:"x_steps_per_screen"`
	ClampOverflow   bool               `yaml:"clamp_overflow"`
	Ceilings        map[string]float64 `yaml:"ceilings"`

	// windowCapSet records an explicit window_cap so a zero fails Validate
	// instead of taking the default.
	windowCapSet bool
}

func (c *ChartConfig) UnmarshalYAML(node *yaml.Node) error {
	type plain ChartConfig
	if err := node.Decode((*plain)(c)); err != nil {
		return err
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == "window_cap" {
			c.windowCapSet = true
		}
	}
	return nil
}

// MetricCeilings converts the ceilings to metric keys. Unknown names are skipped;
// Validate reports them.
func (c ChartConfig) MetricCeilings() map[domain.Metric]float64 {
	out := make(map[domain.Metric]float64, len(c.Ceilings))
	for name, v := range c.Ceilings {
		m, err := domain.ParseMetric(name)
		if err != nil {
			continue
		}
		out[m] = v
	}
	return out
}

type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

type DashboardConfig struct {
	Addr         string        `yaml:"addr"`
	PushInterval time.Duration `yaml:"push_interval"`
}

// ArchiveConfig enables the finalized-session archive when ConnString is set.
type ArchiveConfig struct {
	ConnString string              `yaml:"conn_string"`
	Table      string              `yaml:"table"`
	Policy     ports.ArchivePolicy `yaml:",inline"`
}

func (a ArchiveConfig) Enabled() bool { return a.ConnString != "" }

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DefaultCeilings are the fixed y-axis ceilings per metric.
func DefaultCeilings() map[string]float64 {
	return map[string]float64{
		domain.MetricWeight.String():      50,
		domain.MetricPressure.String():    12,
		domain.MetricDutyCycle.String():   100,
		domain.MetricFlowRate.String():    8,
		domain.MetricTemperature.String(): 150,
	}
}

// Default returns a configuration with every default applied and no endpoint.
func Default() *Config {
	var cfg Config
	cfg.ApplyDefaults()
	return &cfg
}

// Load reads an optional .env file, the YAML at path (skipped when path is
// empty), then environment overrides, and validates the result.
func Load(path string) (*Config, error) {
	if err := LoadDotEnv(); err != nil {
		return nil, err
	}

	var cfg Config
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadDotEnv loads KEY=VALUE pairs from the given files (".env" by default)
// without overriding variables already set. Missing files are ignored.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvEndpoint); v != "" {
		c.Broker.Endpoint = v
	}
	if v := os.Getenv(EnvUsername); v != "" {
		c.Broker.Username = v
	}
	if v := os.Getenv(EnvPassword); v != "" {
		c.Broker.Password = v
	}
	if v := os.Getenv(EnvTopic); v != "" {
		c.Broker.Topic = v
	}
}

func (c *Config) ApplyDefaults() {
	if c.Outbox.Capacity == 0 {
		c.Outbox.Capacity = ports.DefaultBufferPolicy().Capacity
	}
	policy := c.Outbox.Policy()
	c.Broker.Outbox = &policy
	c.Broker.ApplyDefaults()

	if c.Chart.Width == 0 {
		c.Chart.Width = 1280
	}
	if c.Chart.Height == 0 {
		c.Chart.Height = 720
	}
	if c.Chart.WindowCap == 0 && !c.Chart.windowCapSet {
		c.Chart.WindowCap = chart.DefaultWindowCap
	}
	if c.Chart.XStepsPerScreen == 0 {
		c.Chart.XStepsPerScreen = chart.DefaultXStepsPerScreen
	}
	if c.Chart.Ceilings == nil {
		c.Chart.Ceilings = map[string]float64{}
	}
	for name, v := range DefaultCeilings() {
		if _, ok := c.Chart.Ceilings[name]; !ok {
			c.Chart.Ceilings[name] = v
		}
	}

	if c.Metrics.Addr == "" {
		c.Metrics.Addr = ":9100"
	}
	if c.Dashboard.Addr == "" {
		c.Dashboard.Addr = ":8080"
	}
	if c.Dashboard.PushInterval == 0 {
		c.Dashboard.PushInterval = 250 * time.Millisecond
	}

	if c.Archive.Table == "" {
		c.Archive.Table = "brew_samples"
	}
	if c.Archive.Policy.MaxQueueLen == 0 {
		c.Archive.Policy.MaxQueueLen = 64
	}
	if c.Archive.Policy.MaxBatchSize == 0 {
		c.Archive.Policy.MaxBatchSize = 16
	}
	if c.Archive.Policy.IdleSleep == 0 {
		c.Archive.Policy.IdleSleep = time.Second
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

// Validate checks the configuration. Every error wraps ErrInvalid.
func (c *Config) Validate() error {
	if err := c.Broker.Validate(); err != nil {
		return fmt.Errorf("%w: broker: %v", ErrInvalid, err)
	}
	if c.Chart.Width <= 0 || c.Chart.Height <= 0 {
		return fmt.Errorf("%w: chart surface must be positive, got %gx%g", ErrInvalid, c.Chart.Width, c.Chart.Height)
	}
	if c.Chart.WindowCap <= 0 {
		return fmt.Errorf("%w: chart.window_cap must be > 0", ErrInvalid)
	}
	if c.Chart.XStepsPerScreen <= 0 {
		return fmt.Errorf("%w: chart.x_steps_per_screen must be > 0", ErrInvalid)
	}
	for name, v := range c.Chart.Ceilings {
		if _, err := domain.ParseMetric(name); err != nil {
			return fmt.Errorf("%w: chart.ceilings: %v", ErrInvalid, err)
		}
		if v <= 0 {
			return fmt.Errorf("%w: chart.ceilings.%s must be > 0, got %g", ErrInvalid, name, v)
		}
	}
	if c.Metrics.Addr == "" {
		return fmt.Errorf("%w: metrics.addr is required", ErrInvalid)
	}
	if c.Dashboard.PushInterval < 0 {
		return fmt.Errorf("%w: dashboard.push_interval must not be negative", ErrInvalid)
	}
	if c.Archive.Enabled() && c.Archive.Table == "" {
		return fmt.Errorf("%w: archive.table is required", ErrInvalid)
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: log.level %q", ErrInvalid, c.Log.Level)
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("%w: log.format %q", ErrInvalid, c.Log.Format)
	}
	return nil
}
