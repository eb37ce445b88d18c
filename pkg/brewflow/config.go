package brewflow

import (
	"github.com/ghalamif/BrewFlow/internal/app/config"
	"github.com/ghalamif/BrewFlow/internal/app/connection"
	"github.com/ghalamif/BrewFlow/internal/ports"
)

// Config re-exports the root configuration struct so downstream projects can
// construct or modify it programmatically.
type Config = config.Config

type (
	// BrokerConfig holds the MQTT endpoint, credentials, topic and retry timing.
	BrokerConfig = connection.Config
	// OutboxConfig configures the offline buffer for outbound messages.
	OutboxConfig = config.OutboxConfig
	// BufferPolicy is the resolved offline buffer policy.
	BufferPolicy = ports.BufferPolicy
	// ChartConfig sets the drawing surface, window cap and per-metric ceilings.
	ChartConfig = config.ChartConfig
	// MetricsConfig configures the metrics HTTP server.
	MetricsConfig = config.MetricsConfig
	// DashboardConfig configures the JSON/websocket server.
	DashboardConfig = config.DashboardConfig
	// ArchiveConfig enables the PostgreSQL session archive.
	ArchiveConfig = config.ArchiveConfig
	// ArchivePolicy bounds the archive queue and batches.
	ArchivePolicy = ports.ArchivePolicy
	// LogConfig selects the log level and format.
	LogConfig = config.LogConfig
)

// ErrInvalidConfig wraps every configuration validation failure.
var ErrInvalidConfig = config.ErrInvalid

// LoadConfig loads YAML from disk using the internal config reader, with .env
// and environment overrides applied.
func LoadConfig(path string) (*Config, error) {
	return config.Load(path)
}

// DefaultConfig returns a configuration with every default applied. The broker
// endpoint still has to be set.
func DefaultConfig() *Config {
	return config.Default()
}
