package brewflow

import (
	"time"

	base "github.com/ghalamif/BrewFlow/pkg/brewflow"
)

// Re-exported errors for convenience.
var (
	ErrInvalidConfig     = base.ErrInvalidConfig
	ErrAlreadyStarted    = base.ErrAlreadyStarted
	ErrChannelSinkClosed = base.ErrChannelSinkClosed
	ErrNotSubscribed     = base.ErrNotSubscribed
	ErrMalformedFrame    = base.ErrMalformedFrame
	ErrInvalidNumber     = base.ErrInvalidNumber
)

// Type aliases so consumers can import github.com/ghalamif/BrewFlow directly.
type (
	Config           = base.Config
	BrokerConfig     = base.BrokerConfig
	OutboxConfig     = base.OutboxConfig
	BufferPolicy     = base.BufferPolicy
	ChartConfig      = base.ChartConfig
	MetricsConfig    = base.MetricsConfig
	DashboardConfig  = base.DashboardConfig
	ArchiveConfig    = base.ArchiveConfig
	ArchivePolicy    = base.ArchivePolicy
	LogConfig        = base.LogConfig
	Flow             = base.Flow
	FlowOption       = base.FlowOption
	StreamInOption   = base.StreamInOption
	StreamOutOption  = base.StreamOutOption
	Dashboard        = base.Dashboard
	DashboardOption  = base.DashboardOption
	Sample           = base.Sample
	Metric           = base.Metric
	BrewSession      = base.BrewSession
	Geometry         = base.Geometry
	Point            = base.Point
	Segment          = base.Segment
	Surface          = base.Surface
	ConnectionState  = base.ConnectionState
	Phase            = base.Phase
	Transport        = base.Transport
	SessionSink      = base.SessionSink
	SessionBatchSink = base.SessionBatchSink
	Observability    = base.Observability
	ExternalSource   = base.ExternalSource
	OutboundMessage  = base.OutboundMessage
)

const (
	MetricWeight      = base.MetricWeight
	MetricPressure    = base.MetricPressure
	MetricDutyCycle   = base.MetricDutyCycle
	MetricFlowRate    = base.MetricFlowRate
	MetricTemperature = base.MetricTemperature

	Disconnected     = base.Disconnected
	Connecting       = base.Connecting
	Connected        = base.Connected
	ReconnectPending = base.ReconnectPending
)

// Config helpers.
func LoadConfig(path string) (*Config, error) {
	return base.LoadConfig(path)
}

func DefaultConfig() *Config {
	return base.DefaultConfig()
}

// Frame helpers.
func ParseFrame(raw string) (Sample, error) {
	return base.ParseFrame(raw)
}

func ParseMetric(name string) (Metric, error) {
	return base.ParseMetric(name)
}

// Flow builder helpers.
func Conf(path string, opts ...FlowOption) (*Flow, error) {
	return base.Conf(path, opts...)
}

func ConfFromConfig(cfg *Config, opts ...FlowOption) (*Flow, error) {
	return base.ConfFromConfig(cfg, opts...)
}

func WithFlowOptions(opts ...DashboardOption) FlowOption {
	return base.WithFlowOptions(opts...)
}

func StreamInTransport(tr Transport) StreamInOption {
	return base.StreamInTransport(tr)
}

func StreamInReplay(path string, interval time.Duration, loop bool) StreamInOption {
	return base.StreamInReplay(path, interval, loop)
}

func StreamInObservability(obs Observability) StreamInOption {
	return base.StreamInObservability(obs)
}

func StreamOutSink(s SessionSink) StreamOutOption {
	return base.StreamOutSink(s)
}

func StreamOutObservability(obs Observability) StreamOutOption {
	return base.StreamOutObservability(obs)
}

func StreamOutCallback(name string, fn SessionBatchSink) StreamOutOption {
	return base.StreamOutCallback(name, fn)
}

// Dashboard and options.
func NewDashboard(cfg *Config, opts ...DashboardOption) (*Dashboard, error) {
	return base.NewDashboard(cfg, opts...)
}

func WithTransport(tr Transport) DashboardOption {
	return base.WithTransport(tr)
}

func WithSessionSink(s SessionSink) DashboardOption {
	return base.WithSessionSink(s)
}

func WithObservability(obs Observability) DashboardOption {
	return base.WithObservability(obs)
}

func WithServers(enabled bool) DashboardOption {
	return base.WithServers(enabled)
}

// Sink adapters.
func NewCallbackSink(name string, fn SessionBatchSink) SessionSink {
	return base.NewCallbackSink(name, fn)
}

func NewChannelSink(name string, buffer int) (SessionSink, <-chan []*BrewSession, func()) {
	return base.NewChannelSink(name, buffer)
}

// External source.
func NewExternalSource() *ExternalSource {
	return base.NewExternalSource()
}
