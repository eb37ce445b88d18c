package brewflow

import (
	"github.com/ghalamif/BrewFlow/internal/app/connection"
	"github.com/ghalamif/BrewFlow/internal/chart"
	"github.com/ghalamif/BrewFlow/internal/domain"
	"github.com/ghalamif/BrewFlow/internal/frame"
	"github.com/ghalamif/BrewFlow/internal/ports"
	"github.com/ghalamif/BrewFlow/internal/session"
)

// Sample is one decoded telemetry frame.
type Sample = domain.Sample

// Metric selects one numeric series of a Sample.
type Metric = domain.Metric

const (
	MetricWeight      = domain.MetricWeight
	MetricPressure    = domain.MetricPressure
	MetricDutyCycle   = domain.MetricDutyCycle
	MetricFlowRate    = domain.MetricFlowRate
	MetricTemperature = domain.MetricTemperature
)

// BrewSession is an immutable snapshot of the brew cycle in progress.
type BrewSession = session.BrewSession

type (
	// Geometry is a chart path ready for any cubic-capable renderer.
	Geometry = chart.Geometry
	Point    = chart.Point
	Segment  = chart.Segment
	Surface  = chart.Surface
)

// ConnectionState is the broker connection state shown to the renderer.
type ConnectionState = connection.State

// Phase is the coarse connection phase.
type Phase = connection.Phase

const (
	Disconnected     = connection.Disconnected
	Connecting       = connection.Connecting
	Connected        = connection.Connected
	ReconnectPending = connection.ReconnectPending
)

// Transport is the publish/subscribe collaborator (MQTT, replay file, in-process source).
type Transport = ports.Transport

// TransportHandlers receive asynchronous transport events.
type TransportHandlers = ports.TransportHandlers

// ConnectOptions describe one connect attempt.
type ConnectOptions = ports.ConnectOptions

// SessionSink archives finalized brew sessions.
type SessionSink = ports.SessionSink

// Observability emits metrics and logs about frames, sessions and the connection.
type Observability = ports.Observability

// Field is a structured log field used by Observability implementations.
type Field = ports.Field

var (
	// ErrMalformedFrame reports a frame with fewer than seven fields.
	ErrMalformedFrame = frame.ErrMalformedFrame
	// ErrInvalidNumber reports a numeric field that does not parse.
	ErrInvalidNumber = frame.ErrInvalidNumber
)

// ParseFrame decodes one raw telemetry line. The returned sample has Seq 0;
// sequence numbers are assigned by the dashboard on ingest.
func ParseFrame(raw string) (Sample, error) {
	return frame.Parse(raw)
}

// ParseMetric resolves a metric by its series name, e.g. "pressure_bars".
func ParseMetric(name string) (Metric, error) {
	return domain.ParseMetric(name)
}

// Metrics lists every metric in display order.
func Metrics() []Metric {
	return append([]Metric(nil), domain.Metrics...)
}
