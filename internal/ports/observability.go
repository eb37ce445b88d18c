package ports

type Observability interface {
	LogInfo(msg string, fields ...Field)
	LogWarn(msg string, fields ...Field)
	LogError(msg string, err error, fields ...Field)

	IncCounter(name string, v float64)
	ObserveLatency(name string, seconds float64)

	SetGauge(name string, v float64)

	RecordRejectedFrame(reason string, err error)
}

type Field struct {
	Key   string
	Value any
}

// Metric names shared by producers and the Prometheus adapter.
const (
	MetricFramesReceived  = "brew_frames_received_total"
	MetricFramesRejected  = "brew_frames_rejected_total"
	MetricSessionsStarted = "brew_sessions_started_total"
	MetricSessionSamples  = "brew_session_samples"
	MetricConnectionState = "brew_connection_state"
	MetricConnectAttempts = "brew_connect_attempts_total"
	MetricConnectionLost  = "brew_connection_lost_total"
	MetricOutboxLength    = "brew_outbox_length"
	MetricOutboxDropped   = "brew_outbox_dropped_total"
	MetricArchiveWritten  = "brew_archive_written_total"
	MetricArchiveFailed   = "brew_archive_failed_total"
	MetricArchiveDropped  = "brew_archive_dropped_total"
	MetricArchiveLatency  = "brew_archive_latency_seconds"
)
