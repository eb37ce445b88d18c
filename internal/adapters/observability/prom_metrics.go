package observability

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ghalamif/BrewFlow/internal/ports"
)

type PromObs struct {
	logger   *slog.Logger
	counters map[string]prometheus.Counter
	gauges   map[string]prometheus.Gauge
	histos   map[string]prometheus.Observer
	rejected *prometheus.CounterVec
}

// NewPromObs registers the dashboard's collectors with reg. A nil reg uses the
// default registerer, a nil logger uses slog.Default.
func NewPromObs(reg prometheus.Registerer, logger *slog.Logger) *PromObs {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if logger == nil {
		logger = slog.Default()
	}

	counter := func(name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{Name: name, Help: help})
	}
	gauge := func(name, help string) prometheus.Gauge {
		return prometheus.NewGauge(prometheus.GaugeOpts{Name: name, Help: help})
	}

	received := counter(ports.MetricFramesReceived, "Raw telemetry frames delivered by the transport.")
	sessions := counter(ports.MetricSessionsStarted, "Brew sessions opened by the segmenter.")
	attempts := counter(ports.MetricConnectAttempts, "Broker connect attempts, including retries.")
	lost := counter(ports.MetricConnectionLost, "Broker connections lost after being established.")
	outboxDrops := counter(ports.MetricOutboxDropped, "Outbound messages dropped because the offline buffer was full.")
	archived := counter(ports.MetricArchiveWritten, "Finalized brew sessions written to the archive sink.")
	archiveFailed := counter(ports.MetricArchiveFailed, "Archive batch writes that failed and were retried.")
	archiveDrops := counter(ports.MetricArchiveDropped, "Finalized sessions dropped because the archive queue was full.")

	samples := gauge(ports.MetricSessionSamples, "Samples in the brew session currently shown.")
	state := gauge(ports.MetricConnectionState, "Connection phase: 0 disconnected, 1 connecting, 2 connected, 3 reconnect pending.")
	outboxLen := gauge(ports.MetricOutboxLength, "Messages waiting in the offline buffer.")

	latency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    ports.MetricArchiveLatency,
		Help:    "Time spent writing one batch of finalized sessions to the archive sink.",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
	})
	rejected := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: ports.MetricFramesRejected,
		Help: "Frames dropped by the parser, by reason.",
	}, []string{"reason"})

	reg.MustRegister(received, sessions, attempts, lost, outboxDrops, archived, archiveFailed,
		archiveDrops, samples, state, outboxLen, latency, rejected)

	return &PromObs{
		logger: logger,
		counters: map[string]prometheus.Counter{
			ports.MetricFramesReceived:  received,
			ports.MetricSessionsStarted: sessions,
			ports.MetricConnectAttempts: attempts,
			ports.MetricConnectionLost:  lost,
			ports.MetricOutboxDropped:   outboxDrops,
			ports.MetricArchiveWritten:  archived,
			ports.MetricArchiveFailed:   archiveFailed,
			ports.MetricArchiveDropped:  archiveDrops,
		},
		gauges: map[string]prometheus.Gauge{
			ports.MetricSessionSamples:  samples,
			ports.MetricConnectionState: state,
			ports.MetricOutboxLength:    outboxLen,
		},
		histos: map[string]prometheus.Observer{
			ports.MetricArchiveLatency: latency,
		},
		rejected: rejected,
	}
}

func (p *PromObs) LogInfo(msg string, fields ...ports.Field) {
	p.logger.Info(msg, attrs(fields)...)
}

func (p *PromObs) LogWarn(msg string, fields ...ports.Field) {
	p.logger.Warn(msg, attrs(fields)...)
}

func (p *PromObs) LogError(msg string, err error, fields ...ports.Field) {
	args := attrs(fields)
	if err != nil {
		args = append(args, slog.Any("error", err))
	}
	p.logger.Error(msg, args...)
}

func (p *PromObs) IncCounter(name string, v float64) {
	if c, ok := p.counters[name]; ok {
		c.Add(v)
	}
}

func (p *PromObs) ObserveLatency(name string, seconds float64) {
	if h, ok := p.histos[name]; ok {
		h.Observe(seconds)
	}
}

func (p *PromObs) SetGauge(name string, v float64) {
	if g, ok := p.gauges[name]; ok {
		g.Set(v)
	}
}

func (p *PromObs) RecordRejectedFrame(reason string, err error) {
	p.rejected.WithLabelValues(reason).Inc()
	p.logger.Warn("frame_rejected", slog.String("reason", reason), slog.Any("error", err))
}

func attrs(fields []ports.Field) []any {
	out := make([]any, 0, len(fields))
	for _, f := range fields {
		out = append(out, slog.Any(f.Key, f.Value))
	}
	return out
}

var _ ports.Observability = (*PromObs)(nil)
