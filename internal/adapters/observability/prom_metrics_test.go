package observability

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/ghalamif/BrewFlow/internal/ports"
)

func TestPromObsMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	obs := NewPromObs(reg, Discard())

	obs.IncCounter(ports.MetricFramesReceived, 5)
	if got := testutil.ToFloat64(obs.counters[ports.MetricFramesReceived]); got != 5 {
		t.Fatalf("expected received counter 5, got %f", got)
	}

	obs.IncCounter(ports.MetricOutboxDropped, 2)
	if got := testutil.ToFloat64(obs.counters[ports.MetricOutboxDropped]); got != 2 {
		t.Fatalf("expected outbox drop counter 2, got %f", got)
	}

	obs.SetGauge(ports.MetricConnectionState, 2)
	if got := testutil.ToFloat64(obs.gauges[ports.MetricConnectionState]); got != 2 {
		t.Fatalf("expected connection state gauge 2, got %f", got)
	}

	obs.ObserveLatency(ports.MetricArchiveLatency, 0.5)
	hCollector := obs.histos[ports.MetricArchiveLatency].(prometheus.Collector)
	if samples := testutil.CollectAndCount(hCollector); samples != 1 {
		t.Fatalf("expected latency histogram to record 1 sample, got %d", samples)
	}

	obs.RecordRejectedFrame("invalid_number", errors.New("bad"))
	obs.RecordRejectedFrame("invalid_number", errors.New("bad"))
	if got := testutil.ToFloat64(obs.rejected.WithLabelValues("invalid_number")); got != 2 {
		t.Fatalf("expected rejected counter 2, got %f", got)
	}

	obs.IncCounter("unknown_metric", 1)
	obs.SetGauge("unknown_metric", 1)
}

func TestPromObsLogsStructuredFields(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger(&buf, "info", "text")
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}
	obs := NewPromObs(prometheus.NewRegistry(), logger)

	obs.LogInfo("connected", ports.Field{Key: "client_id", Value: "robogaggia-1"})
	obs.LogError("subscribe_failed", errors.New("timeout"))

	out := buf.String()
	if !strings.Contains(out, "client_id=robogaggia-1") {
		t.Fatalf("expected field in log output, got %q", out)
	}
	if !strings.Contains(out, "error=timeout") {
		t.Fatalf("expected error in log output, got %q", out)
	}
}

func TestNewLoggerRejectsUnknownSettings(t *testing.T) {
	if _, err := NewLogger(&bytes.Buffer{}, "loud", "text"); err == nil {
		t.Fatalf("expected error for unknown level")
	}
	if _, err := NewLogger(&bytes.Buffer{}, "info", "xml"); err == nil {
		t.Fatalf("expected error for unknown format")
	}
	if _, err := NewLogger(&bytes.Buffer{}, "debug", "json"); err != nil {
		t.Fatalf("json logger: %v", err)
	}
}
