package pipeline

import (
	"context"
	"time"

	"github.com/ghalamif/BrewFlow/internal/ports"
	"github.com/ghalamif/BrewFlow/internal/session"
)

const defaultIdleSleep = 50 * time.Millisecond

// RunArchivePipeline drains finalized sessions from q into sink until ctx ends.
// A failed batch is kept and retried after pol.IdleSleep.
func RunArchivePipeline(ctx context.Context, q ports.Queue[*session.BrewSession], sink ports.SessionSink, pol ports.ArchivePolicy, obs ports.Observability) {
	sleep := pol.IdleSleep
	if sleep <= 0 {
		sleep = defaultIdleSleep
	}

	var pending []*session.BrewSession
	for {
		if len(pending) == 0 {
			pending = q.DequeueBatch(pol.MaxBatchSize)
		}
		if len(pending) == 0 {
			if !idle(ctx, sleep) {
				return
			}
			continue
		}

		start := time.Now()
		if err := sink.WriteSessions(ctx, pending); err != nil {
			if ctx.Err() != nil {
				return
			}
			obs.IncCounter(ports.MetricArchiveFailed, 1)
			obs.LogError("archive_write_failed", err,
				ports.Field{Key: "sink", Value: sink.Name()},
				ports.Field{Key: "sessions", Value: len(pending)})
			if !idle(ctx, sleep) {
				return
			}
			continue
		}
		obs.ObserveLatency(ports.MetricArchiveLatency, time.Since(start).Seconds())
		obs.IncCounter(ports.MetricArchiveWritten, float64(len(pending)))
		pending = nil
	}
}

func idle(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
