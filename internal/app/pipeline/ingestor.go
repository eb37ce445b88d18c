package pipeline

import (
	"errors"

	"github.com/ghalamif/BrewFlow/internal/frame"
	"github.com/ghalamif/BrewFlow/internal/ports"
	"github.com/ghalamif/BrewFlow/internal/session"
)

// Ingestor turns raw frames into session snapshots. It owns the segmenter and
// must only be driven from one goroutine (the connection manager's loop).
type Ingestor struct {
	seg     *session.Segmenter
	store   *session.Store
	archive ports.Queue[*session.BrewSession]
	obs     ports.Observability
	seq     uint64
}

// NewIngestor publishes snapshots to store. archive may be nil, in which case
// finalized sessions are discarded.
func NewIngestor(store *session.Store, archive ports.Queue[*session.BrewSession], obs ports.Observability) *Ingestor {
	return &Ingestor{
		seg:     session.NewSegmenter(),
		store:   store,
		archive: archive,
		obs:     obs,
	}
}

// HandleFrame parses payload and feeds the segmenter. Rejected frames are
// counted and dropped; they never stop the stream.
func (i *Ingestor) HandleFrame(topic string, payload []byte) {
	i.obs.IncCounter(ports.MetricFramesReceived, 1)

	sample, err := frame.Parse(string(payload))
	if err != nil {
		reason := "unknown"
		var pe *frame.ParseError
		if errors.As(err, &pe) {
			reason = pe.Reason()
		}
		i.obs.RecordRejectedFrame(reason, err)
		return
	}

	i.seq++
	sample.Seq = i.seq

	snap, finalized := i.seg.Push(sample)
	if snap.Len() == 1 {
		i.obs.IncCounter(ports.MetricSessionsStarted, 1)
		i.obs.LogInfo("brew session started",
			ports.Field{Key: "session", Value: snap.ID()},
			ports.Field{Key: "seq", Value: sample.Seq},
			ports.Field{Key: "topic", Value: topic})
	}
	i.obs.SetGauge(ports.MetricSessionSamples, float64(snap.Len()))
	i.store.Publish(snap)

	if finalized != nil && finalized.Len() > 0 {
		i.archiveSession(finalized)
	}
}

// Seq returns the sequence index of the last accepted sample.
func (i *Ingestor) Seq() uint64 { return i.seq }

func (i *Ingestor) archiveSession(s *session.BrewSession) {
	if i.archive == nil {
		return
	}
	if !i.archive.Enqueue(s) {
		i.obs.IncCounter(ports.MetricArchiveDropped, 1)
		i.obs.LogWarn("archive queue full, session dropped",
			ports.Field{Key: "session", Value: s.ID()},
			ports.Field{Key: "samples", Value: s.Len()})
	}
}

var _ ports.FrameHandler = (*Ingestor)(nil)
