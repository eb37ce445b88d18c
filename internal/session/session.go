// Package session groups ordered telemetry samples into brew sessions and
// publishes read-only snapshots of the session in progress.
package session

import "github.com/ghalamif/BrewFlow/internal/domain"

// BrewSession is an immutable view of the samples belonging to one brew cycle.
// A *BrewSession handed out by the Segmenter or Store is never modified; newer
// samples arrive as a new *BrewSession.
type BrewSession struct {
	id        uint64
	startedAt uint64
	samples   []domain.Sample
}

var empty = &BrewSession{}

// Empty returns a session with no samples.
func Empty() *BrewSession { return empty }

// ID identifies the session within this process. Zero means no session has
// started yet.
func (b *BrewSession) ID() uint64 { return b.id }

// StartedAtSeq is the sequence index of the first sample, or zero when empty.
func (b *BrewSession) StartedAtSeq() uint64 { return b.startedAt }

func (b *BrewSession) Len() int { return len(b.samples) }

// At returns the i-th sample in arrival order.
func (b *BrewSession) At(i int) domain.Sample { return b.samples[i] }

// Samples returns a copy of the samples in arrival order.
func (b *BrewSession) Samples() []domain.Sample {
	out := make([]domain.Sample, len(b.samples))
	copy(out, b.samples)
	return out
}

// Last returns the newest sample.
func (b *BrewSession) Last() (domain.Sample, bool) {
	if len(b.samples) == 0 {
		return domain.Sample{}, false
	}
	return b.samples[len(b.samples)-1], true
}

// Description is the newest sample's description, used as the legend caption.
func (b *BrewSession) Description() string {
	last, ok := b.Last()
	if !ok {
		return ""
	}
	return last.Description
}

// Series extracts one metric across every sample, oldest first.
func (b *BrewSession) Series(m domain.Metric) []float64 {
	out := make([]float64, len(b.samples))
	for i, s := range b.samples {
		out[i] = s.Value(m)
	}
	return out
}

// Max returns the largest value of m in the session.
func (b *BrewSession) Max(m domain.Metric) (float64, bool) {
	if len(b.samples) == 0 {
		return 0, false
	}
	max := b.samples[0].Value(m)
	for _, s := range b.samples[1:] {
		if v := s.Value(m); v > max {
			max = v
		}
	}
	return max, true
}
