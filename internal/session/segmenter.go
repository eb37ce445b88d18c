package session

import "github.com/ghalamif/BrewFlow/internal/domain"

// Segmenter partitions a sample stream into brew sessions. A preinfusion sample
// that follows a brewing phase closes the current session and opens a new one.
//
// Segmenter is not safe for concurrent use; it belongs to a single writer.
type Segmenter struct {
	brewing bool
	nextID  uint64

	// buf is the writer's append buffer. Snapshots hold capped views of it, so
	// appends past their length stay invisible to readers.
	buf     []domain.Sample
	current *BrewSession
}

func NewSegmenter() *Segmenter {
	return &Segmenter{current: empty}
}

// Brewing reports whether the last transition entered the brewing phase.
func (s *Segmenter) Brewing() bool { return s.brewing }

// Current returns the session in progress.
func (s *Segmenter) Current() *BrewSession { return s.current }

// Push applies the transition rule for sample and appends it to the current
// session. It returns the new snapshot and, when the sample started a new
// cycle, the session that was closed.
func (s *Segmenter) Push(sample domain.Sample) (snapshot, finalized *BrewSession) {
	switch {
	case !s.brewing && sample.State == domain.StateBrewing:
		s.brewing = true
	case s.brewing && sample.State == domain.StatePreinfusion:
		s.brewing = false
		finalized = s.current
		s.buf = nil
		s.current = empty
	}

	next := &BrewSession{id: s.current.id, startedAt: s.current.startedAt}
	if len(s.buf) == 0 {
		s.nextID++
		next.id = s.nextID
		next.startedAt = sample.Seq
	}
	s.buf = append(s.buf, sample)
	next.samples = s.buf[:len(s.buf):len(s.buf)]

	s.current = next
	return next, finalized
}
