package brewflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrChannelSinkClosed is returned when a channel sink is written to after being closed.
var ErrChannelSinkClosed = errors.New("brewflow: channel sink closed")

// SessionBatchSink is invoked with finalized sessions, oldest first.
type SessionBatchSink func(ctx context.Context, sessions []*BrewSession) error

// NewCallbackSink adapts a SessionBatchSink into a SessionSink so callers can
// archive sessions with a plain function.
func NewCallbackSink(name string, fn SessionBatchSink) SessionSink {
	if name == "" {
		name = "callback"
	}
	return &callbackSink{name: name, fn: fn}
}

// NewChannelSink exposes finalized sessions via a channel; it returns the sink,
// the read-only channel, and a close function to call during shutdown.
func NewChannelSink(name string, buffer int) (SessionSink, <-chan []*BrewSession, func()) {
	if name == "" {
		name = "channel"
	}
	if buffer < 0 {
		buffer = 0
	}
	s := &channelSink{
		name:   name,
		ch:     make(chan []*BrewSession, buffer),
		closed: make(chan struct{}),
	}
	return s, s.ch, s.close
}

type callbackSink struct {
	name string
	fn   SessionBatchSink
}

func (s *callbackSink) WriteSessions(ctx context.Context, sessions []*BrewSession) error {
	if s.fn == nil {
		return fmt.Errorf("callback sink %q: nil handler", s.name)
	}
	if len(sessions) == 0 {
		return nil
	}
	return s.fn(ctx, sessions)
}

func (s *callbackSink) Name() string { return s.name }

// channelSink writers hold mu for reading while they send, so close never
// closes ch under a pending send.
type channelSink struct {
	name   string
	ch     chan []*BrewSession
	closed chan struct{}
	once   sync.Once
	mu     sync.RWMutex
}

func (s *channelSink) WriteSessions(ctx context.Context, sessions []*BrewSession) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	select {
	case <-s.closed:
		return ErrChannelSinkClosed
	default:
	}
	if len(sessions) == 0 {
		return nil
	}

	batch := append([]*BrewSession(nil), sessions...)
	select {
	case <-s.closed:
		return ErrChannelSinkClosed
	case <-ctx.Done():
		return ctx.Err()
	case s.ch <- batch:
		return nil
	}
}

func (s *channelSink) Name() string { return s.name }

func (s *channelSink) close() {
	s.once.Do(func() {
		close(s.closed)
		s.mu.Lock()
		close(s.ch)
		s.mu.Unlock()
	})
}
