// Package replay plays recorded telemetry frames through the transport port so
// the dashboard can run without a broker.
package replay

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/ghalamif/BrewFlow/internal/ports"
)

const DefaultInterval = 500 * time.Millisecond

var ErrNoFrames = errors.New("replay: no frames to play")

type Option func(*Transport)

// WithInterval sets the delay between frames.
func WithInterval(d time.Duration) Option {
	return func(t *Transport) {
		if d > 0 {
			t.interval = d
		}
	}
}

// WithLoop restarts playback from the first frame after the last one.
func WithLoop(loop bool) Option {
	return func(t *Transport) { t.loop = loop }
}

func WithClock(c clock.Clock) Option {
	return func(t *Transport) {
		if c != nil {
			t.clock = c
		}
	}
}

// Transport emits one frame per interval once subscribed. Published messages
// are counted and discarded.
type Transport struct {
	frames   []string
	interval time.Duration
	loop     bool
	clock    clock.Clock

	mu        sync.Mutex
	handlers  ports.TransportHandlers
	connected bool
	stop      chan struct{}
	done      chan struct{}
	published int
}

func New(frames []string, opts ...Option) *Transport {
	t := &Transport{
		frames:   frames,
		interval: DefaultInterval,
		clock:    clock.New(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(t)
		}
	}
	return t
}

// Load reads frames from path, one per line. Blank lines and lines starting
// with '#' are skipped.
func Load(path string, opts ...Option) (*Transport, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	frames, err := ReadFrames(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return New(frames, opts...), nil
}

func ReadFrames(r io.Reader) ([]string, error) {
	var frames []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		frames = append(frames, line)
	}
	return frames, sc.Err()
}

func (t *Transport) SetHandlers(h ports.TransportHandlers) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.handlers = h
}

func (t *Transport) Connect(ctx context.Context, _ ports.ConnectOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(t.frames) == 0 {
		return ErrNoFrames
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.connected = true
	return nil
}

// Subscribe starts playback on topic. A second call while playing is a no-op.
func (t *Transport) Subscribe(ctx context.Context, topic string, _ byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.connected {
		return errors.New("replay: not connected")
	}
	if t.stop != nil {
		return nil
	}
	t.stop = make(chan struct{})
	t.done = make(chan struct{})
	go t.play(topic, t.handlers, t.stop, t.done)
	return nil
}

func (t *Transport) Publish(ctx context.Context, _ string, _ byte, _ []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.published++
	return nil
}

// Published reports how many messages were handed to Publish.
func (t *Transport) Published() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.published
}

func (t *Transport) Disconnect() {
	t.mu.Lock()
	stop, done := t.stop, t.done
	t.stop, t.done = nil, nil
	t.connected = false
	t.mu.Unlock()

	if stop != nil {
		close(stop)
		<-done
	}
}

func (t *Transport) play(topic string, h ports.TransportHandlers, stop, done chan struct{}) {
	defer close(done)
	ticker := t.clock.Ticker(t.interval)
	defer ticker.Stop()

	for i := 0; ; i++ {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}
		if i == len(t.frames) {
			if !t.loop {
				return
			}
			i = 0
		}
		if h.OnMessage != nil {
			h.OnMessage(topic, []byte(t.frames[i]))
		}
	}
}

var _ ports.Transport = (*Transport)(nil)
