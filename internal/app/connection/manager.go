package connection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/benbjohnson/clock"

	"github.com/ghalamif/BrewFlow/internal/adapters/observability"
	"github.com/ghalamif/BrewFlow/internal/adapters/queue"
	"github.com/ghalamif/BrewFlow/internal/ports"
)

var (
	// ErrOutboxFull is returned by Publish when the offline buffer rejected the message.
	ErrOutboxFull = errors.New("connection: outbox full, message dropped")
	// ErrNotConnected is returned by Publish while disconnected with buffering disabled.
	ErrNotConnected = errors.New("connection: not connected")
	// ErrStopped is returned once Stop has been called.
	ErrStopped = errors.New("connection: manager stopped")
)

// Option customizes a Manager.
type Option func(*Manager)

// WithClock replaces the wall clock driving retry timers and client ids.
func WithClock(c clock.Clock) Option {
	return func(m *Manager) {
		if c != nil {
			m.clock = c
		}
	}
}

// WithObservability routes metrics and lifecycle logs to obs.
func WithObservability(obs ports.Observability) Option {
	return func(m *Manager) {
		if obs != nil {
			m.obs = obs
		}
	}
}

// WithStateObserver registers fn to be called on every state transition. fn
// runs on the manager's loop goroutine and must not block.
func WithStateObserver(fn func(State)) Option {
	return func(m *Manager) {
		m.observer = fn
	}
}

// WithLogger sets the logger used for per-attempt debug output.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

type message struct {
	topic   string
	payload []byte
}

type eventKind int

const (
	evConnectResult eventKind = iota
	evConnectionLost
	evMessage
	evRetry
	evPublish
)

type event struct {
	kind  eventKind
	gen   uint64
	err   error
	msg   message
	reply chan error
}

// Manager owns the broker connection. A single loop goroutine performs every
// state transition and delivers frames to the handler in arrival order;
// transport callbacks and timers only post events to it.
type Manager struct {
	cfg       Config
	transport ports.Transport
	handler   ports.FrameHandler
	clock     clock.Clock
	obs       ports.Observability
	logger    *slog.Logger
	observer  func(State)
	outbox    *queue.MemQueue[message]

	state atomic.Pointer[State]

	mu      sync.Mutex
	running bool
	stopped bool
	cancel  context.CancelFunc
	done    chan struct{}
	events  chan event

	// owned by the loop goroutine
	wg            sync.WaitGroup
	gen           uint64
	attempt       int
	phase         Phase
	timer         *clock.Timer
	attemptCancel context.CancelFunc
	lastMillis    int64
	lostGen       uint64 // generation whose link dropped before its connect result was handled
}

// New validates cfg and returns a stopped manager. handler receives every
// inbound payload on the loop goroutine.
func New(cfg Config, transport ports.Transport, handler ports.FrameHandler, opts ...Option) (*Manager, error) {
	if transport == nil {
		return nil, fmt.Errorf("transport is required")
	}
	if handler == nil {
		return nil, fmt.Errorf("frame handler is required")
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("broker config: %w", err)
	}

	m := &Manager{
		cfg:       cfg,
		transport: transport,
		handler:   handler,
		clock:     clock.New(),
		obs:       observability.Nop{},
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	if cfg.Outbox.Enabled {
		m.outbox = queue.NewMemQueue[message](cfg.Outbox.Capacity, cfg.Outbox.DeleteOldest)
	}
	m.state.Store(&State{Phase: Disconnected})
	return m, nil
}

// State returns the latest connection state. Safe from any goroutine.
func (m *Manager) State() State {
	return *m.state.Load()
}

// Config returns the effective configuration after defaults.
func (m *Manager) Config() Config {
	return m.cfg
}

// Start begins the connect sequence and returns immediately. Calling it again
// while the manager is running is a no-op.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped {
		return ErrStopped
	}
	if m.running {
		return nil
	}

	loopCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.done = make(chan struct{})
	m.events = make(chan event, m.cfg.InboundBuffer)
	m.running = true

	go m.run(loopCtx, m.events, m.done)
	return nil
}

// Stop cancels the pending retry timer and any in-flight connect attempt,
// disconnects the transport and waits for the loop to exit. It is safe to call
// more than once and before Start.
func (m *Manager) Stop() {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return
	}
	m.stopped = true
	cancel, done := m.cancel, m.done
	m.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Publish sends payload when connected. While disconnected the message is held
// in the offline buffer and flushed after the next successful connect.
func (m *Manager) Publish(ctx context.Context, topic string, payload []byte) error {
	m.mu.Lock()
	stopped, running, events, done := m.stopped, m.running, m.events, m.done
	m.mu.Unlock()

	if stopped {
		return ErrStopped
	}
	msg := message{topic: topic, payload: append([]byte(nil), payload...)}
	if !running {
		return m.buffer(msg)
	}

	reply := make(chan error, 1)
	select {
	case events <- event{kind: evPublish, msg: msg, reply: reply}:
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return ErrStopped
	}
	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return ErrStopped
	}
}

// Outboxed reports how many messages wait in the offline buffer.
func (m *Manager) Outboxed() int {
	if m.outbox == nil {
		return 0
	}
	return m.outbox.Len()
}

func (m *Manager) run(ctx context.Context, events chan event, done chan struct{}) {
	defer close(done)

	m.obs.LogInfo("connection manager started",
		ports.Field{Key: "endpoint", Value: m.cfg.Endpoint},
		ports.Field{Key: "topic", Value: m.cfg.Topic})
	m.connect(ctx, events)

	for {
		select {
		case <-ctx.Done():
			m.shutdown()
			return
		case ev := <-events:
			m.handle(ctx, events, ev)
		}
	}
}

func (m *Manager) handle(ctx context.Context, events chan event, ev event) {
	switch ev.kind {
	case evMessage:
		m.handler.HandleFrame(ev.msg.topic, ev.msg.payload)

	case evConnectResult:
		if ev.gen != m.gen || m.phase != Connecting {
			return
		}
		m.attemptCancel = nil
		if ev.err != nil {
			if ctx.Err() != nil {
				return
			}
			m.obs.LogWarn("connect attempt failed",
				ports.Field{Key: "attempt", Value: m.attempt},
				ports.Field{Key: "error", Value: ev.err.Error()})
			m.scheduleRetry(ctx, events)
			return
		}
		if m.lostGen == ev.gen {
			m.transport.Disconnect()
			m.obs.IncCounter(ports.MetricConnectionLost, 1)
			m.obs.LogWarn("connection lost before subscribe completed",
				ports.Field{Key: "attempt", Value: m.attempt})
			m.scheduleRetry(ctx, events)
			return
		}
		m.setState(State{Phase: Connected, Attempt: m.attempt})
		m.attempt = 0
		m.obs.LogInfo("connected and subscribed", ports.Field{Key: "topic", Value: m.cfg.Topic})
		m.applyBufferPolicy()
		m.flushOutbox(ctx)

	case evConnectionLost:
		if ev.gen != m.gen {
			return
		}
		if m.phase == Connecting {
			m.lostGen = ev.gen
			return
		}
		if m.phase != Connected {
			return
		}
		m.obs.IncCounter(ports.MetricConnectionLost, 1)
		m.obs.LogWarn("connection lost", ports.Field{Key: "error", Value: errString(ev.err)})
		m.scheduleRetry(ctx, events)

	case evRetry:
		if ev.gen != m.gen || m.phase != ReconnectPending {
			return
		}
		m.timer = nil
		m.connect(ctx, events)

	case evPublish:
		if m.phase != Connected {
			ev.reply <- m.buffer(ev.msg)
			return
		}
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			ev.reply <- m.transport.Publish(ctx, ev.msg.topic, m.cfg.QoS, ev.msg.payload)
		}()
	}
}

// connect starts a new client generation and launches the attempt off the loop.
func (m *Manager) connect(ctx context.Context, events chan event) {
	m.gen++
	m.attempt++
	gen := m.gen

	m.transport.SetHandlers(ports.TransportHandlers{
		OnMessage: func(topic string, payload []byte) {
			m.post(ctx, events, event{kind: evMessage, gen: gen, msg: message{topic: topic, payload: payload}})
		},
		OnConnectionLost: func(err error) {
			m.post(ctx, events, event{kind: evConnectionLost, gen: gen, err: err})
		},
	})

	opts := ports.ConnectOptions{
		Endpoint:     m.cfg.Endpoint,
		ClientID:     m.nextClientID(),
		Credentials:  m.cfg.credentials(),
		CleanSession: m.cfg.CleanSession,
	}
	m.obs.IncCounter(ports.MetricConnectAttempts, 1)
	m.logger.Debug("connect attempt", "client_id", opts.ClientID, "attempt", m.attempt)
	m.setState(State{Phase: Connecting, Attempt: m.attempt})

	attemptCtx, cancel := context.WithTimeout(ctx, m.cfg.ConnectTimeout)
	m.attemptCancel = cancel

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer cancel()
		err := m.transport.Connect(attemptCtx, opts)
		if err == nil {
			if err = m.transport.Subscribe(attemptCtx, m.cfg.Topic, m.cfg.QoS); err != nil {
				m.transport.Disconnect()
				err = fmt.Errorf("subscribe %s: %w", m.cfg.Topic, err)
			}
		}
		m.post(ctx, events, event{kind: evConnectResult, gen: gen, err: err})
	}()
}

// scheduleRetry arms the backoff timer before publishing ReconnectPending so an
// observer that advances the clock on that state always fires the timer.
func (m *Manager) scheduleRetry(ctx context.Context, events chan event) {
	delay := m.cfg.ReconnectBackoff
	gen := m.gen
	m.timer = m.clock.AfterFunc(delay, func() {
		m.post(ctx, events, event{kind: evRetry, gen: gen})
	})
	m.setState(State{Phase: ReconnectPending, Delay: delay, Attempt: m.attempt})
}

func (m *Manager) shutdown() {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	if m.attemptCancel != nil {
		m.attemptCancel()
		m.attemptCancel = nil
	}
	m.wg.Wait()
	m.transport.Disconnect()
	m.setState(State{Phase: Disconnected})
	m.obs.LogInfo("connection manager stopped")
}

func (m *Manager) post(ctx context.Context, events chan event, ev event) {
	select {
	case events <- ev:
	case <-ctx.Done():
	}
}

func (m *Manager) setState(s State) {
	m.phase = s.Phase
	m.state.Store(&s)
	m.obs.SetGauge(ports.MetricConnectionState, float64(s.Phase))
	if m.observer != nil {
		m.observer(s)
	}
}

// nextClientID suffixes the base identity with the current unix millis, bumped
// when two attempts land in the same millisecond.
func (m *Manager) nextClientID() string {
	ms := m.clock.Now().UnixMilli()
	if ms <= m.lastMillis {
		ms = m.lastMillis + 1
	}
	m.lastMillis = ms
	return fmt.Sprintf("%s-%d", m.cfg.ClientID, ms)
}

// applyBufferPolicy runs after every successful connect.
func (m *Manager) applyBufferPolicy() {
	p := m.cfg.Outbox
	m.logger.Debug("offline buffer policy",
		"enabled", p.Enabled, "capacity", p.Capacity, "persist", p.Persist, "delete_oldest", p.DeleteOldest)
	m.obs.SetGauge(ports.MetricOutboxLength, float64(m.Outboxed()))
}

func (m *Manager) buffer(msg message) error {
	if m.outbox == nil {
		return ErrNotConnected
	}
	before := m.outbox.Evicted()
	if !m.outbox.Enqueue(msg) {
		m.obs.IncCounter(ports.MetricOutboxDropped, 1)
		return ErrOutboxFull
	}
	if evicted := m.outbox.Evicted() - before; evicted > 0 {
		m.obs.IncCounter(ports.MetricOutboxDropped, float64(evicted))
	}
	m.obs.SetGauge(ports.MetricOutboxLength, float64(m.outbox.Len()))
	return nil
}

func (m *Manager) flushOutbox(ctx context.Context) {
	if m.outbox == nil || m.outbox.Len() == 0 {
		return
	}
	pending := m.outbox.DequeueBatch(0)
	m.obs.SetGauge(ports.MetricOutboxLength, 0)

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		for i, msg := range pending {
			if err := m.transport.Publish(ctx, msg.topic, m.cfg.QoS, msg.payload); err != nil {
				m.obs.LogError("flush offline buffer", err, ports.Field{Key: "remaining", Value: len(pending) - i})
				for _, rest := range pending[i:] {
					m.outbox.Enqueue(rest)
				}
				m.obs.SetGauge(ports.MetricOutboxLength, float64(m.outbox.Len()))
				return
			}
		}
	}()
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
