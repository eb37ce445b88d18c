package connection

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/require"

	"github.com/ghalamif/BrewFlow/internal/ports"
)

type fakeTransport struct {
	mu              sync.Mutex
	handlers        []ports.TransportHandlers
	connects        []ports.ConnectOptions
	connectErrs     []error
	subscribes      []string
	subscribeErrs   []error
	dropOnSubscribe int // report a lost link from inside the next N subscribes
	published       []string
	disconnects     int
}

func (f *fakeTransport) SetHandlers(h ports.TransportHandlers) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers = append(f.handlers, h)
}

func (f *fakeTransport) Connect(ctx context.Context, opts ports.ConnectOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connects = append(f.connects, opts)
	if len(f.connectErrs) > 0 {
		err := f.connectErrs[0]
		f.connectErrs = f.connectErrs[1:]
		return err
	}
	return ctx.Err()
}

func (f *fakeTransport) Subscribe(_ context.Context, topic string, _ byte) error {
	f.mu.Lock()
	f.subscribes = append(f.subscribes, topic)
	if len(f.subscribeErrs) > 0 {
		err := f.subscribeErrs[0]
		f.subscribeErrs = f.subscribeErrs[1:]
		f.mu.Unlock()
		return err
	}
	drop := f.dropOnSubscribe > 0
	if drop {
		f.dropOnSubscribe--
	}
	h := f.handlers[len(f.handlers)-1]
	f.mu.Unlock()

	if drop && h.OnConnectionLost != nil {
		h.OnConnectionLost(errors.New("link dropped after suback"))
	}
	return nil
}

func (f *fakeTransport) Publish(_ context.Context, _ string, _ byte, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, string(payload))
	return nil
}

func (f *fakeTransport) Disconnect() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disconnects++
}

func (f *fakeTransport) current() ports.TransportHandlers {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.handlers[len(f.handlers)-1]
}

func (f *fakeTransport) handlersAt(i int) ports.TransportHandlers {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.handlers[i]
}

func (f *fakeTransport) counts() (connects, subscribes, disconnects int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.connects), len(f.subscribes), f.disconnects
}

func (f *fakeTransport) clientIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]string, 0, len(f.connects))
	for _, c := range f.connects {
		ids = append(ids, c.ClientID)
	}
	return ids
}

func (f *fakeTransport) publishedPayloads() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.published...)
}

type stateLog struct {
	mu     sync.Mutex
	states []State
}

func (l *stateLog) record(s State) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.states = append(l.states, s)
}

func (l *stateLog) phases() []Phase {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Phase, 0, len(l.states))
	for _, s := range l.states {
		out = append(out, s.Phase)
	}
	return out
}

type frameLog struct {
	mu     sync.Mutex
	frames []string
}

func (l *frameLog) HandleFrame(_ string, payload []byte) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.frames = append(l.frames, string(payload))
}

func (l *frameLog) all() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.frames...)
}

func testConfig() Config {
	return Config{Endpoint: "tcp://broker.local:1883", Username: "brew", Password: "secret"}
}

func newTestManager(t *testing.T, cfg Config, tr *fakeTransport) (*Manager, *clock.Mock, *stateLog, *frameLog) {
	t.Helper()
	mock := clock.NewMock()
	log := &stateLog{}
	frames := &frameLog{}
	m, err := New(cfg, tr, frames, WithClock(mock), WithStateObserver(log.record))
	require.NoError(t, err)
	t.Cleanup(m.Stop)
	return m, mock, log, frames
}

func waitPhase(t *testing.T, m *Manager, want Phase) {
	t.Helper()
	require.Eventually(t, func() bool { return m.State().Phase == want },
		time.Second, 2*time.Millisecond, "never reached %s, last state %s", want, m.State())
}

func TestStartIsIdempotent(t *testing.T) {
	tr := &fakeTransport{}
	m, _, _, _ := newTestManager(t, testConfig(), tr)

	require.NoError(t, m.Start(context.Background()))
	require.NoError(t, m.Start(context.Background()))
	waitPhase(t, m, Connected)

	connects, subscribes, _ := tr.counts()
	require.Equal(t, 1, connects)
	require.Equal(t, 1, subscribes)
}

func TestReconnectAfterConnectionLoss(t *testing.T) {
	tr := &fakeTransport{}
	m, mock, log, _ := newTestManager(t, testConfig(), tr)

	require.NoError(t, m.Start(context.Background()))
	waitPhase(t, m, Connected)

	tr.current().OnConnectionLost(errors.New("broker went away"))
	waitPhase(t, m, ReconnectPending)
	require.Equal(t, DefaultReconnectBackoff, m.State().Delay)

	mock.Add(time.Second)
	require.Never(t, func() bool { return m.State().Phase != ReconnectPending },
		50*time.Millisecond, 5*time.Millisecond)

	mock.Add(time.Second)
	waitPhase(t, m, Connected)

	phases := log.phases()
	require.Equal(t, []Phase{Connecting, Connected, ReconnectPending, Connecting, Connected}, phases)

	connects, subscribes, _ := tr.counts()
	require.Equal(t, 2, connects)
	require.Equal(t, 2, subscribes, "one subscription per successful connect")
}

func TestInitialConnectFailureIsRetried(t *testing.T) {
	tr := &fakeTransport{connectErrs: []error{errors.New("connection refused")}}
	m, mock, _, _ := newTestManager(t, testConfig(), tr)

	require.NoError(t, m.Start(context.Background()))
	waitPhase(t, m, ReconnectPending)
	require.Equal(t, 1, m.State().Attempt)

	mock.Add(DefaultReconnectBackoff)
	waitPhase(t, m, Connected)
	require.Equal(t, 2, m.State().Attempt)

	ids := tr.clientIDs()
	require.Len(t, ids, 2)
	require.NotEqual(t, ids[0], ids[1])
	for _, id := range ids {
		require.True(t, strings.HasPrefix(id, DefaultClientID+"-"), id)
	}
}

func TestSubscribeFailureIsTreatedAsLoss(t *testing.T) {
	tr := &fakeTransport{subscribeErrs: []error{errors.New("not authorized")}}
	m, mock, _, _ := newTestManager(t, testConfig(), tr)

	require.NoError(t, m.Start(context.Background()))
	waitPhase(t, m, ReconnectPending)

	_, _, disconnects := tr.counts()
	require.Equal(t, 1, disconnects)

	mock.Add(DefaultReconnectBackoff)
	waitPhase(t, m, Connected)

	connects, subscribes, _ := tr.counts()
	require.Equal(t, 2, connects)
	require.Equal(t, 2, subscribes)
}

func TestStaleConnectionLostIsIgnored(t *testing.T) {
	tr := &fakeTransport{}
	m, mock, _, _ := newTestManager(t, testConfig(), tr)

	require.NoError(t, m.Start(context.Background()))
	waitPhase(t, m, Connected)
	first := tr.handlersAt(0)

	first.OnConnectionLost(errors.New("drop"))
	waitPhase(t, m, ReconnectPending)
	mock.Add(DefaultReconnectBackoff)
	waitPhase(t, m, Connected)

	first.OnConnectionLost(errors.New("late notice from the old client"))
	require.Never(t, func() bool { return m.State().Phase != Connected },
		50*time.Millisecond, 5*time.Millisecond)
}

func TestStopCancelsPendingRetry(t *testing.T) {
	tr := &fakeTransport{connectErrs: []error{errors.New("timeout")}}
	m, mock, _, _ := newTestManager(t, testConfig(), tr)

	require.NoError(t, m.Start(context.Background()))
	waitPhase(t, m, ReconnectPending)

	m.Stop()
	require.Equal(t, Disconnected, m.State().Phase)

	mock.Add(10 * DefaultReconnectBackoff)
	time.Sleep(20 * time.Millisecond)

	connects, _, disconnects := tr.counts()
	require.Equal(t, 1, connects)
	require.Equal(t, 1, disconnects)

	require.NotPanics(t, m.Stop)
	require.ErrorIs(t, m.Start(context.Background()), ErrStopped)
	require.ErrorIs(t, m.Publish(context.Background(), "t", []byte("x")), ErrStopped)
}

func TestStopBeforeStart(t *testing.T) {
	m, _, _, _ := newTestManager(t, testConfig(), &fakeTransport{})
	require.NotPanics(t, m.Stop)
	require.Equal(t, Disconnected, m.State().Phase)
}

func TestFramesReachHandlerInOrder(t *testing.T) {
	tr := &fakeTransport{}
	m, _, _, frames := newTestManager(t, testConfig(), tr)

	require.NoError(t, m.Start(context.Background()))
	waitPhase(t, m, Connected)

	h := tr.current()
	for _, f := range []string{"a", "b", "c"} {
		h.OnMessage(DefaultTopic, []byte(f))
	}
	require.Eventually(t, func() bool { return len(frames.all()) == 3 }, time.Second, 2*time.Millisecond)
	require.Equal(t, []string{"a", "b", "c"}, frames.all())
}

func TestPublishBuffersWhileDisconnected(t *testing.T) {
	cfg := testConfig()
	cfg.Outbox = &ports.BufferPolicy{Enabled: true, Capacity: 2}
	tr := &fakeTransport{}
	m, _, _, _ := newTestManager(t, cfg, tr)

	ctx := context.Background()
	require.NoError(t, m.Publish(ctx, "cmd", []byte("one")))
	require.NoError(t, m.Publish(ctx, "cmd", []byte("two")))
	require.ErrorIs(t, m.Publish(ctx, "cmd", []byte("three")), ErrOutboxFull)
	require.Equal(t, 2, m.Outboxed())

	require.NoError(t, m.Start(ctx))
	waitPhase(t, m, Connected)
	require.Eventually(t, func() bool { return len(tr.publishedPayloads()) == 2 }, time.Second, 2*time.Millisecond)
	require.Equal(t, []string{"one", "two"}, tr.publishedPayloads())
	require.Zero(t, m.Outboxed())

	require.NoError(t, m.Publish(ctx, "cmd", []byte("live")))
	require.Equal(t, []string{"one", "two", "live"}, tr.publishedPayloads())
}

func TestPublishEvictsOldestWhenConfigured(t *testing.T) {
	cfg := testConfig()
	cfg.Outbox = &ports.BufferPolicy{Enabled: true, Capacity: 1, DeleteOldest: true}
	m, _, _, _ := newTestManager(t, cfg, &fakeTransport{})

	ctx := context.Background()
	require.NoError(t, m.Publish(ctx, "cmd", []byte("old")))
	require.NoError(t, m.Publish(ctx, "cmd", []byte("new")))
	require.Equal(t, 1, m.Outboxed())
}

func TestDisabledOutboxStaysDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.Outbox = &ports.BufferPolicy{Enabled: false}
	m, _, _, _ := newTestManager(t, cfg, &fakeTransport{})

	require.False(t, m.Config().Outbox.Enabled)
	require.ErrorIs(t, m.Publish(context.Background(), "cmd", []byte("dropped")), ErrNotConnected)
	require.Zero(t, m.Outboxed())
}

func TestNilOutboxUsesDefaultPolicy(t *testing.T) {
	cfg := testConfig()
	cfg.Outbox = nil
	cfg.ApplyDefaults()
	require.Equal(t, ports.DefaultBufferPolicy(), *cfg.Outbox)
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	_, err := New(Config{}, &fakeTransport{}, &frameLog{})
	require.Error(t, err)

	cfg := testConfig()
	cfg.Outbox = &ports.BufferPolicy{Enabled: true, Capacity: 100, Persist: true}
	_, err = New(cfg, &fakeTransport{}, &frameLog{})
	require.ErrorContains(t, err, "persist")

	_, err = New(testConfig(), nil, &frameLog{})
	require.Error(t, err)
}

func TestStateString(t *testing.T) {
	require.Equal(t, "reconnect_pending(2s)", State{Phase: ReconnectPending, Delay: 2 * time.Second}.String())
	require.Equal(t, "connected", State{Phase: Connected}.String())
}

func TestConnectionLostDuringConnectIsRetried(t *testing.T) {
	tr := &fakeTransport{dropOnSubscribe: 1}
	m, mock, log, _ := newTestManager(t, testConfig(), tr)

	require.NoError(t, m.Start(context.Background()))
	waitPhase(t, m, ReconnectPending)

	_, _, disconnects := tr.counts()
	require.Equal(t, 1, disconnects, "dead link is closed before retrying")

	mock.Add(DefaultReconnectBackoff)
	waitPhase(t, m, Connected)

	require.Equal(t, []Phase{Connecting, ReconnectPending, Connecting, Connected}, log.phases())
	connects, subscribes, _ := tr.counts()
	require.Equal(t, 2, connects)
	require.Equal(t, 2, subscribes)
}
