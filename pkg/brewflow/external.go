package brewflow

import (
	"context"
	"errors"
	"sync"
)

// ErrNotSubscribed is returned by ExternalSource.Send before the dashboard has
// connected and subscribed.
var ErrNotSubscribed = errors.New("brewflow: source not subscribed")

// ExternalSource is an in-process Transport for callers that already receive
// telemetry frames (serial ports, another broker client, tests). Frames passed
// to Send go through the same parsing and segmentation as broker messages.
type ExternalSource struct {
	mu         sync.Mutex
	handlers   TransportHandlers
	connected  bool
	topic      string
	published  []OutboundMessage
	connects   int
	connectErr error
}

// OutboundMessage is a message the dashboard published through an ExternalSource.
type OutboundMessage struct {
	Topic   string
	Payload []byte
}

// NewExternalSource returns a disconnected source.
func NewExternalSource() *ExternalSource {
	return &ExternalSource{}
}

// Send delivers one raw frame to the dashboard.
func (s *ExternalSource) Send(frame string) error {
	s.mu.Lock()
	if !s.connected || s.topic == "" {
		s.mu.Unlock()
		return ErrNotSubscribed
	}
	h, topic := s.handlers, s.topic
	s.mu.Unlock()

	if h.OnMessage != nil {
		h.OnMessage(topic, []byte(frame))
	}
	return nil
}

// Drop simulates a lost connection. The dashboard schedules a reconnect.
func (s *ExternalSource) Drop(err error) {
	s.mu.Lock()
	if !s.connected {
		s.mu.Unlock()
		return
	}
	s.connected = false
	s.topic = ""
	h := s.handlers
	s.mu.Unlock()

	if err == nil {
		err = errors.New("connection dropped")
	}
	if h.OnConnectionLost != nil {
		h.OnConnectionLost(err)
	}
}

// FailConnects makes subsequent connect attempts fail with err. A nil err
// lets them succeed again.
func (s *ExternalSource) FailConnects(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connectErr = err
}

// Subscribed reports whether Send will currently be accepted.
func (s *ExternalSource) Subscribed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected && s.topic != ""
}

// Connects returns the number of successful connect attempts.
func (s *ExternalSource) Connects() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connects
}

// Published returns a copy of everything the dashboard published.
func (s *ExternalSource) Published() []OutboundMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]OutboundMessage(nil), s.published...)
}

func (s *ExternalSource) SetHandlers(h TransportHandlers) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers = h
}

func (s *ExternalSource) Connect(ctx context.Context, _ ConnectOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.connectErr != nil {
		return s.connectErr
	}
	s.connected = true
	s.connects++
	return nil
}

func (s *ExternalSource) Subscribe(ctx context.Context, topic string, _ byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.connected {
		return ErrNotSubscribed
	}
	s.topic = topic
	return nil
}

func (s *ExternalSource) Publish(ctx context.Context, topic string, _ byte, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.connected {
		return ErrNotSubscribed
	}
	s.published = append(s.published, OutboundMessage{Topic: topic, Payload: append([]byte(nil), payload...)})
	return nil
}

func (s *ExternalSource) Disconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = false
	s.topic = ""
}

var _ Transport = (*ExternalSource)(nil)
