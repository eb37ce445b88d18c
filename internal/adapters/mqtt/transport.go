package mqtt

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/ghalamif/BrewFlow/internal/ports"
)

// ErrNotConnected is returned by Subscribe and Publish before Connect succeeded.
var ErrNotConnected = errors.New("mqtt: not connected")

const defaultQuiesce = 250 // ms

// Transport adapts a paho client to ports.Transport. Each Connect builds a new
// paho client; paho's own reconnect logic is switched off and retries are left
// to the caller.
type Transport struct {
	mu        sync.Mutex
	handlers  ports.TransportHandlers
	client    paho.Client
	newClient func(*paho.ClientOptions) paho.Client
	quiesce   uint
}

// Option customizes a Transport.
type Option func(*Transport)

// WithClientFactory swaps the paho client constructor, mostly for tests.
func WithClientFactory(fn func(*paho.ClientOptions) paho.Client) Option {
	return func(t *Transport) {
		if fn != nil {
			t.newClient = fn
		}
	}
}

// WithQuiesce sets how long Disconnect waits for in-flight work.
func WithQuiesce(d time.Duration) Option {
	return func(t *Transport) {
		t.quiesce = uint(d.Milliseconds())
	}
}

func New(opts ...Option) *Transport {
	t := &Transport{newClient: paho.NewClient, quiesce: defaultQuiesce}
	for _, opt := range opts {
		if opt != nil {
			opt(t)
		}
	}
	return t
}

func (t *Transport) SetHandlers(h ports.TransportHandlers) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.handlers = h
}

func (t *Transport) Connect(ctx context.Context, opts ports.ConnectOptions) error {
	t.mu.Lock()
	if t.client != nil {
		t.client.Disconnect(0)
		t.client = nil
	}
	h := t.handlers
	t.mu.Unlock()

	client := t.newClient(clientOptions(ctx, opts, h))
	if err := wait(ctx, client.Connect()); err != nil {
		client.Disconnect(0)
		return fmt.Errorf("mqtt connect %s: %w", opts.Endpoint, err)
	}

	t.mu.Lock()
	t.client = client
	t.mu.Unlock()
	return nil
}

func (t *Transport) Subscribe(ctx context.Context, topic string, qos byte) error {
	client, h := t.current()
	if client == nil {
		return ErrNotConnected
	}
	tok := client.Subscribe(topic, qos, func(_ paho.Client, msg paho.Message) {
		if h.OnMessage != nil {
			h.OnMessage(msg.Topic(), msg.Payload())
		}
	})
	if err := wait(ctx, tok); err != nil {
		return fmt.Errorf("mqtt subscribe %s: %w", topic, err)
	}
	return nil
}

func (t *Transport) Publish(ctx context.Context, topic string, qos byte, payload []byte) error {
	client, _ := t.current()
	if client == nil {
		return ErrNotConnected
	}
	if err := wait(ctx, client.Publish(topic, qos, false, payload)); err != nil {
		return fmt.Errorf("mqtt publish %s: %w", topic, err)
	}
	return nil
}

func (t *Transport) Disconnect() {
	t.mu.Lock()
	client := t.client
	t.client = nil
	t.mu.Unlock()
	if client != nil {
		client.Disconnect(t.quiesce)
	}
}

func (t *Transport) current() (paho.Client, ports.TransportHandlers) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.client, t.handlers
}

func clientOptions(ctx context.Context, opts ports.ConnectOptions, h ports.TransportHandlers) *paho.ClientOptions {
	o := paho.NewClientOptions().
		AddBroker(opts.Endpoint).
		SetClientID(opts.ClientID).
		SetUsername(opts.Credentials.Username).
		SetPassword(opts.Credentials.Password).
		SetCleanSession(opts.CleanSession).
		SetAutoReconnect(false).
		SetConnectRetry(false).
		SetOrderMatters(true)
	if deadline, ok := ctx.Deadline(); ok {
		o.SetConnectTimeout(time.Until(deadline))
	}
	o.SetConnectionLostHandler(func(_ paho.Client, err error) {
		if h.OnConnectionLost != nil {
			h.OnConnectionLost(err)
		}
	})
	return o
}

func wait(ctx context.Context, tok paho.Token) error {
	select {
	case <-tok.Done():
		return tok.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}

var _ ports.Transport = (*Transport)(nil)
