package mqtt

import (
	"context"
	"errors"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/require"

	"github.com/ghalamif/BrewFlow/internal/ports"
)

type doneToken struct {
	err  error
	done chan struct{}
}

func newToken(err error) *doneToken {
	t := &doneToken{err: err, done: make(chan struct{})}
	close(t.done)
	return t
}

func (t *doneToken) Wait() bool                     { <-t.done; return true }
func (t *doneToken) WaitTimeout(time.Duration) bool { return true }
func (t *doneToken) Done() <-chan struct{}          { return t.done }
func (t *doneToken) Error() error                   { return t.err }

type pendingToken struct{ done chan struct{} }

func (t pendingToken) Wait() bool                     { <-t.done; return true }
func (t pendingToken) WaitTimeout(time.Duration) bool { return false }
func (t pendingToken) Done() <-chan struct{}          { return t.done }
func (t pendingToken) Error() error                   { return nil }

type fakeMessage struct {
	topic   string
	payload []byte
}

func (m fakeMessage) Duplicate() bool   { return false }
func (m fakeMessage) Qos() byte         { return 0 }
func (m fakeMessage) Retained() bool    { return false }
func (m fakeMessage) Topic() string     { return m.topic }
func (m fakeMessage) MessageID() uint16 { return 1 }
func (m fakeMessage) Payload() []byte   { return m.payload }
func (m fakeMessage) Ack()              {}

type fakeClient struct {
	opts        *paho.ClientOptions
	connectErr  error
	hang        bool
	subscribed  map[string]paho.MessageHandler
	published   [][]byte
	disconnects int
}

func (c *fakeClient) IsConnected() bool      { return true }
func (c *fakeClient) IsConnectionOpen() bool { return true }
func (c *fakeClient) Connect() paho.Token {
	if c.hang {
		return pendingToken{done: make(chan struct{})}
	}
	return newToken(c.connectErr)
}
func (c *fakeClient) Disconnect(uint) { c.disconnects++ }
func (c *fakeClient) Publish(_ string, _ byte, _ bool, payload interface{}) paho.Token {
	c.published = append(c.published, payload.([]byte))
	return newToken(nil)
}
func (c *fakeClient) Subscribe(topic string, _ byte, cb paho.MessageHandler) paho.Token {
	if c.subscribed == nil {
		c.subscribed = map[string]paho.MessageHandler{}
	}
	c.subscribed[topic] = cb
	return newToken(nil)
}
func (c *fakeClient) SubscribeMultiple(map[string]byte, paho.MessageHandler) paho.Token {
	return newToken(nil)
}
func (c *fakeClient) Unsubscribe(...string) paho.Token        { return newToken(nil) }
func (c *fakeClient) AddRoute(string, paho.MessageHandler)    {}
func (c *fakeClient) OptionsReader() paho.ClientOptionsReader { return paho.ClientOptionsReader{} }

func factory(clients *[]*fakeClient, tmpl fakeClient) func(*paho.ClientOptions) paho.Client {
	return func(o *paho.ClientOptions) paho.Client {
		c := tmpl
		c.opts = o
		*clients = append(*clients, &c)
		return &c
	}
}

func TestConnectBuildsClientPerAttempt(t *testing.T) {
	var clients []*fakeClient
	tr := New(WithClientFactory(factory(&clients, fakeClient{})))

	opts := ports.ConnectOptions{
		Endpoint:    "tcp://broker.local:1883",
		ClientID:    "robogaggia-1",
		Credentials: ports.Credentials{Username: "brew", Password: "secret"},
	}
	require.NoError(t, tr.Connect(context.Background(), opts))
	opts.ClientID = "robogaggia-2"
	require.NoError(t, tr.Connect(context.Background(), opts))

	require.Len(t, clients, 2)
	require.Equal(t, 1, clients[0].disconnects, "previous client is closed")

	o := clients[1].opts
	require.Equal(t, "robogaggia-2", o.ClientID)
	require.Equal(t, "brew", o.Username)
	require.Equal(t, "secret", o.Password)
	require.False(t, o.CleanSession)
	require.False(t, o.AutoReconnect)
	require.False(t, o.ConnectRetry)
	require.Len(t, o.Servers, 1)
	require.Equal(t, "broker.local:1883", o.Servers[0].Host)
}

func TestConnectFailureIsWrapped(t *testing.T) {
	var clients []*fakeClient
	refused := errors.New("not authorized")
	tr := New(WithClientFactory(factory(&clients, fakeClient{connectErr: refused})))

	err := tr.Connect(context.Background(), ports.ConnectOptions{Endpoint: "tcp://b:1883", ClientID: "x"})
	require.ErrorIs(t, err, refused)
	require.ErrorIs(t, tr.Subscribe(context.Background(), "t", 0), ErrNotConnected)
}

func TestConnectHonoursContext(t *testing.T) {
	var clients []*fakeClient
	tr := New(WithClientFactory(factory(&clients, fakeClient{hang: true})))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := tr.Connect(ctx, ports.ConnectOptions{Endpoint: "tcp://b:1883", ClientID: "x"})
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestHandlersReceiveMessagesAndLoss(t *testing.T) {
	var clients []*fakeClient
	tr := New(WithClientFactory(factory(&clients, fakeClient{})))

	var frames []string
	var lost error
	tr.SetHandlers(ports.TransportHandlers{
		OnMessage:        func(_ string, payload []byte) { frames = append(frames, string(payload)) },
		OnConnectionLost: func(err error) { lost = err },
	})

	ctx := context.Background()
	require.NoError(t, tr.Connect(ctx, ports.ConnectOptions{Endpoint: "tcp://b:1883", ClientID: "x"}))
	require.NoError(t, tr.Subscribe(ctx, "feeds/telemetry", 0))

	c := clients[0]
	c.subscribed["feeds/telemetry"](c, fakeMessage{topic: "feeds/telemetry", payload: []byte("brewing,x,1,2,3,4,5")})
	require.Equal(t, []string{"brewing,x,1,2,3,4,5"}, frames)

	c.opts.OnConnectionLost(c, errors.New("eof"))
	require.EqualError(t, lost, "eof")

	require.NoError(t, tr.Publish(ctx, "cmd", 0, []byte("ping")))
	require.Equal(t, [][]byte{[]byte("ping")}, c.published)

	tr.Disconnect()
	tr.Disconnect()
	require.Equal(t, 1, c.disconnects)
	require.ErrorIs(t, tr.Publish(ctx, "cmd", 0, nil), ErrNotConnected)
}
