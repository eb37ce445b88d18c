package ports

import "context"

// Credentials authenticate against the broker.
type Credentials struct {
	Username string
	Password string
}

// ConnectOptions describe one connect attempt. ClientID is unique per attempt.
type ConnectOptions struct {
	Endpoint     string
	ClientID     string
	Credentials  Credentials
	CleanSession bool
}

// TransportHandlers receive asynchronous transport events. Handlers may be called
// from transport-owned goroutines.
type TransportHandlers struct {
	OnMessage        func(topic string, payload []byte)
	OnConnectionLost func(err error)
}

// Transport is the publish/subscribe collaborator (MQTT broker, replay file, etc.).
// Connect and Subscribe block until the broker acknowledges or ctx ends.
type Transport interface {
	SetHandlers(h TransportHandlers)
	Connect(ctx context.Context, opts ConnectOptions) error
	Subscribe(ctx context.Context, topic string, qos byte) error
	Publish(ctx context.Context, topic string, qos byte, payload []byte) error
	Disconnect()
}
