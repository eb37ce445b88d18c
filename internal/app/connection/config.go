package connection

import (
	"errors"
	"fmt"
	"time"

	"github.com/ghalamif/BrewFlow/internal/ports"
)

const (
	DefaultClientID         = "robogaggia"
	DefaultTopic            = "ndipatri/feeds/robogaggiatelemetry"
	DefaultReconnectBackoff = 2 * time.Second
	DefaultConnectTimeout   = 10 * time.Second
	DefaultInboundBuffer    = 256
)

// Config captures what the manager needs to reach the broker and stay there.
type Config struct {
	Endpoint         string        `yaml:"endpoint"`
	Username         string        `yaml:"username"`
	Password         string        `yaml:"password"`
	ClientID         string        `yaml:"client_id"`
	Topic            string        `yaml:"topic"`
	QoS              byte          `yaml:"qos"`
	CleanSession     bool          `yaml:"clean_session"`
	ReconnectBackoff time.Duration `yaml:"reconnect_backoff"`
	ConnectTimeout   time.Duration `yaml:"connect_timeout"`
	InboundBuffer    int           `yaml:"inbound_buffer"`

	// Outbox is the offline buffer policy. Nil selects DefaultBufferPolicy.
	Outbox *ports.BufferPolicy `yaml:"-"`
}

func (c *Config) ApplyDefaults() {
	if c.ClientID == "" {
		c.ClientID = DefaultClientID
	}
	if c.Topic == "" {
		c.Topic = DefaultTopic
	}
	if c.ReconnectBackoff <= 0 {
		c.ReconnectBackoff = DefaultReconnectBackoff
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = DefaultConnectTimeout
	}
	if c.InboundBuffer <= 0 {
		c.InboundBuffer = DefaultInboundBuffer
	}
	if c.Outbox == nil {
		p := ports.DefaultBufferPolicy()
		c.Outbox = &p
	}
}

func (c *Config) Validate() error {
	if c.Endpoint == "" {
		return errors.New("endpoint is required")
	}
	if c.Topic == "" {
		return errors.New("topic is required")
	}
	if c.QoS > 2 {
		return fmt.Errorf("qos must be 0, 1 or 2, got %d", c.QoS)
	}
	if c.Outbox == nil {
		return nil
	}
	if c.Outbox.Persist {
		return errors.New("outbox.persist is not supported; the offline buffer lives in memory")
	}
	if c.Outbox.Enabled && c.Outbox.Capacity <= 0 {
		return errors.New("outbox.capacity must be > 0 when the buffer is enabled")
	}
	return nil
}

func (c *Config) credentials() ports.Credentials {
	return ports.Credentials{Username: c.Username, Password: c.Password}
}
