package broker

import (
	"context"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// MQTTConfig configures the production broker transport.
type MQTTConfig struct {
	Broker      string // e.g. "tcp://localhost:1883"
	ClientID    string
	Username    string
	Password    string
	QoS         byte
	ConnTimeout time.Duration
}

// MQTT is the production Broker implementation, publishing and subscribing
// by topic on a shared persistent connection — one long-lived client per
// agent process, unlike the teacher's notify.MQTT which dials fresh per
// send. HemoStat agents stay connected for their whole lifetime and react
// to disconnects with the backoff policy in spec §3.3.
type MQTT struct {
	cfg    MQTTConfig
	client mqtt.Client

	mu       sync.RWMutex
	handlers map[string]Handler
	closed   bool
}

// NewMQTT creates an MQTT broker client. Connect must be called before use.
func NewMQTT(cfg MQTTConfig) *MQTT {
	if cfg.ClientID == "" {
		cfg.ClientID = "hemostat"
	}
	if cfg.ConnTimeout <= 0 {
		cfg.ConnTimeout = 10 * time.Second
	}
	return &MQTT{cfg: cfg, handlers: make(map[string]Handler)}
}

// Connect dials the broker and verifies reachability with a round-trip
// connect token wait, matching spec §4.1's "verified by round-trip ping on
// connect". Re-subscribes every previously-registered channel handler so a
// reconnect after a drop resumes dispatch transparently.
func (m *MQTT) Connect(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}

	opts := mqtt.NewClientOptions().
		AddBroker(m.cfg.Broker).
		SetClientID(m.cfg.ClientID).
		SetConnectTimeout(m.cfg.ConnTimeout).
		SetAutoReconnect(false). // the agent runtime owns reconnect/backoff (spec §3.3)
		SetCleanSession(true)
	if m.cfg.Username != "" {
		opts.SetUsername(m.cfg.Username)
		opts.SetPassword(m.cfg.Password)
	}

	client := mqtt.NewClient(opts)
	tok := client.Connect()
	if !tok.WaitTimeout(m.cfg.ConnTimeout) {
		return fmt.Errorf("mqtt: connect timeout after %s", m.cfg.ConnTimeout)
	}
	if err := tok.Error(); err != nil {
		return fmt.Errorf("mqtt: connect: %w", err)
	}
	m.client = client

	for ch, h := range m.handlers {
		if err := m.subscribeLocked(ch, h); err != nil {
			return fmt.Errorf("mqtt: resubscribe %s: %w", ch, err)
		}
	}
	return nil
}

// Publish fire-and-forget publishes payload to channel at the configured QoS.
func (m *MQTT) Publish(ctx context.Context, channel string, payload []byte) error {
	m.mu.RLock()
	client := m.client
	closed := m.closed
	m.mu.RUnlock()
	if closed {
		return ErrClosed
	}
	if client == nil || !client.IsConnected() {
		return fmt.Errorf("mqtt: not connected")
	}

	tok := client.Publish(channel, m.cfg.QoS, false, payload)
	select {
	case <-tok.Done():
	case <-ctx.Done():
		return ctx.Err()
	}
	return tok.Error()
}

// Subscribe registers handler for channel and, if already connected, wires
// the subscription immediately.
func (m *MQTT) Subscribe(ctx context.Context, channel string, handler Handler) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.handlers[channel] = handler
	if m.client != nil && m.client.IsConnected() {
		return m.subscribeLocked(channel, handler)
	}
	return nil
}

// subscribeLocked wires one paho subscription. Caller holds m.mu.
func (m *MQTT) subscribeLocked(channel string, handler Handler) error {
	tok := m.client.Subscribe(channel, m.cfg.QoS, func(_ mqtt.Client, msg mqtt.Message) {
		// paho dispatches all topics from a single goroutine by default;
		// handlers must not block it for long. The per-channel ordering
		// guarantee (spec §5) holds because paho's message router itself
		// delivers in order per topic subscription.
		_ = handler(context.Background(), msg.Payload())
	})
	if !tok.WaitTimeout(m.cfg.ConnTimeout) {
		return fmt.Errorf("mqtt: subscribe timeout for %s", channel)
	}
	return tok.Error()
}

// Close disconnects the MQTT client.
func (m *MQTT) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	if m.client != nil && m.client.IsConnected() {
		m.client.Disconnect(250)
	}
	return nil
}

var _ Broker = (*MQTT)(nil)
