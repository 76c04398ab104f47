package bus

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nadzzz/roundhouse/internal/message"
)

// MQTTOptions configures the MQTT bus.
type MQTTOptions struct {
	// Broker is the broker URL (e.g. "tcp://localhost:1883").
	Broker string

	// ClientID identifies this daemon to the broker.
	ClientID string

	// TopicPrefix is prepended to every event type to form the topic
	// (e.g. prefix "roundhouse" + type "utterance" -> "roundhouse/utterance").
	TopicPrefix string

	// QoS is the MQTT quality-of-service level for publish and subscribe.
	QoS byte

	// ConnectTimeout bounds the initial broker connection.
	ConnectTimeout time.Duration
}

// MQTT is a bus backed by an MQTT broker. Each event type maps to one topic
// under the configured prefix; payloads are JSON-encoded envelopes.
type MQTT struct {
	client mqtt.Client
	opts   MQTTOptions
}

// NewMQTT connects to the broker and returns the bus.
func NewMQTT(opts MQTTOptions) (*MQTT, error) {
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = 10 * time.Second
	}
	clientOpts := mqtt.NewClientOptions().
		AddBroker(opts.Broker).
		SetClientID(opts.ClientID).
		SetAutoReconnect(true).
		SetOrderMatters(false).
		SetConnectTimeout(opts.ConnectTimeout)

	client := mqtt.NewClient(clientOpts)
	token := client.Connect()
	if !token.WaitTimeout(opts.ConnectTimeout) {
		return nil, fmt.Errorf("mqtt connect to %s: timeout", opts.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect to %s: %w", opts.Broker, err)
	}
	slog.Info("mqtt bus connected", "broker", opts.Broker, "prefix", opts.TopicPrefix)
	return &MQTT{client: client, opts: opts}, nil
}

func (b *MQTT) topic(msgType string) string {
	if b.opts.TopicPrefix == "" {
		return msgType
	}
	return b.opts.TopicPrefix + "/" + msgType
}

// Publish encodes the message and publishes it on the topic for its type.
func (b *MQTT) Publish(ctx context.Context, msg *message.Message) error {
	payload, err := msg.Encode()
	if err != nil {
		return err
	}
	token := b.client.Publish(b.topic(msg.Type), b.opts.QoS, false, payload)
	select {
	case <-token.Done():
		if err := token.Error(); err != nil {
			return fmt.Errorf("mqtt publish %q: %w", msg.Type, err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Subscribe registers a handler for a message type. Malformed payloads are
// logged and dropped; they never reach handlers.
func (b *MQTT) Subscribe(msgType string, h Handler) error {
	token := b.client.Subscribe(b.topic(msgType), b.opts.QoS, func(_ mqtt.Client, raw mqtt.Message) {
		msg, err := message.Decode(raw.Payload())
		if err != nil {
			slog.Warn("dropping malformed bus message", "topic", raw.Topic(), "error", err)
			return
		}
		// Each delivery gets its own goroutine; a slow handler must not
		// stall the client's message router.
		go h(context.Background(), msg)
	})
	token.Wait()
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt subscribe %q: %w", msgType, err)
	}
	return nil
}

// Close disconnects from the broker, allowing a short drain window.
func (b *MQTT) Close() error {
	b.client.Disconnect(250)
	return nil
}
