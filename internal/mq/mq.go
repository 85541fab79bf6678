package mq

import (
	"context"
	"fmt"

	"github.com/reckon-app/apiserver/config"
)

// Message represents a broker-agnostic payload delivered to subscribers.
type Message struct {
	ID         string
	Data       []byte
	Attributes map[string]string
}

// Handler processes a message. Return an error to signal a retry/nack.
type Handler func(ctx context.Context, msg Message) error

// Backend defines the broker-agnostic operations used by the app.
type Backend interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
	Subscribe(ctx context.Context, channel string, handler Handler) error
	Ping(ctx context.Context) error
	Close() error
}

// MQ wraps a backend with a stable API.
type MQ struct {
	backend Backend
}

// New constructs an MQ wrapper for the provided backend.
func New(backend Backend) *MQ {
	return &MQ{backend: backend}
}

// Open selects and connects the backend named in cfg. It returns nil when
// events are disabled.
func Open(ctx context.Context, cfg config.EventsConfig) (*MQ, error) {
	switch cfg.Backend {
	case "", config.BackendNone:
		return nil, nil
	case config.BackendRabbitMQ:
		client, err := NewRabbitMQClient(cfg.RabbitMQ)
		if err != nil {
			return nil, fmt.Errorf("connect rabbitmq: %w", err)
		}
		return New(client), nil
	case config.BackendPubSub:
		client, err := NewPubSubClient(ctx, cfg.PubSub)
		if err != nil {
			return nil, fmt.Errorf("connect pubsub: %w", err)
		}
		return New(client), nil
	default:
		return nil, fmt.Errorf("unknown events backend %q", cfg.Backend)
	}
}

// Publish sends a message to the named channel.
func (m *MQ) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	return m.backend.Publish(ctx, channel, data, attrs)
}

// Subscribe consumes messages from the named channel.
func (m *MQ) Subscribe(ctx context.Context, channel string, handler Handler) error {
	return m.backend.Subscribe(ctx, channel, handler)
}

// Ping reports whether the broker connection is usable.
func (m *MQ) Ping(ctx context.Context) error {
	return m.backend.Ping(ctx)
}

// Close closes the underlying backend.
func (m *MQ) Close() error {
	return m.backend.Close()
}
