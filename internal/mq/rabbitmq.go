package mq

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/reckon-app/apiserver/config"
)

const exchangeKindFanout = "fanout"

// RabbitMQClient publishes each channel to a fanout exchange of the same
// name, so every subscriber bound to it receives its own copy.
type RabbitMQClient struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	cfg     config.RabbitMQConfig

	mu       sync.Mutex
	declared map[string]bool
}

// NewRabbitMQClient dials the broker and opens a channel.
func NewRabbitMQClient(cfg config.RabbitMQConfig) (*RabbitMQClient, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, errors.New("RABBITMQ_URL is required")
	}

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if cfg.PrefetchCount > 0 {
		if err := ch.Qos(cfg.PrefetchCount, 0, false); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("set prefetch: %w", err)
		}
	}

	return &RabbitMQClient{
		conn:     conn,
		channel:  ch,
		cfg:      cfg,
		declared: make(map[string]bool),
	}, nil
}

// Publish sends data to the exchange named channel. attrs travel as headers.
func (r *RabbitMQClient) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	if err := r.declareExchange(channel); err != nil {
		return "", err
	}

	headers := make(amqp.Table, len(attrs))
	for key, value := range attrs {
		headers[key] = value
	}

	id := uuid.NewString()
	mode := amqp.Transient
	if r.cfg.QueueDurable {
		mode = amqp.Persistent
	}
	err := r.channel.PublishWithContext(ctx, channel, "", false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: mode,
		MessageId:    id,
		Headers:      headers,
		Body:         data,
	})
	if err != nil {
		return "", fmt.Errorf("publish to %s: %w", channel, err)
	}
	return id, nil
}

// Subscribe binds a private, broker-named queue to the channel exchange and
// feeds deliveries to handler until ctx ends. A handler error requeues the
// delivery.
func (r *RabbitMQClient) Subscribe(ctx context.Context, channel string, handler Handler) error {
	if err := r.declareExchange(channel); err != nil {
		return err
	}

	queue, err := r.channel.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}
	if err := r.channel.QueueBind(queue.Name, "", channel, false, nil); err != nil {
		return fmt.Errorf("bind %s to %s: %w", queue.Name, channel, err)
	}

	tag := "tail-" + uuid.NewString()
	deliveries, err := r.channel.Consume(queue.Name, tag, false, true, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", queue.Name, err)
	}
	defer func() {
		_ = r.channel.Cancel(tag, false)
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("rabbitmq delivery channel closed")
			}
			msg := Message{ID: d.MessageId, Data: d.Body, Attributes: headerStrings(d.Headers)}
			if err := handler(ctx, msg); err != nil {
				_ = d.Nack(false, true)
				continue
			}
			_ = d.Ack(false)
		}
	}
}

// Close closes the channel and then the connection.
// Ping fails once the connection or its channel has been closed.
func (r *RabbitMQClient) Ping(ctx context.Context) error {
	if r.conn.IsClosed() {
		return errors.New("rabbitmq connection closed")
	}
	if r.channel.IsClosed() {
		return errors.New("rabbitmq channel closed")
	}
	return nil
}

func (r *RabbitMQClient) Close() error {
	var errs []error
	if r.channel != nil {
		errs = append(errs, r.channel.Close())
	}
	if r.conn != nil {
		errs = append(errs, r.conn.Close())
	}
	return errors.Join(errs...)
}

func (r *RabbitMQClient) declareExchange(name string) error {
	if strings.TrimSpace(name) == "" {
		return errors.New("rabbitmq exchange name is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.declared[name] {
		return nil
	}
	err := r.channel.ExchangeDeclare(name, exchangeKindFanout, r.cfg.QueueDurable, r.cfg.QueueAutoDelete, false, false, nil)
	if err != nil {
		return fmt.Errorf("declare exchange %s: %w", name, err)
	}
	r.declared[name] = true
	return nil
}

func headerStrings(headers amqp.Table) map[string]string {
	if len(headers) == 0 {
		return nil
	}
	out := make(map[string]string, len(headers))
	for key, value := range headers {
		if b, ok := value.([]byte); ok {
			out[key] = string(b)
			continue
		}
		out[key] = fmt.Sprint(value)
	}
	return out
}
