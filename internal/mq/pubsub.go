package mq

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"cloud.google.com/go/pubsub"
	"github.com/reckon-app/apiserver/config"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// PubSubClient wraps the Google Cloud Pub/Sub SDK client. Topic handles are
// cached so their publish goroutines can be flushed on Close.
type PubSubClient struct {
	client             *pubsub.Client
	subscriptionSuffix string

	mu     sync.Mutex
	topics map[string]*pubsub.Topic
}

// NewPubSubClient constructs a Pub/Sub client from config.
func NewPubSubClient(ctx context.Context, cfg config.PubSubConfig) (*PubSubClient, error) {
	if strings.TrimSpace(cfg.ProjectID) == "" {
		return nil, errors.New("PUBSUB_PROJECT_ID is required")
	}

	var opts []option.ClientOption
	if strings.TrimSpace(cfg.CredentialsFile) != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	client, err := pubsub.NewClient(ctx, cfg.ProjectID, opts...)
	if err != nil {
		return nil, err
	}

	return &PubSubClient{
		client:             client,
		subscriptionSuffix: cfg.SubscriptionSuffix,
		topics:             make(map[string]*pubsub.Topic),
	}, nil
}

// Publish sends a message to the named topic and waits for the server id.
// Messages sharing a user_id attribute are delivered in publish order.
func (p *PubSubClient) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	if strings.TrimSpace(channel) == "" {
		return "", errors.New("pubsub channel is required")
	}

	topic, err := p.topic(ctx, channel)
	if err != nil {
		return "", err
	}

	key := attrs[AttrUserID]
	id, err := topic.Publish(ctx, &pubsub.Message{Data: data, Attributes: attrs, OrderingKey: key}).Get(ctx)
	if err != nil {
		if key != "" {
			// A failed ordered publish pauses the key until resumed.
			topic.ResumePublish(key)
		}
		return "", fmt.Errorf("publish to %s: %w", channel, err)
	}
	return id, nil
}

// Subscribe consumes messages from the channel's subscription until ctx ends.
func (p *PubSubClient) Subscribe(ctx context.Context, channel string, handler Handler) error {
	if strings.TrimSpace(channel) == "" {
		return errors.New("pubsub channel is required")
	}

	topic, err := p.topic(ctx, channel)
	if err != nil {
		return err
	}

	sub, err := p.ensureSubscription(ctx, p.subscriptionName(channel), topic)
	if err != nil {
		return err
	}

	return sub.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		message := Message{
			ID:         msg.ID,
			Data:       msg.Data,
			Attributes: msg.Attributes,
		}
		if err := handler(ctx, message); err != nil {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

// Close flushes cached topics and closes the client.
// Ping lists at most one topic to confirm the project is reachable.
func (p *PubSubClient) Ping(ctx context.Context) error {
	if _, err := p.client.Topics(ctx).Next(); err != nil && !errors.Is(err, iterator.Done) {
		return fmt.Errorf("list topics: %w", err)
	}
	return nil
}

func (p *PubSubClient) Close() error {
	p.mu.Lock()
	for name, topic := range p.topics {
		topic.Stop()
		delete(p.topics, name)
	}
	p.mu.Unlock()
	return p.client.Close()
}

func (p *PubSubClient) topic(ctx context.Context, name string) (*pubsub.Topic, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if topic, ok := p.topics[name]; ok {
		return topic, nil
	}

	topic := p.client.Topic(name)
	exists, err := topic.Exists(ctx)
	if err != nil {
		return nil, err
	}
	if !exists {
		topic, err = p.client.CreateTopic(ctx, name)
		if err != nil {
			return nil, err
		}
	}
	topic.EnableMessageOrdering = true
	p.topics[name] = topic
	return topic, nil
}

func (p *PubSubClient) ensureSubscription(ctx context.Context, name string, topic *pubsub.Topic) (*pubsub.Subscription, error) {
	sub := p.client.Subscription(name)
	exists, err := sub.Exists(ctx)
	if err != nil {
		return nil, err
	}
	if !exists {
		return p.client.CreateSubscription(ctx, name, pubsub.SubscriptionConfig{Topic: topic, EnableMessageOrdering: true})
	}
	return sub, nil
}

func (p *PubSubClient) subscriptionName(channel string) string {
	if p.subscriptionSuffix == "" {
		return channel
	}
	return channel + p.subscriptionSuffix
}
