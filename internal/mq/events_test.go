package mq

import (
	"context"
	"errors"
	"testing"

	"github.com/reckon-app/apiserver/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingBackend struct {
	channel string
	data    []byte
	attrs   map[string]string
	err     error
	pingErr error
	closed  bool
}

func (b *recordingBackend) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	if b.err != nil {
		return "", b.err
	}
	b.channel = channel
	b.data = data
	b.attrs = attrs
	return "msg-1", nil
}

func (b *recordingBackend) Subscribe(ctx context.Context, channel string, handler Handler) error {
	return handler(ctx, Message{ID: "msg-1", Data: b.data, Attributes: b.attrs})
}

func (b *recordingBackend) Ping(ctx context.Context) error { return b.pingErr }

func (b *recordingBackend) Close() error {
	b.closed = true
	return nil
}

func TestEventPublisher_PublishAndDecode(t *testing.T) {
	backend := &recordingBackend{}
	m := New(backend)
	pub := NewEventPublisher(m, "user-events")

	evt := NewUserEvent(EventUserCreated, 5, "alice@example.com")
	require.NotEmpty(t, evt.ID)
	require.False(t, evt.OccurredAt.IsZero())

	require.NoError(t, pub.Publish(context.Background(), evt))
	assert.Equal(t, "user-events", backend.channel)
	assert.Equal(t, EventUserCreated, backend.attrs[AttrEventType])
	assert.Equal(t, "5", backend.attrs[AttrUserID])
	assert.NotContains(t, string(backend.data), "password")

	var got UserEvent
	err := m.Subscribe(context.Background(), "user-events", func(ctx context.Context, msg Message) error {
		var err error
		got, err = DecodeUserEvent(msg)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, evt.ID, got.ID)
	assert.Equal(t, int64(5), got.UserID)
	assert.Equal(t, "alice@example.com", got.Email)
	assert.True(t, evt.OccurredAt.Equal(got.OccurredAt))

	require.NoError(t, m.Close())
	assert.True(t, backend.closed)
}

func TestEventPublisher_BackendError(t *testing.T) {
	pub := NewEventPublisher(New(&recordingBackend{err: errors.New("broker down")}), "user-events")

	err := pub.Publish(context.Background(), NewUserEvent(EventUserDeleted, 1, "a@b.c"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "publish user.deleted")
}

func TestEventPublisher_NotConfigured(t *testing.T) {
	var pub *EventPublisher
	assert.Error(t, pub.Publish(context.Background(), UserEvent{}))
}

func TestDecodeUserEvent_Invalid(t *testing.T) {
	_, err := DecodeUserEvent(Message{Data: []byte("{")})
	assert.Error(t, err)
}

func TestOpen_Disabled(t *testing.T) {
	m, err := Open(context.Background(), config.EventsConfig{Backend: config.BackendNone})
	require.NoError(t, err)
	assert.Nil(t, m)

	_, err = Open(context.Background(), config.EventsConfig{Backend: "kafka"})
	assert.Error(t, err)
}

func TestOpen_MissingSettings(t *testing.T) {
	_, err := Open(context.Background(), config.EventsConfig{Backend: config.BackendRabbitMQ})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "RABBITMQ_URL is required")

	_, err = Open(context.Background(), config.EventsConfig{Backend: config.BackendPubSub})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PUBSUB_PROJECT_ID is required")
}

func TestHeaderStrings(t *testing.T) {
	assert.Nil(t, headerStrings(nil))
	assert.Equal(t, map[string]string{
		"event_type": "user.created",
		"user_id":    "7",
		"retries":    "2",
	}, headerStrings(map[string]any{
		"event_type": "user.created",
		"user_id":    []byte("7"),
		"retries":    int32(2),
	}))
}

func TestMQ_Ping(t *testing.T) {
	backend := &recordingBackend{}
	m := New(backend)
	assert.NoError(t, m.Ping(context.Background()))

	backend.pingErr = errors.New("connection closed")
	assert.ErrorIs(t, m.Ping(context.Background()), backend.pingErr)
}
