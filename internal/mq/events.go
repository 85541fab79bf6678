package mq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// User lifecycle event types.
const (
	EventUserCreated = "user.created"
	EventUserUpdated = "user.updated"
	EventUserDeleted = "user.deleted"
)

// Message attributes set on every user event.
const (
	AttrEventType = "event_type"
	AttrUserID    = "user_id"
)

// UserEvent is the payload published when a user record changes. It never
// carries password material.
type UserEvent struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	UserID     int64     `json:"user_id"`
	Email      string    `json:"email"`
	OccurredAt time.Time `json:"occurred_at"`
}

// NewUserEvent stamps a fresh id and timestamp on an event.
func NewUserEvent(eventType string, userID int64, email string) UserEvent {
	return UserEvent{
		ID:         uuid.NewString(),
		Type:       eventType,
		UserID:     userID,
		Email:      email,
		OccurredAt: time.Now().UTC(),
	}
}

// EventPublisher publishes user events as JSON to a single topic.
type EventPublisher struct {
	mq    *MQ
	topic string
}

// NewEventPublisher returns a publisher writing to topic.
func NewEventPublisher(m *MQ, topic string) *EventPublisher {
	return &EventPublisher{mq: m, topic: topic}
}

// Publish encodes and sends evt.
func (p *EventPublisher) Publish(ctx context.Context, evt UserEvent) error {
	if p == nil || p.mq == nil {
		return errors.New("event publisher not configured")
	}
	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("encode user event: %w", err)
	}
	if _, err := p.mq.Publish(ctx, p.topic, data, map[string]string{
		AttrEventType: evt.Type,
		AttrUserID:    strconv.FormatInt(evt.UserID, 10),
	}); err != nil {
		return fmt.Errorf("publish %s: %w", evt.Type, err)
	}
	return nil
}

// DecodeUserEvent parses a message produced by EventPublisher.
func DecodeUserEvent(msg Message) (UserEvent, error) {
	var evt UserEvent
	if err := json.Unmarshal(msg.Data, &evt); err != nil {
		return UserEvent{}, fmt.Errorf("decode user event: %w", err)
	}
	return evt, nil
}
