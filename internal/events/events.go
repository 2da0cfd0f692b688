// Package events publishes domain events (registrations, submitted scores)
// for downstream consumers such as analytics.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const (
	TypeUserRegistered = "user_registered"
	TypeScoreSubmitted = "score_submitted"
)

type Event struct {
	ID         uuid.UUID      `json:"id"`
	Type       string         `json:"type"`
	UserID     int64          `json:"user_id"`
	Payload    map[string]any `json:"payload,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// New stamps an event with a fresh id and the current time.
func New(eventType string, userID int64, payload map[string]any) Event {
	return Event{
		ID:         uuid.New(),
		Type:       eventType,
		UserID:     userID,
		Payload:    payload,
		OccurredAt: time.Now().UTC(),
	}
}

type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// NopPublisher drops every event. Used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }

func (NopPublisher) Close() error { return nil }
