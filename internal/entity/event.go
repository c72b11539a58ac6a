package entity

import (
	"context"
	"time"
)

const (
	EventPurchaseRecorded      = "purchase.recorded"
	EventPurchaseStatusChanged = "purchase.status_changed"
	EventLeadCaptured          = "lead.captured"
	EventAILeadCaptured        = "ai_lead.captured"
)

// Event is a fact published after a successful write. Key orders events per aggregate.
type Event struct {
	Type       string    `json:"type"`
	Key        string    `json:"key"`
	OccurredAt time.Time `json:"occurred_at"`
	Payload    any       `json:"payload"`
}

func NewEvent(eventType, key string, payload any) Event {
	return Event{
		Type:       eventType,
		Key:        key,
		OccurredAt: time.Now().UTC(),
		Payload:    payload,
	}
}

type EventPublisher interface {
	Publish(ctx context.Context, e Event) error
}
