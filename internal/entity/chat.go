package entity

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

type ChatRole string

const (
	RoleUser      ChatRole = "user"
	RoleAssistant ChatRole = "assistant"
)

func (r ChatRole) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// ChatMessage is append-only; Seq breaks ties between equal timestamps.
type ChatMessage struct {
	Seq       int64     `json:"seq" db:"seq"`
	SessionID string    `json:"session_id" db:"session_id"`
	Role      ChatRole  `json:"role" db:"role"`
	Content   string    `json:"content" db:"content"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

func NewChatMessage(sessionID string, role ChatRole, content string) (*ChatMessage, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, errors.New("session_id is required")
	}
	if !role.Valid() {
		return nil, errors.New("role must be user or assistant")
	}
	return &ChatMessage{
		SessionID: sessionID,
		Role:      role,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}, nil
}

type AILead struct {
	ID                  string    `json:"id" db:"id"`
	Email               string    `json:"email" db:"email"`
	SessionID           string    `json:"session_id" db:"session_id"`
	MessageCount        int64     `json:"message_count" db:"message_count"`
	LastInteraction     time.Time `json:"last_interaction" db:"last_interaction"`
	ConvertedToCustomer bool      `json:"converted_to_customer" db:"converted_to_customer"`
	CreatedAt           time.Time `json:"created_at" db:"created_at"`
}

func NewAILead(email, sessionID string) (*AILead, error) {
	email = NormalizeEmail(email)
	if email == "" {
		return nil, errors.New("email is required")
	}
	if strings.TrimSpace(sessionID) == "" {
		return nil, errors.New("session_id is required")
	}
	now := time.Now().UTC()
	return &AILead{
		ID:              uuid.New().String(),
		Email:           email,
		SessionID:       sessionID,
		MessageCount:    1,
		LastInteraction: now,
		CreatedAt:       now,
	}, nil
}

type ChatRepositoryInterface interface {
	Append(ctx context.Context, msg *ChatMessage) error
	History(ctx context.Context, sessionID string) ([]*ChatMessage, error)
}

type AILeadRepositoryInterface interface {
	// Capture inserts a new AI lead or, for a known email, bumps message_count by one,
	// moves it to the given session and refreshes last_interaction.
	Capture(ctx context.Context, lead *AILead) (bool, error)
	// TouchSession reports false when no AI lead is attached to the session.
	TouchSession(ctx context.Context, sessionID string, at time.Time) (bool, error)
	List(ctx context.Context, limit, offset int) ([]*AILead, error)
	Recent(ctx context.Context, limit int) ([]*AILead, error)
	Count(ctx context.Context) (int, error)
	CountCreatedBetween(ctx context.Context, from, to time.Time) (int, error)
	CountConverted(ctx context.Context) (int, error)
	SumMessageCount(ctx context.Context) (int64, error)
	MarkConverted(ctx context.Context, email string) error
}
