package entity

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type EmailStatus string

const (
	EmailPending   EmailStatus = "pending"
	EmailSent      EmailStatus = "sent"
	EmailDelivered EmailStatus = "delivered"
	EmailFailed    EmailStatus = "failed"
	EmailBounced   EmailStatus = "bounced"
)

func (s EmailStatus) Valid() bool {
	switch s {
	case EmailPending, EmailSent, EmailDelivered, EmailFailed, EmailBounced:
		return true
	}
	return false
}

// Done reports whether no further send attempt should be made.
func (s EmailStatus) Done() bool {
	return s == EmailSent || s == EmailDelivered || s == EmailBounced
}

const TemplatePurchaseDelivery = "purchase_delivery"

type EmailLog struct {
	ID         string      `json:"id" db:"id"`
	To         string      `json:"to" db:"recipient"`
	Subject    string      `json:"subject" db:"subject"`
	Template   string      `json:"template" db:"template"`
	Status     EmailStatus `json:"status" db:"status"`
	PurchaseID *string     `json:"purchase_id,omitempty" db:"purchase_id"`
	ProviderID *string     `json:"provider_id,omitempty" db:"provider_id"`
	Attempts   int         `json:"attempts" db:"attempts"`
	LastError  *string     `json:"last_error,omitempty" db:"last_error"`
	CreatedAt  time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at" db:"updated_at"`
}

func NewEmailLog(to, subject, template string, purchaseID string) *EmailLog {
	now := time.Now().UTC()
	return &EmailLog{
		ID:         uuid.New().String(),
		To:         NormalizeEmail(to),
		Subject:    subject,
		Template:   template,
		Status:     EmailPending,
		PurchaseID: optional(purchaseID),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

type EmailLogRepositoryInterface interface {
	Create(ctx context.Context, log *EmailLog) error
	FindByID(ctx context.Context, id string) (*EmailLog, error)
	RecordAttempt(ctx context.Context, id string, at time.Time) error
	UpdateStatus(ctx context.Context, id string, status EmailStatus, providerID, lastError string) error
	UpdateStatusByProviderID(ctx context.Context, providerID string, status EmailStatus) error
	ListStalePending(ctx context.Context, olderThan time.Time, limit int) ([]*EmailLog, error)
	List(ctx context.Context, status EmailStatus, limit, offset int) ([]*EmailLog, error)
	Count(ctx context.Context, status EmailStatus) (int, error)
}
