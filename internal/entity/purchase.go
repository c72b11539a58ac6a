package entity

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

type PurchaseStatus string

const (
	PurchasePending   PurchaseStatus = "pending"
	PurchaseCompleted PurchaseStatus = "completed"
	PurchaseFailed    PurchaseStatus = "failed"
	PurchaseRefunded  PurchaseStatus = "refunded"
)

func (s PurchaseStatus) Valid() bool {
	switch s {
	case PurchasePending, PurchaseCompleted, PurchaseFailed, PurchaseRefunded:
		return true
	}
	return false
}

type Purchase struct {
	ID         string         `json:"id" db:"id"`
	CustomerID string         `json:"customer_id" db:"customer_id"`
	ProductID  string         `json:"product_id" db:"product_id"`
	Amount     int64          `json:"amount" db:"amount"` // minor units, frozen at time of sale
	Currency   string         `json:"currency" db:"currency"`
	Status     PurchaseStatus `json:"status" db:"status"`
	PaymentRef *string        `json:"payment_ref,omitempty" db:"payment_ref"`
	EmailSent  bool           `json:"email_sent" db:"email_sent"`
	CreatedAt  time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at" db:"updated_at"`
}

// PurchaseDetail is a purchase joined with its customer and product.
type PurchaseDetail struct {
	Purchase
	Customer Customer `json:"customer"`
	Product  Product  `json:"product"`
}

func NewPurchase(customerID, productID string, amount int64, currency string, status PurchaseStatus, paymentRef string) (*Purchase, error) {
	if customerID == "" {
		return nil, errors.New("customer_id is required")
	}
	if productID == "" {
		return nil, errors.New("product_id is required")
	}
	if amount < 0 {
		return nil, errors.New("amount must not be negative")
	}
	if status == "" {
		status = PurchaseCompleted
	}
	if !status.Valid() {
		return nil, errors.New("status must be one of pending, completed, failed, refunded")
	}
	if currency == "" {
		currency = "usd"
	}

	now := time.Now().UTC()
	return &Purchase{
		ID:         uuid.New().String(),
		CustomerID: customerID,
		ProductID:  productID,
		Amount:     amount,
		Currency:   strings.ToLower(currency),
		Status:     status,
		PaymentRef: optional(paymentRef),
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

type PurchaseRepository interface {
	Create(ctx context.Context, p *Purchase) error
	Delete(ctx context.Context, id string) error
	FindDetailByID(ctx context.Context, id string) (*PurchaseDetail, error)
	List(ctx context.Context, limit, offset int) ([]*PurchaseDetail, error)
	Count(ctx context.Context) (int, error)
	ListByCustomer(ctx context.Context, customerID string) ([]*PurchaseDetail, error)
	CountByProduct(ctx context.Context, productID string) (int, error)
	MarkEmailSent(ctx context.Context, id string) error
	UpdateStatus(ctx context.Context, id string, status PurchaseStatus) error
	UpdateStatusByPaymentRef(ctx context.Context, paymentRef string, status PurchaseStatus) (int, error)
	// TransitionStatus moves the purchase only while it is still in status from.
	TransitionStatus(ctx context.Context, id string, from, to PurchaseStatus) (bool, error)
	ListByPaymentRef(ctx context.Context, paymentRef string) ([]*PurchaseDetail, error)
	ListCompletedSince(ctx context.Context, since time.Time) ([]*Purchase, error)
}
