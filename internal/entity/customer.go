package entity

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Customer struct {
	ID               string    `json:"id" db:"id"`
	Email            string    `json:"email" db:"email"`
	Name             *string   `json:"name,omitempty" db:"name"`
	StripeCustomerID *string   `json:"stripe_customer_id,omitempty" db:"stripe_customer_id"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time `json:"updated_at" db:"updated_at"`
}

// NewCustomer normalises the email; empty name and processor id are stored as NULL.
func NewCustomer(email, name, stripeCustomerID string) (*Customer, error) {
	now := time.Now().UTC()
	c := &Customer{
		ID:               uuid.New().String(),
		Email:            NormalizeEmail(email),
		Name:             optional(name),
		StripeCustomerID: optional(stripeCustomerID),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if c.Email == "" {
		return nil, errors.New("email is required")
	}
	return c, nil
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

type CustomerRepositoryInterface interface {
	// Upsert inserts or updates by email and fills c with the stored row.
	Upsert(ctx context.Context, c *Customer) error
	FindByID(ctx context.Context, id string) (*Customer, error)
}
