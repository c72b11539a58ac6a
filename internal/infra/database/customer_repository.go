package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/xavierca1/healing-ledger/internal/entity"
)

type CustomerRepository struct {
	DB *sqlx.DB
}

func NewCustomerRepository(db *sqlx.DB) *CustomerRepository {
	return &CustomerRepository{DB: db}
}

// Upsert keeps one row per email. Empty name/processor id never erase stored values.
func (r *CustomerRepository) Upsert(ctx context.Context, c *entity.Customer) error {
	query := r.DB.Rebind(`
		INSERT INTO customers (id, email, name, stripe_customer_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (email)
		DO UPDATE SET
			name = COALESCE(excluded.name, customers.name),
			stripe_customer_id = COALESCE(excluded.stripe_customer_id, customers.stripe_customer_id),
			updated_at = excluded.updated_at
	`)

	_, err := r.DB.ExecContext(ctx, query, c.ID, c.Email, c.Name, c.StripeCustomerID, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert customer: %w", err)
	}

	stored := r.DB.Rebind(`SELECT id, email, name, stripe_customer_id, created_at, updated_at FROM customers WHERE email = ?`)
	if err := r.DB.GetContext(ctx, c, stored, c.Email); err != nil {
		return fmt.Errorf("failed to reload customer: %w", err)
	}
	return nil
}

func (r *CustomerRepository) FindByID(ctx context.Context, id string) (*entity.Customer, error) {
	var c entity.Customer
	query := r.DB.Rebind(`SELECT id, email, name, stripe_customer_id, created_at, updated_at FROM customers WHERE id = ?`)
	if err := r.DB.GetContext(ctx, &c, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, entity.ErrCustomerNotFound
		}
		return nil, fmt.Errorf("failed to get customer: %w", err)
	}
	return &c, nil
}
