package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/xavierca1/healing-ledger/internal/entity"
)

const purchaseColumns = `id, customer_id, product_id, amount, currency, status, payment_ref, email_sent, created_at, updated_at`

const purchaseDetailSelect = `
	SELECT pu.id, pu.customer_id, pu.product_id, pu.amount, pu.currency, pu.status, pu.payment_ref,
	       pu.email_sent, pu.created_at, pu.updated_at,
	       c.id, c.email, c.name, c.stripe_customer_id, c.created_at, c.updated_at,
	       p.id, p.slug, p.name, p.description, p.price, p.currency, p.active, p.file_url,
	       p.created_at, p.updated_at
	FROM purchases pu
	JOIN customers c ON c.id = pu.customer_id
	JOIN products p ON p.id = pu.product_id
`

type PurchaseRepository struct {
	DB *sqlx.DB
}

func NewPurchaseRepository(db *sqlx.DB) *PurchaseRepository {
	return &PurchaseRepository{DB: db}
}

func (r *PurchaseRepository) Create(ctx context.Context, p *entity.Purchase) error {
	query := r.DB.Rebind(`
		INSERT INTO purchases (` + purchaseColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	_, err := r.DB.ExecContext(ctx, query,
		p.ID, p.CustomerID, p.ProductID, p.Amount, p.Currency, p.Status, p.PaymentRef, p.EmailSent, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("purchase references unknown customer or product: %w", entity.ErrNotFound)
		}
		return fmt.Errorf("failed to create purchase: %w", err)
	}
	return nil
}

func (r *PurchaseRepository) Delete(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, r.DB.Rebind(`DELETE FROM purchases WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("failed to delete purchase: %w", err)
	}
	return expectAffected(res, entity.ErrPurchaseNotFound)
}

func (r *PurchaseRepository) FindDetailByID(ctx context.Context, id string) (*entity.PurchaseDetail, error) {
	details, err := r.queryDetails(ctx, purchaseDetailSelect+` WHERE pu.id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(details) == 0 {
		return nil, entity.ErrPurchaseNotFound
	}
	return details[0], nil
}

func (r *PurchaseRepository) List(ctx context.Context, limit, offset int) ([]*entity.PurchaseDetail, error) {
	return r.queryDetails(ctx, purchaseDetailSelect+` ORDER BY pu.created_at DESC, pu.id DESC LIMIT ? OFFSET ?`, limit, offset)
}

func (r *PurchaseRepository) ListByCustomer(ctx context.Context, customerID string) ([]*entity.PurchaseDetail, error) {
	return r.queryDetails(ctx, purchaseDetailSelect+` WHERE pu.customer_id = ? ORDER BY pu.created_at DESC, pu.id DESC`, customerID)
}

func (r *PurchaseRepository) ListByPaymentRef(ctx context.Context, paymentRef string) ([]*entity.PurchaseDetail, error) {
	return r.queryDetails(ctx, purchaseDetailSelect+` WHERE pu.payment_ref = ? ORDER BY pu.created_at ASC, pu.id ASC`, paymentRef)
}

func (r *PurchaseRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.DB.GetContext(ctx, &n, `SELECT COUNT(*) FROM purchases`); err != nil {
		return 0, fmt.Errorf("failed to count purchases: %w", err)
	}
	return n, nil
}

func (r *PurchaseRepository) CountByProduct(ctx context.Context, productID string) (int, error) {
	var n int
	if err := r.DB.GetContext(ctx, &n, r.DB.Rebind(`SELECT COUNT(*) FROM purchases WHERE product_id = ?`), productID); err != nil {
		return 0, fmt.Errorf("failed to count product purchases: %w", err)
	}
	return n, nil
}

// MarkEmailSent is idempotent: re-flagging an already flagged purchase still matches the row.
func (r *PurchaseRepository) MarkEmailSent(ctx context.Context, id string) error {
	query := r.DB.Rebind(`UPDATE purchases SET email_sent = ?, updated_at = ? WHERE id = ?`)
	res, err := r.DB.ExecContext(ctx, query, true, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to flag email sent: %w", err)
	}
	return expectAffected(res, entity.ErrPurchaseNotFound)
}

func (r *PurchaseRepository) UpdateStatus(ctx context.Context, id string, status entity.PurchaseStatus) error {
	query := r.DB.Rebind(`UPDATE purchases SET status = ?, updated_at = ? WHERE id = ?`)
	res, err := r.DB.ExecContext(ctx, query, status, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update purchase status: %w", err)
	}
	return expectAffected(res, entity.ErrPurchaseNotFound)
}

func (r *PurchaseRepository) UpdateStatusByPaymentRef(ctx context.Context, paymentRef string, status entity.PurchaseStatus) (int, error) {
	query := r.DB.Rebind(`UPDATE purchases SET status = ?, updated_at = ? WHERE payment_ref = ?`)
	res, err := r.DB.ExecContext(ctx, query, status, time.Now().UTC(), paymentRef)
	if err != nil {
		return 0, fmt.Errorf("failed to update purchase status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return int(n), nil
}

func (r *PurchaseRepository) TransitionStatus(ctx context.Context, id string, from, to entity.PurchaseStatus) (bool, error) {
	query := r.DB.Rebind(`UPDATE purchases SET status = ?, updated_at = ? WHERE id = ? AND status = ?`)
	res, err := r.DB.ExecContext(ctx, query, to, time.Now().UTC(), id, from)
	if err != nil {
		return false, fmt.Errorf("failed to transition purchase status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n > 0, nil
}

func (r *PurchaseRepository) ListCompletedSince(ctx context.Context, since time.Time) ([]*entity.Purchase, error) {
	query := r.DB.Rebind(`
		SELECT ` + purchaseColumns + `
		FROM purchases
		WHERE status = ? AND created_at >= ?
		ORDER BY created_at ASC
	`)
	purchases := []*entity.Purchase{}
	if err := r.DB.SelectContext(ctx, &purchases, query, entity.PurchaseCompleted, since.UTC()); err != nil {
		return nil, fmt.Errorf("failed to list completed purchases: %w", err)
	}
	return purchases, nil
}

func (r *PurchaseRepository) queryDetails(ctx context.Context, query string, args ...any) ([]*entity.PurchaseDetail, error) {
	rows, err := r.DB.QueryContext(ctx, r.DB.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query purchases: %w", err)
	}
	defer rows.Close()

	details := []*entity.PurchaseDetail{}
	for rows.Next() {
		d := &entity.PurchaseDetail{}
		err := rows.Scan(
			&d.ID, &d.CustomerID, &d.ProductID, &d.Amount, &d.Currency, &d.Status, &d.PaymentRef,
			&d.EmailSent, &d.CreatedAt, &d.UpdatedAt,
			&d.Customer.ID, &d.Customer.Email, &d.Customer.Name, &d.Customer.StripeCustomerID,
			&d.Customer.CreatedAt, &d.Customer.UpdatedAt,
			&d.Product.ID, &d.Product.Slug, &d.Product.Name, &d.Product.Description, &d.Product.Price,
			&d.Product.Currency, &d.Product.Active, &d.Product.FileURL, &d.Product.CreatedAt, &d.Product.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan purchase: %w", err)
		}
		details = append(details, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate purchases: %w", err)
	}
	return details, nil
}
