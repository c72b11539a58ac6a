package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/xavierca1/healing-ledger/internal/entity"
)

const productColumns = `id, slug, name, description, price, currency, active, file_url, created_at, updated_at`

type ProductRepository struct {
	DB *sqlx.DB
}

func NewProductRepository(db *sqlx.DB) *ProductRepository {
	return &ProductRepository{DB: db}
}

func (r *ProductRepository) Create(ctx context.Context, p *entity.Product) error {
	query := r.DB.Rebind(`
		INSERT INTO products (` + productColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	_, err := r.DB.ExecContext(ctx, query,
		p.ID, p.Slug, p.Name, p.Description, p.Price, p.Currency, p.Active, p.FileURL, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return entity.ErrDuplicateSlug
		}
		return fmt.Errorf("failed to create product: %w", err)
	}
	return nil
}

func (r *ProductRepository) Update(ctx context.Context, p *entity.Product) error {
	query := r.DB.Rebind(`
		UPDATE products
		SET slug = ?, name = ?, description = ?, price = ?, currency = ?, active = ?, file_url = ?, updated_at = ?
		WHERE id = ?
	`)
	res, err := r.DB.ExecContext(ctx, query,
		p.Slug, p.Name, p.Description, p.Price, p.Currency, p.Active, p.FileURL, p.UpdatedAt, p.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return entity.ErrDuplicateSlug
		}
		return fmt.Errorf("failed to update product: %w", err)
	}
	return expectAffected(res, entity.ErrProductNotFound)
}

func (r *ProductRepository) Delete(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, r.DB.Rebind(`DELETE FROM products WHERE id = ?`), id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return entity.ErrProductHasPurchases
		}
		return fmt.Errorf("failed to delete product: %w", err)
	}
	return expectAffected(res, entity.ErrProductNotFound)
}

func (r *ProductRepository) FindByID(ctx context.Context, id string) (*entity.Product, error) {
	return r.findOne(ctx, `SELECT `+productColumns+` FROM products WHERE id = ?`, id)
}

func (r *ProductRepository) FindBySlug(ctx context.Context, slug string) (*entity.Product, error) {
	return r.findOne(ctx, `SELECT `+productColumns+` FROM products WHERE slug = ?`, slug)
}

func (r *ProductRepository) findOne(ctx context.Context, query string, arg any) (*entity.Product, error) {
	var p entity.Product
	if err := r.DB.GetContext(ctx, &p, r.DB.Rebind(query), arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, entity.ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	return &p, nil
}

func (r *ProductRepository) SlugTaken(ctx context.Context, slug, excludeID string) (bool, error) {
	var n int
	query := r.DB.Rebind(`SELECT COUNT(*) FROM products WHERE slug = ? AND id <> ?`)
	if err := r.DB.GetContext(ctx, &n, query, slug, excludeID); err != nil {
		return false, fmt.Errorf("failed to check slug: %w", err)
	}
	return n > 0, nil
}

func (r *ProductRepository) ListActive(ctx context.Context) ([]*entity.Product, error) {
	query := r.DB.Rebind(`SELECT ` + productColumns + ` FROM products WHERE active = ? ORDER BY price DESC, name ASC`)
	products := []*entity.Product{}
	if err := r.DB.SelectContext(ctx, &products, query, true); err != nil {
		return nil, fmt.Errorf("failed to list active products: %w", err)
	}
	return products, nil
}

func (r *ProductRepository) ListAll(ctx context.Context) ([]*entity.Product, error) {
	products := []*entity.Product{}
	if err := r.DB.SelectContext(ctx, &products, `SELECT `+productColumns+` FROM products ORDER BY created_at DESC`); err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	return products, nil
}

func (r *ProductRepository) StatsWithSales(ctx context.Context) ([]*entity.ProductSalesStats, error) {
	query := `
		SELECT p.id, p.slug, p.name, p.description, p.price, p.currency, p.active, p.file_url,
		       p.created_at, p.updated_at,
		       COUNT(pu.id) AS purchase_count,
		       COALESCE(SUM(pu.amount), 0) AS total_revenue
		FROM products p
		LEFT JOIN purchases pu ON pu.product_id = p.id
		GROUP BY p.id, p.slug, p.name, p.description, p.price, p.currency, p.active, p.file_url,
		         p.created_at, p.updated_at
		ORDER BY total_revenue DESC, p.name ASC
	`
	stats := []*entity.ProductSalesStats{}
	if err := r.DB.SelectContext(ctx, &stats, query); err != nil {
		return nil, fmt.Errorf("failed to compute product sales: %w", err)
	}
	return stats, nil
}

func expectAffected(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}
