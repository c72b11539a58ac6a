package entity

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

type Product struct {
	ID          string    `json:"id" db:"id"`
	Slug        string    `json:"slug" db:"slug"`
	Name        string    `json:"name" db:"name"`
	Description string    `json:"description" db:"description"`
	Price       int64     `json:"price" db:"price"` // minor units (cents)
	Currency    string    `json:"currency" db:"currency"`
	Active      bool      `json:"active" db:"active"`
	FileURL     *string   `json:"file_url,omitempty" db:"file_url"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// ProductPatch carries the fields of a partial update. Nil means "leave as is".
type ProductPatch struct {
	Slug        *string `json:"slug,omitempty"`
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	Price       *int64  `json:"price,omitempty"`
	Currency    *string `json:"currency,omitempty"`
	Active      *bool   `json:"active,omitempty"`
	FileURL     *string `json:"file_url,omitempty"`
}

type ProductSalesStats struct {
	Product
	PurchaseCount int64 `json:"purchase_count" db:"purchase_count"`
	TotalRevenue  int64 `json:"total_revenue" db:"total_revenue"`
}

func NewProduct(slug, name, description string, price int64, currency string, active bool, fileURL *string) (*Product, error) {
	if currency == "" {
		currency = "usd"
	}
	now := time.Now().UTC()
	p := &Product{
		ID:          uuid.New().String(),
		Slug:        strings.TrimSpace(slug),
		Name:        strings.TrimSpace(name),
		Description: description,
		Price:       price,
		Currency:    strings.ToLower(currency),
		Active:      active,
		FileURL:     fileURL,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Product) Validate() error {
	if p.Slug == "" {
		return errors.New("slug is required")
	}
	if !slugPattern.MatchString(p.Slug) {
		return errors.New("slug must be lowercase letters, digits and dashes")
	}
	if p.Name == "" {
		return errors.New("name is required")
	}
	if p.Price < 0 {
		return errors.New("price must not be negative")
	}
	return nil
}

// Apply copies the non-nil fields of patch into p and reports whether the slug changed.
func (p *Product) Apply(patch ProductPatch) (slugChanged bool) {
	if patch.Slug != nil {
		s := strings.TrimSpace(*patch.Slug)
		slugChanged = s != p.Slug
		p.Slug = s
	}
	if patch.Name != nil {
		p.Name = strings.TrimSpace(*patch.Name)
	}
	if patch.Description != nil {
		p.Description = *patch.Description
	}
	if patch.Price != nil {
		p.Price = *patch.Price
	}
	if patch.Currency != nil {
		p.Currency = strings.ToLower(*patch.Currency)
	}
	if patch.Active != nil {
		p.Active = *patch.Active
	}
	if patch.FileURL != nil {
		if *patch.FileURL == "" {
			p.FileURL = nil
		} else {
			url := *patch.FileURL
			p.FileURL = &url
		}
	}
	p.UpdatedAt = time.Now().UTC()
	return slugChanged
}

type ProductRepositoryInterface interface {
	Create(ctx context.Context, p *Product) error
	Update(ctx context.Context, p *Product) error
	Delete(ctx context.Context, id string) error
	FindByID(ctx context.Context, id string) (*Product, error)
	FindBySlug(ctx context.Context, slug string) (*Product, error)
	SlugTaken(ctx context.Context, slug, excludeID string) (bool, error)
	ListActive(ctx context.Context) ([]*Product, error)
	ListAll(ctx context.Context) ([]*Product, error)
	StatsWithSales(ctx context.Context) ([]*ProductSalesStats, error)
}
