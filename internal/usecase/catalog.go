package usecase

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/xavierca1/healing-ledger/internal/entity"
)

type CreateProductInput struct {
	Slug        string  `json:"slug"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Price       int64   `json:"price"`
	Currency    string  `json:"currency"`
	Active      *bool   `json:"active"`
	FileURL     *string `json:"file_url"`
}

type CatalogService struct {
	Products  entity.ProductRepositoryInterface
	Purchases entity.PurchaseRepository
	Logger    *zap.Logger
}

func NewCatalogService(products entity.ProductRepositoryInterface, purchases entity.PurchaseRepository, logger *zap.Logger) *CatalogService {
	return &CatalogService{
		Products:  products,
		Purchases: purchases,
		Logger:    orNop(logger),
	}
}

func (s *CatalogService) ListActive(ctx context.Context) ([]*entity.Product, error) {
	products, err := s.Products.ListActive(ctx)
	if err != nil {
		s.Logger.Error("list active products", zap.Error(err))
		return nil, translate(err, "list active products")
	}
	if products == nil {
		products = []*entity.Product{}
	}
	return products, nil
}

func (s *CatalogService) ListAll(ctx context.Context) ([]*entity.Product, error) {
	products, err := s.Products.ListAll(ctx)
	if err != nil {
		return nil, translate(err, "list products")
	}
	return products, nil
}

func (s *CatalogService) GetBySlug(ctx context.Context, slug string) (*entity.Product, error) {
	p, err := s.Products.FindBySlug(ctx, slug)
	if err != nil {
		return nil, translate(err, "find product")
	}
	return p, nil
}

func (s *CatalogService) Create(ctx context.Context, input CreateProductInput) (*entity.Product, error) {
	active := true
	if input.Active != nil {
		active = *input.Active
	}
	var fileURL *string
	if input.FileURL != nil && strings.TrimSpace(*input.FileURL) != "" {
		fileURL = input.FileURL
	}

	p, err := entity.NewProduct(input.Slug, input.Name, input.Description, input.Price, input.Currency, active, fileURL)
	if err != nil {
		return nil, validation(err.Error())
	}

	if err := s.ensureSlugFree(ctx, p.Slug, ""); err != nil {
		return nil, err
	}
	if err := s.Products.Create(ctx, p); err != nil {
		err = translate(err, "create product")
		if IsTechnicalError(err) {
			s.Logger.Error("create product", zap.String("slug", p.Slug), zap.Error(err))
		}
		return nil, err
	}

	s.Logger.Info("product created", zap.String("id", p.ID), zap.String("slug", p.Slug))
	return p, nil
}

// Update applies only the fields present in patch.
func (s *CatalogService) Update(ctx context.Context, id string, patch entity.ProductPatch) (*entity.Product, error) {
	p, err := s.Products.FindByID(ctx, id)
	if err != nil {
		return nil, translate(err, "find product")
	}

	if slugChanged := p.Apply(patch); slugChanged {
		if err := s.ensureSlugFree(ctx, p.Slug, p.ID); err != nil {
			return nil, err
		}
	}
	if err := p.Validate(); err != nil {
		return nil, validation(err.Error())
	}

	if err := s.Products.Update(ctx, p); err != nil {
		return nil, translate(err, "update product")
	}
	return p, nil
}

// Delete refuses products that any purchase references; deactivate those instead.
func (s *CatalogService) Delete(ctx context.Context, id string) error {
	if _, err := s.Products.FindByID(ctx, id); err != nil {
		return translate(err, "find product")
	}

	n, err := s.Purchases.CountByProduct(ctx, id)
	if err != nil {
		return translate(err, "count purchases")
	}
	if n > 0 {
		return translate(entity.ErrProductHasPurchases, "delete product")
	}

	if err := s.Products.Delete(ctx, id); err != nil {
		return translate(err, "delete product")
	}
	s.Logger.Info("product deleted", zap.String("id", id))
	return nil
}

func (s *CatalogService) StatsWithSales(ctx context.Context) ([]*entity.ProductSalesStats, error) {
	stats, err := s.Products.StatsWithSales(ctx)
	if err != nil {
		s.Logger.Error("product sales stats", zap.Error(err))
		return nil, translate(err, "product sales stats")
	}
	if stats == nil {
		stats = []*entity.ProductSalesStats{}
	}
	return stats, nil
}

func (s *CatalogService) ensureSlugFree(ctx context.Context, slug, excludeID string) error {
	taken, err := s.Products.SlugTaken(ctx, slug, excludeID)
	if err != nil {
		return translate(err, "check slug")
	}
	if taken {
		return translate(entity.ErrDuplicateSlug, "")
	}
	return nil
}
