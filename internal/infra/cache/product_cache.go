package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/xavierca1/healing-ledger/internal/entity"
)

const activeCatalogKey = "catalog:active"

// ProductRepository serves ListActive from Redis and drops the cached list on every
// write. Redis failures fall through to the wrapped repository.
type ProductRepository struct {
	entity.ProductRepositoryInterface
	Client *redis.Client
	TTL    time.Duration
	Logger *zap.Logger
}

func NewProductRepository(next entity.ProductRepositoryInterface, client *redis.Client, ttl time.Duration, logger *zap.Logger) *ProductRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProductRepository{ProductRepositoryInterface: next, Client: client, TTL: ttl, Logger: logger}
}

func (r *ProductRepository) ListActive(ctx context.Context) ([]*entity.Product, error) {
	raw, err := r.Client.Get(ctx, activeCatalogKey).Bytes()
	switch {
	case err == nil:
		var products []*entity.Product
		if err := json.Unmarshal(raw, &products); err == nil {
			return products, nil
		}
		r.Logger.Warn("discarding corrupt catalog cache entry")
	case !errors.Is(err, redis.Nil):
		r.Logger.Warn("catalog cache read failed", zap.Error(err))
	}

	products, err := r.ProductRepositoryInterface.ListActive(ctx)
	if err != nil {
		return nil, err
	}

	if payload, err := json.Marshal(products); err == nil {
		if err := r.Client.Set(ctx, activeCatalogKey, payload, r.TTL).Err(); err != nil {
			r.Logger.Warn("catalog cache write failed", zap.Error(err))
		}
	}
	return products, nil
}

func (r *ProductRepository) Create(ctx context.Context, p *entity.Product) error {
	if err := r.ProductRepositoryInterface.Create(ctx, p); err != nil {
		return err
	}
	r.invalidate(ctx)
	return nil
}

func (r *ProductRepository) Update(ctx context.Context, p *entity.Product) error {
	if err := r.ProductRepositoryInterface.Update(ctx, p); err != nil {
		return err
	}
	r.invalidate(ctx)
	return nil
}

func (r *ProductRepository) Delete(ctx context.Context, id string) error {
	if err := r.ProductRepositoryInterface.Delete(ctx, id); err != nil {
		return err
	}
	r.invalidate(ctx)
	return nil
}

func (r *ProductRepository) invalidate(ctx context.Context) {
	if err := r.Client.Del(ctx, activeCatalogKey).Err(); err != nil {
		r.Logger.Warn("catalog cache invalidation failed", zap.Error(err))
	}
}
