package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/shopmesh/marketplace/internal/model"
)

// CachedProductRepo wraps ProductRepo with a Redis cache-aside layer for the
// hot read paths.  A singleflight group collapses concurrent misses for the
// same product into one database fetch, so a stampede on a newly popular
// product costs a single query.  Writes invalidate rather than update the
// cache.  Availability is deliberately NOT cached: stale stock numbers would
// feed the checkout validation step.
type CachedProductRepo struct {
	repo  *ProductRepo
	rdb   *redis.Client
	ttl   time.Duration
	group singleflight.Group
}

// NewCachedProductRepo returns a caching wrapper around repo.  A nil Redis
// client disables caching entirely; every call falls through to the
// database.
func NewCachedProductRepo(repo *ProductRepo, rdb *redis.Client, ttl time.Duration) *CachedProductRepo {
	return &CachedProductRepo{repo: repo, rdb: rdb, ttl: ttl}
}

func productKey(id uint64) string { return fmt.Sprintf("product:%d", id) }

// GetByID returns a product, serving repeated reads from Redis.
func (r *CachedProductRepo) GetByID(ctx context.Context, id uint64) (*model.Product, error) {
	if r.rdb == nil {
		return r.repo.GetByID(ctx, id)
	}
	key := productKey(id)
	if raw, err := r.rdb.Get(ctx, key).Bytes(); err == nil {
		var p model.Product
		if err := json.Unmarshal(raw, &p); err == nil {
			return &p, nil
		}
	} else if err != redis.Nil {
		log.Printf("product-cache: redis get failed for %s: %v", key, err)
	}

	v, err, _ := r.group.Do(key, func() (interface{}, error) {
		p, err := r.repo.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if raw, err := json.Marshal(p); err == nil {
			if err := r.rdb.Set(ctx, key, raw, r.ttl).Err(); err != nil {
				log.Printf("product-cache: redis set failed for %s: %v", key, err)
			}
		}
		return p, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*model.Product), nil
}

// Create inserts the product and leaves the cache untouched (a new ID cannot
// have a stale entry).
func (r *CachedProductRepo) Create(ctx context.Context, p *model.Product) error {
	return r.repo.Create(ctx, p)
}

// Update rewrites the product and drops its cache entry.
func (r *CachedProductRepo) Update(ctx context.Context, p *model.Product) error {
	if err := r.repo.Update(ctx, p); err != nil {
		return err
	}
	r.invalidate(ctx, p.ID)
	return nil
}

// Deactivate soft-deletes the product and drops its cache entry.
func (r *CachedProductRepo) Deactivate(ctx context.Context, id uint64) error {
	if err := r.repo.Deactivate(ctx, id); err != nil {
		return err
	}
	r.invalidate(ctx, id)
	return nil
}

// List always hits the database; pages are cheap and caching every
// limit/offset pair would mostly hold garbage.
func (r *CachedProductRepo) List(ctx context.Context, limit, offset int) ([]model.Product, error) {
	return r.repo.List(ctx, limit, offset)
}

// PriceAndStock bypasses the cache so checkout validation never sees a stale
// available quantity.
func (r *CachedProductRepo) PriceAndStock(ctx context.Context, id uint64) (*model.PriceAndStock, error) {
	return r.repo.PriceAndStock(ctx, id)
}

func (r *CachedProductRepo) invalidate(ctx context.Context, id uint64) {
	if r.rdb == nil {
		return
	}
	if err := r.rdb.Del(ctx, productKey(id)).Err(); err != nil {
		log.Printf("product-cache: invalidate failed for product %d: %v", id, err)
	}
}
