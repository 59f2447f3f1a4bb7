// Cache-aside decorator over the product repository. Reads go through redis
// with a TTL; every mutation invalidates the touched keys. Redis trouble is
// never fatal — reads fall through to the database.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"marketplace/internal/models"
	"marketplace/internal/repository"
)

const notFoundMarker = "notfound"

type CachedProductRepository struct {
	realRepo repository.ProductRepository
	redis    *redis.Client
	ttl      time.Duration
	logger   *zap.Logger
}

func NewCachedProductRepository(realRepo repository.ProductRepository, rdb *redis.Client, ttl time.Duration, logger *zap.Logger) *CachedProductRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &CachedProductRepository{
		realRepo: realRepo,
		redis:    rdb,
		ttl:      ttl,
		logger:   logger,
	}
}

func productKey(id int) string { return fmt.Sprintf("product:%d", id) }

func categoryKey(category string) string { return "products:category:" + category }

const allKey = "products:all"

func (c *CachedProductRepository) GetByID(ctx context.Context, id int) (*models.Product, error) {
	key := productKey(id)

	data, err := c.redis.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		if string(data) == notFoundMarker {
			return nil, repository.ErrNotFound
		}
		var product models.Product
		if err := json.Unmarshal(data, &product); err != nil {
			c.logger.Warn("failed to unmarshal cached product, falling back to db", zap.Error(err))
			break
		}
		return &product, nil

	case errors.Is(err, redis.Nil):

	default:
		c.logger.Warn("redis read failed, falling back to db", zap.Error(err))
	}

	product, err := c.realRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			if setErr := c.redis.Set(ctx, key, notFoundMarker, time.Minute).Err(); setErr != nil {
				c.logger.Warn("failed to cache notfound marker", zap.Error(setErr))
			}
		}
		return nil, err
	}

	c.set(ctx, key, product)
	return product, nil
}

func (c *CachedProductRepository) GetAll(ctx context.Context) ([]models.Product, error) {
	if products, ok := c.getList(ctx, allKey); ok {
		return products, nil
	}

	products, err := c.realRepo.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	c.set(ctx, allKey, products)
	return products, nil
}

func (c *CachedProductRepository) GetByCategory(ctx context.Context, category string) ([]models.Product, error) {
	key := categoryKey(category)
	if products, ok := c.getList(ctx, key); ok {
		return products, nil
	}

	products, err := c.realRepo.GetByCategory(ctx, category)
	if err != nil {
		return nil, err
	}
	c.set(ctx, key, products)
	return products, nil
}

func (c *CachedProductRepository) Create(ctx context.Context, product *models.Product) error {
	if err := c.realRepo.Create(ctx, product); err != nil {
		return err
	}
	c.del(ctx, allKey)
	if product.Category != "" {
		c.del(ctx, categoryKey(product.Category))
	}
	return nil
}

func (c *CachedProductRepository) Update(ctx context.Context, product *models.Product) error {
	old, err := c.realRepo.GetByID(ctx, product.ProductID)
	if err == nil && old.Category != product.Category {
		c.del(ctx, categoryKey(old.Category))
	}

	if err := c.realRepo.Update(ctx, product); err != nil {
		c.del(ctx, productKey(product.ProductID))
		return err
	}

	c.del(ctx, productKey(product.ProductID), allKey)
	if product.Category != "" {
		c.del(ctx, categoryKey(product.Category))
	}
	return nil
}

func (c *CachedProductRepository) Delete(ctx context.Context, id int) error {
	product, err := c.realRepo.GetByID(ctx, id)
	if err == nil && product.Category != "" {
		c.del(ctx, categoryKey(product.Category))
	}

	if err := c.realRepo.Delete(ctx, id); err != nil {
		c.del(ctx, productKey(id))
		return err
	}

	c.del(ctx, productKey(id), allKey)
	return nil
}

// Invalidate drops cached entries for the given products. Called after a
// successful checkout so stock and status reads converge promptly.
func (c *CachedProductRepository) Invalidate(ctx context.Context, ids ...int) {
	keys := make([]string, 0, len(ids)+1)
	for _, id := range ids {
		keys = append(keys, productKey(id))
	}
	keys = append(keys, allKey)
	c.del(ctx, keys...)
}

func (c *CachedProductRepository) getList(ctx context.Context, key string) ([]models.Product, bool) {
	data, err := c.redis.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("redis read failed, falling back to db", zap.Error(err))
		}
		return nil, false
	}

	var products []models.Product
	if err := json.Unmarshal(data, &products); err != nil {
		c.logger.Warn("failed to unmarshal cached products, falling back to db", zap.Error(err))
		return nil, false
	}
	return products, true
}

func (c *CachedProductRepository) set(ctx context.Context, key string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		c.logger.Warn("failed to marshal for cache", zap.String("key", key), zap.Error(err))
		return
	}
	if err := c.redis.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.logger.Warn("failed to write cache", zap.String("key", key), zap.Error(err))
	}
}

func (c *CachedProductRepository) del(ctx context.Context, keys ...string) {
	if err := c.redis.Del(ctx, keys...).Err(); err != nil {
		c.logger.Warn("failed to invalidate cache", zap.Strings("keys", keys), zap.Error(err))
	}
}
