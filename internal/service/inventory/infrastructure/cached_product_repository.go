package infrastructure

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/pkg/errors"
	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"inventory/internal/pkg/logger"
	"inventory/internal/service/inventory/domain"
)

const productCacheKeyPrefix = "inventory:product:"

// CachedProductRepository 在 ProductRepository 外面加一层 Redis 读缓存（cache-aside）。
// 缓存只服务于 FindByID；Save 把新值直接写入缓存，回源的结果只在键不存在时写入（SETNX），
// 这样一个在 Save 之前读到的旧值不会覆盖 Save 写入的新值。
// 带 WithConsistentRead 的读取总是直达底层存储。
// Redis 不可用时退化为直接读取底层存储。
type CachedProductRepository struct {
	inner domain.ProductRepository
	cache goredis.UniversalClient
	ttl   time.Duration
	group singleflight.Group
}

func NewCachedProductRepository(inner domain.ProductRepository, cache goredis.UniversalClient, ttl time.Duration) *CachedProductRepository {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &CachedProductRepository{inner: inner, cache: cache, ttl: ttl}
}

func productCacheKey(id uint64) string {
	return fmt.Sprintf("%s%d", productCacheKeyPrefix, id)
}

func (r *CachedProductRepository) FindByID(ctx context.Context, id uint64) (*domain.Product, error) {
	if domain.IsConsistentRead(ctx) {
		return r.inner.FindByID(ctx, id)
	}

	if cached, ok := r.getCached(ctx, id); ok {
		return cached, nil
	}

	// 同一个商品的并发未命中只回源一次
	v, err, _ := r.group.Do(strconv.FormatUint(id, 10), func() (interface{}, error) {
		product, err := r.inner.FindByID(ctx, id)
		if err != nil || product == nil {
			return product, err
		}
		r.fillCache(ctx, product)
		return product, nil
	})
	if err != nil {
		return nil, err
	}
	product, _ := v.(*domain.Product)
	return product.Clone(), nil
}

func (r *CachedProductRepository) FindByCode(ctx context.Context, code string) (*domain.Product, error) {
	return r.inner.FindByCode(ctx, code)
}

func (r *CachedProductRepository) ListAll(ctx context.Context) ([]*domain.Product, error) {
	return r.inner.ListAll(ctx)
}

func (r *CachedProductRepository) Save(ctx context.Context, product *domain.Product) (*domain.Product, error) {
	saved, err := r.inner.Save(ctx, product)
	if err != nil {
		return nil, err
	}
	r.writeThrough(ctx, saved)
	return saved, nil
}

func (r *CachedProductRepository) getCached(ctx context.Context, id uint64) (*domain.Product, bool) {
	raw, err := r.cache.Get(ctx, productCacheKey(id)).Bytes()
	if err != nil {
		if !errors.Is(err, goredis.Nil) {
			logger.Ctx(ctx).Warn().Err(err).Uint64("product_id", id).Msg("Error reading product from Redis, falling back to store")
		}
		return nil, false
	}
	var product domain.Product
	if err := json.Unmarshal(raw, &product); err != nil {
		logger.Ctx(ctx).Warn().Err(err).Uint64("product_id", id).Msg("Failed to unmarshal cached product")
		return nil, false
	}
	return &product, true
}

// fillCache 回源后填充缓存，键已存在说明期间有 Save 写入了更新的值
func (r *CachedProductRepository) fillCache(ctx context.Context, product *domain.Product) {
	payload, err := json.Marshal(product)
	if err != nil {
		return
	}
	if err := r.cache.SetNX(ctx, productCacheKey(product.ID), payload, r.ttl).Err(); err != nil {
		// 缓存写失败是软失败
		logger.Ctx(ctx).Warn().Err(err).Uint64("product_id", product.ID).Msg("Error setting product in Redis")
	}
}

// writeThrough 用保存后的值覆盖缓存；写失败时删除键，避免旧值留到 TTL 结束
func (r *CachedProductRepository) writeThrough(ctx context.Context, product *domain.Product) {
	key := productCacheKey(product.ID)
	payload, err := json.Marshal(product)
	if err == nil {
		err = r.cache.Set(ctx, key, payload, r.ttl).Err()
	}
	if err == nil {
		return
	}
	logger.Ctx(ctx).Warn().Err(err).Uint64("product_id", product.ID).Msg("Error writing product to Redis, invalidating")
	if err := r.cache.Del(ctx, key).Err(); err != nil {
		logger.Ctx(ctx).Error().Err(err).Uint64("product_id", product.ID).Msg("Error invalidating cached product")
	}
}
