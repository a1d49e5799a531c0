package infrastructure

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inventory/internal/service/inventory/domain"
)

// countingProducts 统计穿透到底层存储的次数；afterFind 在读到结果之后、返回之前执行
type countingProducts struct {
	*MemoryProductRepository
	finds     int
	afterFind func()
}

func (c *countingProducts) FindByID(ctx context.Context, id uint64) (*domain.Product, error) {
	c.finds++
	p, err := c.MemoryProductRepository.FindByID(ctx, id)
	if c.afterFind != nil {
		hook := c.afterFind
		c.afterFind = nil
		hook()
	}
	return p, err
}

func TestCachedProductRepository_CacheAside(t *testing.T) {
	ctx := context.Background()
	inner := &countingProducts{MemoryProductRepository: NewMemoryProductRepository()}
	cache := newFakeRedis()
	repo := NewCachedProductRepository(inner, cache, time.Minute)

	saved, err := repo.Save(ctx, &domain.Product{Code: "SKU1", RetailPrice: decimal.RequireFromString("5.00"), Quantity: 10})
	require.NoError(t, err)

	first, err := repo.FindByID(ctx, saved.ID)
	require.NoError(t, err)
	second, err := repo.FindByID(ctx, saved.ID)
	require.NoError(t, err)

	assert.Equal(t, 1, inner.finds, "second read is served from redis")
	assert.Equal(t, first.Quantity, second.Quantity)
	assert.True(t, second.RetailPrice.Equal(decimal.RequireFromString("5.00")))
	assert.Contains(t, cache.data, productCacheKey(saved.ID))
}

func TestCachedProductRepository_SaveWritesThrough(t *testing.T) {
	ctx := context.Background()
	inner := &countingProducts{MemoryProductRepository: NewMemoryProductRepository()}
	cache := newFakeRedis()
	repo := NewCachedProductRepository(inner, cache, time.Minute)

	saved, err := repo.Save(ctx, &domain.Product{Code: "SKU1", Quantity: 10})
	require.NoError(t, err)
	_, err = repo.FindByID(ctx, saved.ID)
	require.NoError(t, err)

	saved.Quantity = 7
	_, err = repo.Save(ctx, saved)
	require.NoError(t, err)

	reloaded, err := repo.FindByID(ctx, saved.ID)
	require.NoError(t, err)
	assert.Equal(t, 7, reloaded.Quantity)
	assert.Equal(t, 1, inner.finds, "the saved value is served from redis")
}

func TestCachedProductRepository_SlowLoaderDoesNotOverwriteNewerSave(t *testing.T) {
	ctx := context.Background()
	inner := &countingProducts{MemoryProductRepository: NewMemoryProductRepository()}
	cache := newFakeRedis()
	repo := NewCachedProductRepository(inner, cache, time.Minute)

	saved, err := inner.Save(ctx, &domain.Product{Code: "SKU1", Quantity: 10})
	require.NoError(t, err)

	// 回源读到 10 之后、写缓存之前，另一个请求把数量改成 3
	inner.afterFind = func() {
		updated := saved.Clone()
		updated.Quantity = 3
		_, err := repo.Save(ctx, updated)
		require.NoError(t, err)
	}

	first, err := repo.FindByID(ctx, saved.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, first.Quantity, "the in-flight read returns what it loaded")

	next, err := repo.FindByID(ctx, saved.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, next.Quantity, "the newer saved value stays cached")
}

func TestCachedProductRepository_FailedWriteThroughInvalidates(t *testing.T) {
	ctx := context.Background()
	inner := &countingProducts{MemoryProductRepository: NewMemoryProductRepository()}
	cache := newFakeRedis()
	repo := NewCachedProductRepository(inner, cache, time.Minute)

	saved, err := repo.Save(ctx, &domain.Product{Code: "SKU1", Quantity: 10})
	require.NoError(t, err)

	cache.failSet = true
	saved.Quantity = 4
	_, err = repo.Save(ctx, saved)
	require.NoError(t, err)
	assert.NotContains(t, cache.data, productCacheKey(saved.ID))
}

func TestCachedProductRepository_ConsistentReadBypassesCache(t *testing.T) {
	ctx := context.Background()
	inner := &countingProducts{MemoryProductRepository: NewMemoryProductRepository()}
	cache := newFakeRedis()
	repo := NewCachedProductRepository(inner, cache, time.Minute)

	saved, err := repo.Save(ctx, &domain.Product{Code: "SKU1", Quantity: 10})
	require.NoError(t, err)
	cache.data[productCacheKey(saved.ID)] = `{"id":1,"code":"SKU1","quantity":999}`

	stale, err := repo.FindByID(ctx, saved.ID)
	require.NoError(t, err)
	assert.Equal(t, 999, stale.Quantity)

	fresh, err := repo.FindByID(domain.WithConsistentRead(ctx), saved.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, fresh.Quantity)
}

func TestCachedProductRepository_MissIsNotCached(t *testing.T) {
	ctx := context.Background()
	cache := newFakeRedis()
	repo := NewCachedProductRepository(NewMemoryProductRepository(), cache, time.Minute)

	p, err := repo.FindByID(ctx, 99)
	require.NoError(t, err)
	assert.Nil(t, p)
	assert.Empty(t, cache.data)
}
