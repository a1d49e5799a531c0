package infrastructure

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"inventory/internal/pkg/logger"
	"inventory/internal/pkg/redis"
	"inventory/internal/pkg/zookeeper"
)

// ErrLockTimeout 在等待时间内没有拿到商品锁
var ErrLockTimeout = errors.New("timed out waiting for product lock")

// MemoryStockLocker 是进程内的商品锁，适用于单实例部署和测试
type MemoryStockLocker struct {
	mu    sync.Mutex
	slots map[uint64]*lockSlot
}

type lockSlot struct {
	ch   chan struct{}
	refs int
}

func NewMemoryStockLocker() *MemoryStockLocker {
	return &MemoryStockLocker{slots: make(map[uint64]*lockSlot)}
}

func (l *MemoryStockLocker) Lock(ctx context.Context, productID uint64) (func(), error) {
	l.mu.Lock()
	slot, ok := l.slots[productID]
	if !ok {
		slot = &lockSlot{ch: make(chan struct{}, 1)}
		l.slots[productID] = slot
	}
	slot.refs++
	l.mu.Unlock()

	select {
	case slot.ch <- struct{}{}:
	case <-ctx.Done():
		l.unref(productID, slot)
		return nil, errors.Wrapf(ErrLockTimeout, "product %d: %v", productID, ctx.Err())
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-slot.ch
			l.unref(productID, slot)
		})
	}, nil
}

func (l *MemoryStockLocker) unref(productID uint64, slot *lockSlot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	slot.refs--
	if slot.refs == 0 {
		delete(l.slots, productID)
	}
}

const (
	releaseLockScriptName = "release_product_lock"
	productLockKeyPrefix  = "inventory:lock:product:"
)

// releaseLockScript 只有持有者的 token 匹配时才删除锁，防止误删别人的锁
var releaseLockScript = `
-- KEYS[1]: 锁的 Key, 例如: inventory:lock:product:{42}
-- ARGV[1]: 加锁时写入的 token
if redis.call('get', KEYS[1]) == ARGV[1] then
    return redis.call('del', KEYS[1])
end
return 0
`

// RedisStockLocker 基于 SET NX PX 的商品锁，适用于多实例部署
type RedisStockLocker struct {
	client        *redis.Client
	ttl           time.Duration
	waitTimeout   time.Duration
	retryInterval time.Duration
}

func NewRedisStockLocker(client *redis.Client, ttl, waitTimeout time.Duration) (*RedisStockLocker, error) {
	if err := client.LoadScriptFromContent(releaseLockScriptName, releaseLockScript); err != nil {
		return nil, fmt.Errorf("failed to load release lock script: %w", err)
	}
	return &RedisStockLocker{
		client:        client,
		ttl:           ttl,
		waitTimeout:   waitTimeout,
		retryInterval: 20 * time.Millisecond,
	}, nil
}

func (l *RedisStockLocker) Lock(ctx context.Context, productID uint64) (func(), error) {
	key := fmt.Sprintf("%s{%d}", productLockKeyPrefix, productID)
	token := uuid.New().String()

	waitCtx, cancel := context.WithTimeout(ctx, l.waitTimeout)
	defer cancel()

	ticker := time.NewTicker(l.retryInterval)
	defer ticker.Stop()
	for {
		ok, err := l.client.GetClient().SetNX(waitCtx, key, token, l.ttl).Result()
		if err != nil && waitCtx.Err() == nil {
			return nil, errors.Wrapf(err, "acquire redis lock for product %d", productID)
		}
		if ok {
			break
		}
		select {
		case <-ticker.C:
		case <-waitCtx.Done():
			return nil, errors.Wrapf(ErrLockTimeout, "product %d", productID)
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			// 释放时使用独立的 context，调用方 ctx 可能已经取消
			releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if _, err := l.client.RunScript(releaseCtx, releaseLockScriptName, []string{key}, token); err != nil {
				logger.Ctx(ctx).Error().Err(err).Uint64("product_id", productID).Msg("Failed to release redis product lock")
			}
		})
	}, nil
}

// ZookeeperStockLocker 基于 ZooKeeper 临时顺序节点的商品锁
type ZookeeperStockLocker struct {
	conn        zookeeper.Conn
	root        string
	waitTimeout time.Duration
}

func NewZookeeperStockLocker(conn zookeeper.Conn, root string, waitTimeout time.Duration) *ZookeeperStockLocker {
	return &ZookeeperStockLocker{conn: conn, root: root, waitTimeout: waitTimeout}
}

func (l *ZookeeperStockLocker) Lock(ctx context.Context, productID uint64) (func(), error) {
	lock, err := zookeeper.NewDistributedLock(l.conn, l.root, fmt.Sprintf("product-%d", productID))
	if err != nil {
		return nil, err
	}

	waitCtx, cancel := context.WithTimeout(ctx, l.waitTimeout)
	defer cancel()
	if err := lock.Lock(waitCtx); err != nil {
		return nil, errors.Wrapf(ErrLockTimeout, "product %d: %v", productID, err)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			if err := lock.Unlock(); err != nil {
				logger.Ctx(ctx).Error().Err(err).Uint64("product_id", productID).Msg("Failed to release zookeeper product lock")
			}
		})
	}, nil
}
