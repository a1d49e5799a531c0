// cmd/inventory-service/wire.go
package main

import (
	"context"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"

	"inventory/internal/pkg/bootstrap"
	"inventory/internal/pkg/mq"
	"inventory/internal/pkg/redis"
	"inventory/internal/pkg/zookeeper"
	"inventory/internal/service/inventory/application"
	"inventory/internal/service/inventory/domain"
	"inventory/internal/service/inventory/infrastructure"
)

type dependencies struct {
	service *application.InventoryService
	closers []bootstrap.Closer
}

// close 在启动失败时释放已经创建的资源
func (d *dependencies) close(ctx context.Context) {
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i].Close(ctx); err != nil {
			log.Error().Err(err).Str("component", d.closers[i].Name).Msg("Error releasing resource")
		}
	}
}

func mysqlOptions(cfg *bootstrap.Config) infrastructure.MySQLOptions {
	m := cfg.Infra.MySQL
	return infrastructure.MySQLOptions{
		Addr:            m.Addr,
		User:            m.User,
		Password:        m.Password,
		Database:        m.Database,
		MaxOpenConns:    m.MaxOpenConns,
		MaxIdleConns:    m.MaxIdleConns,
		ConnMaxLifetime: m.ConnMaxLifetime,
	}
}

// buildDependencies 根据配置组装仓储、缓存、锁和事件出口。
// 出错时返回的 dependencies 仍然可以 close。
func buildDependencies(cfg *bootstrap.Config) (*dependencies, error) {
	deps := &dependencies{}

	// 1. 存储
	var (
		products domain.ProductRepository
		carts    domain.CartRepository
	)
	switch cfg.App.Storage {
	case bootstrap.StorageMySQL:
		db, err := infrastructure.OpenMySQL(mysqlOptions(cfg))
		if err != nil {
			return deps, err
		}
		sqlDB, err := db.DB()
		if err != nil {
			return deps, errors.Wrap(err, "get sql.DB")
		}
		deps.closers = append(deps.closers, bootstrap.Closer{Name: "mysql", Close: func(context.Context) error { return sqlDB.Close() }})
		products = infrastructure.NewGormProductRepository(db)
		carts = infrastructure.NewGormCartRepository(db)
	default:
		memProducts := infrastructure.NewMemoryProductRepository()
		products = memProducts
		carts = infrastructure.NewMemoryCartRepository(memProducts)
	}

	// 2. Redis：商品缓存和分布式锁共用一个客户端
	var redisClient *redis.Client
	if cfg.App.CacheEnabled || cfg.App.Lock == bootstrap.LockRedis {
		rc, err := redis.NewClient(cfg.Infra.Redis.Addrs, cfg.Infra.Redis.Password)
		if err != nil {
			return deps, err
		}
		redisClient = rc
		deps.closers = append(deps.closers, bootstrap.Closer{Name: "redis", Close: func(context.Context) error { return rc.Close() }})
	}
	if cfg.App.CacheEnabled {
		products = infrastructure.NewCachedProductRepository(products, redisClient.GetClient(), cfg.App.CacheTTL)
	}

	// 3. 商品锁
	var locker application.StockLocker
	switch cfg.App.Lock {
	case bootstrap.LockRedis:
		l, err := infrastructure.NewRedisStockLocker(redisClient, cfg.Infra.Redis.LockTTL, cfg.App.LockWaitTimeout)
		if err != nil {
			return deps, err
		}
		locker = l
	case bootstrap.LockZookeeper:
		conn, err := zookeeper.Connect(cfg.Infra.Zookeeper.Servers, cfg.Infra.Zookeeper.SessionTimeout)
		if err != nil {
			return deps, err
		}
		deps.closers = append(deps.closers, bootstrap.Closer{Name: "zookeeper", Close: func(context.Context) error { conn.Close(); return nil }})
		locker = infrastructure.NewZookeeperStockLocker(conn, cfg.Infra.Zookeeper.LockRoot, cfg.App.LockWaitTimeout)
	default:
		locker = infrastructure.NewMemoryStockLocker()
	}

	// 4. 事件出口
	metrics, err := infrastructure.NewMetricsEventPublisher(prometheus.DefaultRegisterer)
	if err != nil {
		return deps, err
	}
	publishers := []infrastructure.Publisher{infrastructure.NewLogEventPublisher(zerolog.InfoLevel), metrics}
	if cfg.Infra.Kafka.Enabled {
		writer := mq.NewKafkaWriter(cfg.Infra.Kafka.Brokers, cfg.Infra.Kafka.Topic)
		deps.closers = append(deps.closers, bootstrap.Closer{Name: "kafka writer", Close: func(context.Context) error { return writer.Close() }})
		publishers = append(publishers, infrastructure.NewKafkaEventPublisher(writer))
	}

	deps.service = application.NewInventoryService(
		products,
		carts,
		locker,
		infrastructure.NewMultiEventPublisher(publishers...),
		otel.Tracer(cfg.App.Name),
	)

	log.Info().
		Str("storage", cfg.App.Storage).
		Str("lock", cfg.App.Lock).
		Bool("cache", cfg.App.CacheEnabled).
		Bool("kafka", cfg.Infra.Kafka.Enabled).
		Msg("Inventory service dependencies ready")
	return deps, nil
}
