// internal/pkg/bootstrap/config.go
package bootstrap

import (
	"io/fs"
	"os"
	"sync/atomic"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

const (
	// EnvPrefix 环境变量覆盖的前缀，例如 INVENTORY_APP_PORT
	EnvPrefix = "INVENTORY"
	// DefaultConfigFile 未指定 CONFIG_FILE 时读取的配置文件
	DefaultConfigFile = "configs/config.yaml"
)

const (
	StorageMemory = "memory"
	StorageMySQL  = "mysql"

	LockMemory    = "memory"
	LockRedis     = "redis"
	LockZookeeper = "zookeeper"
)

type Config struct {
	App   AppConfig   `yaml:"app" envconfig:"APP"`
	Infra InfraConfig `yaml:"infra" envconfig:"INFRA"`
}

type AppConfig struct {
	Name            string        `yaml:"name" envconfig:"NAME"`
	Port            int           `yaml:"port" envconfig:"PORT"`
	LogLevel        string        `yaml:"logLevel" envconfig:"LOG_LEVEL"`
	Storage         string        `yaml:"storage" envconfig:"STORAGE"`
	Lock            string        `yaml:"lock" envconfig:"LOCK"`
	LockWaitTimeout time.Duration `yaml:"lockWaitTimeout" envconfig:"LOCK_WAIT_TIMEOUT"`
	CacheEnabled    bool          `yaml:"cacheEnabled" envconfig:"CACHE_ENABLED"`
	CacheTTL        time.Duration `yaml:"cacheTTL" envconfig:"CACHE_TTL"`
}

type InfraConfig struct {
	MySQL     MySQLConfig     `yaml:"mysql" envconfig:"MYSQL"`
	Redis     RedisConfig     `yaml:"redis" envconfig:"REDIS"`
	Kafka     KafkaConfig     `yaml:"kafka" envconfig:"KAFKA"`
	Zookeeper ZookeeperConfig `yaml:"zookeeper" envconfig:"ZOOKEEPER"`
	Jaeger    JaegerConfig    `yaml:"jaeger" envconfig:"JAEGER"`
	Nacos     NacosConfig     `yaml:"nacos" envconfig:"NACOS"`
}

type MySQLConfig struct {
	Addr            string        `yaml:"addr" envconfig:"ADDR"`
	User            string        `yaml:"user" envconfig:"USER"`
	Password        string        `yaml:"password" envconfig:"PASSWORD"`
	Database        string        `yaml:"database" envconfig:"DATABASE"`
	MaxOpenConns    int           `yaml:"maxOpenConns" envconfig:"MAX_OPEN_CONNS"`
	MaxIdleConns    int           `yaml:"maxIdleConns" envconfig:"MAX_IDLE_CONNS"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime" envconfig:"CONN_MAX_LIFETIME"`
}

type RedisConfig struct {
	Addrs    string        `yaml:"addrs" envconfig:"ADDRS"` // 逗号分隔，多个地址时使用集群模式
	Password string        `yaml:"password" envconfig:"PASSWORD"`
	LockTTL  time.Duration `yaml:"lockTTL" envconfig:"LOCK_TTL"`
}

type KafkaConfig struct {
	Enabled bool     `yaml:"enabled" envconfig:"ENABLED"`
	Brokers []string `yaml:"brokers" envconfig:"BROKERS"`
	Topic   string   `yaml:"topic" envconfig:"TOPIC"`
}

type ZookeeperConfig struct {
	Servers        []string      `yaml:"servers" envconfig:"SERVERS"`
	SessionTimeout time.Duration `yaml:"sessionTimeout" envconfig:"SESSION_TIMEOUT"`
	LockRoot       string        `yaml:"lockRoot" envconfig:"LOCK_ROOT"`
}

type JaegerConfig struct {
	Endpoint string `yaml:"endpoint" envconfig:"ENDPOINT"` // 为空时不上报 trace
}

type NacosConfig struct {
	Enabled     bool   `yaml:"enabled" envconfig:"ENABLED"`
	ServerAddrs string `yaml:"serverAddrs" envconfig:"SERVER_ADDRS"`
	Namespace   string `yaml:"namespace" envconfig:"NAMESPACE"`
	Group       string `yaml:"group" envconfig:"GROUP"`
}

// DefaultConfig 返回不依赖任何外部组件即可运行的配置
func DefaultConfig() *Config {
	return &Config{
		App: AppConfig{
			Name:            "inventory-service",
			Port:            8080,
			LogLevel:        "info",
			Storage:         StorageMemory,
			Lock:            LockMemory,
			LockWaitTimeout: 5 * time.Second,
			CacheTTL:        5 * time.Minute,
		},
		Infra: InfraConfig{
			MySQL: MySQLConfig{
				Addr:            "localhost:3306",
				User:            "root",
				Database:        "inventory",
				MaxOpenConns:    20,
				MaxIdleConns:    10,
				ConnMaxLifetime: time.Hour,
			},
			Redis:     RedisConfig{Addrs: "localhost:6379", LockTTL: 10 * time.Second},
			Kafka:     KafkaConfig{Brokers: []string{"localhost:9092"}, Topic: "inventory-events"},
			Zookeeper: ZookeeperConfig{Servers: []string{"localhost:2181"}, SessionTimeout: 5 * time.Second, LockRoot: "/inventory/locks"},
			Nacos:     NacosConfig{ServerAddrs: "localhost:8848", Group: "DEFAULT_GROUP"},
		},
	}
}

// Load 依次应用：默认值 -> .env 文件 -> YAML 文件 -> 环境变量。
// path 为默认路径且文件不存在时只使用默认值。
func Load(path string, envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		// godotenv 不会覆盖已经存在的环境变量
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, errors.Wrapf(err, "load env file %s", f)
		}
	}

	cfg := DefaultConfig()
	if path == "" {
		path = DefaultConfigFile
	}
	raw, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, errors.Wrapf(err, "parse config file %s", path)
		}
	case errors.Is(err, fs.ErrNotExist) && path == DefaultConfigFile:
	default:
		return nil, errors.Wrapf(err, "read config file %s", path)
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, errors.Wrap(err, "apply environment overrides")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate 检查后端选择是否合法
func (c *Config) Validate() error {
	switch c.App.Storage {
	case StorageMemory, StorageMySQL:
	default:
		return errors.Errorf("unknown storage backend %q", c.App.Storage)
	}
	switch c.App.Lock {
	case LockMemory, LockRedis, LockZookeeper:
	default:
		return errors.Errorf("unknown lock backend %q", c.App.Lock)
	}
	if c.App.Port <= 0 || c.App.Port > 65535 {
		return errors.Errorf("invalid port %d", c.App.Port)
	}
	if c.App.Storage == StorageMemory && c.App.Lock != LockMemory {
		// 内存存储只在单进程内有效，分布式锁没有意义
		return errors.Errorf("lock backend %q requires mysql storage", c.App.Lock)
	}
	if c.Infra.Kafka.Enabled && len(c.Infra.Kafka.Brokers) == 0 {
		return errors.New("kafka is enabled but no brokers are configured")
	}
	return nil
}

var currentConfig atomic.Pointer[Config]

// Init 加载配置并设置为当前配置。path 为空时读取 CONFIG_FILE 环境变量。
func Init(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("CONFIG_FILE")
	}
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	currentConfig.Store(cfg)
	return cfg, nil
}

// GetCurrentConfig 返回 Init 加载的配置，未初始化时返回默认配置
func GetCurrentConfig() *Config {
	if cfg := currentConfig.Load(); cfg != nil {
		return cfg
	}
	return DefaultConfig()
}
