// internal/pkg/redis/client.go
package redis

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Nil 透传 go-redis 的"键不存在"错误，调用方不需要再直接依赖 go-redis
var Nil = goredis.Nil

// Client 封装了 go-redis 客户端和预加载的 Lua 脚本
type Client struct {
	client goredis.UniversalClient

	mu      sync.RWMutex
	scripts map[string]*goredis.Script
}

// NewClient 根据逗号分隔的地址创建客户端。
// 单个地址使用普通客户端，多个地址使用集群客户端。
func NewClient(addrs, password string) (*Client, error) {
	var list []string
	for _, a := range strings.Split(addrs, ",") {
		if a = strings.TrimSpace(a); a != "" {
			list = append(list, a)
		}
	}
	if len(list) == 0 {
		return nil, errors.New("redis address is empty")
	}

	client := goredis.NewUniversalClient(&goredis.UniversalOptions{
		Addrs:    list,
		Password: password,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, "failed to connect to redis")
	}

	log.Info().Strs("addrs", list).Msg("Successfully connected to Redis")
	return Wrap(client), nil
}

// Wrap 用已有的 go-redis 客户端构造 Client
func Wrap(client goredis.UniversalClient) *Client {
	return &Client{
		client:  client,
		scripts: make(map[string]*goredis.Script),
	}
}

// LoadScriptFromContent 以 name 注册一段 Lua 脚本。
// 执行时优先 EVALSHA，服务端没有缓存时自动退回 EVAL。
func (c *Client) LoadScriptFromContent(name, content string) error {
	if strings.TrimSpace(content) == "" {
		return fmt.Errorf("script %s is empty", name)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.scripts[name] = goredis.NewScript(content)
	return nil
}

// RunScript 执行已注册的脚本
func (c *Client) RunScript(ctx context.Context, name string, keys []string, args ...interface{}) (interface{}, error) {
	c.mu.RLock()
	script, ok := c.scripts[name]
	c.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("script %s is not loaded", name)
	}
	return script.Run(ctx, c.client, keys, args...).Result()
}

// GetClient 返回底层的 go-redis 客户端
func (c *Client) GetClient() goredis.UniversalClient {
	return c.client
}

// Close 关闭连接
func (c *Client) Close() error {
	if c.client == nil {
		return nil
	}
	log.Info().Msg("Redis connection closed.")
	return c.client.Close()
}
