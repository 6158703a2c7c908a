// Package cache 提供 Redis 客户端封装与基于 SetNX 的分布式锁
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/wyfcoding/easyreconcile/pkg/logger"
)

// Config Redis 配置
type Config struct {
	Host         string
	Port         int
	Password     string
	DB           int
	MaxPoolSize  int
	ConnTimeout  int
	ReadTimeout  int
	WriteTimeout int
}

// RedisCache Redis 客户端封装
type RedisCache struct {
	client *redis.Client
}

// New 创建 Redis 客户端并检测连通性
func New(ctx context.Context, cfg Config) (*RedisCache, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.MaxPoolSize,
		DialTimeout:  time.Duration(cfg.ConnTimeout) * time.Second,
		ReadTimeout:  time.Duration(cfg.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.WriteTimeout) * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info(ctx, "redis connected", "addr", addr)
	return &RedisCache{client: client}, nil
}

// SetNX 仅当 key 不存在时设置值
func (rc *RedisCache) SetNX(ctx context.Context, key string, value any, expiration time.Duration) (bool, error) {
	ok, err := rc.client.SetNX(ctx, key, value, expiration).Result()
	if err != nil {
		logger.Error(ctx, "redis SetNX failed", "key", key, "error", err)
		return false, err
	}
	return ok, nil
}

// Client 返回底层客户端
func (rc *RedisCache) Client() *redis.Client { return rc.client }

// Close 关闭连接
func (rc *RedisCache) Close() error { return rc.client.Close() }

// 仅当持有者 token 匹配时删除，避免误删他人的锁
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locker 基于 SetNX 的互斥锁
type Locker struct {
	cache  *RedisCache
	prefix string
	ttl    time.Duration
}

func NewLocker(cache *RedisCache, prefix string, ttl time.Duration) *Locker {
	return &Locker{cache: cache, prefix: prefix, ttl: ttl}
}

// TryLock 尝试获取锁，返回释放函数；锁已被占用时 ok 为 false
func (l *Locker) TryLock(ctx context.Context, name string) (release func(context.Context), ok bool, err error) {
	key := l.prefix + name
	token := uuid.NewString()

	ok, err = l.cache.SetNX(ctx, key, token, l.ttl)
	if err != nil || !ok {
		return nil, ok, err
	}

	release = func(ctx context.Context) {
		if err := releaseScript.Run(ctx, l.cache.client, []string{key}, token).Err(); err != nil {
			logger.Warn(ctx, "failed to release redis lock", "key", key, "error", err)
		}
	}
	return release, true, nil
}
