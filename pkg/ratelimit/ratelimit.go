// Package ratelimit 对账运行入口的分布式限流，GCRA 计算由 redis_rate 在 Redis 侧完成
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis_rate/v10"
	"github.com/redis/go-redis/v9"
)

// Limiter 判定某个 key 本次是否放行
type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
}

// Decision 单次判定结果
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

// RunLimiter 每个 key 每分钟最多运行 perMinute 次
type RunLimiter struct {
	limiter *redis_rate.Limiter
	prefix  string
	limit   redis_rate.Limit
}

func NewRunLimiter(rdb *redis.Client, prefix string, perMinute int) *RunLimiter {
	return &RunLimiter{
		limiter: redis_rate.NewLimiter(rdb),
		prefix:  prefix,
		limit:   redis_rate.PerMinute(perMinute),
	}
}

func (l *RunLimiter) Allow(ctx context.Context, key string) (Decision, error) {
	res, err := l.limiter.Allow(ctx, l.prefix+key, l.limit)
	if err != nil {
		return Decision{}, fmt.Errorf("rate limit %s: %w", key, err)
	}
	return Decision{
		Allowed:    res.Allowed > 0,
		Limit:      res.Limit.Burst,
		Remaining:  res.Remaining,
		RetryAfter: res.RetryAfter,
	}, nil
}
