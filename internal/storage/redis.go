package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/saiset-co/sai-gateway/internal/repository"
	"github.com/saiset-co/sai-gateway/types"
)

// RedisRateLimiter implements a fixed-window counter per throttling key.
type RedisRateLimiter struct {
	client *redis.Client
}

func NewRedisRateLimiter(cfg types.RedisConfig) repository.RateLimiter {
	return &RedisRateLimiter{
		client: redis.NewClient(&redis.Options{
			Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
			Password: cfg.Password,
			DB:       cfg.DB,
		}),
	}
}

func (r *RedisRateLimiter) CheckRate(ctx context.Context, key string, limit int64, window time.Duration) (bool, error) {
	redisKey := "throttle:" + key

	pipe := r.client.TxPipeline()
	incr := pipe.Incr(ctx, redisKey)
	pipe.ExpireNX(ctx, redisKey, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, err
	}

	return incr.Val() <= limit, nil
}
