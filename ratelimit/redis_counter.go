package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCounter implements Counter on Redis. INCR is atomic, so concurrent
// workers share one budget without in-process locks.
type RedisCounter struct {
	client *redis.Client
	prefix string
}

// NewRedisCounter creates a new [RedisCounter] instance.
func NewRedisCounter(client *redis.Client, prefix string) *RedisCounter {
	return &RedisCounter{client: client, prefix: prefix}
}

// Incr implements Counter.Incr.
func (c *RedisCounter) Incr(ctx context.Context, key string, window time.Duration) (int64, error) {
	k := c.prefix + ":" + key
	count, err := c.client.Incr(ctx, k).Result()
	if err != nil {
		return 0, err
	}
	if count == 1 {
		// First hit in this window; the expiry resets the whole budget.
		if err := c.client.Expire(ctx, k, window).Err(); err != nil {
			return count, err
		}
	}
	return count, nil
}
