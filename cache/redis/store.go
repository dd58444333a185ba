// Package redis implements the shared cache store on a Redis backend.
package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hcommons/membersync/cache"
)

// Store implements the cache.Store interface using Redis.
type Store struct {
	client *redis.Client
	prefix string
}

// NewStore creates a new [Store] instance. The prefix namespaces all keys
// so several services can share one Redis instance.
func NewStore(client *redis.Client, prefix string) *Store {
	return &Store{
		client: client,
		prefix: prefix,
	}
}

func (s *Store) redisKey(key, version string) string {
	return s.prefix + ":" + cache.VersionedKey(key, version)
}

// Get retrieves an entry from Redis. Errors are treated as cache misses so
// an unavailable Redis degrades to uncached upstream calls.
func (s *Store) Get(ctx context.Context, key, version string) ([]byte, bool) {
	res, err := s.client.Get(ctx, s.redisKey(key, version)).Bytes()
	if err != nil {
		return nil, false
	}
	return res, true
}

// Set stores an entry with its TTL in Redis.
func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration, version string) error {
	return s.client.Set(ctx, s.redisKey(key, version), value, ttl).Err()
}
