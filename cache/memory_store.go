package cache

import (
	"context"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// MemoryStore implements Store using ttlcache. It backs tests and single
// process deployments; production uses the Redis store.
type MemoryStore struct {
	cache *ttlcache.Cache[string, []byte]
}

// NewMemoryStore creates an in-memory store with automatic cleanup.
func NewMemoryStore() *MemoryStore {
	c := ttlcache.New(
		ttlcache.WithDisableTouchOnHit[string, []byte](),
	)
	go c.Start()

	return &MemoryStore{cache: c}
}

// Get implements Store.Get.
func (s *MemoryStore) Get(_ context.Context, key, version string) ([]byte, bool) {
	item := s.cache.Get(VersionedKey(key, version))
	if item == nil || item.IsExpired() {
		return nil, false
	}
	return item.Value(), true
}

// Set implements Store.Set.
func (s *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration, version string) error {
	s.cache.Set(VersionedKey(key, version), value, ttl)
	return nil
}

// Stop halts the background cleanup goroutine.
func (s *MemoryStore) Stop() {
	s.cache.Stop()
}
