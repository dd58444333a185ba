// Package cache provides the versioned TTL key/value store shared by the
// response cache and the rate limiter.
package cache

import (
	"context"
	"fmt"
	"time"
)

// Store is a key/value store with per-entry TTL. Every key is scoped by a
// version tag, so bumping the application version invalidates all previous
// entries without explicit eviction.
type Store interface {
	// Get returns the payload for key under version, or false when the key
	// is absent or expired.
	Get(ctx context.Context, key, version string) ([]byte, bool)
	// Set stores value under key and version with the given TTL.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration, version string) error
}

// VersionedKey builds the storage key for a (key, version) pair.
func VersionedKey(key, version string) string {
	return fmt.Sprintf("v%s:%s", version, key)
}
