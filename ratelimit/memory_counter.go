package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryCounter implements Counter in process memory. It exists for tests
// and single-process runs; deployments share the budget through Redis.
type MemoryCounter struct {
	mu      sync.Mutex
	counts  map[string]int64
	expires map[string]time.Time
	now     func() time.Time
}

// NewMemoryCounter creates a new [MemoryCounter] instance.
func NewMemoryCounter() *MemoryCounter {
	return &MemoryCounter{
		counts:  make(map[string]int64),
		expires: make(map[string]time.Time),
		now:     time.Now,
	}
}

// Incr implements Counter.Incr.
func (c *MemoryCounter) Incr(_ context.Context, key string, window time.Duration) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if exp, ok := c.expires[key]; !ok || now.After(exp) {
		c.counts[key] = 0
		c.expires[key] = now.Add(window)
	}
	c.counts[key]++
	return c.counts[key], nil
}
