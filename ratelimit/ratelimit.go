// Package ratelimit implements the fixed-window call budget used to guard
// outbound calls to third-party membership APIs.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrRateLimitExceeded is returned when a caller has exhausted its call
// budget for the current window.
var ErrRateLimitExceeded = errors.New("rate limit exceeded")

// Counter is an atomic counter with a TTL set on first increment. The
// counter lives in the shared cache backend so the budget is enforced
// across all processes.
type Counter interface {
	// Incr increments key and returns the new count. When the key is
	// created, its TTL is set to window so the whole window resets at once.
	Incr(ctx context.Context, key string, window time.Duration) (int64, error)
}

// Limiter is a fixed-window rate limiter: bursts at window boundaries are
// permitted by design, simplicity over precision.
type Limiter struct {
	counter  Counter
	maxCalls int64
	window   time.Duration
}

// NewLimiter creates a limiter allowing maxCalls per window.
func NewLimiter(counter Counter, maxCalls int, window time.Duration) *Limiter {
	return &Limiter{
		counter:  counter,
		maxCalls: int64(maxCalls),
		window:   window,
	}
}

// Allow records a call attempt for key and reports whether it may proceed.
// The counter is incremented even for attempts that end up rejected, and
// exactly maxCalls attempts succeed within one window.
func (l *Limiter) Allow(ctx context.Context, key string) error {
	count, err := l.counter.Incr(ctx, "ratelimit:"+key, l.window)
	if err != nil {
		return fmt.Errorf("rate limit counter: %w", err)
	}
	if count > l.maxCalls {
		return ErrRateLimitExceeded
	}
	return nil
}
