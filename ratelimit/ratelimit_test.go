package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimiterExactBudget(t *testing.T) {
	limiter := NewLimiter(NewMemoryCounter(), 5, time.Minute)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, limiter.Allow(ctx, "MLA"), "call %d must pass", i+1)
	}

	err := limiter.Allow(ctx, "MLA")
	assert.ErrorIs(t, err, ErrRateLimitExceeded)
}

func TestLimiterWindowReset(t *testing.T) {
	counter := NewMemoryCounter()
	current := time.Now()
	counter.now = func() time.Time { return current }

	limiter := NewLimiter(counter, 2, time.Minute)
	ctx := context.Background()

	require.NoError(t, limiter.Allow(ctx, "MLA"))
	require.NoError(t, limiter.Allow(ctx, "MLA"))
	require.ErrorIs(t, limiter.Allow(ctx, "MLA"), ErrRateLimitExceeded)

	// Advance past the window; the whole budget resets at once.
	current = current.Add(time.Minute + time.Second)

	assert.NoError(t, limiter.Allow(ctx, "MLA"))
}

func TestLimiterKeysAreIndependent(t *testing.T) {
	limiter := NewLimiter(NewMemoryCounter(), 1, time.Minute)
	ctx := context.Background()

	require.NoError(t, limiter.Allow(ctx, "MLA"))
	require.ErrorIs(t, limiter.Allow(ctx, "MLA"), ErrRateLimitExceeded)

	// A different system keeps its own budget.
	assert.NoError(t, limiter.Allow(ctx, "ARLISNA"))
}

func TestRejectedCallsStillCount(t *testing.T) {
	counter := NewMemoryCounter()
	limiter := NewLimiter(counter, 1, time.Minute)
	ctx := context.Background()

	require.NoError(t, limiter.Allow(ctx, "UP"))
	require.Error(t, limiter.Allow(ctx, "UP"))

	count, err := counter.Incr(ctx, "ratelimit:UP", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count, "every attempt increments, rejected ones included")
}
