package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	store := NewMemoryStore()
	defer store.Stop()
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "mla_search_a@b.org", []byte(`{"ok":true}`), time.Minute, "v1"))

	got, ok := store.Get(ctx, "mla_search_a@b.org", "v1")
	require.True(t, ok)
	assert.Equal(t, []byte(`{"ok":true}`), got)
}

func TestVersionBumpInvalidates(t *testing.T) {
	store := NewMemoryStore()
	defer store.Stop()
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "mla_search_a@b.org", []byte("old"), time.Minute, "1.0.0"))

	_, ok := store.Get(ctx, "mla_search_a@b.org", "1.0.1")
	assert.False(t, ok, "a new application version must not see old entries")
}

func TestMissingKey(t *testing.T) {
	store := NewMemoryStore()
	defer store.Stop()

	_, ok := store.Get(context.Background(), "absent", "v1")
	assert.False(t, ok)
}

func TestVersionedKey(t *testing.T) {
	assert.Equal(t, "v1.2.3:mla_search_x", VersionedKey("mla_search_x", "1.2.3"))
}
