package directory

import (
	"context"
	"fmt"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hcommons/membersync/domain"
)

// memoryStore answers paginator queries from a sorted in-memory slice.
type memoryStore struct {
	rows []*domain.Profile
}

func newMemoryStore(rows []*domain.Profile) *memoryStore {
	s := &memoryStore{rows: rows}
	sort.Slice(s.rows, func(i, j int) bool {
		return less(s.rows[i], s.rows[j])
	})
	return s
}

func less(a, b *domain.Profile) bool {
	if a.Username != b.Username {
		return a.Username < b.Username
	}
	return a.ID < b.ID
}

func afterBoundary(p *domain.Profile, c Cursor) bool {
	if p.Username != c.Username {
		return p.Username > c.Username
	}
	return p.ID > c.ID
}

func (s *memoryStore) First(_ context.Context, limit int) ([]*domain.Profile, error) {
	if limit > len(s.rows) {
		limit = len(s.rows)
	}
	return append([]*domain.Profile{}, s.rows[:limit]...), nil
}

func (s *memoryStore) After(_ context.Context, boundary Cursor, limit int) ([]*domain.Profile, error) {
	var out []*domain.Profile
	for _, row := range s.rows {
		if afterBoundary(row, boundary) {
			out = append(out, row)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (s *memoryStore) Before(_ context.Context, boundary Cursor, limit int) ([]*domain.Profile, error) {
	var out []*domain.Profile
	for i := len(s.rows) - 1; i >= 0; i-- {
		row := s.rows[i]
		if !afterBoundary(row, boundary) && !(row.Username == boundary.Username && row.ID == boundary.ID) {
			out = append(out, row)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (s *memoryStore) PrefixCount(_ context.Context, row Cursor) (int64, error) {
	var count int64
	for _, r := range s.rows {
		if r.Username < row.Username || (r.Username == row.Username && r.ID <= row.ID) {
			count++
		}
	}
	return count, nil
}

func (s *memoryStore) TotalCount(_ context.Context) (int64, error) {
	return int64(len(s.rows)), nil
}

func profiles(n int) []*domain.Profile {
	out := make([]*domain.Profile, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, &domain.Profile{
			ID:       fmt.Sprintf("%03d", i),
			Username: fmt.Sprintf("user%03d", i),
		})
	}
	return out
}

func TestPaginationCompleteness(t *testing.T) {
	ctx := context.Background()
	paginator := NewPaginator(newMemoryStore(profiles(10)), 4)

	var seen []string

	page, err := paginator.Page(ctx, "", DirectionNext)
	require.NoError(t, err)
	assert.False(t, page.HasPrev)

	pages := 1
	for {
		for _, p := range page.Profiles {
			seen = append(seen, p.Username)
		}
		if !page.HasNext {
			break
		}
		page, err = paginator.Page(ctx, page.NextCursor, DirectionNext)
		require.NoError(t, err)
		pages++
	}

	assert.Equal(t, 3, pages)
	assert.Len(t, seen, 10)
	assert.True(t, sort.StringsAreSorted(seen), "rows must arrive in ascending order")

	unique := map[string]bool{}
	for _, u := range seen {
		unique[u] = true
	}
	assert.Len(t, unique, 10, "no row may be visited twice")
}

func TestPaginationReversibility(t *testing.T) {
	ctx := context.Background()
	paginator := NewPaginator(newMemoryStore(profiles(10)), 4)

	first, err := paginator.Page(ctx, "", DirectionNext)
	require.NoError(t, err)

	second, err := paginator.Page(ctx, first.NextCursor, DirectionNext)
	require.NoError(t, err)
	require.True(t, second.HasPrev)

	back, err := paginator.Page(ctx, second.PrevCursor, DirectionPrev)
	require.NoError(t, err)

	require.Len(t, back.Profiles, len(first.Profiles))
	for i := range first.Profiles {
		assert.Equal(t, first.Profiles[i].Username, back.Profiles[i].Username)
	}
}

func TestBackwardPastStartIsEmpty(t *testing.T) {
	ctx := context.Background()
	paginator := NewPaginator(newMemoryStore(profiles(10)), 4)

	// A backward page from before the first row has nothing in it and
	// must not advertise navigation it cannot encode.
	page, err := paginator.Page(ctx, EncodeCursor(Cursor{Username: "aaa", ID: "000"}), DirectionPrev)
	require.NoError(t, err)

	assert.Empty(t, page.Profiles)
	assert.False(t, page.HasNext)
	assert.False(t, page.HasPrev)
	assert.Empty(t, page.NextCursor)
}

func TestCurrentPageEstimate(t *testing.T) {
	ctx := context.Background()
	paginator := NewPaginator(newMemoryStore(profiles(10)), 4)

	page, err := paginator.Page(ctx, "", DirectionNext)
	require.NoError(t, err)

	for want := int64(1); ; want++ {
		assert.Equal(t, want, page.CurrentPage)
		assert.Equal(t, int64(3), page.PageCount)
		assert.Equal(t, int64(10), page.TotalCount)
		if !page.HasNext {
			break
		}
		page, err = paginator.Page(ctx, page.NextCursor, DirectionNext)
		require.NoError(t, err)
	}
}

func TestEmptyDirectory(t *testing.T) {
	ctx := context.Background()
	paginator := NewPaginator(newMemoryStore(nil), 4)

	page, err := paginator.Page(ctx, "", DirectionNext)
	require.NoError(t, err)

	assert.Empty(t, page.Profiles)
	assert.False(t, page.HasNext)
	assert.False(t, page.HasPrev)
	assert.Equal(t, int64(1), page.CurrentPage)
	assert.Equal(t, int64(1), page.PageCount, "page count is never below one")
	assert.Equal(t, int64(0), page.TotalCount)
}

func TestInvalidCursorSurfaces(t *testing.T) {
	paginator := NewPaginator(newMemoryStore(profiles(3)), 4)

	_, err := paginator.Page(context.Background(), "!!bad!!", DirectionNext)
	assert.ErrorIs(t, err, ErrInvalidCursor)
}
