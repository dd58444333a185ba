package syncapi

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hcommons/membersync/cache"
	"github.com/hcommons/membersync/domain"
	"github.com/hcommons/membersync/log"
)

func newTestARLISNA(t *testing.T, handler http.Handler) *ARLISNA {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	store := cache.NewMemoryStore()
	t.Cleanup(store.Stop)

	return NewARLISNA(ARLISNAOptions{
		BaseURL:      server.URL + "/",
		APIToken:     "dGVzdDp0ZXN0",
		Store:        store,
		CacheCeiling: time.Hour,
		Version:      "test",
		Logger:       log.NewNop(),
	})
}

func TestARLISNASearchUsesBasicAuth(t *testing.T) {
	a := newTestARLISNA(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Basic dGVzdDp0ZXN0", r.Header.Get("Authorization"))
		fmt.Fprint(w, `{"TotalCount": 1, "Results": [{"UniqueID": "u-1", "Email": "ada@example.org"}]}`)
	}))

	result, err := a.Search(context.Background(), "ada@example.org")
	require.NoError(t, err)
	assert.Equal(t, domain.SearchFound, result.Outcome)
	assert.Equal(t, "ada@example.org", result.SyncID, "the record's email is the sync ID")
}

func TestARLISNASearchCountResultsMismatch(t *testing.T) {
	a := newTestARLISNA(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"TotalCount": 2, "Results": []}`)
	}))

	result, err := a.Search(context.Background(), "ada@example.org")
	require.NoError(t, err)
	assert.Equal(t, domain.SearchNotFound, result.Outcome)
	assert.Empty(t, result.SyncID)
}

func TestARLISNAIsMember(t *testing.T) {
	future := time.Now().UTC().AddDate(1, 0, 0).Format("2006-01-02")
	past := time.Now().UTC().AddDate(-1, 0, 0).Format("2006-01-02")

	cases := []struct {
		name string
		body string
		want bool
	}{
		{"active", fmt.Sprintf(`{"TotalCount": 1, "Results": [{"Email": "a@b.org", "MembershipExpires": %q}]}`, future), true},
		{"expired", fmt.Sprintf(`{"TotalCount": 1, "Results": [{"Email": "a@b.org", "MembershipExpires": %q}]}`, past), false},
		{"no expiry", `{"TotalCount": 1, "Results": [{"Email": "a@b.org"}]}`, false},
		{"no record", `{"TotalCount": 0, "Results": []}`, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			a := newTestARLISNA(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, tc.body)
			}))
			assert.Equal(t, tc.want, a.IsMember(context.Background(), "a@b.org"))
		})
	}
}

func TestParseARLISNADateLayouts(t *testing.T) {
	for _, value := range []string{
		"2027-06-30T00:00:00Z",
		"2027-06-30T00:00:00",
		"2027-06-30",
	} {
		parsed, err := parseARLISNADate(value)
		require.NoError(t, err, value)
		assert.Equal(t, 2027, parsed.Year())
	}

	_, err := parseARLISNADate("")
	assert.Error(t, err)
}
