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

func newTestMLA(t *testing.T, handler http.Handler) (*MLA, *cache.MemoryStore) {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	store := cache.NewMemoryStore()
	t.Cleanup(store.Stop)

	return NewMLA(MLAOptions{
		BaseURL:      server.URL + "/",
		APIKey:       "test-key",
		APISecret:    "test-secret",
		Store:        store,
		Limiter:      nil,
		CacheCeiling: time.Hour,
		Version:      "test",
		Logger:       log.NewNop(),
	}), store
}

func mlaMemberBody(expiringDate string) string {
	return fmt.Sprintf(`{
		"meta": {"status": "success"},
		"data": [{"id": "12345", "membership": {"expiring_date": %q},
			"general": {"first_name": "Ada", "last_name": "Lovelace", "email": "ada@example.org"}}]
	}`, expiringDate)
}

func TestMLAIsMemberActive(t *testing.T) {
	future := time.Now().UTC().AddDate(1, 0, 0).Format(mlaExpiryLayout)

	mla, _ := newTestMLA(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, mlaMemberBody(future))
	}))

	assert.True(t, mla.IsMember(context.Background(), "12345"))
}

func TestMLAIsMemberExpired(t *testing.T) {
	past := time.Now().UTC().AddDate(-1, 0, 0).Format(mlaExpiryLayout)

	mla, _ := newTestMLA(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, mlaMemberBody(past))
	}))

	assert.False(t, mla.IsMember(context.Background(), "12345"))
}

func TestMLAIsMemberFailClosed(t *testing.T) {
	cases := map[string]string{
		"missing expiry":    `{"meta": {"status": "success"}, "data": [{"id": "12345", "membership": {}}]}`,
		"unparsable expiry": mlaMemberBody("not-a-date"),
		"error status":      `{"meta": {"status": "error", "message": "no such member"}, "data": []}`,
		"empty data":        `{"meta": {"status": "success"}, "data": []}`,
		"malformed json":    `{"meta": {`,
	}

	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			mla, _ := newTestMLA(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, body)
			}))
			assert.False(t, mla.IsMember(context.Background(), "12345"))
		})
	}
}

func TestMLAIsMemberIdempotent(t *testing.T) {
	future := time.Now().UTC().AddDate(1, 0, 0).Format(mlaExpiryLayout)

	mla, _ := newTestMLA(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, mlaMemberBody(future))
	}))

	first := mla.IsMember(context.Background(), "12345")
	second := mla.IsMember(context.Background(), "12345")
	assert.Equal(t, first, second)
}

func TestMLASearchSignsRequest(t *testing.T) {
	var gotQuery map[string][]string

	mla, _ := newTestMLA(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		fmt.Fprint(w, `{"meta": {"status": "success"}, "data": [{"total_num_results": 1, "search_results": [{"id": "77"}]}]}`)
	}))

	result, err := mla.Search(context.Background(), "ada@example.org")
	require.NoError(t, err)
	assert.Equal(t, domain.SearchFound, result.Outcome)
	assert.Equal(t, "77", result.SyncID)

	assert.Equal(t, "test-key", gotQuery["key"][0])
	assert.NotEmpty(t, gotQuery["timestamp"])
	assert.Len(t, gotQuery["signature"][0], 64, "signature is hex-encoded HMAC-SHA256")
	assert.Equal(t, "ALL", gotQuery["membership_status"][0])
}

func TestMLASearchRejectsMalformedEmail(t *testing.T) {
	mla, _ := newTestMLA(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected for an invalid address")
	}))

	_, err := mla.Search(context.Background(), "not an email")
	assert.ErrorIs(t, err, ErrInvalidEmail)
}

func TestMLASearchMultipleFallsBack(t *testing.T) {
	mla, _ := newTestMLA(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("email") == "b@example.org" {
			fmt.Fprint(w, `{"meta": {"status": "success"}, "data": [{"total_num_results": 1, "search_results": [{"id": "99"}]}]}`)
			return
		}
		fmt.Fprint(w, `{"meta": {"status": "success"}, "data": [{"total_num_results": 0, "search_results": []}]}`)
	}))

	result := mla.SearchMultiple(context.Background(), []string{"a@example.org", "b@example.org"})
	assert.Equal(t, domain.SearchFound, result.Outcome)
	assert.Equal(t, "99", result.SyncID)
}

func TestMLASearchMultipleAllMiss(t *testing.T) {
	mla, _ := newTestMLA(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"meta": {"status": "success"}, "data": [{"total_num_results": 0, "search_results": []}]}`)
	}))

	result := mla.SearchMultiple(context.Background(), []string{"a@example.org", "b@example.org"})
	assert.Equal(t, domain.SearchNotFound, result.Outcome)
	assert.Empty(t, result.SyncID)
}

func TestMLASearchCountResultsMismatch(t *testing.T) {
	mla, _ := newTestMLA(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"meta": {"status": "success"}, "data": [{"total_num_results": 3, "search_results": []}]}`)
	}))

	result, err := mla.Search(context.Background(), "ada@example.org")
	require.NoError(t, err)
	assert.Equal(t, domain.SearchNotFound, result.Outcome)
	assert.Empty(t, result.SyncID)
}

func TestMLACacheHitSkipsNetwork(t *testing.T) {
	calls := 0
	mla, _ := newTestMLA(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		fmt.Fprint(w, `{"meta": {"status": "success"}, "data": [{"total_num_results": 1, "search_results": [{"id": "77"}]}]}`)
	}))

	first, err := mla.Search(context.Background(), "ada@example.org")
	require.NoError(t, err)
	second, err := mla.Search(context.Background(), "ada@example.org")
	require.NoError(t, err)

	assert.Equal(t, 1, calls, "second search must be served from cache")
	assert.Equal(t, first.SyncID, second.SyncID)
}

func TestMLASearchUpstreamFailureIsTransient(t *testing.T) {
	mla, _ := newTestMLA(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	mla.rest.sleep = func(time.Duration) {}

	result, err := mla.Search(context.Background(), "ada@example.org")
	require.NoError(t, err, "upstream failures are absorbed into the outcome")
	assert.Equal(t, domain.SearchTransientFailure, result.Outcome)
}
