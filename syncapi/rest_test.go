package syncapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hcommons/membersync/log"
)

func TestCacheTTL(t *testing.T) {
	ceiling := 24 * time.Hour

	cases := []struct {
		name         string
		cacheControl string
		want         time.Duration
	}{
		{"no header", "", ceiling},
		{"max-age below ceiling", "max-age=600", 10 * time.Minute},
		{"max-age above ceiling", "max-age=172800", ceiling},
		{"garbage", "max-age=soon", ceiling},
		{"other directives", "public, max-age=60, must-revalidate", time.Minute},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, cacheTTL(tc.cacheControl, ceiling))
		})
	}
}

func TestDoWithRetryRecoversFromTransient5xx(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	c := newRESTClient("TEST", server.URL+"/", nil, nil, time.Hour, "test", log.NewNop())
	c.sleep = func(time.Duration) {}

	body, err := c.get(context.Background(), "", nil, "")
	require.NoError(t, err)
	assert.Equal(t, []byte("ok"), body)
	assert.Equal(t, 3, calls)
}

func TestDoWithRetryGivesUpAfterThreeAttempts(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	c := newRESTClient("TEST", server.URL+"/", nil, nil, time.Hour, "test", log.NewNop())
	c.sleep = func(time.Duration) {}

	_, err := c.get(context.Background(), "", nil, "")
	assert.ErrorIs(t, err, ErrUpstreamUnavailable)
	assert.Equal(t, 3, calls)
}

func TestNonRetryableStatusFailsImmediately(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	c := newRESTClient("TEST", server.URL+"/", nil, nil, time.Hour, "test", log.NewNop())
	c.sleep = func(time.Duration) {}

	_, err := c.get(context.Background(), "", nil, "")
	assert.ErrorIs(t, err, ErrUpstreamUnavailable)
	assert.Equal(t, 1, calls, "a 404 must not be retried")
}

func TestBackoffDoubles(t *testing.T) {
	var slept []time.Duration

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	c := newRESTClient("TEST", server.URL+"/", nil, nil, time.Hour, "test", log.NewNop())
	c.sleep = func(d time.Duration) { slept = append(slept, d) }

	_, err := c.get(context.Background(), "", nil, "")
	require.Error(t, err)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, slept)
}

func TestValidateEmail(t *testing.T) {
	assert.NoError(t, validateEmail("ada@example.org"))
	assert.ErrorIs(t, validateEmail("not an email"), ErrInvalidEmail)
	assert.ErrorIs(t, validateEmail("Ada <ada@example.org>"), ErrInvalidEmail)
	assert.ErrorIs(t, validateEmail(""), ErrInvalidEmail)
}
