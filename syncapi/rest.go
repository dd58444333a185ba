package syncapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"time"

	"github.com/hcommons/membersync/cache"
	"github.com/hcommons/membersync/log"
	"github.com/hcommons/membersync/ratelimit"
)

const (
	requestTimeout = 30 * time.Second
	maxAttempts    = 3
	backoffFactor  = time.Second
)

var maxAgeRe = regexp.MustCompile(`max-age=(\d+)`)

// retryableStatus reports whether a response status warrants another
// attempt.
func retryableStatus(code int) bool {
	switch code {
	case http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

// restClient carries the HTTP plumbing every network-backed system client
// shares: one pooled transport, retry on retryable 5xx, a read-through
// response cache keyed per query, and a fixed-window rate limit on every
// outbound attempt.
type restClient struct {
	system  string
	baseURL string
	http    *http.Client
	store   cache.Store
	limiter *ratelimit.Limiter
	ceiling time.Duration
	version string
	log     log.Logger

	// prepare mutates the request just before sending, for per-system auth
	// (basic token, bearer refresh, signed query).
	prepare func(ctx context.Context, req *http.Request) error

	// sleep is swapped out in tests.
	sleep func(time.Duration)
}

func newRESTClient(system, baseURL string, store cache.Store, limiter *ratelimit.Limiter, ceiling time.Duration, version string, logger log.Logger) *restClient {
	return &restClient{
		system:  system,
		baseURL: baseURL,
		http: &http.Client{
			Timeout: requestTimeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 10,
			},
		},
		store:   store,
		limiter: limiter,
		ceiling: ceiling,
		version: version,
		log:     logger,
		sleep:   time.Sleep,
	}
}

// get performs a cached, rate-limited, retrying GET against baseURL+suffix.
// Only 200 responses are cached; the TTL is the upstream Cache-Control
// max-age clamped to the configured ceiling.
func (c *restClient) get(ctx context.Context, suffix string, query url.Values, cacheKey string) ([]byte, error) {
	if cacheKey != "" && c.store != nil {
		if body, ok := c.store.Get(ctx, cacheKey, c.version); ok {
			return body, nil
		}
	}

	if c.limiter != nil {
		if err := c.limiter.Allow(ctx, c.system); err != nil {
			return nil, err
		}
	}

	reqURL := c.baseURL + suffix
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	body, header, err := c.doWithRetry(ctx, reqURL)
	if err != nil {
		return nil, err
	}

	if cacheKey != "" && c.store != nil {
		ttl := cacheTTL(header.Get("Cache-Control"), c.ceiling)
		if serr := c.store.Set(ctx, cacheKey, body, ttl, c.version); serr != nil {
			c.log.Warn(ctx, "failed to cache upstream response", map[string]interface{}{
				"system": c.system, "cache_key": cacheKey, "error": serr.Error(),
			})
		}
	}

	return body, nil
}

func (c *restClient) doWithRetry(ctx context.Context, reqURL string) ([]byte, http.Header, error) {
	var lastErr error

	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			c.sleep(backoffFactor << (attempt - 1))
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
		}
		req.Header.Set("Content-Type", "application/json")

		if c.prepare != nil {
			if err := c.prepare(ctx, req); err != nil {
				return nil, nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
			}
		}

		resp, err := c.http.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		if retryableStatus(resp.StatusCode) {
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			lastErr = fmt.Errorf("received %d response", resp.StatusCode)
			continue
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = err
			continue
		}

		if resp.StatusCode != http.StatusOK {
			return nil, nil, fmt.Errorf("%w: received %d response", ErrUpstreamUnavailable, resp.StatusCode)
		}

		return body, resp.Header, nil
	}

	if lastErr == nil {
		lastErr = errors.New("no attempts made")
	}
	return nil, nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, lastErr)
}

// cacheTTL derives the cache TTL from an upstream Cache-Control header,
// clamped to the configured ceiling.
func cacheTTL(cacheControl string, ceiling time.Duration) time.Duration {
	ttl := ceiling
	if m := maxAgeRe.FindStringSubmatch(cacheControl); m != nil {
		if secs, err := strconv.Atoi(m[1]); err == nil {
			if d := time.Duration(secs) * time.Second; d < ttl {
				ttl = d
			}
		}
	}
	return ttl
}
