package syncengine

import (
	"context"
	"io"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hcommons/membersync/log"
)

const (
	logoutWorkers = 10
	logoutTimeout = 5 * time.Second
)

// EndpointResult records the outcome of one logout POST.
type EndpointResult struct {
	Endpoint string `json:"endpoint"`
	Status   int    `json:"status,omitempty"`
	Success  bool   `json:"success"`
	Error    string `json:"error,omitempty"`
}

// LogoutBroadcaster posts to every configured session-termination endpoint
// when a user logs out.
type LogoutBroadcaster struct {
	endpoints []string
	bearer    string
	http      *http.Client
	log       log.Logger
}

// NewLogoutBroadcaster creates a broadcaster over the given endpoints using
// the static bearer for authentication.
func NewLogoutBroadcaster(endpoints []string, bearer string, logger log.Logger) *LogoutBroadcaster {
	return &LogoutBroadcaster{
		endpoints: endpoints,
		bearer:    bearer,
		http:      &http.Client{Timeout: logoutTimeout},
		log:       logger,
	}
}

// LogoutAllEndpoints fans the logout out to every endpoint with a bounded
// worker pool and collects a per-endpoint result. It is best effort: no
// rollback, no quorum, individual failures only show up in the results.
func (b *LogoutBroadcaster) LogoutAllEndpoints(ctx context.Context) []EndpointResult {
	results := make([]EndpointResult, len(b.endpoints))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(logoutWorkers)

	for i, endpoint := range b.endpoints {
		i, endpoint := i, endpoint
		g.Go(func() error {
			results[i] = b.post(ctx, endpoint)
			return nil
		})
	}

	// Workers never return errors, so this only waits.
	_ = g.Wait()

	return results
}

func (b *LogoutBroadcaster) post(ctx context.Context, endpoint string) EndpointResult {
	result := EndpointResult{Endpoint: endpoint}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	req.Header.Set("Authorization", "Bearer "+b.bearer)

	resp, err := b.http.Do(req)
	if err != nil {
		b.log.Error(ctx, "logout endpoint unreachable", err, map[string]interface{}{
			"endpoint": endpoint,
		})
		result.Error = err.Error()
		return result
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	result.Status = resp.StatusCode
	result.Success = resp.StatusCode >= 200 && resp.StatusCode < 300
	if !result.Success {
		result.Error = http.StatusText(resp.StatusCode)
	}

	return result
}
