// Package client is a thin HTTP client for the membersync server API, used
// by the syncctl command.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client calls the membersync HTTP API.
type Client struct {
	baseURL string
	bearer  string
	http    *http.Client
}

// New creates a client for the server at baseURL, authenticating with the
// static service bearer.
func New(baseURL, bearer string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		bearer:  bearer,
		http:    &http.Client{Timeout: 60 * time.Second},
	}
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.bearer != "" {
		req.Header.Set("Authorization", "Bearer "+c.bearer)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	if out != nil {
		return json.Unmarshal(raw, out)
	}
	return nil
}

// Sync triggers a reconciliation run for username.
func (c *Client) Sync(ctx context.Context, username string, force bool) (map[string]any, error) {
	path := "/api/sync/" + url.PathEscape(username)
	if force {
		path += "?force=true"
	}

	var out map[string]any
	if err := c.do(ctx, http.MethodPost, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Members fetches one directory page.
func (c *Client) Members(ctx context.Context, cursor, dir string) (map[string]any, error) {
	params := url.Values{}
	if cursor != "" {
		params.Set("cursor", cursor)
	}
	if dir != "" {
		params.Set("dir", dir)
	}

	path := "/members"
	if len(params) > 0 {
		path += "?" + params.Encode()
	}

	var out map[string]any
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// LogoutAll broadcasts a logout to every configured endpoint.
func (c *Client) LogoutAll(ctx context.Context) (map[string]any, error) {
	var out map[string]any
	if err := c.do(ctx, http.MethodPost, "/api/logout-all", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}
