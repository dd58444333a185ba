package syncengine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const webhookTimeout = 8 * time.Second

type webhookPoster func(ctx context.Context, url, token, username string) error

var webhookClient = &http.Client{Timeout: webhookTimeout}

func postWebhook(ctx context.Context, url, token, username string) error {
	payload, err := json.Marshal(map[string]string{
		"token":    token,
		"username": username,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := webhookClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("webhook returned %d", resp.StatusCode)
	}
	return nil
}

// notify pings every configured downstream URL that the user's membership
// state changed. Failures are logged and swallowed; a dead receiver must
// never fail the sync.
func (e *Engine) notify(ctx context.Context, username string) {
	for _, url := range e.webhookURLs {
		if err := e.post(ctx, url, e.webhookToken, username); err != nil {
			e.log.Error(ctx, "failed to send webhook", err, map[string]interface{}{
				"url": url, "username": username,
			})
			continue
		}
		e.log.Info(ctx, "webhook update sent", map[string]interface{}{
			"url": url, "username": username,
		})
	}

	if e.updates != nil {
		if err := e.updates.NotifyUserUpdated(ctx, username); err != nil {
			e.log.Error(ctx, "failed to send update notification", err, map[string]interface{}{
				"username": username,
			})
		}
	}
}
