package syncengine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hcommons/membersync/log"
)

// updateWebhookPath is the fixed receiver path on every update endpoint.
const updateWebhookPath = "/api/webhooks/user_data_update"

const updateTimeout = 30 * time.Second

// EventType classifies what happened to an identity.
type EventType string

const (
	EventCreated    EventType = "created"
	EventUpdated    EventType = "updated"
	EventDeleted    EventType = "deleted"
	EventAssociated EventType = "associated"
)

// UserUpdate is one user-level change event.
type UserUpdate struct {
	ID    string    `json:"id"`
	Event EventType `json:"event"`
}

// GroupUpdate is one group-level change event.
type GroupUpdate struct {
	ID    string    `json:"id"`
	Event EventType `json:"event"`
}

// updatePayload is the wire shape pushed to update endpoints.
type updatePayload struct {
	IDP     string        `json:"idp"`
	Updates updateEntries `json:"updates"`
}

type updateEntries struct {
	Users  []UserUpdate  `json:"users,omitempty"`
	Groups []GroupUpdate `json:"groups,omitempty"`
}

// UpdateNotifier pushes structured identity update events to the configured
// downstream endpoints. Deliveries are best effort: a dead endpoint is
// logged and skipped, never surfaced to the sync path.
type UpdateNotifier struct {
	endpoints []string
	idp       string
	token     string

	client *http.Client
	log    log.Logger
}

// NewUpdateNotifier creates a notifier for the given endpoints. The token
// is sent as a bearer credential on every delivery.
func NewUpdateNotifier(endpoints []string, idp, token string, logger log.Logger) *UpdateNotifier {
	return &UpdateNotifier{
		endpoints: endpoints,
		idp:       idp,
		token:     token,
		client:    &http.Client{Timeout: updateTimeout},
		log:       logger,
	}
}

// NotifyUserUpdated pushes a single "updated" event for the named user.
func (n *UpdateNotifier) NotifyUserUpdated(ctx context.Context, username string) error {
	return n.SendUpdates(ctx, []UserUpdate{{ID: username, Event: EventUpdated}}, nil)
}

// SendUpdates validates the batch and delivers it to every endpoint. An
// invalid batch fails before any network traffic; per-endpoint delivery
// failures are logged and swallowed.
func (n *UpdateNotifier) SendUpdates(ctx context.Context, users []UserUpdate, groups []GroupUpdate) error {
	if err := n.validate(users, groups); err != nil {
		return err
	}

	body, err := json.Marshal(updatePayload{
		IDP:     n.idp,
		Updates: updateEntries{Users: users, Groups: groups},
	})
	if err != nil {
		return err
	}

	for _, endpoint := range n.endpoints {
		url := strings.TrimRight(endpoint, "/") + updateWebhookPath
		if err := n.deliver(ctx, url, body); err != nil {
			n.log.Error(ctx, "failed to deliver update notification", err, map[string]interface{}{
				"url": url,
			})
			continue
		}
		n.log.Info(ctx, "update notification delivered", map[string]interface{}{
			"url": url, "users": len(users), "groups": len(groups),
		})
	}

	return nil
}

func (n *UpdateNotifier) validate(users []UserUpdate, groups []GroupUpdate) error {
	if strings.TrimSpace(n.token) == "" {
		return fmt.Errorf("missing webhook token")
	}
	if n.idp == "" {
		return fmt.Errorf("missing identity provider")
	}
	if len(users) == 0 && len(groups) == 0 {
		return fmt.Errorf("at least one user or group update is required")
	}
	for _, u := range users {
		if strings.TrimSpace(u.ID) == "" {
			return fmt.Errorf("user update ID cannot be empty")
		}
	}
	for _, g := range groups {
		if strings.TrimSpace(g.ID) == "" {
			return fmt.Errorf("group update ID cannot be empty")
		}
	}
	return nil
}

func (n *UpdateNotifier) deliver(ctx context.Context, url string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+n.token)

	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("update endpoint returned %d", resp.StatusCode)
	}
	return nil
}
