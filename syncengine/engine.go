// Package syncengine reconciles local profile and role state against the
// external membership systems.
package syncengine

import (
	"context"
	"strings"
	"time"

	"github.com/hcommons/membersync/config"
	"github.com/hcommons/membersync/domain"
	"github.com/hcommons/membersync/log"
	"github.com/hcommons/membersync/syncapi"
)

// Options configures an Engine.
type Options struct {
	Clients  map[string]syncapi.Client
	Systems  []config.SystemBinding
	Profiles domain.ProfileRepository
	Roles    domain.RoleRepository

	// SyncWindow is how long a previous sync result is reused before the
	// upstream systems are consulted again.
	SyncWindow time.Duration

	WebhookToken string
	WebhookURLs  []string

	// Updates, when set, additionally receives a structured "updated"
	// event for every synced user.
	Updates *UpdateNotifier

	Logger log.Logger
}

// Engine walks the configured external systems for a profile, resolves a
// sync ID per system, records membership and groups, and projects the
// result onto the profile's organization roles.
//
// Systems are processed sequentially and in configuration order. The
// upstreams are independent, so a concurrent fan-out would be correct, but
// latency here is dominated by the sync window anyway and sequential runs
// keep the rate-limit pressure per system predictable.
type Engine struct {
	clients  map[string]syncapi.Client
	systems  []config.SystemBinding
	profiles domain.ProfileRepository
	roles    domain.RoleRepository

	syncWindow   time.Duration
	webhookToken string
	webhookURLs  []string
	updates      *UpdateNotifier

	log  log.Logger
	post webhookPoster

	now func() time.Time
}

// NewEngine creates a reconciliation engine.
func NewEngine(opts Options) *Engine {
	return &Engine{
		clients:      opts.Clients,
		systems:      opts.Systems,
		profiles:     opts.Profiles,
		roles:        opts.Roles,
		syncWindow:   opts.SyncWindow,
		webhookToken: opts.WebhookToken,
		webhookURLs:  opts.WebhookURLs,
		updates:      opts.Updates,
		log:          opts.Logger,
		post:         postWebhook,
		now:          time.Now,
	}
}

// SyncOptions tweaks a single Sync run.
type SyncOptions struct {
	// Force skips the sync-window short-circuit.
	Force bool
	// SkipWebhook suppresses the downstream notification fan-out.
	SkipWebhook bool
	// Systems restricts the run to the named systems. Empty means all
	// configured systems.
	Systems []string
}

// Sync reconciles one profile against every configured external system and
// returns the consolidated membership map. It never fails on a per-system
// problem: each system is isolated, partial progress is persisted, and the
// best-effort map is returned. Only repository failures surface as errors.
func (e *Engine) Sync(ctx context.Context, profile *domain.Profile, opts SyncOptions) (map[string]bool, error) {
	if !opts.Force && profile.LastSync != nil &&
		e.now().UTC().Sub(profile.LastSync.UTC()) < e.syncWindow {
		e.log.Info(ctx, "external data already synced, using cached result", map[string]interface{}{
			"username": profile.Username, "last_sync": profile.LastSync,
		})
		return profile.IsMemberOf, nil
	}

	e.log.Info(ctx, "syncing external data", map[string]interface{}{"username": profile.Username})

	profile.EnsureMaps()

	for _, binding := range e.systems {
		if !selectedSystem(binding.Name, opts.Systems) {
			continue
		}

		client, ok := e.clients[binding.Name]
		if !ok {
			e.log.Warn(ctx, "no client registered for sync system", map[string]interface{}{
				"system": binding.Name,
			})
			continue
		}

		e.syncSystem(ctx, profile, client, binding)

		// Persist the sync-id and group maps after every system so a
		// failure later in the run cannot lose this system's progress.
		if err := e.profiles.UpdateSyncState(ctx, profile); err != nil {
			e.log.Error(ctx, "failed to persist sync state", err, map[string]interface{}{
				"username": profile.Username, "system": binding.Name,
			})
		}
	}

	e.projectComanageRoles(ctx, profile)

	now := e.now().UTC()
	profile.LastSync = &now
	if err := e.profiles.Update(ctx, profile); err != nil {
		return profile.IsMemberOf, err
	}

	if !opts.SkipWebhook {
		e.notify(ctx, profile.Username)
	}

	e.log.Info(ctx, "membership map updated", map[string]interface{}{
		"username": profile.Username, "is_member_of": profile.IsMemberOf,
	})

	return profile.IsMemberOf, nil
}

// SyncUsername loads the profile and runs Sync on it.
func (e *Engine) SyncUsername(ctx context.Context, username string, opts SyncOptions) (map[string]bool, error) {
	profile, err := e.profiles.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	return e.Sync(ctx, profile, opts)
}

// syncSystem runs one system's resolution and role projection. All
// failures are absorbed here; the caller persists whatever state was
// reached.
func (e *Engine) syncSystem(ctx context.Context, profile *domain.Profile, client syncapi.Client, binding config.SystemBinding) {
	// Re-resolve through the full candidate email set even when a sync ID
	// is already on file, so upstream ID changes are picked up.
	result := client.SearchMultiple(ctx, profile.CandidateEmails())

	switch result.Outcome {
	case domain.SearchFound:
		profile.ExternalSyncIDs[binding.Name] = result.SyncID

		e.log.Info(ctx, "resolved sync id", map[string]interface{}{
			"system": binding.Name, "sync_id": result.SyncID, "username": profile.Username,
		})

		profile.IsMemberOf[binding.Name] = client.IsMember(ctx, result.SyncID)
		profile.InMembershipGroups[binding.Name] = client.Groups(ctx, result.SyncID)

	case domain.SearchNotFound:
		// No external identity means non-membership here, not unknown.
		profile.ExternalSyncIDs[binding.Name] = ""
		profile.IsMemberOf[binding.Name] = false
		profile.InMembershipGroups[binding.Name] = []string{}

	case domain.SearchTransientFailure:
		// Leave previously resolved state for this system untouched.
		e.log.Warn(ctx, "system lookup failed, keeping previous state", map[string]interface{}{
			"system": binding.Name, "username": profile.Username,
		})
		return
	}

	e.reconcileRoles(ctx, profile, binding)
}

// reconcileRoles flips every role whose organization this system governs to
// ACTIVE or EXPIRED based on the freshly recorded membership.
func (e *Engine) reconcileRoles(ctx context.Context, profile *domain.Profile, binding config.SystemBinding) {
	roles, err := e.roles.ListByUsername(ctx, profile.Username)
	if err != nil {
		e.log.Error(ctx, "failed to list roles", err, map[string]interface{}{
			"username": profile.Username,
		})
		return
	}

	status := domain.RoleStatusExpired
	if profile.IsMemberOf[binding.Name] {
		status = domain.RoleStatusActive
	}

	for _, role := range roles {
		if !containsOrganization(binding.Organizations, role.Organization) {
			continue
		}
		if role.Status == status {
			continue
		}

		e.log.Info(ctx, "updating organization role", map[string]interface{}{
			"username": profile.Username, "organization": role.Organization, "status": status,
		})

		if err := e.roles.UpdateStatus(ctx, role.ID, status); err != nil {
			e.log.Error(ctx, "failed to update role status", err, map[string]interface{}{
				"role_id": role.ID, "username": profile.Username,
			})
		}
	}
}

// projectComanageRoles derives the STEM membership key from COmanage role
// records rather than an external directory: organization "stemedplus" with
// affiliation "member" counts.
func (e *Engine) projectComanageRoles(ctx context.Context, profile *domain.Profile) {
	roles, err := e.roles.ListByUsername(ctx, profile.Username)
	if err != nil {
		e.log.Error(ctx, "failed to list roles for COmanage projection", err, map[string]interface{}{
			"username": profile.Username,
		})
		return
	}

	profile.IsMemberOf["STEM"] = false
	for _, role := range roles {
		if strings.EqualFold(role.Organization, "stemedplus") && role.Affiliation == "member" {
			profile.IsMemberOf["STEM"] = true
			break
		}
	}
}

func selectedSystem(name string, selected []string) bool {
	if len(selected) == 0 {
		return true
	}
	for _, s := range selected {
		if s == name {
			return true
		}
	}
	return false
}

func containsOrganization(orgs []string, org string) bool {
	for _, o := range orgs {
		if o == org {
			return true
		}
	}
	return false
}
