package domain

import "context"

// ProfileRepository persists profiles and their sync state.
type ProfileRepository interface {
	GetByUsername(ctx context.Context, username string) (*Profile, error)
	Create(ctx context.Context, profile *Profile) error
	Update(ctx context.Context, profile *Profile) error
	// UpdateSyncState persists only the external-ID and group maps. The
	// engine calls this after every system, so partial progress survives a
	// failure later in the run.
	UpdateSyncState(ctx context.Context, profile *Profile) error
}

// RoleRepository reads and mutates organization roles.
type RoleRepository interface {
	ListByUsername(ctx context.Context, username string) ([]*Role, error)
	UpdateStatus(ctx context.Context, roleID string, status RoleStatus) error
}
