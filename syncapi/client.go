// Package syncapi wraps the third-party membership directories behind a
// common capability contract: search by email, resolve a stable sync ID,
// fetch member info, and decide active membership.
package syncapi

import (
	"context"
	"net/mail"
	"time"

	"github.com/hcommons/membersync/domain"
)

// MemberInfo holds standardized member information retrieved from an
// external membership system.
type MemberInfo struct {
	SystemID          string
	Email             string
	Name              string
	MembershipExpires *time.Time
	LastModified      *time.Time
	Raw               any
}

// SearchResult is the outcome of resolving a user against one system.
type SearchResult struct {
	System  string
	Outcome domain.SearchOutcome
	// SyncID is the system's native identifier for the matched member
	// record. Empty whenever Outcome is not SearchFound.
	SyncID string
	// Raw is the parsed system-specific response for the winning query.
	Raw any
}

// Client is implemented once per external membership system.
type Client interface {
	// Name returns the unique identifier for the system (e.g. "MLA").
	Name() string

	// Search finds a member record by email. A malformed address fails with
	// ErrInvalidEmail; upstream failures are absorbed into the result's
	// Outcome, never returned as errors.
	Search(ctx context.Context, email string) (*SearchResult, error)

	// SearchMultiple tries each candidate email in caller order and returns
	// the first positive result. It never fails: when every candidate
	// misses or errors, the result carries the non-Found outcome.
	SearchMultiple(ctx context.Context, emails []string) *SearchResult

	// UserInfo looks up the full member record by the system's native ID.
	UserInfo(ctx context.Context, syncID string) (*MemberInfo, error)

	// IsMember reports whether the identified user currently holds an
	// active membership. It fails closed: any upstream failure, parse
	// error or missing expiry yields false, never an error.
	IsMember(ctx context.Context, syncID string) bool

	// Groups returns the user's membership groups. No upstream currently
	// exposes this, so every implementation returns an empty slice; the
	// method stays on the contract for when one does.
	Groups(ctx context.Context, syncID string) []string
}

// validateEmail rejects syntactically invalid addresses before any network
// traffic happens.
func validateEmail(email string) error {
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return ErrInvalidEmail
	}
	return nil
}
