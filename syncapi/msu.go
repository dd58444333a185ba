package syncapi

import (
	"context"
	"strings"

	"github.com/hcommons/membersync/domain"
	"github.com/hcommons/membersync/log"
)

// MSU resolves Michigan State University affiliation from the email domain
// alone. There is no directory to call: an @msu.edu address is the
// membership credential, and the address itself is the sync ID.
type MSU struct {
	suffix string
	log    log.Logger
}

// NewMSU creates a new MSU client.
func NewMSU(logger log.Logger) *MSU {
	return &MSU{
		suffix: "msu.edu",
		log:    logger,
	}
}

// Name implements Client.
func (m *MSU) Name() string { return "MSU" }

func (m *MSU) matches(email string) bool {
	return strings.HasSuffix(strings.ToLower(email), m.suffix)
}

// Search implements Client.
func (m *MSU) Search(_ context.Context, email string) (*SearchResult, error) {
	if err := validateEmail(email); err != nil {
		return nil, err
	}

	result := &SearchResult{System: "MSU", Outcome: domain.SearchNotFound}
	if m.matches(email) {
		result.Outcome = domain.SearchFound
		result.SyncID = email
	}
	return result, nil
}

// SearchMultiple implements Client.
func (m *MSU) SearchMultiple(_ context.Context, emails []string) *SearchResult {
	for _, email := range emails {
		if m.matches(email) {
			return &SearchResult{System: "MSU", Outcome: domain.SearchFound, SyncID: email}
		}
	}
	return &SearchResult{System: "MSU", Outcome: domain.SearchNotFound}
}

// UserInfo implements Client. There is no member record to fetch.
func (m *MSU) UserInfo(_ context.Context, _ string) (*MemberInfo, error) {
	return nil, ErrNotSupported
}

// IsMember implements Client.
func (m *MSU) IsMember(_ context.Context, syncID string) bool {
	return m.matches(syncID)
}

// Groups implements Client. MSU has no group concept.
func (m *MSU) Groups(_ context.Context, _ string) []string {
	return []string{}
}

var _ Client = (*MSU)(nil)
