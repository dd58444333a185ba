package domain

import "time"

// Profile represents a scholar's aggregated identity record.
//
// ExternalSyncIDs, IsMemberOf and InMembershipGroups are the structured
// equivalents of the serialized mapping blobs the profile carries upstream.
// A key absent from ExternalSyncIDs means the system was never resolved for
// this user; a key present with an empty value means resolution ran and
// found nothing.
type Profile struct {
	ID          string     `bson:"_id,omitempty"`
	Username    string     `bson:"username"`
	Name        string     `bson:"name,omitempty"`
	Email       string     `bson:"email"`
	Emails      []string   `bson:"emails,omitempty"`
	Affiliation string     `bson:"affiliation,omitempty"`

	ExternalSyncIDs    map[string]string   `bson:"external_sync_ids,omitempty"`
	IsMemberOf         map[string]bool     `bson:"is_member_of,omitempty"`
	InMembershipGroups map[string][]string `bson:"in_membership_groups,omitempty"`

	LastSync  *time.Time `bson:"last_sync,omitempty"`
	CreatedAt time.Time  `bson:"created_at"`
	UpdatedAt time.Time  `bson:"updated_at"`
}

// CandidateEmails returns the primary address followed by every alias, in
// order. Search order is significant: first hit wins.
func (p *Profile) CandidateEmails() []string {
	out := make([]string, 0, len(p.Emails)+1)
	if p.Email != "" {
		out = append(out, p.Email)
	}
	return append(out, p.Emails...)
}

// EnsureMaps initializes the mapping fields so callers can write to them
// without nil checks.
func (p *Profile) EnsureMaps() {
	if p.ExternalSyncIDs == nil {
		p.ExternalSyncIDs = make(map[string]string)
	}
	if p.IsMemberOf == nil {
		p.IsMemberOf = make(map[string]bool)
	}
	if p.InMembershipGroups == nil {
		p.InMembershipGroups = make(map[string][]string)
	}
}
