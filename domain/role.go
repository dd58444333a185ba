package domain

// RoleStatus defines the possible statuses of a local authorization role.
type RoleStatus string

const (
	RoleStatusActive  RoleStatus = "ACTIVE"
	RoleStatusExpired RoleStatus = "EXPIRED"
)

// Role ties a user to an organization-scoped authorization role. Its status
// is a derived projection of the user's membership in the corresponding
// external system and is mutated only by the reconciliation engine.
type Role struct {
	ID           string     `bson:"_id,omitempty"`
	Username     string     `bson:"username"`
	Organization string     `bson:"organization"`
	Affiliation  string     `bson:"affiliation,omitempty"`
	Status       RoleStatus `bson:"status"`
}
