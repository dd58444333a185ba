package domain

// SearchOutcome classifies the result of resolving a user against an
// external membership system. NotFound is a confirmed empty result from the
// upstream; TransientFailure means the upstream could not be consulted and
// nothing should be concluded about the user.
type SearchOutcome int

const (
	SearchFound SearchOutcome = iota
	SearchNotFound
	SearchTransientFailure
)

func (o SearchOutcome) String() string {
	switch o {
	case SearchFound:
		return "found"
	case SearchNotFound:
		return "not_found"
	case SearchTransientFailure:
		return "transient_failure"
	}
	return "unknown"
}
