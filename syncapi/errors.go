package syncapi

import "errors"

var (
	// ErrInvalidEmail is returned when a caller passes a malformed address
	// to Search. It is the one error that surfaces to callers directly.
	ErrInvalidEmail = errors.New("invalid email address")

	// ErrUpstreamUnavailable covers connection errors, timeouts and non-2xx
	// statuses that survive the retry policy.
	ErrUpstreamUnavailable = errors.New("upstream request failed")

	// ErrMalformedResponse covers JSON decode and schema mismatches.
	ErrMalformedResponse = errors.New("malformed upstream response")

	// ErrNotSupported marks capability methods a system does not implement.
	ErrNotSupported = errors.New("operation not supported by this system")
)
