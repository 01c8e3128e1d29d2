package gate

import "errors"

// Sentinel errors for the authentication and authorization gate.
//
// MissingCredential and InvalidCredential are intentionally indistinguishable
// to clients (both map to 401 / login redirect); the distinction exists only
// for internal logging.
var (
	// Authentication errors
	ErrMissingCredential = errors.New("gate: missing credential")
	ErrInvalidCredential = errors.New("gate: invalid credential")

	// Authorization errors
	ErrInsufficientRole = errors.New("gate: insufficient role")

	// Upstream errors. Upstream failures fail closed: callers see them as
	// an invalid credential, never as an allow.
	ErrUpstreamUnavailable = errors.New("gate: identity provider unavailable")
	ErrClaimsMutation      = errors.New("gate: claims mutation failed")
)
