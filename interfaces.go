package gate

import (
	"context"
	"time"
)

// TokenVerifier verifies credentials and extracts claims.
// Implementations: jwks/ (JWT via JWKS), fake/ (testing).
//
// Verify must fail closed: any outcome other than a fully verified
// credential returns a nil Claims together with ErrMissingCredential,
// ErrInvalidCredential or ErrUpstreamUnavailable.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*Claims, error)
}

// SessionMinter exchanges a short-lived identity token for a longer-lived
// session artifact. Implementations: provider/ (HTTP backend), fake/.
type SessionMinter interface {
	// Mint returns the opaque session cookie value valid for ttl.
	Mint(ctx context.Context, idToken string, ttl time.Duration) (string, error)
}

// ClaimsBackend writes custom role claims for a subject at the identity
// provider. Writes are idempotent at the provider: setting the same claims
// twice yields the same end state.
type ClaimsBackend interface {
	SetCustomClaims(ctx context.Context, subject string, claims RoleClaims) error
}

// SessionManager issues, re-validates and destroys session cookies.
// Implementation: session/.
type SessionManager interface {
	Create(ctx context.Context, idToken string) (*SessionCookie, error)
	Verify(ctx context.Context, cookieValue string) (*Claims, error)
	Destroy() *SessionCookie
}

// ClaimsAdmin mutates role claims, enforcing that the caller already holds
// the admin role. Implementation: claims/.
type ClaimsAdmin interface {
	SetRole(ctx context.Context, caller *Claims, targetSubject string, role Role) error
}
