// Package claims provides the gate.ClaimsAdmin implementation.
//
// Role claims are owned by the identity provider; this service only gates
// the write path. The caller must already hold the admin role — there is no
// in-band path for the first admin claim, which has to be seeded at the
// provider out of band.
package claims

import (
	"context"
	"fmt"

	gate "github.com/exprezzzo/gate-go"
)

// Service implements gate.ClaimsAdmin with a pluggable backend.
type Service struct {
	backend gate.ClaimsBackend
}

// compile-time check
var _ gate.ClaimsAdmin = (*Service)(nil)

// New creates a new claims admin over the given backend.
func New(backend gate.ClaimsBackend) *Service {
	return &Service{backend: backend}
}

// SetRole writes the target subject's role claim at the identity provider.
//
// The caller must decode to the admin role; any other outcome returns
// gate.ErrInsufficientRole with no mutation performed. A non-admin caller
// can never elevate itself or another principal. The write is idempotent:
// setting the same role twice yields the same end state.
func (s *Service) SetRole(ctx context.Context, caller *gate.Claims, targetSubject string, role gate.Role) error {
	if caller == nil {
		return fmt.Errorf("gate/claims: %w", gate.ErrMissingCredential)
	}
	if caller.Role != gate.RoleAdmin {
		return fmt.Errorf("gate/claims: %w", gate.ErrInsufficientRole)
	}
	if targetSubject == "" {
		return fmt.Errorf("gate/claims: target subject cannot be empty")
	}
	if !gate.ValidRole(role) {
		return fmt.Errorf("gate/claims: unknown role %q", role)
	}

	if err := s.backend.SetCustomClaims(ctx, targetSubject, gate.RoleClaims{Role: role}); err != nil {
		// No retry: re-issuing a failed claims write risks double-mutation
		// ambiguity; the caller sees a clean failure with no partial state.
		return fmt.Errorf("gate/claims: %w: %v", gate.ErrClaimsMutation, err)
	}
	return nil
}
