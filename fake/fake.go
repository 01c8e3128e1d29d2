// Package fake provides an in-memory identity provider for testing.
//
// The fake treats credential strings as subject IDs: a token verifies iff a
// user with that ID was registered via WithUser. Session values minted by
// the fake carry a "sess|" prefix and verify back to the same subject.
// Use fake.NewClient() in unit tests to avoid network calls.
//
// Seeding a user with the admin role (WithUser(..., gate.RoleAdmin)) stands
// in for the out-of-band first-admin bootstrap that a real provider needs;
// the gate itself has no in-band path to create the first admin.
package fake

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	gate "github.com/exprezzzo/gate-go"
	"github.com/exprezzzo/gate-go/claims"
	"github.com/exprezzzo/gate-go/session"
)

const sessionPrefix = "sess|"

// Provider is an in-memory identity provider implementing
// gate.TokenVerifier, gate.SessionMinter and gate.ClaimsBackend.
type Provider struct {
	mu    sync.RWMutex
	users map[string]*user // subject → user
}

type user struct {
	subject string
	email   string
	role    gate.Role
}

// compile-time checks
var (
	_ gate.TokenVerifier = (*Provider)(nil)
	_ gate.SessionMinter = (*Provider)(nil)
	_ gate.ClaimsBackend = (*Provider)(nil)
)

// Option configures the fake provider.
type Option func(*Provider)

// WithUser registers a fake user. The subject doubles as its credential.
func WithUser(subject, email string, role gate.Role) Option {
	return func(p *Provider) {
		p.users[subject] = &user{subject: subject, email: email, role: role}
	}
}

// NewProvider creates an in-memory identity provider.
func NewProvider(opts ...Option) *Provider {
	p := &Provider{users: make(map[string]*user)}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Verify resolves the token (or minted session value) to a registered user.
func (p *Provider) Verify(_ context.Context, token string) (*gate.Claims, error) {
	if token == "" {
		return nil, gate.ErrMissingCredential
	}

	subject := strings.TrimPrefix(token, sessionPrefix)

	p.mu.RLock()
	defer p.mu.RUnlock()

	u, ok := p.users[subject]
	if !ok {
		return nil, fmt.Errorf("gate/fake: %w: unknown token %q", gate.ErrInvalidCredential, token)
	}

	return &gate.Claims{
		Subject:   u.subject,
		Email:     u.email,
		Role:      u.role,
		ExpiresAt: time.Now().Add(1 * time.Hour),
		IssuedAt:  time.Now(),
		Issuer:    "fake",
	}, nil
}

// Mint exchanges a known subject's token for a session value.
func (p *Provider) Mint(_ context.Context, idToken string, _ time.Duration) (string, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if _, ok := p.users[idToken]; !ok {
		return "", fmt.Errorf("gate/fake: %w: unknown token %q", gate.ErrInvalidCredential, idToken)
	}
	return sessionPrefix + idToken, nil
}

// SetCustomClaims updates a registered user's role. Unknown subjects are
// created on the fly, matching providers that store claims keyed by
// subject regardless of sign-up state.
func (p *Provider) SetCustomClaims(_ context.Context, subject string, rc gate.RoleClaims) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	u, ok := p.users[subject]
	if !ok {
		u = &user{subject: subject}
		p.users[subject] = u
	}
	u.role = rc.Role
	return nil
}

// Role returns the stored role for a subject, for test assertions.
func (p *Provider) Role(subject string) (gate.Role, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	u, ok := p.users[subject]
	if !ok {
		return "", false
	}
	return u.role, true
}

// NewClient creates a *gate.Client with all services wired to one
// in-memory provider. The provider is also returned for direct seeding
// and assertions.
func NewClient(opts ...Option) (*gate.Client, *Provider) {
	p := NewProvider(opts...)

	c, _ := gate.NewClient(
		gate.Config{Endpoint: "fake://localhost"},
		gate.WithTokenVerifier(p),
		gate.WithSessionManager(session.New(p, p)),
		gate.WithClaimsAdmin(claims.New(p)),
	)
	return c, p
}
