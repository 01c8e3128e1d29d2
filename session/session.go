// Package session provides the gate.SessionManager implementation.
//
// A session exchanges a short-lived identity token for a longer-lived
// cookie minted by the identity provider. The manager only produces cookie
// directives; it never reads ambient request cookies — callers pass values
// in explicitly.
package session

import (
	"context"
	"fmt"
	"time"

	gate "github.com/exprezzzo/gate-go"
)

// Manager implements gate.SessionManager with a pluggable minter backend.
type Manager struct {
	verifier gate.TokenVerifier
	minter   gate.SessionMinter

	cookieName string
	ttl        time.Duration
	secure     bool

	now func() time.Time
}

// compile-time check
var _ gate.SessionManager = (*Manager)(nil)

// Option configures the Manager.
type Option func(*Manager)

// WithTTL sets the session validity window. Fixed at construction; every
// session issued by this manager gets the same window. Default: 5 days.
func WithTTL(d time.Duration) Option {
	return func(m *Manager) { m.ttl = d }
}

// WithCookieName sets the session cookie key. Default: gate.DefaultSessionCookieName.
func WithCookieName(name string) Option {
	return func(m *Manager) { m.cookieName = name }
}

// WithSecureCookies marks issued cookies Secure. Enable in production.
func WithSecureCookies(secure bool) Option {
	return func(m *Manager) { m.secure = secure }
}

// withClock overrides the time source. Tests only.
func withClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// New creates a session manager over the given verifier and minter.
func New(verifier gate.TokenVerifier, minter gate.SessionMinter, opts ...Option) *Manager {
	m := &Manager{
		verifier:   verifier,
		minter:     minter,
		cookieName: gate.DefaultSessionCookieName,
		ttl:        gate.DefaultSessionTTL,
		secure:     false,
		now:        time.Now,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Create verifies the identity token and exchanges it for a session cookie
// directive. The identity token is checked first so that a forged or
// expired token never reaches the minter.
func (m *Manager) Create(ctx context.Context, idToken string) (*gate.SessionCookie, error) {
	if _, err := m.verifier.Verify(ctx, idToken); err != nil {
		return nil, fmt.Errorf("gate/session: %w", err)
	}

	value, err := m.minter.Mint(ctx, idToken, m.ttl)
	if err != nil {
		return nil, fmt.Errorf("gate/session: mint: %w", err)
	}

	return &gate.SessionCookie{
		Name:      m.cookieName,
		Value:     value,
		MaxAge:    int(m.ttl / time.Second),
		ExpiresAt: m.now().Add(m.ttl),
		Secure:    m.secure,
	}, nil
}

// Verify re-validates a session cookie value through the same verifier path
// as a fresh credential. Malformed or expired values fail closed.
func (m *Manager) Verify(ctx context.Context, cookieValue string) (*gate.Claims, error) {
	claims, err := m.verifier.Verify(ctx, cookieValue)
	if err != nil {
		return nil, fmt.Errorf("gate/session: %w", err)
	}
	return claims, nil
}

// Destroy returns a cookie-clearing directive for the session key.
// Pure and idempotent: every call yields the same directive.
func (m *Manager) Destroy() *gate.SessionCookie {
	return &gate.SessionCookie{
		Name:   m.cookieName,
		Value:  "",
		MaxAge: -1,
		Secure: m.secure,
	}
}
