// Package gate provides the authentication and session gate for the
// EXPREZZZO Power dashboard.
//
// The package defines interfaces for credential verification, session
// issuance, role-claim administration and request admission control.
// Concrete implementations are injected via Option functions, keeping the
// gate independent of any specific identity provider.
//
// Example usage with a JWKS-based token verifier:
//
//	client, err := gate.NewClient(
//	    gate.Config{JWKSUrl: "https://auth.exprezzzo.com/.well-known/jwks.json"},
//	    gate.WithTokenVerifier(verifier),
//	    gate.WithSessionManager(sessions),
//	)
package gate

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"
)

// Client is the main entry point for gate operations.
// Service implementations are injected via Option functions.
type Client struct {
	config   Config
	logger   *slog.Logger
	verifier TokenVerifier
	sessions SessionManager
	claims   ClaimsAdmin
}

// Config holds connection and policy configuration.
type Config struct {
	// Endpoint is the address of the identity provider's REST API.
	Endpoint string

	// JWKSUrl is the URL to fetch JWKS public keys for local verification.
	// Example: "https://auth.exprezzzo.com/.well-known/jwks.json"
	JWKSUrl string

	// SessionTTL is the validity window of issued session cookies.
	// Fixed at configuration time. Default: 5 days.
	SessionTTL time.Duration

	// VerifyTimeout bounds every call to the identity provider's
	// verification service. Expired calls fail closed. Default: 3 seconds.
	VerifyTimeout time.Duration

	// CookieName is the session cookie key. Default: "ep_session".
	CookieName string

	// SecureCookies marks issued cookies Secure. Enable in production.
	SecureCookies bool
}

// Option configures the Client.
type Option func(*Client)

// WithLogger sets a structured logger for the client.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithTokenVerifier sets the credential verification implementation.
func WithTokenVerifier(v TokenVerifier) Option {
	return func(c *Client) { c.verifier = v }
}

// WithSessionManager sets the session lifecycle implementation.
func WithSessionManager(s SessionManager) Option {
	return func(c *Client) { c.sessions = s }
}

// WithClaimsAdmin sets the role-claims administration implementation.
func WithClaimsAdmin(a ClaimsAdmin) Option {
	return func(c *Client) { c.claims = a }
}

// DefaultVerifyTimeout bounds identity-provider verification calls.
const DefaultVerifyTimeout = 3 * time.Second

// NewClient creates a new gate client with the given configuration and options.
func NewClient(cfg Config, opts ...Option) (*Client, error) {
	if cfg.Endpoint == "" && cfg.JWKSUrl == "" {
		return nil, fmt.Errorf("gate: at least one of Endpoint or JWKSUrl is required")
	}
	if cfg.SessionTTL == 0 {
		cfg.SessionTTL = DefaultSessionTTL
	}
	if cfg.VerifyTimeout == 0 {
		cfg.VerifyTimeout = DefaultVerifyTimeout
	}
	if cfg.CookieName == "" {
		cfg.CookieName = DefaultSessionCookieName
	}

	c := &Client{config: cfg}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// Config returns the client configuration.
func (c *Client) Config() Config { return c.config }

// Verifier returns the token verifier, or nil if not configured.
func (c *Client) Verifier() TokenVerifier { return c.verifier }

// Sessions returns the session manager, or nil if not configured.
func (c *Client) Sessions() SessionManager { return c.sessions }

// Claims returns the claims admin, or nil if not configured.
func (c *Client) Claims() ClaimsAdmin { return c.claims }

// Logger returns the configured logger, or slog.Default() if none was set.
func (c *Client) Logger() *slog.Logger {
	if c.logger == nil {
		return slog.Default()
	}
	return c.logger
}

// HealthCheck performs a basic readiness check.
// Returns nil if healthy, or an error if no services are configured.
func (c *Client) HealthCheck(ctx context.Context) error {
	if c.verifier == nil && c.sessions == nil && c.claims == nil {
		return fmt.Errorf("gate: no services configured, at least one service is required for health check")
	}
	return nil
}

// Close releases all resources held by the client.
// Any injected service that implements io.Closer will be closed.
func (c *Client) Close() error {
	closers := []interface{}{c.verifier, c.sessions, c.claims}
	var firstErr error
	for _, svc := range closers {
		if cl, ok := svc.(io.Closer); ok && cl != nil {
			if err := cl.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
