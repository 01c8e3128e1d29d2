// Package ginmw provides Gin HTTP middleware for the gate.
//
// Guard protects browser-navigated path prefixes with redirects; Auth and
// RequireRole protect API routes with JSON 401/403 responses; RateLimit
// applies token-bucket admission control. All middleware accept a
// *gate.Client and use its interfaces — no direct dependency on any
// specific identity provider.
package ginmw

import (
	"context"
	"errors"
	"net/http"
	"strings"

	gate "github.com/exprezzzo/gate-go"
	"github.com/exprezzzo/gate-go/audit"
	"github.com/exprezzzo/gate-go/metrics"
	"github.com/exprezzzo/gate-go/ratelimit"
	"github.com/gin-gonic/gin"
)

// Option attaches observability sinks to the middleware. All middleware work
// without any: a nil sink is skipped.
type Option func(*observers)

// WithMetrics records denials and rate-limit refusals on the given metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *observers) { o.metrics = m }
}

// WithAudit emits denial and rate-limit audit events to the given logger.
func WithAudit(l *audit.Logger) Option {
	return func(o *observers) { o.audit = l }
}

type observers struct {
	metrics *metrics.Metrics
	audit   *audit.Logger
}

func newObservers(opts []Option) *observers {
	o := &observers{}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// denied records a refused request. subject is empty when the caller never
// authenticated; reason is an internal label, never sent to the client.
func (o *observers) denied(c *gin.Context, subject, reason string) {
	if o.metrics != nil {
		o.metrics.RecordAuthFailure(reason)
	}
	if o.audit != nil {
		o.audit.Log(audit.Event{
			Action:    audit.ActionDenied,
			Result:    "denied",
			RequestID: audit.RequestID(c.Request.Context()),
			Subject:   subject,
			Path:      c.Request.URL.Path,
			IP:        c.ClientIP(),
			UserAgent: c.Request.UserAgent(),
			Error:     reason,
		})
	}
}

// rateLimited records a request refused by admission control. subject is
// empty for anonymous callers, whose bucket key is the client IP.
func (o *observers) rateLimited(c *gin.Context, subject string) {
	if o.metrics != nil {
		o.metrics.RecordRateLimited()
	}
	if o.audit != nil {
		o.audit.Log(audit.Event{
			Action:    audit.ActionRateLimited,
			Result:    "denied",
			RequestID: audit.RequestID(c.Request.Context()),
			Subject:   subject,
			Path:      c.Request.URL.Path,
			IP:        c.ClientIP(),
		})
	}
}

// Context keys for storing gate data in gin.Context.
const (
	KeySubject = "gate_subject"
	KeyRole    = "gate_role"
	KeyClaims  = "gate_claims"
)

// Request headers carrying verified identity to downstream handlers.
// This is the only sanctioned channel: handlers behind the guard read these
// (or the context keys) and never re-verify from scratch.
const (
	HeaderSubject = "X-Auth-Subject"
	HeaderRole    = "X-Auth-Role"
)

// PrefixRule maps a protected path prefix to the role it requires.
// An empty Role means any authenticated identity passes.
type PrefixRule struct {
	Prefix string
	Role   gate.Role
}

// GuardConfig configures the Guard middleware.
type GuardConfig struct {
	// Protected lists path prefixes under guard. Longest matching prefix
	// wins. Paths matching no rule bypass the guard unchanged.
	Protected []PrefixRule

	// LoginPath receives redirects for missing or invalid credentials.
	// Default: "/login".
	LoginPath string

	// UnauthorizedPath receives redirects for authenticated identities
	// lacking the required role. Distinct from LoginPath by contract.
	// Default: "/unauthorized".
	UnauthorizedPath string
}

func (cfg *GuardConfig) applyDefaults() {
	if cfg.LoginPath == "" {
		cfg.LoginPath = "/login"
	}
	if cfg.UnauthorizedPath == "" {
		cfg.UnauthorizedPath = "/unauthorized"
	}
}

// Guard returns Gin middleware enforcing path-based authorization for
// browser-navigated routes.
//
// The credential is read from the session cookie first, then from the
// Authorization Bearer header. Missing or failed verification redirects to
// the login path; a wrong role redirects to the unauthorized path. Every
// ambiguous outcome (including upstream verification failures) denies.
func Guard(client *gate.Client, cfg GuardConfig, opts ...Option) gin.HandlerFunc {
	cfg.applyDefaults()
	obs := newObservers(opts)

	return func(c *gin.Context) {
		rule, ok := matchRule(cfg.Protected, c.Request.URL.Path)
		if !ok {
			c.Next()
			return
		}

		tokenStr := extractToken(c.Request, client.Config().CookieName)
		if tokenStr == "" {
			obs.denied(c, "", "missing")
			c.Redirect(http.StatusFound, cfg.LoginPath)
			c.Abort()
			return
		}

		claims, err := verify(c, client, tokenStr)
		if err != nil {
			client.Logger().Warn("guard: credential rejected",
				"path", c.Request.URL.Path, "error", err)
			obs.denied(c, "", "invalid")
			c.Redirect(http.StatusFound, cfg.LoginPath)
			c.Abort()
			return
		}

		if rule.Role != "" && claims.Role != rule.Role {
			obs.denied(c, claims.Subject, "role")
			c.Redirect(http.StatusFound, cfg.UnauthorizedPath)
			c.Abort()
			return
		}

		attachIdentity(c, claims)
		c.Next()
	}
}

// Auth returns Gin middleware that verifies credentials on API routes.
// Missing and invalid credentials are both 401 — indistinguishable to the
// caller so that no verification oracle leaks.
func Auth(client *gate.Client, opts ...Option) gin.HandlerFunc {
	obs := newObservers(opts)

	return func(c *gin.Context) {
		tokenStr := extractToken(c.Request, client.Config().CookieName)

		claims, err := verify(c, client, tokenStr)
		if err != nil {
			reason := "invalid"
			if errors.Is(err, gate.ErrMissingCredential) {
				reason = "missing"
			} else {
				client.Logger().Warn("auth: credential rejected",
					"path", c.Request.URL.Path, "error", err)
			}
			obs.denied(c, "", reason)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
			return
		}

		attachIdentity(c, claims)
		c.Next()
	}
}

// RequireRole returns Gin middleware that checks the verified role.
// Requires Auth (or Guard) to run first. Responds 403 on mismatch.
func RequireRole(role gate.Role, opts ...Option) gin.HandlerFunc {
	obs := newObservers(opts)

	return func(c *gin.Context) {
		claims := GetClaims(c)
		if claims == nil {
			obs.denied(c, "", "missing")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
			return
		}
		if claims.Role != role {
			obs.denied(c, claims.Subject, "role")
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "insufficient role"})
			return
		}
		c.Next()
	}
}

// RateLimit returns Gin middleware applying per-client admission control.
// The bucket key is the authenticated subject when present, the client IP
// otherwise. A refused request gets 429 with a Retry-After hint. Limiter
// store errors admit the request: a broken limiter backend must not take
// authentication down with it.
func RateLimit(limiter ratelimit.Limiter, opts ...Option) gin.HandlerFunc {
	obs := newObservers(opts)

	return func(c *gin.Context) {
		key := c.ClientIP()
		if subject := GetSubject(c); subject != "" {
			key = subject
		}

		allowed, err := limiter.Allow(c.Request.Context(), key)
		if err != nil {
			_ = c.Error(err)
			c.Next()
			return
		}
		if !allowed {
			obs.rateLimited(c, GetSubject(c))
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}

		c.Next()
	}
}

// --- Context helpers ---

// GetSubject returns the authenticated subject ID from the Gin context.
func GetSubject(c *gin.Context) string {
	v, _ := c.Get(KeySubject)
	s, _ := v.(string)
	return s
}

// GetRole returns the verified role from the Gin context.
func GetRole(c *gin.Context) gate.Role {
	v, _ := c.Get(KeyRole)
	s, _ := v.(gate.Role)
	return s
}

// GetClaims returns the full verified claims from the Gin context.
func GetClaims(c *gin.Context) *gate.Claims {
	v, _ := c.Get(KeyClaims)
	cl, _ := v.(*gate.Claims)
	return cl
}

// --- internal helpers ---

// matchRule returns the longest-prefix rule covering path.
func matchRule(rules []PrefixRule, path string) (PrefixRule, bool) {
	var best PrefixRule
	found := false
	for _, r := range rules {
		if strings.HasPrefix(path, r.Prefix) && (!found || len(r.Prefix) > len(best.Prefix)) {
			best = r
			found = true
		}
	}
	return best, found
}

// extractToken reads the credential: session cookie first, then the
// Authorization Bearer header.
func extractToken(r *http.Request, cookieName string) string {
	if cookie, err := r.Cookie(cookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}

	auth := r.Header.Get("Authorization")
	if auth == "" {
		return ""
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// verify runs the client's verifier under the configured timeout so a hung
// identity provider fails closed instead of stalling the request.
func verify(c *gin.Context, client *gate.Client, tokenStr string) (*gate.Claims, error) {
	verifier := client.Verifier()
	if verifier == nil {
		return nil, gate.ErrUpstreamUnavailable
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), client.Config().VerifyTimeout)
	defer cancel()

	return verifier.Verify(ctx, tokenStr)
}

// attachIdentity propagates the verified identity downstream: gin context
// keys, request context values, and the X-Auth-* headers.
func attachIdentity(c *gin.Context, claims *gate.Claims) {
	c.Set(KeyClaims, claims)
	c.Set(KeySubject, claims.Subject)
	c.Set(KeyRole, claims.Role)

	ctx := gate.WithClaims(c.Request.Context(), claims)
	ctx = gate.WithSubject(ctx, claims.Subject)
	ctx = gate.WithRole(ctx, claims.Role)
	c.Request = c.Request.WithContext(ctx)

	c.Request.Header.Set(HeaderSubject, claims.Subject)
	c.Request.Header.Set(HeaderRole, claims.Role)
}
