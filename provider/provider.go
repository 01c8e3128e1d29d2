// Package provider is the HTTP adapter to the identity provider's REST API.
//
// It implements gate.SessionMinter and gate.ClaimsBackend against the
// provider endpoints and authenticates itself machine-to-machine via OAuth2
// client credentials, caching the service token until shortly before expiry.
//
// Usage:
//
//	p := provider.New("https://auth.exprezzzo.com",
//	    provider.WithClientCredentials("gate", secret))
//	sessions := session.New(verifier, p)
//	admin := claims.New(p)
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	gate "github.com/exprezzzo/gate-go"
	"golang.org/x/sync/singleflight"
)

// Client talks to the identity provider's REST API.
type Client struct {
	endpoint     string
	clientID     string
	clientSecret string

	refreshBuffer time.Duration
	httpClient    *http.Client

	mu          sync.RWMutex
	token       string
	tokenExpiry time.Time

	sf singleflight.Group
}

// compile-time checks
var (
	_ gate.SessionMinter = (*Client)(nil)
	_ gate.ClaimsBackend = (*Client)(nil)
)

// Option configures the Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client for provider requests.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Client) { p.httpClient = c }
}

// WithClientCredentials sets the OAuth2 client credentials used for
// machine-to-machine calls. Without credentials, requests are sent
// unauthenticated (local development providers accept this).
func WithClientCredentials(id, secret string) Option {
	return func(p *Client) {
		p.clientID = id
		p.clientSecret = secret
	}
}

// WithRefreshBuffer sets how long before expiry the service token is
// refreshed. Default: 5 minutes.
func WithRefreshBuffer(d time.Duration) Option {
	return func(p *Client) { p.refreshBuffer = d }
}

// New creates a provider client for the given REST endpoint.
func New(endpoint string, opts ...Option) *Client {
	p := &Client{
		endpoint:      strings.TrimRight(endpoint, "/"),
		refreshBuffer: 5 * time.Minute,
		httpClient:    &http.Client{Timeout: 10 * time.Second},
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// --- gate.SessionMinter ---

type mintRequest struct {
	IDToken    string `json:"id_token"`
	TTLSeconds int64  `json:"ttl_seconds"`
}

type mintResponse struct {
	SessionCookie string `json:"session_cookie"`
}

// Mint exchanges a verified identity token for a session cookie value.
func (p *Client) Mint(ctx context.Context, idToken string, ttl time.Duration) (string, error) {
	var resp mintResponse
	err := p.post(ctx, "/api/v1/sessions", mintRequest{
		IDToken:    idToken,
		TTLSeconds: int64(ttl / time.Second),
	}, &resp)
	if err != nil {
		return "", fmt.Errorf("gate/provider: mint: %w", err)
	}
	if resp.SessionCookie == "" {
		return "", fmt.Errorf("gate/provider: mint: empty session_cookie in response")
	}
	return resp.SessionCookie, nil
}

// --- gate.ClaimsBackend ---

type claimsRequest struct {
	Claims gate.RoleClaims `json:"claims"`
}

// SetCustomClaims writes the subject's role claims at the provider.
// The provider applies the write idempotently.
func (p *Client) SetCustomClaims(ctx context.Context, subject string, claims gate.RoleClaims) error {
	path := "/api/v1/users/" + url.PathEscape(subject) + "/claims"
	if err := p.post(ctx, path, claimsRequest{Claims: claims}, nil); err != nil {
		return fmt.Errorf("gate/provider: set claims: %w", err)
	}
	return nil
}

// --- transport ---

func (p *Client) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	if p.clientID != "" {
		token, err := p.serviceToken(ctx)
		if err != nil {
			return fmt.Errorf("%w: %v", gate.ErrUpstreamUnavailable, err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", gate.ErrUpstreamUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("provider returned %d: %s", resp.StatusCode, string(raw))
	}

	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

// --- OAuth2 client credentials (M2M self-auth) ---

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// serviceToken returns a valid cached service token, or fetches a new one
// if expired/missing. singleflight prevents thundering herd on refresh.
func (p *Client) serviceToken(ctx context.Context) (string, error) {
	p.mu.RLock()
	if p.token != "" && time.Now().Before(p.tokenExpiry.Add(-p.refreshBuffer)) {
		defer p.mu.RUnlock()
		return p.token, nil
	}
	p.mu.RUnlock()

	result, err, _ := p.sf.Do("token", func() (interface{}, error) {
		return p.exchangeToken(ctx)
	})
	if err != nil {
		return "", fmt.Errorf("token exchange failed: %w", err)
	}
	return result.(string), nil
}

func (p *Client) exchangeToken(ctx context.Context) (string, error) {
	form := url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {p.clientID},
		"client_secret": {p.clientSecret},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint+"/api/v1/oauth/token",
		strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("token request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token endpoint returned %d: %s", resp.StatusCode, string(body))
	}

	var tokenResp tokenResponse
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if tokenResp.AccessToken == "" {
		return "", fmt.Errorf("empty access_token in response")
	}

	p.mu.Lock()
	p.token = tokenResp.AccessToken
	p.tokenExpiry = time.Now().Add(time.Duration(tokenResp.ExpiresIn) * time.Second)
	p.mu.Unlock()

	return tokenResp.AccessToken, nil
}
