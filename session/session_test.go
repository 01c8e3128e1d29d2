package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	gate "github.com/exprezzzo/gate-go"
)

// mockVerifier accepts identity tokens of the form "id:<subject>:<role>"
// and session values of the form "sess:<subject>:<role>".
type mockVerifier struct {
	failWith error
}

func (m *mockVerifier) Verify(_ context.Context, token string) (*gate.Claims, error) {
	if m.failWith != nil {
		return nil, m.failWith
	}
	if token == "" {
		return nil, gate.ErrMissingCredential
	}
	parts := strings.Split(token, ":")
	if len(parts) != 3 || (parts[0] != "id" && parts[0] != "sess") {
		return nil, gate.ErrInvalidCredential
	}
	return &gate.Claims{
		Subject:   parts[1],
		Role:      parts[2],
		IssuedAt:  time.Now(),
		ExpiresAt: time.Now().Add(time.Hour),
		Issuer:    "mock",
	}, nil
}

// mockMinter exchanges "id:..." for "sess:..." and records calls.
type mockMinter struct {
	calls      int
	lastTTL    time.Duration
	shouldFail bool
}

func (m *mockMinter) Mint(_ context.Context, idToken string, ttl time.Duration) (string, error) {
	m.calls++
	m.lastTTL = ttl
	if m.shouldFail {
		return "", fmt.Errorf("mint failed")
	}
	return "sess:" + strings.TrimPrefix(idToken, "id:"), nil
}

func TestCreate_Success(t *testing.T) {
	minter := &mockMinter{}
	mgr := New(&mockVerifier{}, minter, WithTTL(5*24*time.Hour))

	cookie, err := mgr.Create(context.Background(), "id:user-1:admin")
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	if cookie.Name != gate.DefaultSessionCookieName {
		t.Errorf("Name = %q, want %q", cookie.Name, gate.DefaultSessionCookieName)
	}
	if cookie.Value != "sess:user-1:admin" {
		t.Errorf("Value = %q, want minted session value", cookie.Value)
	}
	if cookie.MaxAge != int(5*24*time.Hour/time.Second) {
		t.Errorf("MaxAge = %d, want 5 days in seconds", cookie.MaxAge)
	}
	if minter.lastTTL != 5*24*time.Hour {
		t.Errorf("minter ttl = %v, want 5 days", minter.lastTTL)
	}
}

func TestCreate_ExpiryFromClock(t *testing.T) {
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	mgr := New(&mockVerifier{}, &mockMinter{},
		WithTTL(48*time.Hour),
		withClock(func() time.Time { return fixed }),
	)

	cookie, err := mgr.Create(context.Background(), "id:user-1:user")
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	want := fixed.Add(48 * time.Hour)
	if !cookie.ExpiresAt.Equal(want) {
		t.Errorf("ExpiresAt = %v, want %v", cookie.ExpiresAt, want)
	}
}

func TestCreate_InvalidTokenNeverReachesMinter(t *testing.T) {
	minter := &mockMinter{}
	mgr := New(&mockVerifier{}, minter)

	_, err := mgr.Create(context.Background(), "garbage")
	if !errors.Is(err, gate.ErrInvalidCredential) {
		t.Fatalf("Create() error = %v, want ErrInvalidCredential", err)
	}
	if minter.calls != 0 {
		t.Errorf("minter called %d times for invalid token, want 0", minter.calls)
	}
}

func TestCreate_EmptyToken(t *testing.T) {
	mgr := New(&mockVerifier{}, &mockMinter{})

	_, err := mgr.Create(context.Background(), "")
	if !errors.Is(err, gate.ErrMissingCredential) {
		t.Fatalf("Create() error = %v, want ErrMissingCredential", err)
	}
}

func TestCreate_MinterFailure(t *testing.T) {
	mgr := New(&mockVerifier{}, &mockMinter{shouldFail: true})

	_, err := mgr.Create(context.Background(), "id:user-1:user")
	if err == nil {
		t.Fatal("Create() expected error when minter fails, got nil")
	}
}

func TestVerify_RoundTrip(t *testing.T) {
	verifier := &mockVerifier{}
	mgr := New(verifier, &mockMinter{})

	original, err := verifier.Verify(context.Background(), "id:user-7:admin")
	if err != nil {
		t.Fatal(err)
	}

	cookie, err := mgr.Create(context.Background(), "id:user-7:admin")
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	claims, err := mgr.Verify(context.Background(), cookie.Value)
	if err != nil {
		t.Fatalf("Verify() error: %v", err)
	}

	// Round-trip preserves subject and role.
	if claims.Subject != original.Subject {
		t.Errorf("Subject = %q, want %q", claims.Subject, original.Subject)
	}
	if claims.Role != original.Role {
		t.Errorf("Role = %q, want %q", claims.Role, original.Role)
	}
}

func TestVerify_FailsClosed(t *testing.T) {
	mgr := New(&mockVerifier{failWith: gate.ErrUpstreamUnavailable}, &mockMinter{})

	_, err := mgr.Verify(context.Background(), "sess:user-1:user")
	if !errors.Is(err, gate.ErrUpstreamUnavailable) {
		t.Fatalf("Verify() error = %v, want ErrUpstreamUnavailable", err)
	}
}

func TestDestroy_Idempotent(t *testing.T) {
	mgr := New(&mockVerifier{}, &mockMinter{}, WithCookieName("ep_session"))

	first := mgr.Destroy()
	second := mgr.Destroy()

	if *first != *second {
		t.Errorf("Destroy() not idempotent: %+v vs %+v", first, second)
	}
	if first.Value != "" || first.MaxAge != -1 {
		t.Errorf("Destroy() = %+v, want empty value with MaxAge -1", first)
	}
}

func TestCookie_Flags(t *testing.T) {
	mgr := New(&mockVerifier{}, &mockMinter{}, WithSecureCookies(true))

	cookie, err := mgr.Create(context.Background(), "id:user-1:user")
	if err != nil {
		t.Fatal(err)
	}

	h := cookie.HTTP()
	if !h.HttpOnly {
		t.Error("cookie must be httpOnly")
	}
	if !h.Secure {
		t.Error("cookie must be Secure when configured")
	}
	if h.SameSite != http.SameSiteLaxMode {
		t.Errorf("SameSite = %v, want Lax", h.SameSite)
	}
	if h.Path != "/" {
		t.Errorf("Path = %q, want /", h.Path)
	}
}
