package fake_test

import (
	"context"
	"errors"
	"testing"

	gate "github.com/exprezzzo/gate-go"
	"github.com/exprezzzo/gate-go/fake"
)

func setup() (*gate.Client, *fake.Provider) {
	return fake.NewClient(
		fake.WithUser("u1", "alice@exprezzzo.com", gate.RoleAdmin),
		fake.WithUser("u2", "bob@exprezzzo.com", gate.RoleUser),
	)
}

// --- TokenVerifier ---

func TestVerifier_ValidToken(t *testing.T) {
	c, _ := setup()
	// Fake verifier treats the token string as a subject ID
	claims, err := c.Verifier().Verify(context.Background(), "u1")
	if err != nil {
		t.Fatalf("Verify() error: %v", err)
	}
	if claims.Subject != "u1" {
		t.Errorf("Subject = %q, want %q", claims.Subject, "u1")
	}
	if claims.Role != gate.RoleAdmin {
		t.Errorf("Role = %q, want admin", claims.Role)
	}
	if claims.Email != "alice@exprezzzo.com" {
		t.Errorf("Email = %q, want alice@exprezzzo.com", claims.Email)
	}
}

func TestVerifier_UnknownToken(t *testing.T) {
	c, _ := setup()
	_, err := c.Verifier().Verify(context.Background(), "nonexistent")
	if !errors.Is(err, gate.ErrInvalidCredential) {
		t.Fatalf("Verify() error = %v, want ErrInvalidCredential", err)
	}
}

func TestVerifier_EmptyToken(t *testing.T) {
	c, _ := setup()
	_, err := c.Verifier().Verify(context.Background(), "")
	if !errors.Is(err, gate.ErrMissingCredential) {
		t.Fatalf("Verify(\"\") error = %v, want ErrMissingCredential", err)
	}
}

// --- SessionManager round-trip ---

func TestSessions_RoundTrip(t *testing.T) {
	c, _ := setup()

	cookie, err := c.Sessions().Create(context.Background(), "u2")
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	claims, err := c.Sessions().Verify(context.Background(), cookie.Value)
	if err != nil {
		t.Fatalf("Verify() error: %v", err)
	}
	if claims.Subject != "u2" {
		t.Errorf("Subject = %q, want u2", claims.Subject)
	}
	if claims.Role != gate.RoleUser {
		t.Errorf("Role = %q, want user", claims.Role)
	}
}

func TestSessions_CreateUnknownUser(t *testing.T) {
	c, _ := setup()

	_, err := c.Sessions().Create(context.Background(), "ghost")
	if err == nil {
		t.Fatal("Create() expected error for unknown user, got nil")
	}
}

// --- ClaimsAdmin through the client ---

func TestClaims_AdminPromotesUser(t *testing.T) {
	c, p := setup()

	admin, err := c.Verifier().Verify(context.Background(), "u1")
	if err != nil {
		t.Fatal(err)
	}

	if err := c.Claims().SetRole(context.Background(), admin, "u2", gate.RoleAdmin); err != nil {
		t.Fatalf("SetRole() error: %v", err)
	}

	role, ok := p.Role("u2")
	if !ok || role != gate.RoleAdmin {
		t.Errorf("Role(u2) = %q, %v; want admin", role, ok)
	}
}

func TestClaims_UserCannotPromote(t *testing.T) {
	c, p := setup()

	caller, err := c.Verifier().Verify(context.Background(), "u2")
	if err != nil {
		t.Fatal(err)
	}

	err = c.Claims().SetRole(context.Background(), caller, "u2", gate.RoleAdmin)
	if !errors.Is(err, gate.ErrInsufficientRole) {
		t.Fatalf("SetRole() error = %v, want ErrInsufficientRole", err)
	}

	// Target claims unchanged.
	role, _ := p.Role("u2")
	if role != gate.RoleUser {
		t.Errorf("Role(u2) = %q after rejected write, want user", role)
	}
}

func TestHealthCheck(t *testing.T) {
	c, _ := setup()
	if err := c.HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck() error: %v", err)
	}
}
