package gate

import "context"

type ctxKey string

const (
	ctxKeySubject ctxKey = "gate_subject"
	ctxKeyRole    ctxKey = "gate_role"
	ctxKeyClaims  ctxKey = "gate_claims"
)

// WithSubject stores the authenticated subject ID in the context.
func WithSubject(ctx context.Context, subject string) context.Context {
	return context.WithValue(ctx, ctxKeySubject, subject)
}

// SubjectFromContext extracts the authenticated subject ID from the context.
func SubjectFromContext(ctx context.Context) string {
	v, _ := ctx.Value(ctxKeySubject).(string)
	return v
}

// WithRole stores the subject's role in the context.
func WithRole(ctx context.Context, role Role) context.Context {
	return context.WithValue(ctx, ctxKeyRole, role)
}

// RoleFromContext extracts the subject's role from the context.
func RoleFromContext(ctx context.Context) Role {
	v, _ := ctx.Value(ctxKeyRole).(Role)
	return v
}

// WithClaims stores the full verified claims in the context.
func WithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, ctxKeyClaims, claims)
}

// ClaimsFromContext extracts the full verified claims from the context.
func ClaimsFromContext(ctx context.Context) *Claims {
	v, _ := ctx.Value(ctxKeyClaims).(*Claims)
	return v
}
