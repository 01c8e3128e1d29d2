package gate

import "time"

// Role is a named authorization attribute attached to an identity.
// Role comparison is a flat string equality on purpose; capability-set
// checks belong to the identity provider, not this gate.
type Role = string

// Known roles.
const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// ValidRole reports whether r is one of the roles this gate understands.
func ValidRole(r Role) bool {
	return r == RoleUser || r == RoleAdmin
}

// Claims represents the standard claims extracted from a verified credential.
// A Claims value is never mutated after verification.
type Claims struct {
	Subject   string
	Email     string
	Role      Role
	ExpiresAt time.Time
	IssuedAt  time.Time
	Issuer    string
	Extra     map[string]any
}

// Session describes an issued session artifact. The cookie value itself is
// opaque; metadata is carried for audit purposes.
type Session struct {
	Subject   string
	Role      Role
	CreatedAt time.Time
	ExpiresAt time.Time
	UserAgent string
	IP        string
}

// RoleClaims is the claim set written through the admin claims service.
type RoleClaims struct {
	Role Role `json:"role"`
}
