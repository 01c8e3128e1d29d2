package gate

import (
	"net/http"
	"time"
)

// DefaultSessionCookieName is used when Config.CookieName is empty.
const DefaultSessionCookieName = "ep_session"

// DefaultSessionTTL is the session validity window when Config.SessionTTL
// is zero. Policy constant, fixed at configuration time.
const DefaultSessionTTL = 5 * 24 * time.Hour

// SessionCookie is a cookie directive produced by a SessionManager.
// A MaxAge of -1 clears the cookie.
type SessionCookie struct {
	Name      string
	Value     string
	MaxAge    int
	ExpiresAt time.Time
	Secure    bool
}

// HTTP renders the directive as a standard cookie. Flags are fixed:
// httpOnly always, SameSite=Lax, Secure per deployment config.
func (c *SessionCookie) HTTP() *http.Cookie {
	maxAge := c.MaxAge
	if maxAge < 0 {
		maxAge = -1 // net/http encodes -1 as Max-Age=0
	}
	return &http.Cookie{
		Name:     c.Name,
		Value:    c.Value,
		Path:     "/",
		MaxAge:   maxAge,
		Expires:  c.ExpiresAt,
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}
