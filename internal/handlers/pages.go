package handlers

import (
	"fmt"
	"net/http"

	"github.com/exprezzzo/gate-go/middleware/ginmw"
	"github.com/gin-gonic/gin"
)

// Minimal browser-facing pages. The real frontend lives elsewhere; these
// exist so redirects land somewhere sensible and the guarded pages have a
// body to serve.

func LoginPage(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(
		`<!doctype html><title>Sign in</title><h1>Sign in</h1>`+
			`<p>POST your identity token to /api/auth/session to start a session.</p>`))
}

func UnauthorizedPage(c *gin.Context) {
	c.Data(http.StatusForbidden, "text/html; charset=utf-8", []byte(
		`<!doctype html><title>Unauthorized</title><h1>Unauthorized</h1>`+
			`<p>Your account does not have access to that page.</p>`))
}

// AdminDashboard reads identity from the guard's headers, the sanctioned
// downstream channel.
func AdminDashboard(c *gin.Context) {
	subject := c.Request.Header.Get(ginmw.HeaderSubject)
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(fmt.Sprintf(
		`<!doctype html><title>Admin</title><h1>Admin dashboard</h1><p>Signed in as %s.</p>`,
		subject)))
}

func AccountPage(c *gin.Context) {
	subject := c.Request.Header.Get(ginmw.HeaderSubject)
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(fmt.Sprintf(
		`<!doctype html><title>Account</title><h1>Your account</h1><p>Signed in as %s.</p>`,
		subject)))
}
