package handlers

import (
	"errors"
	"net/http"
	"time"

	gate "github.com/exprezzzo/gate-go"
	"github.com/exprezzzo/gate-go/audit"
	"github.com/exprezzzo/gate-go/internal/middleware"
	"github.com/exprezzzo/gate-go/metrics"
	"github.com/exprezzzo/gate-go/middleware/ginmw"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// AuthHandler serves the session lifecycle endpoints.
type AuthHandler struct {
	client  *gate.Client
	metrics *metrics.Metrics
	auditor *audit.Logger
}

func NewAuthHandler(client *gate.Client, m *metrics.Metrics, auditor *audit.Logger) *AuthHandler {
	return &AuthHandler{client: client, metrics: m, auditor: auditor}
}

type createSessionRequest struct {
	IDToken string `json:"id_token" binding:"required"`
}

type createSessionResponse struct {
	ExpiresAt time.Time `json:"expires_at"`
}

// CreateSession exchanges a short-lived identity token for a session cookie.
// Every failure mode is a uniform 401: the response never distinguishes a
// malformed token from a forged one or from a provider outage.
func (h *AuthHandler) CreateSession(c *gin.Context) {
	logger := middleware.Logger(c)
	start := time.Now()

	var req createSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	cookie, err := h.client.Sessions().Create(c.Request.Context(), req.IDToken)
	if err != nil {
		logger.Warn("session creation refused", zap.Error(err))
		h.metrics.RecordAuthFailure(failureReason(err))
		h.audit(c, audit.Event{
			Action: audit.ActionLogin,
			Result: "failure",
			Error:  err.Error(),
		})
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return
	}

	h.metrics.RecordAuthSuccess(time.Since(start).Seconds())
	h.metrics.RecordSessionCreated()
	h.audit(c, audit.Event{Action: audit.ActionLogin, Result: "success"})

	http.SetCookie(c.Writer, cookie.HTTP())
	c.JSON(http.StatusOK, createSessionResponse{ExpiresAt: cookie.ExpiresAt})
}

// Logout clears the session cookie. Destroying an absent session succeeds:
// the end state is identical either way.
func (h *AuthHandler) Logout(c *gin.Context) {
	cleared := h.client.Sessions().Destroy()
	http.SetCookie(c.Writer, cleared.HTTP())

	h.metrics.RecordSessionDestroyed()
	h.audit(c, audit.Event{
		Action:  audit.ActionLogout,
		Result:  "success",
		Subject: ginmw.GetSubject(c),
	})

	c.JSON(http.StatusOK, gin.H{"status": "signed out"})
}

// Verify reports the identity established by the Auth middleware.
func (h *AuthHandler) Verify(c *gin.Context) {
	claims := ginmw.GetClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"subject": claims.Subject,
		"role":    claims.Role,
		"email":   claims.Email,
	})
}

func (h *AuthHandler) audit(c *gin.Context, e audit.Event) {
	if h.auditor == nil {
		return
	}
	e.RequestID = audit.RequestID(c.Request.Context())
	e.Path = c.Request.URL.Path
	e.IP = c.ClientIP()
	e.UserAgent = c.Request.UserAgent()
	h.auditor.Log(e)
}

// failureReason maps a gate error to an internal metrics label. Labels stay
// server-side; clients only ever see the uniform 401.
func failureReason(err error) string {
	switch {
	case errors.Is(err, gate.ErrMissingCredential):
		return "missing"
	case errors.Is(err, gate.ErrInvalidCredential):
		return "invalid"
	case errors.Is(err, gate.ErrUpstreamUnavailable):
		return "upstream"
	default:
		return "other"
	}
}
