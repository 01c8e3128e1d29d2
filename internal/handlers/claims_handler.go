package handlers

import (
	"errors"
	"net/http"

	gate "github.com/exprezzzo/gate-go"
	"github.com/exprezzzo/gate-go/audit"
	"github.com/exprezzzo/gate-go/internal/middleware"
	"github.com/exprezzzo/gate-go/metrics"
	"github.com/exprezzzo/gate-go/middleware/ginmw"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ClaimsHandler serves role-claim administration.
type ClaimsHandler struct {
	client  *gate.Client
	metrics *metrics.Metrics
	auditor *audit.Logger
}

func NewClaimsHandler(client *gate.Client, m *metrics.Metrics, auditor *audit.Logger) *ClaimsHandler {
	return &ClaimsHandler{client: client, metrics: m, auditor: auditor}
}

type setClaimsRequest struct {
	Subject string `json:"subject" binding:"required"`
	Role    string `json:"role" binding:"required,oneof=user admin"`
}

// SetClaims writes the target subject's role at the identity provider.
// The caller's own verified claims gate the operation: anything short of the
// admin role is refused before the provider is contacted.
func (h *ClaimsHandler) SetClaims(c *gin.Context) {
	logger := middleware.Logger(c)

	var req setClaimsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	caller := ginmw.GetClaims(c)
	err := h.client.Claims().SetRole(c.Request.Context(), caller, req.Subject, req.Role)
	if err != nil {
		h.metrics.RecordClaimsMutation("failure")
		h.auditEvent(c, caller, req, "failure", err)

		switch {
		case errors.Is(err, gate.ErrMissingCredential):
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		case errors.Is(err, gate.ErrInsufficientRole):
			c.JSON(http.StatusForbidden, gin.H{"error": "insufficient role"})
		case errors.Is(err, gate.ErrClaimsMutation):
			logger.Error("claims write failed at provider", zap.Error(err),
				zap.String("target", req.Subject))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "claims update failed"})
		default:
			// Internal error text stays in the log; clients get a
			// generic refusal.
			logger.Warn("claims request rejected", zap.Error(err))
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		}
		return
	}

	h.metrics.RecordClaimsMutation("success")
	h.auditEvent(c, caller, req, "success", nil)

	logger.Info("role claim updated",
		zap.String("target", req.Subject), zap.String("role", req.Role))
	c.JSON(http.StatusOK, gin.H{"status": "ok", "subject": req.Subject, "role": req.Role})
}

func (h *ClaimsHandler) auditEvent(c *gin.Context, caller *gate.Claims, req setClaimsRequest, result string, err error) {
	if h.auditor == nil {
		return
	}
	e := audit.Event{
		Action: audit.ActionClaimsUpdate,
		Result: result,
		Target: req.Subject,
		Path:   c.Request.URL.Path,
		IP:     c.ClientIP(),
	}
	if caller != nil {
		e.Subject = caller.Subject
	}
	if err != nil {
		e.Error = err.Error()
	}
	e.RequestID = audit.RequestID(c.Request.Context())
	h.auditor.Log(e)
}
