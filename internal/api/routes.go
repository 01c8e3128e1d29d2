// Package api wires the gate's HTTP surface: public pages, guarded browser
// routes, and the JSON API behind Auth and RateLimit.
package api

import (
	gate "github.com/exprezzzo/gate-go"
	"github.com/exprezzzo/gate-go/audit"
	"github.com/exprezzzo/gate-go/internal/handlers"
	"github.com/exprezzzo/gate-go/internal/middleware"
	"github.com/exprezzzo/gate-go/metrics"
	"github.com/exprezzzo/gate-go/middleware/ginmw"
	"github.com/exprezzzo/gate-go/ratelimit"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Deps carries everything the router needs.
type Deps struct {
	Client  *gate.Client
	Limiter ratelimit.Limiter
	Metrics *metrics.Metrics
	Auditor *audit.Logger
	Logger  *zap.Logger
}

// SetupRoutes configures all HTTP routes.
func SetupRoutes(router *gin.Engine, d Deps) {
	router.Use(middleware.RequestID(d.Logger))

	authHandler := handlers.NewAuthHandler(d.Client, d.Metrics, d.Auditor)
	claimsHandler := handlers.NewClaimsHandler(d.Client, d.Metrics, d.Auditor)

	// Public routes
	router.GET("/status", handlers.Status)
	router.GET("/healthz", func(c *gin.Context) { c.JSON(200, gin.H{"status": "ok"}) })
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/login", handlers.LoginPage)
	router.GET("/unauthorized", handlers.UnauthorizedPage)

	obs := []ginmw.Option{ginmw.WithMetrics(d.Metrics), ginmw.WithAudit(d.Auditor)}

	// Browser routes behind the path guard. /admin/ requires the admin
	// role; /account/ admits any authenticated identity.
	router.Use(ginmw.Guard(d.Client, ginmw.GuardConfig{
		Protected: []ginmw.PrefixRule{
			{Prefix: "/admin/", Role: gate.RoleAdmin},
			{Prefix: "/account/", Role: ""},
		},
	}, obs...))
	router.GET("/admin/dashboard", handlers.AdminDashboard)
	router.GET("/account/", handlers.AccountPage)

	// JSON API. Session creation is rate limited but necessarily
	// unauthenticated; everything else requires a verified credential.
	apiGroup := router.Group("/api")
	apiGroup.Use(ginmw.RateLimit(d.Limiter, obs...))
	{
		apiGroup.POST("/auth/session", authHandler.CreateSession)
		apiGroup.POST("/auth/logout", authHandler.Logout)

		authed := apiGroup.Group("")
		authed.Use(ginmw.Auth(d.Client, obs...))
		{
			authed.GET("/auth/verify", authHandler.Verify)

			admin := authed.Group("/admin")
			admin.Use(ginmw.RequireRole(gate.RoleAdmin, obs...))
			{
				admin.POST("/claims", claimsHandler.SetClaims)
			}
		}
	}
}
