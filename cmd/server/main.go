package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	gate "github.com/exprezzzo/gate-go"
	"github.com/exprezzzo/gate-go/audit"
	"github.com/exprezzzo/gate-go/claims"
	"github.com/exprezzzo/gate-go/internal/api"
	"github.com/exprezzzo/gate-go/internal/config"
	"github.com/exprezzzo/gate-go/internal/logging"
	"github.com/exprezzzo/gate-go/jwks"
	"github.com/exprezzzo/gate-go/metrics"
	"github.com/exprezzzo/gate-go/provider"
	"github.com/exprezzzo/gate-go/ratelimit"
	"github.com/exprezzzo/gate-go/session"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	logger, err := logging.Init(logging.Config{
		Level:      cfg.Logging.Level,
		FilePath:   cfg.Logging.FilePath,
		MaxSize:    cfg.Logging.MaxSize,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAge:     cfg.Logging.MaxAge,
	})
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	// Credential verifier and identity-provider adapter
	verifier := jwks.NewVerifier(cfg.Auth.JWKSURL)

	var providerOpts []provider.Option
	if cfg.Auth.ClientID != "" {
		providerOpts = append(providerOpts,
			provider.WithClientCredentials(cfg.Auth.ClientID, cfg.Auth.ClientSecret))
	}
	idp := provider.New(cfg.Auth.Endpoint, providerOpts...)

	sessions := session.New(verifier, idp,
		session.WithTTL(cfg.Session.TTL),
		session.WithCookieName(cfg.Session.CookieName),
		session.WithSecureCookies(cfg.Session.Secure),
	)
	claimsAdmin := claims.New(idp)

	client, err := gate.NewClient(gate.Config{
		Endpoint:      cfg.Auth.Endpoint,
		JWKSUrl:       cfg.Auth.JWKSURL,
		SessionTTL:    cfg.Session.TTL,
		VerifyTimeout: cfg.Auth.VerifyTimeout,
		CookieName:    cfg.Session.CookieName,
		SecureCookies: cfg.Session.Secure,
	},
		gate.WithLogger(slog.New(slog.NewJSONHandler(os.Stdout, nil))),
		gate.WithTokenVerifier(verifier),
		gate.WithSessionManager(sessions),
		gate.WithClaimsAdmin(claimsAdmin),
	)
	if err != nil {
		logger.Fatal("Failed to create gate client", zap.Error(err))
	}
	defer client.Close()

	// Rate limiter backend
	limiterCfg := ratelimit.Config{
		Capacity:     cfg.RateLimit.Capacity,
		RefillPerSec: cfg.RateLimit.RefillPerSec,
	}
	var limiter ratelimit.Limiter
	switch cfg.RateLimit.Backend {
	case "redis":
		rdb := redis.NewClient(&redis.Options{
			Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			logger.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		defer rdb.Close()
		limiter = ratelimit.NewRedis(rdb, limiterCfg)
	default:
		mem := ratelimit.NewMemory(limiterCfg)
		defer mem.Close()
		limiter = mem
	}

	// Observability
	m := metrics.New(cfg.Metrics.Enabled)
	auditor := audit.New(1000, audit.WithStdoutHandler())
	defer auditor.Close()

	// Router
	router := gin.Default()
	api.SetupRoutes(router, api.Deps{
		Client:  client,
		Limiter: limiter,
		Metrics: m,
		Auditor: auditor,
		Logger:  logger,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
	}

	go func() {
		logger.Info("Starting server", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}
	logger.Info("Server exited")
}
