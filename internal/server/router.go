package server

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cmsconsultores/cmsweb/internal/auth"
	"github.com/cmsconsultores/cmsweb/internal/authz"
	"github.com/cmsconsultores/cmsweb/internal/config"
	"github.com/cmsconsultores/cmsweb/internal/contacts"
	"github.com/cmsconsultores/cmsweb/internal/handlers"
	"github.com/cmsconsultores/cmsweb/internal/health"
	"github.com/cmsconsultores/cmsweb/internal/metrics"
	"github.com/cmsconsultores/cmsweb/internal/middleware"
	"github.com/cmsconsultores/cmsweb/internal/storage"
	"github.com/cmsconsultores/cmsweb/pkg/logger"
)

// Deps are the collaborators the router is built from.
type Deps struct {
	Config   *config.AppConfig
	Blobs    storage.Store
	Contacts *contacts.Store
	// Enforcer is required when Config.Auth is enabled.
	Enforcer *authz.Enforcer
	Log      *slog.Logger
}

// NewRouter wires every route and middleware.
func NewRouter(d Deps) *gin.Engine {
	cfg := d.Config
	if d.Log == nil {
		d.Log = logger.Get()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID(d.Log))
	router.Use(metrics.Middleware())
	router.Use(middleware.CORSMiddleware(cfg.Server.CORSOrigin))

	// Health check
	router.GET("/health", gin.WrapH(health.PingHandler()))
	router.GET("/ready", gin.WrapH(health.NewReadiness(map[string]health.Checker{
		"storage": func(ctx context.Context) error { return d.Blobs.Ping(ctx) },
	})))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	})

	// API routes
	api := router.Group("/api")

	contactHandler := handlers.NewContactHandler(d.Contacts)
	api.POST("/contacto",
		middleware.RateLimitMiddleware(cfg.Server.RateLimit, cfg.Server.RateBurst),
		middleware.BodyLimit(cfg.Server.BodyLimit),
		contactHandler.Submit,
	)

	if !cfg.Auth.Enabled() {
		d.Log.Warn("auth.jwtsecret not set, admin endpoints disabled")
		return router
	}

	secret := []byte(cfg.Auth.JWTSecret)
	adminHandler := handlers.NewAdminHandler(d.Contacts, auth.Credentials{
		Username:     cfg.Auth.AdminUser,
		PasswordHash: cfg.Auth.AdminPasswordHash,
	}, secret, cfg.Auth.TokenTTL)

	// Admin routes
	admin := api.Group("/admin")
	admin.POST("/login", middleware.AuthRateLimitMiddleware(), middleware.BodyLimit(cfg.Server.BodyLimit), adminHandler.Login)

	protected := admin.Group("")
	protected.Use(middleware.TokenAuthMiddleware(secret))
	protected.GET("/contactos",
		middleware.RequirePermission(d.Enforcer, authz.ResourceContacts, authz.ActionRead),
		adminHandler.ListContacts,
	)
	protected.GET("/contactos/export",
		middleware.RequirePermission(d.Enforcer, authz.ResourceContacts, authz.ActionExport),
		adminHandler.ExportContacts,
	)

	return router
}
