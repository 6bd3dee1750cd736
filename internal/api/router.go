// Package api wires together all HTTP routes for the church registry backend.
//
// Route grouping philosophy:
//   - /api/auth/login is public (rate limited, optionally authenticated) because it
//     is the entry point for every session; it is still audited.
//   - Everything else under /api/ requires a valid session token. The audit
//     middleware sits inside the authenticated groups so entries carry a real actor.
//   - /health, /ready, and /version are public operational endpoints and are not
//     audited.
package api

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/church-registry/church-registry/internal/api/archives"
	"github.com/church-registry/church-registry/internal/api/audittrail"
	"github.com/church-registry/church-registry/internal/api/authapi"
	"github.com/church-registry/church-registry/internal/api/members"
	"github.com/church-registry/church-registry/internal/archive"
	"github.com/church-registry/church-registry/internal/audit"
	"github.com/church-registry/church-registry/internal/config"
	"github.com/church-registry/church-registry/internal/db/repositories"
	"github.com/church-registry/church-registry/internal/middleware"
)

// Version is the application version, stamped at build time via
// -ldflags "-X github.com/church-registry/church-registry/internal/api.Version=...".
var Version = "dev"

// BackgroundServices holds resources that must be stopped during graceful shutdown.
// The caller (cmd/server) is responsible for calling Shutdown() after the HTTP
// server has drained in-flight requests.
type BackgroundServices struct {
	recorder     *audit.Recorder
	shipper      audit.Shipper
	rateLimiters []*middleware.RateLimiter
}

// Shutdown drains the audit recorder and stops the rate limiter cleanup goroutines.
// ctx bounds how long the recorder may take to flush queued entries.
func (bg *BackgroundServices) Shutdown(ctx context.Context) {
	slog.Info("stopping background services")
	if bg.recorder != nil {
		if err := bg.recorder.Stop(ctx); err != nil {
			slog.Error("audit recorder did not drain cleanly", "error", err)
		}
	}
	if bg.shipper != nil {
		if err := bg.shipper.Close(); err != nil {
			slog.Error("failed to close audit shipper", "error", err)
		}
	}
	for _, rl := range bg.rateLimiters {
		rl.Stop()
	}
	slog.Info("all background services stopped")
}

// NewRouter creates and configures the Gin router
func NewRouter(cfg *config.Config, db *sql.DB) (*gin.Engine, *BackgroundServices) {
	router := gin.New()
	logger := slog.Default()

	// Repositories
	accountRepo := repositories.NewAccountRepository(db)
	memberRepo := repositories.NewMemberRepository(db)
	archiveRepo := repositories.NewArchiveRepository(db)
	auditRepo := repositories.NewAuditRepository(db)

	// Audit pipeline: optional shippers feed from the same recorder that writes
	// the database rows.
	var shipper audit.Shipper
	if ms, err := audit.NewMultiShipper(cfg.Audit.Shippers, logger); err != nil {
		log.Fatalf("Failed to initialize audit shippers: %v", err)
	} else if ms != nil {
		shipper = ms
	}
	recorder := audit.NewRecorder(auditRepo, accountRepo, shipper, cfg.Audit.QueueSize, logger)

	archiver := archive.NewArchiver(archiveRepo, logger)

	// Handlers
	authHandler := authapi.NewHandler(accountRepo, cfg, logger)
	memberHandler := members.NewHandler(memberRepo, archiver, logger)
	archiveHandler := archives.NewHandler(archiveRepo, logger)
	auditHandler := audittrail.NewHandler(auditRepo, logger)

	// Rate limiters
	authRateLimiter := middleware.NewRateLimiter(middleware.AuthRateLimitConfig())
	generalRateLimiter := middleware.NewRateLimiter(middleware.RateLimitConfig{
		RequestsPerMinute: cfg.Security.RateLimiting.RequestsPerMinute,
		BurstSize:         cfg.Security.RateLimiting.Burst,
		CleanupInterval:   5 * time.Minute,
	})

	// Global middleware
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.MetricsMiddleware())
	router.Use(LoggerMiddleware(cfg))
	router.Use(CORSMiddleware(cfg))

	// Operational endpoints
	router.GET("/health", healthCheckHandler(db))
	router.GET("/ready", readinessHandler(db))
	router.GET("/version", versionHandler())

	auditCapture := func() gin.HandlerFunc {
		if cfg.Audit.Enabled {
			return middleware.AuditMiddleware(recorder, cfg.Audit.LogReadOperations)
		}
		return func(c *gin.Context) { c.Next() }
	}()

	// Session endpoints. Login is public but rate limited hard; it carries the
	// audit middleware so failed and successful attempts both land in the trail.
	authGroup := router.Group("/api/auth")
	authGroup.Use(audit.Tag("account", ""))
	{
		authGroup.POST("/login",
			middleware.RateLimitMiddleware(authRateLimiter),
			middleware.OptionalAuthMiddleware(),
			auditCapture,
			authHandler.Login)

		sessionGroup := authGroup.Group("")
		sessionGroup.Use(middleware.AuthMiddleware())
		sessionGroup.Use(middleware.RateLimitMiddleware(generalRateLimiter))
		sessionGroup.Use(auditCapture)
		{
			sessionGroup.POST("/logout", authHandler.Logout)
			sessionGroup.GET("/me", authHandler.Me)
		}
	}

	// Authenticated API
	apiGroup := router.Group("/api")
	apiGroup.Use(middleware.AuthMiddleware())
	apiGroup.Use(middleware.RateLimitMiddleware(generalRateLimiter))
	apiGroup.Use(auditCapture)
	{
		membersGroup := apiGroup.Group("/church-records/members")
		membersGroup.Use(audit.Tag("member", ""))
		{
			membersGroup.POST("/createMember", memberHandler.CreateMember)
			membersGroup.GET("/getAllMembers", memberHandler.GetAllMembers)
			membersGroup.GET("/getMemberById/:id", memberHandler.GetMemberByID)
			membersGroup.PUT("/updateMember/:id", memberHandler.UpdateMember)
			membersGroup.DELETE("/deleteMember/:id", memberHandler.DeleteMember)
		}

		archivesGroup := apiGroup.Group("/archives")
		archivesGroup.Use(audit.Tag("archive", ""))
		{
			archivesGroup.GET("/getAllArchives", archiveHandler.GetAllArchives)
			archivesGroup.GET("/getArchiveById/:id", archiveHandler.GetArchiveByID)
			archivesGroup.GET("/getArchiveSummary", archiveHandler.GetArchiveSummary)
			archivesGroup.POST("/restoreArchive/:id", archiveHandler.RestoreArchive)
		}

		// Reading the audit trail is never itself audited; the capture middleware
		// skips the /api/audit-trail prefix as a second line of defense.
		auditTrailGroup := apiGroup.Group("/audit-trail")
		{
			auditTrailGroup.GET("/getAllAuditLogs", auditHandler.GetAllAuditLogs)
			auditTrailGroup.GET("/getAuditLogById/:id", auditHandler.GetAuditLogByID)
			auditTrailGroup.GET("/getAuditTrailSummary", auditHandler.GetAuditTrailSummary)
		}
	}

	bg := &BackgroundServices{
		recorder:     recorder,
		shipper:      shipper,
		rateLimiters: []*middleware.RateLimiter{authRateLimiter, generalRateLimiter},
	}

	return router, bg
}

// healthCheckHandler returns the health status of the service
func healthCheckHandler(db *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "unhealthy",
				"error":  "database connection failed",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status": "healthy",
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// readinessHandler returns the readiness status of the service.
func readinessHandler(db *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"ready": false,
				"error": "database not ready",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"ready": true,
			"time":  time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// versionHandler returns the API version
func versionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"version":     Version,
			"api_version": "v1",
		})
	}
}

// LoggerMiddleware provides structured request logging via slog.
func LoggerMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)
		requestID, _ := c.Get(middleware.RequestIDKey)

		slog.LogAttrs(
			c.Request.Context(),
			slog.LevelInfo,
			"http request",
			slog.String("method", c.Request.Method),
			slog.String("path", path),
			slog.String("query", query),
			slog.Int("status", c.Writer.Status()),
			slog.Int("size", c.Writer.Size()),
			slog.Duration("latency", latency),
			slog.String("ip", c.ClientIP()),
			slog.String("request_id", fmt.Sprintf("%v", requestID)),
			slog.String("user_agent", c.Request.UserAgent()),
		)
	}
}

// CORSMiddleware handles CORS
func CORSMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")

		allowed := false
		for _, allowedOrigin := range cfg.Security.CORS.AllowedOrigins {
			if allowedOrigin == "*" || allowedOrigin == origin {
				allowed = true
				break
			}
		}

		if allowed {
			if origin == "" {
				c.Header("Access-Control-Allow-Origin", "*")
			} else {
				c.Header("Access-Control-Allow-Origin", origin)
			}
			c.Header("Access-Control-Allow-Credentials", "true")
			c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization, X-Requested-With")
			c.Header("Access-Control-Max-Age", "3600")
		}

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
