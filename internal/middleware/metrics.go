// Package middleware provides Gin HTTP middleware for request identification,
// metrics, rate limiting, authentication, and audit trail capture.
//
// Middleware ordering matters and is enforced in router.go:
//
//	Recovery → RequestID → Metrics → RateLimit → Auth → Audit → Handler
//
// Rate limiting runs before auth to block brute-force attempts before any DB work.
// Auth populates the actor identity; the audit middleware reads it from the context
// after the handler has written its response.
package middleware

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/church-registry/church-registry/internal/telemetry"
)

// MetricsMiddleware records request count and duration for every request.
//
// The path label is taken from c.FullPath(), the matched route template
// (e.g. /api/church-records/members/getMemberById/:id), not the raw URL. Requests
// that match no registered route use the literal "<no-route>" so unhandled paths do
// not inflate label cardinality.
func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "<no-route>"
		}

		duration := time.Since(start).Seconds()
		method := c.Request.Method
		status := fmt.Sprintf("%d", c.Writer.Status())

		telemetry.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
		telemetry.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration)
	}
}
