package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/church-registry/church-registry/internal/auth"
)

// Gin context keys populated by AuthMiddleware. The audit middleware and rate
// limiter read the actor identity from these.
const (
	UserIDKey       = "user_id"
	UserEmailKey    = "user_email"
	UserPositionKey = "user_position"
)

// AuthMiddleware validates the Bearer session token and stores the actor identity in
// the context. Token validation is stateless: claims carry the account id, email,
// and position, so no database round-trip happens per request. The audit middleware
// re-resolves the full display identity when it writes its entry.
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"message": "Missing or malformed authorization header",
			})
			return
		}

		claims, err := auth.ValidateJWT(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"message": "Invalid or expired session token",
			})
			return
		}

		c.Set(UserIDKey, claims.UserID)
		c.Set(UserEmailKey, claims.Email)
		c.Set(UserPositionKey, claims.Position)

		c.Next()
	}
}

// OptionalAuthMiddleware populates the actor identity when a valid token is present
// but never rejects the request. Used on routes like login where the request is
// anonymous by nature yet still audited.
func OptionalAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if token, ok := bearerToken(c); ok {
			if claims, err := auth.ValidateJWT(token); err == nil {
				c.Set(UserIDKey, claims.UserID)
				c.Set(UserEmailKey, claims.Email)
				c.Set(UserPositionKey, claims.Position)
			}
		}
		c.Next()
	}
}

func bearerToken(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	return token, token != ""
}
