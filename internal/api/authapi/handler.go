// Package authapi implements the session endpoints: login, logout, and the current
// account lookup. Login is the one route audited without prior authentication; on
// success the handler stores the authenticated identity on the context so the audit
// entry is attributed to the account instead of "anonymous".
package authapi

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/church-registry/church-registry/internal/auth"
	"github.com/church-registry/church-registry/internal/config"
	"github.com/church-registry/church-registry/internal/db/repositories"
	"github.com/church-registry/church-registry/internal/middleware"
)

// Handler serves the session endpoints.
type Handler struct {
	accounts *repositories.AccountRepository
	cfg      *config.Config
	logger   *slog.Logger
}

// NewHandler creates a new auth Handler.
func NewHandler(accounts *repositories.AccountRepository, cfg *config.Config, logger *slog.Logger) *Handler {
	return &Handler{accounts: accounts, cfg: cfg, logger: logger}
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login verifies credentials and issues a session token.
// POST /api/auth/login
func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"message": "email and password are required",
		})
		return
	}

	account, err := h.accounts.GetByEmail(c.Request.Context(), req.Email)
	if err != nil {
		h.logger.Error("failed to look up account", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "Login failed",
		})
		return
	}
	if account == nil || !auth.CheckPassword(account.Password, req.Password) {
		c.JSON(http.StatusUnauthorized, gin.H{
			"success": false,
			"message": "Invalid email or password",
		})
		return
	}

	position := ""
	if account.Position != nil {
		position = *account.Position
	}

	accID := strconv.FormatInt(account.AccID, 10)
	token, err := auth.GenerateJWT(accID, account.Email, position, h.cfg.Auth.SessionTTL)
	if err != nil {
		h.logger.Error("failed to issue session token", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "Login failed",
		})
		return
	}

	// Attribute the audit entry to the account that just authenticated.
	c.Set(middleware.UserIDKey, accID)
	c.Set(middleware.UserEmailKey, account.Email)
	c.Set(middleware.UserPositionKey, position)

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Login successful",
		"data": gin.H{
			"token": token,
			"account": gin.H{
				"acc_id":   account.AccID,
				"email":    account.Email,
				"position": account.Position,
			},
		},
	})
}

// Logout ends the session. Tokens are stateless, so this exists to give clients a
// definite endpoint to call and to put a LOGOUT entry in the audit trail.
// POST /api/auth/logout
func (h *Handler) Logout(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Logout successful",
	})
}

// Me returns the account behind the current session token.
// GET /api/auth/me
func (h *Handler) Me(c *gin.Context) {
	userID := c.GetString(middleware.UserIDKey)

	info, err := h.accounts.GetActorInfo(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("failed to load account", "error", err, "user_id", userID)
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "Failed to load account",
		})
		return
	}
	if info == nil {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"message": "Account not found",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Account retrieved successfully",
		"data": gin.H{
			"acc_id":   info.UserID,
			"email":    info.Email,
			"fullname": info.FullName,
			"position": info.Position,
		},
	})
}
