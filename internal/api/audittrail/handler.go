// Package audittrail exposes read-only access to the audit log: filtered listing,
// single-entry lookup, and summary statistics. There are no write endpoints;
// entries are created only by the capture middleware.
package audittrail

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/church-registry/church-registry/internal/api/paging"
	"github.com/church-registry/church-registry/internal/db/repositories"
)

// Handler serves the audit trail endpoints.
type Handler struct {
	repo   *repositories.AuditRepository
	logger *slog.Logger
}

// NewHandler creates a new audit trail Handler.
func NewHandler(repo *repositories.AuditRepository, logger *slog.Logger) *Handler {
	return &Handler{repo: repo, logger: logger}
}

// GetAllAuditLogs lists audit entries with pagination and filters.
// GET /api/audit-trail/getAllAuditLogs
// Query params: search, page, pageSize, user_id, action_type, entity_type, status,
// date_from, date_to, sortBy. Without an explicit date range the listing covers the
// last 30 days.
func (h *Handler) GetAllAuditLogs(c *gin.Context) {
	page := paging.Parse(c)
	filters := repositories.AuditFilters{SortBy: c.Query("sortBy")}

	if v := c.Query("search"); v != "" {
		filters.Search = &v
	}
	if v := c.Query("user_id"); v != "" {
		filters.UserID = &v
	}
	if v := c.Query("action_type"); v != "" {
		filters.ActionType = &v
	}
	if v := c.Query("entity_type"); v != "" {
		filters.EntityType = &v
	}
	if v := c.Query("status"); v != "" {
		filters.Status = &v
	}
	var ok bool
	if filters.DateFrom, ok = parseDateParam(c, "date_from"); !ok {
		return
	}
	if filters.DateTo, ok = parseDateParam(c, "date_to"); !ok {
		return
	}

	logs, total, err := h.repo.List(c.Request.Context(), filters, page.Limit(), page.Offset())
	if err != nil {
		h.logger.Error("failed to list audit logs", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "Failed to fetch audit logs",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"message":    "Audit logs retrieved successfully",
		"data":       logs,
		"count":      len(logs),
		"totalCount": total,
		"pagination": page.Meta(total),
	})
}

// GetAuditLogByID returns a single audit entry.
// GET /api/audit-trail/getAuditLogById/:id
func (h *Handler) GetAuditLogByID(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"message": "Invalid audit log id",
		})
		return
	}

	log, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		h.logger.Error("failed to fetch audit log", "error", err, "log_id", id)
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "Failed to fetch audit log",
		})
		return
	}
	if log == nil {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"message": "Audit log not found",
			"data":    nil,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Audit log retrieved successfully",
		"data":    log,
	})
}

// GetAuditTrailSummary returns entry counts grouped by action type, status, and
// entity type.
// GET /api/audit-trail/getAuditTrailSummary
func (h *Handler) GetAuditTrailSummary(c *gin.Context) {
	summary, err := h.repo.GetSummary(c.Request.Context())
	if err != nil {
		h.logger.Error("failed to fetch audit trail summary", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "Failed to fetch audit trail summary",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Audit trail summary retrieved successfully",
		"data":    summary,
	})
}

func parseDateParam(c *gin.Context, name string) (*time.Time, bool) {
	v := c.Query(name)
	if v == "" {
		return nil, true
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, v); err == nil {
			return &t, true
		}
	}
	c.JSON(http.StatusBadRequest, gin.H{
		"success": false,
		"message": "Invalid " + name + " value",
	})
	return nil, false
}
