// Package archives exposes the archive API: browsing snapshots of deleted records,
// inspecting a single snapshot, restoring one back into its source table, and
// summary statistics for the dashboard.
package archives

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/church-registry/church-registry/internal/api/paging"
	"github.com/church-registry/church-registry/internal/audit"
	"github.com/church-registry/church-registry/internal/db/models"
	"github.com/church-registry/church-registry/internal/db/repositories"
	"github.com/church-registry/church-registry/internal/middleware"
	"github.com/church-registry/church-registry/internal/telemetry"
)

// Handler serves the archive endpoints.
type Handler struct {
	repo   *repositories.ArchiveRepository
	logger *slog.Logger
}

// NewHandler creates a new archives Handler.
func NewHandler(repo *repositories.ArchiveRepository, logger *slog.Logger) *Handler {
	return &Handler{repo: repo, logger: logger}
}

// GetAllArchives lists archived records with pagination and filters.
// GET /api/archives/getAllArchives
// Query params: search, page, pageSize, original_table, restored, date_from, date_to, sortBy
func (h *Handler) GetAllArchives(c *gin.Context) {
	page := paging.Parse(c)
	filters := repositories.ArchiveFilters{SortBy: c.Query("sortBy")}

	if v := c.Query("search"); v != "" {
		filters.Search = &v
	}
	if v := c.Query("original_table"); v != "" {
		filters.OriginalTable = &v
	}
	if v := c.Query("restored"); v != "" {
		restored := v == "true" || v == "1"
		filters.Restored = &restored
	}
	var ok bool
	if filters.DateFrom, ok = parseDateParam(c, "date_from"); !ok {
		return
	}
	if filters.DateTo, ok = parseDateParam(c, "date_to"); !ok {
		return
	}

	records, total, err := h.repo.List(c.Request.Context(), filters, page.Limit(), page.Offset())
	if err != nil {
		h.logger.Error("failed to list archives", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "Failed to fetch archives",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"message":    "Archives retrieved successfully",
		"data":       records,
		"count":      len(records),
		"totalCount": total,
		"pagination": page.Meta(total),
	})
}

// GetArchiveByID returns a single archive record.
// GET /api/archives/getArchiveById/:id
func (h *Handler) GetArchiveByID(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"message": "Invalid archive id",
		})
		return
	}

	rec, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		h.logger.Error("failed to fetch archive", "error", err, "archive_id", id)
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "Failed to fetch archive",
		})
		return
	}
	if rec == nil {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"message": "Archive record not found",
			"data":    nil,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Archive retrieved successfully",
		"data":    rec,
	})
}

type restoreRequest struct {
	RestoredBy   *string `json:"restored_by"`
	RestoreNotes *string `json:"restore_notes"`
}

// RestoreArchive re-inserts an archived snapshot into its original table.
// POST /api/archives/restoreArchive/:id
// Body: { restored_by?, restore_notes? }
func (h *Handler) RestoreArchive(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"message": "Invalid archive id",
		})
		return
	}

	var req restoreRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"success": false,
				"message": "Invalid request body",
			})
			return
		}
	}

	restoredBy := req.RestoredBy
	if restoredBy == nil {
		if userID := c.GetString(middleware.UserIDKey); userID != "" {
			restoredBy = &userID
		}
	}

	rec, err := h.repo.Restore(c.Request.Context(), id, restoredBy, req.RestoreNotes)
	if err != nil {
		h.recordRestoreFailure(c, err, id)
		return
	}

	telemetry.ArchiveRestoresTotal.WithLabelValues(rec.OriginalTable, "success").Inc()
	audit.SetAction(c, models.ActionUpdate)
	audit.SetEntityID(c, strconv.FormatInt(rec.ArchiveID, 10))
	audit.SetNewValues(c, rec.RecordData)

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Record restored to " + rec.OriginalTable + " successfully",
		"data":    rec,
	})
}

func (h *Handler) recordRestoreFailure(c *gin.Context, err error, id int64) {
	switch {
	case errors.Is(err, repositories.ErrArchiveNotFound):
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"message": "Archive record not found",
		})
	case errors.Is(err, repositories.ErrRestoreConflict):
		telemetry.ArchiveRestoresTotal.WithLabelValues("unknown", "conflict").Inc()
		c.JSON(http.StatusConflict, gin.H{
			"success": false,
			"message": "A record with the original id already exists in the source table",
		})
	case errors.Is(err, repositories.ErrTableNotRestorable):
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"message": "This record's source table does not support automatic restore",
		})
	default:
		telemetry.ArchiveRestoresTotal.WithLabelValues("unknown", "error").Inc()
		h.logger.Error("failed to restore archive", "error", err, "archive_id", id)
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "Failed to restore archive",
		})
	}
}

// GetArchiveSummary returns archive counts overall and per source table.
// GET /api/archives/getArchiveSummary
func (h *Handler) GetArchiveSummary(c *gin.Context) {
	summary, err := h.repo.GetSummary(c.Request.Context())
	if err != nil {
		h.logger.Error("failed to fetch archive summary", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "Failed to fetch archive summary",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Archive summary retrieved successfully",
		"data":    summary,
	})
}

// parseDateParam parses an optional RFC 3339 or YYYY-MM-DD query parameter. On a
// malformed value it writes a 400 response and returns ok false.
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
