// Package members implements the member CRUD endpoints. The delete endpoint runs the
// archive-before-delete flow: the row is snapshotted into the archives table first,
// then removed from tbl_members whether or not the snapshot succeeded.
package members

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/church-registry/church-registry/internal/api/paging"
	"github.com/church-registry/church-registry/internal/archive"
	"github.com/church-registry/church-registry/internal/audit"
	"github.com/church-registry/church-registry/internal/db/models"
	"github.com/church-registry/church-registry/internal/db/repositories"
	"github.com/church-registry/church-registry/internal/middleware"
)

// Handler serves the member endpoints.
type Handler struct {
	repo     *repositories.MemberRepository
	archiver *archive.Archiver
	logger   *slog.Logger
}

// NewHandler creates a new members Handler.
func NewHandler(repo *repositories.MemberRepository, archiver *archive.Archiver, logger *slog.Logger) *Handler {
	return &Handler{repo: repo, archiver: archiver, logger: logger}
}

type memberRequest struct {
	Firstname  string  `json:"firstname" binding:"required"`
	MiddleName *string `json:"middle_name"`
	Lastname   string  `json:"lastname" binding:"required"`
	Email      *string `json:"email"`
	ContactNo  *string `json:"contact_no"`
	Address    *string `json:"address"`
	Status     string  `json:"status"`
}

func (r memberRequest) toModel() *models.Member {
	status := r.Status
	if status == "" {
		status = "active"
	}
	return &models.Member{
		Firstname:  r.Firstname,
		MiddleName: r.MiddleName,
		Lastname:   r.Lastname,
		Email:      r.Email,
		ContactNo:  r.ContactNo,
		Address:    r.Address,
		Status:     status,
	}
}

// CreateMember adds a new member.
// POST /api/church-records/members/createMember
func (h *Handler) CreateMember(c *gin.Context) {
	var req memberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"message": "firstname and lastname are required",
		})
		return
	}

	member, err := h.repo.Create(c.Request.Context(), req.toModel())
	if err != nil {
		h.logger.Error("failed to create member", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "Failed to create member",
		})
		return
	}

	audit.SetEntityID(c, strconv.FormatInt(member.MemberID, 10))

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"message": "Member created successfully",
		"data":    member,
	})
}

// GetAllMembers lists members with pagination and filters.
// GET /api/church-records/members/getAllMembers
// Query params: search, status, page, pageSize
func (h *Handler) GetAllMembers(c *gin.Context) {
	page := paging.Parse(c)
	filters := repositories.MemberFilters{}
	if v := c.Query("search"); v != "" {
		filters.Search = &v
	}
	if v := c.Query("status"); v != "" {
		filters.Status = &v
	}

	members, total, err := h.repo.List(c.Request.Context(), filters, page.Limit(), page.Offset())
	if err != nil {
		h.logger.Error("failed to list members", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "Failed to fetch members",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"message":    "Members retrieved successfully",
		"data":       members,
		"count":      len(members),
		"totalCount": total,
		"pagination": page.Meta(total),
	})
}

// GetMemberByID returns a single member.
// GET /api/church-records/members/getMemberById/:id
func (h *Handler) GetMemberByID(c *gin.Context) {
	id, ok := h.memberID(c)
	if !ok {
		return
	}

	member, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		h.logger.Error("failed to fetch member", "error", err, "member_id", id)
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "Failed to fetch member",
		})
		return
	}
	if member == nil {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"message": "Member not found",
			"data":    nil,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Member retrieved successfully",
		"data":    member,
	})
}

// UpdateMember applies new field values to a member. The previous row state is
// attached to the audit entry as old_values.
// PUT /api/church-records/members/updateMember/:id
func (h *Handler) UpdateMember(c *gin.Context) {
	id, ok := h.memberID(c)
	if !ok {
		return
	}

	var req memberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"message": "firstname and lastname are required",
		})
		return
	}

	existing, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		h.logger.Error("failed to fetch member", "error", err, "member_id", id)
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "Failed to update member",
		})
		return
	}
	if existing == nil {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"message": "Member not found",
		})
		return
	}

	audit.SetOldValues(c, toSnapshot(existing))

	member, err := h.repo.Update(c.Request.Context(), id, req.toModel())
	if err != nil {
		h.logger.Error("failed to update member", "error", err, "member_id", id)
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "Failed to update member",
		})
		return
	}
	if member == nil {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"message": "Member not found",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Member updated successfully",
		"data":    member,
	})
}

// DeleteMember archives the member row and then deletes it. The delete proceeds even
// when archiving fails; the response reports whether a snapshot was stored so the
// operator knows if the deletion is recoverable.
// DELETE /api/church-records/members/deleteMember/:id
func (h *Handler) DeleteMember(c *gin.Context) {
	id, ok := h.memberID(c)
	if !ok {
		return
	}

	member, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		h.logger.Error("failed to fetch member", "error", err, "member_id", id)
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "Failed to delete member",
		})
		return
	}
	if member == nil {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"message": "Member not found",
		})
		return
	}

	snapshot := toSnapshot(member)
	var archivedBy *string
	if userID := c.GetString(middleware.UserIDKey); userID != "" {
		archivedBy = &userID
	}
	result := h.archiver.BeforeDelete(c.Request.Context(), "tbl_members", strconv.FormatInt(id, 10), snapshot, archivedBy)

	deleted, err := h.repo.Delete(c.Request.Context(), id)
	if err != nil {
		h.logger.Error("failed to delete member", "error", err, "member_id", id)
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "Failed to delete member",
		})
		return
	}
	if !deleted {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"message": "Member not found",
		})
		return
	}

	audit.SetOldValues(c, snapshot)

	message := "Member deleted and archived successfully"
	if !result.Success {
		message = "Member deleted; archiving failed: " + result.Message
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"message":  message,
		"archived": result.Success,
	})
}

func (h *Handler) memberID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"message": "Invalid member id",
		})
		return 0, false
	}
	return id, true
}

// toSnapshot converts a member row into the generic map stored in archives and audit
// old_values. Round-tripping through JSON keeps the stored keys aligned with the
// column names via the struct tags.
func toSnapshot(m *models.Member) map[string]interface{} {
	raw, err := json.Marshal(m)
	if err != nil {
		return nil
	}
	var snapshot map[string]interface{}
	if err := json.Unmarshal(raw, &snapshot); err != nil {
		return nil
	}
	return snapshot
}
