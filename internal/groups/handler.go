package groups

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"studysphere/internal/apierr"
	"studysphere/internal/identity"

	"github.com/gin-gonic/gin"
)

// Handler handles HTTP requests for groups
type Handler struct {
	service Service
	logger  *slog.Logger
}

// NewHandler creates a new groups handler
func NewHandler(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// writeError maps service errors to HTTP responses
func (h *Handler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrGroupNotFound):
		apierr.Abort(c, http.StatusNotFound, "Group not found")
	case errors.Is(err, ErrNotApproved):
		apierr.Abort(c, http.StatusBadRequest, "This group is not yet approved")
	case errors.Is(err, ErrAlreadyMember):
		apierr.Abort(c, http.StatusBadRequest, "You are already a member of this group")
	case errors.Is(err, ErrNotMember):
		apierr.Abort(c, http.StatusBadRequest, "You are not a member of this group")
	case errors.Is(err, ErrForbidden):
		apierr.Abort(c, http.StatusForbidden, "You do not have permission to perform this action.")
	default:
		h.logger.Error("group request failed", "path", c.FullPath(), "error", err)
		apierr.Abort(c, http.StatusInternalServerError, "Something went wrong")
	}
}

func groupID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		apierr.Abort(c, http.StatusNotFound, "Group not found")
		return 0, false
	}
	return id, true
}

// List handles GET /api/groups
func (h *Handler) List(c *gin.Context) {
	userID, _ := identity.UserID(c)
	groups, err := h.service.List(c.Request.Context(), userID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, groups)
}

// Create handles POST /api/groups
func (h *Handler) Create(c *gin.Context) {
	userID, _ := identity.UserID(c)

	var req CreateGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierr.Abort(c, http.StatusBadRequest, apierr.BindDetail(err))
		return
	}

	g, err := h.service.Create(c.Request.Context(), userID, req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, g)
}

// Get handles GET /api/groups/:id
func (h *Handler) Get(c *gin.Context) {
	id, ok := groupID(c)
	if !ok {
		return
	}
	userID, _ := identity.UserID(c)

	g, err := h.service.Get(c.Request.Context(), userID, id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, g)
}

// Join handles POST /api/groups/:id/join
func (h *Handler) Join(c *gin.Context) {
	id, ok := groupID(c)
	if !ok {
		return
	}
	userID, _ := identity.UserID(c)

	earned, err := h.service.Join(c.Request.Context(), userID, id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"detail": "Successfully joined group", "xp_earned": earned})
}

// Leave handles DELETE /api/groups/:id/leave
func (h *Handler) Leave(c *gin.Context) {
	id, ok := groupID(c)
	if !ok {
		return
	}
	userID, _ := identity.UserID(c)

	if err := h.service.Leave(c.Request.Context(), userID, id); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"detail": "Successfully left group"})
}

// AdminOverview handles GET /api/admin/groups
func (h *Handler) AdminOverview(c *gin.Context) {
	userID, _ := identity.UserID(c)
	overview, err := h.service.AdminOverview(c.Request.Context(), userID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, overview)
}

// Approve handles PATCH /api/admin/groups/:id/approve
func (h *Handler) Approve(c *gin.Context) {
	id, ok := groupID(c)
	if !ok {
		return
	}
	userID, _ := identity.UserID(c)
	if err := h.service.Approve(c.Request.Context(), userID, id); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"detail": "Group approved"})
}

// Reject handles PATCH /api/admin/groups/:id/reject
func (h *Handler) Reject(c *gin.Context) {
	id, ok := groupID(c)
	if !ok {
		return
	}
	userID, _ := identity.UserID(c)
	if err := h.service.Reject(c.Request.Context(), userID, id); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"detail": "Group rejected"})
}
