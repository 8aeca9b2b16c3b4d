package studysession

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"studysphere/internal/apierr"
	"studysphere/internal/identity"
	"studysphere/internal/storage"

	"github.com/gin-gonic/gin"
)

// Handler handles HTTP requests for study sessions
type Handler struct {
	service Service
	logger  *slog.Logger
}

// NewHandler creates a new session handler
func NewHandler(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// messages overrides the detail text of errors whose wording depends on the endpoint.
type messages map[error]string

func (h *Handler) writeError(c *gin.Context, err error, overrides messages) {
	for target, detail := range overrides {
		if errors.Is(err, target) {
			status := http.StatusBadRequest
			if errors.Is(err, ErrNotAttending) {
				status = http.StatusForbidden
			}
			apierr.Abort(c, status, detail)
			return
		}
	}

	switch {
	case errors.Is(err, ErrSessionNotFound):
		apierr.Abort(c, http.StatusNotFound, "Session not found")
	case errors.Is(err, ErrNotGroupMember):
		apierr.Abort(c, http.StatusForbidden, "You must join the group before you can RSVP to this session")
	case errors.Is(err, ErrHostNotGroupMember):
		apierr.Abort(c, http.StatusForbidden, "You must be a member of the group to create a session in it")
	case errors.Is(err, ErrEventPassed):
		apierr.Abort(c, http.StatusBadRequest, "This session has already taken place")
	case errors.Is(err, ErrAlreadyRSVPd):
		apierr.Abort(c, http.StatusBadRequest, "You have already RSVP'd to this session")
	case errors.Is(err, ErrNotRSVPd):
		apierr.Abort(c, http.StatusBadRequest, "You have not RSVP'd to this session")
	case errors.Is(err, ErrAlreadyAttended):
		apierr.Abort(c, http.StatusBadRequest, "You have already marked your attendance for this session")
	case errors.Is(err, ErrCodeRequired):
		apierr.Abort(c, http.StatusBadRequest, "Verification code is required")
	case errors.Is(err, ErrInvalidCode):
		apierr.Abort(c, http.StatusBadRequest, "Invalid verification code")
	case errors.Is(err, ErrNotAttending):
		apierr.Abort(c, http.StatusForbidden, "You must be attending this session")
	case errors.Is(err, ErrResourceNotFound):
		apierr.Abort(c, http.StatusNotFound, "Resource not found")
	case errors.Is(err, ErrCannotDelete):
		apierr.Abort(c, http.StatusForbidden, "Only the session host or resource owner can delete this resource")
	case errors.Is(err, ErrEmptyMessage):
		apierr.Abort(c, http.StatusBadRequest, "text: This field may not be blank.")
	case errors.Is(err, ErrUploadsDisabled):
		apierr.Abort(c, http.StatusServiceUnavailable, "File attachments are not available")
	case errors.Is(err, storage.ErrInvalidUpload):
		apierr.Abort(c, http.StatusBadRequest, err.Error())
	default:
		h.logger.Error("session request failed", "path", c.FullPath(), "error", err)
		apierr.Abort(c, http.StatusInternalServerError, "Something went wrong")
	}
}

func paramID(c *gin.Context, name, notFound string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		apierr.Abort(c, http.StatusNotFound, notFound)
		return 0, false
	}
	return id, true
}

// viewer returns the user id and session id of a /sessions/:id request.
func viewer(c *gin.Context) (string, int64, bool) {
	userID, _ := identity.UserID(c)
	id, ok := paramID(c, "id", "Session not found")
	return userID, id, ok
}

// Create handles POST /api/sessions
func (h *Handler) Create(c *gin.Context) {
	userID, _ := identity.UserID(c)

	var req CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierr.Abort(c, http.StatusBadRequest, apierr.BindDetail(err))
		return
	}

	v, err := h.service.Create(c.Request.Context(), userID, req)
	if err != nil {
		h.writeError(c, err, nil)
		return
	}
	c.JSON(http.StatusCreated, v)
}

// List handles GET /api/sessions
func (h *Handler) List(c *gin.Context) {
	userID, _ := identity.UserID(c)
	views, err := h.service.List(c.Request.Context(), userID)
	if err != nil {
		h.writeError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, views)
}

// Get handles GET /api/sessions/:id
func (h *Handler) Get(c *gin.Context) {
	userID, id, ok := viewer(c)
	if !ok {
		return
	}
	v, err := h.service.Get(c.Request.Context(), userID, id)
	if err != nil {
		h.writeError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, v)
}

// ListForGroup handles GET /api/groups/:id/sessions
func (h *Handler) ListForGroup(c *gin.Context) {
	userID, _ := identity.UserID(c)
	groupID, ok := paramID(c, "id", "Group not found")
	if !ok {
		return
	}
	views, err := h.service.ListForGroup(c.Request.Context(), userID, groupID)
	if err != nil {
		h.writeError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, views)
}

// RSVP handles POST /api/sessions/:id/rsvp
func (h *Handler) RSVP(c *gin.Context) {
	userID, id, ok := viewer(c)
	if !ok {
		return
	}
	if err := h.service.RSVP(c.Request.Context(), userID, id); err != nil {
		h.writeError(c, err, nil)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"detail": "Successfully RSVP'd to session"})
}

// CancelRSVP handles DELETE /api/sessions/:id/rsvp
func (h *Handler) CancelRSVP(c *gin.Context) {
	userID, id, ok := viewer(c)
	if !ok {
		return
	}
	if err := h.service.CancelRSVP(c.Request.Context(), userID, id); err != nil {
		h.writeError(c, err, messages{
			ErrAlreadyAttended: "You cannot cancel an RSVP after your attendance has been marked",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"detail": "RSVP cancelled"})
}

// MarkAttendance handles POST /api/sessions/:id/mark-attendance
func (h *Handler) MarkAttendance(c *gin.Context) {
	userID, id, ok := viewer(c)
	if !ok {
		return
	}

	var req MarkAttendanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierr.Abort(c, http.StatusBadRequest, "Verification code is required")
		return
	}

	res, err := h.service.MarkAttendance(c.Request.Context(), userID, id, req.VerificationCode)
	if err != nil {
		h.writeError(c, err, messages{
			ErrNotRSVPd: "You must RSVP to this session before marking attendance",
		})
		return
	}
	c.JSON(http.StatusOK, res)
}

// Resources handles GET /api/sessions/:id/resources
func (h *Handler) Resources(c *gin.Context) {
	userID, id, ok := viewer(c)
	if !ok {
		return
	}
	views, err := h.service.Resources(c.Request.Context(), userID, id)
	if err != nil {
		h.writeError(c, err, messages{ErrNotAttending: "You must be attending this session to view resources"})
		return
	}
	c.JSON(http.StatusOK, views)
}

// AddResource handles POST /api/sessions/:id/resources
func (h *Handler) AddResource(c *gin.Context) {
	userID, id, ok := viewer(c)
	if !ok {
		return
	}

	var req AddResourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierr.Abort(c, http.StatusBadRequest, apierr.BindDetail(err))
		return
	}

	v, err := h.service.AddResource(c.Request.Context(), userID, id, req)
	if err != nil {
		h.writeError(c, err, messages{ErrNotAttending: "You must be attending this session to add resources"})
		return
	}
	c.JSON(http.StatusCreated, v)
}

// DeleteResource handles DELETE /api/sessions/:id/resources/:rid
func (h *Handler) DeleteResource(c *gin.Context) {
	userID, id, ok := viewer(c)
	if !ok {
		return
	}
	resourceID, ok := paramID(c, "rid", "Resource not found")
	if !ok {
		return
	}

	if err := h.service.DeleteResource(c.Request.Context(), userID, id, resourceID); err != nil {
		h.writeError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"detail": "Resource deleted successfully"})
}

// UploadURL handles POST /api/sessions/:id/resources/upload-url
func (h *Handler) UploadURL(c *gin.Context) {
	userID, id, ok := viewer(c)
	if !ok {
		return
	}

	var req UploadURLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierr.Abort(c, http.StatusBadRequest, apierr.BindDetail(err))
		return
	}

	up, err := h.service.NewAttachmentUpload(c.Request.Context(), userID, id, req)
	if err != nil {
		h.writeError(c, err, messages{ErrNotAttending: "You must be attending this session to add resources"})
		return
	}
	c.JSON(http.StatusOK, up)
}

// Attachment handles GET /api/sessions/:id/attachments/:name by redirecting to a presigned URL.
func (h *Handler) Attachment(c *gin.Context) {
	userID, id, ok := viewer(c)
	if !ok {
		return
	}

	url, err := h.service.AttachmentURL(c.Request.Context(), userID, id, c.Param("name"))
	if err != nil {
		h.writeError(c, err, messages{ErrNotAttending: "You must be attending this session to view resources"})
		return
	}
	c.Redirect(http.StatusFound, url)
}

// Messages handles GET /api/sessions/:id/messages
func (h *Handler) Messages(c *gin.Context) {
	userID, id, ok := viewer(c)
	if !ok {
		return
	}
	views, err := h.service.Messages(c.Request.Context(), userID, id)
	if err != nil {
		h.writeError(c, err, messages{ErrNotAttending: "You must be attending this session to view messages"})
		return
	}
	c.JSON(http.StatusOK, views)
}

// SendMessage handles POST /api/sessions/:id/messages
func (h *Handler) SendMessage(c *gin.Context) {
	userID, id, ok := viewer(c)
	if !ok {
		return
	}

	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierr.Abort(c, http.StatusBadRequest, apierr.BindDetail(err))
		return
	}

	v, err := h.service.SendMessage(c.Request.Context(), userID, id, req.Text)
	if err != nil {
		h.writeError(c, err, messages{ErrNotAttending: "You must be attending this session to send messages"})
		return
	}
	c.JSON(http.StatusCreated, v)
}

// Dashboard handles GET /api/dashboard
func (h *Handler) Dashboard(c *gin.Context) {
	userID, _ := identity.UserID(c)
	d, err := h.service.Dashboard(c.Request.Context(), userID)
	if err != nil {
		h.writeError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, d)
}
