package xp

import (
	"log/slog"
	"net/http"
	"strconv"

	"studysphere/internal/apierr"
	"studysphere/internal/identity"

	"github.com/gin-gonic/gin"
)

// Handler serves leaderboard and XP history endpoints
type Handler struct {
	board  *Leaderboard
	logger *slog.Logger
}

// NewHandler creates a new XP handler
func NewHandler(board *Leaderboard, logger *slog.Logger) *Handler {
	return &Handler{board: board, logger: logger}
}

// Leaderboard handles GET /api/leaderboard?period=week|all
func (h *Handler) Leaderboard(c *gin.Context) {
	entries, err := h.board.Top(c.Request.Context(), ParsePeriod(c.Query("period")))
	if err != nil {
		h.logger.Error("leaderboard failed", "error", err)
		apierr.Abort(c, http.StatusInternalServerError, "Failed to load leaderboard")
		return
	}
	c.JSON(http.StatusOK, entries)
}

// History handles GET /api/xp/history
func (h *Handler) History(c *gin.Context) {
	userID, ok := identity.UserID(c)
	if !ok {
		apierr.Abort(c, http.StatusUnauthorized, "Authentication credentials were not provided.")
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if limit < 1 || limit > 100 {
		limit = 20
	}

	awards, err := h.board.History(c.Request.Context(), userID, limit)
	if err != nil {
		h.logger.Error("xp history failed", "user_id", userID, "error", err)
		apierr.Abort(c, http.StatusInternalServerError, "Failed to load XP history")
		return
	}
	c.JSON(http.StatusOK, awards)
}

// RegisterRoutes mounts the XP endpoints; rg must already require a user.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/leaderboard", h.Leaderboard)
	rg.GET("/xp/history", h.History)
}
