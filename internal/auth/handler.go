package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"studysphere/internal/apierr"
	"studysphere/internal/identity"
	"studysphere/internal/session"

	"github.com/gin-gonic/gin"
)

// HandlerOptions controls the session cookie issued on login
type HandlerOptions struct {
	SessionMaxAge time.Duration
	SecureCookies bool
}

// Handler handles authentication-related HTTP requests
type Handler struct {
	service    Service
	sessionMgr session.Manager
	opts       HandlerOptions
	logger     *slog.Logger
}

// NewHandler creates a new authentication handler
func NewHandler(service Service, sessionMgr session.Manager, opts HandlerOptions, logger *slog.Logger) *Handler {
	if opts.SessionMaxAge <= 0 {
		opts.SessionMaxAge = 24 * time.Hour
	}
	return &Handler{
		service:    service,
		sessionMgr: sessionMgr,
		opts:       opts,
		logger:     logger,
	}
}

// Register handles POST /auth/register
func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierr.Abort(c, http.StatusBadRequest, apierr.BindDetail(err))
		return
	}

	user, err := h.service.Register(c.Request.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, ErrUsernameExists):
			apierr.Abort(c, http.StatusConflict, "A user with that username already exists.")
		case errors.Is(err, ErrEmailExists):
			apierr.Abort(c, http.StatusConflict, "A user with that email already exists.")
		default:
			h.logger.Error("register failed", "username", req.Username, "error", err)
			apierr.Abort(c, http.StatusInternalServerError, "Failed to create account")
		}
		return
	}

	h.startSession(c, user, http.StatusCreated)
}

// Login handles POST /auth/login
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierr.Abort(c, http.StatusBadRequest, apierr.BindDetail(err))
		return
	}

	user, err := h.service.Login(c.Request.Context(), req.Login, req.Password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			apierr.Abort(c, http.StatusUnauthorized, "No active account found with the given credentials")
			return
		}
		h.logger.Error("login failed", "login", req.Login, "error", err)
		apierr.Abort(c, http.StatusInternalServerError, "Failed to log in")
		return
	}

	h.startSession(c, user, http.StatusOK)
}

func (h *Handler) startSession(c *gin.Context, user *User, status int) {
	sessionID, err := h.sessionMgr.Create(c.Request.Context(), user.ID, user.Username, h.opts.SessionMaxAge)
	if err != nil {
		h.logger.Error("failed to create session", "user_id", user.ID, "error", err)
		apierr.Abort(c, http.StatusInternalServerError, "Failed to create session")
		return
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(identity.CookieName, sessionID, int(h.opts.SessionMaxAge.Seconds()), "/", "", h.opts.SecureCookies, true)

	c.JSON(status, AuthResponse{User: user, Token: sessionID})
}

// Logout handles POST /auth/logout
func (h *Handler) Logout(c *gin.Context) {
	token := identity.Token(c.Request)
	if token == "" {
		c.JSON(http.StatusOK, gin.H{"detail": "Already logged out"})
		return
	}

	if err := h.sessionMgr.Delete(c.Request.Context(), token); err != nil {
		h.logger.Warn("failed to delete session", "error", err)
	}

	c.SetCookie(identity.CookieName, "", -1, "/", "", h.opts.SecureCookies, true)
	c.JSON(http.StatusOK, gin.H{"detail": "Logged out successfully"})
}

// Me handles GET /auth/me
func (h *Handler) Me(c *gin.Context) {
	userID, ok := identity.UserID(c)
	if !ok {
		apierr.Abort(c, http.StatusUnauthorized, "Authentication credentials were not provided.")
		return
	}

	user, err := h.service.GetUserByID(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			apierr.Abort(c, http.StatusNotFound, "User not found")
			return
		}
		h.logger.Error("failed to load user", "user_id", userID, "error", err)
		apierr.Abort(c, http.StatusInternalServerError, "Failed to load user")
		return
	}

	c.JSON(http.StatusOK, user)
}

// RegisterRoutes mounts the auth endpoints under rg.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, requireUser gin.HandlerFunc) {
	rg.POST("/register", h.Register)
	rg.POST("/login", h.Login)
	rg.POST("/logout", h.Logout)
	rg.GET("/me", requireUser, h.Me)
}
