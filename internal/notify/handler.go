package notify

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// StoreStats is what the health endpoint needs from the idempotency store
type StoreStats interface {
	Ping(ctx context.Context) error
	Count(ctx context.Context) (int64, error)
}

// Handler serves the notifier's health endpoint
type Handler struct {
	store  StoreStats
	logger *slog.Logger
}

// NewHandler creates a new notifier handler
func NewHandler(store StoreStats, logger *slog.Logger) *Handler {
	return &Handler{store: store, logger: logger}
}

// RegisterRoutes mounts the health endpoint
func (h *Handler) RegisterRoutes(r gin.IRouter) {
	r.GET("/health", h.HealthCheck)
}

// HealthCheck handles GET /health
func (h *Handler) HealthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	redisStatus := "connected"
	if err := h.store.Ping(ctx); err != nil {
		redisStatus = "disconnected"
		h.logger.Error("Redis health check failed", "error", err)
	}

	records, err := h.store.Count(ctx)
	if err != nil {
		h.logger.Error("Failed to get idempotency stats", "error", err)
		records = -1
	}

	status := "healthy"
	httpStatus := http.StatusOK
	if redisStatus != "connected" {
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable
	}

	c.JSON(httpStatus, gin.H{
		"status":              status,
		"service":             "studysphere-notifier",
		"redis":               redisStatus,
		"idempotency_records": records,
		"timestamp":           time.Now().UTC(),
	})
}
