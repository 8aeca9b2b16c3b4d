// Package gateway implements the API gateway: session validation, service
// discovery and request routing to the StudySphere API.
package gateway

import (
	"log/slog"

	"studysphere/internal/config"
	"studysphere/internal/consul"
	"studysphere/internal/middleware"
	"studysphere/internal/session"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// SetupRouter configures and returns the gateway router
func SetupRouter(cfg *config.GatewayConfig, discovery consul.ServiceDiscovery, sessionMgr session.Manager, logger *slog.Logger) *gin.Engine {
	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logging(logger))
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Accept", "Authorization", "Content-Type", middleware.HeaderRequestID},
		ExposeHeaders:    []string{middleware.HeaderRequestID},
		AllowCredentials: true,
	}))

	proxyHandler := NewProxyHandler(discovery, cfg.Secret, logger)
	upstream := proxyHandler.Proxy(cfg.UpstreamName)

	r.GET("/health", proxyHandler.Health)

	// Auth endpoints authenticate themselves; a session is forwarded when present.
	auth := r.Group("/auth", OptionalSessionMiddleware(sessionMgr))
	auth.Any("/*path", upstream)

	api := r.Group("/api", SessionAuthMiddleware(sessionMgr, logger))
	api.Any("/*path", upstream)

	return r
}
