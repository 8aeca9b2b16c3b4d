package server

import (
	"net/http"

	"studysphere/internal/identity"
	"studysphere/internal/middleware"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// RegisterRoutes builds the API router
func (s *Server) RegisterRoutes() http.Handler {
	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logging(s.logger))
	r.Use(cors.New(cors.Config{
		AllowOrigins:     s.cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Accept", "Authorization", "Content-Type", middleware.HeaderRequestID},
		ExposeHeaders:    []string{middleware.HeaderRequestID},
		AllowCredentials: true,
	}))

	r.GET("/health", s.healthHandler)

	authOpts := identity.Options{
		TrustHeaders:  s.cfg.TrustGatewayHeaders,
		GatewaySecret: s.cfg.GatewaySecret,
		Sessions:      s.deps.Sessions,
	}
	requireUser := identity.Middleware(authOpts)

	s.auth.RegisterRoutes(r.Group("/auth"), requireUser)

	api := r.Group("/api", requireUser)
	s.sessions.RegisterRoutes(api)
	s.groups.RegisterRoutes(api)
	s.xp.RegisterRoutes(api)

	return r
}

func (s *Server) healthHandler(c *gin.Context) {
	response := gin.H{}
	status := http.StatusOK

	dbHealth := s.deps.DB.Health()
	response["database"] = dbHealth
	if dbHealth["status"] != "up" {
		status = http.StatusServiceUnavailable
	}

	if s.deps.Storage != nil {
		storageHealth := map[string]string{"status": "up"}
		if err := s.deps.Storage.Health(c.Request.Context()); err != nil {
			storageHealth["status"] = "down"
			storageHealth["error"] = err.Error()
		}
		response["storage"] = storageHealth
	}

	c.JSON(status, response)
}
