package groups

import "github.com/gin-gonic/gin"

// RegisterRoutes mounts group and moderation endpoints; rg must already require a user.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	g := rg.Group("/groups")
	{
		g.GET("", h.List)
		g.POST("", h.Create)
		g.GET("/:id", h.Get)
		g.POST("/:id/join", h.Join)
		g.DELETE("/:id/leave", h.Leave)
	}

	admin := rg.Group("/admin/groups")
	{
		admin.GET("", h.AdminOverview)
		admin.PATCH("/:id/approve", h.Approve)
		admin.PATCH("/:id/reject", h.Reject)
	}
}
