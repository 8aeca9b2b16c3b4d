package studysession

import "github.com/gin-gonic/gin"

// RegisterRoutes mounts session endpoints; rg must already require a user.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	sessions := rg.Group("/sessions")
	{
		sessions.GET("", h.List)
		sessions.POST("", h.Create)
		sessions.GET("/:id", h.Get)

		sessions.POST("/:id/rsvp", h.RSVP)
		sessions.DELETE("/:id/rsvp", h.CancelRSVP)
		sessions.POST("/:id/mark-attendance", h.MarkAttendance)

		sessions.GET("/:id/resources", h.Resources)
		sessions.POST("/:id/resources", h.AddResource)
		sessions.DELETE("/:id/resources/:rid", h.DeleteResource)
		sessions.POST("/:id/resources/upload-url", h.UploadURL)
		sessions.GET("/:id/attachments/:name", h.Attachment)

		sessions.GET("/:id/messages", h.Messages)
		sessions.POST("/:id/messages", h.SendMessage)
	}

	rg.GET("/groups/:id/sessions", h.ListForGroup)
	rg.GET("/dashboard", h.Dashboard)
}
