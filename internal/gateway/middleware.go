package gateway

import (
	"log/slog"
	"net/http"

	"studysphere/internal/identity"
	"studysphere/internal/session"

	"github.com/gin-gonic/gin"
)

// stripIdentity removes identity headers a client may have forged.
func stripIdentity(r *http.Request) {
	r.Header.Del(identity.HeaderUserID)
	r.Header.Del(identity.HeaderUsername)
	r.Header.Del(identity.HeaderGatewaySecret)
}

func inject(c *gin.Context, sess *session.Session) {
	c.Set("user_id", sess.UserID)
	c.Request.Header.Set(identity.HeaderUserID, sess.UserID)
	c.Request.Header.Set(identity.HeaderUsername, sess.Username)
}

// SessionAuthMiddleware validates the session token (bearer header or cookie) and
// forwards the user as X-User-ID / X-Username.
func SessionAuthMiddleware(sessionMgr session.Manager, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		stripIdentity(c.Request)

		token := identity.Token(c.Request)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"detail": "Authentication credentials were not provided.",
			})
			return
		}

		sess, err := sessionMgr.Get(c.Request.Context(), token)
		if err != nil {
			logger.Warn("Invalid session",
				"error", err.Error(),
				"request_id", c.GetString("request_id"),
			)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"detail": "Invalid or expired session.",
			})
			return
		}

		inject(c, sess)
		c.Next()
	}
}

// OptionalSessionMiddleware forwards the user when a valid session is presented and
// otherwise lets the request through anonymously.
func OptionalSessionMiddleware(sessionMgr session.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		stripIdentity(c.Request)

		if token := identity.Token(c.Request); token != "" {
			if sess, err := sessionMgr.Get(c.Request.Context(), token); err == nil {
				inject(c, sess)
			}
		}
		c.Next()
	}
}
