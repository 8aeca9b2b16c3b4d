// Package identity resolves the calling user for API handlers.
//
// Behind the gateway the user arrives as X-User-ID / X-Username headers set after session
// validation, together with the shared X-Gateway-Secret. When the API is reached directly,
// the session cookie or bearer token is resolved against the session manager instead.
package identity

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"studysphere/internal/session"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	HeaderUserID   = "X-User-ID"
	HeaderUsername = "X-Username"
	// HeaderGatewaySecret proves a request was forwarded by the gateway.
	HeaderGatewaySecret = "X-Gateway-Secret"

	// CookieName is the login session cookie set by the auth handler.
	CookieName = "session_id"

	userIDKey   = "user_id"
	usernameKey = "username"
)

// Options configures Middleware.
type Options struct {
	// TrustHeaders accepts X-User-ID from the gateway.
	TrustHeaders bool
	// GatewaySecret, when set, must match X-Gateway-Secret before headers are trusted.
	GatewaySecret string
	// Sessions resolves cookies and bearer tokens. Nil disables that path.
	Sessions session.Manager
}

// Middleware requires an authenticated user and stores it in the gin context.
func Middleware(opts Options) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !resolve(c, opts) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"detail": "Authentication credentials were not provided.",
			})
			return
		}
		c.Next()
	}
}

// OptionalMiddleware stores the user when one can be resolved but never rejects.
func OptionalMiddleware(opts Options) gin.HandlerFunc {
	return func(c *gin.Context) {
		resolve(c, opts)
		c.Next()
	}
}

func resolve(c *gin.Context, opts Options) bool {
	if opts.TrustHeaders && fromGateway(c.Request, opts.GatewaySecret) {
		if raw := c.GetHeader(HeaderUserID); raw != "" {
			id, err := uuid.Parse(raw)
			if err != nil {
				return false
			}
			c.Set(userIDKey, id.String())
			c.Set(usernameKey, c.GetHeader(HeaderUsername))
			return true
		}
	}

	if opts.Sessions == nil {
		return false
	}
	token := Token(c.Request)
	if token == "" {
		return false
	}
	s, err := opts.Sessions.Get(c.Request.Context(), token)
	if err != nil {
		return false
	}
	c.Set(userIDKey, s.UserID)
	c.Set(usernameKey, s.Username)
	return true
}

func fromGateway(r *http.Request, secret string) bool {
	if secret == "" {
		return true
	}
	got := r.Header.Get(HeaderGatewaySecret)
	return subtle.ConstantTimeCompare([]byte(got), []byte(secret)) == 1
}

// Token extracts a session id from an Authorization bearer header or the session cookie.
func Token(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		if token, ok := strings.CutPrefix(auth, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	if cookie, err := r.Cookie(CookieName); err == nil {
		return cookie.Value
	}
	return ""
}

// UserID returns the authenticated user id set by Middleware.
func UserID(c *gin.Context) (string, bool) {
	v, ok := c.Get(userIDKey)
	if !ok {
		return "", false
	}
	id, ok := v.(string)
	return id, ok && id != ""
}

// Username returns the username set by Middleware, if any.
func Username(c *gin.Context) string {
	return c.GetString(usernameKey)
}
