package identity

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"studysphere/internal/session"

	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newRouter(opts Options) *gin.Engine {
	r := gin.New()
	r.GET("/me", Middleware(opts), func(c *gin.Context) {
		id, _ := UserID(c)
		c.JSON(http.StatusOK, gin.H{"id": id, "username": Username(c)})
	})
	return r
}

func TestMiddleware_TrustedHeader(t *testing.T) {
	r := newRouter(Options{TrustHeaders: true})

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set(HeaderUserID, "0b9c5f2e-4d7a-4b8e-9a51-3f8f1e2a6c11")
	req.Header.Set(HeaderUsername, "ada")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
}

func TestMiddleware_RejectsMalformedHeader(t *testing.T) {
	r := newRouter(Options{TrustHeaders: true})

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set(HeaderUserID, "not-a-uuid")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
}

func TestMiddleware_IgnoresHeaderWhenUntrusted(t *testing.T) {
	r := newRouter(Options{})

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set(HeaderUserID, "0b9c5f2e-4d7a-4b8e-9a51-3f8f1e2a6c11")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
}

func TestMiddleware_GatewaySecret(t *testing.T) {
	r := newRouter(Options{TrustHeaders: true, GatewaySecret: "s3cret"})

	tests := []struct {
		name   string
		secret string
		want   int
	}{
		{"matching secret", "s3cret", http.StatusOK},
		{"wrong secret", "s3cre", http.StatusUnauthorized},
		{"no secret", "", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			req.Header.Set(HeaderUserID, "0b9c5f2e-4d7a-4b8e-9a51-3f8f1e2a6c11")
			if tt.secret != "" {
				req.Header.Set(HeaderGatewaySecret, tt.secret)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			if w.Code != tt.want {
				t.Errorf("expected %d, got %d", tt.want, w.Code)
			}
		})
	}
}

func TestMiddleware_SessionTokens(t *testing.T) {
	mgr := session.NewManager(session.NewMemoryStore())
	sid, err := mgr.Create(context.Background(), "0b9c5f2e-4d7a-4b8e-9a51-3f8f1e2a6c11", "ada", time.Hour)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	r := newRouter(Options{Sessions: mgr})

	tests := []struct {
		name  string
		setup func(*http.Request)
		want  int
	}{
		{"bearer", func(req *http.Request) { req.Header.Set("Authorization", "Bearer "+sid) }, http.StatusOK},
		{"cookie", func(req *http.Request) { req.AddCookie(&http.Cookie{Name: CookieName, Value: sid}) }, http.StatusOK},
		{"unknown token", func(req *http.Request) { req.Header.Set("Authorization", "Bearer nope") }, http.StatusUnauthorized},
		{"nothing", func(*http.Request) {}, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			tt.setup(req)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			if w.Code != tt.want {
				t.Errorf("expected %d, got %d", tt.want, w.Code)
			}
		})
	}
}
