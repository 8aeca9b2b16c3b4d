package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"

	"studysphere/internal/config"
	"studysphere/internal/consul"
	"studysphere/internal/identity"
	"studysphere/internal/logger"
	"studysphere/internal/session"

	"github.com/gin-gonic/gin"
)

const testUserID = "11111111-1111-1111-1111-111111111111"

func newSessions(t *testing.T) (session.Manager, string) {
	t.Helper()
	mgr := session.NewManager(session.NewMemoryStore())
	token, err := mgr.Create(context.Background(), testUserID, "alice", time.Hour)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return mgr, token
}

func echoIdentity(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"header_user":     c.Request.Header.Get(identity.HeaderUserID),
		"header_username": c.Request.Header.Get(identity.HeaderUsername),
	})
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	return body
}

func TestSessionAuthMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mgr, token := newSessions(t)

	r := gin.New()
	r.Use(SessionAuthMiddleware(mgr, logger.Discard()))
	r.GET("/test", echoIdentity)

	tests := []struct {
		name   string
		setup  func(*http.Request)
		status int
	}{
		{"bearer", func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) }, http.StatusOK},
		{"cookie", func(r *http.Request) { r.AddCookie(&http.Cookie{Name: identity.CookieName, Value: token}) }, http.StatusOK},
		{"missing", func(*http.Request) {}, http.StatusUnauthorized},
		{"invalid", func(r *http.Request) { r.Header.Set("Authorization", "Bearer nope") }, http.StatusUnauthorized},
		{"forged header only", func(r *http.Request) { r.Header.Set(identity.HeaderUserID, testUserID) }, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			tt.setup(req)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tt.status {
				t.Fatalf("Expected status %d, got %d", tt.status, w.Code)
			}
			if tt.status != http.StatusOK {
				return
			}
			body := decode(t, w)
			if body["header_user"] != testUserID || body["header_username"] != "alice" {
				t.Errorf("unexpected injected identity %v", body)
			}
		})
	}
}

func TestSessionAuthMiddleware_ReplacesForgedHeader(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mgr, token := newSessions(t)

	r := gin.New()
	r.Use(SessionAuthMiddleware(mgr, logger.Discard()))
	r.GET("/test", echoIdentity)

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set(identity.HeaderUserID, "99999999-9999-9999-9999-999999999999")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if body := decode(t, w); body["header_user"] != testUserID {
		t.Errorf("forged X-User-ID was forwarded: %v", body)
	}
}

func TestOptionalSessionMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mgr, _ := newSessions(t)

	r := gin.New()
	r.Use(OptionalSessionMiddleware(mgr))
	r.GET("/test", echoIdentity)

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set(identity.HeaderUserID, testUserID)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	if body := decode(t, w); body["header_user"] != "" {
		t.Errorf("anonymous request must not carry an identity, got %v", body)
	}
}

func TestSetupRouter_ProxiesToUpstream(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mgr, token := newSessions(t)

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{
			"path":    r.URL.Path,
			"user_id": r.Header.Get(identity.HeaderUserID),
			"secret":  r.Header.Get(identity.HeaderGatewaySecret),
		})
	}))
	defer upstream.Close()

	u, _ := url.Parse(upstream.URL)
	port, _ := strconv.Atoi(u.Port())
	discovery := consul.Static{"studysphere-api": {{Name: "studysphere-api", Address: u.Hostname(), Port: port}}}

	cfg := &config.GatewayConfig{UpstreamName: "studysphere-api", AllowedOrigins: []string{"http://localhost:3000"}, Secret: "s3cret"}
	r := SetupRouter(cfg, discovery, mgr, logger.Discard())

	req := httptest.NewRequest(http.MethodGet, "/api/sessions/7", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set(identity.HeaderGatewaySecret, "forged")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	body := decode(t, w)
	if body["path"] != "/api/sessions/7" || body["user_id"] != testUserID {
		t.Errorf("unexpected upstream view %v", body)
	}
	if body["secret"] != "s3cret" {
		t.Errorf("expected the gateway secret upstream, got %q", body["secret"])
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/sessions", nil))
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401 without session, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/auth/login", nil))
	if w.Code != http.StatusOK {
		t.Errorf("auth routes must be public, got %d", w.Code)
	}
}

func TestSetupRouter_NoUpstream(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mgr, token := newSessions(t)
	cfg := &config.GatewayConfig{UpstreamName: "studysphere-api", AllowedOrigins: []string{"http://localhost:3000"}}
	r := SetupRouter(cfg, consul.Static{}, mgr, logger.Discard())

	req := httptest.NewRequest(http.MethodGet, "/api/dashboard", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("Expected status 503, got %d", w.Code)
	}
}
