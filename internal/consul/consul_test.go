package consul

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"studysphere/internal/config"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewClient(config.ConsulConfig{Addr: strings.TrimPrefix(srv.URL, "http://")})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c
}

func TestDiscover_FallsBackToNodeAddress(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/health/service/studysphere-api" {
			http.NotFound(w, r)
			return
		}
		if r.URL.Query().Get("passing") == "" {
			t.Errorf("expected passing filter, got %q", r.URL.RawQuery)
		}
		_ = json.NewEncoder(w).Encode([]map[string]any{
			{
				"Node":    map[string]any{"Address": "10.0.0.5"},
				"Service": map[string]any{"ID": "api-1", "Service": "studysphere-api", "Port": 8082},
			},
		})
	})

	instances, err := c.Discover("studysphere-api")
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(instances) != 1 || instances[0].URL() != "http://10.0.0.5:8082" {
		t.Fatalf("unexpected instances %+v", instances)
	}
}

func TestDiscover_NoInstances(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("[]"))
	})

	if _, err := c.DiscoverOne("studysphere-api"); !errors.Is(err, ErrNoInstances) {
		t.Fatalf("expected ErrNoInstances, got %v", err)
	}
}

func TestRegister_SendsHealthCheck(t *testing.T) {
	var got map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/agent/service/register" {
			http.NotFound(w, r)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
	})

	if err := c.Register(HTTPService("studysphere-api", "api", 8082, "api")); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if got["ID"] != "studysphere-api-api:8082" {
		t.Errorf("unexpected id %v", got["ID"])
	}
	check, _ := got["Check"].(map[string]any)
	if check["HTTP"] != "http://api:8082/health" {
		t.Errorf("unexpected check %v", check)
	}
}

func TestStatic(t *testing.T) {
	s := Static{"studysphere-api": {{Name: "studysphere-api", Address: "localhost", Port: 8082}}}

	inst, err := s.DiscoverOne("studysphere-api")
	if err != nil || inst.URL() != "http://localhost:8082" {
		t.Fatalf("unexpected %v %v", inst, err)
	}
	if _, err := s.DiscoverOne("missing"); !errors.Is(err, ErrNoInstances) {
		t.Fatalf("expected ErrNoInstances, got %v", err)
	}
}

func TestStaticAddr(t *testing.T) {
	s, err := StaticAddr("studysphere-api", "api:8082")
	if err != nil {
		t.Fatalf("StaticAddr: %v", err)
	}
	inst, err := s.DiscoverOne("studysphere-api")
	if err != nil || inst.URL() != "http://api:8082" {
		t.Fatalf("unexpected %v %v", inst, err)
	}

	for _, bad := range []string{"api", "api:http"} {
		if _, err := StaticAddr("studysphere-api", bad); err == nil {
			t.Errorf("StaticAddr(%q) should fail", bad)
		}
	}
}
