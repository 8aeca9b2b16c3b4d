package gateway

import (
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"

	"studysphere/internal/apierr"
	"studysphere/internal/consul"
	"studysphere/internal/identity"

	"github.com/gin-gonic/gin"
)

// ProxyHandler handles reverse proxy requests to backend services
type ProxyHandler struct {
	discovery consul.ServiceDiscovery
	secret    string
	logger    *slog.Logger
}

// NewProxyHandler creates a new proxy handler
// secret is forwarded as X-Gateway-Secret so the API can trust the identity headers.
func NewProxyHandler(discovery consul.ServiceDiscovery, secret string, logger *slog.Logger) *ProxyHandler {
	return &ProxyHandler{discovery: discovery, secret: secret, logger: logger}
}

// Proxy forwards the request unchanged to one healthy instance of serviceName.
func (h *ProxyHandler) Proxy(serviceName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		instance, err := h.discovery.DiscoverOne(serviceName)
		if err != nil {
			h.logger.Error("Failed to discover service", "service", serviceName, "error", err)
			apierr.Abort(c, http.StatusServiceUnavailable, "Service temporarily unavailable")
			return
		}

		targetURL, err := url.Parse(instance.URL())
		if err != nil {
			h.logger.Error("Failed to parse target URL", "target", instance.URL(), "error", err)
			apierr.Abort(c, http.StatusInternalServerError, "Something went wrong")
			return
		}

		c.Set("upstream_service", serviceName)

		proxy := &httputil.ReverseProxy{
			Rewrite: func(pr *httputil.ProxyRequest) {
				pr.SetURL(targetURL)
				pr.SetXForwarded()
				pr.Out.Host = targetURL.Host
				pr.Out.Header.Del(identity.HeaderGatewaySecret)
				if h.secret != "" {
					pr.Out.Header.Set(identity.HeaderGatewaySecret, h.secret)
				}
			},
			ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
				h.logger.Error("Proxy error", "service", serviceName, "path", r.URL.Path, "error", err)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusBadGateway)
				_, _ = w.Write([]byte(`{"detail":"Bad gateway"}`))
			},
		}

		h.logger.Debug("Proxying request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"target", targetURL.Host)

		proxy.ServeHTTP(c.Writer, c.Request)
	}
}

// Health is the gateway health check handler
func (h *ProxyHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "studysphere-gateway",
	})
}
