// Package consul registers StudySphere services with HashiCorp Consul and discovers
// healthy instances of them.
package consul

import (
	"studysphere/internal/config"

	consulapi "github.com/hashicorp/consul/api"
)

// Client wraps the Consul API client
type Client struct {
	api *consulapi.Client
}

// NewClient creates a Consul client for the configured agent
func NewClient(cfg config.ConsulConfig) (*Client, error) {
	apiConfig := consulapi.DefaultConfig()
	apiConfig.Address = cfg.Addr
	if cfg.Token != "" {
		apiConfig.Token = cfg.Token
	}

	client, err := consulapi.NewClient(apiConfig)
	if err != nil {
		return nil, err
	}
	return &Client{api: client}, nil
}

// API returns the underlying Consul API client
func (c *Client) API() *consulapi.Client {
	return c.api
}
