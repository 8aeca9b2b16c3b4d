package consul

import (
	"fmt"
	"net"
	"strconv"

	consulapi "github.com/hashicorp/consul/api"
)

// ServiceConfig contains configuration for service registration
type ServiceConfig struct {
	ID      string
	Name    string
	Address string
	Port    int
	Tags    []string
	Check   *HealthCheck
}

// HealthCheck defines health check configuration
type HealthCheck struct {
	HTTP                           string
	Interval                       string
	Timeout                        string
	DeregisterCriticalServiceAfter string
}

// ServiceRegistrar defines the interface for service registration
type ServiceRegistrar interface {
	Register(cfg *ServiceConfig) error
	Deregister(serviceID string) error
}

// HTTPService describes a service that exposes GET /health on address:port.
func HTTPService(name, address string, port int, tags ...string) *ServiceConfig {
	hostPort := net.JoinHostPort(address, strconv.Itoa(port))
	return &ServiceConfig{
		ID:      fmt.Sprintf("%s-%s", name, hostPort),
		Name:    name,
		Address: address,
		Port:    port,
		Tags:    tags,
		Check: &HealthCheck{
			HTTP:                           "http://" + hostPort + "/health",
			Interval:                       "10s",
			Timeout:                        "3s",
			DeregisterCriticalServiceAfter: "1m",
		},
	}
}

func (cfg *ServiceConfig) registration() *consulapi.AgentServiceRegistration {
	reg := &consulapi.AgentServiceRegistration{
		ID:      cfg.ID,
		Name:    cfg.Name,
		Address: cfg.Address,
		Port:    cfg.Port,
		Tags:    cfg.Tags,
	}
	if cfg.Check != nil {
		reg.Check = &consulapi.AgentServiceCheck{
			HTTP:                           cfg.Check.HTTP,
			Interval:                       cfg.Check.Interval,
			Timeout:                        cfg.Check.Timeout,
			DeregisterCriticalServiceAfter: cfg.Check.DeregisterCriticalServiceAfter,
		}
	}
	return reg
}

// Register registers a service with Consul
func (c *Client) Register(cfg *ServiceConfig) error {
	if err := c.api.Agent().ServiceRegister(cfg.registration()); err != nil {
		return fmt.Errorf("failed to register service: %w", err)
	}
	return nil
}

// Deregister removes a service from Consul
func (c *Client) Deregister(serviceID string) error {
	if err := c.api.Agent().ServiceDeregister(serviceID); err != nil {
		return fmt.Errorf("failed to deregister service: %w", err)
	}
	return nil
}
