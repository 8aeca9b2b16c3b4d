package consul

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync/atomic"
)

// ErrNoInstances is returned when a service has no healthy instance.
var ErrNoInstances = errors.New("no healthy instances")

// ServiceInstance represents a discovered service instance
type ServiceInstance struct {
	ID      string
	Name    string
	Address string
	Port    int
	Tags    []string
}

// URL returns the instance's base HTTP URL.
func (s *ServiceInstance) URL() string {
	return "http://" + net.JoinHostPort(s.Address, strconv.Itoa(s.Port))
}

// ServiceDiscovery defines the interface for service discovery
type ServiceDiscovery interface {
	DiscoverOne(serviceName string) (*ServiceInstance, error)
}

var next atomic.Uint64

func pick(instances []*ServiceInstance) *ServiceInstance {
	return instances[next.Add(1)%uint64(len(instances))]
}

// Discover retrieves all healthy instances of a service
func (c *Client) Discover(serviceName string) ([]*ServiceInstance, error) {
	services, _, err := c.api.Health().Service(serviceName, "", true, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to discover service %s: %w", serviceName, err)
	}
	if len(services) == 0 {
		return nil, fmt.Errorf("%w for service %s", ErrNoInstances, serviceName)
	}

	instances := make([]*ServiceInstance, 0, len(services))
	for _, entry := range services {
		instance := &ServiceInstance{
			ID:      entry.Service.ID,
			Name:    entry.Service.Service,
			Address: entry.Service.Address,
			Port:    entry.Service.Port,
			Tags:    entry.Service.Tags,
		}
		if instance.Address == "" {
			instance.Address = entry.Node.Address
		}
		instances = append(instances, instance)
	}
	return instances, nil
}

// DiscoverOne picks one healthy instance, round robin
func (c *Client) DiscoverOne(serviceName string) (*ServiceInstance, error) {
	instances, err := c.Discover(serviceName)
	if err != nil {
		return nil, err
	}
	return pick(instances), nil
}

// Static is a fixed ServiceDiscovery, used when Consul is not available.
type Static map[string][]*ServiceInstance

// DiscoverOne implements ServiceDiscovery
func (s Static) DiscoverOne(serviceName string) (*ServiceInstance, error) {
	instances := s[serviceName]
	if len(instances) == 0 {
		return nil, fmt.Errorf("%w for service %s", ErrNoInstances, serviceName)
	}
	return pick(instances), nil
}

// StaticAddr returns a Static discovery that resolves name to the single host:port.
func StaticAddr(name, hostPort string) (Static, error) {
	host, portStr, err := net.SplitHostPort(hostPort)
	if err != nil {
		return nil, fmt.Errorf("invalid address %q: %w", hostPort, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("invalid port in %q: %w", hostPort, err)
	}
	return Static{name: {{ID: name + "-static", Name: name, Address: host, Port: port}}}, nil
}
