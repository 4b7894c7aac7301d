// Package discovery registers services with Consul and resolves peers.
package discovery

import (
	"fmt"
	"log"
	"net"

	"github.com/hashicorp/consul/api"
)

// Client wraps a Consul agent connection.
type Client struct {
	consul *api.Client
}

// Service describes one registration.
type Service struct {
	Name string
	ID   string
	Port int
	Tags []string
}

// New connects to the Consul agent at addr (host:port) and verifies the
// connection before returning.
func New(addr string) (*Client, error) {
	cfg := api.DefaultConfig()
	cfg.Address = addr

	consul, err := api.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("consul client: %w", err)
	}
	if _, err := consul.Agent().Self(); err != nil {
		return nil, fmt.Errorf("consul agent at %s unreachable: %w", addr, err)
	}
	log.Printf("discovery: connected to consul at %s", addr)
	return &Client{consul: consul}, nil
}

// Register announces a service with an HTTP health check on /health.
func (c *Client) Register(svc Service) error {
	host := outboundIP()
	reg := &api.AgentServiceRegistration{
		ID:      svc.ID,
		Name:    svc.Name,
		Port:    svc.Port,
		Address: host,
		Tags:    svc.Tags,
		Check: &api.AgentServiceCheck{
			HTTP:                           fmt.Sprintf("http://%s:%d/health", host, svc.Port),
			Interval:                       "10s",
			Timeout:                        "5s",
			DeregisterCriticalServiceAfter: "30s",
		},
	}
	if err := c.consul.Agent().ServiceRegister(reg); err != nil {
		return fmt.Errorf("register %s: %w", svc.Name, err)
	}
	log.Printf("discovery: registered %s (%s) at %s:%d", svc.Name, svc.ID, host, svc.Port)
	return nil
}

// Deregister removes a service registration, typically on shutdown.
func (c *Client) Deregister(serviceID string) error {
	if err := c.consul.Agent().ServiceDeregister(serviceID); err != nil {
		return fmt.Errorf("deregister %s: %w", serviceID, err)
	}
	log.Printf("discovery: deregistered %s", serviceID)
	return nil
}

// ServiceURL resolves a healthy instance of the named service to a base URL.
func (c *Client) ServiceURL(name string) (string, error) {
	entries, _, err := c.consul.Health().Service(name, "", true, nil)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", name, err)
	}
	if len(entries) == 0 {
		return "", fmt.Errorf("no healthy instances of %s", name)
	}
	svc := entries[0].Service
	addr := svc.Address
	if addr == "" {
		addr = "localhost"
	}
	return fmt.Sprintf("http://%s:%d", addr, svc.Port), nil
}

// outboundIP reports the address peers should dial us on.
func outboundIP() string {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "127.0.0.1"
	}
	defer conn.Close()
	return conn.LocalAddr().(*net.UDPAddr).IP.String()
}
