package consul

import (
	"fmt"

	consulapi "github.com/hashicorp/consul/api"
	"go.uber.org/zap"

	"github.com/sentinel-ops/lookup-broker/internal/config"
)

// Connect establishes a connection to the Consul agent.
func Connect(consulAddress string, logger *zap.Logger) (*consulapi.Client, error) {
	logger.Info("Attempting to connect to Consul agent", zap.String("address", consulAddress))
	cfg := consulapi.DefaultConfig()
	cfg.Address = consulAddress
	client, err := consulapi.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create consul client: %w", err)
	}
	if _, err := client.Agent().Self(); err != nil {
		return nil, fmt.Errorf("failed to connect/ping consul agent: %w", err)
	}
	logger.Info("Successfully connected to Consul agent", zap.String("address", consulAddress))
	return client, nil
}

// Registration builds the agent registration for this instance, with an
// HTTP health check against the broker's health endpoint.
func Registration(cfg config.ConsulConfig, port int, serviceID string) *consulapi.AgentServiceRegistration {
	return &consulapi.AgentServiceRegistration{
		ID:   serviceID,
		Name: cfg.ServiceName,
		Port: port,
		Tags: cfg.ServiceTags,
		Check: &consulapi.AgentServiceCheck{
			HTTP:                           fmt.Sprintf("http://127.0.0.1:%d%s", port, cfg.HealthCheckPath),
			Interval:                       cfg.HealthCheckInterval.String(),
			Timeout:                        cfg.HealthCheckTimeout.String(),
			DeregisterCriticalServiceAfter: "1m",
		},
	}
}

// RegisterService registers this service instance with Consul.
func RegisterService(client *consulapi.Client, cfg config.ConsulConfig, port int, serviceID string, logger *zap.Logger) error {
	if err := client.Agent().ServiceRegister(Registration(cfg, port, serviceID)); err != nil {
		logger.Error("Failed to register service with Consul", zap.Error(err))
		return fmt.Errorf("failed to register service '%s' with Consul: %w", cfg.ServiceName, err)
	}
	logger.Info("Successfully registered service with Consul",
		zap.String("service_name", cfg.ServiceName),
		zap.String("service_id", serviceID))
	return nil
}

// DeregisterService removes this instance from Consul during shutdown.
func DeregisterService(client *consulapi.Client, serviceID string, logger *zap.Logger) {
	if err := client.Agent().ServiceDeregister(serviceID); err != nil {
		logger.Error("Failed to deregister service from Consul", zap.String("service_id", serviceID), zap.Error(err))
		return
	}
	logger.Info("Successfully deregistered service from Consul", zap.String("service_id", serviceID))
}
