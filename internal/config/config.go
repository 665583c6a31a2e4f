package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/sentinel-ops/lookup-broker/internal/retryer"
)

// Config represents the complete configuration for the lookup broker
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Auth      AuthConfig      `yaml:"auth"`
	Providers ProvidersConfig `yaml:"providers"`
	Broker    BrokerConfig    `yaml:"broker"`
	NATS      NATSConfig      `yaml:"nats"`
	Consul    ConsulConfig    `yaml:"consul"`
	LogLevel  string          `yaml:"log_level"`
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// DatabaseConfig represents database configuration. An empty URL selects
// the in-memory store.
type DatabaseConfig struct {
	URL            string                      `yaml:"url"`
	MaxConnections int                         `yaml:"max_connections"`
	MinConnections int                         `yaml:"min_connections"`
	IdleTimeout    time.Duration               `yaml:"idle_timeout"`
	MaxLifetime    time.Duration               `yaml:"max_lifetime"`
	Retry          retryer.DatabaseRetryConfig `yaml:"retry"`
}

// AuthConfig represents caller authentication. An empty JWTSecret disables
// bearer-token checks and leaves identity to the upstream session layer.
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
	AdminRole string `yaml:"admin_role"`
}

// ProvidersConfig holds external verification API settings
type ProvidersConfig struct {
	Timeout          time.Duration `yaml:"timeout"`
	PhonePrefillURL  string        `yaml:"phone_prefill_url"`
	PANVerifyURL     string        `yaml:"pan_verify_url"`
	RCVerifyURL      string        `yaml:"rc_verify_url"`
	MaxResponseBytes int64         `yaml:"max_response_bytes"`
}

// BrokerConfig tunes the lookup pipeline
type BrokerConfig struct {
	// AuditDenied writes a Failed query log entry for entitlement and
	// credit denials.
	AuditDenied bool `yaml:"audit_denied"`
	// PersistenceTimeout bounds the post-lookup writes once the provider
	// result is known.
	PersistenceTimeout time.Duration `yaml:"persistence_timeout"`
}

// NATSConfig represents NATS configuration. An empty address disables
// lookup event publishing.
type NATSConfig struct {
	Address       string `yaml:"address"`
	LookupSubject string `yaml:"lookup_subject"`
}

// ConsulConfig represents Consul configuration. An empty address disables
// service registration.
type ConsulConfig struct {
	Address             string        `yaml:"address"`
	ServiceName         string        `yaml:"service_name"`
	ServiceIDPrefix     string        `yaml:"service_id_prefix"`
	ServiceTags         []string      `yaml:"service_tags"`
	HealthCheckPath     string        `yaml:"health_check_path"`
	HealthCheckInterval time.Duration `yaml:"health_check_interval"`
	HealthCheckTimeout  time.Duration `yaml:"health_check_timeout"`
}

// DefaultConfig returns the configuration used when no file exists
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8085,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    60 * time.Second,
			IdleTimeout:     120 * time.Second,
			RequestTimeout:  60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Database: DatabaseConfig{
			MaxConnections: 10,
			MinConnections: 1,
			IdleTimeout:    5 * time.Minute,
			MaxLifetime:    time.Hour,
			Retry:          retryer.DefaultRetryConfig(),
		},
		Auth: AuthConfig{
			AdminRole: "admin",
		},
		Providers: ProvidersConfig{
			Timeout:          30 * time.Second,
			PhonePrefillURL:  "https://api.verification-provider.example/v2/phone-prefill",
			PANVerifyURL:     "https://api.verification-provider.example/v1/pan/verify",
			RCVerifyURL:      "https://api.verification-provider.example/v1/rc/verify",
			MaxResponseBytes: 1 << 20,
		},
		Broker: BrokerConfig{
			PersistenceTimeout: 10 * time.Second,
		},
		NATS: NATSConfig{
			LookupSubject: "lookup.completed",
		},
		Consul: ConsulConfig{
			ServiceName:         "lookup-broker",
			ServiceIDPrefix:     "lookup-broker-",
			ServiceTags:         []string{"lookup", "broker"},
			HealthCheckPath:     "/health",
			HealthCheckInterval: 10 * time.Second,
			HealthCheckTimeout:  2 * time.Second,
		},
		LogLevel: "info",
	}
}

// LoadConfig reads configuration from the given YAML file path.
// It creates a default config file if it doesn't exist.
func LoadConfig(path string) (*Config, error) {
	defaultConfig := DefaultConfig()

	_, err := os.Stat(path)
	if os.IsNotExist(err) {
		data, marshalErr := yaml.Marshal(defaultConfig)
		if marshalErr != nil {
			return nil, fmt.Errorf("failed to marshal default config: %w", marshalErr)
		}
		if mkdirErr := os.MkdirAll(filepath.Dir(path), 0755); mkdirErr != nil {
			return nil, fmt.Errorf("failed to create config directory: %w", mkdirErr)
		}
		if writeErr := os.WriteFile(path, data, 0644); writeErr != nil {
			return nil, fmt.Errorf("failed to write default config file: %w", writeErr)
		}
		return defaultConfig, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to check config file: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config data: %w", err)
	}

	applyDefaultsIfNotSet(&cfg, defaultConfig)

	return &cfg, nil
}

// applyDefaultsIfNotSet applies default values to cfg fields if they are zero-valued.
func applyDefaultsIfNotSet(cfg *Config, defaults *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = defaults.Server.Port
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = defaults.Server.ReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = defaults.Server.WriteTimeout
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = defaults.Server.IdleTimeout
	}
	if cfg.Server.RequestTimeout == 0 {
		cfg.Server.RequestTimeout = defaults.Server.RequestTimeout
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = defaults.Server.ShutdownTimeout
	}
	if cfg.Database.MaxConnections == 0 {
		cfg.Database.MaxConnections = defaults.Database.MaxConnections
	}
	if cfg.Database.MinConnections == 0 {
		cfg.Database.MinConnections = defaults.Database.MinConnections
	}
	if cfg.Database.IdleTimeout == 0 {
		cfg.Database.IdleTimeout = defaults.Database.IdleTimeout
	}
	if cfg.Database.MaxLifetime == 0 {
		cfg.Database.MaxLifetime = defaults.Database.MaxLifetime
	}
	if cfg.Database.Retry.MaxAttempts == 0 {
		cfg.Database.Retry = defaults.Database.Retry
	}
	if cfg.Auth.AdminRole == "" {
		cfg.Auth.AdminRole = defaults.Auth.AdminRole
	}
	if cfg.Providers.Timeout == 0 {
		cfg.Providers.Timeout = defaults.Providers.Timeout
	}
	if cfg.Providers.PhonePrefillURL == "" {
		cfg.Providers.PhonePrefillURL = defaults.Providers.PhonePrefillURL
	}
	if cfg.Providers.PANVerifyURL == "" {
		cfg.Providers.PANVerifyURL = defaults.Providers.PANVerifyURL
	}
	if cfg.Providers.RCVerifyURL == "" {
		cfg.Providers.RCVerifyURL = defaults.Providers.RCVerifyURL
	}
	if cfg.Providers.MaxResponseBytes == 0 {
		cfg.Providers.MaxResponseBytes = defaults.Providers.MaxResponseBytes
	}
	if cfg.Broker.PersistenceTimeout == 0 {
		cfg.Broker.PersistenceTimeout = defaults.Broker.PersistenceTimeout
	}
	if cfg.NATS.LookupSubject == "" {
		cfg.NATS.LookupSubject = defaults.NATS.LookupSubject
	}
	if cfg.Consul.ServiceName == "" {
		cfg.Consul.ServiceName = defaults.Consul.ServiceName
	}
	if cfg.Consul.ServiceIDPrefix == "" {
		cfg.Consul.ServiceIDPrefix = defaults.Consul.ServiceIDPrefix
	}
	if len(cfg.Consul.ServiceTags) == 0 {
		cfg.Consul.ServiceTags = defaults.Consul.ServiceTags
	}
	if cfg.Consul.HealthCheckPath == "" {
		cfg.Consul.HealthCheckPath = defaults.Consul.HealthCheckPath
	}
	if cfg.Consul.HealthCheckInterval == 0 {
		cfg.Consul.HealthCheckInterval = defaults.Consul.HealthCheckInterval
	}
	if cfg.Consul.HealthCheckTimeout == 0 {
		cfg.Consul.HealthCheckTimeout = defaults.Consul.HealthCheckTimeout
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = defaults.LogLevel
	}
}

// ApplySecrets overrides sensitive fields from the secret loader when present
func (c *Config) ApplySecrets(loader SecretLoader) {
	if v, err := loader.LoadSecret("database.url"); err == nil {
		c.Database.URL = v
	}
	if v, err := loader.LoadSecret("auth.jwt_secret"); err == nil {
		c.Auth.JWTSecret = v
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Providers.Timeout <= 0 {
		return fmt.Errorf("provider timeout must be positive")
	}
	if c.Providers.MaxResponseBytes <= 0 {
		return fmt.Errorf("provider max response bytes must be positive")
	}
	if c.Database.MinConnections > c.Database.MaxConnections {
		return fmt.Errorf("database min connections (%d) exceeds max connections (%d)",
			c.Database.MinConnections, c.Database.MaxConnections)
	}
	if c.Auth.JWTSecret != "" && len(c.Auth.JWTSecret) < 32 {
		return fmt.Errorf("jwt secret must be at least 32 characters")
	}
	return nil
}

// GenerateServiceID builds a unique Consul service ID from a prefix
func GenerateServiceID(prefix string) string {
	return prefix + uuid.New().String()
}
