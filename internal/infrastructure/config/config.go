package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Container environments
const (
	EnvironmentMemory     = "memory"
	EnvironmentDocker     = "docker"
	EnvironmentKubernetes = "kubernetes"
)

// Session policies
const (
	SessionPersist = "persist"
	SessionDiscard = "discard"
)

// Config holds all application configuration.
type Config struct {
	Server      ServerConfig
	Platform    PlatformConfig
	Persistence PersistenceConfig
	Backend     BackendConfig
	Auth        AuthConfig
	Logging     LogConfig
	RateLimit   RateLimitConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8080"`
	Host string `envconfig:"HOST" default:"0.0.0.0"`
}

// PlatformConfig describes this platform instance.
type PlatformConfig struct {
	ID                   string `envconfig:"PLATFORM_ID" default:"local"`
	PublicURL            string `envconfig:"PUBLIC_URL"`
	ContainerEnvironment string `envconfig:"CONTAINER_ENVIRONMENT" default:"memory"`
	PlatformEnvironment  string `envconfig:"PLATFORM_ENVIRONMENT" default:"development"`
}

// PersistenceConfig holds session snapshot configuration.
type PersistenceConfig struct {
	SessionPolicy    string        `envconfig:"SESSION_POLICY" default:"persist"`
	StateDir         string        `envconfig:"STATE_DIR" default:"."`
	SnapshotInterval time.Duration `envconfig:"SNAPSHOT_INTERVAL" default:"60s"`
}

// BackendConfig holds container backend configuration.
type BackendConfig struct {
	Timeout        time.Duration `envconfig:"BACKEND_TIMEOUT" default:"10s"`
	DockerNetwork  string        `envconfig:"DOCKER_NETWORK" default:"agentplatform"`
	DockerHost     string        `envconfig:"DOCKER_PUBLIC_HOST" default:"localhost"`
	PortRangeStart int           `envconfig:"PORT_RANGE_START" default:"8082"`
	PortRangeEnd   int           `envconfig:"PORT_RANGE_END" default:"9082"`
	SchemaDir      string        `envconfig:"SCHEMA_DIR"`
}

// AuthConfig holds authentication configuration.
type AuthConfig struct {
	Enabled       bool   `envconfig:"ENABLE_AUTH" default:"false"`
	AdminUser     string `envconfig:"PLATFORM_ADMIN_USER" default:"admin"`
	AdminPassword string `envconfig:"PLATFORM_ADMIN_PASSWORD"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"100"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"200"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	cfg.normalize()
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "8080",
			Host: "0.0.0.0",
		},
		Platform: PlatformConfig{
			ID:                   "local",
			ContainerEnvironment: EnvironmentMemory,
			PlatformEnvironment:  "development",
		},
		Persistence: PersistenceConfig{
			SessionPolicy:    SessionPersist,
			StateDir:         ".",
			SnapshotInterval: 60 * time.Second,
		},
		Backend: BackendConfig{
			Timeout:        10 * time.Second,
			DockerNetwork:  "agentplatform",
			DockerHost:     "localhost",
			PortRangeStart: 8082,
			PortRangeEnd:   9082,
		},
		Auth: AuthConfig{
			AdminUser: "admin",
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           true,
		},
	}
}

// Validate rejects settings the platform cannot run with.
func (c *Config) Validate() error {
	var errs []error

	switch c.Platform.ContainerEnvironment {
	case EnvironmentMemory, EnvironmentDocker:
	case EnvironmentKubernetes:
		errs = append(errs, errors.New("CONTAINER_ENVIRONMENT=kubernetes is not supported by this build"))
	default:
		errs = append(errs, fmt.Errorf("unknown CONTAINER_ENVIRONMENT %q", c.Platform.ContainerEnvironment))
	}

	switch c.Persistence.SessionPolicy {
	case SessionPersist, SessionDiscard:
	default:
		errs = append(errs, fmt.Errorf("unknown SESSION_POLICY %q", c.Persistence.SessionPolicy))
	}

	if c.Persistence.SnapshotInterval <= 0 {
		errs = append(errs, errors.New("SNAPSHOT_INTERVAL must be positive"))
	}
	if c.Backend.PortRangeStart <= 0 || c.Backend.PortRangeEnd > 65535 || c.Backend.PortRangeStart > c.Backend.PortRangeEnd {
		errs = append(errs, fmt.Errorf("invalid port range %d-%d", c.Backend.PortRangeStart, c.Backend.PortRangeEnd))
	}
	if c.Auth.Enabled && c.Auth.AdminPassword == "" {
		errs = append(errs, errors.New("ENABLE_AUTH requires PLATFORM_ADMIN_PASSWORD"))
	}

	return errors.Join(errs...)
}

// Address is the HTTP listen address.
func (c *Config) Address() string {
	return c.Server.Host + ":" + c.Server.Port
}

func (c *Config) normalize() {
	c.Platform.ContainerEnvironment = strings.ToLower(strings.TrimSpace(c.Platform.ContainerEnvironment))
	c.Persistence.SessionPolicy = strings.ToLower(strings.TrimSpace(c.Persistence.SessionPolicy))
}
