package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	// Server config
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)

	// Platform config
	assert.Equal(t, "local", cfg.Platform.ID)
	assert.Equal(t, EnvironmentMemory, cfg.Platform.ContainerEnvironment)

	// Persistence config
	assert.Equal(t, SessionPersist, cfg.Persistence.SessionPolicy)
	assert.Equal(t, 60*time.Second, cfg.Persistence.SnapshotInterval)

	// Rate limit config
	assert.Equal(t, 100, cfg.RateLimit.RequestsPerSecond)
	assert.Equal(t, 200, cfg.RateLimit.Burst)
	assert.True(t, cfg.RateLimit.Enabled)

	assert.NoError(t, cfg.Validate())
}

func TestLoadMatchesDefault(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	def := Default()
	assert.Equal(t, def.Persistence, cfg.Persistence)
	assert.Equal(t, def.Backend, cfg.Backend)
	assert.Equal(t, def.RateLimit, cfg.RateLimit)
}

func TestLoadWithEnvironmentVariables(t *testing.T) {
	envVars := map[string]string{
		"PORT":                  "9000",
		"HOST":                  "127.0.0.1",
		"PLATFORM_ID":           "edge-1",
		"CONTAINER_ENVIRONMENT": " Docker ",
		"SESSION_POLICY":        "DISCARD",
		"SNAPSHOT_INTERVAL":     "5s",
		"STATE_DIR":             "/var/lib/platform",
		"PORT_RANGE_START":      "10000",
		"PORT_RANGE_END":        "10010",
		"ENABLE_AUTH":           "true",
		"PLATFORM_ADMIN_USER":   "root",
		"LOG_LEVEL":             "debug",
		"LOG_DEV":               "true",
		"RATE_LIMIT_ENABLED":    "false",
	}
	for key, value := range envVars {
		t.Setenv(key, value)
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9000", cfg.Address())
	assert.Equal(t, "edge-1", cfg.Platform.ID)
	assert.Equal(t, EnvironmentDocker, cfg.Platform.ContainerEnvironment)
	assert.Equal(t, SessionDiscard, cfg.Persistence.SessionPolicy)
	assert.Equal(t, 5*time.Second, cfg.Persistence.SnapshotInterval)
	assert.Equal(t, "/var/lib/platform", cfg.Persistence.StateDir)
	assert.Equal(t, 10000, cfg.Backend.PortRangeStart)
	assert.Equal(t, 10010, cfg.Backend.PortRangeEnd)
	assert.True(t, cfg.Auth.Enabled)
	assert.Equal(t, "root", cfg.Auth.AdminUser)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Logging.Development)
	assert.False(t, cfg.RateLimit.Enabled)

	// Auth without an admin password is rejected
	assert.Error(t, cfg.Validate())
}

func TestLoadInvalidValue(t *testing.T) {
	t.Setenv("SNAPSHOT_INTERVAL", "soon")

	_, err := Load()
	assert.Error(t, err)

	cfg := LoadOrDefault()
	assert.Equal(t, 60*time.Second, cfg.Persistence.SnapshotInterval)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "docker backend",
			mutate: func(c *Config) { c.Platform.ContainerEnvironment = EnvironmentDocker },
		},
		{
			name:    "kubernetes backend",
			mutate:  func(c *Config) { c.Platform.ContainerEnvironment = EnvironmentKubernetes },
			wantErr: "kubernetes",
		},
		{
			name:    "unknown backend",
			mutate:  func(c *Config) { c.Platform.ContainerEnvironment = "podman" },
			wantErr: "podman",
		},
		{
			name:    "unknown session policy",
			mutate:  func(c *Config) { c.Persistence.SessionPolicy = "sometimes" },
			wantErr: "SESSION_POLICY",
		},
		{
			name:    "inverted port range",
			mutate:  func(c *Config) { c.Backend.PortRangeStart, c.Backend.PortRangeEnd = 9000, 8000 },
			wantErr: "port range",
		},
		{
			name:    "zero snapshot interval",
			mutate:  func(c *Config) { c.Persistence.SnapshotInterval = 0 },
			wantErr: "SNAPSHOT_INTERVAL",
		},
		{
			name: "auth with admin password",
			mutate: func(c *Config) {
				c.Auth.Enabled = true
				c.Auth.AdminPassword = "secret"
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
