// Package config provides 12-factor configuration management for the platform.
//
// Configuration is loaded from environment variables with sensible defaults.
// CLI flags can override environment variables for development flexibility.
//
// Configuration Sections:
//   - Server: HTTP server settings (port, host)
//   - Platform: identity and environment of this platform
//   - Persistence: session policy, snapshot directory and interval
//   - Backend: container backend, port range and schema directory
//   - Auth: bearer-token authentication and the bootstrap admin
//   - Logging: Log level and output format
//   - RateLimit: Per-IP rate limiting configuration
//
// Example Usage:
//
//	cfg := config.LoadOrDefault()
//	if err := cfg.Validate(); err != nil {
//		log.Fatal(err)
//	}
//
// Environment Variables:
//   - PORT, HOST, PLATFORM_ID, PUBLIC_URL
//   - CONTAINER_ENVIRONMENT, PLATFORM_ENVIRONMENT
//   - SESSION_POLICY, STATE_DIR, SNAPSHOT_INTERVAL
//   - BACKEND_TIMEOUT, DOCKER_NETWORK, DOCKER_PUBLIC_HOST, PORT_RANGE_START, PORT_RANGE_END, SCHEMA_DIR
//   - ENABLE_AUTH, PLATFORM_ADMIN_USER, PLATFORM_ADMIN_PASSWORD
//   - LOG_LEVEL, LOG_DEV
//   - RATE_LIMIT_RPS, RATE_LIMIT_BURST, RATE_LIMIT_ENABLED
package config
