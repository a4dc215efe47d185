// Package middleware provides the HTTP middleware of the platform API.
//
// Middleware stack:
//   - CORS: Cross-origin resource sharing, exposing the trace headers
//   - RateLimit: Per-IP token bucket rate limiting with idle cleanup
//   - Auth: Bearer-token authentication against issued platform tokens
//   - RequireRole: Role check for administrative routes
//
// Example Usage:
//
//	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
//	router.Use(middleware.RateLimit(middleware.DefaultRateLimitConfig()))
//	router.Use(middleware.Auth(resolve, "/health", "/login"))
package middleware
