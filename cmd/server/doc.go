// Package main is the entry point for the agent platform server.
//
// The platform deploys agent containers, tracks what they provide, validates
// and forwards action invocations, federates with peer platforms and records
// every state-changing call in an audit history.
//
// The server provides:
//   - REST API for containers, invocations, peers and users
//   - WebSocket stream of the audit history
//   - Session persistence to Session.json
//   - Prometheus metrics on /metrics
//
// Configuration:
//   - Environment variables (12-factor)
//   - CLI flags (override env vars)
//   - Defaults for development
//
// Usage:
//
//	# Docker backend, state kept in /var/lib/agentplatform
//	CONTAINER_ENVIRONMENT=docker ./server -port 8080 -state-dir /var/lib/agentplatform
//
//	# Development mode (colored logs, debug level)
//	./server -dev
//
// Signals:
//   - SIGINT, SIGTERM: Graceful shutdown with a final snapshot
package main
