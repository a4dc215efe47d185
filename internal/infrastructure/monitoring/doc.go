/*
Package monitoring provides metrics collection for the platform.

# Overview

This package implements Prometheus-based metrics collection, tracking HTTP
requests, audit events, argument validations, container deployments, backend
calls and state snapshots. Every Metrics value owns its registry, so several
instances (one per test, for example) can coexist in a process.

# Features

- HTTP request metrics (latency, throughput, size)
- Audit event counters by event type and method
- Container, port and peer gauges
- Backend call metrics (duration, status)
- Snapshot metrics (success/failure, duration, recoveries)
- WebSocket connection metrics
- Uptime computed on scrape

# Usage

	// Create metrics collector
	metrics := monitoring.NewMetrics()

	// Add middleware to Gin router
	router.Use(monitoring.Middleware(metrics))

	// Record custom metrics
	metrics.SetContainers(3, 1)
	metrics.RecordDeployment("success")

	// Time backend operations
	timer := monitoring.NewTimer(metrics, "docker", "start")
	// ... perform operation ...
	timer.Stop("success")

# Metrics Endpoint

	router.GET("/metrics", gin.WrapH(metrics.Handler()))
*/
package monitoring
