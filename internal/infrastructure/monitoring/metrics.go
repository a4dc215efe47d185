package monitoring

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	RequestSize     *prometheus.HistogramVec
	ResponseSize    *prometheus.HistogramVec

	// Audit metrics
	AuditEvents *prometheus.CounterVec

	// Validation metrics
	Validations *prometheus.CounterVec

	// Container metrics
	ContainersRunning prometheus.Gauge
	ContainersPending prometheus.Gauge
	Deployments       *prometheus.CounterVec
	PortsReserved     prometheus.Gauge

	// Federation metrics
	PeersConnected prometheus.Gauge

	// Backend metrics
	BackendCalls    *prometheus.CounterVec
	BackendDuration *prometheus.HistogramVec

	// Snapshot metrics
	Snapshots        *prometheus.CounterVec
	SnapshotDuration prometheus.Histogram
	SnapshotsLoaded  prometheus.Counter

	// WebSocket metrics
	WSConnections prometheus.Gauge
	WSMessages    *prometheus.CounterVec

	// System metrics
	Uptime    prometheus.GaugeFunc
	startTime time.Time

	// Snapshot for JSON API - track current values
	snapshot MetricsSnapshot

	mu sync.RWMutex
}

// MetricsSnapshot holds current metric values for JSON API
type MetricsSnapshot struct {
	TotalRequests     int64   `json:"total_requests"`
	TotalErrors       int64   `json:"total_errors"`
	RunningContainers int64   `json:"running_containers"`
	AuditEvents       int64   `json:"audit_events"`
	TotalDuration     float64 `json:"total_duration_seconds"` // sum of all request durations
	RequestCount      int64   `json:"request_count"`          // count for averaging
}

// NewMetrics creates a metrics collector backed by its own registry
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	factory := promauto.With(reg)
	m := &Metrics{
		registry:  reg,
		startTime: time.Now(),

		// HTTP metrics
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "platform_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "platform_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		RequestSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "platform_http_request_size_bytes",
				Help:    "HTTP request size in bytes",
				Buckets: []float64{100, 1000, 10000, 100000, 1000000, 10000000},
			},
			[]string{"method", "path"},
		),
		ResponseSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "platform_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: []float64{100, 1000, 10000, 100000, 1000000, 10000000},
			},
			[]string{"method", "path"},
		),

		// Audit metrics
		AuditEvents: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "platform_audit_events_total",
				Help: "Total number of audit events recorded",
			},
			[]string{"type", "method"},
		),

		// Validation metrics
		Validations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "platform_argument_validations_total",
				Help: "Total number of action argument validations",
			},
			[]string{"outcome"},
		),

		// Container metrics
		ContainersRunning: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "platform_containers_running",
				Help: "Number of running agent containers",
			},
		),
		ContainersPending: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "platform_containers_pending",
				Help: "Number of container starts awaiting confirmation",
			},
		),
		Deployments: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "platform_deployments_total",
				Help: "Total number of container deployments by outcome",
			},
			[]string{"outcome"},
		),
		PortsReserved: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "platform_ports_reserved",
				Help: "Number of reserved network ports",
			},
		),

		// Federation metrics
		PeersConnected: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "platform_peers_connected",
				Help: "Number of connected peer platforms",
			},
		),

		// Backend metrics
		BackendCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "platform_backend_calls_total",
				Help: "Total number of container backend calls",
			},
			[]string{"backend", "operation", "status"},
		),
		BackendDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "platform_backend_call_duration_seconds",
				Help:    "Container backend call duration in seconds",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"backend", "operation"},
		),

		// Snapshot metrics
		Snapshots: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "platform_state_snapshots_total",
				Help: "Total number of state snapshots by status",
			},
			[]string{"status"},
		),
		SnapshotDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "platform_state_snapshot_duration_seconds",
				Help:    "State snapshot duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
		),
		SnapshotsLoaded: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "platform_state_recoveries_total",
				Help: "Total number of successful state recoveries",
			},
		),

		// WebSocket metrics
		WSConnections: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "platform_ws_connections",
				Help: "Number of active WebSocket connections",
			},
		),
		WSMessages: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "platform_ws_messages_total",
				Help: "Total number of WebSocket messages",
			},
			[]string{"direction", "type"},
		),
	}

	// Uptime is computed on scrape
	m.Uptime = factory.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "platform_uptime_seconds",
			Help: "Platform uptime in seconds",
		},
		func() float64 { return time.Since(m.startTime).Seconds() },
	)

	return m
}

// Registry returns the registry all metrics are registered with
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Snapshot returns current values for the JSON API
func (m *Metrics) Snapshot() MetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshot
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration, reqSize, respSize int64) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	m.RequestSize.WithLabelValues(method, path).Observe(float64(reqSize))
	m.ResponseSize.WithLabelValues(method, path).Observe(float64(respSize))

	// Update snapshot
	m.mu.Lock()
	m.snapshot.TotalRequests++
	m.snapshot.TotalDuration += duration.Seconds()
	m.snapshot.RequestCount++
	if status != "" && (status[0] == '4' || status[0] == '5') {
		m.snapshot.TotalErrors++
	}
	m.mu.Unlock()
}

// RecordAuditEvent records an audit event
func (m *Metrics) RecordAuditEvent(eventType, method string) {
	m.AuditEvents.WithLabelValues(eventType, method).Inc()
	m.mu.Lock()
	m.snapshot.AuditEvents++
	m.mu.Unlock()
}

// RecordValidation records the outcome of an argument validation
func (m *Metrics) RecordValidation(valid bool) {
	outcome := "valid"
	if !valid {
		outcome = "invalid"
	}
	m.Validations.WithLabelValues(outcome).Inc()
}

// RecordDeployment records a deployment outcome
func (m *Metrics) RecordDeployment(outcome string) {
	m.Deployments.WithLabelValues(outcome).Inc()
}

// RecordBackendCall records a container backend call
func (m *Metrics) RecordBackendCall(backend, operation, status string, duration time.Duration) {
	m.BackendCalls.WithLabelValues(backend, operation, status).Inc()
	m.BackendDuration.WithLabelValues(backend, operation).Observe(duration.Seconds())
}

// RecordSnapshot records a state snapshot attempt
func (m *Metrics) RecordSnapshot(err error, duration time.Duration) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	m.Snapshots.WithLabelValues(status).Inc()
	m.SnapshotDuration.Observe(duration.Seconds())
}

// IncSnapshotsLoaded increments the recoveries counter
func (m *Metrics) IncSnapshotsLoaded() {
	m.SnapshotsLoaded.Inc()
}

// SetContainers sets the running and pending container gauges
func (m *Metrics) SetContainers(running, pending int) {
	m.ContainersRunning.Set(float64(running))
	m.ContainersPending.Set(float64(pending))
	m.mu.Lock()
	m.snapshot.RunningContainers = int64(running)
	m.mu.Unlock()
}

// SetPortsReserved sets the reserved ports gauge
func (m *Metrics) SetPortsReserved(count int) {
	m.PortsReserved.Set(float64(count))
}

// SetPeersConnected sets the connected peers gauge
func (m *Metrics) SetPeersConnected(count int) {
	m.PeersConnected.Set(float64(count))
}

// RecordWSMessage records a WebSocket message
func (m *Metrics) RecordWSMessage(direction, msgType string) {
	m.WSMessages.WithLabelValues(direction, msgType).Inc()
}

// IncWSConnections increments WebSocket connections
func (m *Metrics) IncWSConnections() {
	m.WSConnections.Inc()
}

// DecWSConnections decrements WebSocket connections
func (m *Metrics) DecWSConnections() {
	m.WSConnections.Dec()
}
