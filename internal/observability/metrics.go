package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "policy_builder"

// Metrics holds every Prometheus collector of the service.
//
// Metrics:
//   - policy_builder_http_requests_total{method,route,status}
//   - policy_builder_http_request_duration_seconds{method,route}
//   - policy_builder_constraint_builds_total{mode,result}
//   - policy_builder_submissions_total{operation,status}
//   - policy_builder_submission_duration_seconds{operation}
//   - policy_builder_catalog_cache_lookups_total{cache,result}
//   - policy_builder_workspace_requests_total{endpoint,status}
//   - policy_builder_audit_events_total{action,result}
type Metrics struct {
	registry *prometheus.Registry

	httpRequests       *prometheus.CounterVec
	httpDuration       *prometheus.HistogramVec
	constraintBuilds   *prometheus.CounterVec
	submissions        *prometheus.CounterVec
	submissionDuration *prometheus.HistogramVec
	cacheLookups       *prometheus.CounterVec
	workspaceRequests  *prometheus.CounterVec
	auditEvents        *prometheus.CounterVec
}

// NewMetrics creates and registers all collectors. A nil registry gets a fresh one.
func NewMetrics(registry *prometheus.Registry) *Metrics {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	m := &Metrics{
		registry: registry,
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		httpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "HTTP request latency",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		constraintBuilds: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "constraint_builds_total",
				Help:      "Constraint build attempts by mode and result",
			},
			[]string{"mode", "result"},
		),
		submissions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "submissions_total",
				Help:      "Policy submissions by operation and status",
			},
			[]string{"operation", "status"},
		),
		submissionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "submission_duration_seconds",
				Help:      "Latency of policy create and update calls",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"operation"},
		),
		cacheLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "catalog",
				Name:      "cache_lookups_total",
				Help:      "Catalog cache lookups by cache and result",
			},
			[]string{"cache", "result"},
		),
		workspaceRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "workspace",
				Name:      "requests_total",
				Help:      "Workspace API calls by endpoint and status",
			},
			[]string{"endpoint", "status"},
		),
		auditEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "audit",
				Name:      "events_total",
				Help:      "Audit events by action and result",
			},
			[]string{"action", "result"},
		),
	}

	registry.MustRegister(
		m.httpRequests,
		m.httpDuration,
		m.constraintBuilds,
		m.submissions,
		m.submissionDuration,
		m.cacheLookups,
		m.workspaceRequests,
		m.auditEvents,
	)
	return m
}

// Registry returns the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler exposes the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		ErrorHandling:     promhttp.ContinueOnError,
	})
}

// RecordHTTPRequest records a served request
func (m *Metrics) RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordBuild records a constraint build attempt
func (m *Metrics) RecordBuild(mode string, err error) {
	if m == nil {
		return
	}
	m.constraintBuilds.WithLabelValues(mode, result(err)).Inc()
}

// RecordSubmission records a create or update call
func (m *Metrics) RecordSubmission(operation string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	m.submissions.WithLabelValues(operation, result(err)).Inc()
	m.submissionDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordCacheLookup records a catalog cache hit or miss
func (m *Metrics) RecordCacheLookup(cache string, hit bool) {
	if m == nil {
		return
	}
	r := "miss"
	if hit {
		r = "hit"
	}
	m.cacheLookups.WithLabelValues(cache, r).Inc()
}

// RecordWorkspaceRequest records a workspace API call. Status 0 means the
// request never got a response.
func (m *Metrics) RecordWorkspaceRequest(endpoint string, status int) {
	if m == nil {
		return
	}
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	m.workspaceRequests.WithLabelValues(endpoint, label).Inc()
}

// RecordAuditEvent records the outcome of persisting an audit event
func (m *Metrics) RecordAuditEvent(action string, err error) {
	if m == nil {
		return
	}
	m.auditEvents.WithLabelValues(action, result(err)).Inc()
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
