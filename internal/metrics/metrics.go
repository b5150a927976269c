// Package metrics provides Prometheus metrics for the sync agent.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the agent.
type Metrics struct {
	APIRequestsTotal   *prometheus.CounterVec
	APIRequestDuration *prometheus.HistogramVec
	CacheHitsTotal     prometheus.Counter
	CacheMissesTotal   prometheus.Counter
	SyncPassesTotal    *prometheus.CounterVec
	RemoteBindings     prometheus.Gauge
	ErrorsTotal        *prometheus.CounterVec

	registry *prometheus.Registry
}

// New creates and registers all metrics.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		APIRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "glsync_api_requests_total",
				Help: "Total GitLab API round trips by operation and status.",
			},
			[]string{"operation", "status"},
		),
		APIRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "glsync_api_request_duration_seconds",
				Help:    "GitLab API round-trip duration by operation.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "glsync_mr_cache_hits_total",
				Help: "Merge-request cache hits.",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "glsync_mr_cache_misses_total",
				Help: "Merge-request cache misses triggering an upstream fetch.",
			},
		),
		SyncPassesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "glsync_sync_passes_total",
				Help: "Remote synchronization passes by outcome.",
			},
			[]string{"outcome"},
		),
		RemoteBindings: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "glsync_remote_bindings",
				Help: "Number of local remotes currently bound to GitLab projects.",
			},
		),
		ErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "glsync_errors_total",
				Help: "Total errors by component and type.",
			},
			[]string{"component", "type"},
		),
		registry: reg,
	}

	reg.MustRegister(m.APIRequestsTotal)
	reg.MustRegister(m.APIRequestDuration)
	reg.MustRegister(m.CacheHitsTotal)
	reg.MustRegister(m.CacheMissesTotal)
	reg.MustRegister(m.SyncPassesTotal)
	reg.MustRegister(m.RemoteBindings)
	reg.MustRegister(m.ErrorsTotal)

	return m
}

// Handler returns an http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// APITimer starts timing one API round trip. The returned func records the
// duration and the outcome.
func (m *Metrics) APITimer(operation string) func(err error) {
	start := time.Now()
	return func(err error) {
		status := "ok"
		if err != nil {
			status = "error"
		}
		m.APIRequestsTotal.WithLabelValues(operation, status).Inc()
		m.APIRequestDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	}
}

// RecordCacheHit increments the cache hit counter.
func (m *Metrics) RecordCacheHit() { m.CacheHitsTotal.Inc() }

// RecordCacheMiss increments the cache miss counter.
func (m *Metrics) RecordCacheMiss() { m.CacheMissesTotal.Inc() }

// RecordSyncPass records a finished synchronization pass.
func (m *Metrics) RecordSyncPass(outcome string) {
	m.SyncPassesTotal.WithLabelValues(outcome).Inc()
}

// SetRemoteBindings updates the bound-remotes gauge.
func (m *Metrics) SetRemoteBindings(n int) {
	m.RemoteBindings.Set(float64(n))
}

// RecordError increments the error counter.
func (m *Metrics) RecordError(component, errType string) {
	m.ErrorsTotal.WithLabelValues(component, errType).Inc()
}
