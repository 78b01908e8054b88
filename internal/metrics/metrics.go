// Package metrics exposes Prometheus collectors for the CRM bridge: cache
// lookups, remote CRM calls and HTTP requests.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "crmbridge"

// Metrics owns a private registry so tests and multiple instances do not
// collide on the global one.
type Metrics struct {
	registry       *prometheus.Registry
	lookups        *prometheus.CounterVec
	remoteCalls    *prometheus.CounterVec
	remoteLatency  *prometheus.HistogramVec
	httpRequests   *prometheus.CounterVec
	httpLatency    *prometheus.HistogramVec
	expiredRemoved prometheus.Counter
}

// New registers every collector, plus the Go runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		lookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Adapter lookups by operation and result (hit or miss).",
		}, []string{"operation", "result"}),
		remoteCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "remote_calls_total",
			Help:      "Calls to the CRM API by operation and outcome.",
		}, []string{"operation", "outcome"}),
		remoteLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "remote_call_duration_seconds",
			Help:      "CRM API call latency in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests processed by method, route and status code.",
		}, []string{"method", "route", "status"}),
		httpLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		expiredRemoved: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_expired_removed_total",
			Help:      "Expired cache entries removed by sweeps.",
		}),
	}

	m.registry.MustRegister(
		m.lookups,
		m.remoteCalls,
		m.remoteLatency,
		m.httpRequests,
		m.httpLatency,
		m.expiredRemoved,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveLookup records a cache hit or miss.
func (m *Metrics) ObserveLookup(operation string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.lookups.WithLabelValues(operation, result).Inc()
}

// ObserveRemote records one CRM API call.
func (m *Metrics) ObserveRemote(operation string, elapsed time.Duration, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.remoteCalls.WithLabelValues(operation, outcome).Inc()
	m.remoteLatency.WithLabelValues(operation).Observe(elapsed.Seconds())
}

// ObserveSweep records the number of expired entries a sweep removed.
func (m *Metrics) ObserveSweep(removed int) {
	m.expiredRemoved.Add(float64(removed))
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Middleware records request counts and latency. route labels the request
// with its pattern rather than the raw path to bound cardinality.
func (m *Metrics) Middleware(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		next.ServeHTTP(recorder, r)

		m.httpRequests.WithLabelValues(r.Method, route, strconv.Itoa(recorder.status)).Inc()
		m.httpLatency.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(statusCode int) {
	s.status = statusCode
	s.ResponseWriter.WriteHeader(statusCode)
}
