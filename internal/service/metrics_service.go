package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/room-reservation-api/internal/models"
)

// MetricsService encapsulates Prometheus instrumentation. A nil *MetricsService
// is valid and records nothing.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheLookups    *prometheus.CounterVec
	cacheLatency    prometheus.Observer
	conflicts       *prometheus.CounterVec
	conflictChecks  *prometheus.CounterVec
	lookupFailures  prometheus.Counter
	detectDuration  prometheus.Observer
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	cacheLookups := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cache_lookups_total",
		Help: "Cache lookups partitioned by result",
	}, []string{"result"})

	cacheLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_latency_seconds",
		Help:    "Latency for cache operations",
		Buckets: prometheus.DefBuckets,
	})

	conflicts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "reservation_conflicts_total",
		Help: "Conflicts reported by the detector, by conflicting entity kind",
	}, []string{"kind"})

	conflictChecks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "reservation_conflict_checks_total",
		Help: "Conflict detector runs partitioned by outcome",
	}, []string{"outcome"})

	lookupFailures := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "conflict_lookup_failures_total",
		Help: "Conflict checks that failed closed because a store lookup failed",
	})

	detectDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "conflict_detection_duration_seconds",
		Help:    "Duration of conflict detection including store reads",
		Buckets: prometheus.DefBuckets,
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheLookups, cacheLatency, conflicts, conflictChecks, lookupFailures, detectDuration, goroutines)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		cacheLookups:    cacheLookups,
		cacheLatency:    cacheLatency,
		conflicts:       conflicts,
		conflictChecks:  conflictChecks,
		lookupFailures:  lookupFailures,
		detectDuration:  detectDuration,
	}
}

// Registry exposes the underlying registry, mainly for tests.
func (m *MetricsService) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// RecordCacheOperation records a cache hit or miss.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	if hit {
		m.cacheLookups.WithLabelValues("hit").Inc()
		return
	}
	m.cacheLookups.WithLabelValues("miss").Inc()
}

// ObserveConflictCheck records the outcome of one detector run.
func (m *MetricsService) ObserveConflictCheck(found []models.Conflict, err error, duration time.Duration) {
	if m == nil {
		return
	}
	m.detectDuration.Observe(duration.Seconds())
	switch {
	case err != nil:
		m.conflictChecks.WithLabelValues("error").Inc()
		m.lookupFailures.Inc()
	case len(found) > 0:
		m.conflictChecks.WithLabelValues("conflict").Inc()
	default:
		m.conflictChecks.WithLabelValues("clear").Inc()
	}
	for _, c := range found {
		m.conflicts.WithLabelValues(string(c.Kind)).Inc()
	}
}
