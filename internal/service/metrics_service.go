package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the allocation API.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec

	allocationsTotal   *prometheus.CounterVec
	capacityRejections prometheus.Counter
	txRetries          prometheus.Counter
	cacheHits          prometheus.Counter
	cacheMisses        prometheus.Counter
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

	allocationsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "teaching_allocations_total",
		Help: "Committed teaching load mutations by action",
	}, []string{"action"})

	capacityRejections := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "teaching_allocation_capacity_rejections_total",
		Help: "Allocation requests rejected for lack of remaining capacity",
	})

	txRetries := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "teaching_allocation_tx_retries_total",
		Help: "Allocation transactions retried after serialization conflicts",
	})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total cache misses",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, allocationsTotal, capacityRejections, txRetries, cacheHits, cacheMisses, goroutines)

	return &MetricsService{
		registry:           registry,
		handler:            promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration:    requestDuration,
		requestTotal:       requestTotal,
		allocationsTotal:   allocationsTotal,
		capacityRejections: capacityRejections,
		txRetries:          txRetries,
		cacheHits:          cacheHits,
		cacheMisses:        cacheMisses,
	}
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

// CountAllocations adds committed mutations for the given audit action.
func (m *MetricsService) CountAllocations(action string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.allocationsTotal.WithLabelValues(action).Add(float64(n))
}

// CountCapacityRejection tracks a capacity-driven rejection.
func (m *MetricsService) CountCapacityRejection() {
	if m == nil {
		return
	}
	m.capacityRejections.Inc()
}

// CountTxRetry tracks one serialization-conflict retry.
func (m *MetricsService) CountTxRetry() {
	if m == nil {
		return
	}
	m.txRetries.Inc()
}

// RecordCacheOperation records cache hit/miss outcomes.
func (m *MetricsService) RecordCacheOperation(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.cacheHits.Inc()
	} else {
		m.cacheMisses.Inc()
	}
}
