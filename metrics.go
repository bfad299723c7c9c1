package wpclient

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsCollector exports Prometheus metrics for requests, retries, the
// pacer and the response cache. A nil collector records nothing.
type MetricsCollector struct {
	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	requestsInFlight *prometheus.GaugeVec

	retriesTotal *prometheus.CounterVec
	errorsTotal  *prometheus.CounterVec

	pacerWait    prometheus.Histogram
	circuitState prometheus.Gauge

	cacheHits          *prometheus.CounterVec
	cacheMisses        *prometheus.CounterVec
	cacheEntries       *prometheus.GaugeVec
	cacheBytes         *prometheus.GaugeVec
	cacheEvictions     *prometheus.CounterVec
	cacheInvalidations *prometheus.CounterVec
	coalescedRequests  *prometheus.CounterVec

	buildInfo *prometheus.GaugeVec

	registerer prometheus.Registerer
}

// NewMetricsCollector registers the collector on the default registerer.
func NewMetricsCollector() *MetricsCollector {
	return NewMetricsCollectorWithRegistry(prometheus.DefaultRegisterer)
}

// NewMetricsCollectorWithRegistry registers the collector on registerer.
func NewMetricsCollectorWithRegistry(registerer prometheus.Registerer) *MetricsCollector {
	factory := promauto.With(registerer)
	mc := &MetricsCollector{
		requestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wpclient_requests_total",
				Help: "Total number of HTTP attempts issued",
			},
			[]string{"method", "status_code", "endpoint"},
		),
		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "wpclient_request_duration_seconds",
				Help:    "Duration of HTTP attempts in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "status_code", "endpoint"},
		),
		requestsInFlight: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "wpclient_requests_in_flight",
				Help: "Number of logical requests currently executing",
			},
			[]string{"method", "endpoint"},
		),
		retriesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wpclient_retries_total",
				Help: "Total number of retry attempts",
			},
			[]string{"method", "endpoint", "attempt"},
		),
		errorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wpclient_errors_total",
				Help: "Total number of failed logical requests by error type",
			},
			[]string{"type", "method", "endpoint"},
		),
		pacerWait: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "wpclient_pacer_wait_seconds",
				Help:    "Time spent waiting for the minimum request interval",
				Buckets: []float64{0, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
		),
		circuitState: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "wpclient_circuit_breaker_state",
				Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
			},
		),
		cacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wpclient_cache_hits_total",
				Help: "Total number of cache hits",
			},
			[]string{"class"},
		),
		cacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wpclient_cache_misses_total",
				Help: "Total number of cache misses",
			},
			[]string{"class"},
		),
		cacheEntries: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "wpclient_cache_entries",
				Help: "Current number of entries in the cache",
			},
			[]string{"site"},
		),
		cacheBytes: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "wpclient_cache_bytes",
				Help: "Approximate bytes held by the cache",
			},
			[]string{"site"},
		),
		cacheEvictions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wpclient_cache_evictions_total",
				Help: "Total number of entries evicted by the cache bounds",
			},
			[]string{"site"},
		),
		cacheInvalidations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wpclient_cache_invalidations_total",
				Help: "Total number of entries removed by write invalidation",
			},
			[]string{"collection"},
		),
		coalescedRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wpclient_coalesced_requests_total",
				Help: "Total number of GET misses served by a concurrent identical call",
			},
			[]string{"endpoint"},
		),
		buildInfo: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "wpclient_build_info",
				Help: "Always 1; labels describe the wpclient build",
			},
			[]string{"version", "commit", "build_date", "go_version"},
		),
		registerer: registerer,
	}
	mc.buildInfo.With(prometheus.Labels(GetVersionInfo())).Set(1)
	return mc
}

// RecordRequest records one attempt's outcome and duration.
func (mc *MetricsCollector) RecordRequest(method, endpoint string, statusCode int, duration time.Duration) {
	if mc == nil {
		return
	}

	statusCodeStr := strconv.Itoa(statusCode)
	mc.requestsTotal.WithLabelValues(method, statusCodeStr, endpoint).Inc()
	mc.requestDuration.WithLabelValues(method, statusCodeStr, endpoint).Observe(duration.Seconds())
}

// RecordRequestStart increments the in-flight gauge.
func (mc *MetricsCollector) RecordRequestStart(method, endpoint string) {
	if mc == nil {
		return
	}
	mc.requestsInFlight.WithLabelValues(method, endpoint).Inc()
}

// RecordRequestEnd decrements the in-flight gauge.
func (mc *MetricsCollector) RecordRequestEnd(method, endpoint string) {
	if mc == nil {
		return
	}
	mc.requestsInFlight.WithLabelValues(method, endpoint).Dec()
}

// RecordRetry increments the retry counter for an attempt number.
func (mc *MetricsCollector) RecordRetry(method, endpoint string, attempt int) {
	if mc == nil {
		return
	}
	mc.retriesTotal.WithLabelValues(method, endpoint, strconv.Itoa(attempt)).Inc()
}

// RecordError increments the error counter by type.
func (mc *MetricsCollector) RecordError(errorType, method, endpoint string) {
	if mc == nil {
		return
	}
	mc.errorsTotal.WithLabelValues(errorType, method, endpoint).Inc()
}

// RecordPacerWait observes time spent blocked on the request interval.
func (mc *MetricsCollector) RecordPacerWait(wait time.Duration) {
	if mc == nil {
		return
	}
	mc.pacerWait.Observe(wait.Seconds())
}

// RecordCircuitState publishes the circuit breaker state.
func (mc *MetricsCollector) RecordCircuitState(state CircuitState) {
	if mc == nil {
		return
	}
	mc.circuitState.Set(float64(state))
}

// RecordCacheHit increments the hit counter for an endpoint class.
func (mc *MetricsCollector) RecordCacheHit(class EndpointClass) {
	if mc == nil {
		return
	}
	mc.cacheHits.WithLabelValues(class.String()).Inc()
}

// RecordCacheMiss increments the miss counter for an endpoint class.
func (mc *MetricsCollector) RecordCacheMiss(class EndpointClass) {
	if mc == nil {
		return
	}
	mc.cacheMisses.WithLabelValues(class.String()).Inc()
}

// RecordCacheState publishes the cache's current size and eviction delta.
func (mc *MetricsCollector) RecordCacheState(site string, stats CacheStats, evicted int64) {
	if mc == nil {
		return
	}
	mc.cacheEntries.WithLabelValues(site).Set(float64(stats.TotalSize))
	mc.cacheBytes.WithLabelValues(site).Set(float64(stats.MemoryBytes))
	if evicted > 0 {
		mc.cacheEvictions.WithLabelValues(site).Add(float64(evicted))
	}
}

// RecordInvalidation counts entries dropped after a write to collection.
func (mc *MetricsCollector) RecordInvalidation(collection string, removed int) {
	if mc == nil || removed <= 0 {
		return
	}
	mc.cacheInvalidations.WithLabelValues(collection).Add(float64(removed))
}

// RecordCoalesced counts a GET miss that shared another caller's fetch.
func (mc *MetricsCollector) RecordCoalesced(endpoint string) {
	if mc == nil {
		return
	}
	mc.coalescedRequests.WithLabelValues(endpoint).Inc()
}

// Registerer exposes where the collector's metrics were registered.
func (mc *MetricsCollector) Registerer() prometheus.Registerer {
	if mc == nil {
		return nil
	}
	return mc.registerer
}
