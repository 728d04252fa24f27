package service

import (
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gme-scheduler/core/internal/models"
)

// MetricsService encapsulates Prometheus instrumentation for the
// scheduling engine and provides lightweight snapshots for operational
// endpoints that don't want to scrape /metrics.
type MetricsService struct {
	registry         *prometheus.Registry
	handler          http.Handler
	requestDuration  *prometheus.HistogramVec
	requestTotal     *prometheus.CounterVec
	cacheLatency     prometheus.Observer
	cacheWrite       prometheus.Observer
	cacheHitRatio    prometheus.Gauge
	cacheHits        prometheus.Counter
	cacheMisses      prometheus.Counter
	dbQueryDuration  *prometheus.HistogramVec
	solverDuration   *prometheus.HistogramVec
	solverRuns       *prometheus.CounterVec
	resilienceChecks *prometheus.CounterVec
	resilienceGauge  *prometheus.GaugeVec

	cacheHitCount        uint64
	cacheMissCount        uint64
	requestCount         uint64
	requestDurationTotal uint64
	dbQueryCount         uint64
	dbQueryDurationTotal uint64
	solverRunCount       uint64
	solverFailureCount   uint64
	solverDurationTotal  uint64
	resilienceCheckCount uint64
	lastResilienceLevel  atomic.Value
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

	cacheLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_latency_seconds",
		Help:    "Latency for cache operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheWrite := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_write_seconds",
		Help:    "Latency for cache set operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheHitRatio := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "cache_hit_ratio",
		Help: "Ratio of cache hits to total cache lookups",
	})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total cache misses",
	})

	dbQueryDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "db_query_duration_seconds",
		Help:    "Duration of database queries",
		Buckets: prometheus.DefBuckets,
	}, []string{"query"})

	solverDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "solver_run_duration_seconds",
		Help:    "Duration of solver backend runs",
		Buckets: []float64{.1, .5, 1, 5, 15, 30, 60, 120, 300},
	}, []string{"backend", "terminal_state"})

	solverRuns := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "solver_runs_total",
		Help: "Total solver backend invocations",
	}, []string{"backend", "terminal_state"})

	resilienceChecks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "resilience_checks_total",
		Help: "Total resilience gate evaluations",
	}, []string{"level"})

	resilienceGauge := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "resilience_level",
		Help: "Resilience level rank currently in effect (0=GREEN..4=BLACK)",
	}, []string{"level"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheLatency, cacheWrite, cacheHitRatio,
		cacheHits, cacheMisses, dbQueryDuration, solverDuration, solverRuns, resilienceChecks,
		resilienceGauge, goroutines)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	m := &MetricsService{
		registry:         registry,
		handler:          handler,
		requestDuration:  requestDuration,
		requestTotal:     requestTotal,
		cacheLatency:     cacheLatency,
		cacheWrite:       cacheWrite,
		cacheHitRatio:    cacheHitRatio,
		cacheHits:        cacheHits,
		cacheMisses:      cacheMisses,
		dbQueryDuration:  dbQueryDuration,
		solverDuration:   solverDuration,
		solverRuns:       solverRuns,
		resilienceChecks: resilienceChecks,
		resilienceGauge:  resilienceGauge,
	}
	m.lastResilienceLevel.Store("")
	return m
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

// ObserveHTTPRequest records request metrics and aggregates simple stats for snapshots.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
	atomic.AddUint64(&m.requestCount, 1)
	atomic.AddUint64(&m.requestDurationTotal, uint64(duration.Nanoseconds()))
}

// RecordCacheOperation records cache hit/miss metrics and updates hit ratio.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	if m.cacheLatency != nil {
		m.cacheLatency.Observe(duration.Seconds())
	}
	if hit {
		m.cacheHits.Inc()
		atomic.AddUint64(&m.cacheHitCount, 1)
	} else {
		m.cacheMisses.Inc()
		atomic.AddUint64(&m.cacheMissCount, 1)
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)
	total := hits + misses
	if total > 0 {
		m.cacheHitRatio.Set(float64(hits) / float64(total))
	}
}

// ObserveCacheWrite tracks the duration for cache write operations.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil || m.cacheWrite == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// ObserveDBQuery records database query timing.
func (m *MetricsService) ObserveDBQuery(label string, duration time.Duration) {
	if m == nil {
		return
	}
	m.dbQueryDuration.WithLabelValues(label).Observe(duration.Seconds())
	atomic.AddUint64(&m.dbQueryCount, 1)
	atomic.AddUint64(&m.dbQueryDurationTotal, uint64(duration.Nanoseconds()))
}

// RecordSolverRun records one solver backend invocation, win or lose.
func (m *MetricsService) RecordSolverRun(backend models.Algorithm, terminalState string, duration time.Duration, failed bool) {
	if m == nil {
		return
	}
	m.solverDuration.WithLabelValues(string(backend), terminalState).Observe(duration.Seconds())
	m.solverRuns.WithLabelValues(string(backend), terminalState).Inc()
	atomic.AddUint64(&m.solverRunCount, 1)
	atomic.AddUint64(&m.solverDurationTotal, uint64(duration.Nanoseconds()))
	if failed {
		atomic.AddUint64(&m.solverFailureCount, 1)
	}
}

// RecordResilienceCheck records the outcome of one resilience gate evaluation.
func (m *MetricsService) RecordResilienceCheck(level models.ResilienceLevel) {
	if m == nil {
		return
	}
	m.resilienceChecks.WithLabelValues(string(level)).Inc()
	atomic.AddUint64(&m.resilienceCheckCount, 1)
	m.lastResilienceLevel.Store(string(level))

	for _, l := range []models.ResilienceLevel{
		models.ResilienceGreen, models.ResilienceYellow,
		models.ResilienceOrange, models.ResilienceRed, models.ResilienceBlack,
	} {
		if l == level {
			m.resilienceGauge.WithLabelValues(string(l)).Set(float64(level.Rank()))
		} else {
			m.resilienceGauge.WithLabelValues(string(l)).Set(0)
		}
	}
}

// Snapshot returns aggregated metrics suitable for a lightweight status endpoint.
func (m *MetricsService) Snapshot() models.EngineMetricsSnapshot {
	if m == nil {
		return models.EngineMetricsSnapshot{}
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)
	requests := atomic.LoadUint64(&m.requestCount)
	reqDuration := atomic.LoadUint64(&m.requestDurationTotal)
	dbCount := atomic.LoadUint64(&m.dbQueryCount)
	dbDuration := atomic.LoadUint64(&m.dbQueryDurationTotal)
	solverRuns := atomic.LoadUint64(&m.solverRunCount)
	solverFailures := atomic.LoadUint64(&m.solverFailureCount)
	solverDuration := atomic.LoadUint64(&m.solverDurationTotal)
	resilienceChecks := atomic.LoadUint64(&m.resilienceCheckCount)

	var cacheRatio float64
	if totalLookups := hits + misses; totalLookups > 0 {
		cacheRatio = float64(hits) / float64(totalLookups)
	}

	var avgRequestMs float64
	if requests > 0 {
		avgRequestMs = float64(reqDuration) / float64(requests) / float64(time.Millisecond)
	}

	var avgDBMs float64
	if dbCount > 0 {
		avgDBMs = float64(dbDuration) / float64(dbCount) / float64(time.Millisecond)
	}

	var avgSolverMs float64
	if solverRuns > 0 {
		avgSolverMs = float64(solverDuration) / float64(solverRuns) / float64(time.Millisecond)
	}

	lastLevel, _ := m.lastResilienceLevel.Load().(string)

	return models.EngineMetricsSnapshot{
		CacheHitRatio:            cacheRatio,
		CacheHits:                hits,
		CacheMisses:              misses,
		RequestsTotal:            requests,
		AverageRequestDurationMs: avgRequestMs,
		DBQueryCount:             dbCount,
		AverageDBQueryDurationMs: avgDBMs,
		SolverRunsTotal:          solverRuns,
		SolverFailuresTotal:      solverFailures,
		AverageSolverDurationMs:  avgSolverMs,
		ResilienceChecksTotal:    resilienceChecks,
		LastResilienceLevel:      lastLevel,
		Goroutines:               runtime.NumGoroutine(),
		GeneratedAt:              time.Now().UTC(),
	}
}
