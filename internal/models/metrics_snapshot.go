package models

import "time"

// EngineMetricsSnapshot aggregates in-process counters for a lightweight
// operational endpoint, alongside the full Prometheus registry exposed
// at /metrics.
type EngineMetricsSnapshot struct {
	CacheHitRatio            float64   `json:"cacheHitRatio"`
	CacheHits                uint64    `json:"cacheHits"`
	CacheMisses              uint64    `json:"cacheMisses"`
	RequestsTotal            uint64    `json:"requestsTotal"`
	AverageRequestDurationMs float64   `json:"averageRequestDurationMs"`
	DBQueryCount             uint64    `json:"dbQueryCount"`
	AverageDBQueryDurationMs float64   `json:"averageDbQueryDurationMs"`
	SolverRunsTotal          uint64    `json:"solverRunsTotal"`
	SolverFailuresTotal      uint64    `json:"solverFailuresTotal"`
	AverageSolverDurationMs  float64   `json:"averageSolverDurationMs"`
	ResilienceChecksTotal    uint64    `json:"resilienceChecksTotal"`
	LastResilienceLevel      string    `json:"lastResilienceLevel"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generatedAt"`
}
