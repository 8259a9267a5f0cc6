package models

import "time"

// GradingMetrics is a point-in-time summary of service counters.
type GradingMetrics struct {
	CacheHitRatio        float64   `json:"cache_hit_ratio"`
	CacheHits            uint64    `json:"cache_hits"`
	CacheMisses          uint64    `json:"cache_misses"`
	RequestsTotal        uint64    `json:"requests_total"`
	Computations         uint64    `json:"computations"`
	AverageComputationMs float64   `json:"average_computation_ms"`
	Goroutines           int       `json:"goroutines"`
	GeneratedAt          time.Time `json:"generated_at"`
}
