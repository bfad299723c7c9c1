package wpclient

import (
	"sync"
	"time"
)

// RequestStats counts executor attempts over the process lifetime.
type RequestStats struct {
	TotalRequests      int64
	SuccessfulRequests int64
	FailedRequests     int64
	RateLimitHits      int64
	AuthFailures       int64
	// AverageResponseTime is a running mean over every recorded attempt.
	AverageResponseTime time.Duration
}

// SuccessRate is SuccessfulRequests/TotalRequests, or 0 with no requests.
func (s RequestStats) SuccessRate() float64 {
	if s.TotalRequests == 0 {
		return 0
	}
	return float64(s.SuccessfulRequests) / float64(s.TotalRequests)
}

// CacheStats describes the cache counters and current occupancy.
type CacheStats struct {
	Hits    int64
	Misses  int64
	HitRate float64
	// TotalSize is the number of live entries.
	TotalSize   int
	MemoryBytes int64
	Evictions   int64
}

// Efficiency ratings returned by CacheEfficiency.
const (
	RatingNoData    = "No data"
	RatingExcellent = "Excellent"
	RatingGood      = "Good"
	RatingFair      = "Fair"
	RatingPoor      = "Poor"
)

// CacheEfficiency summarises cache effectiveness.
type CacheEfficiency struct {
	HitRate       float64
	MissRate      float64
	TotalRequests int64
	Rating        string
}

func efficiencyOf(stats CacheStats) CacheEfficiency {
	total := stats.Hits + stats.Misses
	if total == 0 {
		return CacheEfficiency{Rating: RatingNoData}
	}

	hitRate := float64(stats.Hits) / float64(total)
	eff := CacheEfficiency{
		HitRate:       hitRate,
		MissRate:      1 - hitRate,
		TotalRequests: total,
	}
	switch {
	case hitRate >= 0.8:
		eff.Rating = RatingExcellent
	case hitRate >= 0.6:
		eff.Rating = RatingGood
	case hitRate >= 0.4:
		eff.Rating = RatingFair
	default:
		eff.Rating = RatingPoor
	}
	return eff
}

// statsRecorder accumulates RequestStats under a mutex.
type statsRecorder struct {
	mu    sync.Mutex
	stats RequestStats
	total time.Duration
}

// attemptOutcome is what the executor learned from one attempt.
type attemptOutcome struct {
	success     bool
	rateLimited bool
	authFailure bool
	duration    time.Duration
}

func (r *statsRecorder) record(o attemptOutcome) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.stats.TotalRequests++
	if o.success {
		r.stats.SuccessfulRequests++
	} else {
		r.stats.FailedRequests++
	}
	if o.rateLimited {
		r.stats.RateLimitHits++
	}
	if o.authFailure {
		r.stats.AuthFailures++
	}

	r.total += o.duration
	r.stats.AverageResponseTime = r.total / time.Duration(r.stats.TotalRequests)
}

func (r *statsRecorder) snapshot() RequestStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}

func (r *statsRecorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stats = RequestStats{}
	r.total = 0
}
