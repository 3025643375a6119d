package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for the Redis-backed distributed lock that guards
// concurrent dynconfig component updates across processes.
var (
	// LockAcquireTotal tracks lock acquisition attempts by outcome.
	//
	// Labels:
	//   - outcome: acquired, contended, error
	LockAcquireTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "distributed_lock_acquire_total",
			Help: "Total distributed lock acquisition attempts by outcome",
		},
		[]string{"outcome"},
	)

	// LockAcquireDuration tracks how long acquisition (including
	// retries) took, successful or not.
	LockAcquireDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "distributed_lock_acquire_duration_seconds",
			Help:    "Duration of distributed lock acquisition attempts",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 2.0},
		},
	)

	// LockHeld tracks the number of locks currently held by this
	// process.
	LockHeld = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "distributed_lock_held",
			Help: "Number of distributed locks currently held by this process",
		},
	)

	// LockReleaseErrors tracks failed lock releases (the lock then
	// relies on TTL expiry instead).
	LockReleaseErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "distributed_lock_release_errors_total",
			Help: "Total distributed lock releases that failed (lock falls back to TTL expiry)",
		},
	)
)
