package businessflow

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Numbers successfully generated, partitioned by operation (generate/reserve)
	numbersGeneratedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docnum_generated_total",
			Help: "Total number of document numbers successfully generated",
		},
		[]string{"operation"},
	)

	// Counter compare-and-swap exhaustions surfaced to callers
	counterConflictsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "docnum_counter_conflicts_total",
			Help: "Total number of counter increments that exhausted their retries",
		},
	)

	// CAS retries that eventually succeeded
	counterRetriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "docnum_counter_retries_total",
			Help: "Total number of counter compare-and-swap retries",
		},
	)

	// Lock acquisitions that failed and fell back to the CAS-only path
	lockFallbacksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "docnum_lock_fallbacks_total",
			Help: "Total number of lock acquisitions that failed open to the counter CAS path",
		},
	)

	// Time spent waiting on the distributed lock
	lockWaitSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "docnum_lock_wait_seconds",
			Help:    "Distributed lock acquisition latencies in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// End-to-end generation latency, partitioned by operation and outcome
	generationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "docnum_generation_duration_seconds",
			Help:    "Document number generation latencies in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "outcome"},
	)

	// Audit/error log writes that failed (the primary flow never aborts on these)
	auditWriteFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "docnum_audit_write_failures_total",
			Help: "Total number of audit or error log writes that failed",
		},
	)

	// Reservation lifecycle transitions
	reservationTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docnum_reservation_transitions_total",
			Help: "Total number of reservation state transitions",
		},
		[]string{"to"},
	)

	// Reservations cancelled by the expiry sweep
	reservationsSweptTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "docnum_reservations_swept_total",
			Help: "Total number of reservations cancelled by the expiry sweep",
		},
	)
)

// ObserveSweep records sweep results; exported for the scheduler package.
func ObserveSweep(cancelled int64) {
	if cancelled > 0 {
		reservationsSweptTotal.Add(float64(cancelled))
		reservationTransitionsTotal.WithLabelValues("CANCELLED").Add(float64(cancelled))
	}
}
