// Package metrics exposes the engine's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// VerdictsTotal counts orchestrated operations by type and decision.
var VerdictsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "attendance_verdicts_total",
		Help: "Total integrity verdicts by operation and decision",
	},
	[]string{"operation", "decision"},
)

// FraudSignalsTotal counts emitted fraud signals by kind and severity.
var FraudSignalsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "attendance_fraud_signals_total",
		Help: "Total fraud signals by kind and severity",
	},
	[]string{"kind", "severity"},
)

// LockWaitSeconds records how long operations waited on the operation lock.
var LockWaitSeconds = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "attendance_lock_wait_seconds",
		Help:    "Time spent waiting to acquire the per-user operation lock",
		Buckets: prometheus.DefBuckets,
	},
)

// LockTimeoutsTotal counts bounded-wait expirations.
var LockTimeoutsTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "attendance_lock_timeouts_total",
		Help: "Total lock acquisitions that timed out",
	},
)

func init() {
	prometheus.MustRegister(VerdictsTotal, FraudSignalsTotal, LockWaitSeconds, LockTimeoutsTotal)
}
