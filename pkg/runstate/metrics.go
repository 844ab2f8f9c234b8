package runstate

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// LockContended counts runs that found the lock already held.
	LockContended = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "client_export_lock_contended_total",
			Help: "Total number of export runs refused because another run held the lock",
		},
	)

	// StoreErrors tracks run state operation errors
	StoreErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "client_export_runstate_errors_total",
			Help: "Total number of run state operation errors",
		},
		[]string{"operation"}, // "lock", "unlock", "record", "last_run"
	)
)
