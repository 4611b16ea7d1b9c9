package badger

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	conflictRetries = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "tensorvault",
		Subsystem: "store",
		Name:      "conflict_retries_total",
		Help:      "Update transactions retried after an optimistic concurrency conflict",
	})

	tensorSaves = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tensorvault",
		Subsystem: "store",
		Name:      "tensor_saves_total",
		Help:      "Tensor writes by mode (save, lock, batch) and outcome",
	}, []string{"mode", "outcome"})

	jobAcquisitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tensorvault",
		Subsystem: "queue",
		Name:      "acquisitions_total",
		Help:      "Job acquisition attempts by outcome (won, lost)",
	}, []string{"outcome"})

	jobTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tensorvault",
		Subsystem: "queue",
		Name:      "transitions_total",
		Help:      "Job state transitions by target status",
	}, []string{"status"})

	staleJobsReleased = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "tensorvault",
		Subsystem: "queue",
		Name:      "stale_released_total",
		Help:      "Running jobs returned to pending by stale cleanup",
	})
)
