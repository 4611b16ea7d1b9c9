package training

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("tensorvault.training")

var (
	jobsAcquired = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "tensorvault",
		Subsystem: "trainer",
		Name:      "jobs_acquired_total",
		Help:      "Training jobs claimed by trainer workers",
	})

	jobsFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tensorvault",
		Subsystem: "trainer",
		Name:      "jobs_finished_total",
		Help:      "Training jobs finished by outcome (completed, failed, released)",
	}, []string{"outcome"})

	cycleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "tensorvault",
		Subsystem: "trainer",
		Name:      "cycle_duration_seconds",
		Help:      "Duration of a single training cycle including persistence",
		Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
	})
)
