package access

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	decisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tensorvault",
		Subsystem: "access",
		Name:      "decisions_total",
		Help:      "Enforce decisions by action and outcome (allow, deny)",
	}, []string{"action", "outcome"})

	membershipLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tensorvault",
		Subsystem: "access",
		Name:      "membership_lookups_total",
		Help:      "Group membership lookups by cache result (hit, miss)",
	}, []string{"result"})

	apiThrottled = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "tensorvault",
		Subsystem: "access",
		Name:      "api_throttled_total",
		Help:      "API requests rejected by the per-tensor rate limit",
	})
)
