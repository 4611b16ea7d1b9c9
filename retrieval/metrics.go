package retrieval

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("tensorvault.retrieval")

var (
	searches = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tensorvault",
		Subsystem: "retrieval",
		Name:      "searches_total",
		Help:      "Facade searches by kind (semantic, listing)",
	}, []string{"kind"})

	searchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "tensorvault",
		Subsystem: "retrieval",
		Name:      "search_duration_seconds",
		Help:      "Duration of semantic searches including query embedding",
		Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 8),
	})

	embeddingsGenerated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "tensorvault",
		Subsystem: "retrieval",
		Name:      "embeddings_generated_total",
		Help:      "Texts sent to the embedder",
	})

	resolutions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tensorvault",
		Subsystem: "retrieval",
		Name:      "resolutions_total",
		Help:      "Entity resolutions by outcome (default, best, composed)",
	}, []string{"outcome"})
)
