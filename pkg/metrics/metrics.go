package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the application metrics outside the HTTP layer.
type Metrics struct {
	// Pipeline metrics
	PipelineEvents   *prometheus.CounterVec
	PipelineFailures *prometheus.CounterVec
	Publishes        *prometheus.CounterVec

	// File cleanup metrics
	CleanupEnqueued          prometheus.Counter
	CleanupProcessed         prometheus.Counter
	CleanupFailed            prometheus.Counter
	CleanupRetries           prometheus.Counter
	CleanupQueueSize         prometheus.Gauge
	CleanupProcessingLatency prometheus.Histogram

	// Database metrics
	DatabaseOperations *prometheus.CounterVec
}

// NewMetrics creates the application metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer, namespace string) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		PipelineEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "events_total",
			Help:      "Total number of pipeline events handled",
		}, []string{"event"}),
		PipelineFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "failures_total",
			Help:      "Total number of pipeline side-effect failures",
		}, []string{"event", "stage"}),
		Publishes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "publishes_total",
			Help:      "Total number of notification publishes to the broker",
		}, []string{"status"}),

		CleanupEnqueued: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "file_cleanup",
			Name:      "enqueued_total",
			Help:      "Total number of file releases queued for retry",
		}),
		CleanupProcessed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "file_cleanup",
			Name:      "processed_total",
			Help:      "Total number of queued files successfully deleted",
		}),
		CleanupFailed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "file_cleanup",
			Name:      "failed_total",
			Help:      "Total number of queued files given up on",
		}),
		CleanupRetries: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "file_cleanup",
			Name:      "retry_attempts_total",
			Help:      "Total number of failed delete attempts that will be retried",
		}),
		CleanupQueueSize: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "file_cleanup",
			Name:      "queue_size",
			Help:      "Number of files in the last claimed batch",
		}),
		CleanupProcessingLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "file_cleanup",
			Name:      "processing_duration_seconds",
			Help:      "Time spent processing a cleanup batch",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}),

		DatabaseOperations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "database_operations_total",
			Help:      "Total number of database operations",
		}, []string{"operation", "status"}),
	}
}

// NewNop returns metrics registered on a throwaway registry, for tests and tools.
func NewNop() *Metrics {
	return NewMetrics(prometheus.NewRegistry(), "medtrack")
}
