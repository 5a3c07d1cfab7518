package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// OperationsTotal counts executed collection operations (get, insert, update, delete, save).
	OperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bunjson_operations_total",
			Help: "Total number of collection operations",
		},
		[]string{"operation", "status"},
	)
	// DocumentsAffected counts documents written or removed by mutating operations.
	DocumentsAffected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bunjson_documents_affected_total",
			Help: "Total number of documents affected by mutating operations",
		},
		[]string{"operation"},
	)
	// DocumentsStored is the number of records in a collection file after its last load or write.
	DocumentsStored = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "bunjson_documents_stored",
			Help: "Number of documents in the collection file",
		},
		[]string{"collection"},
	)
	// PersistDuration is the latency of full backing file rewrites.
	PersistDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "bunjson_persist_duration_seconds",
			Help:    "Backing file rewrite latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)
	// LoadDuration is the latency of backing file reads.
	LoadDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "bunjson_load_duration_seconds",
			Help:    "Backing file load latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)
)

// ObserveOperation records the outcome of one operation
func ObserveOperation(operation string, affected int, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	OperationsTotal.WithLabelValues(operation, status).Inc()
	if err == nil && affected > 0 {
		DocumentsAffected.WithLabelValues(operation).Add(float64(affected))
	}
}

// Since observes the time elapsed since start on h
func Since(h prometheus.Observer, start time.Time) {
	h.Observe(time.Since(start).Seconds())
}
