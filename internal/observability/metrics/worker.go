package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/zoesolar/intake/internal/core/domain"
)

// WorkerMetrics covers the batch-processing side: batches in flight,
// per-document outcomes and the lag between upload and processing start.
type WorkerMetrics struct {
	registry *prometheus.Registry

	batchTotal    *prometheus.CounterVec
	batchDuration *prometheus.HistogramVec
	batchInFlight prometheus.Gauge
	documentTotal *prometheus.CounterVec
	queueLag      *prometheus.HistogramVec
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	registry := prometheus.NewRegistry()

	batchTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "intake",
			Subsystem: "worker",
			Name:      "batch_process_total",
			Help:      "Total processed batches by outcome.",
		},
		[]string{"service", "outcome"},
	)
	batchDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "intake",
			Subsystem: "worker",
			Name:      "batch_process_duration_seconds",
			Help:      "Batch processing duration in seconds by outcome.",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"service", "outcome"},
	)
	batchInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "intake",
			Subsystem: "worker",
			Name:      "batch_process_in_flight",
			Help:      "Number of batches currently being processed.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	documentTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "intake",
			Subsystem: "worker",
			Name:      "document_process_total",
			Help:      "Total processed documents by final status.",
		},
		[]string{"service", "status"},
	)
	queueLag := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "intake",
			Subsystem: "worker",
			Name:      "queue_lag_seconds",
			Help:      "Delay between batch upload and processing start.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"service"},
	)

	registry.MustRegister(batchTotal, batchDuration, batchInFlight, documentTotal, queueLag)

	return &WorkerMetrics{
		registry:      registry,
		batchTotal:    batchTotal,
		batchDuration: batchDuration,
		batchInFlight: batchInFlight,
		documentTotal: documentTotal,
		queueLag:      queueLag,
	}
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *WorkerMetrics) StartBatch() {
	m.batchInFlight.Inc()
}

func (m *WorkerMetrics) FinishBatch(service string, duration time.Duration, summary *domain.BatchSummary, err error) {
	m.batchInFlight.Dec()

	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.batchTotal.WithLabelValues(service, outcome).Inc()
	m.batchDuration.WithLabelValues(service, outcome).Observe(duration.Seconds())

	if summary == nil {
		return
	}
	m.addDocuments(service, string(domain.StatusCompleted), summary.Completed)
	m.addDocuments(service, string(domain.StatusReviewNeeded), summary.Review)
	m.addDocuments(service, string(domain.StatusError), summary.Errors)
	m.addDocuments(service, string(domain.StatusDuplicate), summary.Duplicates)
	m.addDocuments(service, string(domain.StatusPrivate), summary.Private)
}

func (m *WorkerMetrics) addDocuments(service, status string, n int) {
	if n <= 0 {
		return
	}
	m.documentTotal.WithLabelValues(service, status).Add(float64(n))
}

func (m *WorkerMetrics) ObserveQueueLag(service string, lag time.Duration) {
	if lag < 0 {
		return
	}
	m.queueLag.WithLabelValues(service).Observe(lag.Seconds())
}
