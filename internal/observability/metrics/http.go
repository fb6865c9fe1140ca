package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HTTPServerMetrics holds the api-process metrics on a dedicated
// registry so the /metrics endpoint exposes only what this service owns.
type HTTPServerMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	batchesAcceptedTotal *prometheus.CounterVec
	batchFiles           *prometheus.HistogramVec
	exportsTotal         *prometheus.CounterVec
	resolutionsTotal     *prometheus.CounterVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "intake",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "intake",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "intake",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	batchesAcceptedTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "intake",
			Subsystem: "ingest",
			Name:      "batches_accepted_total",
			Help:      "Total uploaded batches accepted for processing.",
		},
		[]string{"service"},
	)
	batchFiles := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "intake",
			Subsystem: "ingest",
			Name:      "batch_files",
			Help:      "Distribution of files per accepted batch.",
			Buckets:   []float64{1, 2, 3, 5, 10, 20, 50},
		},
		[]string{"service"},
	)
	exportsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "intake",
			Subsystem: "export",
			Name:      "downloads_total",
			Help:      "Total export downloads by format.",
		},
		[]string{"service", "format"},
	)
	resolutionsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "intake",
			Subsystem: "resolve",
			Name:      "actions_total",
			Help:      "Total manual resolution actions by kind.",
		},
		[]string{"service", "action"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		batchesAcceptedTotal,
		batchFiles,
		exportsTotal,
		resolutionsTotal,
	)

	return &HTTPServerMetrics{
		registry:             registry,
		requestTotal:         requestTotal,
		requestDuration:      requestDuration,
		requestInFlight:      requestInFlight,
		batchesAcceptedTotal: batchesAcceptedTotal,
		batchFiles:           batchFiles,
		exportsTotal:         exportsTotal,
		resolutionsTotal:     resolutionsTotal,
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		path := normalizePath(r.URL.Path)
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		m.requestTotal.WithLabelValues(
			service,
			r.Method,
			path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(service, r.Method, path).Observe(time.Since(start).Seconds())
	})
}

// normalizePath collapses document ids so the path label stays bounded.
func normalizePath(path string) string {
	switch {
	case path == "/v1/documents/merge":
		return path
	case strings.HasPrefix(path, "/v1/documents/"):
		rest := strings.TrimPrefix(path, "/v1/documents/")
		if _, action, ok := strings.Cut(rest, "/"); ok && action != "" {
			return "/v1/documents/{document_id}/" + action
		}
		return "/v1/documents/{document_id}"
	default:
		return path
	}
}

func (m *HTTPServerMetrics) RecordBatchAccepted(service string, files int) {
	m.batchesAcceptedTotal.WithLabelValues(service).Inc()
	m.batchFiles.WithLabelValues(service).Observe(float64(files))
}

func (m *HTTPServerMetrics) RecordExport(service, format string) {
	if format == "" {
		format = "unknown"
	}
	m.exportsTotal.WithLabelValues(service, format).Inc()
}

func (m *HTTPServerMetrics) RecordResolution(service, action string) {
	if action == "" {
		action = "unknown"
	}
	m.resolutionsTotal.WithLabelValues(service, action).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Flush() {
	flusher, ok := w.ResponseWriter.(http.Flusher)
	if ok {
		flusher.Flush()
	}
}

func (w *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not implement http.Hijacker")
	}
	return hijacker.Hijack()
}

func (w *statusRecorder) Push(target string, opts *http.PushOptions) error {
	pusher, ok := w.ResponseWriter.(http.Pusher)
	if !ok {
		return http.ErrNotSupported
	}
	return pusher.Push(target, opts)
}
