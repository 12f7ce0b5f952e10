package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type HTTPServerMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	jobsSubmittedTotal *prometheus.CounterVec

	service string
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dpg",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "dpg",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "dpg",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	jobsSubmittedTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dpg",
			Subsystem: "gateway",
			Name:      "jobs_submitted_total",
			Help:      "Total parse jobs accepted by the API.",
		},
		[]string{"service"},
	)

	registry.MustRegister(requestTotal, requestDuration, requestInFlight, jobsSubmittedTotal)

	return &HTTPServerMetrics{
		registry:           registry,
		requestTotal:       requestTotal,
		requestDuration:    requestDuration,
		requestInFlight:    requestInFlight,
		jobsSubmittedTotal: jobsSubmittedTotal,
		service:            service,
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) JobSubmitted() {
	m.jobsSubmittedTotal.WithLabelValues(m.service).Inc()
}

// Middleware observes request counts and latency. Paths with embedded job
// ids are collapsed to a template to keep label cardinality flat.
func (m *HTTPServerMetrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		recorder := &metricsRecorder{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(recorder, r)

		path := normalizePath(r.URL.Path)
		m.requestTotal.WithLabelValues(m.service, r.Method, path, strconv.Itoa(recorder.statusCode)).Inc()
		m.requestDuration.WithLabelValues(m.service, r.Method, path).Observe(time.Since(start).Seconds())

		if r.Method == http.MethodPost && path == "/v1/documents" && recorder.statusCode == http.StatusAccepted {
			m.JobSubmitted()
		}
	})
}

func normalizePath(path string) string {
	if rest, ok := strings.CutPrefix(path, "/v1/documents/"); ok && rest != "" {
		if strings.HasSuffix(rest, "/markdown") {
			return "/v1/documents/{id}/markdown"
		}
		return "/v1/documents/{id}"
	}
	return path
}

type metricsRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *metricsRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}
