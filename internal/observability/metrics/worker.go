package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type WorkerMetrics struct {
	registry *prometheus.Registry

	processTotal     *prometheus.CounterVec
	processDuration  *prometheus.HistogramVec
	processInFlight  prometheus.Gauge
	queueLag         *prometheus.HistogramVec
	creditsUsedTotal *prometheus.CounterVec
	pagesParsedTotal *prometheus.CounterVec
	cacheHitTotal    *prometheus.CounterVec
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	registry := prometheus.NewRegistry()

	processTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dpg",
			Subsystem: "worker",
			Name:      "job_process_total",
			Help:      "Total processed parse jobs by status.",
		},
		[]string{"service", "status"},
	)
	processDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "dpg",
			Subsystem: "worker",
			Name:      "job_process_duration_seconds",
			Help:      "Parse job processing duration in seconds by status.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"service", "status"},
	)
	processInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "dpg",
			Subsystem: "worker",
			Name:      "job_process_in_flight",
			Help:      "Number of in-flight parse jobs.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	queueLag := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "dpg",
			Subsystem: "worker",
			Name:      "queue_lag_seconds",
			Help:      "Delay between job submission and processing start.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"service"},
	)
	creditsUsedTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dpg",
			Subsystem: "worker",
			Name:      "credits_used_total",
			Help:      "Total parsing credits billed by the remote service.",
		},
		[]string{"service"},
	)
	pagesParsedTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dpg",
			Subsystem: "worker",
			Name:      "pages_parsed_total",
			Help:      "Total pages parsed.",
		},
		[]string{"service"},
	)
	cacheHitTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dpg",
			Subsystem: "worker",
			Name:      "remote_cache_hit_total",
			Help:      "Jobs the remote service answered from its cache.",
		},
		[]string{"service"},
	)

	registry.MustRegister(processTotal, processDuration, processInFlight, queueLag, creditsUsedTotal, pagesParsedTotal, cacheHitTotal)

	return &WorkerMetrics{
		registry:         registry,
		processTotal:     processTotal,
		processDuration:  processDuration,
		processInFlight:  processInFlight,
		queueLag:         queueLag,
		creditsUsedTotal: creditsUsedTotal,
		pagesParsedTotal: pagesParsedTotal,
		cacheHitTotal:    cacheHitTotal,
	}
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *WorkerMetrics) StartJob() {
	m.processInFlight.Inc()
}

func (m *WorkerMetrics) FinishJob(service string, duration time.Duration, err error) {
	m.processInFlight.Dec()

	status := "success"
	if err != nil {
		status = "error"
	}

	m.processTotal.WithLabelValues(service, status).Inc()
	m.processDuration.WithLabelValues(service, status).Observe(duration.Seconds())
}

func (m *WorkerMetrics) ObserveQueueLag(service string, lag time.Duration) {
	if lag < 0 {
		return
	}
	m.queueLag.WithLabelValues(service).Observe(lag.Seconds())
}

func (m *WorkerMetrics) ObserveUsage(service string, credits float64, pages int, cacheHit bool) {
	if credits > 0 {
		m.creditsUsedTotal.WithLabelValues(service).Add(credits)
	}
	if pages > 0 {
		m.pagesParsedTotal.WithLabelValues(service).Add(float64(pages))
	}
	if cacheHit {
		m.cacheHitTotal.WithLabelValues(service).Inc()
	}
}
