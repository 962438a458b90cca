package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type WorkerMetrics struct {
	registry *prometheus.Registry

	extractTotal    *prometheus.CounterVec
	extractDuration *prometheus.HistogramVec
	extractInFlight prometheus.Gauge
	recordOutcomes  *prometheus.CounterVec
	mergeOutcomes   *prometheus.CounterVec
	queueLag        *prometheus.HistogramVec
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	registry := prometheus.NewRegistry()

	extractTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vis",
			Subsystem: "worker",
			Name:      "document_extract_total",
			Help:      "Total extraction runs by status.",
		},
		[]string{"service", "status"},
	)
	extractDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "vis",
			Subsystem: "worker",
			Name:      "document_extract_duration_seconds",
			Help:      "Extraction run duration in seconds by status.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "status"},
	)
	extractInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "vis",
			Subsystem: "worker",
			Name:      "document_extract_in_flight",
			Help:      "Number of in-flight extraction runs.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	recordOutcomes := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vis",
			Subsystem: "worker",
			Name:      "extracted_record_outcomes_total",
			Help:      "Per-row extraction outcomes: inserted, skipped, rejected, errored.",
		},
		[]string{"service", "outcome"},
	)
	mergeOutcomes := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vis",
			Subsystem: "worker",
			Name:      "chatter_merge_outcomes_total",
			Help:      "Per-item chatter merge outcomes: inserted, skipped, errored.",
		},
		[]string{"service", "origin", "outcome"},
	)
	queueLag := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "vis",
			Subsystem: "worker",
			Name:      "queue_lag_seconds",
			Help:      "Delay between document registration and extraction start.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"service"},
	)

	registry.MustRegister(extractTotal, extractDuration, extractInFlight, recordOutcomes, mergeOutcomes, queueLag)

	return &WorkerMetrics{
		registry:        registry,
		extractTotal:    extractTotal,
		extractDuration: extractDuration,
		extractInFlight: extractInFlight,
		recordOutcomes:  recordOutcomes,
		mergeOutcomes:   mergeOutcomes,
		queueLag:        queueLag,
	}
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *WorkerMetrics) StartExtraction() {
	m.extractInFlight.Inc()
}

func (m *WorkerMetrics) FinishExtraction(service string, duration time.Duration, err error) {
	m.extractInFlight.Dec()

	status := "success"
	if err != nil {
		status = "error"
	}

	m.extractTotal.WithLabelValues(service, status).Inc()
	m.extractDuration.WithLabelValues(service, status).Observe(duration.Seconds())
}

func (m *WorkerMetrics) RecordExtractionCounts(service string, inserted, skipped, rejected, errored int) {
	m.recordOutcomes.WithLabelValues(service, "inserted").Add(float64(inserted))
	m.recordOutcomes.WithLabelValues(service, "skipped").Add(float64(skipped))
	m.recordOutcomes.WithLabelValues(service, "rejected").Add(float64(rejected))
	m.recordOutcomes.WithLabelValues(service, "errored").Add(float64(errored))
}

func (m *WorkerMetrics) RecordMergeCounts(service, origin string, inserted, skipped, errored int) {
	m.mergeOutcomes.WithLabelValues(service, origin, "inserted").Add(float64(inserted))
	m.mergeOutcomes.WithLabelValues(service, origin, "skipped").Add(float64(skipped))
	m.mergeOutcomes.WithLabelValues(service, origin, "errored").Add(float64(errored))
}

func (m *WorkerMetrics) ObserveQueueLag(service string, lag time.Duration) {
	if lag < 0 {
		return
	}
	m.queueLag.WithLabelValues(service).Observe(lag.Seconds())
}
