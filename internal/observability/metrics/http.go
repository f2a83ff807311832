package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// APIMetrics is the api binary's registry: HTTP server metrics plus the
// domain counters recorded by the handlers. Ingestion runs synchronously
// inside upload requests, so its pipeline metrics live here too.
type APIMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	ingestTotal    *prometheus.CounterVec
	ingestChunks   *prometheus.HistogramVec
	ingestDuration *prometheus.HistogramVec

	chatTotal    *prometheus.CounterVec
	chatSources  *prometheus.HistogramVec
	chatDuration *prometheus.HistogramVec

	sessionsStartedTotal *prometheus.CounterVec
	assessmentsTotal     *prometheus.CounterVec
}

func NewAPIMetrics(service string) *APIMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "neuromon",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "neuromon",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "neuromon",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)

	ingestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "neuromon",
			Subsystem: "ingest",
			Name:      "reports_total",
			Help:      "Total report ingestion attempts by outcome.",
		},
		[]string{"service", "status"},
	)
	ingestChunks := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "neuromon",
			Subsystem: "ingest",
			Name:      "report_chunks",
			Help:      "Distribution of indexed chunks per successful report.",
			Buckets:   []float64{1, 2, 5, 10, 20, 50, 100, 200},
		},
		[]string{"service"},
	)
	ingestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "neuromon",
			Subsystem: "ingest",
			Name:      "report_duration_seconds",
			Help:      "Report pipeline duration in seconds by outcome.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"service", "status"},
	)

	chatTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "neuromon",
			Subsystem: "chat",
			Name:      "queries_total",
			Help:      "Total answered chat queries by triaged risk level.",
		},
		[]string{"service", "risk_level"},
	)
	chatSources := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "neuromon",
			Subsystem: "chat",
			Name:      "retrieved_sources",
			Help:      "Distribution of source documents attributed per answer.",
			Buckets:   []float64{0, 1, 2, 3, 4, 5, 6, 8},
		},
		[]string{"service"},
	)
	chatDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "neuromon",
			Subsystem: "chat",
			Name:      "query_duration_seconds",
			Help:      "Chat query duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service"},
	)

	sessionsStartedTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "neuromon",
			Subsystem: "monitoring",
			Name:      "sessions_started_total",
			Help:      "Total monitoring sessions started.",
		},
		[]string{"service"},
	)
	assessmentsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "neuromon",
			Subsystem: "monitoring",
			Name:      "assessments_total",
			Help:      "Total session assessments served by risk level.",
		},
		[]string{"service", "risk_level"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		ingestTotal,
		ingestChunks,
		ingestDuration,
		chatTotal,
		chatSources,
		chatDuration,
		sessionsStartedTotal,
		assessmentsTotal,
	)

	return &APIMetrics{
		registry:             registry,
		requestTotal:         requestTotal,
		requestDuration:      requestDuration,
		requestInFlight:      requestInFlight,
		ingestTotal:          ingestTotal,
		ingestChunks:         ingestChunks,
		ingestDuration:       ingestDuration,
		chatTotal:            chatTotal,
		chatSources:          chatSources,
		chatDuration:         chatDuration,
		sessionsStartedTotal: sessionsStartedTotal,
		assessmentsTotal:     assessmentsTotal,
	}
}

func (m *APIMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *APIMetrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		// ServeMux fills in the matched pattern during dispatch; falling
		// back to the raw path covers rejections upstream of the mux.
		path := r.Pattern
		if path == "" {
			path = r.URL.Path
		}

		m.requestTotal.WithLabelValues(
			service,
			r.Method,
			path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(service, r.Method, path).Observe(time.Since(start).Seconds())
	})
}

// RecordIngest counts one ingestion attempt; status is the upload record
// status, or "error" when the attempt failed before producing a record.
func (m *APIMetrics) RecordIngest(service, status string, chunks int, duration time.Duration) {
	if status == "" {
		status = "unknown"
	}
	m.ingestTotal.WithLabelValues(service, status).Inc()
	m.ingestDuration.WithLabelValues(service, status).Observe(duration.Seconds())
	if chunks > 0 {
		m.ingestChunks.WithLabelValues(service).Observe(float64(chunks))
	}
}

func (m *APIMetrics) RecordChat(service, riskLevel string, sources int, duration time.Duration) {
	if riskLevel == "" {
		riskLevel = "unknown"
	}
	m.chatTotal.WithLabelValues(service, riskLevel).Inc()
	m.chatSources.WithLabelValues(service).Observe(float64(sources))
	m.chatDuration.WithLabelValues(service).Observe(duration.Seconds())
}

func (m *APIMetrics) RecordSessionStarted(service string) {
	m.sessionsStartedTotal.WithLabelValues(service).Inc()
}

func (m *APIMetrics) RecordAssessment(service, riskLevel string) {
	if riskLevel == "" {
		riskLevel = "unknown"
	}
	m.assessmentsTotal.WithLabelValues(service, riskLevel).Inc()
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
