package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type HTTPServerMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	retrievalRequestsTotal  *prometheus.CounterVec
	retrievalCodesReturned  *prometheus.HistogramVec
	retrievalNoCodesTotal   *prometheus.CounterVec
	retrievalDuration       *prometheus.HistogramVec
	terminologyHitsTotal    *prometheus.CounterVec
	auditPublishFailedTotal *prometheus.CounterVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "coderag",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "coderag",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "coderag",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	retrievalRequestsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "coderag",
			Subsystem: "retrieval",
			Name:      "requests_total",
			Help:      "Total completed code retrieval requests.",
		},
		[]string{"service", "endpoint"},
	)
	retrievalCodesReturned := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "coderag",
			Subsystem: "retrieval",
			Name:      "codes_returned",
			Help:      "Distribution of codes returned per request by category.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 10, 15, 20},
		},
		[]string{"service", "category"},
	)
	retrievalNoCodesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "coderag",
			Subsystem: "retrieval",
			Name:      "no_codes_total",
			Help:      "Total retrieval requests yielding no codes in any category.",
		},
		[]string{"service", "endpoint"},
	)
	retrievalDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "coderag",
			Subsystem: "retrieval",
			Name:      "duration_seconds",
			Help:      "End-to-end retrieval pipeline duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "endpoint"},
	)
	terminologyHitsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "coderag",
			Subsystem: "retrieval",
			Name:      "terminology_hits_total",
			Help:      "Total returned codes whose description came from the terminology table.",
		},
		[]string{"service"},
	)
	auditPublishFailedTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "coderag",
			Subsystem: "audit",
			Name:      "publish_failed_total",
			Help:      "Total audit events that could not be published.",
		},
		[]string{"service"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		retrievalRequestsTotal,
		retrievalCodesReturned,
		retrievalNoCodesTotal,
		retrievalDuration,
		terminologyHitsTotal,
		auditPublishFailedTotal,
	)

	return &HTTPServerMetrics{
		registry:                registry,
		requestTotal:            requestTotal,
		requestDuration:         requestDuration,
		requestInFlight:         requestInFlight,
		retrievalRequestsTotal:  retrievalRequestsTotal,
		retrievalCodesReturned:  retrievalCodesReturned,
		retrievalNoCodesTotal:   retrievalNoCodesTotal,
		retrievalDuration:       retrievalDuration,
		terminologyHitsTotal:    terminologyHitsTotal,
		auditPublishFailedTotal: auditPublishFailedTotal,
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		path := r.URL.Path
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

func (m *HTTPServerMetrics) RecordRetrieval(service, endpoint string, icd10, cpt, hcpcs int, duration time.Duration) {
	m.retrievalRequestsTotal.WithLabelValues(service, endpoint).Inc()
	m.retrievalCodesReturned.WithLabelValues(service, "icd10").Observe(float64(icd10))
	m.retrievalCodesReturned.WithLabelValues(service, "cpt").Observe(float64(cpt))
	m.retrievalCodesReturned.WithLabelValues(service, "hcpcs").Observe(float64(hcpcs))
	m.retrievalDuration.WithLabelValues(service, endpoint).Observe(duration.Seconds())

	if icd10+cpt+hcpcs == 0 {
		m.retrievalNoCodesTotal.WithLabelValues(service, endpoint).Inc()
	}
}

func (m *HTTPServerMetrics) RecordTerminologyHits(service string, hits int) {
	if hits <= 0 {
		return
	}
	m.terminologyHitsTotal.WithLabelValues(service).Add(float64(hits))
}

func (m *HTTPServerMetrics) RecordAuditPublishFailure(service string) {
	m.auditPublishFailedTotal.WithLabelValues(service).Inc()
}

// statusRecorder captures the status code for labeling. JSON-only
// responses need no Flusher or Hijacker passthroughs.
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}
