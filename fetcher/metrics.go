package fetcher

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for page fetches.
type Metrics struct {
	Registry        *prometheus.Registry
	RequestsTotal   *prometheus.CounterVec
	RequestDuration prometheus.Histogram
	BytesTotal      prometheus.Counter
	RetriesTotal    prometheus.Counter
	ErrorsTotal     *prometheus.CounterVec
}

// NewMetrics constructs the fetch metrics and registers them on registry.
// A nil registry gets a dedicated one.
func NewMetrics(registry *prometheus.Registry) *Metrics {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	requests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "seo_fetch_requests_total",
			Help: "Total page fetches by phase.",
		},
		[]string{"phase"},
	)
	requestDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "seo_fetch_request_duration_seconds",
			Help:    "Latency of page fetches.",
			Buckets: prometheus.DefBuckets,
		},
	)
	bytesTotal := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "seo_fetch_bytes_total",
			Help: "Total response bytes read by the fetcher.",
		},
	)
	retries := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "seo_fetch_retries_total",
			Help: "Total number of fetch retries.",
		},
	)
	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "seo_fetch_errors_total",
			Help: "Total number of fetch errors by type.",
		},
		[]string{"error_type"},
	)

	registry.MustRegister(requests, requestDuration, bytesTotal, retries, errorsTotal)

	return &Metrics{
		Registry:        registry,
		RequestsTotal:   requests,
		RequestDuration: requestDuration,
		BytesTotal:      bytesTotal,
		RetriesTotal:    retries,
		ErrorsTotal:     errorsTotal,
	}
}

// IncRequest increments the requests counter for phase.
func (m *Metrics) IncRequest(phase string) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(phase).Inc()
}

// ObserveResponse records the latency and size of a response.
func (m *Metrics) ObserveResponse(d time.Duration, size int) {
	if m == nil {
		return
	}
	m.RequestDuration.Observe(d.Seconds())
	m.BytesTotal.Add(float64(size))
}

// IncRetries increments the retries counter.
func (m *Metrics) IncRetries() {
	if m == nil {
		return
	}
	m.RetriesTotal.Inc()
}

// IncError increments the errors counter for a type label.
func (m *Metrics) IncError(errorType string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(errorType).Inc()
}
