package backend

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records backend call counts and latency per endpoint.
type Metrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewMetrics registers backend collectors against registerer.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fixline_backend_requests_total",
		Help: "Backend API calls partitioned by endpoint and status code.",
	}, []string{"endpoint", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "fixline_backend_request_duration_seconds",
		Help:    "Backend API call latency per endpoint.",
		Buckets: prometheus.DefBuckets,
	}, []string{"endpoint"})
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	registerer.MustRegister(requests, duration)
	return &Metrics{requests: requests, duration: duration}
}

func (m *Metrics) observe(endpoint, code string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(endpoint, code).Inc()
	m.duration.WithLabelValues(endpoint).Observe(elapsed.Seconds())
}
