package supabase

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records Supabase request counts and latencies.
type Metrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "sas_finance",
				Subsystem: "supabase",
				Name:      "requests_total",
				Help:      "Total number of requests sent to Supabase.",
			},
			[]string{"service", "method", "status"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "sas_finance",
				Subsystem: "supabase",
				Name:      "request_duration_seconds",
				Help:      "Duration of requests sent to Supabase.",
				Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
			},
			[]string{"service", "method"},
		),
	}

	if reg != nil {
		for _, c := range []prometheus.Collector{m.requests, m.duration} {
			if err := reg.Register(c); err != nil {
				return nil, err
			}
		}
	}

	return m, nil
}

// observe is a no-op on a nil receiver. Status 0 means the transport failed.
func (m *Metrics) observe(service, method string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	m.requests.WithLabelValues(service, method, label).Inc()
	m.duration.WithLabelValues(service, method).Observe(elapsed.Seconds())
}
