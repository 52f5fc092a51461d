package transport

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics instruments the API client with prometheus collectors.
type Metrics struct {
	inFlight prometheus.Gauge
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func NewMetrics(registerer prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "postctl",
			Subsystem: "api_client",
			Name:      "in_flight_requests",
			Help:      "Requests to the API that have not received a response yet.",
		}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "postctl",
			Subsystem: "api_client",
			Name:      "requests_total",
			Help:      "Requests sent to the API by status code and method.",
		}, []string{"code", "method"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "postctl",
			Subsystem: "api_client",
			Name:      "request_duration_seconds",
			Help:      "Latency of requests sent to the API.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
	}
	for _, collector := range []prometheus.Collector{m.inFlight, m.requests, m.duration} {
		err := registerer.Register(collector)
		if err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) Middleware() Middleware {
	return func(next http.RoundTripper) http.RoundTripper {
		return promhttp.InstrumentRoundTripperInFlight(
			m.inFlight,
			promhttp.InstrumentRoundTripperCounter(
				m.requests,
				promhttp.InstrumentRoundTripperDuration(m.duration, next),
			),
		)
	}
}
