// Package metrics owns the Prometheus registry of the HTTP service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	reg *prometheus.Registry

	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	panicsTotal     prometheus.Counter

	FailedLogins    prometheus.Counter
	Registrations   prometheus.Counter
	ScoresSubmitted prometheus.Counter
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return &Metrics{
		reg: reg,
		requests: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests by route and status code.",
		}, []string{"method", "route", "code"}),
		requestDuration: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.3, 0.6, 1, 3},
		}, []string{"method", "route"}),
		panicsTotal: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "http_req_panics_recovered_total",
			Help: "Total number of HTTP requests recovered from internal panic.",
		}),
		FailedLogins: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "failed_login_attempts_total",
			Help: "Total number of failed login attempts.",
		}),
		Registrations: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "quiz_registrations_total",
			Help: "Total number of registered users.",
		}),
		ScoresSubmitted: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "quiz_scores_submitted_total",
			Help: "Total number of submitted quiz scores.",
		}),
	}
}

// ObserveRequest records one finished request. route is the matched mux
// pattern, never the raw path, to keep label cardinality bounded.
func (m *Metrics) ObserveRequest(method, route string, code int, elapsed time.Duration) {
	m.requests.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	m.requestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

func (m *Metrics) PanicRecovered() {
	m.panicsTotal.Inc()
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{
		// Opt into OpenMetrics e.g. to support exemplars.
		EnableOpenMetrics: true,
	})
}
