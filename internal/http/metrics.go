package http

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// serverMetrics holds the Prometheus collectors for the API server.
type serverMetrics struct {
	registry *prometheus.Registry

	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	rateLimitHits   prometheus.Counter
	paymentsTotal   prometheus.Counter
	settledTotal    prometheus.Counter
}

func newServerMetrics() *serverMetrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &serverMetrics{
		registry: reg,
		requestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "casa_http_requests_total",
			Help: "HTTP requests by method, route pattern and status code.",
		}, []string{"method", "pattern", "status"}),
		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "casa_http_request_duration_seconds",
			Help:    "HTTP request latency by route pattern.",
			Buckets: prometheus.DefBuckets,
		}, []string{"pattern"}),
		rateLimitHits: factory.NewCounter(prometheus.CounterOpts{
			Name: "casa_rate_limit_hits_total",
			Help: "Requests rejected by the per-IP rate limiter.",
		}),
		paymentsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "casa_payments_recorded_total",
			Help: "Share payments recorded against shared expenses.",
		}),
		settledTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "casa_expenses_settled_total",
			Help: "Shared expenses fully settled by their last payment.",
		}),
	}
}

func (m *serverMetrics) handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *serverMetrics) observe(r *http.Request, status int, duration time.Duration) {
	pattern := routeLabel(r.URL.Path)
	m.requestsTotal.WithLabelValues(r.Method, pattern, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(pattern).Observe(duration.Seconds())
}

// routeLabel collapses resource IDs out of the path to keep the metric
// cardinality bounded.
func routeLabel(path string) string {
	segments := strings.Split(strings.Trim(path, "/"), "/")
	if len(segments) == 0 || segments[0] == "" {
		return "/"
	}
	if segments[0] != "api" {
		return "/" + segments[0]
	}
	if len(segments) < 2 {
		return "/api"
	}
	label := "/api/" + segments[1]
	if len(segments) > 2 {
		label += "/*"
	}
	return label
}
