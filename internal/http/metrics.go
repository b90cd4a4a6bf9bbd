package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns a private registry so several servers (as in tests) can
// coexist in one process.
type Metrics struct {
	registry *prometheus.Registry

	requests         *prometheus.CounterVec
	duration         *prometheus.HistogramVec
	expenseMutations *prometheus.CounterVec
	groupMutations   *prometheus.CounterVec
	rateLimited      prometheus.Counter
	suspicious       *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "code"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency by method and route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		expenseMutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "expenses_mutations_total",
			Help: "Successful expense mutations by operation.",
		}, []string{"op"}),
		groupMutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "groups_mutations_total",
			Help: "Successful group mutations by operation.",
		}, []string{"op"}),
		rateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rate_limited_requests_total",
			Help: "Requests rejected by the per-client rate limiter.",
		}),
		suspicious: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "suspicious_requests_total",
			Help: "Requests flagged as probes, by reason.",
		}, []string{"reason"}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requests,
		m.duration,
		m.expenseMutations,
		m.groupMutations,
		m.rateLimited,
		m.suspicious,
	)
	return m
}

// ObserveRequest records one finished request under its route pattern.
func (m *Metrics) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	m.requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.duration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

func (m *Metrics) ExpenseMutation(op string) { m.expenseMutations.WithLabelValues(op).Inc() }
func (m *Metrics) GroupMutation(op string)   { m.groupMutations.WithLabelValues(op).Inc() }
func (m *Metrics) RateLimited()              { m.rateLimited.Inc() }
func (m *Metrics) Suspicious(reason string)  { m.suspicious.WithLabelValues(reason).Inc() }

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
