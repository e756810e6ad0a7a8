package observability

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Validation outcomes recorded by the inbound authenticator.
const (
	OutcomeAuthenticated = "authenticated"
	OutcomeAnonymous     = "anonymous"
	OutcomeRejected      = "rejected"
	OutcomeError         = "error"
)

// Metrics collects Prometheus series for both services. A nil *Metrics is a no-op.
type Metrics struct {
	requests           *prometheus.CounterVec
	requestDuration    *prometheus.HistogramVec
	errors             *prometheus.CounterVec
	validations        *prometheus.CounterVec
	validationDuration *prometheus.HistogramVec
	gatherer           prometheus.Gatherer
}

// NewMetrics registers all series on reg. Pass prometheus.NewRegistry() in tests.
func NewMetrics(namespace string, reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route, method and status.",
		}, []string{"route", "method", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_errors_total",
			Help:      "Errors rendered by the error middleware, by code.",
		}, []string{"route", "method", "code"}),
		validations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_validation_total",
			Help:      "Token validation outcomes by transport.",
		}, []string{"transport", "outcome"}),
		validationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "auth_validation_duration_seconds",
			Help:      "Latency of token validation calls.",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}, []string{"transport"}),
		gatherer: reg,
	}

	reg.MustRegister(m.requests, m.requestDuration, m.errors, m.validations, m.validationDuration)
	return m
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(route, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(route, method).Observe(duration.Seconds())
}

// RecordError increments error counters.
func (m *Metrics) RecordError(route, method, code string) {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(route, method, code).Inc()
}

// RecordValidation records one authenticator decision.
func (m *Metrics) RecordValidation(transport, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.validations.WithLabelValues(transport, outcome).Inc()
	if duration > 0 {
		m.validationDuration.WithLabelValues(transport).Observe(duration.Seconds())
	}
}

// Handler exposes the registry for scraping.
func (m *Metrics) Handler() fiber.Handler {
	if m == nil {
		return func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusNotFound) }
	}
	return adaptor.HTTPHandler(promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{}))
}
