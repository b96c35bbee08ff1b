package metrics

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "http_in_flight_requests",
		Help: "In-flight HTTP requests.",
	})

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	// ApplicationTransitions counts approval workflow actions.
	ApplicationTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "comcin_application_transitions_total",
			Help: "Institution application transitions by action.",
		},
		[]string{"action"},
	)

	// PaymentsRecorded counts payment submissions by method and outcome.
	PaymentsRecorded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "comcin_payments_recorded_total",
			Help: "Payment transactions recorded by method and outcome.",
		},
		[]string{"method", "outcome"},
	)

	// NotificationFailures counts notifications that could not be stored.
	NotificationFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "comcin_notifications_failed_total",
		Help: "Notifications dropped after a persistence error.",
	})

	// MailFailures counts outbound emails that failed to send.
	MailFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "comcin_mail_failed_total",
		Help: "Emails that could not be delivered to the mail provider.",
	})
)

func init() {
	prometheus.MustRegister(
		httpInFlight,
		httpRequestsTotal,
		httpRequestDuration,
		ApplicationTransitions,
		PaymentsRecorded,
		NotificationFailures,
		MailFailures,
	)
}

// Handler serves the Prometheus registry through Fiber.
func Handler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}

// Middleware records request count, latency and in-flight gauge per route.
func Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		httpInFlight.Inc()
		defer httpInFlight.Dec()

		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			if fe, ok := err.(*fiber.Error); ok {
				status = fe.Code
			} else {
				status = fiber.StatusInternalServerError
			}
		}

		route := c.Route().Path
		labels := []string{c.Method(), route, strconv.Itoa(status)}
		httpRequestDuration.WithLabelValues(labels...).Observe(time.Since(start).Seconds())
		httpRequestsTotal.WithLabelValues(labels...).Inc()
		return err
	}
}
