package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2},
		},
		[]string{"method", "route"},
	)

	ConnectionRequestsCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "connection_requests_created_total",
			Help: "Connection requests successfully created",
		},
	)

	ConnectionTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "connection_transitions_total",
			Help: "Applied connection request transitions by resulting state",
		},
		[]string{"status", "connection_status"},
	)

	ConnectionConflicts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "connection_conflicts_total",
			Help: "Connection operations refused because state changed or the pair was taken",
		},
		[]string{"op"},
	)

	MessagesSent = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "messages_sent_total",
			Help: "Messages stored after passing the gate",
		},
	)

	ContentFilterHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "content_filter_hits_total",
			Help: "Redacted spans by kind",
		},
		[]string{"kind"},
	)

	GateDenials = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "message_gate_denials_total",
			Help: "Message gate denials by reason",
		},
		[]string{"reason"},
	)
)

var once sync.Once

// Init registers every collector with the default registry. Safe to call
// more than once.
func Init() {
	once.Do(func() {
		prometheus.MustRegister(
			RequestCounter,
			RequestDuration,
			ConnectionRequestsCreated,
			ConnectionTransitions,
			ConnectionConflicts,
			MessagesSent,
			ContentFilterHits,
			GateDenials,
		)
	})
}

// Middleware records request counts and latency per route pattern.
func Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		route := c.Route().Path
		status := c.Response().StatusCode()
		if err != nil {
			if fe, ok := err.(*fiber.Error); ok {
				status = fe.Code
			}
		}

		RequestCounter.WithLabelValues(c.Method(), route, strconv.Itoa(status)).Inc()
		RequestDuration.WithLabelValues(c.Method(), route).Observe(time.Since(start).Seconds())
		return err
	}
}

func Handler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
