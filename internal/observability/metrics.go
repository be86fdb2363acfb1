package observability

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "realtime_http_requests_total",
			Help: "Total number of HTTP requests processed by the realtime service.",
		},
		[]string{"method", "route", "status"},
	)
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "realtime_http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)
	streamActiveConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "realtime_stream_active_connections",
			Help: "Number of open event-stream connections.",
		},
	)
	streamEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "realtime_stream_events_total",
			Help: "Total number of stream lifecycle events.",
		},
		[]string{"event"},
	)
	envelopesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "realtime_envelopes_total",
			Help: "Total number of event envelopes handed to the registry.",
		},
		[]string{"type", "outcome"},
	)
	amqpPublishErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "realtime_amqp_publish_errors_total",
			Help: "Total number of AMQP publish errors.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestDuration,
		streamActiveConnections,
		streamEventsTotal,
		envelopesTotal,
		amqpPublishErrorsTotal,
	)
}

func HTTPMetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		status := c.Writer.Status()

		httpRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(status)).Inc()
		httpRequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}

func IncStreamActive() {
	streamActiveConnections.Inc()
}

func DecStreamActive() {
	streamActiveConnections.Dec()
}

func IncStreamEvent(event string) {
	streamEventsTotal.WithLabelValues(event).Inc()
}

// IncEnvelope records the fate of one envelope for one target: delivered,
// dropped (dead handle) or no_connection.
func IncEnvelope(eventType, outcome string) {
	envelopesTotal.WithLabelValues(eventType, outcome).Inc()
}

func IncAMQPPublishError() {
	amqpPublishErrorsTotal.Inc()
}
