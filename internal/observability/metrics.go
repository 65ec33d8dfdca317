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
			Name: "chatlink_http_requests_total",
			Help: "Total number of HTTP requests processed by the chatlink service.",
		},
		[]string{"method", "route", "status"},
	)
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chatlink_http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)
	webhookEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatlink_webhook_events_total",
			Help: "Total number of Telegram webhook events by outcome.",
		},
		[]string{"event"},
	)
	linkIntentsIssuedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chatlink_link_intents_issued_total",
			Help: "Total number of link intents created or reused.",
		},
	)
	linksCompletedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chatlink_links_completed_total",
			Help: "Total number of chats successfully linked to a project.",
		},
	)
	intentsExpiredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chatlink_intents_expired_total",
			Help: "Total number of link intents expired by the sweeper.",
		},
	)
	tokenExhaustedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chatlink_token_generation_exhausted_total",
			Help: "Total number of fatal token-generation failures. Any increase should page.",
		},
	)
	wsActiveConnections = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "chatlink_ws_active_connections",
			Help: "Number of active websocket connections.",
		},
		[]string{"kind"},
	)
	wsEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatlink_ws_events_total",
			Help: "Total number of websocket events.",
		},
		[]string{"kind", "event"},
	)
	amqpPublishErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chatlink_amqp_publish_errors_total",
			Help: "Total number of AMQP publish errors.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestDuration,
		webhookEventsTotal,
		linkIntentsIssuedTotal,
		linksCompletedTotal,
		intentsExpiredTotal,
		tokenExhaustedTotal,
		wsActiveConnections,
		wsEventsTotal,
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

func IncWebhookEvent(event string) {
	webhookEventsTotal.WithLabelValues(event).Inc()
}

func IncIntentIssued() {
	linkIntentsIssuedTotal.Inc()
}

func IncLinkCompleted() {
	linksCompletedTotal.Inc()
}

func AddIntentsExpired(n int64) {
	intentsExpiredTotal.Add(float64(n))
}

func IncTokenExhausted() {
	tokenExhaustedTotal.Inc()
}

func IncWSActive(kind string) {
	wsActiveConnections.WithLabelValues(kind).Inc()
}

func DecWSActive(kind string) {
	wsActiveConnections.WithLabelValues(kind).Dec()
}

func IncWSEvent(kind, event string) {
	wsEventsTotal.WithLabelValues(kind, event).Inc()
}

func IncAMQPPublishError() {
	amqpPublishErrorsTotal.Inc()
}
