package observability

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics stores Prometheus collectors used by the dispatch and
// webhook flows.
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	emailsSentTotal     *prometheus.CounterVec
	emailsFailedTotal   *prometheus.CounterVec
	emailSendDuration   *prometheus.HistogramVec
	retryScheduledTotal *prometheus.CounterVec
	dispatchBatchSize   prometheus.Histogram
	webhookEventsTotal  *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "mailroom",
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests processed by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "mailroom",
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds by method and path.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		emailsSentTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "mailroom",
				Name:      "emails_sent_total",
				Help:      "Total number of emails accepted by the provider.",
			},
			[]string{"category"},
		),
		emailsFailedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "mailroom",
				Name:      "emails_failed_total",
				Help:      "Total number of queue items that reached terminal failed state.",
			},
			[]string{"category", "reason"},
		),
		emailSendDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "mailroom",
				Name:      "email_send_duration_seconds",
				Help:      "Provider send duration in seconds grouped by category.",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
			},
			[]string{"category"},
		),
		retryScheduledTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "mailroom",
				Name:      "retry_scheduled_total",
				Help:      "Total number of queue items returned to pending for retry.",
			},
			[]string{"category"},
		),
		dispatchBatchSize: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "mailroom",
				Name:      "dispatch_batch_size",
				Help:      "Number of queue items claimed per dispatch invocation.",
				Buckets:   prometheus.LinearBuckets(0, 5, 11),
			},
		),
		webhookEventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "mailroom",
				Name:      "webhook_events_total",
				Help:      "Total number of provider webhook events by type and outcome.",
			},
			[]string{"type", "outcome"},
		),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.emailsSentTotal,
		m.emailsFailedTotal,
		m.emailSendDuration,
		m.retryScheduledTotal,
		m.dispatchBatchSize,
		m.webhookEventsTotal,
	)

	return m
}

func (m *Metrics) Handler() http.Handler {
	if m == nil || m.registry == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) HTTPMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		path := routePath(c)
		// Avoid self-scrape noise for request counters.
		if path == "/metrics" {
			return err
		}

		m.recordHTTPRequest(c.Method(), path, statusFromResult(c, err), time.Since(start))
		return err
	}
}

func (m *Metrics) IncEmailSent(category string) {
	if m == nil {
		return
	}
	m.emailsSentTotal.WithLabelValues(normalizeCategory(category)).Inc()
}

func (m *Metrics) IncEmailFailed(category string, reason string) {
	if m == nil {
		return
	}
	reasonLabel := strings.TrimSpace(strings.ToLower(reason))
	if reasonLabel == "" {
		reasonLabel = "unknown"
	}
	m.emailsFailedTotal.WithLabelValues(normalizeCategory(category), reasonLabel).Inc()
}

func (m *Metrics) ObserveEmailSendDuration(category string, duration time.Duration) {
	if m == nil {
		return
	}
	seconds := duration.Seconds()
	if seconds < 0 {
		seconds = 0
	}
	m.emailSendDuration.WithLabelValues(normalizeCategory(category)).Observe(seconds)
}

func (m *Metrics) IncRetryScheduled(category string) {
	if m == nil {
		return
	}
	m.retryScheduledTotal.WithLabelValues(normalizeCategory(category)).Inc()
}

func (m *Metrics) ObserveDispatchBatchSize(size int) {
	if m == nil {
		return
	}
	if size < 0 {
		size = 0
	}
	m.dispatchBatchSize.Observe(float64(size))
}

func (m *Metrics) IncWebhookEvent(eventType string, outcome string) {
	if m == nil {
		return
	}
	typeLabel := strings.TrimSpace(strings.ToLower(eventType))
	if typeLabel == "" {
		typeLabel = "unknown"
	}
	outcomeLabel := strings.TrimSpace(strings.ToLower(outcome))
	if outcomeLabel == "" {
		outcomeLabel = "unknown"
	}
	m.webhookEventsTotal.WithLabelValues(typeLabel, outcomeLabel).Inc()
}

func (m *Metrics) recordHTTPRequest(method string, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}

	methodLabel := strings.ToUpper(strings.TrimSpace(method))
	if methodLabel == "" {
		methodLabel = "UNKNOWN"
	}
	pathLabel := strings.TrimSpace(path)
	if pathLabel == "" {
		pathLabel = "unmatched"
	}

	m.httpRequestsTotal.WithLabelValues(methodLabel, pathLabel, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(methodLabel, pathLabel).Observe(duration.Seconds())
}

func routePath(c *fiber.Ctx) string {
	if c == nil {
		return "unmatched"
	}

	if route := c.Route(); route != nil {
		if path := strings.TrimSpace(route.Path); path != "" {
			return path
		}
	}
	return "unmatched"
}

func statusFromResult(c *fiber.Ctx, err error) int {
	if err != nil {
		if fiberErr, ok := err.(*fiber.Error); ok {
			return fiberErr.Code
		}
		return fiber.StatusInternalServerError
	}

	if c == nil {
		return fiber.StatusOK
	}

	status := c.Response().StatusCode()
	if status == 0 {
		return fiber.StatusOK
	}
	return status
}

func normalizeCategory(category string) string {
	normalized := strings.ToLower(strings.TrimSpace(category))
	if normalized == "" {
		return "unknown"
	}
	return normalized
}
