package metrics

import (
	"runtime"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	globalMetrics *Metrics
	globalMu      sync.RWMutex
)

// Metrics holds all Prometheus metrics for the broadcast service.
type Metrics struct {
	WebhooksReceivedTotal    *prometheus.CounterVec
	BroadcastsSentTotal      prometheus.Counter
	BroadcastRecipientsTotal *prometheus.CounterVec
	DeliveryCallbacksTotal   *prometheus.CounterVec
	LinkRedirectsTotal       *prometheus.CounterVec

	// API metrics
	APIRequestsTotal          *prometheus.CounterVec
	APIRequestDurationSeconds *prometheus.HistogramVec
	APIErrorsTotal            *prometheus.CounterVec

	// System metrics
	UptimeSeconds prometheus.Gauge
	Goroutines    prometheus.Gauge

	startTime time.Time
	registry  *prometheus.Registry
}

// New creates a new Metrics instance with all metrics registered.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		WebhooksReceivedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sanctuary_webhooks_received_total",
				Help: "Total number of inbound SMS and delivery-status webhooks received",
			},
			[]string{"kind"},
		),
		BroadcastsSentTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "sanctuary_broadcasts_sent_total",
				Help: "Total number of broadcast sends initiated",
			},
		),
		BroadcastRecipientsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sanctuary_broadcast_recipients_total",
				Help: "Total number of per-recipient broadcast send attempts",
			},
			[]string{"outcome"},
		),
		DeliveryCallbacksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sanctuary_delivery_callbacks_total",
				Help: "Total number of provider delivery-status callbacks processed",
			},
			[]string{"status"},
		),
		LinkRedirectsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sanctuary_link_redirects_total",
				Help: "Total number of short-link redirect lookups",
			},
			[]string{"outcome"},
		),

		APIRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sanctuary_api_requests_total",
				Help: "Total number of API requests",
			},
			[]string{"method", "path", "status"},
		),
		APIRequestDurationSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sanctuary_api_request_duration_seconds",
				Help:    "API request duration in seconds",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),
		APIErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sanctuary_api_errors_total",
				Help: "Total number of API error responses",
			},
			[]string{"error_type"},
		),

		UptimeSeconds: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "sanctuary_uptime_seconds",
				Help: "Server uptime in seconds",
			},
		),
		Goroutines: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "sanctuary_goroutines",
				Help: "Number of active goroutines",
			},
		),

		startTime: time.Now(),
		registry:  reg,
	}

	reg.MustRegister(
		m.WebhooksReceivedTotal,
		m.BroadcastsSentTotal,
		m.BroadcastRecipientsTotal,
		m.DeliveryCallbacksTotal,
		m.LinkRedirectsTotal,
		m.APIRequestsTotal,
		m.APIRequestDurationSeconds,
		m.APIErrorsTotal,
		m.UptimeSeconds,
		m.Goroutines,
	)

	return m
}

// Registry returns the Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RefreshSystemGauges updates the uptime and goroutine gauges; called
// periodically by the metrics server's background loop.
func (m *Metrics) RefreshSystemGauges() {
	m.UptimeSeconds.Set(time.Since(m.startTime).Seconds())
	m.Goroutines.Set(float64(runtime.NumGoroutine()))
}

// SetGlobal sets the global metrics instance.
func SetGlobal(m *Metrics) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalMetrics = m
}

// Global returns the global metrics instance.
func Global() *Metrics {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalMetrics
}

// IncWebhookReceived increments the inbound webhook counter for kind, one
// of "sms" or "delivery-status".
func IncWebhookReceived(kind string) {
	if m := Global(); m != nil {
		m.WebhooksReceivedTotal.WithLabelValues(kind).Inc()
	}
}

// IncBroadcastSent increments the broadcast-send counter.
func IncBroadcastSent() {
	if m := Global(); m != nil {
		m.BroadcastsSentTotal.Inc()
	}
}

// IncBroadcastRecipient increments the per-recipient broadcast counter for
// outcome, one of "sent" or "failed".
func IncBroadcastRecipient(outcome string) {
	if m := Global(); m != nil {
		m.BroadcastRecipientsTotal.WithLabelValues(outcome).Inc()
	}
}

// IncDeliveryCallback increments the delivery-status callback counter for
// the given status label; the delivery webhook passes the provider's
// status string as received.
func IncDeliveryCallback(status string) {
	if m := Global(); m != nil {
		m.DeliveryCallbacksTotal.WithLabelValues(status).Inc()
	}
}

// IncLinkRedirect increments the redirect-lookup counter for outcome, one
// of "found" or "not_found".
func IncLinkRedirect(outcome string) {
	if m := Global(); m != nil {
		m.LinkRedirectsTotal.WithLabelValues(outcome).Inc()
	}
}

// IncAPIErrors increments the API error counter.
func IncAPIErrors(errorType string) {
	if m := Global(); m != nil {
		m.APIErrorsTotal.WithLabelValues(errorType).Inc()
	}
}
