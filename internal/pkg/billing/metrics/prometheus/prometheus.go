package prommetrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ManuelReschke/PixelMarket/internal/pkg/billing"
)

// Metrics implements billing.Metrics using Prometheus.
type Metrics struct {
	webhooksReceivedTotal     *prometheus.CounterVec
	webhookOutcomesTotal      *prometheus.CounterVec
	webhookErrorsTotal        *prometheus.CounterVec
	webhookProcessingDuration *prometheus.HistogramVec
	dispatchFallbacksTotal    prometheus.Counter
}

// NewMetrics creates the webhook metrics and registers them on reg.
func NewMetrics(reg prometheus.Registerer, namespace string) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		webhooksReceivedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "webhook",
			Name:      "received_total",
			Help:      "Total number of webhook deliveries stored as received.",
		}, []string{"provider"}),

		webhookOutcomesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "webhook",
			Name:      "outcomes_total",
			Help:      "Total number of webhook deliveries by terminal status.",
		}, []string{"provider", "event_kind", "status"}),

		webhookErrorsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "webhook",
			Name:      "errors_total",
			Help:      "Total number of webhook deliveries that ended in error, by error kind.",
		}, []string{"provider", "error_kind"}),

		webhookProcessingDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "webhook",
			Name:      "processing_duration_seconds",
			Help:      "Duration of webhook processing in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"provider"}),

		dispatchFallbacksTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "webhook",
			Name:      "dispatch_fallbacks_total",
			Help:      "Total number of deliveries processed detached because the queue refused them.",
		}),
	}
}

func (m *Metrics) RecordWebhookReceived(provider string) {
	m.webhooksReceivedTotal.WithLabelValues(provider).Inc()
}

func (m *Metrics) RecordWebhookOutcome(provider, eventKind, status string) {
	m.webhookOutcomesTotal.WithLabelValues(provider, eventKind, status).Inc()
}

func (m *Metrics) RecordWebhookError(provider, errorKind string) {
	m.webhookErrorsTotal.WithLabelValues(provider, errorKind).Inc()
}

func (m *Metrics) RecordProcessingDuration(provider string, duration time.Duration) {
	m.webhookProcessingDuration.WithLabelValues(provider).Observe(duration.Seconds())
}

func (m *Metrics) RecordDispatchFallback() {
	m.dispatchFallbacksTotal.Inc()
}

// DefaultMetrics returns a Metrics implementation using the default Prometheus registerer.
func DefaultMetrics(namespace string) billing.Metrics {
	return NewMetrics(prometheus.DefaultRegisterer, namespace)
}
