package billing

import (
	"context"
	"time"

	"github.com/ManuelReschke/PixelMarket/app/models"
)

// Metrics receives pipeline measurements. See metrics/prometheus.
type Metrics interface {
	RecordWebhookReceived(provider string)
	RecordWebhookOutcome(provider, eventKind, status string)
	RecordWebhookError(provider, errorKind string)
	RecordProcessingDuration(provider string, duration time.Duration)
	RecordDispatchFallback()
}

// NoopMetrics discards everything.
type NoopMetrics struct{}

func (NoopMetrics) RecordWebhookReceived(string) {}
func (NoopMetrics) RecordWebhookOutcome(string, string, string) {}
func (NoopMetrics) RecordWebhookError(string, string) {}
func (NoopMetrics) RecordProcessingDuration(string, time.Duration) {}
func (NoopMetrics) RecordDispatchFallback() {}

// PayloadArchiver keeps a copy of raw payloads outside the database for replay.
type PayloadArchiver interface {
	Archive(ctx context.Context, entry *models.WebhookLog) error
}
