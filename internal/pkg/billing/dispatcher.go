package billing

import (
	"context"

	"github.com/gofiber/fiber/v2/log"
)

// Dispatcher hands a received log to background processing.
type Dispatcher interface {
	Dispatch(ctx context.Context, logID uint) error
}

// Processor processes one received log.
type Processor interface {
	Process(ctx context.Context, logID uint) Outcome
}

// DetachedDispatcher processes each log on its own goroutine.
type DetachedDispatcher struct {
	Processor Processor
}

func (d DetachedDispatcher) Dispatch(_ context.Context, logID uint) error {
	go d.Processor.Process(context.Background(), logID)
	return nil
}

// FallbackDispatcher uses Primary and falls back to a detached goroutine
// when Primary cannot take the job, so a received log is never stranded.
type FallbackDispatcher struct {
	Primary   Dispatcher
	Processor Processor
	Metrics   Metrics
}

func (d FallbackDispatcher) Dispatch(ctx context.Context, logID uint) error {
	if d.Primary != nil {
		err := d.Primary.Dispatch(ctx, logID)
		if err == nil {
			return nil
		}
		log.Warnf("[Webhook] Dispatch of log %d failed, processing detached: %v", logID, err)
	}
	if d.Metrics != nil {
		d.Metrics.RecordDispatchFallback()
	}
	return DetachedDispatcher{Processor: d.Processor}.Dispatch(ctx, logID)
}
