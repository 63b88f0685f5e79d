package billing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type chanProcessor chan uint

func (p chanProcessor) Process(_ context.Context, logID uint) Outcome {
	p <- logID
	return Outcome{Status: "processed"}
}

type failingDispatcher struct{}

func (failingDispatcher) Dispatch(context.Context, uint) error {
	return errors.New("queue down")
}

type countingMetrics struct {
	NoopMetrics
	fallbacks int
}

func (m *countingMetrics) RecordDispatchFallback() { m.fallbacks++ }

func waitForLog(t *testing.T, ch chanProcessor) uint {
	t.Helper()
	select {
	case id := <-ch:
		return id
	case <-time.After(2 * time.Second):
		t.Fatal("log was not processed")
		return 0
	}
}

func TestDetachedDispatcher(t *testing.T) {
	ch := make(chanProcessor, 1)
	assert.NoError(t, DetachedDispatcher{Processor: ch}.Dispatch(context.Background(), 11))
	assert.Equal(t, uint(11), waitForLog(t, ch))
}

func TestFallbackDispatcherUsesDetachedOnFailure(t *testing.T) {
	ch := make(chanProcessor, 1)
	metrics := &countingMetrics{}
	d := FallbackDispatcher{Primary: failingDispatcher{}, Processor: ch, Metrics: metrics}

	assert.NoError(t, d.Dispatch(context.Background(), 12))
	assert.Equal(t, uint(12), waitForLog(t, ch))
	assert.Equal(t, 1, metrics.fallbacks)
}

func TestFallbackDispatcherPrefersPrimary(t *testing.T) {
	primary := make(chanProcessor, 1)
	fallback := make(chanProcessor, 1)
	d := FallbackDispatcher{Primary: DetachedDispatcher{Processor: primary}, Processor: fallback}

	assert.NoError(t, d.Dispatch(context.Background(), 13))
	assert.Equal(t, uint(13), waitForLog(t, primary))
	assert.Empty(t, fallback)
}
