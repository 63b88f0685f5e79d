package billing

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/PixelMarket/app/models"
)

type fakeQueue struct {
	pending, processing int64
	err                 error
}

func (q fakeQueue) Mode() string { return QueueRedis }

func (q fakeQueue) Depth(context.Context) (int64, int64, error) {
	return q.pending, q.processing, q.err
}

func TestStatusReport(t *testing.T) {
	p := newPipeline(t, ModeStrict)
	p.svc.cfg.Providers["kiwify"] = ProviderConfig{Name: "kiwify"}

	p.hotmart(hotmartEvent("PURCHASE_APPROVED", "HP-S1", "s1@example.com", "plan-monthly", pipelineNow))
	p.hotmart(hotmartEvent("PURCHASE_APPROVED", "HP-S1", "s1@example.com", "plan-monthly", pipelineNow))

	report, err := p.svc.Status(context.Background(), 10, fakeQueue{pending: 3, processing: 1})
	require.NoError(t, err)

	assert.Equal(t, ModeStrict, report.SignatureMode)
	assert.Equal(t, pipelineNow, report.GeneratedAt)

	require.Len(t, report.Providers, 3)
	byName := map[string]ProviderStatus{}
	for _, ps := range report.Providers {
		byName[ps.Provider] = ps
	}
	assert.True(t, byName["hotmart"].Ready)
	assert.Equal(t, int64(3), byName["hotmart"].ActiveMappings)
	assert.Equal(t, []SignatureScheme{SchemeHMACSHA256, SchemeToken}, byName["hotmart"].SignatureSchemes)
	assert.False(t, byName["kiwify"].SecretConfigured)
	assert.False(t, byName["kiwify"].Ready)

	require.Len(t, report.Recent, 2)
	assert.Equal(t, models.WebhookStatusSkipped, report.Recent[0].Status, "newest first")
	assert.Equal(t, models.WebhookStatusProcessed, report.Recent[1].Status)

	counts := map[string]int64{}
	for _, c := range report.Counts {
		counts[c.Source+"/"+c.Status] = c.Count
	}
	assert.Equal(t, int64(1), counts["hotmart/processed"])
	assert.Equal(t, int64(1), counts["hotmart/skipped"])

	require.NotNil(t, report.Queue)
	assert.Equal(t, int64(3), report.Queue.Pending)
	assert.Equal(t, int64(1), report.Queue.Processing)
}

func TestStatusReportQueueError(t *testing.T) {
	p := newPipeline(t, ModeStrict)

	report, err := p.svc.Status(context.Background(), 5, fakeQueue{err: errors.New("redis down")})
	require.NoError(t, err)
	assert.Equal(t, "redis down", report.Queue.Error)
	assert.Empty(t, report.Recent)

	report, err = p.svc.Status(context.Background(), 5, nil)
	require.NoError(t, err)
	assert.Nil(t, report.Queue)
}
