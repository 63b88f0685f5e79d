package billing

import (
	"context"
	"time"

	"github.com/ManuelReschke/PixelMarket/app/repository"
)

// QueueInspector reports the depth of the dispatch queue.
type QueueInspector interface {
	Mode() string
	Depth(ctx context.Context) (pending, processing int64, err error)
}

// ProviderStatus describes the readiness of one provider.
type ProviderStatus struct {
	Provider         string            `json:"provider"`
	SecretConfigured bool              `json:"secret_configured"`
	ActiveMappings   int64             `json:"active_mappings"`
	SignatureSchemes []SignatureScheme `json:"signature_schemes"`
	Ready            bool              `json:"ready"`
}

// RecentLog is a payload-free view of a webhook log.
type RecentLog struct {
	ID            uint       `json:"id"`
	Source        string     `json:"source"`
	EventType     string     `json:"event_type"`
	EventKind     string     `json:"event_kind"`
	Status        string     `json:"status"`
	Email         string     `json:"email"`
	TransactionID string     `json:"transaction_id"`
	ErrorKind     string     `json:"error_kind,omitempty"`
	ErrorMessage  string     `json:"error_message,omitempty"`
	DuplicateOfID *uint      `json:"duplicate_of_id,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	ProcessedAt   *time.Time `json:"processed_at,omitempty"`
}

// QueueStatus is the dispatch queue snapshot.
type QueueStatus struct {
	Mode       string `json:"mode"`
	Pending    int64  `json:"pending"`
	Processing int64  `json:"processing"`
	Error      string `json:"error,omitempty"`
}

// StatusReport is the operator diagnostics document.
type StatusReport struct {
	SignatureMode SignatureMode                `json:"signature_mode"`
	Providers     []ProviderStatus             `json:"providers"`
	Counts        []repository.WebhookLogCount `json:"counts"`
	Recent        []RecentLog                  `json:"recent"`
	Queue         *QueueStatus                 `json:"queue,omitempty"`
	GeneratedAt   time.Time                    `json:"generated_at"`
}

// Status collects the diagnostics report. queue may be nil.
func (s *Service) Status(ctx context.Context, recentLimit int, queue QueueInspector) (*StatusReport, error) {
	mappings, err := s.repo.CountActiveMappings(ctx)
	if err != nil {
		return nil, err
	}
	counts, err := s.repo.CountWebhookLogs(ctx)
	if err != nil {
		return nil, err
	}
	logs, err := s.repo.RecentWebhookLogs(ctx, recentLimit)
	if err != nil {
		return nil, err
	}

	report := &StatusReport{
		SignatureMode: s.cfg.Mode,
		Counts:        counts,
		GeneratedAt:   s.now().UTC(),
	}

	for _, p := range Providers() {
		adapter, ok := s.normalizer.Adapter(p)
		if !ok {
			continue
		}
		ps := ProviderStatus{
			Provider:         p,
			SecretConfigured: s.cfg.Secret(p) != "",
			ActiveMappings:   mappings[p],
		}
		for _, src := range adapter.SignatureSources() {
			ps.SignatureSchemes = append(ps.SignatureSchemes, src.Scheme)
		}
		ps.Ready = (ps.SecretConfigured || s.cfg.Mode == ModePermissive) && ps.ActiveMappings > 0
		report.Providers = append(report.Providers, ps)
	}

	for _, l := range logs {
		report.Recent = append(report.Recent, RecentLog{
			ID:            l.ID,
			Source:        l.Source,
			EventType:     l.EventType,
			EventKind:     l.EventKind,
			Status:        l.Status,
			Email:         l.Email,
			TransactionID: l.TransactionID,
			ErrorKind:     l.ErrorKind,
			ErrorMessage:  l.ErrorMessage,
			DuplicateOfID: l.DuplicateOfID,
			CreatedAt:     l.CreatedAt,
			ProcessedAt:   l.ProcessedAt,
		})
	}

	if queue != nil {
		qs := &QueueStatus{Mode: queue.Mode()}
		if pending, processing, err := queue.Depth(ctx); err != nil {
			qs.Error = err.Error()
		} else {
			qs.Pending, qs.Processing = pending, processing
		}
		report.Queue = qs
	}

	return report, nil
}
