package billing

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/ManuelReschke/PixelMarket/app/models"
)

// Service is the webhook engine: it records receipts and processes them.
type Service struct {
	repo       Repository
	cfg        *Config
	normalizer *Normalizer
	verifier   Verifier
	machine    *StateMachine
	resolver   Resolver
	metrics    Metrics
	archiver   PayloadArchiver
	now        func() time.Time
}

// Option customises a Service.
type Option func(*Service)

// WithMetrics sets the metrics sink.
func WithMetrics(m Metrics) Option {
	return func(s *Service) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithArchiver enables the raw payload archive.
func WithArchiver(a PayloadArchiver) Option {
	return func(s *Service) { s.archiver = a }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithAdapters replaces the provider adapters.
func WithAdapters(adapters ...Adapter) Option {
	return func(s *Service) { s.normalizer = NewNormalizer(adapters...) }
}

// NewService creates a webhook service.
func NewService(repo Repository, cfg *Config, opts ...Option) *Service {
	s := &Service{
		repo:       repo,
		cfg:        cfg,
		normalizer: NewNormalizer(DefaultAdapters()...),
		metrics:    NoopMetrics{},
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.cfg.ProcessTimeout <= 0 {
		s.cfg.ProcessTimeout = DefaultProcessTimeout
	}
	s.verifier = Verifier{Mode: s.cfg.Mode}
	s.machine = NewStateMachine(s.now)
	return s
}

// NewServiceFromDB wires the GORM repository.
func NewServiceFromDB(db *gorm.DB, cfg *Config, opts ...Option) *Service {
	return NewService(NewRepository(db), cfg, opts...)
}

// Metrics returns the metrics sink, never nil.
func (s *Service) Metrics() Metrics {
	return s.metrics
}

// Config returns the active configuration.
func (s *Service) Config() *Config {
	return s.cfg
}

// Adapter returns the adapter for provider, if supported.
func (s *Service) Adapter(provider string) (Adapter, bool) {
	return s.normalizer.Adapter(provider)
}

// Receive appends the received log row for a delivery. It runs no business
// logic; a failure here is the only one the ingress reports to the provider.
func (s *Service) Receive(ctx context.Context, r Receipt) (*models.WebhookLog, error) {
	var headers datatypes.JSON
	if len(r.Headers) > 0 {
		if b, err := json.Marshal(r.Headers); err == nil {
			headers = datatypes.JSON(b)
		}
	}

	body := r.Body
	if body == nil {
		body = []byte{}
	}

	entry := &models.WebhookLog{
		Source:     strings.ToLower(r.Provider),
		RawPayload: body,
		Signature:  truncateString(r.Signature.String(), 512),
		Headers:    headers,
		Status:     models.WebhookStatusReceived,
		SourceIP:   truncateString(r.SourceIP, 45),
	}
	if err := s.repo.CreateWebhookLog(ctx, entry); err != nil {
		log.Errorf("[Webhook] Failed to store %s delivery: %v", r.Provider, err)
		return nil, err
	}

	s.metrics.RecordWebhookReceived(entry.Source)
	log.Infof("[Webhook] Received %s delivery as log %d (%d bytes)", entry.Source, entry.ID, len(r.Body))
	return entry, nil
}
