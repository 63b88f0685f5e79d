package billing

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/PixelMarket/app/models"
	"github.com/ManuelReschke/PixelMarket/internal/pkg/env"
)

// SignatureMode controls how a missing signature header or secret is treated.
type SignatureMode string

const (
	ModeStrict     SignatureMode = "strict"
	ModePermissive SignatureMode = "permissive"
)

const (
	QueueLocal = "local"
	QueueRedis = "redis"
)

const (
	DefaultProcessTimeout = 30 * time.Second
	DefaultWorkers        = 4
)

// ProviderConfig is the per-provider webhook configuration.
type ProviderConfig struct {
	Name   string `validate:"required,oneof=hotmart kiwify stripe"`
	Secret string `validate:"max=512"`
}

// Config holds the webhook engine settings loaded from the environment.
type Config struct {
	Mode           SignatureMode             `validate:"required,oneof=strict permissive"`
	Providers      map[string]ProviderConfig `validate:"required,dive"`
	ProcessTimeout time.Duration             `validate:"gt=0"`
	Workers        int                       `validate:"min=1,max=256"`
	Queue          string                    `validate:"required,oneof=local redis"`
	AppEnv         string
}

// Providers supported by the engine.
func Providers() []string {
	return []string{models.WebhookSourceHotmart, models.WebhookSourceKiwify, models.WebhookSourceStripe}
}

// LoadConfig reads WEBHOOK_* keys. Permissive signature mode is downgraded to
// strict when APP_ENV is prod.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Mode:           SignatureMode(strings.ToLower(strings.TrimSpace(env.GetEnv("WEBHOOK_SIGNATURE_MODE", string(ModeStrict))))),
		Providers:      map[string]ProviderConfig{},
		ProcessTimeout: env.GetEnvDuration("WEBHOOK_PROCESS_TIMEOUT", DefaultProcessTimeout),
		Workers:        env.GetEnvInt("WEBHOOK_WORKERS", DefaultWorkers),
		Queue:          strings.ToLower(strings.TrimSpace(env.GetEnv("WEBHOOK_QUEUE", QueueLocal))),
		AppEnv:         env.GetEnv("APP_ENV", "prod"),
	}
	for _, p := range Providers() {
		cfg.Providers[p] = ProviderConfig{
			Name:   p,
			Secret: strings.TrimSpace(env.GetEnv("WEBHOOK_SECRET_"+strings.ToUpper(p), "")),
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.Mode == ModePermissive && env.IsProd() {
		log.Warn("[Webhook] WEBHOOK_SIGNATURE_MODE=permissive ignored in prod, using strict")
		cfg.Mode = ModeStrict
	}
	for _, p := range Providers() {
		if cfg.Providers[p].Secret == "" {
			log.Warnf("[Webhook] No secret configured for provider %s", p)
		}
	}

	return cfg, nil
}

// Validate checks the config with validator struct tags.
func (c *Config) Validate() error {
	v := validator.New()
	if err := v.Struct(c); err != nil {
		return fmt.Errorf("invalid webhook config: %w", err)
	}
	return nil
}

// Secret returns the shared secret for provider, or "" when unset.
func (c *Config) Secret(provider string) string {
	return c.Providers[provider].Secret
}
