package router

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/gofiber/fiber/v2/middleware/basicauth"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/ManuelReschke/PixelMarket/app/controllers"
)

const (
	defaultStatusRateLimit = 30
	statusRateWindow       = time.Minute
)

// Config carries what the webhook routes need
type Config struct {
	Controller    *controllers.WebhookController
	AdminUser     string
	AdminPassword string
	// LimiterStorage backs the diagnostics rate limit; nil keeps it in memory
	LimiterStorage  fiber.Storage
	StatusRateLimit int
}

// WebhookRouter installs the provider ingress and the operator diagnostics
type WebhookRouter struct {
	cfg Config
}

func NewWebhookRouter(cfg Config) *WebhookRouter {
	if cfg.StatusRateLimit <= 0 {
		cfg.StatusRateLimit = defaultStatusRateLimit
	}
	return &WebhookRouter{cfg: cfg}
}

func (w WebhookRouter) InstallRouter(app *fiber.App) {
	webhook := app.Group("/webhook")

	if w.cfg.AdminUser != "" && w.cfg.AdminPassword != "" {
		webhook.Get("/status",
			limiter.New(limiter.Config{
				Max:        w.cfg.StatusRateLimit,
				Expiration: statusRateWindow,
				Storage:    w.cfg.LimiterStorage,
			}),
			basicauth.New(basicauth.Config{
				Users: map[string]string{
					w.cfg.AdminUser: w.cfg.AdminPassword,
				},
			}),
			w.cfg.Controller.HandleWebhookStatus,
		)
	} else {
		log.Warn("[Webhook] ADMIN_USER/ADMIN_PASSWORD not set, /webhook/status is disabled")
	}

	webhook.Post("/:provider", w.cfg.Controller.HandleWebhook)
}
