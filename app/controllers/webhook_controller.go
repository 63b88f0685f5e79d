package controllers

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/PixelMarket/internal/pkg/billing"
)

const (
	// receiveTimeout bounds the receipt insert and dispatch; providers expect
	// an answer within two seconds
	receiveTimeout = 1500 * time.Millisecond
	// statusTimeout bounds the diagnostics queries
	statusTimeout = 10 * time.Second

	defaultRecentLimit = 20
	maxRecentLimit     = 200
)

// snapshotHeaders are copied onto the log for later diagnosis. Signature
// headers are captured separately and never stored in clear.
var snapshotHeaders = []string{
	fiber.HeaderContentType,
	fiber.HeaderUserAgent,
	fiber.HeaderXForwardedFor,
	"X-Request-Id",
	"Stripe-Webhook-Id",
}

// WebhookResponse is the acknowledgement sent to payment providers
type WebhookResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// WebhookController acknowledges provider deliveries and hands them to
// background processing
type WebhookController struct {
	service    *billing.Service
	dispatcher billing.Dispatcher
	queue      billing.QueueInspector
}

// NewWebhookController creates a webhook controller. A nil dispatcher
// processes every delivery on a detached goroutine.
func NewWebhookController(service *billing.Service, dispatcher billing.Dispatcher, queue billing.QueueInspector) *WebhookController {
	if dispatcher == nil {
		dispatcher = billing.DetachedDispatcher{Processor: service}
	}
	return &WebhookController{
		service:    service,
		dispatcher: dispatcher,
		queue:      queue,
	}
}

// HandleWebhook stores the raw delivery, dispatches it and acknowledges.
// The answer never depends on the processing outcome.
func (wc *WebhookController) HandleWebhook(c *fiber.Ctx) error {
	provider := strings.ToLower(strings.TrimSpace(c.Params("provider")))
	adapter, ok := wc.service.Adapter(provider)
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(WebhookResponse{Success: false, Message: "unknown provider"})
	}

	// Fiber reuses the request buffer once the handler returns
	body := append([]byte(nil), c.Body()...)
	sig := billing.CaptureSignature(adapter.SignatureSources(),
		func(key string) string { return c.Get(key) },
		func(key string) string { return c.Query(key) },
	)

	ctx, cancel := context.WithTimeout(context.Background(), receiveTimeout)
	defer cancel()

	entry, err := wc.service.Receive(ctx, billing.Receipt{
		Provider:  provider,
		Body:      body,
		Signature: sig,
		Headers:   headerSnapshot(c),
		SourceIP:  clientIP(c),
	})
	if err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(WebhookResponse{Success: false, Message: "could not store webhook, retry later"})
	}

	if err := wc.dispatcher.Dispatch(ctx, entry.ID); err != nil {
		// The log is stored; recovery picks it up again
		log.Errorf("[Webhook] Dispatch of log %d failed: %v", entry.ID, err)
	}

	message := "webhook received"
	if !json.Valid(body) {
		message = "webhook received, payload is not valid JSON"
	}
	return c.Status(fiber.StatusOK).JSON(WebhookResponse{Success: true, Message: message})
}

// HandleWebhookStatus reports configuration completeness, recent logs,
// aggregate counts and queue depth for operators
func (wc *WebhookController) HandleWebhookStatus(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", defaultRecentLimit)
	if limit <= 0 {
		limit = defaultRecentLimit
	}
	if limit > maxRecentLimit {
		limit = maxRecentLimit
	}

	ctx, cancel := context.WithTimeout(context.Background(), statusTimeout)
	defer cancel()

	report, err := wc.service.Status(ctx, limit, wc.queue)
	if err != nil {
		log.Errorf("[Webhook] Status report failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "status_unavailable"})
	}
	return c.Status(fiber.StatusOK).JSON(report)
}

func headerSnapshot(c *fiber.Ctx) map[string]string {
	headers := make(map[string]string, len(snapshotHeaders))
	for _, key := range snapshotHeaders {
		if v := strings.TrimSpace(c.Get(key)); v != "" {
			headers[key] = v
		}
	}
	return headers
}
