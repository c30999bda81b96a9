package controllers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/fleetlog/fleetlog/internal/pkg/config"
	"github.com/fleetlog/fleetlog/internal/pkg/payments"
	"github.com/fleetlog/fleetlog/internal/pkg/subscription"
)

// WebhookController receives payment lifecycle events. The provider retries
// non-2xx responses, so after the signature passes everything is acknowledged
// with 200 even when provisioning fails; only a bad signature earns a 400.
type WebhookController struct {
	cfg  *config.Config
	subs *subscription.Service
}

func NewWebhookController(cfg *config.Config, subs *subscription.Service) *WebhookController {
	return &WebhookController{cfg: cfg, subs: subs}
}

func (w *WebhookController) HandlePaymentWebhook(c *fiber.Ctx) error {
	rawBody := append([]byte(nil), c.BodyRaw()...)
	signature := c.Get("Stripe-Signature")

	if err := w.cfg.ValidateWebhook(); err != nil {
		// Permanently broken configuration: acknowledge so the provider
		// stops retrying an event that can never succeed.
		log.Errorf("[Webhook] %v", err)
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": false, "received": true, "error": ErrCodeServerError})
	}

	if !payments.VerifyWebhookSignature(rawBody, signature, w.cfg.PaymentWebhookSecret, time.Now()) {
		return jsonError(c, fiber.StatusBadRequest, ErrCodeInvalidSignature)
	}

	evt, err := payments.ParseEvent(rawBody)
	if err != nil {
		log.Warnf("[Webhook] Unparseable event payload: %v", err)
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": false, "received": true, "error": ErrCodeInvalidPayload})
	}
	if !evt.IsLifecycleEvent() {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true, "received": true, "ignored": true})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := w.subs.HandleEvent(ctx, evt); err != nil {
		log.Errorf("[Webhook] Event %s (%s) failed: %v", evt.ID, evt.Type, err)
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": false, "received": true, "error": ErrCodeServerError})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true, "received": true})
}
