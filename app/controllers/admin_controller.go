package controllers

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/fleetlog/fleetlog/app/models"
	"github.com/fleetlog/fleetlog/internal/pkg/audit"
	"github.com/fleetlog/fleetlog/internal/pkg/subscription"
	"github.com/fleetlog/fleetlog/internal/pkg/waitlist"
)

// AdminController serves the token-gated operations surface. The token check
// itself lives in middleware.
type AdminController struct {
	subs     *subscription.Service
	audit    *audit.Recorder
	waitlist *waitlist.Service
}

func NewAdminController(subs *subscription.Service, recorder *audit.Recorder, wl *waitlist.Service) *AdminController {
	return &AdminController{subs: subs, audit: recorder, waitlist: wl}
}

// HandleListSubscriptions scans the email-keyed ledger.
func (a *AdminController) HandleListSubscriptions(c *fiber.Ctx) error {
	records, err := a.subs.List(c.Context())
	if err != nil {
		log.Errorf("[Admin] Ledger scan failed: %v", err)
		return jsonError(c, fiber.StatusInternalServerError, ErrCodeServerError)
	}
	return c.JSON(fiber.Map{"ok": true, "subscriptions": records, "count": len(records)})
}

// HandleGetSubscription fetches one ledger record by email.
func (a *AdminController) HandleGetSubscription(c *fiber.Ctx) error {
	record, err := a.subs.GetByEmail(c.Context(), c.Params("email"))
	if errors.Is(err, subscription.ErrNotFound) {
		return jsonError(c, fiber.StatusNotFound, ErrCodeNotFound)
	}
	if err != nil {
		log.Errorf("[Admin] Ledger lookup failed: %v", err)
		return jsonError(c, fiber.StatusInternalServerError, ErrCodeServerError)
	}
	return c.JSON(fiber.Map{"ok": true, "subscription": record})
}

type provisionRequest struct {
	Email          string `json:"email" validate:"required,email"`
	SubscriptionID string `json:"subscription_id"`
	CustomerID     string `json:"customer_id"`
	Tier           string `json:"tier"`
}

// HandleProvision provisions a subscription outside the webhook flow.
func (a *AdminController) HandleProvision(c *fiber.Ctx) error {
	var req provisionRequest
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, ErrCodeInvalidPayload)
	}
	if err := validate.Struct(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, ErrCodeInvalidEmail)
	}

	if err := a.subs.ProvisionManually(c.Context(), req.Email, req.SubscriptionID, req.CustomerID, req.Tier); err != nil {
		log.Errorf("[Admin] Manual provision failed for %s: %v", req.Email, err)
		return jsonError(c, fiber.StatusInternalServerError, ErrCodeServerError)
	}

	a.audit.Record(c.Context(), models.AuditEvent{
		Action:  "admin.provision",
		Email:   models.NormalizeEmail(req.Email),
		Source:  "admin",
		Success: true,
		Detail:  map[string]string{"tier": models.NormalizeTier(req.Tier)},
	})
	return c.JSON(fiber.Map{"ok": true})
}

// HandleAudit returns the newest audit events.
func (a *AdminController) HandleAudit(c *fiber.Ctx) error {
	limit := parseLimit(c.Query("limit"), 50)
	events, err := a.audit.Recent(c.Context(), limit)
	if err != nil {
		log.Errorf("[Admin] Audit read failed: %v", err)
		return jsonError(c, fiber.StatusInternalServerError, ErrCodeServerError)
	}
	return c.JSON(fiber.Map{"ok": true, "events": events, "count": len(events)})
}

// HandleWaitlist returns the newest waitlist entries.
func (a *AdminController) HandleWaitlist(c *fiber.Ctx) error {
	limit := parseLimit(c.Query("limit"), 100)
	entries, err := a.waitlist.List(c.Context(), limit)
	if err != nil {
		log.Errorf("[Admin] Waitlist read failed: %v", err)
		return jsonError(c, fiber.StatusInternalServerError, ErrCodeServerError)
	}
	return c.JSON(fiber.Map{"ok": true, "entries": entries, "count": len(entries)})
}

func parseLimit(raw string, def int64) int64 {
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil && n > 0 && n <= 1000 {
		return n
	}
	return def
}
