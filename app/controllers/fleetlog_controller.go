package controllers

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/fleetlog/fleetlog/internal/pkg/fleetlog"
	"github.com/fleetlog/fleetlog/internal/pkg/ratelimit"
	"github.com/fleetlog/fleetlog/internal/pkg/subscription"
)

// FleetLogController serves the subscriber-gated log endpoints. Every handler
// gates on the ledger's canonical email record before touching log data.
type FleetLogController struct {
	subs    *subscription.Service
	logs    *fleetlog.Service
	limiter *ratelimit.Limiter
}

func NewFleetLogController(subs *subscription.Service, logs *fleetlog.Service, limiter *ratelimit.Limiter) *FleetLogController {
	return &FleetLogController{subs: subs, logs: logs, limiter: limiter}
}

// HandleStatus reports whether the ledger grants access for an email.
func (f *FleetLogController) HandleStatus(c *fiber.Ctx) error {
	email, err := requireEmail(c)
	if email == "" {
		return err
	}

	tier, active := f.subs.TierFor(c.Context(), email)
	resp := fiber.Map{"ok": true, "active": active}
	if active {
		resp["tier"] = tier
	}
	return c.JSON(resp)
}

type createLogRequest struct {
	Title    string `json:"title"`
	Note     string `json:"note"`
	Odometer int64  `json:"odometer"`
}

// HandleCreateLog creates a log entry: subscription gate, rate limit, tier
// ceiling, then the one-time usage warning.
func (f *FleetLogController) HandleCreateLog(c *fiber.Ctx) error {
	email, err := requireEmail(c)
	if email == "" {
		return err
	}

	tier, active := f.subs.TierFor(c.Context(), email)
	if !active {
		return jsonError(c, fiber.StatusForbidden, ErrCodeNotSubscribed)
	}

	allowed, err := f.limiter.Allow(c.Context(), email)
	if err != nil {
		log.Errorf("[FleetLog] Rate limit check failed for %s: %v", email, err)
		return jsonError(c, fiber.StatusInternalServerError, ErrCodeServerError)
	}
	if !allowed {
		return jsonError(c, fiber.StatusTooManyRequests, ErrCodeRateLimited)
	}

	var req createLogRequest
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, ErrCodeInvalidPayload)
	}
	if strings.TrimSpace(req.Title) == "" {
		return jsonError(c, fiber.StatusBadRequest, ErrCodeMissingTitle)
	}

	result, err := f.logs.CreateEntry(c.Context(), email, tier, req.Title, req.Note, req.Odometer)
	if errors.Is(err, fleetlog.ErrLimitReached) {
		return jsonError(c, fiber.StatusPaymentRequired, ErrCodeLimitReached)
	}
	if err != nil {
		log.Errorf("[FleetLog] Create failed for %s: %v", email, err)
		return jsonError(c, fiber.StatusInternalServerError, ErrCodeServerError)
	}

	return c.JSON(fiber.Map{
		"ok":      true,
		"id":      result.Entry.ID,
		"tier":    result.Tier,
		"count":   result.Count,
		"ceiling": result.Ceiling,
		"warned":  result.WarnedNow,
	})
}

// HandleListLogs lists the user's entries, newest first.
func (f *FleetLogController) HandleListLogs(c *fiber.Ctx) error {
	email, err := requireEmail(c)
	if email == "" {
		return err
	}

	if !f.subs.IsActive(c.Context(), email) {
		return jsonError(c, fiber.StatusForbidden, ErrCodeNotSubscribed)
	}

	entries, err := f.logs.ListEntries(c.Context(), email)
	if err != nil {
		log.Errorf("[FleetLog] List failed for %s: %v", email, err)
		return jsonError(c, fiber.StatusInternalServerError, ErrCodeServerError)
	}
	return c.JSON(fiber.Map{"ok": true, "entries": entries, "count": len(entries)})
}

// HandleGetLog fetches a single entry by id.
func (f *FleetLogController) HandleGetLog(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("id"))
	if id == "" {
		return jsonError(c, fiber.StatusBadRequest, ErrCodeInvalidPayload)
	}

	entry, err := f.logs.GetEntry(c.Context(), id)
	if errors.Is(err, fleetlog.ErrNotFound) {
		return jsonError(c, fiber.StatusNotFound, ErrCodeNotFound)
	}
	if err != nil {
		log.Errorf("[FleetLog] Get %s failed: %v", id, err)
		return jsonError(c, fiber.StatusInternalServerError, ErrCodeServerError)
	}
	return c.JSON(fiber.Map{"ok": true, "entry": entry})
}
