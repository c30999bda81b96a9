package controllers

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/fleetlog/fleetlog/internal/pkg/waitlist"
)

var validate = validator.New()

// WaitlistController serves the public waitlist join endpoint.
type WaitlistController struct {
	waitlist *waitlist.Service
}

func NewWaitlistController(wl *waitlist.Service) *WaitlistController {
	return &WaitlistController{waitlist: wl}
}

type joinWaitlistRequest struct {
	Email     string `json:"email" validate:"required,email"`
	Name      string `json:"name" validate:"max=120"`
	FleetSize int    `json:"fleet_size" validate:"gte=0"`
	Source    string `json:"source" validate:"max=60"`
}

// HandleJoin adds an address to the waitlist. Re-joining is idempotent.
func (w *WaitlistController) HandleJoin(c *fiber.Ctx) error {
	var req joinWaitlistRequest
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, ErrCodeInvalidPayload)
	}
	if err := validate.Struct(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, ErrCodeInvalidEmail)
	}

	created, err := w.waitlist.Join(c.Context(), req.Email, req.Name, req.FleetSize, req.Source)
	if errors.Is(err, waitlist.ErrInvalidEmail) {
		return jsonError(c, fiber.StatusBadRequest, ErrCodeInvalidEmail)
	}
	if err != nil {
		log.Errorf("[Waitlist] Join failed for %s: %v", req.Email, err)
		return jsonError(c, fiber.StatusInternalServerError, ErrCodeServerError)
	}

	return c.JSON(fiber.Map{"ok": true, "created": created})
}
