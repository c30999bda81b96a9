package controllers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/fleetlog/fleetlog/app/models"
)

// Error codes returned in the JSON envelope. Status codes are a secondary
// signal; clients branch on these strings.
const (
	ErrCodeMissingEmail     = "missing_email"
	ErrCodeInvalidEmail     = "invalid_email"
	ErrCodeMissingTitle     = "missing_title"
	ErrCodeNotSubscribed    = "not_subscribed"
	ErrCodeRateLimited      = "rate_limited"
	ErrCodeLimitReached     = "limit_reached"
	ErrCodeNotFound         = "not_found"
	ErrCodeInvalidSignature = "invalid_signature"
	ErrCodeInvalidPayload   = "invalid_payload"
	ErrCodeServerError      = "server_error"
)

func jsonError(c *fiber.Ctx, status int, code string) error {
	return c.Status(status).JSON(fiber.Map{"ok": false, "error": code})
}

// requireEmail pulls and normalizes the email query parameter shared by the
// subscriber-gated endpoints. The empty string means a response was already
// written.
func requireEmail(c *fiber.Ctx) (string, error) {
	raw := c.Query("email")
	if raw == "" {
		return "", jsonError(c, fiber.StatusBadRequest, ErrCodeMissingEmail)
	}
	email := models.NormalizeEmail(raw)
	if email == "" {
		return "", jsonError(c, fiber.StatusBadRequest, ErrCodeInvalidEmail)
	}
	return email, nil
}
