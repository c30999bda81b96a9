package middleware

import (
	"crypto/subtle"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
)

// AdminTokenMiddleware guards the admin surface with a shared secret. The
// token may arrive as the X-Admin-Token header, a bearer Authorization
// header, or a token query parameter. An unconfigured token is a server
// error, never an open door.
func AdminTokenMiddleware(adminToken string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if adminToken == "" {
			log.Error("admin middleware: ADMIN_TOKEN is not configured")
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"ok": false, "error": "server_error"})
		}

		token := extractAdminToken(c)
		if token == "" || subtle.ConstantTimeCompare([]byte(token), []byte(adminToken)) != 1 {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"ok": false, "error": "unauthorized"})
		}

		return c.Next()
	}
}

func extractAdminToken(c *fiber.Ctx) string {
	token := strings.TrimSpace(c.Get("X-Admin-Token"))
	if token != "" {
		return token
	}
	auth := strings.TrimSpace(c.Get("Authorization"))
	if strings.HasPrefix(strings.ToLower(auth), "bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return strings.TrimSpace(c.Query("token"))
}
