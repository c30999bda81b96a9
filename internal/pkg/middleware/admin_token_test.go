package middleware

import (
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGuardedApp(token string) *fiber.App {
	app := fiber.New()
	app.Get("/admin", AdminTokenMiddleware(token), func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"ok": true})
	})
	return app
}

func TestAdminTokenMiddleware(t *testing.T) {
	app := newGuardedApp("secret")

	tests := []struct {
		name   string
		target string
		header map[string]string
		want   int
	}{
		{name: "no token", target: "/admin", want: fiber.StatusUnauthorized},
		{name: "wrong token", target: "/admin", header: map[string]string{"X-Admin-Token": "nope"}, want: fiber.StatusUnauthorized},
		{name: "header token", target: "/admin", header: map[string]string{"X-Admin-Token": "secret"}, want: fiber.StatusOK},
		{name: "bearer token", target: "/admin", header: map[string]string{"Authorization": "Bearer secret"}, want: fiber.StatusOK},
		{name: "query token", target: "/admin?token=secret", want: fiber.StatusOK},
		{name: "wrong bearer", target: "/admin", header: map[string]string{"Authorization": "Bearer nope"}, want: fiber.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(fiber.MethodGet, tt.target, nil)
			for k, v := range tt.header {
				req.Header.Set(k, v)
			}
			resp, err := app.Test(req, -1)
			require.NoError(t, err)
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
}

func TestAdminTokenMiddleware_UnconfiguredTokenNeverOpens(t *testing.T) {
	app := newGuardedApp("")

	req := httptest.NewRequest(fiber.MethodGet, "/admin", nil)
	req.Header.Set("X-Admin-Token", "")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
}
