package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/fleetlog/fleetlog/app/controllers"
	"github.com/fleetlog/fleetlog/internal/pkg/config"
	"github.com/fleetlog/fleetlog/internal/pkg/middleware"
)

// ApiRouter wires the FleetLog API surface onto the app.
type ApiRouter struct {
	cfg      *config.Config
	webhook  *controllers.WebhookController
	fleetlog *controllers.FleetLogController
	waitlist *controllers.WaitlistController
	admin    *controllers.AdminController
}

func NewApiRouter(
	cfg *config.Config,
	webhook *controllers.WebhookController,
	fleetLog *controllers.FleetLogController,
	waitlist *controllers.WaitlistController,
	admin *controllers.AdminController,
) *ApiRouter {
	return &ApiRouter{
		cfg:      cfg,
		webhook:  webhook,
		fleetlog: fleetLog,
		waitlist: waitlist,
		admin:    admin,
	}
}

func (h *ApiRouter) InstallRouter(app *fiber.App) {
	api := app.Group("/api")
	api.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true, "service": "fleetlog"})
	})

	api.Post("/webhook/payments", h.webhook.HandlePaymentWebhook)

	logs := api.Group("/fleetlog")
	logs.Get("/status", h.fleetlog.HandleStatus)
	logs.Post("/logs", h.fleetlog.HandleCreateLog)
	logs.Get("/logs", h.fleetlog.HandleListLogs)
	logs.Get("/logs/:id", h.fleetlog.HandleGetLog)

	api.Post("/waitlist", h.waitlist.HandleJoin)

	admin := api.Group("/admin", middleware.AdminTokenMiddleware(h.cfg.AdminToken))
	admin.Get("/subscriptions", h.admin.HandleListSubscriptions)
	admin.Get("/subscriptions/:email", h.admin.HandleGetSubscription)
	admin.Post("/subscriptions", h.admin.HandleProvision)
	admin.Get("/audit", h.admin.HandleAudit)
	admin.Get("/waitlist", h.admin.HandleWaitlist)
}

// InstallRouter installs every router onto the app.
func InstallRouter(app *fiber.App, routers ...Router) {
	setup(app, routers...)
}
