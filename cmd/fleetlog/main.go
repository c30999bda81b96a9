package main

import (
	"fmt"
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/fleetlog/fleetlog/app/controllers"
	"github.com/fleetlog/fleetlog/internal/pkg/audit"
	"github.com/fleetlog/fleetlog/internal/pkg/config"
	"github.com/fleetlog/fleetlog/internal/pkg/env"
	"github.com/fleetlog/fleetlog/internal/pkg/fleetlog"
	"github.com/fleetlog/fleetlog/internal/pkg/kv"
	"github.com/fleetlog/fleetlog/internal/pkg/mail"
	"github.com/fleetlog/fleetlog/internal/pkg/payments"
	"github.com/fleetlog/fleetlog/internal/pkg/ratelimit"
	"github.com/fleetlog/fleetlog/internal/pkg/router"
	"github.com/fleetlog/fleetlog/internal/pkg/subscription"
	"github.com/fleetlog/fleetlog/internal/pkg/waitlist"
)

func main() {
	env.SetupEnvFile()
	cfg := config.Load()

	app, err := NewApplication(cfg)
	if err != nil {
		log.Fatal(err)
	}
	log.Fatal(app.Listen(fmt.Sprintf("%s:%s", cfg.AppHost, cfg.AppPort)))
}

// NewApplication builds the configured Fiber app with every component wired.
func NewApplication(cfg *config.Config) (*fiber.App, error) {
	client, err := kv.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		return nil, err
	}
	store := kv.NewRedisStore(client, cfg.KeyPrefix)

	var mailer mail.Mailer = mail.NewSendgridMailer(cfg.SendgridAPIKey, cfg.MailSender)
	if cfg.SendgridAPIKey == "" && env.IsDev() {
		mailer = mail.NewSMTPMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword, cfg.MailSender)
	}

	recorder := audit.NewRecorder(store, cfg.AuditTTL)
	provider := payments.NewClient(cfg.PaymentAPIBaseURL, cfg.PaymentSecretKey)
	subs := subscription.NewService(store, provider, mailer, recorder)
	logs := fleetlog.NewService(store, mailer, cfg)
	limiter := ratelimit.New(store, cfg.RateLimitMax, cfg.RateLimitWindow)
	wl := waitlist.NewService(store)

	app := fiber.New(fiber.Config{
		AppName: "FleetLog",
	})
	app.Use(recover.New(), logger.New())

	router.InstallRouter(app, router.NewApiRouter(
		cfg,
		controllers.NewWebhookController(cfg, subs),
		controllers.NewFleetLogController(subs, logs, limiter),
		controllers.NewWaitlistController(wl),
		controllers.NewAdminController(subs, recorder, wl),
	))

	return app, nil
}
