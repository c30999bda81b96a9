package controllers

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetlog/fleetlog/internal/pkg/audit"
	"github.com/fleetlog/fleetlog/internal/pkg/config"
	"github.com/fleetlog/fleetlog/internal/pkg/fleetlog"
	"github.com/fleetlog/fleetlog/internal/pkg/kv"
	"github.com/fleetlog/fleetlog/internal/pkg/payments"
	"github.com/fleetlog/fleetlog/internal/pkg/ratelimit"
	"github.com/fleetlog/fleetlog/internal/pkg/subscription"
	"github.com/fleetlog/fleetlog/internal/pkg/waitlist"
)

type fakeProvider struct {
	sessions  map[string]*payments.CheckoutSession
	customers map[string]*payments.Customer
	subs      map[string]*payments.Subscription
}

func (f *fakeProvider) GetCheckoutSession(_ context.Context, id string) (*payments.CheckoutSession, error) {
	if s, ok := f.sessions[id]; ok {
		return s, nil
	}
	return nil, fmt.Errorf("payment api request /checkout/sessions/%s failed: status=404 body=", id)
}

func (f *fakeProvider) GetCustomer(_ context.Context, id string) (*payments.Customer, error) {
	if c, ok := f.customers[id]; ok {
		return c, nil
	}
	return nil, fmt.Errorf("payment api request /customers/%s failed: status=404 body=", id)
}

func (f *fakeProvider) GetSubscription(_ context.Context, id string) (*payments.Subscription, error) {
	if s, ok := f.subs[id]; ok {
		return s, nil
	}
	return nil, fmt.Errorf("payment api request /subscriptions/%s failed: status=404 body=", id)
}

type fakeMailer struct {
	sent    []string
	failing bool
}

func (f *fakeMailer) Send(to, subject, body string) error {
	if f.failing {
		return errors.New("mailer down")
	}
	f.sent = append(f.sent, to)
	return nil
}

type testEnv struct {
	app      *fiber.App
	store    *kv.MemoryStore
	mailer   *fakeMailer
	provider *fakeProvider
	cfg      *config.Config
	subs     *subscription.Service
	recorder *audit.Recorder
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	cfg := &config.Config{
		AdminToken:           "test-admin-token",
		PaymentAPIBaseURL:    "http://payments.test",
		PaymentSecretKey:     "sk_test",
		PaymentWebhookSecret: "whsec_test",
		CeilingSingle:        3,
		CeilingFleet:         300,
		WarnFraction:         0.8,
		RateLimitMax:         5,
		RateLimitWindow:      10 * time.Second,
		AuditTTL:             30 * 24 * time.Hour,
		WarnFlagTTL:          30 * 24 * time.Hour,
	}

	store := kv.NewMemoryStore()
	mailer := &fakeMailer{}
	provider := &fakeProvider{
		customers: map[string]*payments.Customer{
			"cus_1": {ID: "cus_1", Email: "driver@example.com"},
		},
	}
	recorder := audit.NewRecorder(store, cfg.AuditTTL)
	subs := subscription.NewService(store, provider, mailer, recorder)
	logs := fleetlog.NewService(store, mailer, cfg)
	limiter := ratelimit.New(store, cfg.RateLimitMax, cfg.RateLimitWindow)
	wl := waitlist.NewService(store)

	app := fiber.New()
	api := app.Group("/api")
	api.Post("/webhook/payments", NewWebhookController(cfg, subs).HandlePaymentWebhook)

	fc := NewFleetLogController(subs, logs, limiter)
	api.Get("/fleetlog/status", fc.HandleStatus)
	api.Post("/fleetlog/logs", fc.HandleCreateLog)
	api.Get("/fleetlog/logs", fc.HandleListLogs)
	api.Get("/fleetlog/logs/:id", fc.HandleGetLog)

	api.Post("/waitlist", NewWaitlistController(wl).HandleJoin)

	ac := NewAdminController(subs, recorder, wl)
	api.Get("/admin/subscriptions", ac.HandleListSubscriptions)
	api.Post("/admin/subscriptions", ac.HandleProvision)
	api.Get("/admin/subscriptions/:email", ac.HandleGetSubscription)
	api.Get("/admin/audit", ac.HandleAudit)
	api.Get("/admin/waitlist", ac.HandleWaitlist)

	return &testEnv{
		app:      app,
		store:    store,
		mailer:   mailer,
		provider: provider,
		cfg:      cfg,
		subs:     subs,
		recorder: recorder,
	}
}

func signWebhook(payload []byte, secret string, at time.Time) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.%s", at.Unix(), payload)
	return fmt.Sprintf("t=%d,v1=%s", at.Unix(), hex.EncodeToString(mac.Sum(nil)))
}

func doJSON(t *testing.T, app *fiber.App, method, target string, body []byte, header map[string]string) (*http.Response, map[string]interface{}) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)

	var decoded map[string]interface{}
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &decoded), "body: %s", raw)
	}
	return resp, decoded
}

func subscriptionCreatedPayload(t *testing.T) []byte {
	t.Helper()
	payload, err := json.Marshal(map[string]interface{}{
		"id":   "evt_1",
		"type": payments.EventSubscriptionCreated,
		"data": map[string]interface{}{
			"object": map[string]interface{}{
				"id":       "sub_1",
				"customer": "cus_1",
				"status":   "active",
				"metadata": map[string]string{"tier": "single"},
			},
		},
	})
	require.NoError(t, err)
	return payload
}

func TestHandlePaymentWebhook_RejectsBadSignature(t *testing.T) {
	env := newTestEnv(t)
	payload := subscriptionCreatedPayload(t)

	resp, body := doJSON(t, env.app, fiber.MethodPost, "/api/webhook/payments", payload, map[string]string{
		"Stripe-Signature": signWebhook(payload, "wrong-secret", time.Now()),
	})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, ErrCodeInvalidSignature, body["error"])

	resp, _ = doJSON(t, env.app, fiber.MethodPost, "/api/webhook/payments", payload, nil)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	_, err := env.subs.GetByEmail(context.Background(), "driver@example.com")
	assert.ErrorIs(t, err, subscription.ErrNotFound, "a rejected delivery must not provision")
}

func TestHandlePaymentWebhook_ProvisionsOnValidDelivery(t *testing.T) {
	env := newTestEnv(t)
	payload := subscriptionCreatedPayload(t)
	header := map[string]string{
		"Stripe-Signature": signWebhook(payload, env.cfg.PaymentWebhookSecret, time.Now()),
	}

	resp, body := doJSON(t, env.app, fiber.MethodPost, "/api/webhook/payments", payload, header)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["ok"])
	assert.Equal(t, true, body["received"])

	record, err := env.subs.GetByEmail(context.Background(), "driver@example.com")
	require.NoError(t, err)
	assert.Equal(t, "sub_1", record.SubscriptionID)
	assert.Equal(t, []string{"driver@example.com"}, env.mailer.sent)

	// Redelivery is acknowledged and stays idempotent.
	resp, _ = doJSON(t, env.app, fiber.MethodPost, "/api/webhook/payments", payload, header)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Len(t, env.mailer.sent, 1)
}

func TestHandlePaymentWebhook_IgnoresNonLifecycleEvents(t *testing.T) {
	env := newTestEnv(t)
	payload := []byte(`{"id":"evt_2","type":"invoice.paid","data":{"object":{}}}`)

	resp, body := doJSON(t, env.app, fiber.MethodPost, "/api/webhook/payments", payload, map[string]string{
		"Stripe-Signature": signWebhook(payload, env.cfg.PaymentWebhookSecret, time.Now()),
	})
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["ignored"])
}

func TestHandlePaymentWebhook_AcknowledgesUnparseablePayload(t *testing.T) {
	env := newTestEnv(t)
	payload := []byte(`not json at all`)

	resp, body := doJSON(t, env.app, fiber.MethodPost, "/api/webhook/payments", payload, map[string]string{
		"Stripe-Signature": signWebhook(payload, env.cfg.PaymentWebhookSecret, time.Now()),
	})
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, ErrCodeInvalidPayload, body["error"])
	assert.Equal(t, true, body["received"])
}

func TestHandlePaymentWebhook_AcknowledgesWhenMisconfigured(t *testing.T) {
	env := newTestEnv(t)
	env.cfg.PaymentWebhookSecret = ""
	payload := subscriptionCreatedPayload(t)

	resp, body := doJSON(t, env.app, fiber.MethodPost, "/api/webhook/payments", payload, nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, ErrCodeServerError, body["error"])
	assert.Equal(t, true, body["received"])
}

func TestHandlePaymentWebhook_AcknowledgesProvisioningFailure(t *testing.T) {
	env := newTestEnv(t)
	env.mailer.failing = true
	payload := subscriptionCreatedPayload(t)

	resp, body := doJSON(t, env.app, fiber.MethodPost, "/api/webhook/payments", payload, map[string]string{
		"Stripe-Signature": signWebhook(payload, env.cfg.PaymentWebhookSecret, time.Now()),
	})
	assert.Equal(t, fiber.StatusOK, resp.StatusCode, "the provider must not retry against a 4xx/5xx loop")
	assert.Equal(t, ErrCodeServerError, body["error"])
	assert.Equal(t, true, body["received"])
}
