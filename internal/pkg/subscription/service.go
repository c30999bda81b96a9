package subscription

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/fleetlog/fleetlog/app/models"
	"github.com/fleetlog/fleetlog/internal/pkg/audit"
	"github.com/fleetlog/fleetlog/internal/pkg/kv"
	"github.com/fleetlog/fleetlog/internal/pkg/mail"
	"github.com/fleetlog/fleetlog/internal/pkg/payments"
)

// ErrNotFound is returned by direct ledger lookups when no record exists.
var ErrNotFound = errors.New("subscription: record not found")

// Service converts payment lifecycle events into ledger mutations and keeps
// the welcome notification at-most-once per subscription lifecycle. Duplicate
// event deliveries are expected; every ledger write is an idempotent set and
// the welcome send is guarded by an atomic claim.
type Service struct {
	store    kv.Store
	provider payments.Provider
	mailer   mail.Mailer
	audit    *audit.Recorder
	now      func() time.Time
}

func NewService(store kv.Store, provider payments.Provider, mailer mail.Mailer, recorder *audit.Recorder) *Service {
	return &Service{
		store:    store,
		provider: provider,
		mailer:   mailer,
		audit:    recorder,
		now:      time.Now,
	}
}

type provisionInput struct {
	Email          string
	SubscriptionID string
	CustomerID     string
	Tier           string
	Source         string
}

// HandleEvent applies one lifecycle event. Unhandled event types are ignored.
// Malformed or under-populated payloads are logged and absorbed; only store
// and provider failures surface as errors.
func (s *Service) HandleEvent(ctx context.Context, evt *payments.Event) error {
	switch evt.Type {
	case payments.EventCheckoutCompleted:
		return s.handleCheckoutCompleted(ctx, evt)
	case payments.EventSubscriptionCreated, payments.EventSubscriptionUpdated:
		return s.handleSubscriptionActive(ctx, evt)
	case payments.EventSubscriptionDeleted:
		return s.handleSubscriptionDeleted(ctx, evt)
	default:
		log.Debugf("[Subscription] Ignoring event type %s", evt.Type)
		return nil
	}
}

// handleCheckoutCompleted re-fetches the checkout session so provisioning
// never acts on a stale or incomplete webhook payload. When the session has
// no subscription id yet, provisioning is deferred entirely: a later
// subscription lifecycle event completes it.
func (s *Service) handleCheckoutCompleted(ctx context.Context, evt *payments.Event) error {
	stub, err := evt.CheckoutSession()
	if err != nil {
		log.Warnf("[Subscription] Unusable checkout payload: %v", err)
		return nil
	}

	sess, err := s.provider.GetCheckoutSession(ctx, stub.ID)
	if err != nil {
		return err
	}

	if strings.TrimSpace(sess.Subscription) == "" {
		log.Infof("[Subscription] Checkout %s has no subscription yet, deferring provisioning", sess.ID)
		return nil
	}

	email := strings.TrimSpace(sess.CustomerDetails.Email)
	if email == "" {
		email = strings.TrimSpace(sess.CustomerEmail)
	}
	if email == "" && strings.TrimSpace(sess.Customer) != "" {
		customer, err := s.provider.GetCustomer(ctx, sess.Customer)
		if err != nil {
			return err
		}
		email = strings.TrimSpace(customer.Email)
	}

	return s.provision(ctx, provisionInput{
		Email:          email,
		SubscriptionID: sess.Subscription,
		CustomerID:     sess.Customer,
		Tier:           sess.Metadata["tier"],
		Source:         evt.Type,
	})
}

// handleSubscriptionActive provisions on created/updated events whose status
// entitles access. Every other status is a no-op: it neither provisions nor
// deprovisions.
func (s *Service) handleSubscriptionActive(ctx context.Context, evt *payments.Event) error {
	sub, err := evt.Subscription()
	if err != nil {
		log.Warnf("[Subscription] Unusable subscription payload: %v", err)
		return nil
	}

	if !isEntitlingStatus(sub.Status) {
		log.Debugf("[Subscription] Subscription %s status %q does not entitle access, skipping", sub.ID, sub.Status)
		return nil
	}

	email := ""
	if strings.TrimSpace(sub.Customer) != "" {
		customer, err := s.provider.GetCustomer(ctx, sub.Customer)
		if err != nil {
			return err
		}
		email = strings.TrimSpace(customer.Email)
	}

	return s.provision(ctx, provisionInput{
		Email:          email,
		SubscriptionID: sub.ID,
		CustomerID:     sub.Customer,
		Tier:           sub.Metadata["tier"],
		Source:         evt.Type,
	})
}

// handleSubscriptionDeleted cancels an existing ledger record. A deletion for
// an unknown subscription never synthesizes a canceled record from nothing.
func (s *Service) handleSubscriptionDeleted(ctx context.Context, evt *payments.Event) error {
	sub, err := evt.Subscription()
	if err != nil {
		log.Warnf("[Subscription] Unusable deletion payload: %v", err)
		return nil
	}

	raw, err := s.store.Get(ctx, keyBySubscriptionID(sub.ID))
	if errors.Is(err, kv.ErrNotFound) {
		log.Infof("[Subscription] Deletion for unknown subscription %s, ignoring", sub.ID)
		return nil
	}
	if err != nil {
		return err
	}

	var record models.SubscriptionRecord
	if !kv.UnmarshalRecord(raw, &record) {
		log.Warnf("[Subscription] Stored record for subscription %s is unreadable, ignoring deletion", sub.ID)
		return nil
	}

	if !models.CanTransitionStatus(record.Status, models.SubscriptionStatusCanceled) {
		log.Warnf("[Subscription] Rejecting %s -> CANCELED for subscription %s", record.Status, sub.ID)
		return nil
	}
	if record.Status == models.SubscriptionStatusCanceled {
		return nil
	}

	record.Status = models.SubscriptionStatusCanceled
	record.CanceledAt = models.FormatTimestamp(s.now())
	record.Source = evt.Type

	if err := s.writeRecord(ctx, &record); err != nil {
		return err
	}

	s.recordAudit(ctx, models.AuditEvent{
		Action:  "subscription.canceled",
		Email:   record.Email,
		Source:  evt.Type,
		Success: true,
		Detail:  map[string]string{"subscription_id": record.SubscriptionID},
	})
	return nil
}

// provision writes the ledger record under both keys and sends the welcome
// mail at most once, claimed atomically. The ledger write happens first: a
// crash before the claim can at worst resend the welcome on redelivery, never
// corrupt the ledger.
func (s *Service) provision(ctx context.Context, in provisionInput) error {
	email := models.NormalizeEmail(in.Email)
	if email == "" {
		log.Warnf("[Subscription] No usable email for subscription %q (source %s), skipping", in.SubscriptionID, in.Source)
		return nil
	}
	tier := models.NormalizeTier(in.Tier)

	record := models.SubscriptionRecord{
		Email:          email,
		SubscriptionID: strings.TrimSpace(in.SubscriptionID),
		CustomerID:     strings.TrimSpace(in.CustomerID),
		Tier:           tier,
		Status:         models.SubscriptionStatusActive,
		CreatedAt:      models.FormatTimestamp(s.now()),
		Source:         in.Source,
	}

	if prior, err := s.GetByEmail(ctx, email); err == nil {
		sameSubscription := prior.SubscriptionID != "" && prior.SubscriptionID == record.SubscriptionID
		if !models.CanTransitionStatus(prior.Status, record.Status) && sameSubscription {
			// A stale "active" event must not resurrect the canceled
			// lifecycle it belongs to. A new subscription id under the
			// same email is a legitimate renewal and passes through.
			log.Warnf("[Subscription] Rejecting %s -> ACTIVE replay for subscription %s", prior.Status, record.SubscriptionID)
			return nil
		}
		if sameSubscription && prior.CreatedAt != "" {
			record.CreatedAt = prior.CreatedAt
		}
	}

	if err := s.writeRecord(ctx, &record); err != nil {
		return err
	}

	dedupeID := record.SubscriptionID
	if dedupeID == "" {
		dedupeID = record.CustomerID
	}
	if dedupeID == "" {
		dedupeID = record.Email
	}

	claimed, err := s.store.SetNX(ctx, keyWelcomeSent(dedupeID), models.FormatTimestamp(s.now()), 0)
	if err != nil {
		return err
	}
	if claimed {
		subject, body := mail.WelcomeMessage(tier)
		if sendErr := s.mailer.Send(email, subject, body); sendErr != nil {
			// Release the claim so a redelivery can retry the send.
			if delErr := s.store.Del(ctx, keyWelcomeSent(dedupeID)); delErr != nil {
				log.Errorf("[Subscription] Failed to release welcome claim %s: %v", dedupeID, delErr)
			}
			return sendErr
		}
	}

	s.recordAudit(ctx, models.AuditEvent{
		Action:  "subscription.provisioned",
		Email:   email,
		Source:  in.Source,
		Success: true,
		Detail: map[string]string{
			"subscription_id": record.SubscriptionID,
			"tier":            tier,
			"welcome_sent":    boolString(claimed),
		},
	})
	return nil
}

// writeRecord persists the record under both keys in one pipelined write.
func (s *Service) writeRecord(ctx context.Context, record *models.SubscriptionRecord) error {
	data, err := kv.MarshalRecord(record)
	if err != nil {
		return err
	}
	entries := map[string]string{
		keyByEmail(record.Email): data,
	}
	if record.SubscriptionID != "" {
		entries[keyBySubscriptionID(record.SubscriptionID)] = data
	}
	return s.store.SetMulti(ctx, entries)
}

// IsActive is the access gate: true only when the canonical email record
// exists and decodes to ACTIVE. Missing records, canceled records and
// unreadable stored values all gate identically, and nothing here errors.
func (s *Service) IsActive(ctx context.Context, email string) bool {
	record, err := s.GetByEmail(ctx, email)
	if err != nil {
		return false
	}
	return record.IsActive()
}

// TierFor resolves the stored tier for gating decisions. active=false when no
// usable ACTIVE record exists.
func (s *Service) TierFor(ctx context.Context, email string) (string, bool) {
	record, err := s.GetByEmail(ctx, email)
	if err != nil || !record.IsActive() {
		return "", false
	}
	return models.NormalizeTier(record.Tier), true
}

// GetByEmail fetches the canonical ledger record.
func (s *Service) GetByEmail(ctx context.Context, email string) (*models.SubscriptionRecord, error) {
	e := models.NormalizeEmail(email)
	if e == "" {
		return nil, ErrNotFound
	}
	raw, err := s.store.Get(ctx, keyByEmail(e))
	if errors.Is(err, kv.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var record models.SubscriptionRecord
	if !kv.UnmarshalRecord(raw, &record) {
		return nil, ErrNotFound
	}
	return &record, nil
}

// List scans the email-keyed half of the ledger. Unreadable entries are
// skipped.
func (s *Service) List(ctx context.Context) ([]models.SubscriptionRecord, error) {
	keys, err := s.store.Scan(ctx, keyByEmail("*"), 100)
	if err != nil {
		return nil, err
	}
	records := make([]models.SubscriptionRecord, 0, len(keys))
	for _, key := range keys {
		raw, err := s.store.Get(ctx, key)
		if err != nil {
			continue
		}
		var record models.SubscriptionRecord
		if kv.UnmarshalRecord(raw, &record) {
			records = append(records, record)
		}
	}
	return records, nil
}

// ProvisionManually provisions outside the webhook flow (admin surface).
func (s *Service) ProvisionManually(ctx context.Context, email, subscriptionID, customerID, tier string) error {
	if models.NormalizeEmail(email) == "" {
		return errors.New("subscription: a valid email is required")
	}
	return s.provision(ctx, provisionInput{
		Email:          email,
		SubscriptionID: subscriptionID,
		CustomerID:     customerID,
		Tier:           tier,
		Source:         "admin",
	})
}

func (s *Service) recordAudit(ctx context.Context, event models.AuditEvent) {
	if s.audit == nil {
		return
	}
	s.audit.Record(ctx, event)
}

func isEntitlingStatus(status string) bool {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "active", "trialing":
		return true
	default:
		return false
	}
}

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
