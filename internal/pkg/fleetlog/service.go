package fleetlog

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"

	"github.com/fleetlog/fleetlog/app/models"
	"github.com/fleetlog/fleetlog/internal/pkg/config"
	"github.com/fleetlog/fleetlog/internal/pkg/kv"
	"github.com/fleetlog/fleetlog/internal/pkg/mail"
)

// ErrLimitReached is returned when a user's tier ceiling refuses a new entry.
var ErrLimitReached = errors.New("fleetlog: log entry limit reached")

// ErrNotFound is returned for direct entry lookups that miss.
var ErrNotFound = errors.New("fleetlog: entry not found")

// Service manages driver log entries: creation against the tier ceiling, the
// one-time approaching-limit warning, and reads.
type Service struct {
	store  kv.Store
	mailer mail.Mailer
	cfg    *config.Config
	now    func() time.Time
}

func NewService(store kv.Store, mailer mail.Mailer, cfg *config.Config) *Service {
	return &Service{store: store, mailer: mailer, cfg: cfg, now: time.Now}
}

func keyEntryList(email string) string { return "logs:" + email }
func keyEntry(id string) string        { return "log:" + id }
func keyUsageWarned(email string) string {
	return "usage-warned:" + email
}

// CreateResult reports what a successful creation did.
type CreateResult struct {
	Entry     *models.LogEntry
	Count     int64
	Ceiling   int64
	WarnedNow bool
	Tier      string
}

// CreateEntry appends a log entry for the user, refusing once the tier
// ceiling is hit. After a successful creation the approaching-limit warning
// fires once per email while its flag lives (30 days), claimed atomically.
func (s *Service) CreateEntry(ctx context.Context, email, tier, title, note string, odometer int64) (*CreateResult, error) {
	tier = models.NormalizeTier(tier)
	ceiling := s.cfg.CeilingForTier(tier)

	count, err := s.store.LLen(ctx, keyEntryList(email))
	if err != nil {
		return nil, err
	}
	if count >= ceiling {
		return nil, ErrLimitReached
	}

	entry := &models.LogEntry{
		ID:        uuid.New().String(),
		Email:     email,
		Title:     strings.TrimSpace(title),
		Note:      strings.TrimSpace(note),
		Odometer:  odometer,
		CreatedAt: models.FormatTimestamp(s.now()),
	}
	data, err := kv.MarshalRecord(entry)
	if err != nil {
		return nil, err
	}
	if err := s.store.Set(ctx, keyEntry(entry.ID), data, 0); err != nil {
		return nil, err
	}
	if err := s.store.LPush(ctx, keyEntryList(email), entry.ID); err != nil {
		return nil, err
	}

	newCount := count + 1
	warned := false
	if float64(newCount) >= s.cfg.WarnFraction*float64(ceiling) {
		warned = s.sendUsageWarning(ctx, email, tier, newCount, ceiling)
	}

	return &CreateResult{
		Entry:     entry,
		Count:     newCount,
		Ceiling:   ceiling,
		WarnedNow: warned,
		Tier:      tier,
	}, nil
}

// sendUsageWarning claims the per-email warning flag and sends the mail. The
// flag key is fixed per email, so only one warning goes out until the flag
// expires; there is no per-billing-cycle reset.
func (s *Service) sendUsageWarning(ctx context.Context, email, tier string, count, ceiling int64) bool {
	claimed, err := s.store.SetNX(ctx, keyUsageWarned(email), models.FormatTimestamp(s.now()), s.cfg.WarnFlagTTL)
	if err != nil {
		log.Errorf("[FleetLog] Usage warning claim failed for %s: %v", email, err)
		return false
	}
	if !claimed {
		return false
	}

	subject, body := mail.UsageWarningMessage(tier, count, ceiling)
	if err := s.mailer.Send(email, subject, body); err != nil {
		log.Errorf("[FleetLog] Usage warning send failed for %s: %v", email, err)
		if delErr := s.store.Del(ctx, keyUsageWarned(email)); delErr != nil {
			log.Errorf("[FleetLog] Failed to release warning claim for %s: %v", email, delErr)
		}
		return false
	}
	return true
}

// ListEntries returns the user's entries, newest first. Dangling ids and
// unreadable records are skipped.
func (s *Service) ListEntries(ctx context.Context, email string) ([]models.LogEntry, error) {
	ids, err := s.store.LRange(ctx, keyEntryList(email), 0, -1)
	if err != nil {
		return nil, err
	}
	entries := make([]models.LogEntry, 0, len(ids))
	for _, id := range ids {
		raw, err := s.store.Get(ctx, keyEntry(id))
		if err != nil {
			continue
		}
		var entry models.LogEntry
		if kv.UnmarshalRecord(raw, &entry) {
			entries = append(entries, entry)
		}
	}
	return entries, nil
}

// GetEntry fetches one entry by id.
func (s *Service) GetEntry(ctx context.Context, id string) (*models.LogEntry, error) {
	raw, err := s.store.Get(ctx, keyEntry(strings.TrimSpace(id)))
	if errors.Is(err, kv.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var entry models.LogEntry
	if !kv.UnmarshalRecord(raw, &entry) {
		return nil, ErrNotFound
	}
	return &entry, nil
}

// Count returns the user's current entry count.
func (s *Service) Count(ctx context.Context, email string) (int64, error) {
	return s.store.LLen(ctx, keyEntryList(email))
}
