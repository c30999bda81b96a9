package waitlist

import (
	"context"
	"errors"
	"time"

	"github.com/fleetlog/fleetlog/app/models"
	"github.com/fleetlog/fleetlog/internal/pkg/kv"
)

const indexKey = "waitlist"

// ErrInvalidEmail rejects join attempts without a usable address.
var ErrInvalidEmail = errors.New("waitlist: a valid email is required")

// Service keeps the FleetLog waitlist: one record per address plus an index
// list for admin reads. Joining twice is idempotent.
type Service struct {
	store kv.Store
	now   func() time.Time
}

func NewService(store kv.Store) *Service {
	return &Service{store: store, now: time.Now}
}

func keyEntry(email string) string { return "waitlist:" + email }

// Join adds an address to the waitlist. created=false means the address was
// already present; the stored record is left untouched.
func (s *Service) Join(ctx context.Context, email, name string, fleetSize int, source string) (bool, error) {
	e := models.NormalizeEmail(email)
	if e == "" {
		return false, ErrInvalidEmail
	}

	entry := models.WaitlistEntry{
		Email:     e,
		Name:      name,
		FleetSize: fleetSize,
		JoinedAt:  models.FormatTimestamp(s.now()),
		Source:    source,
	}
	data, err := kv.MarshalRecord(&entry)
	if err != nil {
		return false, err
	}

	created, err := s.store.SetNX(ctx, keyEntry(e), data, 0)
	if err != nil {
		return false, err
	}
	if !created {
		return false, nil
	}
	if err := s.store.LPush(ctx, indexKey, e); err != nil {
		return false, err
	}
	return true, nil
}

// List returns up to n entries, newest joins first.
func (s *Service) List(ctx context.Context, n int64) ([]models.WaitlistEntry, error) {
	if n <= 0 {
		n = 100
	}
	emails, err := s.store.LRange(ctx, indexKey, 0, n-1)
	if err != nil {
		return nil, err
	}
	entries := make([]models.WaitlistEntry, 0, len(emails))
	for _, email := range emails {
		raw, err := s.store.Get(ctx, keyEntry(email))
		if err != nil {
			continue
		}
		var entry models.WaitlistEntry
		if kv.UnmarshalRecord(raw, &entry) {
			entries = append(entries, entry)
		}
	}
	return entries, nil
}
