package fleetlog

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetlog/fleetlog/app/models"
	"github.com/fleetlog/fleetlog/internal/pkg/config"
	"github.com/fleetlog/fleetlog/internal/pkg/kv"
)

type sentMail struct {
	to, subject, body string
}

type fakeMailer struct {
	sent    []sentMail
	failing bool
}

func (f *fakeMailer) Send(to, subject, body string) error {
	if f.failing {
		return errors.New("mailer down")
	}
	f.sent = append(f.sent, sentMail{to: to, subject: subject, body: body})
	return nil
}

func testConfig() *config.Config {
	return &config.Config{
		CeilingSingle: 30,
		CeilingFleet:  300,
		WarnFraction:  0.8,
		WarnFlagTTL:   30 * 24 * time.Hour,
	}
}

func newTestService() (*Service, *kv.MemoryStore, *fakeMailer) {
	store := kv.NewMemoryStore()
	mailer := &fakeMailer{}
	svc := NewService(store, mailer, testConfig())
	return svc, store, mailer
}

func fill(t *testing.T, svc *Service, email, tier string, n int) {
	t.Helper()
	ctx := context.Background()
	for i := 0; i < n; i++ {
		_, err := svc.CreateEntry(ctx, email, tier, fmt.Sprintf("run %d", i), "", int64(1000+i))
		require.NoError(t, err)
	}
}

func TestCreateEntry_SingleTierCeiling(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	fill(t, svc, "driver@example.com", "single", 29)

	result, err := svc.CreateEntry(ctx, "driver@example.com", "single", "run 30", "last one", 2000)
	require.NoError(t, err)
	assert.Equal(t, int64(30), result.Count)
	assert.Equal(t, int64(30), result.Ceiling)

	_, err = svc.CreateEntry(ctx, "driver@example.com", "single", "run 31", "", 2001)
	assert.ErrorIs(t, err, ErrLimitReached)

	count, err := svc.Count(ctx, "driver@example.com")
	require.NoError(t, err)
	assert.Equal(t, int64(30), count, "a refused entry must not change the count")
}

func TestCreateEntry_FleetTierCeiling(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	result, err := svc.CreateEntry(ctx, "boss@example.com", "fleet", "first haul", "", 500)
	require.NoError(t, err)
	assert.Equal(t, int64(300), result.Ceiling)
	assert.Equal(t, models.TierFleet, result.Tier)
	assert.False(t, result.WarnedNow)
}

func TestCreateEntry_UnknownTierDefaultsToSingle(t *testing.T) {
	svc, _, _ := newTestService()

	result, err := svc.CreateEntry(context.Background(), "driver@example.com", "platinum", "run", "", 0)
	require.NoError(t, err)
	assert.Equal(t, models.TierSingle, result.Tier)
	assert.Equal(t, int64(30), result.Ceiling)
}

func TestCreateEntry_WarningFiresOnceAtThreshold(t *testing.T) {
	svc, store, mailer := newTestService()
	ctx := context.Background()

	// 0.8 * 30 = 24: entry 23 stays quiet, entry 24 warns.
	fill(t, svc, "driver@example.com", "single", 23)
	assert.Empty(t, mailer.sent)

	result, err := svc.CreateEntry(ctx, "driver@example.com", "single", "run 24", "", 0)
	require.NoError(t, err)
	assert.True(t, result.WarnedNow)
	require.Len(t, mailer.sent, 1)
	assert.Equal(t, "driver@example.com", mailer.sent[0].to)
	assert.Contains(t, mailer.sent[0].body, "24 of 30")

	ttl := store.TTL(keyUsageWarned("driver@example.com"))
	assert.InDelta(t, (30 * 24 * time.Hour).Seconds(), ttl.Seconds(), 60)

	result, err = svc.CreateEntry(ctx, "driver@example.com", "single", "run 25", "", 0)
	require.NoError(t, err)
	assert.False(t, result.WarnedNow)
	assert.Len(t, mailer.sent, 1, "the warning must not repeat while the flag lives")
}

func TestCreateEntry_WarningRetriesAfterSendFailure(t *testing.T) {
	svc, _, mailer := newTestService()
	ctx := context.Background()

	fill(t, svc, "driver@example.com", "single", 23)

	mailer.failing = true
	result, err := svc.CreateEntry(ctx, "driver@example.com", "single", "run 24", "", 0)
	require.NoError(t, err, "a failed warning send must not fail the entry")
	assert.False(t, result.WarnedNow)

	mailer.failing = false
	result, err = svc.CreateEntry(ctx, "driver@example.com", "single", "run 25", "", 0)
	require.NoError(t, err)
	assert.True(t, result.WarnedNow, "a released claim allows the next attempt")
	assert.Len(t, mailer.sent, 1)
}

func TestListEntries_NewestFirstSkipsDangling(t *testing.T) {
	svc, store, _ := newTestService()
	ctx := context.Background()

	first, err := svc.CreateEntry(ctx, "driver@example.com", "single", "first", "", 100)
	require.NoError(t, err)
	second, err := svc.CreateEntry(ctx, "driver@example.com", "single", "second", "", 200)
	require.NoError(t, err)

	// Simulate a dangling index entry whose record was lost.
	require.NoError(t, store.LPush(ctx, keyEntryList("driver@example.com"), "missing-id"))

	entries, err := svc.ListEntries(ctx, "driver@example.com")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, second.Entry.ID, entries[0].ID)
	assert.Equal(t, first.Entry.ID, entries[1].ID)
}

func TestGetEntry(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	created, err := svc.CreateEntry(ctx, "driver@example.com", "single", "haul", "note", 4200)
	require.NoError(t, err)

	entry, err := svc.GetEntry(ctx, created.Entry.ID)
	require.NoError(t, err)
	assert.Equal(t, "haul", entry.Title)
	assert.Equal(t, int64(4200), entry.Odometer)

	_, err = svc.GetEntry(ctx, "does-not-exist")
	assert.ErrorIs(t, err, ErrNotFound)
}
