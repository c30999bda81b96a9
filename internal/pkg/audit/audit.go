package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/fleetlog/fleetlog/app/models"
	"github.com/fleetlog/fleetlog/internal/pkg/kv"
)

const listKey = "audit"

// Recorder appends operations events to a single time-bounded list. Writes
// are best effort: a failed audit write is logged and never fails the request
// that produced it.
type Recorder struct {
	store kv.Store
	ttl   time.Duration
	now   func() time.Time
}

func NewRecorder(store kv.Store, ttl time.Duration) *Recorder {
	return &Recorder{store: store, ttl: ttl, now: time.Now}
}

// Record appends one event and refreshes the trail's expiry.
func (r *Recorder) Record(ctx context.Context, event models.AuditEvent) {
	if event.At == "" {
		event.At = models.FormatTimestamp(r.now())
	}
	data, err := json.Marshal(event)
	if err != nil {
		log.Errorf("[Audit] marshal failed for %s: %v", event.Action, err)
		return
	}
	if err := r.store.LPush(ctx, listKey, string(data)); err != nil {
		log.Errorf("[Audit] append failed for %s: %v", event.Action, err)
		return
	}
	if err := r.store.Expire(ctx, listKey, r.ttl); err != nil {
		log.Errorf("[Audit] expire refresh failed: %v", err)
	}
}

// Recent returns up to n newest events, newest first. Entries that no longer
// decode are skipped.
func (r *Recorder) Recent(ctx context.Context, n int64) ([]models.AuditEvent, error) {
	if n <= 0 {
		n = 50
	}
	raw, err := r.store.LRange(ctx, listKey, 0, n-1)
	if err != nil {
		return nil, err
	}
	events := make([]models.AuditEvent, 0, len(raw))
	for _, item := range raw {
		var ev models.AuditEvent
		if err := json.Unmarshal([]byte(item), &ev); err != nil {
			continue
		}
		events = append(events, ev)
	}
	return events, nil
}
