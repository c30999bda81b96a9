package ratelimit

import (
	"context"
	"time"

	"github.com/fleetlog/fleetlog/internal/pkg/kv"
)

// Limiter is a fixed-window counter: INCR per request, window expiry set when
// the counter is fresh. Two concurrent first requests can both see a fresh
// counter; the duplicate EXPIRE is harmless.
type Limiter struct {
	store  kv.Store
	max    int64
	window time.Duration
}

func New(store kv.Store, max int64, window time.Duration) *Limiter {
	return &Limiter{store: store, max: max, window: window}
}

// Allow counts one request against the subject's current window.
func (l *Limiter) Allow(ctx context.Context, subject string) (bool, error) {
	key := "ratelimit:" + subject
	n, err := l.store.Incr(ctx, key)
	if err != nil {
		return false, err
	}
	if n == 1 {
		if err := l.store.Expire(ctx, key, l.window); err != nil {
			return false, err
		}
	}
	return n <= l.max, nil
}
