package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// CounterStore is the slice of the key-value store the limiter needs.
// Implemented by the redis client wrapper and by an in-memory fake in tests.
type CounterStore interface {
	// Increment bumps the counter at key, setting ttl when the key is new,
	// and returns the post-increment count and the remaining window.
	Increment(ctx context.Context, key string, ttl time.Duration) (count int64, remaining time.Duration, err error)
}

type Result struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

// Limiter enforces a fixed window of Capacity requests per Window. The
// window is fixed, not sliding: a burst straddling a boundary can admit
// close to twice the capacity, which is accepted for this control.
type Limiter struct {
	store    CounterStore
	capacity int
	window   time.Duration
}

func NewLimiter(store CounterStore, capacity int, window time.Duration) *Limiter {
	return &Limiter{
		store:    store,
		capacity: capacity,
		window:   window,
	}
}

// Check counts the request against the user's current window. Store errors
// fail open: availability wins over strict enforcement here.
func (l *Limiter) Check(ctx context.Context, userID string) Result {
	if l.store == nil {
		return Result{Allowed: true, Remaining: l.capacity}
	}

	key := fmt.Sprintf("ratelimit:%s", userID)
	count, ttl, err := l.store.Increment(ctx, key, l.window)
	if err != nil {
		log.Warn().Err(err).Str("user_id", userID).Msg("rate limit store unavailable, failing open")
		return Result{Allowed: true, Remaining: l.capacity}
	}

	remaining := l.capacity - int(count)
	if remaining < 0 {
		remaining = 0
	}

	return Result{
		Allowed:   count <= int64(l.capacity),
		Remaining: remaining,
		ResetAt:   time.Now().Add(ttl),
	}
}
