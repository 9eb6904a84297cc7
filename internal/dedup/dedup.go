// Package dedup makes webhook handling idempotent by marking every
// processed (provider, event id) pair in a shared key-value store.
package dedup

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// MarkerTTL bounds how long replayed deliveries are recognized. Providers
// retry for at most a day, so markers older than that are dead weight.
const MarkerTTL = 24 * time.Hour

// MarkerStore is the small slice of the key-value store the deduplicator
// needs: set-if-absent with expiry, plus delete to release a marker.
type MarkerStore interface {
	SetIfAbsent(ctx context.Context, key string, ttl time.Duration) (set bool, err error)
	Delete(ctx context.Context, key string) error
}

type Deduplicator struct {
	store MarkerStore
}

func NewDeduplicator(store MarkerStore) *Deduplicator {
	return &Deduplicator{store: store}
}

// CheckAndMark atomically checks for and sets the marker for an event.
// Returns true when the event was already handled. Store failures fail
// open (event treated as new): a rare double-process beats silently
// dropping a legitimate webhook.
func (d *Deduplicator) CheckAndMark(ctx context.Context, provider, eventID string) bool {
	if d.store == nil {
		return false
	}

	key := fmt.Sprintf("webhook:%s:%s", provider, eventID)
	set, err := d.store.SetIfAbsent(ctx, key, MarkerTTL)
	if err != nil {
		log.Warn().Err(err).Str("provider", provider).Str("event_id", eventID).
			Msg("dedup store unavailable, treating event as new")
		return false
	}
	return !set
}

// Unmark releases an event marker after processing failed, so the
// provider's retry of the same delivery is handled instead of dropped.
// Best effort: if the delete fails the retry is lost the same way a
// never-released marker would lose it, so the error is only logged.
func (d *Deduplicator) Unmark(ctx context.Context, provider, eventID string) {
	if d.store == nil {
		return
	}

	key := fmt.Sprintf("webhook:%s:%s", provider, eventID)
	if err := d.store.Delete(ctx, key); err != nil {
		log.Warn().Err(err).Str("provider", provider).Str("event_id", eventID).
			Msg("failed to release dedup marker, retries of this event will be dropped")
	}
}

type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) SetIfAbsent(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return s.client.SetNX(ctx, key, 1, ttl).Result()
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, key).Err()
}
