// Package eventstore appends drained domain events to a durable Redis log
// keyed by account, and exposes the short-lived cache used to deduplicate
// event reprocessing. Transport failures surface as ErrTransportUnavailable;
// the store retries with backoff and never takes the process down.
package eventstore

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kestrelbank/ledger-service/internal/domain"
)

const (
	eventLogPrefix  = "account:events:"
	processedPrefix = "processed:"
)

// Client is the slice of redis used by the store. *redis.Client satisfies it;
// tests substitute an in-memory fake.
type Client interface {
	RPush(ctx context.Context, key string, values ...any) *redis.IntCmd
	LRange(ctx context.Context, key string, start, stop int64) *redis.StringSliceCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	SetNX(ctx context.Context, key string, value any, expiration time.Duration) *redis.BoolCmd
}

type Store struct {
	client      Client
	maxAttempts int
	baseDelay   time.Duration
	logger      *slog.Logger
}

func NewStore(client Client, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		client:      client,
		maxAttempts: 3,
		baseDelay:   50 * time.Millisecond,
		logger:      logger,
	}
}

// Save appends the event to the originating account's log.
func (s *Store) Save(ctx context.Context, event domain.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event %s: %w", event.ID, err)
	}
	key := eventLogPrefix + event.AccountID

	var lastErr error
	for attempt := 0; attempt < s.maxAttempts; attempt++ {
		if lastErr = s.client.RPush(ctx, key, payload).Err(); lastErr == nil {
			return nil
		}
		s.logger.Warn("event store append failed",
			"eventId", event.ID, "attempt", attempt+1, "error", lastErr)
		if attempt < s.maxAttempts-1 {
			select {
			case <-ctx.Done():
				return fmt.Errorf("append event %s: %v: %w", event.ID, ctx.Err(), domain.ErrTransportUnavailable)
			case <-time.After(s.baseDelay << attempt):
			}
		}
	}
	return fmt.Errorf("append event %s: %v: %w", event.ID, lastErr, domain.ErrTransportUnavailable)
}

// Events returns the full event log for an account, oldest first.
func (s *Store) Events(ctx context.Context, accountID string) ([]domain.Event, error) {
	raw, err := s.client.LRange(ctx, eventLogPrefix+accountID, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("read event log for %s: %v: %w", accountID, err, domain.ErrTransportUnavailable)
	}
	events := make([]domain.Event, 0, len(raw))
	for _, item := range raw {
		var event domain.Event
		if err := json.Unmarshal([]byte(item), &event); err != nil {
			return nil, fmt.Errorf("corrupt event in log for %s: %w", accountID, err)
		}
		events = append(events, event)
	}
	return events, nil
}

// Get reads a cache entry. A miss is (empty, false, nil).
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := s.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("cache get %s: %v: %w", key, err, domain.ErrTransportUnavailable)
	}
	return value, true, nil
}

// Set writes a cache entry that expires after ttl.
func (s *Store) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("cache set %s: %v: %w", key, err, domain.ErrTransportUnavailable)
	}
	return nil
}

// IsProcessed reports whether an event id is already in the dedup cache,
// without marking it. Consumers check before applying and mark only after the
// apply succeeded, so a failed apply stays eligible for redelivery.
func (s *Store) IsProcessed(ctx context.Context, eventID string) (bool, error) {
	_, seen, err := s.Get(ctx, processedPrefix+eventID)
	return seen, err
}

// MarkProcessed records an event id in the dedup cache. It returns false when
// the id was already present, meaning the event is a redelivery.
func (s *Store) MarkProcessed(ctx context.Context, eventID string, ttl time.Duration) (bool, error) {
	first, err := s.client.SetNX(ctx, processedPrefix+eventID, "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("dedup mark %s: %v: %w", eventID, err, domain.ErrTransportUnavailable)
	}
	return first, nil
}

// HandleEvent adapts the store to the dispatcher's handler signature.
func (s *Store) HandleEvent(ctx context.Context, event domain.Event) error {
	return s.Save(ctx, event)
}
