package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNotProcessed is returned by GetMetadata for unknown message ids.
var ErrNotProcessed = errors.New("message not processed")

// Deduplicator remembers which events were already handled
type Deduplicator interface {
	IsProcessed(ctx context.Context, messageID string) (bool, error)
	// MarkAsProcessed returns false when another consumer got there first.
	MarkAsProcessed(ctx context.Context, messageID string, meta Metadata) (bool, error)
}

const keyPrefix = "notify:xp:"

// IdempotencyStore is a Redis-backed Deduplicator
type IdempotencyStore struct {
	redis  *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewIdempotencyStore creates a new idempotency store
func NewIdempotencyStore(redisClient *redis.Client, logger *slog.Logger) *IdempotencyStore {
	return &IdempotencyStore{
		redis:  redisClient,
		ttl:    24 * time.Hour,
		logger: logger,
	}
}

func buildKey(messageID string) string {
	return keyPrefix + messageID
}

// IsProcessed checks if an event has already been processed
func (s *IdempotencyStore) IsProcessed(ctx context.Context, messageID string) (bool, error) {
	exists, err := s.redis.Exists(ctx, buildKey(messageID)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check if message is processed: %w", err)
	}
	return exists > 0, nil
}

// MarkAsProcessed records the event with SET NX so only one consumer wins.
func (s *IdempotencyStore) MarkAsProcessed(ctx context.Context, messageID string, meta Metadata) (bool, error) {
	data, err := json.Marshal(meta)
	if err != nil {
		return false, fmt.Errorf("failed to marshal metadata: %w", err)
	}

	ok, err := s.redis.SetNX(ctx, buildKey(messageID), data, s.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to mark message as processed: %w", err)
	}

	if !ok {
		s.logger.Warn("XP event already processed (duplicate detected)", "messageID", messageID)
	}
	return ok, nil
}

// GetMetadata retrieves the metadata for a processed event
func (s *IdempotencyStore) GetMetadata(ctx context.Context, messageID string) (*Metadata, error) {
	data, err := s.redis.Get(ctx, buildKey(messageID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %s", ErrNotProcessed, messageID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get metadata: %w", err)
	}

	var meta Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
	}
	return &meta, nil
}

// Count returns the number of live deduplication records.
func (s *IdempotencyStore) Count(ctx context.Context) (int64, error) {
	var cursor uint64
	var count int64
	for {
		keys, next, err := s.redis.Scan(ctx, cursor, keyPrefix+"*", 100).Result()
		if err != nil {
			return count, fmt.Errorf("failed to scan keys: %w", err)
		}
		count += int64(len(keys))
		if next == 0 {
			return count, nil
		}
		cursor = next
	}
}

// Ping checks the Redis connection.
func (s *IdempotencyStore) Ping(ctx context.Context) error {
	return s.redis.Ping(ctx).Err()
}
