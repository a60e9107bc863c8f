package store

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type RedisStore struct {
	client *redis.Client
}

func NewRedis(ctx context.Context, redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("pinging redis: %w", err)
	}

	return &RedisStore{client: client}, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) Client() *redis.Client {
	return s.client
}

// Seen reports whether a provider message id was already fully processed.
func (s *RedisStore) Seen(ctx context.Context, providerMessageID string) (bool, error) {
	if providerMessageID == "" {
		return false, nil
	}
	n, err := s.client.Exists(ctx, "seen_msg:"+providerMessageID).Result()
	if err != nil {
		return false, fmt.Errorf("checking message seen: %w", err)
	}
	return n > 0, nil
}

// MarkSeen records a provider message id as processed and reports whether it
// was new. Callers mark only after processing completes, so a failed message
// stays unseen and a provider redelivery picks it up again. TTL keeps the
// dedup set bounded; after expiry a redelivery would be processed again,
// which is safe because conversation upserts are idempotent.
func (s *RedisStore) MarkSeen(ctx context.Context, providerMessageID string, ttl time.Duration) (bool, error) {
	if providerMessageID == "" {
		return true, nil
	}
	fresh, err := s.client.SetNX(ctx, "seen_msg:"+providerMessageID, 1, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("marking message seen: %w", err)
	}
	return fresh, nil
}
