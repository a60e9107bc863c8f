package store

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return &RedisStore{client: client}, mr
}

func TestMarkSeen_FirstTimeIsFresh(t *testing.T) {
	s, _ := newTestRedisStore(t)
	ctx := context.Background()

	fresh, err := s.MarkSeen(ctx, "wamid.ABC", time.Hour)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !fresh {
		t.Error("first sighting of a message id must be fresh")
	}
}

func TestMarkSeen_ReplayIsNotFresh(t *testing.T) {
	s, _ := newTestRedisStore(t)
	ctx := context.Background()

	s.MarkSeen(ctx, "wamid.ABC", time.Hour)

	fresh, err := s.MarkSeen(ctx, "wamid.ABC", time.Hour)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fresh {
		t.Error("replayed message id must not be fresh")
	}
}

func TestMarkSeen_ExpiryAllowsReprocessing(t *testing.T) {
	s, mr := newTestRedisStore(t)
	ctx := context.Background()

	s.MarkSeen(ctx, "wamid.ABC", time.Minute)
	mr.FastForward(2 * time.Minute)

	fresh, err := s.MarkSeen(ctx, "wamid.ABC", time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !fresh {
		t.Error("expired dedup entry must allow reprocessing")
	}
}

func TestMarkSeen_EmptyIDIsAlwaysFresh(t *testing.T) {
	s, _ := newTestRedisStore(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		fresh, err := s.MarkSeen(ctx, "", time.Hour)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !fresh {
			t.Error("messages without a provider id are never deduplicated")
		}
	}
}

func TestSeen_OnlyAfterMark(t *testing.T) {
	s, _ := newTestRedisStore(t)
	ctx := context.Background()

	seen, err := s.Seen(ctx, "wamid.ABC")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if seen {
		t.Error("unmarked message id must not be seen")
	}

	s.MarkSeen(ctx, "wamid.ABC", time.Hour)

	seen, err = s.Seen(ctx, "wamid.ABC")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !seen {
		t.Error("marked message id must be seen")
	}
}

func TestSeen_EmptyIDIsNeverSeen(t *testing.T) {
	s, _ := newTestRedisStore(t)

	seen, err := s.Seen(context.Background(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if seen {
		t.Error("messages without a provider id are never deduplicated")
	}
}
