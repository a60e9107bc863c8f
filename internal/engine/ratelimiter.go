package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// ReplyLimiter throttles auto-reply generation per customer phone using a
// Redis sliding window. A sorted set per phone holds one member per recent
// reply; a Lua script atomically evicts expired members, checks the count,
// and admits or denies the new reply.
type ReplyLimiter struct {
	redisClient *redis.Client
	logger      *slog.Logger
	script      *redis.Script
	window      time.Duration
	limit       int
}

// 1. Drop members older than the window
// 2. Count what remains
// 3. Under the limit: record this reply and return 1 (allowed)
// 4. At the limit: return 0 (denied)
var replyWindowScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
local member = ARGV[4]

redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)

local count = redis.call('ZCARD', key)

if count < limit then
    redis.call('ZADD', key, now, member)
    redis.call('EXPIRE', key, window / 1000 + 1)
    return 1
else
    return 0
end
`)

// NewReplyLimiter creates a limiter allowing at most limit replies per phone
// within the window. A non-positive limit disables throttling.
func NewReplyLimiter(redisClient *redis.Client, logger *slog.Logger, limit int, window time.Duration) *ReplyLimiter {
	if window <= 0 {
		window = time.Minute
	}
	return &ReplyLimiter{
		redisClient: redisClient,
		logger:      logger,
		script:      replyWindowScript,
		window:      window,
		limit:       limit,
	}
}

func replyKey(phone string) string {
	return fmt.Sprintf("reply_rl:%s", phone)
}

// Allow reports whether another reply may be sent to this phone. Fails open
// when Redis is unavailable so provider messages are never silently dropped
// because of a cache outage.
func (rl *ReplyLimiter) Allow(ctx context.Context, phone string) bool {
	if rl.limit <= 0 {
		return true
	}

	now := time.Now().UnixMilli()
	member := fmt.Sprintf("%d:%d", now, time.Now().UnixNano()%10000)

	result, err := rl.script.Run(ctx, rl.redisClient, []string{replyKey(phone)},
		now, rl.window.Milliseconds(), rl.limit, member,
	).Int64()
	if err != nil {
		rl.logger.Error("reply limiter script failed", "error", err, "phone", phone)
		return true
	}

	if result == 0 {
		rl.logger.Debug("reply rate limited", "phone", phone, "limit", rl.limit)
		return false
	}
	return true
}
