package bucket

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"conductor/internal/ratelimit/models"
)

// slidingWindowScript implements atomic sliding-window increment-and-check
// on a ZSET of request timestamps. Expired members are dropped, the window
// count is compared against the limit, and the member is only added when
// admitted, all inside one script execution.
var slidingWindowScript = redis.NewScript(`
local key = KEYS[1]
local now_ms = tonumber(ARGV[1])
local window_ms = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
local member = ARGV[4]
redis.call("ZREMRANGEBYSCORE", key, 0, now_ms - window_ms)
local count = redis.call("ZCARD", key)
if count >= limit then
  local oldest = redis.call("ZRANGE", key, 0, 0, "WITHSCORES")
  return {0, count, oldest[2] or now_ms}
end
redis.call("ZADD", key, now_ms, member)
redis.call("PEXPIRE", key, window_ms)
local oldest = redis.call("ZRANGE", key, 0, 0, "WITHSCORES")
return {1, count + 1, oldest[2] or now_ms}
`)

const redisKeyPrefix = "rl:"

// RedisBucketStore implements BucketStore on a shared Redis so the hard cap
// holds across replicas. Script execution is atomic per key, which gives
// the linearizable increment-and-check the limiter requires.
type RedisBucketStore struct {
	client *redis.Client
}

func NewRedisBucketStore(client *redis.Client) *RedisBucketStore {
	return &RedisBucketStore{client: client}
}

// Allow checks and increments the sliding window for key.
func (s *RedisBucketStore) Allow(ctx context.Context, key string, limit int, window time.Duration) (*models.RateLimitResult, error) {
	now := time.Now()
	res, err := slidingWindowScript.Run(ctx, s.client,
		[]string{redisKeyPrefix + key},
		now.UnixMilli(), window.Milliseconds(), limit, uuid.NewString(),
	).Result()
	if err != nil {
		return nil, fmt.Errorf("rate limit script: %w", err)
	}

	vals, ok := res.([]any)
	if !ok || len(vals) < 3 {
		return nil, fmt.Errorf("rate limit script: unexpected result %v", res)
	}
	admitted, _ := vals[0].(int64)
	count, _ := vals[1].(int64)

	oldestMs := now.UnixMilli()
	switch v := vals[2].(type) {
	case int64:
		oldestMs = v
	case string:
		fmt.Sscanf(v, "%d", &oldestMs)
	}
	resetAt := time.UnixMilli(oldestMs).Add(window)

	if admitted == 0 {
		return &models.RateLimitResult{
			Allowed:    false,
			Limit:      limit,
			Remaining:  0,
			ResetAt:    resetAt,
			RetryAfter: retryAfterSeconds(now, resetAt),
		}, nil
	}

	remaining := limit - int(count)
	if remaining < 0 {
		remaining = 0
	}
	return &models.RateLimitResult{
		Allowed:   true,
		Limit:     limit,
		Remaining: remaining,
		ResetAt:   resetAt,
	}, nil
}

// Reset clears the rate limit counter for a key.
func (s *RedisBucketStore) Reset(ctx context.Context, key string) error {
	return s.client.Del(ctx, redisKeyPrefix+key).Err()
}

// CurrentCount returns the live request count for a key.
func (s *RedisBucketStore) CurrentCount(ctx context.Context, key string) (int, error) {
	n, err := s.client.ZCard(ctx, redisKeyPrefix+key).Result()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}
