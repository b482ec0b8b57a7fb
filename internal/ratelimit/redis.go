// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Voro Contributors

package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/samber/oops"
)

// DefaultRedisPrefix namespaces rate limit keys in a shared Redis.
const DefaultRedisPrefix = "voro:ratelimit:"

// takeScript increments the window counter and starts the window on first
// use. A counter left without a TTL is given one again so it cannot pin a
// client forever. Returns {count, pttl}.
var takeScript = redis.NewScript(`
local count = redis.call("INCR", KEYS[1])
if count == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("PTTL", KEYS[1])
if ttl < 0 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
  ttl = tonumber(ARGV[1])
end
return {count, ttl}
`)

// RedisStore counts attempts in fixed windows in Redis so every instance of
// the service shares one budget.
type RedisStore struct {
	client redis.Scripter
	prefix string
}

// NewRedisStore creates a RedisStore. An empty prefix uses DefaultRedisPrefix.
func NewRedisStore(client redis.Scripter, prefix string) (*RedisStore, error) {
	if client == nil {
		return nil, oops.Code("RATELIMIT_CONFIG_INVALID").Errorf("redis client is required")
	}
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisStore{client: client, prefix: prefix}, nil
}

// Take implements Store.
func (s *RedisStore) Take(ctx context.Context, key string, limit int, window time.Duration) (Decision, error) {
	windowMs := window.Milliseconds()
	if windowMs < 1 {
		windowMs = 1
	}

	vals, err := takeScript.Run(ctx, s.client, []string{s.prefix + key}, windowMs).Int64Slice()
	if err != nil {
		return Decision{}, oops.Code("RATELIMIT_REDIS_FAILED").
			With("operation", "take").
			Wrap(err)
	}
	if len(vals) != 2 {
		return Decision{}, oops.Code("RATELIMIT_REDIS_FAILED").
			With("operation", "take").
			With("reply_len", len(vals)).
			Errorf("unexpected script reply")
	}

	count, ttl := vals[0], time.Duration(vals[1])*time.Millisecond
	if count > int64(limit) {
		return Decision{RetryAfter: ttl}, nil
	}
	return Decision{Allowed: true, Remaining: limit - int(count)}, nil
}
