package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/aussiebroadwan/medrec/pkg/cryptox"
)

// DefaultRedisPrefix namespaces ledger keys.
const DefaultRedisPrefix = "medrec:ratelimit:"

// slidingWindowScript prunes, counts, and conditionally records in a single
// round trip so concurrent instances cannot overshoot the budget.
//
// KEYS[1] ledger key
// ARGV[1] now (unix microseconds)
// ARGV[2] window (microseconds)
// ARGV[3] limit
// ARGV[4] unique member for this attempt
var slidingWindowScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])

redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)
if redis.call('ZCARD', key) >= limit then
	return 0
end

redis.call('ZADD', key, now, ARGV[4])
redis.call('PEXPIRE', key, math.ceil(window / 1000))
return 1
`)

// RedisStore keeps the ledger in Redis sorted sets, one per key. Keys are
// fingerprinted before use so identities such as e-mail addresses never
// appear in Redis in the clear.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisStore creates a RedisStore. An empty prefix selects
// DefaultRedisPrefix.
func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) key(k string) string {
	return s.prefix + cryptox.Fingerprint(k)
}

// RecordIfAllowed implements Store.
func (s *RedisStore) RecordIfAllowed(ctx context.Context, key string, now time.Time, window time.Duration, limit int) (bool, error) {
	member := strconv.FormatInt(now.UnixMicro(), 10) + "-" + uuid.NewString()

	res, err := slidingWindowScript.Run(ctx, s.client,
		[]string{s.key(key)},
		now.UnixMicro(), window.Microseconds(), limit, member,
	).Int()
	if err != nil {
		return false, fmt.Errorf("ratelimit: redis record: %w", err)
	}
	return res == 1, nil
}

// Delete implements Store.
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.key(key)).Err(); err != nil {
		return fmt.Errorf("ratelimit: redis delete: %w", err)
	}
	return nil
}
