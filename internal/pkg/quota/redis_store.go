package quota

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ManuelReschke/NoteFox/internal/pkg/entitlements"
)

const (
	usedSuffix  = ":used"
	resetSuffix = ":reset"

	// Long enough to outlive a monthly window.
	usageKeyTTL = 62 * 24 * time.Hour
)

// consumeScript performs rollover, limit check and increment on one user hash
// atomically. ARGV: feature, window (yyyymmdd), limit (-1 = unbounded), ttl seconds.
var consumeScript = redis.NewScript(`
local usedField = ARGV[1] .. ':used'
local resetField = ARGV[1] .. ':reset'
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
local used = tonumber(redis.call('HGET', KEYS[1], usedField) or '0')
local reset = tonumber(redis.call('HGET', KEYS[1], resetField) or '0')
if reset < window then
  used = 0
  redis.call('HSET', KEYS[1], usedField, 0, resetField, window)
  redis.call('EXPIRE', KEYS[1], ARGV[4])
end
if limit >= 0 and used >= limit then
  return {0, used}
end
used = redis.call('HINCRBY', KEYS[1], usedField, 1)
redis.call('HSET', KEYS[1], resetField, window)
redis.call('EXPIRE', KEYS[1], ARGV[4])
return {1, used}
`)

// resetScript zeroes every feature counter of a user. ARGV: reset date (yyyymmdd).
var resetScript = redis.NewScript(`
local fields = redis.call('HKEYS', KEYS[1])
for _, f in ipairs(fields) do
  if string.sub(f, -5) == ':used' then
    redis.call('HSET', KEYS[1], f, 0)
  elseif string.sub(f, -6) == ':reset' then
    redis.call('HSET', KEYS[1], f, ARGV[1])
  end
end
return #fields
`)

// RedisStore keeps all counters of a user in one hash so a Lua script can
// update them atomically.
type RedisStore struct {
	client redis.Cmdable
	prefix string
}

func NewRedisStore(client redis.Cmdable, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "notefox"
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) key(userID string) string {
	return s.prefix + ":usage:" + userID
}

func (s *RedisStore) Consume(ctx context.Context, userID string, feature entitlements.Feature, window time.Time, limit entitlements.Limit) (Decision, error) {
	ceiling := int64(-1)
	if !limit.IsUnbounded() {
		ceiling = limit.Value()
	}
	res, err := consumeScript.Run(ctx, s.client, []string{s.key(userID)},
		string(feature), encodeDate(window), ceiling, int64(usageKeyTTL/time.Second)).Int64Slice()
	if err != nil {
		return Decision{}, err
	}
	if len(res) != 2 {
		return Decision{}, fmt.Errorf("unexpected consume script reply %v", res)
	}
	return Decision{Allowed: res[0] == 1, UsedCount: res[1]}, nil
}

func (s *RedisStore) ResetAll(ctx context.Context, userID string, resetAt time.Time) error {
	return resetScript.Run(ctx, s.client, []string{s.key(userID)}, encodeDate(resetAt)).Err()
}

func (s *RedisStore) List(ctx context.Context, userID string) ([]Usage, error) {
	fields, err := s.client.HGetAll(ctx, s.key(userID)).Result()
	if err != nil {
		return nil, err
	}
	byFeature := map[string]*Usage{}
	entry := func(name string) *Usage {
		u, ok := byFeature[name]
		if !ok {
			u = &Usage{Feature: entitlements.Feature(name)}
			byFeature[name] = u
		}
		return u
	}
	for field, value := range fields {
		switch {
		case strings.HasSuffix(field, usedSuffix):
			n, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("parse %s: %w", field, err)
			}
			entry(strings.TrimSuffix(field, usedSuffix)).UsedCount = n
		case strings.HasSuffix(field, resetSuffix):
			t, err := decodeDate(value)
			if err != nil {
				return nil, fmt.Errorf("parse %s: %w", field, err)
			}
			entry(strings.TrimSuffix(field, resetSuffix)).ResetAt = t
		}
	}

	out := make([]Usage, 0, len(byFeature))
	for _, f := range entitlements.Features() {
		if u, ok := byFeature[string(f)]; ok {
			out = append(out, *u)
		}
	}
	return out, nil
}

func encodeDate(t time.Time) string {
	return civilDate(t).Format("20060102")
}

func decodeDate(s string) (time.Time, error) {
	return time.ParseInLocation("20060102", s, time.UTC)
}
