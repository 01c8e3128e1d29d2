package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis implements Limiter on a shared Redis instance so that all gate
// replicas draw from the same buckets.
//
// The bucket state is read-modify-written inside a Lua script, which gives
// the same per-key serialization guarantee the Memory limiter gets from
// its mutex.
type Redis struct {
	rdb    *redis.Client
	config Config

	// keyTTL bounds stale bucket keys in Redis; a key that expires is
	// re-created at full capacity, matching Memory eviction semantics.
	keyTTL time.Duration
}

var _ Limiter = (*Redis)(nil)

// allowScript refills and consumes atomically. KEYS[1] holds the bucket
// hash; ARGV = capacity, refill per second, now (unix milliseconds), ttl
// in seconds. Returns 1 when admitted, 0 when refused.
var allowScript = redis.NewScript(`
local capacity = tonumber(ARGV[1])
local refill = tonumber(ARGV[2])
local now = tonumber(ARGV[3])
local ttl = tonumber(ARGV[4])

local state = redis.call('HMGET', KEYS[1], 'tokens', 'last')
local tokens = tonumber(state[1])
local last = tonumber(state[2])

if tokens == nil then
  tokens = capacity
  last = now
end

local elapsed = (now - last) / 1000.0
tokens = math.min(capacity, tokens + elapsed * refill)

local allowed = 0
if tokens >= 1 then
  tokens = tokens - 1
  allowed = 1
end

redis.call('HMSET', KEYS[1], 'tokens', tokens, 'last', now)
redis.call('EXPIRE', KEYS[1], ttl)
return allowed
`)

// RedisOption configures the Redis limiter.
type RedisOption func(*Redis)

// WithKeyTTL sets the Redis expiry applied to bucket keys.
// Default: 10 minutes.
func WithKeyTTL(d time.Duration) RedisOption {
	return func(r *Redis) { r.keyTTL = d }
}

// NewRedis creates a Redis-backed limiter.
func NewRedis(rdb *redis.Client, cfg Config, opts ...RedisOption) *Redis {
	cfg.applyDefaults()
	r := &Redis{
		rdb:    rdb,
		config: cfg,
		keyTTL: 10 * time.Minute,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Allow consumes one token from key's shared bucket if available.
func (r *Redis) Allow(ctx context.Context, key string) (bool, error) {
	bucketKey := fmt.Sprintf("gate:ratelimit:%s", key)
	now := time.Now().UnixMilli()
	ttl := int(r.keyTTL / time.Second)

	res, err := allowScript.Run(ctx, r.rdb, []string{bucketKey},
		r.config.Capacity, r.config.RefillPerSec, now, ttl).Int()
	if err != nil {
		return false, fmt.Errorf("gate/ratelimit: redis: %w", err)
	}
	return res == 1, nil
}
