package kvstore

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig configures the production Store backend.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// Redis is the production Store implementation. TTL maps directly onto
// native Redis expiry (EXPIRE/PEXPIRE) and atomic check-and-set runs as a
// server-side Lua script, the way jordigilh-kubernaut's gateway deduplication layer uses
// Redis for the same class of problem (dedup keys with a trailing-window
// TTL) rather than hand-rolling expiry.
type Redis struct {
	client *redis.Client
}

// NewRedis creates a Redis-backed Store and verifies connectivity.
func NewRedis(ctx context.Context, cfg RedisConfig) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("kvstore: redis ping: %w", err)
	}
	return &Redis{client: client}, nil
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := r.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("kvstore: redis get %s: %w", key, err)
	}
	return val, nil
}

func (r *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = 0
	}
	if err := r.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("kvstore: redis set %s: %w", key, err)
	}
	return nil
}

func (r *Redis) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("kvstore: redis del %s: %w", key, err)
	}
	return nil
}

// AppendBounded pushes entry onto the right of a Redis list, trims it to
// maxLen from the left (oldest dropped first, newest kept), and refreshes
// the key's TTL — one round trip via a pipeline.
func (r *Redis) AppendBounded(ctx context.Context, key string, entry []byte, maxLen int, ttl time.Duration) error {
	pipe := r.client.TxPipeline()
	pipe.RPush(ctx, key, entry)
	pipe.LTrim(ctx, key, int64(-maxLen), -1)
	if ttl > 0 {
		pipe.Expire(ctx, key, ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("kvstore: redis append_bounded %s: %w", key, err)
	}
	return nil
}

func (r *Redis) ListBounded(ctx context.Context, key string) ([][]byte, error) {
	vals, err := r.client.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("kvstore: redis list_bounded %s: %w", key, err)
	}
	out := make([][]byte, len(vals))
	for i, v := range vals {
		out[i] = []byte(v)
	}
	return out, nil
}

// atomicCheckAndSetScript implements compare-and-swap semantics Redis
// doesn't expose directly for the "expected == current" case: SETNX only
// covers "expected == absent". The Lua script runs atomically server-side.
var atomicCheckAndSetScript = redis.NewScript(`
local current = redis.call('GET', KEYS[1])
local expected = ARGV[1]
local hasExpected = ARGV[4] == '1'
if hasExpected then
	if current == false or current ~= expected then
		return 0
	end
else
	if current ~= false then
		return 0
	end
end
redis.call('SET', KEYS[1], ARGV[2])
if tonumber(ARGV[3]) > 0 then
	redis.call('PEXPIRE', KEYS[1], ARGV[3])
end
return 1
`)

func (r *Redis) AtomicCheckAndSet(ctx context.Context, key string, expected, newValue []byte, ttl time.Duration) (bool, error) {
	hasExpected := "0"
	expectedArg := ""
	if expected != nil {
		hasExpected = "1"
		expectedArg = string(expected)
	}
	ttlMS := int64(0)
	if ttl > 0 {
		ttlMS = ttl.Milliseconds()
	}

	res, err := atomicCheckAndSetScript.Run(ctx, r.client, []string{key}, expectedArg, string(newValue), ttlMS, hasExpected).Int()
	if err != nil {
		return false, fmt.Errorf("kvstore: redis atomic_check_and_set %s: %w", key, err)
	}
	return res == 1, nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}

var _ Store = (*Redis)(nil)
