package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/amirasaad/bankcards/pkg/idempotency"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes a key only while it still holds the pending claim of
// the caller. ARGV: pending state, owner.
var releaseScript = redis.NewScript(`
local v = redis.call("GET", KEYS[1])
if not v then
	return 0
end
local rec = cjson.decode(v)
if rec["state"] == ARGV[1] and rec["owner"] == ARGV[2] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// putScript stores a result over the pending claim of the caller, or over an
// expired claim. ARGV: pending state, owner, record, ttl in milliseconds.
var putScript = redis.NewScript(`
local v = redis.call("GET", KEYS[1])
if v then
	local rec = cjson.decode(v)
	if rec["state"] ~= ARGV[1] or rec["owner"] ~= ARGV[2] then
		return 0
	end
end
redis.call("SET", KEYS[1], ARGV[3], "PX", ARGV[4])
return 1
`)

// RedisIdempotencyStore implements idempotency.Store using Redis. Claims use
// SET NX so only one request across all instances wins a key.
type RedisIdempotencyStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	logger *slog.Logger
}

// NewRedisIdempotencyStore connects to the Redis server at url.
func NewRedisIdempotencyStore(
	url, prefix string,
	ttl time.Duration,
	logger *slog.Logger,
) (*RedisIdempotencyStore, error) {
	if url == "" {
		return nil, fmt.Errorf("redis idempotency store: url is required")
	}
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis idempotency store: invalid URL: %w", err)
	}
	client := redis.NewClient(opt)
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("redis idempotency store: connection failed: %w", err)
	}
	return NewRedisIdempotencyStoreWithClient(client, prefix, ttl, logger), nil
}

// NewRedisIdempotencyStoreWithClient wraps an existing client.
func NewRedisIdempotencyStoreWithClient(
	client *redis.Client,
	prefix string,
	ttl time.Duration,
	logger *slog.Logger,
) *RedisIdempotencyStore {
	if ttl <= 0 {
		ttl = idempotency.DefaultTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisIdempotencyStore{
		client: client,
		prefix: prefix,
		ttl:    ttl,
		logger: logger.With("component", "redis-idempotency"),
	}
}

func (r *RedisIdempotencyStore) key(key string) string {
	return r.prefix + key
}

// Has implements idempotency.Store.
func (r *RedisIdempotencyStore) Has(ctx context.Context, key string) (bool, error) {
	if err := idempotency.ValidateKey(key); err != nil {
		return false, err
	}
	n, err := r.client.Exists(ctx, r.key(key)).Result()
	if err != nil {
		r.logger.Error("Redis exists error", "key", key, "error", err)
		return false, err
	}
	return n > 0, nil
}

// Get implements idempotency.Store.
func (r *RedisIdempotencyStore) Get(ctx context.Context, key string, out any) (bool, error) {
	if err := idempotency.ValidateKey(key); err != nil {
		return false, err
	}
	val, err := r.client.Get(ctx, r.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		r.logger.Debug("Redis cache miss", "key", key)
		return false, nil
	}
	if err != nil {
		r.logger.Error("Redis cache get error", "key", key, "error", err)
		return false, err
	}
	var rec idempotency.Record
	if err := json.Unmarshal(val, &rec); err != nil {
		r.logger.Error("Redis cache unmarshal error", "key", key, "error", err)
		return false, err
	}
	if rec.State != idempotency.StateDone {
		r.logger.Debug("Redis cache pending", "key", key)
		return false, nil
	}
	if err := json.Unmarshal(rec.Payload, out); err != nil {
		r.logger.Error("Redis payload unmarshal error", "key", key, "error", err)
		return false, err
	}
	r.logger.Debug("Redis cache hit", "key", key)
	return true, nil
}

// Put implements idempotency.Store.
func (r *RedisIdempotencyStore) Put(ctx context.Context, key, owner string, result any) error {
	if err := idempotency.ValidateKey(key); err != nil {
		return err
	}
	payload, err := json.Marshal(result)
	if err != nil {
		r.logger.Error("Redis cache marshal error", "key", key, "error", err)
		return err
	}
	now := time.Now().UTC()
	data, err := json.Marshal(idempotency.Record{
		State:     idempotency.StateDone,
		Payload:   payload,
		CreatedAt: now,
		ExpiresAt: now.Add(r.ttl),
	})
	if err != nil {
		return err
	}
	stored, err := putScript.Run(ctx, r.client, []string{r.key(key)},
		string(idempotency.StatePending), owner, string(data), r.ttl.Milliseconds()).Int()
	if err != nil {
		r.logger.Error("Redis cache set error", "key", key, "error", err)
		return err
	}
	if stored == 0 {
		r.logger.Warn("Redis claim lost before result was stored", "key", key)
		return idempotency.ErrClaimLost
	}
	r.logger.Debug("Redis cache set", "key", key, "ttl", r.ttl)
	return nil
}

// Claim implements idempotency.Store.
func (r *RedisIdempotencyStore) Claim(ctx context.Context, key, owner string, ttl time.Duration) (bool, error) {
	if err := idempotency.ValidateKey(key); err != nil {
		return false, err
	}
	now := time.Now().UTC()
	data, err := json.Marshal(idempotency.Record{
		State:     idempotency.StatePending,
		Owner:     owner,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	})
	if err != nil {
		return false, err
	}
	ok, err := r.client.SetNX(ctx, r.key(key), data, ttl).Result()
	if err != nil {
		r.logger.Error("Redis claim error", "key", key, "error", err)
		return false, err
	}
	return ok, nil
}

// Release implements idempotency.Store.
func (r *RedisIdempotencyStore) Release(ctx context.Context, key, owner string) error {
	err := releaseScript.Run(ctx, r.client, []string{r.key(key)}, string(idempotency.StatePending), owner).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		r.logger.Error("Redis release error", "key", key, "error", err)
		return err
	}
	return nil
}

// Close closes the underlying client.
func (r *RedisIdempotencyStore) Close() error {
	return r.client.Close()
}
