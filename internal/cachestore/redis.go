package cachestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	redisNamespace = "lumo:cache"
	// Redis-side expiry only reclaims memory. Validity is decided by Store,
	// so the key outlives expiresAt by this margin.
	redisExpireGrace = time.Minute
)

// redisRecord is the stored document. Timestamps are epoch millis and the
// payload is kept as a JSON string.
type redisRecord struct {
	CacheKey  string `json:"cacheKey"`
	Scope     string `json:"scope"`
	Payload   string `json:"payload"`
	ExpiresAt *int64 `json:"expiresAt"`
	CreatedAt int64  `json:"createdAt"`
	UpdatedAt int64  `json:"updatedAt"`
}

// RedisBackend keeps one record per (key, scope) plus a set of scopes per key
// and a set of all keys, which back DeleteWhere and List.
type RedisBackend struct {
	client *redis.Client
}

var _ Backend = (*RedisBackend)(nil)

// NewRedisBackend parses url, connects and pings the server.
func NewRedisBackend(ctx context.Context, url string) (*RedisBackend, error) {
	if strings.TrimSpace(url) == "" {
		return nil, errors.New("redis url is empty")
	}
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opt)
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &RedisBackend{client: client}, nil
}

// NewRedisBackendFromClient wraps an existing client.
func NewRedisBackendFromClient(client *redis.Client) *RedisBackend {
	return &RedisBackend{client: client}
}

func (r *RedisBackend) Name() string { return "redis" }

func recordKey(key, scope string) string {
	return redisNamespace + ":entry:" + key + "\x00" + scope
}

func scopeIndexKey(key string) string {
	return redisNamespace + ":scopes:" + key
}

func keyIndexKey() string {
	return redisNamespace + ":keys"
}

// dropEmptyKeyScript removes a key from the key index once its scope set is
// empty. It runs as a script so a concurrent Upsert cannot slip in between.
var dropEmptyKeyScript = redis.NewScript(`
if redis.call('SCARD', KEYS[1]) == 0 then
  return redis.call('SREM', KEYS[2], ARGV[1])
end
return 0
`)

func (r *RedisBackend) dropEmptyKey(ctx context.Context, key string) error {
	if err := dropEmptyKeyScript.Run(ctx, r.client, []string{scopeIndexKey(key), keyIndexKey()}, key).Err(); err != nil {
		return fmt.Errorf("redis prune key index: %w", err)
	}
	return nil
}

func (r *RedisBackend) Find(ctx context.Context, key, scope string) (*Entry, error) {
	if key == "" {
		return nil, ErrInvalidKey
	}
	b, err := r.client.Get(ctx, recordKey(key, scope)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("redis get: %w", err)
	}
	return decodeRecord(b)
}

func (r *RedisBackend) Upsert(ctx context.Context, e Entry) error {
	if e.CacheKey == "" {
		return ErrInvalidKey
	}
	rk := recordKey(e.CacheKey, e.Scope)
	if prev, err := r.client.Get(ctx, rk).Bytes(); err == nil {
		if old, decErr := decodeRecord(prev); decErr == nil {
			e.CreatedAt = old.CreatedAt
		}
	} else if !errors.Is(err, redis.Nil) {
		return fmt.Errorf("redis get: %w", err)
	}

	rec := redisRecord{
		CacheKey:  e.CacheKey,
		Scope:     e.Scope,
		Payload:   string(e.Payload),
		ExpiresAt: e.ExpiresAt,
		CreatedAt: e.CreatedAt.UnixMilli(),
		UpdatedAt: e.UpdatedAt.UnixMilli(),
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal redis record: %w", err)
	}

	var ttl time.Duration
	if e.ExpiresAt != nil {
		ttl = time.Duration(*e.ExpiresAt-rec.UpdatedAt)*time.Millisecond + redisExpireGrace
		if ttl < redisExpireGrace {
			ttl = redisExpireGrace
		}
	}
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, rk, data, ttl)
		pipe.SAdd(ctx, scopeIndexKey(e.CacheKey), e.Scope)
		pipe.SAdd(ctx, keyIndexKey(), e.CacheKey)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis upsert: %w", err)
	}
	return nil
}

func (r *RedisBackend) DeleteWhere(ctx context.Context, key, scopePrefix, excludeScope string) (int, error) {
	if key == "" {
		return 0, ErrInvalidKey
	}
	scopes, err := r.client.SMembers(ctx, scopeIndexKey(key)).Result()
	if err != nil {
		return 0, fmt.Errorf("redis scopes: %w", err)
	}
	var (
		records []string
		members []any
	)
	for _, scope := range scopes {
		if scope == excludeScope || !strings.HasPrefix(scope, scopePrefix) {
			continue
		}
		records = append(records, recordKey(key, scope))
		members = append(members, scope)
	}
	if len(records) == 0 {
		return 0, nil
	}

	var del *redis.IntCmd
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		del = pipe.Del(ctx, records...)
		pipe.SRem(ctx, scopeIndexKey(key), members...)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("redis delete where: %w", err)
	}
	if err := r.dropEmptyKey(ctx, key); err != nil {
		return int(del.Val()), err
	}
	return int(del.Val()), nil
}

func (r *RedisBackend) Delete(ctx context.Context, key, scope string) error {
	if key == "" {
		return ErrInvalidKey
	}
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, recordKey(key, scope))
		pipe.SRem(ctx, scopeIndexKey(key), scope)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis delete: %w", err)
	}
	return r.dropEmptyKey(ctx, key)
}

// List also prunes index members whose records Redis has already expired.
func (r *RedisBackend) List(ctx context.Context, key string) ([]Entry, error) {
	keys := []string{key}
	if key == "" {
		all, err := r.client.SMembers(ctx, keyIndexKey()).Result()
		if err != nil {
			return nil, fmt.Errorf("redis keys: %w", err)
		}
		keys = all
	}

	out := []Entry{}
	for _, k := range keys {
		scopes, err := r.client.SMembers(ctx, scopeIndexKey(k)).Result()
		if err != nil {
			return nil, fmt.Errorf("redis scopes: %w", err)
		}
		if len(scopes) == 0 {
			if err := r.dropEmptyKey(ctx, k); err != nil {
				return nil, err
			}
			continue
		}
		rks := make([]string, len(scopes))
		for i, scope := range scopes {
			rks[i] = recordKey(k, scope)
		}
		vals, err := r.client.MGet(ctx, rks...).Result()
		if err != nil {
			return nil, fmt.Errorf("redis mget: %w", err)
		}
		var gone []any
		for i, v := range vals {
			s, ok := v.(string)
			if !ok {
				gone = append(gone, scopes[i])
				continue
			}
			e, err := decodeRecord([]byte(s))
			if err != nil {
				continue
			}
			out = append(out, *e)
		}
		if len(gone) > 0 {
			if err := r.client.SRem(ctx, scopeIndexKey(k), gone...).Err(); err != nil {
				return nil, fmt.Errorf("redis prune scopes: %w", err)
			}
			if err := r.dropEmptyKey(ctx, k); err != nil {
				return nil, err
			}
		}
	}
	sortEntries(out)
	return out, nil
}

// Ping checks connectivity.
func (r *RedisBackend) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisBackend) Close() error {
	return r.client.Close()
}

func decodeRecord(b []byte) (*Entry, error) {
	var rec redisRecord
	if err := json.Unmarshal(b, &rec); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptEntry, err)
	}
	return &Entry{
		CacheKey:  rec.CacheKey,
		Scope:     rec.Scope,
		Payload:   json.RawMessage(rec.Payload),
		ExpiresAt: rec.ExpiresAt,
		CreatedAt: time.UnixMilli(rec.CreatedAt).UTC(),
		UpdatedAt: time.UnixMilli(rec.UpdatedAt).UTC(),
	}, nil
}
