package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore persists session records in Redis so that independent
// request-handling instances observe the same contexts. Records are
// stored as JSON strings under "<prefix>:session:<sessionKey>" with a TTL.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisStore creates a Redis-backed session store. The client is owned
// by the caller; Close on the store does not close the shared client.
func NewRedisStore(client *redis.Client, prefix string, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, prefix: prefix, ttl: ttl}
}

func (r *RedisStore) key(sessionKey string) string {
	return r.prefix + ":session:" + sessionKey
}

// Get retrieves the record for sessionKey, or ErrNotFound.
func (r *RedisStore) Get(ctx context.Context, sessionKey string) (*Record, error) {
	raw, err := r.client.Get(ctx, r.key(sessionKey)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get session %q: %w", sessionKey, err)
	}

	var rec Record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil, fmt.Errorf("decode session %q: %w", sessionKey, err)
	}
	return &rec, nil
}

// Put stores the record under sessionKey, replacing any prior record and
// refreshing the TTL.
func (r *RedisStore) Put(ctx context.Context, sessionKey string, rec Record) error {
	rec.SessionKey = sessionKey
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode session %q: %w", sessionKey, err)
	}
	if err := r.client.Set(ctx, r.key(sessionKey), raw, r.ttl).Err(); err != nil {
		return fmt.Errorf("put session %q: %w", sessionKey, err)
	}
	return nil
}

// Close is a no-op; the underlying client is shared and closed by its owner.
func (r *RedisStore) Close() error {
	return nil
}
