package flagcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RedisCache reads flag documents from the hash the relay maintains at
// "<prefix>:features", one field per flag key, JSON-encoded values.
type RedisCache struct {
	client *redis.Client
	prefix string
	log    zerolog.Logger
}

// NewRedisCache creates a cache reader over the given client. The client
// is owned by the caller.
func NewRedisCache(client *redis.Client, prefix string, log zerolog.Logger) *RedisCache {
	return &RedisCache{client: client, prefix: prefix, log: log}
}

func (c *RedisCache) featuresKey() string {
	return c.prefix + ":features"
}

// GetFlag retrieves one flag document from the features hash.
func (c *RedisCache) GetFlag(ctx context.Context, key string) (*FlagDoc, error) {
	raw, err := c.client.HGet(ctx, c.featuresKey(), key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrFlagNotFound
		}
		return nil, fmt.Errorf("read flag %q: %w", key, err)
	}

	var doc FlagDoc
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrMalformedFlag, key, err)
	}
	return &doc, nil
}

// AllFlags retrieves every decodable flag document. Malformed fields are
// skipped and logged rather than failing the whole read.
func (c *RedisCache) AllFlags(ctx context.Context) (map[string]FlagDoc, error) {
	raw, err := c.client.HGetAll(ctx, c.featuresKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("read flags: %w", err)
	}

	docs := make(map[string]FlagDoc, len(raw))
	for key, val := range raw {
		var doc FlagDoc
		if err := json.Unmarshal([]byte(val), &doc); err != nil {
			c.log.Warn().Str("flag", key).Err(err).Msg("skipping malformed flag document")
			continue
		}
		docs[key] = doc
	}
	return docs, nil
}

// Ping reports whether Redis is reachable.
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// PutFlag writes a flag document into the features hash. Only the seed
// command and tests use this; the server read path never writes flag data.
func (c *RedisCache) PutFlag(ctx context.Context, doc FlagDoc) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode flag %q: %w", doc.Key, err)
	}
	if err := c.client.HSet(ctx, c.featuresKey(), doc.Key, raw).Err(); err != nil {
		return fmt.Errorf("write flag %q: %w", doc.Key, err)
	}
	return nil
}

// Close is a no-op; the underlying client is shared and closed by its owner.
func (c *RedisCache) Close() error {
	return nil
}
