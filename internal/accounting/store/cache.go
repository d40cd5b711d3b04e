package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Cache stores report projections in Redis. Keys carry the books version the
// projection was computed at, so a committed change orphans every older entry
// without touching Redis.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewCache instantiates the cache helper. A nil client disables caching.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl, logger: slog.Default()}
}

func (c *Cache) enabled() bool { return c != nil && c.client != nil }

func (c *Cache) log() *slog.Logger {
	if c == nil || c.logger == nil {
		return slog.Default()
	}
	return c.logger
}

// reportKey composes the cache key of a projection at a given books version.
func reportKey(companyID uuid.UUID, version int64, parts ...string) string {
	head := fmt.Sprintf("ledger:%s:v%d", companyID, version)
	if len(parts) == 0 {
		return head
	}
	return head + ":" + strings.Join(parts, ":")
}

// FetchJSON returns the cached payload under key or stores what loader produces.
// Redis failures are logged and the loader result is served uncached.
func (c *Cache) FetchJSON(ctx context.Context, key string, loader func(context.Context) (any, error)) (json.RawMessage, error) {
	if loader == nil {
		return nil, errors.New("store: cache loader required")
	}
	if c.enabled() {
		payload, err := c.client.Get(ctx, key).Bytes()
		switch {
		case err == nil:
			return payload, nil
		case !errors.Is(err, redis.Nil):
			c.log().WarnContext(ctx, "report cache read failed", slog.String("key", key), slog.Any("error", err))
		}
	}
	value, err := loader(ctx)
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	if c.enabled() {
		if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
			c.log().WarnContext(ctx, "report cache write failed", slog.String("key", key), slog.Any("error", err))
		}
	}
	return raw, nil
}
