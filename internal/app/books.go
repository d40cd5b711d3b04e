package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/tallyerp/bookkeeping/internal/accounting/store"
	"github.com/tallyerp/bookkeeping/internal/platform/cache"
	"github.com/tallyerp/bookkeeping/internal/platform/db"
)

// Books bundles the connections and the store service shared by every binary.
type Books struct {
	Pool    *pgxpool.Pool
	Redis   *redis.Client
	Repo    *store.PostgresRepository
	Service *store.Service
}

// OpenBooks connects to PostgreSQL and Redis and builds the store service. A Redis
// outage only disables the report cache.
func OpenBooks(ctx context.Context, cfg *Config, logger *slog.Logger) (*Books, error) {
	pool, err := db.New(ctx, cfg.PGDSN, db.Options{MaxConns: cfg.PGMaxConns})
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	redisClient, err := cache.New(ctx, cfg.RedisOptions())
	if err != nil {
		logger.Warn("redis unavailable, report cache disabled", slog.Any("error", err))
		redisClient = nil
	}

	repo := store.NewPostgresRepository(pool)
	service := store.NewService(repo, store.NewCache(redisClient, cfg.ReportCacheTTL))
	service.WithLogger(logger)
	return &Books{Pool: pool, Redis: redisClient, Repo: repo, Service: service}, nil
}

// Ready pings the backing stores.
func (b *Books) Ready(r *http.Request) error {
	if err := b.Pool.Ping(r.Context()); err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	if b.Redis != nil {
		if err := b.Redis.Ping(r.Context()).Err(); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
	}
	return nil
}

// Close releases the connections.
func (b *Books) Close() error {
	var err error
	if b.Redis != nil {
		err = b.Redis.Close()
	}
	b.Pool.Close()
	return err
}

// RedisOptions describes the Redis instance for the cache client.
func (c *Config) RedisOptions() cache.Options {
	return cache.Options{Addr: c.RedisAddr, Password: c.RedisPassword, DB: c.RedisDB}
}

// AsynqRedis describes the Redis instance for the job queue.
func (c *Config) AsynqRedis() asynq.RedisClientOpt {
	return asynq.RedisClientOpt{Addr: c.RedisAddr, Password: c.RedisPassword, DB: c.RedisDB}
}
