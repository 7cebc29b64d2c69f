package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/store/memory"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/store/postgres"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/cache"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/db"
)

// Runtime carries the ledger and the connections backing it.
type Runtime struct {
	Ledger *accounting.Ledger
	Pool   *pgxpool.Pool
	Redis  *redis.Client

	logger *slog.Logger
}

// Bootstrap opens the configured store, migrates it and builds the ledger.
// Redis is optional: without it the ledger runs without distributed locks.
func Bootstrap(ctx context.Context, cfg *Config, logger *slog.Logger) (*Runtime, error) {
	if cfg == nil {
		return nil, errors.New("app: config required")
	}
	rt := &Runtime{logger: logger}

	var store accounting.Store
	switch cfg.LedgerStore {
	case StoreMemory:
		logger.Warn("using in-memory ledger store, data is lost on exit")
		store = memory.New()
	default:
		pool, err := db.New(ctx, cfg.PGDSN, db.Options{
			MaxConns:        cfg.PGMaxConns,
			MinConns:        cfg.PGMinConns,
			MaxConnLifetime: cfg.PGMaxConnLifetime,
		})
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		rt.Pool = pool
		pg := postgres.New(pool)
		if err := pg.Migrate(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("migrate ledger schema: %w", err)
		}
		store = pg
	}

	var opts []accounting.Option
	client, err := cache.New(ctx, cfg.RedisOptions())
	if err != nil {
		logger.Warn("redis unavailable, distributed locks disabled", slog.Any("error", err))
	} else {
		rt.Redis = client
		opts = append(opts, accounting.WithLocker(cache.NewLocker(client), cfg.LedgerLockTTL))
	}

	rt.Ledger = accounting.New(store, opts...)
	return rt, nil
}

// HealthChecks probes the connections that were opened.
func (rt *Runtime) HealthChecks() map[string]HealthCheck {
	checks := map[string]HealthCheck{}
	if rt.Pool != nil {
		checks["postgres"] = rt.Pool.Ping
	}
	if rt.Redis != nil {
		checks["redis"] = func(ctx context.Context) error {
			return rt.Redis.Ping(ctx).Err()
		}
	}
	return checks
}

// Close releases the connections.
func (rt *Runtime) Close() {
	if rt == nil {
		return
	}
	if rt.Redis != nil {
		if err := rt.Redis.Close(); err != nil {
			rt.logger.Warn("redis close", slog.Any("error", err))
		}
	}
	if rt.Pool != nil {
		rt.Pool.Close()
	}
}
