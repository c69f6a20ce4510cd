package app

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"arcshell/cmd/internal/flagstore"
)

// flagBackend is the durable flag store plus whatever connection owns it.
type flagBackend struct {
	store flagstore.Store
	kind  string

	// ping reports backend health for /readyz. Nil for local backends.
	ping  func(ctx context.Context) error
	close func()
}

func (b flagBackend) Close() {
	if b.close != nil {
		b.close()
	}
}

// openFlagBackend builds the store selected by cfg.FlagStore.
func openFlagBackend(ctx context.Context, cfg Config, log Logger) (flagBackend, error) {
	switch cfg.FlagStore {
	case FlagStoreMemory:
		log.Info("flagstore.memory", "note", "flag does not survive restarts")
		return flagBackend{store: flagstore.NewMemoryStore(), kind: FlagStoreMemory}, nil

	case FlagStoreFile, "":
		st, err := flagstore.NewFileStore(cfg.FlagDir, cfg.FlagNamespace)
		if err != nil {
			return flagBackend{}, err
		}
		log.Info("flagstore.file", "path", st.Path())
		return flagBackend{store: st, kind: FlagStoreFile}, nil

	case FlagStorePostgres:
		pool, err := NewDBPool(ctx, cfg)
		if err != nil {
			return flagBackend{}, fmt.Errorf("flagstore postgres: %w", err)
		}
		st, err := flagstore.NewPostgresStore(pool, cfg.FlagNamespace, flagstore.WithSchema(cfg.DBSchema))
		if err != nil {
			pool.Close()
			return flagBackend{}, err
		}
		if cfg.DBAutoSchema {
			if err := st.EnsureSchema(ctx); err != nil {
				pool.Close()
				return flagBackend{}, fmt.Errorf("flagstore postgres: ensure schema: %w", err)
			}
		}
		log.Info("flagstore.postgres", "schema", cfg.DBSchema, "auto_schema", cfg.DBAutoSchema)
		return flagBackend{
			store: st,
			kind:  FlagStorePostgres,
			ping: func(ctx context.Context) error {
				return PingDB(ctx, pool, 2*time.Second)
			},
			close: pool.Close,
		}, nil

	case FlagStoreRedis:
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return flagBackend{}, fmt.Errorf("%w: ARC_REDIS_URL: %v", ErrConfig, err)
		}
		rdb := redis.NewClient(opts)
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			return flagBackend{}, fmt.Errorf("flagstore redis: %w", err)
		}
		st, err := flagstore.NewRedisStore(rdb, cfg.FlagNamespace)
		if err != nil {
			_ = rdb.Close()
			return flagBackend{}, err
		}
		log.Info("flagstore.redis", "addr", opts.Addr, "db", opts.DB)
		return flagBackend{
			store: st,
			kind:  FlagStoreRedis,
			ping: func(ctx context.Context) error {
				return rdb.Ping(ctx).Err()
			},
			close: func() {
				if err := rdb.Close(); err != nil {
					log.Warn("flagstore.redis.close.fail", "err", err)
				}
			},
		}, nil

	default:
		return flagBackend{}, fmt.Errorf("%w: unknown flag store %q", ErrConfig, cfg.FlagStore)
	}
}
