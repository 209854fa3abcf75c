// Package initializer builds the runtime dependencies of the card ledger from
// configuration.
package initializer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/amirasaad/bankcards/infra"
	"github.com/amirasaad/bankcards/infra/cache"
	"github.com/amirasaad/bankcards/infra/migrations"
	infra_repository "github.com/amirasaad/bankcards/infra/repository"
	"github.com/amirasaad/bankcards/pkg/app"
	"github.com/amirasaad/bankcards/pkg/config"
	"github.com/amirasaad/bankcards/pkg/idempotency"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// InitializeDependencies initializes all the application dependencies
func InitializeDependencies(cfg *config.App) (deps *app.Deps, err error) {
	logger := SetupLogger(cfg.Log)
	deps = &app.Deps{Logger: logger}
	defer func() {
		if err != nil {
			_ = deps.Close()
		}
	}()

	db, err := infra.NewDBConnection(cfg.DB, cfg.Env)
	if err != nil {
		logger.Error("Failed to initialize database", "error", err)
		return nil, err
	}
	deps.Closers = append(deps.Closers, closeDB(db))
	if cfg.DB.AutoMigrate {
		if err = migrate(db, cfg.DB.Url); err != nil {
			return nil, fmt.Errorf("failed to migrate database: %w", err)
		}
	}

	cipher, err := infra_repository.NewNumberCipher(cfg.Card.EncryptionKey, cfg.Card.IndexKey)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize card cipher: %w", err)
	}
	deps.Uow = infra_repository.NewUoW(db, cipher, cfg.Ledger.LockTimeout)

	store, closer, err := initIdempotencyStore(cfg, logger)
	if err != nil {
		return nil, err
	}
	deps.Idempotency = store
	deps.Closers = append(deps.Closers, closer)

	logger.Info("Dependencies initialized",
		"dialect", infra.DialectName(db),
		"redis_configured", cfg.Redis.URL != "")
	return deps, nil
}

// initIdempotencyStore selects Redis when a URL is configured and the
// in-memory store otherwise.
func initIdempotencyStore(
	cfg *config.App,
	logger *slog.Logger,
) (idempotency.Store, func() error, error) {
	if cfg.Redis == nil || cfg.Redis.URL == "" {
		logger.Warn("REDIS_URL not set, using in-memory idempotency store")
		store := cache.NewMemoryIdempotencyStore(cfg.Idempotency.TTL)
		return store, func() error { store.Close(); return nil }, nil
	}
	opts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	opts.PoolSize = cfg.Redis.PoolSize
	opts.DialTimeout = cfg.Redis.DialTimeout
	opts.ReadTimeout = cfg.Redis.ReadTimeout
	opts.WriteTimeout = cfg.Redis.WriteTimeout
	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Redis.DialTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	store := cache.NewRedisIdempotencyStoreWithClient(client, cfg.Idempotency.Prefix, cfg.Idempotency.TTL, logger)
	return store, store.Close, nil
}

func closeDB(db *gorm.DB) func() error {
	return func() error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	}
}

// migrate applies the versioned migrations on PostgreSQL and auto-migrates
// the models elsewhere.
func migrate(db *gorm.DB, dsn string) error {
	if infra.IsPostgres(db) {
		return migrations.Up(dsn)
	}
	return infra_repository.Migrate(db)
}
