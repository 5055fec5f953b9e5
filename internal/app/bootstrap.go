package app

import (
	"context"
	"fmt"

	"coldledger/internal/config"
	"coldledger/internal/infrastructure/numerator"
	"coldledger/internal/infrastructure/storage/memory"
	"coldledger/internal/infrastructure/storage/postgres"
	"coldledger/pkg/logger"
)

// Runtime is an opened storage backend with the services over it.
type Runtime struct {
	Services *Services
	// Pool is nil for the in-memory driver.
	Pool   *postgres.Pool
	Driver string
}

// Close releases the backend.
func (r *Runtime) Close() {
	if r.Pool != nil {
		r.Pool.Close()
	}
}

// OptionsFromConfig maps configuration onto service options.
func OptionsFromConfig(cfg config.Config) Options {
	opts := DefaultOptions()
	opts.StrictAllocation = cfg.AllocationStrict
	opts.StorageFee = cfg.StorageFee()
	return opts
}

// OpenPool connects to Postgres with the configured pool bounds.
func OpenPool(ctx context.Context, cfg config.Config) (*postgres.Pool, error) {
	pcfg := postgres.DefaultPoolConfig(cfg.DatabaseURL)
	pcfg.MaxConns = cfg.DBMaxConns
	pcfg.MinConns = cfg.DBMinConns
	return postgres.NewPool(ctx, pcfg)
}

// Open builds the backend selected by cfg. With migrate set, pending schema
// migrations are applied before the services are built.
func Open(ctx context.Context, cfg config.Config, migrate bool) (*Runtime, error) {
	opts := OptionsFromConfig(cfg)

	if cfg.StorageDriver == config.DriverMemory {
		logger.Warn(ctx, "using in-memory storage, data is lost on exit")
		repos := MemoryRepositories(memory.NewStore(), numerator.NewLocal())
		return &Runtime{Services: NewServices(repos, opts), Driver: cfg.StorageDriver}, nil
	}

	pool, err := OpenPool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if migrate {
		n, err := postgres.Migrate(ctx, pool)
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
		logger.Info(ctx, "schema up to date", "applied", n)
	}
	repos, err := PostgresRepositories(pool, cfg.ArchiveCompressThreshold)
	if err != nil {
		pool.Close()
		return nil, err
	}
	return &Runtime{Services: NewServices(repos, opts), Pool: pool, Driver: cfg.StorageDriver}, nil
}
