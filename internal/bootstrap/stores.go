package bootstrap

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/Domenick1991/busbooking/config"
	"github.com/Domenick1991/busbooking/internal/database"
	"github.com/Domenick1991/busbooking/internal/repository"
)

// Stores bundles the repositories for the configured database driver.
type Stores struct {
	Ledger  repository.SeatLedger
	Catalog repository.CatalogRepository
	Users   repository.UserRepository

	closers []func() error
}

func (s *Stores) Close() error {
	var first error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func OpenStores(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (*Stores, error) {
	switch cfg.Driver {
	case config.DriverSQLite:
		store, err := repository.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		logger.Info("using embedded sqlite ledger", zap.String("path", cfg.SQLitePath))
		if cfg.SeedPath != "" {
			if err := seedCatalog(ctx, store, cfg.SeedPath, logger); err != nil {
				_ = store.Close()
				return nil, err
			}
		}
		return &Stores{
			Ledger:  store,
			Catalog: store,
			Users:   repository.NewSQLUserRepository(sqlx.NewDb(store.DB(), "sqlite3")),
			closers: []func() error{store.Close},
		}, nil

	case config.DriverPostgres:
		pool, sqlDB, err := database.OpenPostgres(ctx, cfg)
		if err != nil {
			return nil, err
		}
		if cfg.AutoMigrate {
			if err := database.Migrate(sqlDB.DB); err != nil {
				pool.Close()
				_ = sqlDB.Close()
				return nil, err
			}
			logger.Info("database migrations applied")
		}
		return &Stores{
			Ledger:  repository.NewPGLedger(pool),
			Catalog: repository.NewPGCatalogRepository(pool),
			Users:   repository.NewSQLUserRepository(sqlDB),
			closers: []func() error{
				func() error { pool.Close(); return nil },
				sqlDB.Close,
			},
		}, nil

	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}
