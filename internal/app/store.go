package app

import (
	"context"
	"fmt"

	goBankID "github.com/MrEthical07/goBankID"
	"github.com/MrEthical07/goBankID/internal/config"
	"github.com/MrEthical07/goBankID/storage/postgres"
	"github.com/MrEthical07/goBankID/storage/sqlite"
)

// durableStore is the SQL-backed user directory and auth response store.
type durableStore interface {
	goBankID.UserDirectory
	goBankID.IdentityBinder
	goBankID.AuthResponseStore
	ResponsePruner
	Ping(ctx context.Context) error
}

// openStore opens the configured database and applies migrations.
func openStore(cfg *config.Config) (durableStore, func() error, error) {
	switch cfg.DatabaseDriver {
	case "postgres":
		if err := postgres.Migrate(cfg.DatabaseURL); err != nil {
			return nil, nil, fmt.Errorf("failed to apply database migrations: %w", err)
		}
		pool, err := postgres.NewPool(cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		store := postgres.NewStore(pool)
		return store, func() error { store.Close(); return nil }, nil

	default:
		store, err := sqlite.NewStore(cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		if err := store.ApplyMigrations(); err != nil {
			_ = store.Close()
			return nil, nil, fmt.Errorf("failed to apply database migrations: %w", err)
		}
		return store, store.Close, nil
	}
}
