package commands

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hyprbank/ledger/internal/ledger"
	"github.com/hyprbank/ledger/shared/config"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

// backend is the ledger store together with the registry used for seeding.
type backend interface {
	ledger.Store
	ledger.Registry
}

var (
	_ backend = (*ledger.MemoryStore)(nil)
	_ backend = (*ledger.PostgresStore)(nil)
)

// openBackend returns the store selected by ledger.store, plus a closer for
// its resources. The postgres schema is migrated when migrate is true.
func openBackend(ctx context.Context, cfg *config.Config, log *zap.Logger, migrate bool) (backend, func(), error) {
	if cfg.Ledger.Store == config.StoreMemory {
		log.Warn("using in-memory ledger store; data is lost on exit")
		return ledger.NewMemoryStore(), func() {}, nil
	}

	db, err := openDB(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	if migrate {
		if err := ledger.Migrate(ctx, db); err != nil {
			db.Close()
			return nil, nil, err
		}
	}
	return ledger.NewPostgresStore(db, cfg.Ledger.MaxRetries, log), func() { db.Close() }, nil
}

func openDB(ctx context.Context, cfg *config.Config) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}
