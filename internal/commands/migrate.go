package commands

import (
	"errors"

	"github.com/hyprbank/ledger/internal/ledger"
	"github.com/hyprbank/ledger/shared/config"
	"github.com/hyprbank/ledger/shared/logger"
	"github.com/spf13/cobra"
)

func newMigrateCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the PostgreSQL schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			if cfg.Ledger.Store != config.StorePostgres {
				return errors.New("migrate requires ledger.store=postgres")
			}
			log, err := logger.New(cfg.Log.Level, cfg.Log.Format)
			if err != nil {
				return err
			}
			defer log.Sync()

			db, err := openDB(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := ledger.Migrate(cmd.Context(), db); err != nil {
				return err
			}
			log.Info("schema is up to date")
			return nil
		},
	}
}
