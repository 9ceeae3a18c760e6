package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/OldStager01/leakwatch/internal/logger"
	"github.com/OldStager01/leakwatch/pkg/config"
	"github.com/OldStager01/leakwatch/pkg/database"
)

const migrateTimeout = 60 * time.Second

func newMigrateCmd(load func() (*config.Config, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			if !cfg.Database.Enabled() {
				return errors.New("no database configured")
			}

			db, err := database.New(cfg.Database.ToDBConfig())
			if err != nil {
				return fmt.Errorf("failed to connect to database: %w", err)
			}
			defer db.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), migrateTimeout)
			defer cancel()
			return migrate(ctx, db)
		},
	}
}

func migrate(ctx context.Context, db *database.DB) error {
	logger.Infof("Running %s migrations", db.Driver())
	n, err := database.NewMigrator(db).Run(ctx)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	logger.Infof("Migrations completed successfully (%d applied)", n)
	return nil
}
