package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jwalitptl/medtrack-api/internal/app"
	"github.com/jwalitptl/medtrack-api/internal/repository/postgres"
)

func newMigrateCommand() *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := configPath(cmd)
			if err != nil {
				return err
			}
			cfg, logger, err := app.LoadConfig(path)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()

			db, err := postgres.NewDB(ctx, cfg.Database)
			if err != nil {
				return err
			}
			defer db.Close()

			applied, err := postgres.Migrate(ctx, db)
			if err != nil {
				return fmt.Errorf("failed to run migrations: %w", err)
			}
			logger.Info().Int("applied", applied).Msg("Migrations complete")
			return nil
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", time.Minute, "maximum time to spend migrating")
	return cmd
}
