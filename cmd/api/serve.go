package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jwalitptl/medtrack-api/internal/app"
	"github.com/jwalitptl/medtrack-api/internal/repository/postgres"
)

func newServeCommand() *cobra.Command {
	var (
		migrate     bool
		withCleanup bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := configPath(cmd)
			if err != nil {
				return err
			}
			cfg, logger, err := app.LoadConfig(path)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			infra, err := app.NewInfra(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer infra.Close()

			if migrate {
				applied, err := postgres.Migrate(ctx, infra.DB)
				if err != nil {
					return err
				}
				logger.Info().Int("applied", applied).Msg("Migrations applied")
			}

			repos := infra.Repositories()
			svcs := infra.Services(repos)
			r := infra.Router(svcs)

			if withCleanup {
				processor, err := infra.FileCleanup(repos)
				if err != nil {
					return err
				}
				go processor.Start(ctx)
			}

			srv := &http.Server{
				Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
				Handler:      r.Engine(),
				ReadTimeout:  cfg.Server.ReadTimeout,
				WriteTimeout: cfg.Server.WriteTimeout,
			}

			errCh := make(chan error, 1)
			go func() {
				logger.Info().Str("addr", srv.Addr).Msg("Starting server")
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			select {
			case err, ok := <-errCh:
				if ok {
					return fmt.Errorf("failed to start server: %w", err)
				}
				return nil
			case <-ctx.Done():
			}

			logger.Info().Msg("Shutting down server...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("server forced to shutdown: %w", err)
			}
			logger.Info().Msg("Server exited properly")
			return nil
		},
	}

	cmd.Flags().BoolVar(&migrate, "migrate", false, "apply pending migrations before serving")
	cmd.Flags().BoolVar(&withCleanup, "with-cleanup", false, "run the report cleanup processor in-process")
	return cmd
}
