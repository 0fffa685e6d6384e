package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/jwalitptl/medtrack-api/internal/app"
)

func main() {
	if err := newWorkerCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newWorkerCommand() *cobra.Command {
	var (
		cfgPath     string
		metricsAddr string
	)

	cmd := &cobra.Command{
		Use:          "medtrack-worker",
		Short:        "Release stored reports queued for cleanup",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := app.LoadConfig(cfgPath)
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

			processor, err := infra.FileCleanup(infra.Repositories())
			if err != nil {
				return err
			}

			var srv *http.Server
			if cfg.Metrics.Enabled && metricsAddr != "" {
				mux := http.NewServeMux()
				mux.Handle("/metrics", promhttp.HandlerFor(infra.Registry, promhttp.HandlerOpts{}))
				srv = &http.Server{Addr: metricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
				go func() {
					if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						logger.Error().Err(err).Msg("Metrics server failed")
					}
				}()
			}

			processor.Start(ctx)

			if srv != nil {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
				defer cancel()
				_ = srv.Shutdown(shutdownCtx)
			}
			logger.Info().Msg("Worker stopped")
			return nil
		},
	}

	cmd.Flags().StringVar(&cfgPath, "config", "", "config file path")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", ":9091", "address serving /metrics; empty disables it")
	return cmd
}
