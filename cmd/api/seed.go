package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/jwalitptl/medtrack-api/internal/app"
	"github.com/jwalitptl/medtrack-api/internal/model"
	"github.com/jwalitptl/medtrack-api/internal/repository"
)

func newSeedCommand() *cobra.Command {
	var username, email, password string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create the initial Admin user",
		Long: `Creates an Admin account when no user with the given username exists.
The password may be supplied through MEDTRACK_ADMIN_PASSWORD.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				password = os.Getenv("MEDTRACK_ADMIN_PASSWORD")
			}
			if password == "" {
				return errors.New("an admin password is required")
			}

			path, err := configPath(cmd)
			if err != nil {
				return err
			}
			cfg, logger, err := app.LoadConfig(path)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			infra, err := app.NewInfra(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer infra.Close()

			repos := infra.Repositories()
			_, err = repos.Users.GetByUsername(ctx, username)
			switch {
			case err == nil:
				logger.Info().Str("username", username).Msg("Admin user already exists")
				return nil
			case !errors.Is(err, repository.ErrNotFound):
				return fmt.Errorf("failed to look up admin user: %w", err)
			}

			user, err := infra.Services(repos).Auth.Register(ctx, model.RegisterRequest{
				Username: username,
				Email:    email,
				Password: password,
				Role:     model.RoleAdmin.String(),
			})
			if err != nil {
				return fmt.Errorf("failed to create admin user: %w", err)
			}
			logger.Info().Str("user_id", user.ID.String()).Msg("Admin user created")
			return nil
		},
	}

	cmd.Flags().StringVar(&username, "username", "admin", "admin username")
	cmd.Flags().StringVar(&email, "email", "admin@example.com", "admin email")
	cmd.Flags().StringVar(&password, "password", "", "admin password")
	return cmd
}
