package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "medtrack",
	Short: "MedTrack clinical records API.",
	Long: `MedTrack keeps patient and procedure records for a clinic, with
role-based access for front desk staff, doctors and administrators.`,
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// An empty path searches ./config.yaml, ./config/ and /app/config/.
	rootCmd.PersistentFlags().String("config", "", "config file path")

	rootCmd.AddCommand(newServeCommand())
	rootCmd.AddCommand(newMigrateCommand())
	rootCmd.AddCommand(newSeedCommand())
}

func configPath(cmd *cobra.Command) (string, error) {
	path, err := cmd.Root().PersistentFlags().GetString("config")
	if err != nil {
		return "", fmt.Errorf("failed to get config flag: %w", err)
	}
	return path, nil
}
