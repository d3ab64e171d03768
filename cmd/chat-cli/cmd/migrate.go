package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/nfrund/goby-chat/internal/persistence"
)

var migrateTimeout time.Duration

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the users and messages tables",
	Long: `Apply the schema for the configured DB_DRIVER. The server does the
same on startup; this command exists for deployments that migrate ahead of
rollout.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		ctx, cancel := context.WithTimeout(cmd.Context(), migrateTimeout)
		defer cancel()

		backend, err := persistence.OpenAndMigrate(ctx, cfg)
		if err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		defer backend.Close(context.Background())

		fmt.Fprintf(cmd.OutOrStdout(), "schema up to date (%s)\n", cfg.GetDBDriver())
		return nil
	},
}

func init() {
	migrateCmd.Flags().DurationVar(&migrateTimeout, "timeout", 30*time.Second, "Give up after this long")
	rootCmd.AddCommand(migrateCmd)
}
