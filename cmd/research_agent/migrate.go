package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonathan/research-agent/internal/db"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the reports table in DATABASE_URL",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required")
		}

		database, err := db.Connect(cmd.Context(), cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer database.Close()

		if err := database.EnsureSchema(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "reports table is ready")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
