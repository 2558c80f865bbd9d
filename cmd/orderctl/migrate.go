package main

import (
	"fmt"

	"workorders_backend/migrations"
	"workorders_backend/platform/db"

	"github.com/spf13/cobra"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			if err := db.RunMigrations(cmd.Context(), cfg, migrations.FS); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	}
}
