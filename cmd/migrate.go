package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cardforge/cardforge/internal/gateways/database"
)

var migrateCMD = &cobra.Command{
	Use:   "migrate",
	Short: "manage the exchange schema",
}

var migrateUpCMD = &cobra.Command{
	Use:   "up",
	Short: "apply all pending migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		return database.MigrateUp(cfg.DB.URL())
	},
}

var migrateDownCMD = &cobra.Command{
	Use:   "down",
	Short: "roll back migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		steps, _ := cmd.Flags().GetInt("steps")
		return database.MigrateDown(cfg.DB.URL(), steps)
	},
}

var migrateStatusCMD = &cobra.Command{
	Use:   "status",
	Short: "print the current schema version",
	RunE: func(cmd *cobra.Command, args []string) error {
		status, err := database.GetMigrationStatus(cfg.DB.URL())
		if err != nil {
			return err
		}
		if !status.Applied {
			fmt.Fprintln(cmd.OutOrStdout(), "no migrations applied")
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "version %d (dirty: %t)\n", status.Version, status.Dirty)
		return nil
	},
}

func init() {
	migrateDownCMD.Flags().Int("steps", 1, "number of migrations to roll back")
	migrateCMD.AddCommand(migrateUpCMD, migrateDownCMD, migrateStatusCMD)
}
