package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cardforge/cardforge/cardforge"
	"github.com/cardforge/cardforge/internal/gateways/database"
)

var seedCMD = &cobra.Command{
	Use:   "seed <file>",
	Short: "load accounts and cards from a seed file into Postgres",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		fixture, err := cardforge.LoadSeedFile(args[0])
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		db, err := database.New(ctx, cfg.DB)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer db.Close()

		if reset, _ := cmd.Flags().GetBool("reset"); reset {
			if err := db.ResetTables(ctx); err != nil {
				return err
			}
		}
		return db.SeedReferenceData(ctx, fixture.Accounts, fixture.Definitions, fixture.Cards)
	},
}

func init() {
	seedCMD.Flags().Bool("reset", false, "truncate every exchange table first")
}
