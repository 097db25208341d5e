package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cardforge/cardforge/cardforge"
)

var sweepCMD = &cobra.Command{
	Use:   "sweep",
	Short: "run one expiration pass and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cardforge.New(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer app.Close()

		report, err := app.Sweeper.SweepOnce(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(),
			"sold %d, expired %d, unpaid %d, trades expired %d, skipped %d, failed %d\n",
			report.ListingsSold, report.ListingsExpired, report.ListingsUnpaid,
			report.TradesExpired, report.Skipped, report.Failed)
		return nil
	},
}
