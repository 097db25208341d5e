package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/cardforge/cardforge/cardforge"
	"github.com/cardforge/cardforge/cardforge/logger"
)

var (
	configPath string
	cfg        *cardforge.Config

	// Version and Commit are stamped at build time.
	Version = "dev"
	Commit  = "unknown"
)

var rootCMD = &cobra.Command{
	Use:           "cardforge",
	Short:         "Card exchange engine: marketplace, auctions and player trades",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := cardforge.LoadConfig(configPath)
		if errors.Is(err, os.ErrNotExist) && !cmd.Flags().Changed("config") {
			loaded, err = cardforge.DefaultConfig(), nil
		}
		if err != nil {
			return err
		}
		cfg = loaded

		slog.SetDefault(slog.New(logger.New(cfg.Log.Format, cfg.Log.Level, cfg.Log.AddSource)))
		return nil
	},
}

func init() {
	rootCMD.PersistentFlags().StringVarP(&configPath, "config", "c", "config.toml", "path to config")
	rootCMD.AddCommand(serveCMD, migrateCMD, sweepCMD, seedCMD, versionCMD)
}

var versionCMD = &cobra.Command{
	Use:   "version",
	Short: "print the build version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "cardforge %s (%s)\n", Version, Commit)
	},
}

// Execute runs the command line and reports whether it succeeded.
func Execute(ctx context.Context) int {
	if err := rootCMD.ExecuteContext(ctx); err != nil {
		logger.LogError("Command failed", err)
		return 1
	}
	return 0
}
