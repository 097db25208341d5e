package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/cardforge/cardforge/backend"
	"github.com/cardforge/cardforge/backend/handlers"
	"github.com/cardforge/cardforge/cardforge"
	"github.com/cardforge/cardforge/cardforge/logger"
)

var serveCMD = &cobra.Command{
	Use:   "serve",
	Short: "run the exchange HTTP API and the expiration sweeper",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		logger.LogSystem("Starting CardForge",
			slog.String("version", Version),
			slog.String("commit", Commit))

		app, err := cardforge.New(ctx, cfg)
		if err != nil {
			return err
		}
		defer app.Close()

		if cfg.Sweeper.Enabled {
			if err := app.StartSweeper(); err != nil {
				return fmt.Errorf("failed to start sweeper: %w", err)
			}
		}

		server := backend.NewServer(ctx, &handlers.WebApp{
			Market:  app.Market,
			Trades:  app.Trades,
			Query:   app.Query,
			Ping:    app.Ping,
			Version: Version,
		}, cfg.HTTP)

		errCh := make(chan error, 1)
		go func() {
			logger.LogSystem("Listening", slog.String("address", cfg.HTTP.Address))
			errCh <- server.Listen(cfg.HTTP.Address)
		}()

		select {
		case err := <-errCh:
			return fmt.Errorf("server stopped: %w", err)
		case <-ctx.Done():
		}

		logger.LogSystem("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSeconds)*time.Second)
		defer cancel()
		if err := server.ShutdownWithContext(shutdownCtx); err != nil {
			logger.LogError("Server shutdown error", err)
		}
		return nil
	},
}
