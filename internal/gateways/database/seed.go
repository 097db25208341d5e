package database

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/uptrace/bun"

	"github.com/cardforge/cardforge/internal/gateways/database/models"
)

// SeedReferenceData inserts accounts, catalogue entries and card instances
// in one transaction. Rows whose primary key already exists are left alone.
func (db *DB) SeedReferenceData(ctx context.Context, accounts []models.Account, defs []models.CardDefinition, cards []models.CardInstance) error {
	return db.bunDB.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if len(accounts) > 0 {
			if _, err := tx.NewInsert().Model(&accounts).On("CONFLICT (id) DO NOTHING").Exec(ctx); err != nil {
				return fmt.Errorf("failed to insert accounts: %w", err)
			}
		}
		if len(defs) > 0 {
			if _, err := tx.NewInsert().Model(&defs).On("CONFLICT (id) DO NOTHING").Exec(ctx); err != nil {
				return fmt.Errorf("failed to insert card definitions: %w", err)
			}
		}
		if len(cards) > 0 {
			if _, err := tx.NewInsert().Model(&cards).On("CONFLICT (id) DO NOTHING").Exec(ctx); err != nil {
				return fmt.Errorf("failed to insert card instances: %w", err)
			}
		}

		slog.Info("Seeded reference data",
			slog.String("type", "db"),
			slog.Int("accounts", len(accounts)),
			slog.Int("definitions", len(defs)),
			slog.Int("cards", len(cards)))
		return nil
	})
}
