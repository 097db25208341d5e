package repositories

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	"github.com/cardforge/cardforge/internal/domain/exchange"
	"github.com/cardforge/cardforge/internal/gateways/database/models"
)

type cardRepository struct {
	db   bun.IDB
	lock bool
}

var _ exchange.CardRepository = (*cardRepository)(nil)

// NewCardRepository returns a card repository. With lock set, GetMany takes
// row locks in id order so concurrent settlements cannot deadlock.
func NewCardRepository(db bun.IDB, lock bool) exchange.CardRepository {
	return &cardRepository{db: db, lock: lock}
}

func (r *cardRepository) GetMany(ctx context.Context, ids []string) ([]*models.CardInstance, error) {
	cards := make([]*models.CardInstance, 0, len(ids))
	if len(ids) == 0 {
		return cards, nil
	}

	q := r.db.NewSelect().
		Model(&cards).
		Where("ci.id IN (?)", bun.In(ids)).
		Order("ci.id ASC")
	if r.lock {
		q = q.For("UPDATE")
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("failed to get cards: %w", err)
	}
	return cards, nil
}

func (r *cardRepository) Update(ctx context.Context, card *models.CardInstance) error {
	res, err := r.db.NewUpdate().
		Model(card).
		Column("owner_id", "locked", "lock_kind", "lock_ref", "acquired_at", "updated_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to update card: %w", err)
	}
	return mustAffect(res, "card", card.ID)
}

func (r *cardRepository) GetDefinitions(ctx context.Context, ids []string) ([]*models.CardDefinition, error) {
	defs := make([]*models.CardDefinition, 0, len(ids))
	if len(ids) == 0 {
		return defs, nil
	}
	err := r.db.NewSelect().
		Model(&defs).
		Where("cd.id IN (?)", bun.In(ids)).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get card definitions: %w", err)
	}
	return defs, nil
}
