package repositories

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	"github.com/cardforge/cardforge/internal/domain/exchange"
	"github.com/cardforge/cardforge/internal/gateways/database/models"
)

type transactionRepository struct {
	db bun.IDB
}

var _ exchange.TransactionRepository = (*transactionRepository)(nil)

func NewTransactionRepository(db bun.IDB) exchange.TransactionRepository {
	return &transactionRepository{db: db}
}

func (r *transactionRepository) Append(ctx context.Context, txn *models.ExchangeTransaction) error {
	if _, err := r.db.NewInsert().Model(txn).Exec(ctx); err != nil {
		return fmt.Errorf("failed to append transaction: %w", err)
	}
	return nil
}

func (r *transactionRepository) ListForAccount(ctx context.Context, accountID string, limit, offset int) ([]*models.ExchangeTransaction, int, error) {
	var txns []*models.ExchangeTransaction
	q := r.db.NewSelect().
		Model(&txns).
		Where("et.party_a = ? OR et.party_b = ?", accountID, accountID).
		OrderExpr("et.created_at DESC, et.id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if offset > 0 {
		q = q.Offset(offset)
	}

	total, err := q.ScanAndCount(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list transactions: %w", err)
	}
	return txns, total, nil
}
