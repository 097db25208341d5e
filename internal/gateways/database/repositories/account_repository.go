package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/uptrace/bun"

	"github.com/cardforge/cardforge/internal/domain/exchange"
	"github.com/cardforge/cardforge/internal/gateways/database/models"
)

type accountRepository struct {
	db bun.IDB
}

var _ exchange.AccountRepository = (*accountRepository)(nil)

func NewAccountRepository(db bun.IDB) exchange.AccountRepository {
	return &accountRepository{db: db}
}

func (r *accountRepository) Get(ctx context.Context, id string) (*models.Account, error) {
	account := &models.Account{ID: id}
	if err := r.db.NewSelect().Model(account).WherePK().Scan(ctx); err != nil {
		return nil, notFound(err, "account", id, "get account")
	}
	return account, nil
}

func (r *accountRepository) GetForUpdate(ctx context.Context, id string) (*models.Account, error) {
	account := &models.Account{ID: id}
	err := r.db.NewSelect().
		Model(account).
		WherePK().
		For("UPDATE").
		Scan(ctx)
	if err != nil {
		return nil, notFound(err, "account", id, "get account for update")
	}
	return account, nil
}

func (r *accountRepository) UpdateBalances(ctx context.Context, account *models.Account) error {
	res, err := r.db.NewUpdate().
		Model(account).
		Column("gold_balance", "gem_balance", "updated_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to update balances: %w", err)
	}
	return mustAffect(res, "account", account.ID)
}

func (r *accountRepository) FindEntry(ctx context.Context, key, accountID string, currency models.Currency, direction models.LedgerDirection) (*models.LedgerEntry, error) {
	entry := new(models.LedgerEntry)
	err := r.db.NewSelect().
		Model(entry).
		Where("idempotency_key = ?", key).
		Where("account_id = ?", accountID).
		Where("currency = ?", currency).
		Where("direction = ?", direction).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find ledger entry: %w", err)
	}
	return entry, nil
}

func (r *accountRepository) InsertEntry(ctx context.Context, entry *models.LedgerEntry) error {
	_, err := r.db.NewInsert().
		Model(entry).
		Returning("id").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to insert ledger entry: %w", err)
	}
	return nil
}
