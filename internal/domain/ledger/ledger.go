package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/cardforge/cardforge/internal/domain/exchange"
	"github.com/cardforge/cardforge/internal/gateways/database/models"
)

// Client moves gold and gems on accounts. It is bound to the account
// repository of one unit of work, so every call joins that transaction.
type Client struct {
	accounts exchange.AccountRepository
}

func New(accounts exchange.AccountRepository) *Client {
	return &Client{accounts: accounts}
}

func (c *Client) GetBalance(ctx context.Context, accountID string, currency models.Currency) (uint64, error) {
	if !currency.Valid() {
		return 0, exchange.Wrap(exchange.ErrInvalid, "unknown currency %q", currency)
	}
	account, err := c.accounts.Get(ctx, accountID)
	if err != nil {
		return 0, fmt.Errorf("failed to get account %s: %w", accountID, err)
	}
	return account.Balance(currency), nil
}

// Debit removes amount from the account. A second call with the same key
// returns the balance recorded by the first one and changes nothing.
func (c *Client) Debit(ctx context.Context, accountID string, currency models.Currency, amount uint64, key string) (uint64, error) {
	return c.apply(ctx, accountID, currency, models.LedgerDebit, amount, key)
}

// Credit adds amount to the account. Idempotent by key like Debit.
func (c *Client) Credit(ctx context.Context, accountID string, currency models.Currency, amount uint64, key string) (uint64, error) {
	return c.apply(ctx, accountID, currency, models.LedgerCredit, amount, key)
}

func (c *Client) apply(ctx context.Context, accountID string, currency models.Currency, direction models.LedgerDirection, amount uint64, key string) (uint64, error) {
	if !currency.Valid() {
		return 0, exchange.Wrap(exchange.ErrInvalid, "unknown currency %q", currency)
	}
	if amount == 0 {
		return 0, exchange.Wrap(exchange.ErrInvalid, "%s amount must be positive", direction)
	}
	if key == "" {
		return 0, exchange.Wrap(exchange.ErrInvalid, "%s requires an idempotency key", direction)
	}

	existing, err := c.accounts.FindEntry(ctx, key, accountID, currency, direction)
	if err != nil {
		return 0, fmt.Errorf("failed to look up ledger entry: %w", err)
	}
	if existing != nil {
		slog.Debug("Ledger call replayed",
			slog.String("type", "db"),
			slog.String("key", key),
			slog.String("account_id", accountID))
		return existing.BalanceAfter, nil
	}

	account, err := c.accounts.GetForUpdate(ctx, accountID)
	if err != nil {
		return 0, fmt.Errorf("failed to lock account %s: %w", accountID, err)
	}

	balance := account.Balance(currency)
	switch direction {
	case models.LedgerDebit:
		if balance < amount {
			return 0, &exchange.InsufficientFundsError{
				AccountID: accountID,
				Currency:  currency,
				Required:  amount,
				Available: balance,
			}
		}
		balance -= amount
	case models.LedgerCredit:
		if balance > math.MaxUint64-amount {
			return 0, exchange.Wrap(exchange.ErrInvalid, "credit of %d would overflow the %s balance", amount, currency)
		}
		balance += amount
	}

	now := time.Now()
	account.SetBalance(currency, balance)
	account.UpdatedAt = now
	if err := c.accounts.UpdateBalances(ctx, account); err != nil {
		return 0, fmt.Errorf("failed to update balance: %w", err)
	}

	entry := &models.LedgerEntry{
		IdempotencyKey: key,
		AccountID:      accountID,
		Currency:       currency,
		Direction:      direction,
		Amount:         amount,
		BalanceAfter:   balance,
		CreatedAt:      now,
	}
	if err := c.accounts.InsertEntry(ctx, entry); err != nil {
		return 0, fmt.Errorf("failed to record ledger entry: %w", err)
	}

	return balance, nil
}
