package models

import (
	"time"

	"github.com/uptrace/bun"
)

type Currency string

const (
	CurrencyGold Currency = "gold"
	CurrencyGems Currency = "gems"
)

func (c Currency) Valid() bool {
	return c == CurrencyGold || c == CurrencyGems
}

type Account struct {
	bun.BaseModel `bun:"table:accounts,alias:acc"`

	ID          string    `bun:"id,pk"`
	GoldBalance uint64    `bun:"gold_balance,notnull"`
	GemBalance  uint64    `bun:"gem_balance,notnull"`
	CreatedAt   time.Time `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt   time.Time `bun:"updated_at,notnull,default:current_timestamp"`
}

func (a *Account) Balance(c Currency) uint64 {
	if c == CurrencyGems {
		return a.GemBalance
	}
	return a.GoldBalance
}

func (a *Account) SetBalance(c Currency, v uint64) {
	if c == CurrencyGems {
		a.GemBalance = v
		return
	}
	a.GoldBalance = v
}

type LedgerDirection string

const (
	LedgerDebit  LedgerDirection = "debit"
	LedgerCredit LedgerDirection = "credit"
)

// LedgerEntry records one applied debit or credit. The idempotency key makes
// a replayed ledger call a no-op.
type LedgerEntry struct {
	bun.BaseModel `bun:"table:ledger_entries,alias:le"`

	ID             int64           `bun:"id,pk,autoincrement"`
	IdempotencyKey string          `bun:"idempotency_key,notnull"`
	AccountID      string          `bun:"account_id,notnull"`
	Currency       Currency        `bun:"currency,notnull"`
	Direction      LedgerDirection `bun:"direction,notnull"`
	Amount         uint64          `bun:"amount,notnull"`
	BalanceAfter   uint64          `bun:"balance_after,notnull"`
	CreatedAt      time.Time       `bun:"created_at,notnull,default:current_timestamp"`
}
