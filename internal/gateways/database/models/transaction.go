package models

import (
	"time"

	"github.com/uptrace/bun"
)

type TransactionSource string

const (
	SourceListing TransactionSource = "listing"
	SourceTrade   TransactionSource = "trade"
)

type CardMove struct {
	CardInstanceID string `json:"card_instance_id"`
	FromID         string `json:"from_id"`
	ToID           string `json:"to_id"`
}

type CurrencyMove struct {
	AccountID string   `json:"account_id"`
	Currency  Currency `json:"currency"`
	Delta     int64    `json:"delta"`
}

// ExchangeTransaction is the immutable record of one completed settlement.
type ExchangeTransaction struct {
	bun.BaseModel `bun:"table:exchange_transactions,alias:et" json:"-"`

	ID            string            `bun:"id,pk" json:"id"`
	Source        TransactionSource `bun:"source,notnull" json:"source"`
	SourceID      string            `bun:"source_id,notnull" json:"source_id"`
	PartyA        string            `bun:"party_a,notnull" json:"party_a"`
	PartyB        string            `bun:"party_b,notnull" json:"party_b"`
	CardMoves     []CardMove        `bun:"card_moves,type:jsonb" json:"card_moves"`
	CurrencyMoves []CurrencyMove    `bun:"currency_moves,type:jsonb" json:"currency_moves"`
	CreatedAt     time.Time         `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
}
