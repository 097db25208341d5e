package models

import (
	"time"

	"github.com/uptrace/bun"
)

type TradeStatus string

const (
	TradePending   TradeStatus = "pending"
	TradeAccepted  TradeStatus = "accepted"
	TradeDeclined  TradeStatus = "declined"
	TradeCancelled TradeStatus = "cancelled"
	TradeExpired   TradeStatus = "expired"
)

type TradeOffer struct {
	bun.BaseModel `bun:"table:trade_offers,alias:t"`

	ID              string      `bun:"id,pk"`
	SenderID        string      `bun:"sender_id,notnull"`
	ReceiverID      string      `bun:"receiver_id,notnull"`
	SenderCardIDs   []string    `bun:"sender_card_ids,array"`
	SenderGold      uint64      `bun:"sender_gold,notnull"`
	ReceiverCardIDs []string    `bun:"receiver_card_ids,array"`
	ReceiverGold    uint64      `bun:"receiver_gold,notnull"`
	Message         string      `bun:"message,notnull"`
	Status          TradeStatus `bun:"status,notnull"`
	CreatedAt       time.Time   `bun:"created_at,notnull,default:current_timestamp"`
	ExpiresAt       time.Time   `bun:"expires_at,notnull"`
	UpdatedAt       time.Time   `bun:"updated_at,notnull,default:current_timestamp"`
}

func (t *TradeOffer) ExpiredAt(now time.Time) bool {
	return now.After(t.ExpiresAt)
}
