package exchange

import (
	"context"
	"time"

	"github.com/cardforge/cardforge/internal/gateways/database/models"
)

type EventType string

const (
	EventListingCreated   EventType = "listing.created"
	EventListingSold      EventType = "listing.sold"
	EventListingOutbid    EventType = "listing.outbid"
	EventListingExpired   EventType = "listing.expired"
	EventListingCancelled EventType = "listing.cancelled"
	EventTradeCreated     EventType = "trade.created"
	EventTradeResponded   EventType = "trade.responded"
	EventTradeCancelled   EventType = "trade.cancelled"
	EventTradeExpired     EventType = "trade.expired"
)

// Event is emitted to external systems after a state change commits.
type Event struct {
	Type EventType `json:"type"`
	// AccountID is the account the event is addressed to.
	AccountID      string          `json:"account_id"`
	CounterpartyID string          `json:"counterparty_id,omitempty"`
	ListingID      string          `json:"listing_id,omitempty"`
	TradeID        string          `json:"trade_id,omitempty"`
	Amount         uint64          `json:"amount,omitempty"`
	Currency       models.Currency `json:"currency,omitempty"`
	Outcome        string          `json:"outcome,omitempty"`
	OccurredAt     time.Time       `json:"occurred_at"`
}

// Notifier receives committed events.
type Notifier interface {
	Notify(ctx context.Context, event Event)
}

type NotifierFunc func(ctx context.Context, event Event)

func (f NotifierFunc) Notify(ctx context.Context, event Event) {
	f(ctx, event)
}

// NopNotifier drops every event.
var NopNotifier Notifier = NotifierFunc(func(context.Context, Event) {})
