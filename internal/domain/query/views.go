package query

import (
	"math"
	"time"

	"github.com/cardforge/cardforge/internal/gateways/database/models"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

type Page[T any] struct {
	Items []T `json:"items"`
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
	Pages int `json:"pages"`
}

func newPage[T any](items []T, page, limit, total int) Page[T] {
	if items == nil {
		items = []T{}
	}
	return Page[T]{
		Items: items,
		Page:  page,
		Limit: limit,
		Total: total,
		Pages: int(math.Ceil(float64(total) / float64(limit))),
	}
}

// normalizePage clamps page to >= 1 and limit to (0, MaxPageSize].
func normalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	return page, limit
}

type CardView struct {
	InstanceID string        `json:"instance_id"`
	DefID      string        `json:"card_def_id"`
	Name       string        `json:"name"`
	Rarity     models.Rarity `json:"rarity"`
	CardType   string        `json:"card_type"`
	IsFoil     bool          `json:"is_foil"`
}

type ListingView struct {
	ID              string               `json:"id"`
	SellerID        string               `json:"seller_id"`
	Type            models.ListingType   `json:"type"`
	Status          models.ListingStatus `json:"status"`
	Price           uint64               `json:"price"`
	Currency        models.Currency      `json:"currency"`
	CurrentBid      uint64               `json:"current_bid"`
	MinBidIncrement uint64               `json:"min_bid_increment"`
	MinimumBid      uint64               `json:"minimum_bid,omitempty"`
	HighBidderID    string               `json:"high_bidder_id,omitempty"`
	BuyerID         string               `json:"buyer_id,omitempty"`
	BidCount        int                  `json:"bid_count"`
	Card            CardView             `json:"card"`
	CreatedAt       time.Time            `json:"created_at"`
	ExpiresAt       time.Time            `json:"expires_at"`
}

func NewListingView(l *models.Listing) ListingView {
	v := ListingView{
		ID:              l.ID,
		SellerID:        l.SellerID,
		Type:            l.Type,
		Status:          l.Status,
		Price:           l.Price,
		Currency:        l.Currency,
		CurrentBid:      l.CurrentBid,
		MinBidIncrement: l.MinBidIncrement,
		HighBidderID:    l.HighBidderID,
		BuyerID:         l.BuyerID,
		BidCount:        l.BidCount,
		Card:            CardView{InstanceID: l.CardInstanceID},
		CreatedAt:       l.CreatedAt,
		ExpiresAt:       l.ExpiresAt,
	}
	if l.Type == models.ListingAuction && l.Status == models.ListingActive {
		v.MinimumBid = l.MinimumBid()
	}
	if l.Card != nil {
		v.Card = newCardView(l.Card, l.Card.Definition)
	}
	return v
}

func newCardView(c *models.CardInstance, def *models.CardDefinition) CardView {
	v := CardView{InstanceID: c.ID, DefID: c.CardDefID, IsFoil: c.IsFoil}
	if def != nil {
		v.Name = def.Name
		v.Rarity = def.Rarity
		v.CardType = def.CardType
	}
	return v
}

type TradeView struct {
	ID            string             `json:"id"`
	SenderID      string             `json:"sender_id"`
	ReceiverID    string             `json:"receiver_id"`
	SenderCards   []CardView         `json:"sender_cards"`
	SenderGold    uint64             `json:"sender_gold"`
	ReceiverCards []CardView         `json:"receiver_cards"`
	ReceiverGold  uint64             `json:"receiver_gold"`
	Message       string             `json:"message,omitempty"`
	Status        models.TradeStatus `json:"status"`
	CreatedAt     time.Time          `json:"created_at"`
	ExpiresAt     time.Time          `json:"expires_at"`
}

// NewTradeView renders an offer with bare card references. ListMyTrades
// fills in names and rarities.
func NewTradeView(t *models.TradeOffer) TradeView {
	return TradeView{
		ID:            t.ID,
		SenderID:      t.SenderID,
		ReceiverID:    t.ReceiverID,
		SenderCards:   bareCards(t.SenderCardIDs),
		SenderGold:    t.SenderGold,
		ReceiverCards: bareCards(t.ReceiverCardIDs),
		ReceiverGold:  t.ReceiverGold,
		Message:       t.Message,
		Status:        t.Status,
		CreatedAt:     t.CreatedAt,
		ExpiresAt:     t.ExpiresAt,
	}
}

func bareCards(ids []string) []CardView {
	cards := make([]CardView, len(ids))
	for i, id := range ids {
		cards[i] = CardView{InstanceID: id}
	}
	return cards
}

type BalanceView struct {
	AccountID string `json:"account_id"`
	Gold      uint64 `json:"gold"`
	Gems      uint64 `json:"gems"`
}
