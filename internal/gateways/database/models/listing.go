package models

import (
	"time"

	"github.com/uptrace/bun"
)

type ListingType string

const (
	ListingFixed   ListingType = "fixed"
	ListingAuction ListingType = "auction"
)

func (t ListingType) Valid() bool {
	return t == ListingFixed || t == ListingAuction
}

type ListingStatus string

const (
	ListingActive    ListingStatus = "active"
	ListingSold      ListingStatus = "sold"
	ListingExpired   ListingStatus = "expired"
	ListingCancelled ListingStatus = "cancelled"
)

type Listing struct {
	bun.BaseModel `bun:"table:listings,alias:l"`

	ID              string        `bun:"id,pk"`
	SellerID        string        `bun:"seller_id,notnull"`
	CardInstanceID  string        `bun:"card_instance_id,notnull"`
	Type            ListingType   `bun:"type,notnull"`
	Price           uint64        `bun:"price,notnull"`
	Currency        Currency      `bun:"currency,notnull"`
	CurrentBid      uint64        `bun:"current_bid,notnull"`
	MinBidIncrement uint64        `bun:"min_bid_increment,notnull"`
	HighBidderID    string        `bun:"high_bidder_id,nullzero"`
	BuyerID         string        `bun:"buyer_id,nullzero"`
	BidCount        int           `bun:"bid_count,notnull"`
	Version         int64         `bun:"version,notnull"`
	Status          ListingStatus `bun:"status,notnull"`
	CreatedAt       time.Time     `bun:"created_at,notnull,default:current_timestamp"`
	ExpiresAt       time.Time     `bun:"expires_at,notnull"`
	UpdatedAt       time.Time     `bun:"updated_at,notnull,default:current_timestamp"`

	Card *CardInstance `bun:"rel:belongs-to,join:card_instance_id=id"`
}

func (l *Listing) HasBid() bool {
	return l.HighBidderID != ""
}

// MinimumBid is the smallest amount the next bid must reach.
func (l *Listing) MinimumBid() uint64 {
	if !l.HasBid() {
		return l.Price
	}
	return l.CurrentBid + l.MinBidIncrement
}

func (l *Listing) ExpiredAt(now time.Time) bool {
	return now.After(l.ExpiresAt)
}

// ListingBid is the append-only audit trail of accepted bids. Settlement
// never reads it.
type ListingBid struct {
	bun.BaseModel `bun:"table:listing_bids,alias:lb"`

	ID        int64     `bun:"id,pk,autoincrement"`
	ListingID string    `bun:"listing_id,notnull"`
	BidderID  string    `bun:"bidder_id,notnull"`
	Amount    uint64    `bun:"amount,notnull"`
	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp"`
}
