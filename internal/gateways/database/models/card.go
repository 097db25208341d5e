package models

import (
	"time"

	"github.com/uptrace/bun"
)

type Rarity string

const (
	RarityCommon    Rarity = "Common"
	RarityUncommon  Rarity = "Uncommon"
	RarityRare      Rarity = "Rare"
	RaritySuperRare Rarity = "Super-Rare"
	RarityMythic    Rarity = "Mythic"
	RarityDivine    Rarity = "Divine"
)

func (r Rarity) Valid() bool {
	switch r {
	case RarityCommon, RarityUncommon, RarityRare, RaritySuperRare, RarityMythic, RarityDivine:
		return true
	}
	return false
}

// CardDefinition is catalogue data owned by the pack side of the game. The
// exchange only reads it.
type CardDefinition struct {
	bun.BaseModel `bun:"table:card_definitions,alias:cd"`

	ID       string `bun:"id,pk"`
	Name     string `bun:"name,notnull"`
	Rarity   Rarity `bun:"rarity,notnull"`
	CardType string `bun:"card_type,notnull"`
}

type LockKind string

const (
	LockListing LockKind = "listing"
	LockTrade   LockKind = "trade"
)

// Hold identifies the engagement (listing or trade offer) holding a card lock.
type Hold struct {
	Kind LockKind
	Ref  string
}

func (h Hold) IsZero() bool {
	return h.Kind == "" && h.Ref == ""
}

func ListingHold(listingID string) Hold {
	return Hold{Kind: LockListing, Ref: listingID}
}

func TradeHold(tradeID string) Hold {
	return Hold{Kind: LockTrade, Ref: tradeID}
}

type CardInstance struct {
	bun.BaseModel `bun:"table:card_instances,alias:ci"`

	ID         string    `bun:"id,pk"`
	OwnerID    string    `bun:"owner_id,notnull"`
	CardDefID  string    `bun:"card_def_id,notnull"`
	IsFoil     bool      `bun:"is_foil,notnull"`
	Locked     bool      `bun:"locked,notnull"`
	LockKind   LockKind  `bun:"lock_kind,nullzero"`
	LockRef    string    `bun:"lock_ref,nullzero"`
	AcquiredAt time.Time `bun:"acquired_at,notnull,default:current_timestamp"`
	UpdatedAt  time.Time `bun:"updated_at,notnull,default:current_timestamp"`

	Definition *CardDefinition `bun:"rel:belongs-to,join:card_def_id=id"`
}

// HeldBy reports whether the instance is locked by exactly this engagement.
func (c CardInstance) HeldBy(h Hold) bool {
	return c.Locked && c.LockKind == h.Kind && c.LockRef == h.Ref
}

func (c CardInstance) Hold() Hold {
	return Hold{Kind: c.LockKind, Ref: c.LockRef}
}
