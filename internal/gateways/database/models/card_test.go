package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func lockedCard(kind LockKind, ref string) CardInstance {
	return CardInstance{ID: "c1", OwnerID: "alice", Locked: true, LockKind: kind, LockRef: ref}
}

func TestCardInstance_HeldBy(t *testing.T) {
	tests := []struct {
		name string
		card CardInstance
		hold Hold
		want bool
	}{
		{name: "Same listing", card: lockedCard(LockListing, "l1"), hold: ListingHold("l1"), want: true},
		{name: "Other listing", card: lockedCard(LockListing, "l1"), hold: ListingHold("l2")},
		{name: "Trade with listing ref", card: lockedCard(LockListing, "l1"), hold: TradeHold("l1")},
		{name: "Unlocked", card: CardInstance{ID: "c1"}, hold: Hold{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.card.HeldBy(tt.hold))
		})
	}
}

func TestCardInstance_HoldOnReturnedValue(t *testing.T) {
	assert.True(t, lockedCard(LockTrade, "t1").HeldBy(TradeHold("t1")))
	assert.Equal(t, TradeHold("t1"), lockedCard(LockTrade, "t1").Hold())
}
