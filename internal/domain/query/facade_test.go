package query

import (
	"context"
	"testing"
	"time"

	"github.com/cardforge/cardforge/internal/domain/exchange"
	"github.com/cardforge/cardforge/internal/gateways/database/models"
	"github.com/cardforge/cardforge/internal/gateways/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func seed(t *testing.T) *memory.Store {
	t.Helper()
	store := memory.NewStore(nil)
	store.Seed(memory.Fixture{
		Accounts: []models.Account{{ID: "alice", GoldBalance: 7, GemBalance: 3}, {ID: "bob"}},
		Definitions: []models.CardDefinition{
			{ID: "d1", Name: "Ember Drake", Rarity: models.RarityRare},
			{ID: "d2", Name: "Frost Wyrm", Rarity: models.RarityDivine},
			{ID: "d3", Name: "Ember Sprite", Rarity: models.RarityCommon},
		},
		Cards: []models.CardInstance{
			{ID: "c1", OwnerID: "alice", CardDefID: "d1"},
			{ID: "c2", OwnerID: "alice", CardDefID: "d2"},
			{ID: "c3", OwnerID: "alice", CardDefID: "d3"},
			{ID: "c4", OwnerID: "bob", CardDefID: "d2"},
		},
	})

	require.NoError(t, store.Do(context.Background(), func(ctx context.Context, s exchange.Stores) error {
		for i, l := range []*models.Listing{
			{ID: "l1", SellerID: "alice", CardInstanceID: "c1", Type: models.ListingFixed, Price: 10, Status: models.ListingActive},
			{ID: "l2", SellerID: "alice", CardInstanceID: "c2", Type: models.ListingAuction, Price: 50, MinBidIncrement: 10, Status: models.ListingActive},
			{ID: "l3", SellerID: "alice", CardInstanceID: "c3", Type: models.ListingFixed, Price: 5, Status: models.ListingActive},
			{ID: "l4", SellerID: "alice", CardInstanceID: "c3", Type: models.ListingFixed, Price: 5, Status: models.ListingSold},
		} {
			l.Currency = models.CurrencyGold
			l.CreatedAt = base.Add(time.Duration(i) * time.Hour)
			l.ExpiresAt = l.CreatedAt.Add(24 * time.Hour)
			if err := s.Listings().Create(ctx, l); err != nil {
				return err
			}
		}
		return s.Trades().Create(ctx, &models.TradeOffer{
			ID: "t1", SenderID: "alice", ReceiverID: "bob",
			SenderCardIDs: []string{"c1"}, ReceiverCardIDs: []string{"c4"},
			Status: models.TradePending, CreatedAt: base,
		})
	}))
	return store
}

func ids(items []ListingView) []string {
	out := make([]string, len(items))
	for i, v := range items {
		out[i] = v.ID
	}
	return out
}

func TestFacade_ListListings(t *testing.T) {
	tests := []struct {
		name      string
		query     ListingQuery
		want      []string
		wantTotal int
		wantPages int
	}{
		{name: "All active newest first", query: ListingQuery{}, want: []string{"l3", "l2", "l1"}, wantTotal: 3, wantPages: 1},
		{name: "Auctions", query: ListingQuery{Type: models.ListingAuction}, want: []string{"l2"}, wantTotal: 1, wantPages: 1},
		{name: "Rarity", query: ListingQuery{Rarity: models.RarityDivine}, want: []string{"l2"}, wantTotal: 1, wantPages: 1},
		{name: "Paged", query: ListingQuery{Page: 2, Limit: 2}, want: []string{"l1"}, wantTotal: 3, wantPages: 2},
		{name: "Fuzzy name", query: ListingQuery{Search: "ember"}, want: []string{"l1", "l3"}, wantTotal: 2, wantPages: 1},
		{name: "Fuzzy no match", query: ListingQuery{Search: "zzz"}, want: []string{}, wantTotal: 0, wantPages: 0},
	}

	f := NewFacade(seed(t))
	f.SetClock(func() time.Time { return base.Add(3 * time.Hour) })
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := f.ListListings(context.Background(), tt.query)
			require.NoError(t, err)
			if tt.name == "Fuzzy name" {
				assert.ElementsMatch(t, tt.want, ids(got.Items))
			} else {
				assert.Equal(t, tt.want, ids(got.Items))
			}
			assert.Equal(t, tt.wantTotal, got.Total)
			assert.Equal(t, tt.wantPages, got.Pages)
		})
	}

	_, err := f.ListListings(context.Background(), ListingQuery{Rarity: "Legendary"})
	assert.ErrorIs(t, err, exchange.ErrInvalid)
}

func TestFacade_ListListings_HidesExpired(t *testing.T) {
	tests := []struct {
		name      string
		at        time.Duration
		query     ListingQuery
		want      []string
		wantTotal int
	}{
		{name: "Before any expiry", at: 23 * time.Hour, want: []string{"l3", "l2", "l1"}, wantTotal: 3},
		{name: "Exactly at expiry", at: 24 * time.Hour, want: []string{"l3", "l2"}, wantTotal: 2},
		{name: "Oldest two expired", at: 25*time.Hour + time.Minute, want: []string{"l3"}, wantTotal: 1},
		{name: "Search skips expired", at: 25*time.Hour + time.Minute, query: ListingQuery{Search: "ember"}, want: []string{"l3"}, wantTotal: 1},
		{name: "All expired", at: 48 * time.Hour, want: []string{}, wantTotal: 0},
	}

	store := seed(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewFacade(store)
			f.SetClock(func() time.Time { return base.Add(tt.at) })

			got, err := f.ListListings(context.Background(), tt.query)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(got.Items))
			assert.Equal(t, tt.wantTotal, got.Total)
		})
	}

	// Expired listings stay readable by id until the sweeper settles them.
	f := NewFacade(store)
	f.SetClock(func() time.Time { return base.Add(48 * time.Hour) })
	got, err := f.GetListing(context.Background(), "l1")
	require.NoError(t, err)
	assert.Equal(t, models.ListingActive, got.Status)
}

func TestFacade_GetListing(t *testing.T) {
	f := NewFacade(seed(t))

	got, err := f.GetListing(context.Background(), "l2")
	require.NoError(t, err)
	assert.Equal(t, "Frost Wyrm", got.Card.Name)
	assert.EqualValues(t, 50, got.MinimumBid)

	_, err = f.GetListing(context.Background(), "nope")
	assert.ErrorIs(t, err, exchange.ErrNotFound)
}

func TestFacade_ListMyTrades(t *testing.T) {
	f := NewFacade(seed(t))
	ctx := context.Background()

	got, err := f.ListMyTrades(ctx, "bob", TradeQuery{Role: exchange.RoleReceiver})
	require.NoError(t, err)
	require.Len(t, got.Items, 1)
	assert.Equal(t, "Ember Drake", got.Items[0].SenderCards[0].Name)
	assert.Equal(t, models.RarityDivine, got.Items[0].ReceiverCards[0].Rarity)

	got, err = f.ListMyTrades(ctx, "bob", TradeQuery{Role: exchange.RoleSender})
	require.NoError(t, err)
	assert.Empty(t, got.Items)

	// Second read is served from the definition cache.
	got, err = f.ListMyTrades(ctx, "alice", TradeQuery{Status: models.TradePending})
	require.NoError(t, err)
	require.Len(t, got.Items, 1)
	assert.Equal(t, 2, f.definitions.Len())

	_, err = f.ListMyTrades(ctx, "alice", TradeQuery{Role: "observer"})
	assert.ErrorIs(t, err, exchange.ErrInvalid)
}

func TestFacade_Balance(t *testing.T) {
	f := NewFacade(seed(t))

	got, err := f.Balance(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, BalanceView{AccountID: "alice", Gold: 7, Gems: 3}, got)
}
