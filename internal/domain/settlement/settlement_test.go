package settlement

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

func seeded() *memory.Store {
	store := memory.NewStore(nil)
	store.Seed(memory.Fixture{
		Accounts: []models.Account{
			{ID: "a", GoldBalance: 100, GemBalance: 10},
			{ID: "b", GoldBalance: 20},
		},
		Cards: []models.CardInstance{
			{ID: "c1", OwnerID: "a", Locked: true, LockKind: models.LockListing, LockRef: "l1"},
			{ID: "c2", OwnerID: "b"},
		},
	})
	return store
}

func sale(price int64) Plan {
	return Plan{
		Source:   models.SourceListing,
		SourceID: "l1",
		PartyA:   "a",
		PartyB:   "b",
		Transfers: []Transfer{
			{CardInstanceID: "c1", FromID: "a", ToID: "b", Hold: models.ListingHold("l1")},
		},
		Adjustments: []Adjustment{
			{AccountID: "b", Currency: models.CurrencyGold, Delta: -price},
			{AccountID: "a", Currency: models.CurrencyGold, Delta: price},
		},
	}
}

func TestCore_Settle(t *testing.T) {
	tests := []struct {
		name    string
		plan    Plan
		wantErr error
	}{
		{name: "Sale", plan: sale(15)},
		{name: "Swap with free card", plan: Plan{
			Source: models.SourceTrade, SourceID: "t1", PartyA: "a", PartyB: "b",
			Transfers: []Transfer{
				{CardInstanceID: "c2", FromID: "b", ToID: "a"},
				{CardInstanceID: "c1", FromID: "a", ToID: "b", Hold: models.ListingHold("l1")},
			},
		}},
		{name: "Insufficient", plan: sale(21), wantErr: exchange.ErrInsufficientFunds},
		{name: "Unbalanced", plan: func() Plan {
			p := sale(10)
			p.Adjustments[1].Delta = 11
			return p
		}(), wantErr: exchange.ErrInvalid},
		{name: "Wrong owner", plan: func() Plan {
			p := sale(10)
			p.Transfers[0].FromID = "b"
			p.Transfers[0].ToID = "a"
			return p
		}(), wantErr: exchange.ErrNotOwned},
		{name: "Lock taken by someone else", plan: func() Plan {
			p := sale(10)
			p.Transfers[0].Hold = models.ListingHold("l2")
			return p
		}(), wantErr: exchange.ErrConcurrentModification},
		{name: "Card gone", plan: func() Plan {
			p := sale(10)
			p.Transfers[0].CardInstanceID = "c9"
			return p
		}(), wantErr: exchange.ErrNotOwned},
		{name: "Empty", plan: Plan{Source: models.SourceTrade, SourceID: "t"}, wantErr: exchange.ErrInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := seeded()
			gold := store.TotalBalance(models.CurrencyGold)
			core := New()
			core.now = func() time.Time { return time.Unix(0, 0) }

			var txn *models.ExchangeTransaction
			err := store.Do(context.Background(), func(ctx context.Context, s exchange.Stores) error {
				var err error
				txn, err = core.Settle(ctx, s, tt.plan)
				return err
			})

			assert.Equal(t, gold, store.TotalBalance(models.CurrencyGold))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				c1, _ := store.Card("c1")
				assert.Equal(t, "a", c1.OwnerID)
				assert.True(t, c1.Locked)
				assert.Empty(t, store.Transactions())
				return
			}
			require.NoError(t, err)
			require.Len(t, store.Transactions(), 1)
			assert.Equal(t, txn.ID, store.Transactions()[0].ID)
			for _, tr := range tt.plan.Transfers {
				c, _ := store.Card(tr.CardInstanceID)
				assert.Equal(t, tr.ToID, c.OwnerID)
				assert.False(t, c.Locked)
			}
		})
	}
}

func TestCore_Settle_LedgerKeysAreUnique(t *testing.T) {
	store := seeded()
	core := New()

	for i := range 2 {
		err := store.Do(context.Background(), func(ctx context.Context, s exchange.Stores) error {
			_, err := core.Settle(ctx, s, Plan{
				Source: models.SourceTrade, SourceID: "t1", PartyA: "a", PartyB: "b",
				Adjustments: []Adjustment{
					{AccountID: "a", Currency: models.CurrencyGems, Delta: -1},
					{AccountID: "b", Currency: models.CurrencyGems, Delta: 1},
				},
			})
			return err
		})
		require.NoError(t, err, "round %d", i)
	}

	a, _ := store.Account("a")
	b, _ := store.Account("b")
	assert.EqualValues(t, 8, a.GemBalance)
	assert.EqualValues(t, 2, b.GemBalance)
}
