package trades

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/cardforge/cardforge/internal/domain/exchange"
	"github.com/cardforge/cardforge/internal/domain/market"
	"github.com/cardforge/cardforge/internal/domain/settlement"
	"github.com/cardforge/cardforge/internal/gateways/database/models"
	"github.com/cardforge/cardforge/internal/gateways/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var start = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

type harness struct {
	store  *memory.Store
	svc    *Service
	market *market.Service
	now    time.Time
	events []exchange.Event
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{now: start}
	h.store = memory.NewStore(exchange.NotifierFunc(func(_ context.Context, e exchange.Event) {
		h.events = append(h.events, e)
	}))
	h.store.Seed(memory.Fixture{
		Accounts: []models.Account{
			{ID: "alice", GoldBalance: 100},
			{ID: "bob", GoldBalance: 30},
			{ID: "dave", GoldBalance: 1000},
		},
		Definitions: []models.CardDefinition{
			{ID: "def-1", Name: "Tide Oracle", Rarity: models.RarityMythic, CardType: "spell"},
		},
		Cards: []models.CardInstance{
			{ID: "a1", OwnerID: "alice", CardDefID: "def-1"},
			{ID: "a2", OwnerID: "alice", CardDefID: "def-1"},
			{ID: "b1", OwnerID: "bob", CardDefID: "def-1"},
			{ID: "b2", OwnerID: "bob", CardDefID: "def-1"},
		},
	})
	core := settlement.New()
	clock := func() time.Time { return h.now }
	h.svc = NewService(h.store, core, Settings{})
	h.svc.SetClock(clock)
	h.market = market.NewService(h.store, core, market.Settings{})
	h.market.SetClock(clock)
	return h
}

func (h *harness) card(id string) models.CardInstance {
	c, _ := h.store.Card(id)
	return c
}

func (h *harness) gold(id string) uint64 {
	a, _ := h.store.Account(id)
	return a.GoldBalance
}

func (h *harness) offer(t *testing.T, req CreateOfferRequest) *models.TradeOffer {
	t.Helper()
	o, err := h.svc.Create(context.Background(), req)
	require.NoError(t, err)
	return o
}

func swap() CreateOfferRequest {
	return CreateOfferRequest{
		SenderID:        "alice",
		ReceiverID:      "bob",
		SenderCardIDs:   []string{"a1"},
		SenderGold:      20,
		ReceiverCardIDs: []string{"b1"},
		Message:         "fair deal?",
	}
}

func TestService_Create(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(r *CreateOfferRequest)
		wantErr error
	}{
		{name: "Success", mutate: func(r *CreateOfferRequest) {}},
		{name: "Gold only", mutate: func(r *CreateOfferRequest) { r.SenderCardIDs, r.ReceiverCardIDs = nil, nil }},
		{name: "Self", mutate: func(r *CreateOfferRequest) { r.ReceiverID = "alice" }, wantErr: exchange.ErrSelfTrade},
		{name: "Empty", mutate: func(r *CreateOfferRequest) {
			r.SenderCardIDs, r.ReceiverCardIDs, r.SenderGold = nil, nil, 0
		}, wantErr: exchange.ErrInvalid},
		{name: "Duplicate card", mutate: func(r *CreateOfferRequest) { r.SenderCardIDs = []string{"a1", "a1"} }, wantErr: exchange.ErrInvalid},
		{name: "Card on both sides", mutate: func(r *CreateOfferRequest) { r.ReceiverCardIDs = []string{"a1"} }, wantErr: exchange.ErrInvalid},
		{name: "Too many cards", mutate: func(r *CreateOfferRequest) {
			r.SenderCardIDs = make([]string, MaxCardsPerSide+1)
			for i := range r.SenderCardIDs {
				r.SenderCardIDs[i] = "x" + strings.Repeat("i", i+1)
			}
		}, wantErr: exchange.ErrInvalid},
		{name: "Long message", mutate: func(r *CreateOfferRequest) { r.Message = strings.Repeat("é", MaxMessageRunes+1) }, wantErr: exchange.ErrInvalid},
		{name: "Sender does not own", mutate: func(r *CreateOfferRequest) { r.SenderCardIDs = []string{"b2"} }, wantErr: exchange.ErrNotOwned},
		{name: "Receiver card owned by someone else", mutate: func(r *CreateOfferRequest) { r.ReceiverCardIDs = []string{"a2"} }},
		{name: "Receiver card missing", mutate: func(r *CreateOfferRequest) { r.ReceiverCardIDs = []string{"zz"} }},
		{name: "Unknown receiver", mutate: func(r *CreateOfferRequest) { r.ReceiverID = "erin" }, wantErr: exchange.ErrNotFound},
		{name: "Sender short of gold", mutate: func(r *CreateOfferRequest) { r.SenderGold = 101 }, wantErr: exchange.ErrInsufficientFunds},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			req := swap()
			tt.mutate(&req)

			got, err := h.svc.Create(context.Background(), req)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.False(t, h.card("a1").Locked)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, models.TradePending, got.Status)
			assert.Equal(t, start.Add(DefaultLifetime), got.ExpiresAt)
			for _, id := range got.SenderCardIDs {
				assert.True(t, h.card(id).HeldBy(models.TradeHold(got.ID)))
			}
			for _, id := range got.ReceiverCardIDs {
				assert.False(t, h.card(id).HeldBy(models.TradeHold(got.ID)), "receiver cards are not escrowed")
			}
		})
	}
}

func TestSettings_WithDefaults(t *testing.T) {
	tests := []struct {
		name     string
		in       Settings
		wantCap  int
		wantLife time.Duration
	}{
		{name: "Zero value", in: Settings{}, wantCap: 5, wantLife: 7 * 24 * time.Hour},
		{name: "Raised cap", in: Settings{MaxCardsPerSide: 12, Lifetime: time.Hour}, wantCap: 12, wantLife: time.Hour},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.in.withDefaults()
			assert.Equal(t, tt.wantCap, got.MaxCardsPerSide)
			assert.Equal(t, tt.wantLife, got.Lifetime)
		})
	}
}

func TestService_Create_ListedCardIsLocked(t *testing.T) {
	h := newHarness(t)
	_, err := h.market.CreateListing(context.Background(), market.CreateListingRequest{
		SellerID: "alice", CardInstanceID: "a1", Type: models.ListingFixed, Price: 10, Currency: models.CurrencyGold,
	})
	require.NoError(t, err)

	_, err = h.svc.Create(context.Background(), swap())
	assert.ErrorIs(t, err, exchange.ErrAlreadyLocked)
}

func TestService_Create_ReceiverCardsCheckedOnAccept(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	l, err := h.market.CreateListing(ctx, market.CreateListingRequest{
		SellerID: "bob", CardInstanceID: "b1", Type: models.ListingFixed, Price: 10, Currency: models.CurrencyGold,
	})
	require.NoError(t, err)

	listed := h.offer(t, CreateOfferRequest{SenderID: "alice", ReceiverID: "bob", SenderCardIDs: []string{"a1"}, ReceiverCardIDs: []string{"b1"}})
	assert.Equal(t, models.TradePending, listed.Status)
	assert.True(t, h.card("b1").HeldBy(models.ListingHold(l.ID)), "listing keeps its lock")

	foreign := h.offer(t, CreateOfferRequest{SenderID: "bob", ReceiverID: "dave", ReceiverCardIDs: []string{"a2"}})
	assert.Equal(t, models.TradePending, foreign.Status)

	ghost := h.offer(t, CreateOfferRequest{SenderID: "bob", ReceiverID: "dave", SenderGold: 5, ReceiverCardIDs: []string{"zz"}})
	assert.Equal(t, models.TradePending, ghost.Status)

	_, err = h.svc.Respond(ctx, listed.ID, "bob", ActionAccept)
	assert.ErrorIs(t, err, exchange.ErrTradeInvalidated)
	assert.ErrorIs(t, err, exchange.ErrAlreadyLocked)

	_, err = h.svc.Respond(ctx, foreign.ID, "dave", ActionAccept)
	assert.ErrorIs(t, err, exchange.ErrTradeInvalidated)
	assert.ErrorIs(t, err, exchange.ErrNotOwned)

	_, err = h.svc.Respond(ctx, ghost.ID, "dave", ActionAccept)
	assert.ErrorIs(t, err, exchange.ErrTradeInvalidated)
	assert.ErrorIs(t, err, exchange.ErrNotOwned)

	for _, id := range []string{listed.ID, foreign.ID, ghost.ID} {
		stored, _ := h.store.Trade(id)
		assert.Equal(t, models.TradePending, stored.Status)
	}
}

func TestService_Respond_Accept(t *testing.T) {
	h := newHarness(t)
	o := h.offer(t, swap())
	total := h.store.TotalBalance(models.CurrencyGold)

	_, err := h.svc.Respond(context.Background(), o.ID, "alice", ActionAccept)
	assert.ErrorIs(t, err, exchange.ErrForbidden)

	got, err := h.svc.Respond(context.Background(), o.ID, "bob", ActionAccept)
	require.NoError(t, err)
	assert.Equal(t, models.TradeAccepted, got.Status)

	assert.Equal(t, "bob", h.card("a1").OwnerID)
	assert.Equal(t, "alice", h.card("b1").OwnerID)
	assert.False(t, h.card("a1").Locked)
	assert.EqualValues(t, 80, h.gold("alice"))
	assert.EqualValues(t, 50, h.gold("bob"))
	assert.Equal(t, total, h.store.TotalBalance(models.CurrencyGold))

	txns := h.store.Transactions()
	require.Len(t, txns, 1)
	assert.Equal(t, models.SourceTrade, txns[0].Source)
	assert.Len(t, txns[0].CardMoves, 2)

	_, err = h.svc.Respond(context.Background(), o.ID, "bob", ActionDecline)
	assert.ErrorIs(t, err, exchange.ErrAlreadyFinalized)
}

func TestService_Respond_ReceiverSoldCard(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	o := h.offer(t, CreateOfferRequest{
		SenderID: "alice", ReceiverID: "bob",
		SenderCardIDs: []string{"a1"}, ReceiverCardIDs: []string{"b1"},
	})

	l, err := h.market.CreateListing(ctx, market.CreateListingRequest{
		SellerID: "bob", CardInstanceID: "b1", Type: models.ListingFixed, Price: 10, Currency: models.CurrencyGold,
	})
	require.NoError(t, err)
	_, err = h.market.Buy(ctx, l.ID, "dave")
	require.NoError(t, err)

	_, err = h.svc.Respond(ctx, o.ID, "bob", ActionAccept)

	var invalidated *exchange.TradeInvalidatedError
	require.True(t, errors.As(err, &invalidated), "got %v", err)
	assert.ErrorIs(t, err, exchange.ErrNotOwned)
	assert.Equal(t, exchange.ClassConflict, exchange.ClassOf(err))

	stored, _ := h.store.Trade(o.ID)
	assert.Equal(t, models.TradePending, stored.Status)
	assert.True(t, h.card("a1").HeldBy(models.TradeHold(o.ID)))
	assert.Equal(t, "alice", h.card("a1").OwnerID)
}

func TestService_Respond_ShortOfGold(t *testing.T) {
	h := newHarness(t)
	o := h.offer(t, CreateOfferRequest{
		SenderID: "alice", ReceiverID: "bob",
		SenderCardIDs: []string{"a1"}, ReceiverGold: 30,
	})
	h.store.PutAccount(models.Account{ID: "bob", GoldBalance: 10})

	_, err := h.svc.Respond(context.Background(), o.ID, "bob", ActionAccept)
	assert.ErrorIs(t, err, exchange.ErrTradeInvalidated)
	assert.ErrorIs(t, err, exchange.ErrInsufficientFunds)

	stored, _ := h.store.Trade(o.ID)
	assert.Equal(t, models.TradePending, stored.Status)
	assert.EqualValues(t, 10, h.gold("bob"))
}

func TestService_Respond_Decline(t *testing.T) {
	h := newHarness(t)
	o := h.offer(t, swap())

	got, err := h.svc.Respond(context.Background(), o.ID, "bob", ActionDecline)
	require.NoError(t, err)
	assert.Equal(t, models.TradeDeclined, got.Status)
	assert.False(t, h.card("a1").Locked)
	assert.Equal(t, "alice", h.card("a1").OwnerID)
	assert.EqualValues(t, 100, h.gold("alice"))
}

func TestService_Respond_Expired(t *testing.T) {
	h := newHarness(t)
	o := h.offer(t, swap())
	h.now = o.ExpiresAt.Add(time.Minute)

	_, err := h.svc.Respond(context.Background(), o.ID, "bob", ActionAccept)
	assert.ErrorIs(t, err, exchange.ErrExpired)

	_, err = h.svc.Respond(context.Background(), o.ID, "bob", "maybe")
	assert.ErrorIs(t, err, exchange.ErrInvalid)
}

func TestService_Cancel(t *testing.T) {
	h := newHarness(t)
	o := h.offer(t, swap())

	_, err := h.svc.Cancel(context.Background(), o.ID, "bob")
	assert.ErrorIs(t, err, exchange.ErrForbidden)

	got, err := h.svc.Cancel(context.Background(), o.ID, "alice")
	require.NoError(t, err)
	assert.Equal(t, models.TradeCancelled, got.Status)
	assert.False(t, h.card("a1").Locked)

	_, err = h.svc.Cancel(context.Background(), o.ID, "alice")
	assert.ErrorIs(t, err, exchange.ErrAlreadyFinalized)
}

func TestService_Expire(t *testing.T) {
	h := newHarness(t)
	o := h.offer(t, swap())
	ctx := context.Background()

	expired, err := h.svc.Expire(ctx, o.ID)
	require.NoError(t, err)
	assert.False(t, expired, "not due yet")

	h.now = o.ExpiresAt.Add(time.Second)
	expired, err = h.svc.Expire(ctx, o.ID)
	require.NoError(t, err)
	assert.True(t, expired)
	assert.False(t, h.card("a1").Locked)

	stored, _ := h.store.Trade(o.ID)
	assert.Equal(t, models.TradeExpired, stored.Status)

	expired, err = h.svc.Expire(ctx, o.ID)
	require.NoError(t, err)
	assert.False(t, expired)
}
