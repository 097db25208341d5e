package backend_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardforge/cardforge/backend"
	"github.com/cardforge/cardforge/backend/handlers"
	"github.com/cardforge/cardforge/backend/middleware"
	"github.com/cardforge/cardforge/cardforge"
	"github.com/cardforge/cardforge/internal/domain/exchange"
	"github.com/cardforge/cardforge/internal/domain/market"
	"github.com/cardforge/cardforge/internal/domain/query"
	"github.com/cardforge/cardforge/internal/domain/settlement"
	"github.com/cardforge/cardforge/internal/domain/trades"
	"github.com/cardforge/cardforge/internal/gateways/database/models"
	"github.com/cardforge/cardforge/internal/gateways/memory"
)

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string            `json:"code"`
		Message string            `json:"message"`
		Details map[string]string `json:"details"`
	} `json:"error"`
}

func newTestServer(t *testing.T, httpCfg cardforge.HTTPConfig) (*fiber.App, *memory.Store) {
	t.Helper()
	store := memory.NewStore(exchange.NopNotifier)
	store.Seed(memory.Fixture{
		Accounts: []models.Account{
			{ID: "alice"},
			{ID: "bob", GoldBalance: 1000},
			{ID: "dave", GoldBalance: 10},
		},
		Definitions: []models.CardDefinition{
			{ID: "def-drake", Name: "Ember Drake", Rarity: models.RarityRare, CardType: "creature"},
		},
		Cards: []models.CardInstance{
			{ID: "c1", OwnerID: "alice", CardDefID: "def-drake"},
			{ID: "c2", OwnerID: "alice", CardDefID: "def-drake"},
			{ID: "c3", OwnerID: "bob", CardDefID: "def-drake"},
		},
	})

	settler := settlement.New()
	webApp := &handlers.WebApp{
		Market:  market.NewService(store, settler, market.Settings{}),
		Trades:  trades.NewService(store, settler, trades.Settings{}),
		Query:   query.NewFacade(store),
		Version: "test",
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return backend.NewServer(ctx, webApp, httpCfg), store
}

func do(t *testing.T, app *fiber.App, method, path, account string, body any) (int, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if account != "" {
		req.Header.Set(middleware.AccountHeader, account)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	return resp.StatusCode, env
}

func TestServer_AccountRequired(t *testing.T) {
	app, _ := newTestServer(t, cardforge.HTTPConfig{})

	status, env := do(t, app, http.MethodGet, "/api/balance", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.False(t, env.Success)

	status, _ = do(t, app, http.MethodGet, "/api/balance", "not an id!", nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, env = do(t, app, http.MethodGet, "/api/balance", "bob", nil)
	require.Equal(t, http.StatusOK, status)
	var balance query.BalanceView
	require.NoError(t, json.Unmarshal(env.Data, &balance))
	assert.Equal(t, uint64(1000), balance.Gold)
}

func TestServer_FixedPriceFlow(t *testing.T) {
	app, store := newTestServer(t, cardforge.HTTPConfig{})

	status, env := do(t, app, http.MethodPost, "/api/listings", "alice", map[string]any{
		"card_instance_id": "c1",
		"type":             "fixed",
		"price":            300,
	})
	require.Equal(t, http.StatusCreated, status, "%+v", env.Error)
	var listing query.ListingView
	require.NoError(t, json.Unmarshal(env.Data, &listing))
	assert.Equal(t, "Ember Drake", listing.Card.Name)
	assert.Equal(t, models.CurrencyGold, listing.Currency)

	status, env = do(t, app, http.MethodGet, "/api/listings?q=drake", "bob", nil)
	require.Equal(t, http.StatusOK, status)
	var found []query.ListingView
	require.NoError(t, json.Unmarshal(env.Data, &found))
	require.Len(t, found, 1)
	assert.Equal(t, listing.ID, found[0].ID)

	status, env = do(t, app, http.MethodPost, "/api/listings/"+listing.ID+"/buy", "bob", nil)
	require.Equal(t, http.StatusOK, status, "%+v", env.Error)
	require.NoError(t, json.Unmarshal(env.Data, &listing))
	assert.Equal(t, models.ListingSold, listing.Status)
	assert.Equal(t, "bob", listing.BuyerID)

	card, _ := store.Card("c1")
	assert.Equal(t, "bob", card.OwnerID)

	status, env = do(t, app, http.MethodPost, "/api/listings/"+listing.ID+"/buy", "dave", nil)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, exchange.ErrAlreadyFinalized.Code, env.Error.Code)

	status, env = do(t, app, http.MethodGet, "/api/history", "bob", nil)
	require.Equal(t, http.StatusOK, status)
	var history []models.ExchangeTransaction
	require.NoError(t, json.Unmarshal(env.Data, &history))
	assert.Len(t, history, 1)
}

func TestServer_AuctionErrors(t *testing.T) {
	app, _ := newTestServer(t, cardforge.HTTPConfig{})

	status, env := do(t, app, http.MethodPost, "/api/listings", "alice", map[string]any{
		"card_instance_id":  "c2",
		"type":              "auction",
		"price":             100,
		"min_bid_increment": 10,
	})
	require.Equal(t, http.StatusCreated, status, "%+v", env.Error)
	var listing query.ListingView
	require.NoError(t, json.Unmarshal(env.Data, &listing))
	bids := "/api/listings/" + listing.ID + "/bids"

	tests := []struct {
		name    string
		account string
		body    any
		status  int
		code    string
		details map[string]string
	}{
		{
			name:    "missing amount",
			account: "bob",
			body:    map[string]any{},
			status:  http.StatusUnprocessableEntity,
			code:    "VALIDATION_ERROR",
		},
		{
			name:    "below minimum",
			account: "bob",
			body:    map[string]any{"amount": 50},
			status:  http.StatusUnprocessableEntity,
			code:    exchange.ErrBidTooLow.Code,
			details: map[string]string{"minimum": "100"},
		},
		{
			name:    "insufficient funds",
			account: "dave",
			body:    map[string]any{"amount": 100},
			status:  http.StatusPaymentRequired,
			code:    exchange.ErrInsufficientFunds.Code,
			details: map[string]string{"currency": "gold", "required": "100", "available": "10"},
		},
		{
			name:    "seller bids",
			account: "alice",
			body:    map[string]any{"amount": 100},
			status:  http.StatusBadRequest,
			code:    exchange.ErrSelfTrade.Code,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, env := do(t, app, http.MethodPost, bids, tt.account, tt.body)
			assert.Equal(t, tt.status, status)
			require.NotNil(t, env.Error)
			assert.Equal(t, tt.code, env.Error.Code)
			for k, v := range tt.details {
				assert.Equal(t, v, env.Error.Details[k], k)
			}
		})
	}

	status, env = do(t, app, http.MethodPost, bids, "bob", map[string]any{"amount": 100})
	require.Equal(t, http.StatusOK, status, "%+v", env.Error)
	require.NoError(t, json.Unmarshal(env.Data, &listing))
	assert.Equal(t, "bob", listing.HighBidderID)
	assert.Equal(t, uint64(110), listing.MinimumBid)

	status, _ = do(t, app, http.MethodPost, "/api/listings/"+listing.ID+"/cancel", "alice", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, status, "auctions with bids cannot be cancelled")

	status, env = do(t, app, http.MethodGet, "/api/listings/missing", "bob", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, exchange.ErrNotFound.Code, env.Error.Code)
}

func TestServer_TradeFlow(t *testing.T) {
	app, store := newTestServer(t, cardforge.HTTPConfig{})

	status, env := do(t, app, http.MethodPost, "/api/trades", "alice", map[string]any{
		"receiver_id":       "bob",
		"sender_card_ids":   []string{"c1"},
		"receiver_card_ids": []string{"c3"},
		"receiver_gold":     50,
		"message":           "drake for drake plus change",
	})
	require.Equal(t, http.StatusCreated, status, "%+v", env.Error)
	var offer query.TradeView
	require.NoError(t, json.Unmarshal(env.Data, &offer))
	assert.Equal(t, models.TradePending, offer.Status)

	status, env = do(t, app, http.MethodGet, "/api/trades?role=receiver", "bob", nil)
	require.Equal(t, http.StatusOK, status)
	var inbox []query.TradeView
	require.NoError(t, json.Unmarshal(env.Data, &inbox))
	require.Len(t, inbox, 1)
	assert.Equal(t, "Ember Drake", inbox[0].SenderCards[0].Name)

	status, _ = do(t, app, http.MethodPost, "/api/trades/"+offer.ID+"/respond", "bob", map[string]any{"action": "maybe"})
	assert.Equal(t, http.StatusUnprocessableEntity, status)

	status, env = do(t, app, http.MethodPost, "/api/trades/"+offer.ID+"/respond", "alice", map[string]any{"action": "accept"})
	assert.Equal(t, http.StatusForbidden, status, "%+v", env.Error)

	status, env = do(t, app, http.MethodPost, "/api/trades/"+offer.ID+"/respond", "bob", map[string]any{"action": "accept"})
	require.Equal(t, http.StatusOK, status, "%+v", env.Error)
	require.NoError(t, json.Unmarshal(env.Data, &offer))
	assert.Equal(t, models.TradeAccepted, offer.Status)

	c1, _ := store.Card("c1")
	c3, _ := store.Card("c3")
	assert.Equal(t, "bob", c1.OwnerID)
	assert.Equal(t, "alice", c3.OwnerID)
	alice, _ := store.Account("alice")
	assert.Equal(t, uint64(50), alice.GoldBalance)

	status, _ = do(t, app, http.MethodPost, "/api/trades/"+offer.ID+"/cancel", "alice", nil)
	assert.Equal(t, http.StatusConflict, status)
}

func TestServer_AccountIDsSurviveLaterRequests(t *testing.T) {
	app, store := newTestServer(t, cardforge.HTTPConfig{RateLimit: 100})

	status, env := do(t, app, http.MethodPost, "/api/listings", "alice", map[string]any{
		"card_instance_id": "c1",
		"type":             "fixed",
		"price":            300,
	})
	require.Equal(t, http.StatusCreated, status, "%+v", env.Error)
	var listing query.ListingView
	require.NoError(t, json.Unmarshal(env.Data, &listing))

	for _, account := range []string{"bob", "dave", "bobcat-with-a-longer-id"} {
		status, _ = do(t, app, http.MethodGet, "/api/listings", account, nil)
		require.Equal(t, http.StatusOK, status)
	}

	stored, ok := store.Listing(listing.ID)
	require.True(t, ok)
	assert.Equal(t, "alice", stored.SellerID)
	card, _ := store.Card("c1")
	assert.True(t, card.HeldBy(models.ListingHold(listing.ID)))

	status, env = do(t, app, http.MethodPost, "/api/listings/"+listing.ID+"/cancel", "alice", nil)
	assert.Equal(t, http.StatusOK, status, "%+v", env.Error)
}

func TestServer_RateLimit(t *testing.T) {
	app, _ := newTestServer(t, cardforge.HTTPConfig{RateLimit: 2})

	for i := 0; i < 2; i++ {
		status, _ := do(t, app, http.MethodGet, "/api/balance", "bob", nil)
		require.Equal(t, http.StatusOK, status)
	}
	status, env := do(t, app, http.MethodGet, "/api/balance", "bob", nil)
	assert.Equal(t, http.StatusTooManyRequests, status)
	assert.Equal(t, "RATE_LIMIT_EXCEEDED", env.Error.Code)

	status, _ = do(t, app, http.MethodGet, "/api/balance", "alice", nil)
	assert.Equal(t, http.StatusOK, status)
}

func TestServer_Health(t *testing.T) {
	app, _ := newTestServer(t, cardforge.HTTPConfig{})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/healthz", nil), -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var check struct {
		Status  string `json:"status"`
		Version string `json:"version"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&check))
	assert.Equal(t, "healthy", check.Status)
	assert.Equal(t, "test", check.Version)
}
