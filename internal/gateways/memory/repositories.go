package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/cardforge/cardforge/internal/domain/exchange"
	"github.com/cardforge/cardforge/internal/gateways/database/models"
)

type accountRepository struct{ s *stores }

func (r accountRepository) Get(_ context.Context, id string) (*models.Account, error) {
	a, ok := r.s.state.accounts[id]
	if !ok {
		return nil, exchange.Wrap(exchange.ErrNotFound, "account %s not found", id)
	}
	return &a, nil
}

func (r accountRepository) GetForUpdate(ctx context.Context, id string) (*models.Account, error) {
	return r.Get(ctx, id)
}

func (r accountRepository) UpdateBalances(_ context.Context, account *models.Account) error {
	if err := r.s.writable(); err != nil {
		return err
	}
	stored, ok := r.s.state.accounts[account.ID]
	if !ok {
		return exchange.Wrap(exchange.ErrNotFound, "account %s not found", account.ID)
	}
	stored.GoldBalance = account.GoldBalance
	stored.GemBalance = account.GemBalance
	stored.UpdatedAt = account.UpdatedAt
	r.s.state.accounts[account.ID] = stored
	return nil
}

func (r accountRepository) FindEntry(_ context.Context, key, accountID string, currency models.Currency, direction models.LedgerDirection) (*models.LedgerEntry, error) {
	for _, e := range r.s.state.entries {
		if e.IdempotencyKey == key && e.AccountID == accountID && e.Currency == currency && e.Direction == direction {
			return &e, nil
		}
	}
	return nil, nil
}

func (r accountRepository) InsertEntry(ctx context.Context, entry *models.LedgerEntry) error {
	if err := r.s.writable(); err != nil {
		return err
	}
	if existing, _ := r.FindEntry(ctx, entry.IdempotencyKey, entry.AccountID, entry.Currency, entry.Direction); existing != nil {
		return fmt.Errorf("duplicate ledger entry %s", entry.IdempotencyKey)
	}
	entry.ID = r.s.nextID()
	r.s.state.entries = append(r.s.state.entries, *entry)
	return nil
}

type cardRepository struct{ s *stores }

func (r cardRepository) GetMany(_ context.Context, ids []string) ([]*models.CardInstance, error) {
	cards := make([]*models.CardInstance, 0, len(ids))
	for _, id := range ids {
		c, ok := r.s.state.cards[id]
		if !ok {
			continue
		}
		cards = append(cards, &c)
	}
	slices.SortFunc(cards, func(a, b *models.CardInstance) int { return cmp.Compare(a.ID, b.ID) })
	return cards, nil
}

func (r cardRepository) Update(_ context.Context, card *models.CardInstance) error {
	if err := r.s.writable(); err != nil {
		return err
	}
	if _, ok := r.s.state.cards[card.ID]; !ok {
		return exchange.Wrap(exchange.ErrNotFound, "card %s not found", card.ID)
	}
	stored := *card
	stored.Definition = nil
	r.s.state.cards[card.ID] = stored
	return nil
}

func (r cardRepository) GetDefinitions(_ context.Context, ids []string) ([]*models.CardDefinition, error) {
	defs := make([]*models.CardDefinition, 0, len(ids))
	for _, id := range ids {
		if d, ok := r.s.state.definitions[id]; ok {
			defs = append(defs, &d)
		}
	}
	return defs, nil
}

type listingRepository struct{ s *stores }

func (r listingRepository) Create(_ context.Context, listing *models.Listing) error {
	if err := r.s.writable(); err != nil {
		return err
	}
	if _, ok := r.s.state.listings[listing.ID]; ok {
		return fmt.Errorf("listing %s already exists", listing.ID)
	}
	r.s.state.listings[listing.ID] = detachListing(listing)
	return nil
}

func (r listingRepository) Get(_ context.Context, id string) (*models.Listing, error) {
	l, ok := r.s.state.listings[id]
	if !ok {
		return nil, exchange.Wrap(exchange.ErrNotFound, "listing %s not found", id)
	}
	return r.attach(l), nil
}

func (r listingRepository) GetForUpdate(ctx context.Context, id string) (*models.Listing, error) {
	return r.Get(ctx, id)
}

func (r listingRepository) Update(_ context.Context, listing *models.Listing) error {
	if err := r.s.writable(); err != nil {
		return err
	}
	if _, ok := r.s.state.listings[listing.ID]; !ok {
		return exchange.Wrap(exchange.ErrNotFound, "listing %s not found", listing.ID)
	}
	listing.Version++
	r.s.state.listings[listing.ID] = detachListing(listing)
	return nil
}

func (r listingRepository) CompareAndSwapBid(_ context.Context, listing *models.Listing, expectedVersion int64) (bool, error) {
	if err := r.s.writable(); err != nil {
		return false, err
	}
	stored, ok := r.s.state.listings[listing.ID]
	if !ok || stored.Version != expectedVersion || stored.Status != models.ListingActive {
		return false, nil
	}
	stored.CurrentBid = listing.CurrentBid
	stored.HighBidderID = listing.HighBidderID
	stored.BidCount = listing.BidCount
	stored.UpdatedAt = listing.UpdatedAt
	stored.Version = expectedVersion + 1
	r.s.state.listings[listing.ID] = stored
	listing.Version = stored.Version
	return true, nil
}

func (r listingRepository) AppendBid(_ context.Context, bid *models.ListingBid) error {
	if err := r.s.writable(); err != nil {
		return err
	}
	bid.ID = r.s.nextID()
	r.s.state.bids = append(r.s.state.bids, *bid)
	return nil
}

func (r listingRepository) ExpiredIDs(_ context.Context, now time.Time, limit int) ([]string, error) {
	var expired []models.Listing
	for _, l := range r.s.state.listings {
		if l.Status == models.ListingActive && l.ExpiresAt.Before(now) {
			expired = append(expired, l)
		}
	}
	slices.SortFunc(expired, func(a, b models.Listing) int { return a.ExpiresAt.Compare(b.ExpiresAt) })
	return firstIDs(expired, limit, func(l models.Listing) string { return l.ID }), nil
}

func (r listingRepository) Search(_ context.Context, filter exchange.ListingFilter) ([]*models.Listing, int, error) {
	var matched []*models.Listing
	for _, stored := range r.s.state.listings {
		l := r.attach(stored)
		if filter.Status != "" && l.Status != filter.Status {
			continue
		}
		if filter.Type != "" && l.Type != filter.Type {
			continue
		}
		if filter.SellerID != "" && l.SellerID != filter.SellerID {
			continue
		}
		if !filter.ActiveAt.IsZero() && !l.ExpiresAt.After(filter.ActiveAt) {
			continue
		}
		if filter.Rarity != "" && (l.Card == nil || l.Card.Definition == nil || l.Card.Definition.Rarity != filter.Rarity) {
			continue
		}
		matched = append(matched, l)
	}
	slices.SortFunc(matched, func(a, b *models.Listing) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return window(matched, filter.Offset, filter.Limit), len(matched), nil
}

func (r listingRepository) attach(l models.Listing) *models.Listing {
	if c, ok := r.s.state.cards[l.CardInstanceID]; ok {
		if def, ok := r.s.state.definitions[c.CardDefID]; ok {
			c.Definition = &def
		}
		l.Card = &c
	}
	return &l
}

func detachListing(l *models.Listing) models.Listing {
	stored := *l
	stored.Card = nil
	return stored
}

type tradeRepository struct{ s *stores }

func (r tradeRepository) Create(_ context.Context, trade *models.TradeOffer) error {
	if err := r.s.writable(); err != nil {
		return err
	}
	if _, ok := r.s.state.trades[trade.ID]; ok {
		return fmt.Errorf("trade %s already exists", trade.ID)
	}
	r.s.state.trades[trade.ID] = copyTrade(*trade)
	return nil
}

func (r tradeRepository) Get(_ context.Context, id string) (*models.TradeOffer, error) {
	t, ok := r.s.state.trades[id]
	if !ok {
		return nil, exchange.Wrap(exchange.ErrNotFound, "trade %s not found", id)
	}
	t = copyTrade(t)
	return &t, nil
}

func (r tradeRepository) GetForUpdate(ctx context.Context, id string) (*models.TradeOffer, error) {
	return r.Get(ctx, id)
}

func (r tradeRepository) Update(_ context.Context, trade *models.TradeOffer) error {
	if err := r.s.writable(); err != nil {
		return err
	}
	if _, ok := r.s.state.trades[trade.ID]; !ok {
		return exchange.Wrap(exchange.ErrNotFound, "trade %s not found", trade.ID)
	}
	r.s.state.trades[trade.ID] = copyTrade(*trade)
	return nil
}

func (r tradeRepository) ExpiredIDs(_ context.Context, now time.Time, limit int) ([]string, error) {
	var expired []models.TradeOffer
	for _, t := range r.s.state.trades {
		if t.Status == models.TradePending && t.ExpiresAt.Before(now) {
			expired = append(expired, t)
		}
	}
	slices.SortFunc(expired, func(a, b models.TradeOffer) int { return a.ExpiresAt.Compare(b.ExpiresAt) })
	return firstIDs(expired, limit, func(t models.TradeOffer) string { return t.ID }), nil
}

func (r tradeRepository) ListForAccount(_ context.Context, filter exchange.TradeFilter) ([]*models.TradeOffer, int, error) {
	var matched []*models.TradeOffer
	for _, stored := range r.s.state.trades {
		t := copyTrade(stored)
		switch filter.Role {
		case exchange.RoleSender:
			if t.SenderID != filter.AccountID {
				continue
			}
		case exchange.RoleReceiver:
			if t.ReceiverID != filter.AccountID {
				continue
			}
		default:
			if t.SenderID != filter.AccountID && t.ReceiverID != filter.AccountID {
				continue
			}
		}
		if filter.Status != "" && t.Status != filter.Status {
			continue
		}
		matched = append(matched, &t)
	}
	slices.SortFunc(matched, func(a, b *models.TradeOffer) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return window(matched, filter.Offset, filter.Limit), len(matched), nil
}

type transactionRepository struct{ s *stores }

func (r transactionRepository) Append(_ context.Context, txn *models.ExchangeTransaction) error {
	if err := r.s.writable(); err != nil {
		return err
	}
	r.s.state.transactions = append(r.s.state.transactions, *txn)
	return nil
}

func (r transactionRepository) ListForAccount(_ context.Context, accountID string, limit, offset int) ([]*models.ExchangeTransaction, int, error) {
	var matched []*models.ExchangeTransaction
	for i := len(r.s.state.transactions) - 1; i >= 0; i-- {
		txn := r.s.state.transactions[i]
		if txn.PartyA == accountID || txn.PartyB == accountID {
			matched = append(matched, &txn)
		}
	}
	return window(matched, offset, limit), len(matched), nil
}

func firstIDs[T any](items []T, limit int, id func(T) string) []string {
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	ids := make([]string, len(items))
	for i, item := range items {
		ids[i] = id(item)
	}
	return ids
}

func window[T any](items []T, offset, limit int) []T {
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}
