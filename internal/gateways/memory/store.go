// Package memory is an in-process implementation of the exchange stores.
// Units of work run one at a time against a private copy of the state that
// replaces the shared state only when the function succeeds.
package memory

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/cardforge/cardforge/internal/domain/exchange"
	"github.com/cardforge/cardforge/internal/gateways/database/models"
)

type state struct {
	accounts     map[string]models.Account
	entries      []models.LedgerEntry
	definitions  map[string]models.CardDefinition
	cards        map[string]models.CardInstance
	listings     map[string]models.Listing
	bids         []models.ListingBid
	trades       map[string]models.TradeOffer
	transactions []models.ExchangeTransaction
	nextID       int64
}

func newState() *state {
	return &state{
		accounts:    map[string]models.Account{},
		definitions: map[string]models.CardDefinition{},
		cards:       map[string]models.CardInstance{},
		listings:    map[string]models.Listing{},
		trades:      map[string]models.TradeOffer{},
	}
}

func (st *state) clone() *state {
	c := &state{
		accounts:     maps.Clone(st.accounts),
		entries:      slices.Clone(st.entries),
		definitions:  maps.Clone(st.definitions),
		cards:        maps.Clone(st.cards),
		listings:     maps.Clone(st.listings),
		bids:         slices.Clone(st.bids),
		trades:       make(map[string]models.TradeOffer, len(st.trades)),
		transactions: slices.Clone(st.transactions),
		nextID:       st.nextID,
	}
	for id, t := range st.trades {
		c.trades[id] = copyTrade(t)
	}
	return c
}

type Store struct {
	mu       sync.Mutex
	state    *state
	notifier exchange.Notifier
}

func NewStore(notifier exchange.Notifier) *Store {
	if notifier == nil {
		notifier = exchange.NopNotifier
	}
	return &Store{state: newState(), notifier: notifier}
}

func (s *Store) Do(ctx context.Context, fn func(ctx context.Context, s exchange.Stores) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	work := &stores{state: s.state.clone()}
	if err := fn(ctx, work); err != nil {
		s.mu.Unlock()
		return err
	}
	s.state = work.state
	s.mu.Unlock()

	for _, event := range work.events {
		s.notifier.Notify(ctx, event)
	}
	return nil
}

func (s *Store) View(ctx context.Context, fn func(ctx context.Context, s exchange.Stores) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	snapshot := s.state.clone()
	s.mu.Unlock()

	return fn(ctx, &stores{state: snapshot, readOnly: true})
}

func (s *Store) PutAccount(account models.Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.accounts[account.ID] = account
}

func (s *Store) PutDefinition(def models.CardDefinition) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.definitions[def.ID] = def
}

func (s *Store) PutCard(card models.CardInstance) {
	s.mu.Lock()
	defer s.mu.Unlock()
	card.Definition = nil
	s.state.cards[card.ID] = card
}

func (s *Store) Account(id string) (models.Account, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.state.accounts[id]
	return a, ok
}

func (s *Store) Card(id string) (models.CardInstance, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.state.cards[id]
	return c, ok
}

func (s *Store) Listing(id string) (models.Listing, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.state.listings[id]
	return l, ok
}

func (s *Store) Trade(id string) (models.TradeOffer, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.state.trades[id]
	return copyTrade(t), ok
}

func (s *Store) Transactions() []models.ExchangeTransaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.state.transactions)
}

// TotalBalance sums a currency over all accounts.
func (s *Store) TotalBalance(currency models.Currency) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	var total uint64
	for _, a := range s.state.accounts {
		total += a.Balance(currency)
	}
	return total
}

type stores struct {
	state    *state
	readOnly bool
	events   []exchange.Event
}

func (s *stores) Accounts() exchange.AccountRepository         { return accountRepository{s} }
func (s *stores) Cards() exchange.CardRepository               { return cardRepository{s} }
func (s *stores) Listings() exchange.ListingRepository         { return listingRepository{s} }
func (s *stores) Trades() exchange.TradeRepository             { return tradeRepository{s} }
func (s *stores) Transactions() exchange.TransactionRepository { return transactionRepository{s} }

func (s *stores) Publish(event exchange.Event) {
	s.events = append(s.events, event)
}

func (s *stores) writable() error {
	if s.readOnly {
		return fmt.Errorf("write in read-only unit of work")
	}
	return nil
}

func (s *stores) nextID() int64 {
	s.state.nextID++
	return s.state.nextID
}

func copyTrade(t models.TradeOffer) models.TradeOffer {
	t.SenderCardIDs = slices.Clone(t.SenderCardIDs)
	t.ReceiverCardIDs = slices.Clone(t.ReceiverCardIDs)
	return t
}

type Fixture struct {
	Accounts    []models.Account
	Definitions []models.CardDefinition
	Cards       []models.CardInstance
}

// Seed loads reference data owned by the rest of the game.
func (s *Store) Seed(f Fixture) {
	for _, a := range f.Accounts {
		s.PutAccount(a)
	}
	for _, d := range f.Definitions {
		s.PutDefinition(d)
	}
	for _, c := range f.Cards {
		s.PutCard(c)
	}
}
