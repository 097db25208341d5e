package repositories

import (
	"github.com/uptrace/bun"

	"github.com/cardforge/cardforge/internal/domain/exchange"
)

// Stores binds every repository to one bun handle, usually a transaction.
type Stores struct {
	db     bun.IDB
	lock   bool
	events []exchange.Event
}

var _ exchange.Stores = (*Stores)(nil)

func NewStores(db bun.IDB, lock bool) *Stores {
	return &Stores{db: db, lock: lock}
}

func (s *Stores) Accounts() exchange.AccountRepository {
	return NewAccountRepository(s.db)
}

func (s *Stores) Cards() exchange.CardRepository {
	return NewCardRepository(s.db, s.lock)
}

func (s *Stores) Listings() exchange.ListingRepository {
	return NewListingRepository(s.db)
}

func (s *Stores) Trades() exchange.TradeRepository {
	return NewTradeRepository(s.db)
}

func (s *Stores) Transactions() exchange.TransactionRepository {
	return NewTransactionRepository(s.db)
}

func (s *Stores) Publish(event exchange.Event) {
	s.events = append(s.events, event)
}

// Events returns what was published, in order.
func (s *Stores) Events() []exchange.Event {
	return s.events
}
