package exchange

import (
	"context"
	"time"

	"github.com/cardforge/cardforge/internal/gateways/database/models"
)

type AccountRepository interface {
	Get(ctx context.Context, id string) (*models.Account, error)
	GetForUpdate(ctx context.Context, id string) (*models.Account, error)
	UpdateBalances(ctx context.Context, account *models.Account) error
	FindEntry(ctx context.Context, key, accountID string, currency models.Currency, direction models.LedgerDirection) (*models.LedgerEntry, error)
	InsertEntry(ctx context.Context, entry *models.LedgerEntry) error
}

type CardRepository interface {
	// GetMany returns the instances that exist, ordered by id. Inside a
	// read-write unit of work the rows are locked.
	GetMany(ctx context.Context, ids []string) ([]*models.CardInstance, error)
	Update(ctx context.Context, card *models.CardInstance) error
	GetDefinitions(ctx context.Context, ids []string) ([]*models.CardDefinition, error)
}

type ListingFilter struct {
	Type     models.ListingType
	Rarity   models.Rarity
	Status   models.ListingStatus
	SellerID string
	// ActiveAt, when set, drops listings whose expires_at is not after it.
	ActiveAt time.Time
	Limit    int
	Offset   int
}

type ListingRepository interface {
	Create(ctx context.Context, listing *models.Listing) error
	Get(ctx context.Context, id string) (*models.Listing, error)
	GetForUpdate(ctx context.Context, id string) (*models.Listing, error)
	Update(ctx context.Context, listing *models.Listing) error
	// CompareAndSwapBid stores the bid fields of listing only if the stored
	// version still equals expectedVersion and the listing is active.
	CompareAndSwapBid(ctx context.Context, listing *models.Listing, expectedVersion int64) (bool, error)
	AppendBid(ctx context.Context, bid *models.ListingBid) error
	ExpiredIDs(ctx context.Context, now time.Time, limit int) ([]string, error)
	Search(ctx context.Context, filter ListingFilter) ([]*models.Listing, int, error)
}

type TradeRole string

const (
	RoleAny      TradeRole = ""
	RoleSender   TradeRole = "sender"
	RoleReceiver TradeRole = "receiver"
)

type TradeFilter struct {
	AccountID string
	Role      TradeRole
	Status    models.TradeStatus
	Limit     int
	Offset    int
}

type TradeRepository interface {
	Create(ctx context.Context, trade *models.TradeOffer) error
	Get(ctx context.Context, id string) (*models.TradeOffer, error)
	GetForUpdate(ctx context.Context, id string) (*models.TradeOffer, error)
	Update(ctx context.Context, trade *models.TradeOffer) error
	ExpiredIDs(ctx context.Context, now time.Time, limit int) ([]string, error)
	ListForAccount(ctx context.Context, filter TradeFilter) ([]*models.TradeOffer, int, error)
}

type TransactionRepository interface {
	Append(ctx context.Context, txn *models.ExchangeTransaction) error
	ListForAccount(ctx context.Context, accountID string, limit, offset int) ([]*models.ExchangeTransaction, int, error)
}

// Stores is the set of repositories bound to one unit of work.
type Stores interface {
	Accounts() AccountRepository
	Cards() CardRepository
	Listings() ListingRepository
	Trades() TradeRepository
	Transactions() TransactionRepository
	// Publish queues an event that is delivered only if the unit of work commits.
	Publish(event Event)
}

// UnitOfWork runs functions against a consistent view of the store.
type UnitOfWork interface {
	// Do runs fn in a serializable read-write transaction. Any error rolls
	// everything back, queued events included.
	Do(ctx context.Context, fn func(ctx context.Context, s Stores) error) error
	// View runs fn in a read-only snapshot.
	View(ctx context.Context, fn func(ctx context.Context, s Stores) error) error
}
