package query

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cardforge/cardforge/internal/domain/exchange"
	"github.com/cardforge/cardforge/internal/gateways/database/models"
	lru "github.com/hashicorp/golang-lru"
	"github.com/sahilm/fuzzy"
)

const (
	definitionCacheSize = 2048
	// searchScanLimit caps how many active listings a name search ranks.
	searchScanLimit = 1000
)

type ListingQuery struct {
	Type   models.ListingType
	Rarity models.Rarity
	// Search is a fuzzy match on the card name.
	Search string
	Page   int
	Limit  int
}

type TradeQuery struct {
	Status models.TradeStatus
	Role   exchange.TradeRole
	Page   int
	Limit  int
}

// Facade serves the read side of the exchange. It never writes.
type Facade struct {
	uow         exchange.UnitOfWork
	definitions *lru.Cache
	now         func() time.Time
}

func NewFacade(uow exchange.UnitOfWork) *Facade {
	cache, _ := lru.New(definitionCacheSize)
	return &Facade{uow: uow, definitions: cache, now: time.Now}
}

func (f *Facade) SetClock(now func() time.Time) {
	f.now = now
}

// ListListings returns active, unexpired listings, newest first or, with a
// search term, best name match first. Listings past expires_at stay hidden
// until the sweeper settles them.
func (f *Facade) ListListings(ctx context.Context, q ListingQuery) (Page[ListingView], error) {
	if q.Type != "" && !q.Type.Valid() {
		return Page[ListingView]{}, exchange.Wrap(exchange.ErrInvalid, "unknown listing type %q", q.Type)
	}
	if q.Rarity != "" && !q.Rarity.Valid() {
		return Page[ListingView]{}, exchange.Wrap(exchange.ErrInvalid, "unknown rarity %q", q.Rarity)
	}
	page, limit := normalizePage(q.Page, q.Limit)
	filter := exchange.ListingFilter{
		Type:     q.Type,
		Rarity:   q.Rarity,
		Status:   models.ListingActive,
		ActiveAt: f.now(),
		Limit:    limit,
		Offset:   (page - 1) * limit,
	}
	search := strings.TrimSpace(q.Search)
	if search != "" {
		filter.Limit = searchScanLimit
		filter.Offset = 0
	}

	var (
		listings []*models.Listing
		total    int
	)
	err := f.uow.View(ctx, func(ctx context.Context, st exchange.Stores) error {
		var err error
		listings, total, err = st.Listings().Search(ctx, filter)
		return err
	})
	if err != nil {
		return Page[ListingView]{}, fmt.Errorf("failed to search listings: %w", err)
	}

	if search != "" {
		listings = rank(search, listings)
		total = len(listings)
		listings = window(listings, (page-1)*limit, limit)
	}

	views := make([]ListingView, len(listings))
	for i, l := range listings {
		views[i] = NewListingView(l)
	}
	return newPage(views, page, limit, total), nil
}

func (f *Facade) GetListing(ctx context.Context, id string) (ListingView, error) {
	var view ListingView
	err := f.uow.View(ctx, func(ctx context.Context, st exchange.Stores) error {
		l, err := st.Listings().Get(ctx, id)
		if err != nil {
			return err
		}
		view = NewListingView(l)
		return nil
	})
	return view, err
}

// ListMyTrades returns the offers accountID sent or received.
func (f *Facade) ListMyTrades(ctx context.Context, accountID string, q TradeQuery) (Page[TradeView], error) {
	switch q.Role {
	case exchange.RoleAny, exchange.RoleSender, exchange.RoleReceiver:
	default:
		return Page[TradeView]{}, exchange.Wrap(exchange.ErrInvalid, "role must be sender or receiver")
	}
	page, limit := normalizePage(q.Page, q.Limit)

	var views []TradeView
	var total int
	err := f.uow.View(ctx, func(ctx context.Context, st exchange.Stores) error {
		offers, n, err := st.Trades().ListForAccount(ctx, exchange.TradeFilter{
			AccountID: accountID,
			Role:      q.Role,
			Status:    q.Status,
			Limit:     limit,
			Offset:    (page - 1) * limit,
		})
		if err != nil {
			return fmt.Errorf("failed to list trades: %w", err)
		}
		total = n

		cards, err := f.cardViews(ctx, st, offers)
		if err != nil {
			return err
		}
		views = make([]TradeView, len(offers))
		for i, t := range offers {
			views[i] = NewTradeView(t)
			views[i].SenderCards = pick(cards, t.SenderCardIDs)
			views[i].ReceiverCards = pick(cards, t.ReceiverCardIDs)
		}
		return nil
	})
	if err != nil {
		return Page[TradeView]{}, err
	}
	return newPage(views, page, limit, total), nil
}

func (f *Facade) Balance(ctx context.Context, accountID string) (BalanceView, error) {
	var view BalanceView
	err := f.uow.View(ctx, func(ctx context.Context, st exchange.Stores) error {
		account, err := st.Accounts().Get(ctx, accountID)
		if err != nil {
			return err
		}
		view = BalanceView{AccountID: account.ID, Gold: account.GoldBalance, Gems: account.GemBalance}
		return nil
	})
	return view, err
}

func (f *Facade) History(ctx context.Context, accountID string, page, limit int) (Page[*models.ExchangeTransaction], error) {
	page, limit = normalizePage(page, limit)
	var (
		txns  []*models.ExchangeTransaction
		total int
	)
	err := f.uow.View(ctx, func(ctx context.Context, st exchange.Stores) error {
		var err error
		txns, total, err = st.Transactions().ListForAccount(ctx, accountID, limit, (page-1)*limit)
		return err
	})
	if err != nil {
		return Page[*models.ExchangeTransaction]{}, fmt.Errorf("failed to list transactions: %w", err)
	}
	return newPage(txns, page, limit, total), nil
}

// cardViews resolves every card referenced by offers. Definitions are
// immutable catalogue data and come from the cache when possible.
func (f *Facade) cardViews(ctx context.Context, st exchange.Stores, offers []*models.TradeOffer) (map[string]CardView, error) {
	var ids []string
	for _, t := range offers {
		ids = append(ids, t.SenderCardIDs...)
		ids = append(ids, t.ReceiverCardIDs...)
	}
	views := make(map[string]CardView, len(ids))
	if len(ids) == 0 {
		return views, nil
	}

	instances, err := st.Cards().GetMany(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load trade cards: %w", err)
	}

	var missing []string
	for _, c := range instances {
		if _, ok := f.definitions.Get(c.CardDefID); !ok {
			missing = append(missing, c.CardDefID)
		}
	}
	if len(missing) > 0 {
		defs, err := st.Cards().GetDefinitions(ctx, missing)
		if err != nil {
			return nil, fmt.Errorf("failed to load card definitions: %w", err)
		}
		for _, d := range defs {
			f.definitions.Add(d.ID, d)
		}
	}

	for _, c := range instances {
		var def *models.CardDefinition
		if cached, ok := f.definitions.Get(c.CardDefID); ok {
			def = cached.(*models.CardDefinition)
		}
		views[c.ID] = newCardView(c, def)
	}
	return views, nil
}

func pick(cards map[string]CardView, ids []string) []CardView {
	out := make([]CardView, 0, len(ids))
	for _, id := range ids {
		if v, ok := cards[id]; ok {
			out = append(out, v)
			continue
		}
		out = append(out, CardView{InstanceID: id})
	}
	return out
}

type searchItems []*models.Listing

func (s searchItems) Len() int { return len(s) }

func (s searchItems) String(i int) string {
	if c := s[i].Card; c != nil && c.Definition != nil {
		return strings.ToLower(c.Definition.Name)
	}
	return ""
}

func rank(search string, listings []*models.Listing) []*models.Listing {
	items := searchItems(listings)
	matches := fuzzy.FindFrom(strings.ToLower(search), items)
	ranked := make([]*models.Listing, len(matches))
	for i, m := range matches {
		ranked[i] = items[m.Index]
	}
	return ranked
}

func window[T any](items []T, offset, limit int) []T {
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if len(items) > limit {
		items = items[:limit]
	}
	return items
}
