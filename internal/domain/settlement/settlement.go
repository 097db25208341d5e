package settlement

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/cardforge/cardforge/internal/domain/exchange"
	"github.com/cardforge/cardforge/internal/domain/inventory"
	"github.com/cardforge/cardforge/internal/domain/ledger"
	"github.com/cardforge/cardforge/internal/gateways/database/models"
	"github.com/google/uuid"
)

// Transfer moves one card instance. Hold is the engagement expected to hold
// the card's lock; a zero Hold means the card must be free.
type Transfer struct {
	CardInstanceID string
	FromID         string
	ToID           string
	Hold           models.Hold
}

// Adjustment changes one balance. Negative deltas are debits.
type Adjustment struct {
	AccountID string
	Currency  models.Currency
	Delta     int64
}

// Plan is everything that has to happen atomically for one sale or trade.
type Plan struct {
	Source      models.TransactionSource
	SourceID    string
	PartyA      string
	PartyB      string
	Transfers   []Transfer
	Adjustments []Adjustment
}

// Core executes settlement plans. It never opens a transaction itself; the
// caller passes the stores of the unit of work the plan has to commit with.
type Core struct {
	newID func() string
	now   func() time.Time
}

func New() *Core {
	return &Core{
		newID: uuid.NewString,
		now:   time.Now,
	}
}

// Settle validates plan against the current state, applies it and records an
// ExchangeTransaction. Any error leaves the caller's transaction to roll back.
func (c *Core) Settle(ctx context.Context, s exchange.Stores, plan Plan) (*models.ExchangeTransaction, error) {
	if err := validate(plan); err != nil {
		return nil, err
	}

	settlementID := c.newID()
	cards := inventory.New(s.Cards())
	funds := ledger.New(s.Accounts())

	// Lock rows in a stable order: cards by id, then accounts by id.
	transfers := slices.Clone(plan.Transfers)
	slices.SortFunc(transfers, func(a, b Transfer) int {
		return strings.Compare(a.CardInstanceID, b.CardInstanceID)
	})
	ids := make([]string, len(transfers))
	for i, t := range transfers {
		ids[i] = t.CardInstanceID
	}
	if len(ids) > 0 {
		current, err := s.Cards().GetMany(ctx, ids)
		if err != nil {
			return nil, fmt.Errorf("failed to lock cards: %w", err)
		}
		if err := recheck(transfers, current); err != nil {
			return nil, err
		}
	}

	adjustments := slices.Clone(plan.Adjustments)
	slices.SortFunc(adjustments, func(a, b Adjustment) int {
		if a.AccountID != b.AccountID {
			return strings.Compare(a.AccountID, b.AccountID)
		}
		return strings.Compare(string(a.Currency), string(b.Currency))
	})

	// Debits first, so a short balance aborts before anyone is paid.
	for _, adj := range adjustments {
		if adj.Delta >= 0 {
			continue
		}
		if _, err := funds.Debit(ctx, adj.AccountID, adj.Currency, uint64(-adj.Delta), ledgerKey(settlementID, adj)); err != nil {
			return nil, fmt.Errorf("failed to debit %s: %w", adj.AccountID, err)
		}
	}
	for _, adj := range adjustments {
		if adj.Delta <= 0 {
			continue
		}
		if _, err := funds.Credit(ctx, adj.AccountID, adj.Currency, uint64(adj.Delta), ledgerKey(settlementID, adj)); err != nil {
			return nil, fmt.Errorf("failed to credit %s: %w", adj.AccountID, err)
		}
	}

	for _, t := range transfers {
		if err := cards.TransferOwner(ctx, t.CardInstanceID, t.FromID, t.ToID, t.Hold); err != nil {
			return nil, err
		}
	}

	txn := &models.ExchangeTransaction{
		ID:            settlementID,
		Source:        plan.Source,
		SourceID:      plan.SourceID,
		PartyA:        plan.PartyA,
		PartyB:        plan.PartyB,
		CardMoves:     make([]models.CardMove, 0, len(transfers)),
		CurrencyMoves: make([]models.CurrencyMove, 0, len(adjustments)),
		CreatedAt:     c.now(),
	}
	for _, t := range transfers {
		txn.CardMoves = append(txn.CardMoves, models.CardMove{CardInstanceID: t.CardInstanceID, FromID: t.FromID, ToID: t.ToID})
	}
	for _, adj := range adjustments {
		if adj.Delta == 0 {
			continue
		}
		txn.CurrencyMoves = append(txn.CurrencyMoves, models.CurrencyMove{AccountID: adj.AccountID, Currency: adj.Currency, Delta: adj.Delta})
	}
	if err := s.Transactions().Append(ctx, txn); err != nil {
		return nil, fmt.Errorf("failed to record exchange transaction: %w", err)
	}

	slog.Info("Settlement applied",
		slog.String("type", "db"),
		slog.String("settlement_id", settlementID),
		slog.String("source", string(plan.Source)),
		slog.String("source_id", plan.SourceID),
		slog.Int("cards", len(transfers)),
		slog.Int("adjustments", len(txn.CurrencyMoves)))

	return txn, nil
}

func validate(plan Plan) error {
	if plan.SourceID == "" || (plan.Source != models.SourceListing && plan.Source != models.SourceTrade) {
		return exchange.Wrap(exchange.ErrInvalid, "settlement needs a listing or trade source")
	}
	if len(plan.Transfers) == 0 && len(plan.Adjustments) == 0 {
		return exchange.Wrap(exchange.ErrInvalid, "settlement plan is empty")
	}

	seen := make(map[string]struct{}, len(plan.Transfers))
	for _, t := range plan.Transfers {
		if t.FromID == t.ToID {
			return exchange.Wrap(exchange.ErrInvalid, "card %s would move to its own owner", t.CardInstanceID)
		}
		if _, dup := seen[t.CardInstanceID]; dup {
			return exchange.Wrap(exchange.ErrInvalid, "card %s transferred twice", t.CardInstanceID)
		}
		seen[t.CardInstanceID] = struct{}{}
	}

	type slot struct {
		account  string
		currency models.Currency
	}
	sums := map[models.Currency]int64{}
	slots := map[slot]struct{}{}
	for _, adj := range plan.Adjustments {
		if !adj.Currency.Valid() {
			return exchange.Wrap(exchange.ErrInvalid, "unknown currency %q", adj.Currency)
		}
		if adj.Delta == math.MinInt64 {
			return exchange.Wrap(exchange.ErrInvalid, "adjustment out of range")
		}
		k := slot{adj.AccountID, adj.Currency}
		if _, dup := slots[k]; dup {
			return exchange.Wrap(exchange.ErrInvalid, "account %s adjusted twice in %s", adj.AccountID, adj.Currency)
		}
		slots[k] = struct{}{}
		sums[adj.Currency] += adj.Delta
	}
	for currency, sum := range sums {
		if sum != 0 {
			return exchange.Wrap(exchange.ErrInvalid, "%s adjustments do not balance (%+d)", currency, sum)
		}
	}
	return nil
}

// recheck compares the freshly locked rows with what the plan expects.
func recheck(transfers []Transfer, current []*models.CardInstance) error {
	byID := make(map[string]*models.CardInstance, len(current))
	for _, card := range current {
		byID[card.ID] = card
	}
	for _, t := range transfers {
		card, ok := byID[t.CardInstanceID]
		if !ok {
			return exchange.Wrap(exchange.ErrNotOwned, "card %s no longer exists", t.CardInstanceID)
		}
		if card.OwnerID != t.FromID {
			return exchange.Wrap(exchange.ErrNotOwned, "card %s is no longer owned by %s", t.CardInstanceID, t.FromID)
		}
		if t.Hold.IsZero() {
			if card.Locked {
				return exchange.Wrap(exchange.ErrConcurrentModification, "card %s was engaged elsewhere", t.CardInstanceID)
			}
			continue
		}
		if !card.HeldBy(t.Hold) {
			return exchange.Wrap(exchange.ErrConcurrentModification, "card %s is no longer held by %s %s", t.CardInstanceID, t.Hold.Kind, t.Hold.Ref)
		}
	}
	return nil
}

func ledgerKey(settlementID string, adj Adjustment) string {
	return fmt.Sprintf("%s:%s:%s", settlementID, adj.AccountID, adj.Currency)
}
