package inventory

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/cardforge/cardforge/internal/domain/exchange"
	"github.com/cardforge/cardforge/internal/gateways/database/models"
)

// Client checks and changes card ownership and locks inside one unit of work.
type Client struct {
	cards exchange.CardRepository
}

func New(cards exchange.CardRepository) *Client {
	return &Client{cards: cards}
}

// GetOwnership loads the instances in id order. A missing id is NotFound.
func (c *Client) GetOwnership(ctx context.Context, ids ...string) ([]*models.CardInstance, error) {
	sorted, err := normalize(ids)
	if err != nil {
		return nil, err
	}
	cards, err := c.cards.GetMany(ctx, sorted)
	if err != nil {
		return nil, fmt.Errorf("failed to get cards: %w", err)
	}
	if len(cards) != len(sorted) {
		return nil, exchange.Wrap(exchange.ErrNotFound, "card %s not found", missing(sorted, cards))
	}
	return cards, nil
}

// Lock engages every card for hold. All cards must belong to ownerID and be
// free, or already held by the same hold. Nothing is written unless all pass.
func (c *Client) Lock(ctx context.Context, ownerID string, hold models.Hold, ids ...string) error {
	if hold.IsZero() {
		return exchange.Wrap(exchange.ErrInvalid, "lock requires a holder")
	}
	sorted, err := normalize(ids)
	if err != nil {
		return err
	}
	cards, err := c.cards.GetMany(ctx, sorted)
	if err != nil {
		return fmt.Errorf("failed to get cards: %w", err)
	}
	if len(cards) != len(sorted) {
		return exchange.Wrap(exchange.ErrNotOwned, "card %s is not owned by %s", missing(sorted, cards), ownerID)
	}

	pending := make([]*models.CardInstance, 0, len(cards))
	for _, card := range cards {
		if card.OwnerID != ownerID {
			return exchange.Wrap(exchange.ErrNotOwned, "card %s is not owned by %s", card.ID, ownerID)
		}
		if card.HeldBy(hold) {
			continue
		}
		if card.Locked {
			return exchange.Wrap(exchange.ErrAlreadyLocked, "card %s is already in a %s", card.ID, card.LockKind)
		}
		pending = append(pending, card)
	}

	now := time.Now()
	for _, card := range pending {
		card.Locked = true
		card.LockKind = hold.Kind
		card.LockRef = hold.Ref
		card.UpdatedAt = now
		if err := c.cards.Update(ctx, card); err != nil {
			return fmt.Errorf("failed to lock card %s: %w", card.ID, err)
		}
	}
	return nil
}

// Unlock releases the cards held by hold. Cards that are missing, free or
// held by another engagement are left alone, so repeating it is harmless.
func (c *Client) Unlock(ctx context.Context, hold models.Hold, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	sorted, err := normalize(ids)
	if err != nil {
		return err
	}
	cards, err := c.cards.GetMany(ctx, sorted)
	if err != nil {
		return fmt.Errorf("failed to get cards: %w", err)
	}

	now := time.Now()
	for _, card := range cards {
		if !card.HeldBy(hold) {
			continue
		}
		clearLock(card)
		card.UpdatedAt = now
		if err := c.cards.Update(ctx, card); err != nil {
			return fmt.Errorf("failed to unlock card %s: %w", card.ID, err)
		}
	}
	return nil
}

// TransferOwner moves the card from fromID to toID and clears its lock. With
// a zero hold the card must be free; otherwise it must be held by hold.
func (c *Client) TransferOwner(ctx context.Context, cardID, fromID, toID string, hold models.Hold) error {
	cards, err := c.cards.GetMany(ctx, []string{cardID})
	if err != nil {
		return fmt.Errorf("failed to get card %s: %w", cardID, err)
	}
	if len(cards) == 0 {
		return exchange.Wrap(exchange.ErrNotOwned, "card %s no longer exists", cardID)
	}

	card := cards[0]
	if card.OwnerID != fromID {
		return exchange.Wrap(exchange.ErrNotOwned, "card %s is not owned by %s", cardID, fromID)
	}
	if hold.IsZero() && card.Locked {
		return exchange.Wrap(exchange.ErrConcurrentModification, "card %s was engaged elsewhere", cardID)
	}
	if !hold.IsZero() && !card.HeldBy(hold) {
		return exchange.Wrap(exchange.ErrConcurrentModification, "card %s is no longer held by %s %s", cardID, hold.Kind, hold.Ref)
	}

	now := time.Now()
	card.OwnerID = toID
	clearLock(card)
	card.AcquiredAt = now
	card.UpdatedAt = now
	if err := c.cards.Update(ctx, card); err != nil {
		return fmt.Errorf("failed to transfer card %s: %w", cardID, err)
	}
	return nil
}

func clearLock(card *models.CardInstance) {
	card.Locked = false
	card.LockKind = ""
	card.LockRef = ""
}

// normalize sorts ids so that row locks are always taken in the same order.
func normalize(ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, exchange.Wrap(exchange.ErrInvalid, "no cards given")
	}
	sorted := slices.Clone(ids)
	slices.Sort(sorted)
	for i := 1; i < len(sorted); i++ {
		if sorted[i] == sorted[i-1] {
			return nil, exchange.Wrap(exchange.ErrInvalid, "card %s given twice", sorted[i])
		}
	}
	return sorted, nil
}

func missing(ids []string, found []*models.CardInstance) string {
	seen := make(map[string]struct{}, len(found))
	for _, card := range found {
		seen[card.ID] = struct{}{}
	}
	for _, id := range ids {
		if _, ok := seen[id]; !ok {
			return id
		}
	}
	return ""
}
