package market

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cardforge/cardforge/internal/domain/exchange"
	"github.com/cardforge/cardforge/internal/domain/inventory"
	"github.com/cardforge/cardforge/internal/gateways/database/models"
)

type Outcome string

const (
	// OutcomeSkipped means the listing was already final or not yet due.
	OutcomeSkipped Outcome = "skipped"
	OutcomeSold    Outcome = "sold"
	OutcomeExpired Outcome = "expired"
	// OutcomeUnpaid means the high bidder could not pay and the card went back to the seller.
	OutcomeUnpaid Outcome = "unpaid"
)

// Expire closes a listing whose time is up. Auctions with a high bidder are
// settled; everything else expires with the card released. Calling it again
// on a closed listing is a no-op.
func (s *Service) Expire(ctx context.Context, listingID string) (Outcome, error) {
	var outcome Outcome

	err := s.uow.Do(ctx, func(ctx context.Context, st exchange.Stores) error {
		listing, err := st.Listings().GetForUpdate(ctx, listingID)
		if err != nil {
			return err
		}
		now := s.now()
		if listing.Status != models.ListingActive || !listing.ExpiredAt(now) {
			outcome = OutcomeSkipped
			return nil
		}

		if listing.Type == models.ListingAuction && listing.HasBid() {
			if _, err := s.settler.Settle(ctx, st, salePlan(listing, listing.HighBidderID, listing.CurrentBid)); err != nil {
				return err
			}
			listing.Status = models.ListingSold
			listing.BuyerID = listing.HighBidderID
			listing.UpdatedAt = now
			if err := st.Listings().Update(ctx, listing); err != nil {
				return fmt.Errorf("failed to close auction: %w", err)
			}
			st.Publish(soldEvent(listing, listing.CurrentBid, now))
			outcome = OutcomeSold
			return nil
		}

		outcome = OutcomeExpired
		return s.expireLocked(ctx, st, listing, "")
	})

	// The winner cannot pay: the sale is dropped and the seller keeps the card.
	if errors.Is(err, exchange.ErrInsufficientFunds) || errors.Is(err, exchange.ErrNotFound) {
		slog.Warn("Auction winner could not pay",
			slog.String("type", "sweep"),
			slog.String("listing_id", listingID),
			slog.Any("error", err))

		outcome = OutcomeUnpaid
		err = s.uow.Do(ctx, func(ctx context.Context, st exchange.Stores) error {
			listing, err := st.Listings().GetForUpdate(ctx, listingID)
			if err != nil {
				return err
			}
			if listing.Status != models.ListingActive {
				outcome = OutcomeSkipped
				return nil
			}
			return s.expireLocked(ctx, st, listing, "winning bidder could not pay")
		})
	}
	if err != nil {
		return "", err
	}
	return outcome, nil
}

func (s *Service) expireLocked(ctx context.Context, st exchange.Stores, listing *models.Listing, reason string) error {
	if err := inventory.New(st.Cards()).Unlock(ctx, models.ListingHold(listing.ID), listing.CardInstanceID); err != nil {
		return err
	}

	now := s.now()
	listing.Status = models.ListingExpired
	listing.UpdatedAt = now
	if err := st.Listings().Update(ctx, listing); err != nil {
		return fmt.Errorf("failed to expire listing: %w", err)
	}

	st.Publish(exchange.Event{
		Type:           exchange.EventListingExpired,
		AccountID:      listing.SellerID,
		CounterpartyID: listing.HighBidderID,
		ListingID:      listing.ID,
		Outcome:        reason,
		OccurredAt:     now,
	})
	return nil
}

// ExpiredIDs lists active listings past their deadline, oldest first.
func (s *Service) ExpiredIDs(ctx context.Context, limit int) ([]string, error) {
	var ids []string
	err := s.uow.Do(ctx, func(ctx context.Context, st exchange.Stores) error {
		var err error
		ids, err = st.Listings().ExpiredIDs(ctx, s.now(), limit)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan expired listings: %w", err)
	}
	return ids, nil
}
