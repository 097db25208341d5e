package market

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cardforge/cardforge/internal/domain/exchange"
	"github.com/cardforge/cardforge/internal/domain/ledger"
	"github.com/cardforge/cardforge/internal/gateways/database/models"
)

// PlaceBid records amount as the new high bid. The listing is read once,
// validated, and written back only if its version has not moved; a bid that
// loses that race fails with ErrBidSuperseded and the caller must refetch.
// No funds move until the sweeper settles the auction.
func (s *Service) PlaceBid(ctx context.Context, listingID, bidderID string, amount uint64) (*models.Listing, error) {
	var observed *models.Listing

	err := s.uow.View(ctx, func(ctx context.Context, st exchange.Stores) error {
		listing, err := st.Listings().Get(ctx, listingID)
		if err != nil {
			return err
		}
		if err := s.checkBid(listing, bidderID, amount); err != nil {
			return err
		}

		balance, err := ledger.New(st.Accounts()).GetBalance(ctx, bidderID, listing.Currency)
		if err != nil {
			return err
		}
		if balance < amount {
			return &exchange.InsufficientFundsError{
				AccountID: bidderID,
				Currency:  listing.Currency,
				Required:  amount,
				Available: balance,
			}
		}

		observed = listing
		return nil
	})
	if err != nil {
		return nil, err
	}

	previous := observed.HighBidderID
	expected := observed.Version

	bid := *observed
	bid.CurrentBid = amount
	bid.HighBidderID = bidderID
	bid.BidCount++
	bid.UpdatedAt = s.now()

	err = s.uow.Do(ctx, func(ctx context.Context, st exchange.Stores) error {
		swapped, err := st.Listings().CompareAndSwapBid(ctx, &bid, expected)
		if err != nil {
			return fmt.Errorf("failed to store bid: %w", err)
		}
		if !swapped {
			return exchange.Wrap(exchange.ErrBidSuperseded, "listing %s changed while the bid was placed", listingID)
		}
		if err := st.Listings().AppendBid(ctx, &models.ListingBid{
			ListingID: listingID,
			BidderID:  bidderID,
			Amount:    amount,
			CreatedAt: bid.UpdatedAt,
		}); err != nil {
			return fmt.Errorf("failed to record bid: %w", err)
		}

		if previous != "" && previous != bidderID {
			st.Publish(exchange.Event{
				Type:           exchange.EventListingOutbid,
				AccountID:      previous,
				CounterpartyID: bidderID,
				ListingID:      listingID,
				Amount:         amount,
				Currency:       bid.Currency,
				OccurredAt:     bid.UpdatedAt,
			})
		}
		return nil
	})
	if errors.Is(err, exchange.ErrConcurrentModification) {
		return nil, exchange.Wrap(exchange.ErrBidSuperseded, "listing %s changed while the bid was placed", listingID)
	}
	if err != nil {
		return nil, err
	}

	slog.Info("Bid placed",
		slog.String("type", "rpc"),
		slog.String("listing_id", listingID),
		slog.String("bidder_id", bidderID),
		slog.Uint64("amount", amount),
		slog.Int("bid_count", bid.BidCount))

	return &bid, nil
}

func (s *Service) checkBid(listing *models.Listing, bidderID string, amount uint64) error {
	if listing.Type != models.ListingAuction {
		return exchange.Wrap(exchange.ErrWrongType, "listing %s is fixed price, buy it instead", listing.ID)
	}
	if listing.Status != models.ListingActive || listing.ExpiredAt(s.now()) {
		return exchange.Wrap(exchange.ErrAuctionClosed, "auction %s is closed", listing.ID)
	}
	if listing.SellerID == bidderID {
		return exchange.Wrap(exchange.ErrSelfTrade, "cannot bid on your own auction")
	}
	if amount > MaxAmount {
		return exchange.Wrap(exchange.ErrInvalid, "bid exceeds %d", uint64(MaxAmount))
	}
	if minimum := listing.MinimumBid(); amount < minimum {
		return &exchange.BidTooLowError{Minimum: minimum, Amount: amount}
	}
	return nil
}
