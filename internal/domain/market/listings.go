package market

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/cardforge/cardforge/internal/domain/exchange"
	"github.com/cardforge/cardforge/internal/domain/inventory"
	"github.com/cardforge/cardforge/internal/domain/ledger"
	"github.com/cardforge/cardforge/internal/domain/settlement"
	"github.com/cardforge/cardforge/internal/gateways/database/models"
)

// MaxAmount keeps prices and bids representable as signed ledger deltas.
const MaxAmount = math.MaxInt64

type CreateListingRequest struct {
	SellerID       string
	CardInstanceID string
	Type           models.ListingType
	Price          uint64
	Currency       models.Currency
	// Duration defaults to 24h when zero.
	Duration time.Duration
	// MinBidIncrement only applies to auctions and defaults to the configured value.
	MinBidIncrement uint64
}

func (s *Service) validateCreate(req *CreateListingRequest) error {
	if req.SellerID == "" || req.CardInstanceID == "" {
		return exchange.Wrap(exchange.ErrInvalid, "seller and card are required")
	}
	if !req.Type.Valid() {
		return exchange.Wrap(exchange.ErrInvalid, "unknown listing type %q", req.Type)
	}
	if !req.Currency.Valid() {
		return exchange.Wrap(exchange.ErrInvalid, "unknown currency %q", req.Currency)
	}
	if req.Price < 1 || req.Price > MaxAmount {
		return exchange.Wrap(exchange.ErrInvalid, "price must be between 1 and %d", uint64(MaxAmount))
	}

	if req.Duration == 0 {
		req.Duration = s.settings.DefaultDuration
	}
	if req.Duration < s.settings.MinDuration || req.Duration > s.settings.MaxDuration {
		return exchange.Wrap(exchange.ErrInvalid, "duration must be between %s and %s", s.settings.MinDuration, s.settings.MaxDuration)
	}

	switch req.Type {
	case models.ListingAuction:
		if req.MinBidIncrement == 0 {
			req.MinBidIncrement = s.settings.DefaultMinBidIncrement
		}
	case models.ListingFixed:
		req.MinBidIncrement = 0
	}
	return nil
}

// CreateListing locks the card and opens an active listing for it.
func (s *Service) CreateListing(ctx context.Context, req CreateListingRequest) (*models.Listing, error) {
	if err := s.validateCreate(&req); err != nil {
		return nil, err
	}

	now := s.now()
	listing := &models.Listing{
		ID:              s.newID(),
		SellerID:        req.SellerID,
		CardInstanceID:  req.CardInstanceID,
		Type:            req.Type,
		Price:           req.Price,
		Currency:        req.Currency,
		MinBidIncrement: req.MinBidIncrement,
		Status:          models.ListingActive,
		CreatedAt:       now,
		ExpiresAt:       now.Add(req.Duration),
		UpdatedAt:       now,
	}

	err := s.uow.Do(ctx, func(ctx context.Context, st exchange.Stores) error {
		if _, err := st.Accounts().Get(ctx, req.SellerID); err != nil {
			return err
		}
		if err := inventory.New(st.Cards()).Lock(ctx, req.SellerID, models.ListingHold(listing.ID), req.CardInstanceID); err != nil {
			return err
		}
		if err := st.Listings().Create(ctx, listing); err != nil {
			return fmt.Errorf("failed to create listing: %w", err)
		}
		st.Publish(exchange.Event{
			Type:       exchange.EventListingCreated,
			AccountID:  listing.SellerID,
			ListingID:  listing.ID,
			Amount:     listing.Price,
			Currency:   listing.Currency,
			OccurredAt: now,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Info("Listing created",
		slog.String("type", "rpc"),
		slog.String("listing_id", listing.ID),
		slog.String("seller_id", listing.SellerID),
		slog.String("listing_type", string(listing.Type)),
		slog.Uint64("price", listing.Price))

	return listing, nil
}

// Buy settles a fixed-price listing with buyerID.
func (s *Service) Buy(ctx context.Context, listingID, buyerID string) (*models.Listing, error) {
	var sold *models.Listing

	err := s.uow.Do(ctx, func(ctx context.Context, st exchange.Stores) error {
		listing, err := st.Listings().GetForUpdate(ctx, listingID)
		if err != nil {
			return err
		}

		now := s.now()
		switch {
		case listing.Type != models.ListingFixed:
			return exchange.Wrap(exchange.ErrWrongType, "listing %s is an auction, place a bid instead", listingID)
		case listing.Status != models.ListingActive:
			return exchange.Wrap(exchange.ErrAlreadyFinalized, "listing %s is %s", listingID, listing.Status)
		case listing.ExpiredAt(now):
			return exchange.Wrap(exchange.ErrExpired, "listing %s has expired", listingID)
		case listing.SellerID == buyerID:
			return exchange.Wrap(exchange.ErrSelfTrade, "cannot buy your own listing")
		}

		balance, err := ledger.New(st.Accounts()).GetBalance(ctx, buyerID, listing.Currency)
		if err != nil {
			return err
		}
		if balance < listing.Price {
			return &exchange.InsufficientFundsError{
				AccountID: buyerID,
				Currency:  listing.Currency,
				Required:  listing.Price,
				Available: balance,
			}
		}

		if _, err := s.settler.Settle(ctx, st, salePlan(listing, buyerID, listing.Price)); err != nil {
			return err
		}

		listing.Status = models.ListingSold
		listing.BuyerID = buyerID
		listing.UpdatedAt = now
		if err := st.Listings().Update(ctx, listing); err != nil {
			return fmt.Errorf("failed to mark listing sold: %w", err)
		}

		st.Publish(soldEvent(listing, listing.Price, now))
		sold = listing
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Info("Listing bought",
		slog.String("type", "rpc"),
		slog.String("listing_id", sold.ID),
		slog.String("buyer_id", buyerID),
		slog.Uint64("price", sold.Price))

	return sold, nil
}

// Cancel withdraws an active listing and releases its card.
func (s *Service) Cancel(ctx context.Context, listingID, requesterID string) (*models.Listing, error) {
	var cancelled *models.Listing

	err := s.uow.Do(ctx, func(ctx context.Context, st exchange.Stores) error {
		listing, err := st.Listings().GetForUpdate(ctx, listingID)
		if err != nil {
			return err
		}
		if listing.SellerID != requesterID {
			return exchange.Wrap(exchange.ErrForbidden, "only the seller can cancel listing %s", listingID)
		}
		if listing.Status != models.ListingActive {
			return exchange.Wrap(exchange.ErrAlreadyFinalized, "listing %s is %s", listingID, listing.Status)
		}
		if listing.Type == models.ListingAuction && listing.HasBid() {
			return exchange.Wrap(exchange.ErrInvalid, "auction %s already has bids", listingID)
		}

		if err := inventory.New(st.Cards()).Unlock(ctx, models.ListingHold(listing.ID), listing.CardInstanceID); err != nil {
			return err
		}

		now := s.now()
		listing.Status = models.ListingCancelled
		listing.UpdatedAt = now
		if err := st.Listings().Update(ctx, listing); err != nil {
			return fmt.Errorf("failed to cancel listing: %w", err)
		}

		st.Publish(exchange.Event{
			Type:       exchange.EventListingCancelled,
			AccountID:  listing.SellerID,
			ListingID:  listing.ID,
			OccurredAt: now,
		})
		cancelled = listing
		return nil
	})
	if err != nil {
		return nil, err
	}
	return cancelled, nil
}

func salePlan(listing *models.Listing, buyerID string, price uint64) settlement.Plan {
	return settlement.Plan{
		Source:   models.SourceListing,
		SourceID: listing.ID,
		PartyA:   listing.SellerID,
		PartyB:   buyerID,
		Transfers: []settlement.Transfer{{
			CardInstanceID: listing.CardInstanceID,
			FromID:         listing.SellerID,
			ToID:           buyerID,
			Hold:           models.ListingHold(listing.ID),
		}},
		Adjustments: []settlement.Adjustment{
			{AccountID: buyerID, Currency: listing.Currency, Delta: -int64(price)},
			{AccountID: listing.SellerID, Currency: listing.Currency, Delta: int64(price)},
		},
	}
}

func soldEvent(listing *models.Listing, price uint64, at time.Time) exchange.Event {
	return exchange.Event{
		Type:           exchange.EventListingSold,
		AccountID:      listing.SellerID,
		CounterpartyID: listing.BuyerID,
		ListingID:      listing.ID,
		Amount:         price,
		Currency:       listing.Currency,
		OccurredAt:     at,
	}
}
