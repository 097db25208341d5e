package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/cardforge/cardforge/backend/models"
	"github.com/cardforge/cardforge/backend/utils"
	"github.com/cardforge/cardforge/internal/domain/market"
	"github.com/cardforge/cardforge/internal/domain/query"
	dbmodels "github.com/cardforge/cardforge/internal/gateways/database/models"
)

// CreateListing handles POST /api/listings.
func (w *WebApp) CreateListing(c *fiber.Ctx) error {
	var req models.CreateListingRequest
	if err := c.BodyParser(&req); err != nil {
		return bodyError(c, err)
	}
	if errs := utils.ValidateCreateListingRequest(&req); len(errs) > 0 {
		return utils.HandleValidationErrors(c, errs)
	}
	currency := dbmodels.Currency(req.Currency)
	if currency == "" {
		currency = dbmodels.CurrencyGold
	}

	var view query.ListingView
	err := rpc(c, "create_listing", func(ctx context.Context, account string) error {
		listing, err := w.Market.CreateListing(ctx, market.CreateListingRequest{
			SellerID:        account,
			CardInstanceID:  req.CardInstanceID,
			Type:            dbmodels.ListingType(req.Type),
			Price:           req.Price,
			Currency:        currency,
			Duration:        time.Duration(req.DurationHours) * time.Hour,
			MinBidIncrement: req.MinBidIncrement,
		})
		if err != nil {
			return err
		}
		view = w.listingView(ctx, listing)
		return nil
	})
	if err != nil {
		return utils.SendExchangeError(c, err)
	}
	return utils.SendCreated(c, view, "Listing created")
}

// BuyListing handles POST /api/listings/:id/buy.
func (w *WebApp) BuyListing(c *fiber.Ctx) error {
	return w.listingAction(c, "buy_listing", "Listing purchased", func(ctx context.Context, id, account string) (*dbmodels.Listing, error) {
		return w.Market.Buy(ctx, id, account)
	})
}

// PlaceBid handles POST /api/listings/:id/bids.
func (w *WebApp) PlaceBid(c *fiber.Ctx) error {
	var req models.PlaceBidRequest
	if err := c.BodyParser(&req); err != nil {
		return bodyError(c, err)
	}
	if errs := utils.ValidatePlaceBidRequest(&req); len(errs) > 0 {
		return utils.HandleValidationErrors(c, errs)
	}
	return w.listingAction(c, "place_bid", "Bid placed", func(ctx context.Context, id, account string) (*dbmodels.Listing, error) {
		return w.Market.PlaceBid(ctx, id, account, req.Amount)
	})
}

// CancelListing handles POST /api/listings/:id/cancel.
func (w *WebApp) CancelListing(c *fiber.Ctx) error {
	return w.listingAction(c, "cancel_listing", "Listing cancelled", func(ctx context.Context, id, account string) (*dbmodels.Listing, error) {
		return w.Market.Cancel(ctx, id, account)
	})
}

func (w *WebApp) listingAction(c *fiber.Ctx, name, message string, fn func(ctx context.Context, id, account string) (*dbmodels.Listing, error)) error {
	id := c.Params("id")
	var view query.ListingView
	err := rpc(c, name, func(ctx context.Context, account string) error {
		listing, err := fn(ctx, id, account)
		if err != nil {
			return err
		}
		view = w.listingView(ctx, listing)
		return nil
	})
	if err != nil {
		return utils.SendExchangeError(c, err)
	}
	return utils.SendSuccess(c, view, message)
}

// listingView re-reads the listing so the reply carries card details.
func (w *WebApp) listingView(ctx context.Context, listing *dbmodels.Listing) query.ListingView {
	view, err := w.Query.GetListing(ctx, listing.ID)
	if err != nil {
		return query.NewListingView(listing)
	}
	return view
}

// ListListings handles GET /api/listings.
func (w *WebApp) ListListings(c *fiber.Ctx) error {
	page, err := w.Query.ListListings(c.UserContext(), query.ListingQuery{
		Type:   dbmodels.ListingType(c.Query("type")),
		Rarity: dbmodels.Rarity(c.Query("rarity")),
		Search: c.Query("q"),
		Page:   utils.QueryInt(c, "page", 1),
		Limit:  utils.QueryInt(c, "limit", query.DefaultPageSize),
	})
	if err != nil {
		return utils.SendExchangeError(c, err)
	}
	return paginated(c, page)
}

// GetListing handles GET /api/listings/:id.
func (w *WebApp) GetListing(c *fiber.Ctx) error {
	view, err := w.Query.GetListing(c.UserContext(), c.Params("id"))
	if err != nil {
		return utils.SendExchangeError(c, err)
	}
	return utils.SendSuccess(c, view, "")
}
