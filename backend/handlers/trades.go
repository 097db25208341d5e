package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/cardforge/cardforge/backend/models"
	"github.com/cardforge/cardforge/backend/utils"
	"github.com/cardforge/cardforge/internal/domain/exchange"
	"github.com/cardforge/cardforge/internal/domain/query"
	"github.com/cardforge/cardforge/internal/domain/trades"
	dbmodels "github.com/cardforge/cardforge/internal/gateways/database/models"
)

// CreateTrade handles POST /api/trades.
func (w *WebApp) CreateTrade(c *fiber.Ctx) error {
	var req models.CreateTradeRequest
	if err := c.BodyParser(&req); err != nil {
		return bodyError(c, err)
	}
	if errs := utils.ValidateCreateTradeRequest(&req); len(errs) > 0 {
		return utils.HandleValidationErrors(c, errs)
	}

	var view query.TradeView
	err := rpc(c, "create_trade", func(ctx context.Context, account string) error {
		offer, err := w.Trades.Create(ctx, trades.CreateOfferRequest{
			SenderID:        account,
			ReceiverID:      req.ReceiverID,
			SenderCardIDs:   req.SenderCardIDs,
			SenderGold:      req.SenderGold,
			ReceiverCardIDs: req.ReceiverCardIDs,
			ReceiverGold:    req.ReceiverGold,
			Message:         req.Message,
		})
		if err != nil {
			return err
		}
		view = query.NewTradeView(offer)
		return nil
	})
	if err != nil {
		return utils.SendExchangeError(c, err)
	}
	return utils.SendCreated(c, view, "Trade offer sent")
}

// RespondTrade handles POST /api/trades/:id/respond.
func (w *WebApp) RespondTrade(c *fiber.Ctx) error {
	var req models.RespondTradeRequest
	if err := c.BodyParser(&req); err != nil {
		return bodyError(c, err)
	}
	if errs := utils.ValidateRespondTradeRequest(&req); len(errs) > 0 {
		return utils.HandleValidationErrors(c, errs)
	}

	id := c.Params("id")
	var view query.TradeView
	err := rpc(c, "respond_trade", func(ctx context.Context, account string) error {
		offer, err := w.Trades.Respond(ctx, id, account, trades.Action(req.Action))
		if err != nil {
			return err
		}
		view = query.NewTradeView(offer)
		return nil
	})
	if err != nil {
		return utils.SendExchangeError(c, err)
	}
	return utils.SendSuccess(c, view, "Trade offer "+string(view.Status))
}

// CancelTrade handles POST /api/trades/:id/cancel.
func (w *WebApp) CancelTrade(c *fiber.Ctx) error {
	id := c.Params("id")
	var view query.TradeView
	err := rpc(c, "cancel_trade", func(ctx context.Context, account string) error {
		offer, err := w.Trades.Cancel(ctx, id, account)
		if err != nil {
			return err
		}
		view = query.NewTradeView(offer)
		return nil
	})
	if err != nil {
		return utils.SendExchangeError(c, err)
	}
	return utils.SendSuccess(c, view, "Trade offer cancelled")
}

// ListTrades handles GET /api/trades.
func (w *WebApp) ListTrades(c *fiber.Ctx) error {
	page, err := w.Query.ListMyTrades(c.UserContext(), utils.AccountID(c), query.TradeQuery{
		Status: dbmodels.TradeStatus(c.Query("status")),
		Role:   exchange.TradeRole(c.Query("role")),
		Page:   utils.QueryInt(c, "page", 1),
		Limit:  utils.QueryInt(c, "limit", query.DefaultPageSize),
	})
	if err != nil {
		return utils.SendExchangeError(c, err)
	}
	return paginated(c, page)
}
