package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/cardforge/cardforge/backend/utils"
	"github.com/cardforge/cardforge/internal/domain/query"
)

// Balance handles GET /api/balance.
func (w *WebApp) Balance(c *fiber.Ctx) error {
	view, err := w.Query.Balance(c.UserContext(), utils.AccountID(c))
	if err != nil {
		return utils.SendExchangeError(c, err)
	}
	return utils.SendSuccess(c, view, "")
}

// History handles GET /api/history.
func (w *WebApp) History(c *fiber.Ctx) error {
	page, err := w.Query.History(c.UserContext(), utils.AccountID(c),
		utils.QueryInt(c, "page", 1), utils.QueryInt(c, "limit", query.DefaultPageSize))
	if err != nil {
		return utils.SendExchangeError(c, err)
	}
	return paginated(c, page)
}
