package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/cardforge/cardforge/backend/models"
	"github.com/cardforge/cardforge/backend/utils"
	"github.com/cardforge/cardforge/cardforge/logger"
	"github.com/cardforge/cardforge/internal/domain/market"
	"github.com/cardforge/cardforge/internal/domain/query"
	"github.com/cardforge/cardforge/internal/domain/trades"
)

// WebApp holds the services the HTTP handlers call into.
type WebApp struct {
	Market  *market.Service
	Trades  *trades.Service
	Query   *query.Facade
	Ping    func(ctx context.Context) error
	Version string
}

// Health handles GET /healthz.
func (w *WebApp) Health(c *fiber.Ctx) error {
	check := models.NewHealthCheck(w.Version)
	status := fiber.StatusOK

	if w.Ping != nil {
		if err := w.Ping(c.UserContext()); err != nil {
			check.AddComponent("store", "unhealthy", err.Error())
			status = fiber.StatusServiceUnavailable
		} else {
			check.AddComponent("store", "healthy", "")
		}
	}
	return utils.SendJSON(c, status, check)
}

// rpc times and logs one exchange operation on behalf of the caller.
func rpc(c *fiber.Ctx, name string, fn func(ctx context.Context, account string) error) error {
	account := utils.AccountID(c)
	start := time.Now()
	err := fn(c.UserContext(), account)
	logger.LogRPC(name, account, time.Since(start), err)
	return err
}

func bodyError(c *fiber.Ctx, err error) error {
	return utils.SendBadRequest(c, "Malformed request body", map[string]string{"body": err.Error()})
}

func paginated[T any](c *fiber.Ctx, page query.Page[T]) error {
	info := models.NewPaginationInfo(page.Page, page.Limit, page.Total, page.Pages)
	return utils.SendPaginated(c, page.Items, info, "")
}
