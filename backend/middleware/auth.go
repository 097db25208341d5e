package middleware

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"
	fiberutils "github.com/gofiber/fiber/v2/utils"

	"github.com/cardforge/cardforge/backend/utils"
)

// AccountHeader carries the caller's account ID. Authentication happens
// upstream; the exchange trusts the gateway that sets it.
const AccountHeader = "X-Account-ID"

// AccountRequired rejects requests without a well-formed account header and
// stores the account under utils.AccountLocal.
func AccountRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		// Header values alias the request buffer, which fasthttp reuses.
		id := fiberutils.CopyString(c.Get(AccountHeader))
		if id == "" {
			return utils.SendUnauthorized(c, "Account required")
		}
		if !utils.ValidIDRegex.MatchString(id) {
			slog.Debug("Rejected malformed account header",
				slog.String("ip", utils.GetIPAddress(c)),
				slog.String("path", c.Path()))
			return utils.SendUnauthorized(c, "Malformed account ID")
		}

		c.Locals(utils.AccountLocal, id)
		return c.Next()
	}
}
