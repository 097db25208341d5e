package backend

import (
	"context"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/cardforge/cardforge/backend/handlers"
	"github.com/cardforge/cardforge/backend/middleware"
	"github.com/cardforge/cardforge/cardforge"
)

// NewServer builds the exchange HTTP API. The rate limiter's cleanup loop
// stops with ctx.
func NewServer(ctx context.Context, webApp *handlers.WebApp, cfg cardforge.HTTPConfig) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "CardForge Exchange API",
		ServerHeader:          "CardForge",
		ErrorHandler:          middleware.CustomErrorHandler,
		DisableStartupMessage: true,
		Immutable:             true,
	})

	app.Use(recover.New())
	app.Use(middleware.SecurityHeaders())
	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))
	if len(cfg.AllowOrigins) > 0 {
		app.Use(cors.New(cors.Config{
			AllowOrigins: strings.Join(cfg.AllowOrigins, ","),
			AllowMethods: "GET,POST,OPTIONS",
			AllowHeaders: "Origin,Content-Type,Accept," + middleware.AccountHeader,
		}))
	}
	app.Use(middleware.LoggingMiddleware())

	app.Get("/healthz", webApp.Health)

	api := app.Group("/api", middleware.AccountRequired())
	if cfg.RateLimit > 0 {
		limiter := middleware.NewRateLimiter(cfg.RateLimit, time.Minute)
		go limiter.Cleanup(ctx)
		api.Use(middleware.RateLimit(limiter))
	}

	listings := api.Group("/listings")
	listings.Get("/", webApp.ListListings)
	listings.Post("/", webApp.CreateListing)
	listings.Get("/:id", webApp.GetListing)
	listings.Post("/:id/buy", webApp.BuyListing)
	listings.Post("/:id/bids", webApp.PlaceBid)
	listings.Post("/:id/cancel", webApp.CancelListing)

	trades := api.Group("/trades")
	trades.Get("/", webApp.ListTrades)
	trades.Post("/", webApp.CreateTrade)
	trades.Post("/:id/respond", webApp.RespondTrade)
	trades.Post("/:id/cancel", webApp.CancelTrade)

	api.Get("/balance", webApp.Balance)
	api.Get("/history", webApp.History)

	return app
}
