package cardforge

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cardforge/cardforge/cardforge/utils"
	"github.com/cardforge/cardforge/internal/domain/exchange"
	"github.com/cardforge/cardforge/internal/domain/market"
	"github.com/cardforge/cardforge/internal/domain/notify"
	"github.com/cardforge/cardforge/internal/domain/query"
	"github.com/cardforge/cardforge/internal/domain/settlement"
	"github.com/cardforge/cardforge/internal/domain/sweeper"
	"github.com/cardforge/cardforge/internal/domain/trades"
	"github.com/cardforge/cardforge/internal/gateways/database"
	"github.com/cardforge/cardforge/internal/gateways/memory"
	"github.com/cardforge/cardforge/internal/gateways/messaging"
)

const sweeperProcess = "expiration-sweeper"

// App holds the wired exchange: store, services, notification sinks and
// background processes.
type App struct {
	Config *Config

	DB     *database.DB
	Memory *memory.Store
	UoW    exchange.UnitOfWork

	Bus       *notify.Bus
	Publisher *messaging.Publisher

	Market  *market.Service
	Trades  *trades.Service
	Query   *query.Facade
	Sweeper *sweeper.Sweeper

	Processes *utils.BackgroundProcessManager
}

func New(ctx context.Context, cfg *Config) (*App, error) {
	app := &App{
		Config:    cfg,
		Bus:       notify.NewBus(),
		Processes: utils.NewBackgroundProcessManager(context.Background()),
	}

	app.Bus.Subscribe("log", notify.LogHandler)

	metrics, err := notify.NewMetrics()
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics: %w", err)
	}
	app.Bus.Subscribe("metrics", metrics.Handle)

	if cfg.NATS.URL != "" {
		publisher, err := messaging.Connect(cfg.NATS.URL, cfg.NATS.Name, cfg.NATS.Stream)
		if err != nil {
			return nil, err
		}
		app.Publisher = publisher
		app.Bus.Subscribe("nats", publisher.Handle)
	}

	switch cfg.Exchange.Driver {
	case DriverMemory:
		store := memory.NewStore(app.Bus)
		if cfg.Exchange.SeedFile != "" {
			fixture, err := LoadSeedFile(cfg.Exchange.SeedFile)
			if err != nil {
				app.Close()
				return nil, err
			}
			store.Seed(fixture)
			slog.Info("Seeded memory store",
				slog.String("type", "sys"),
				slog.Int("accounts", len(fixture.Accounts)),
				slog.Int("cards", len(fixture.Cards)))
		}
		app.Memory = store
		app.UoW = store
	default:
		db, err := database.New(ctx, cfg.DB)
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		app.DB = db
		app.UoW = database.NewUnitOfWork(db.BunDB(), app.Bus)
	}

	settler := settlement.New()
	app.Market = market.NewService(app.UoW, settler, cfg.Exchange.MarketSettings())
	app.Trades = trades.NewService(app.UoW, settler, cfg.Exchange.TradeSettings())
	app.Query = query.NewFacade(app.UoW)
	app.Sweeper = sweeper.New(app.Market, app.Trades, cfg.Sweeper.Settings())

	slog.Info("Exchange initialized",
		slog.String("type", "sys"),
		slog.String("driver", cfg.Exchange.Driver),
		slog.Bool("nats", app.Publisher != nil))
	return app, nil
}

// Ping reports whether the backing store is reachable.
func (a *App) Ping(ctx context.Context) error {
	if a.DB == nil {
		return nil
	}
	return a.DB.Ping(ctx)
}

// StartSweeper runs the expiration sweeper until the app is closed.
func (a *App) StartSweeper() error {
	return a.Processes.StartProcess(sweeperProcess, "expires listings and trade offers", a.Sweeper.Run)
}

func (a *App) Close() {
	timeout := time.Duration(a.Config.HTTP.ShutdownSeconds) * time.Second
	if err := a.Processes.Shutdown(timeout); err != nil {
		slog.Warn("Background processes did not stop in time",
			slog.String("type", "sys"),
			slog.Any("error", err))
	}
	if a.Publisher != nil {
		a.Publisher.Close()
	}
	if a.DB != nil {
		a.DB.Close()
	}
}
