package router

import (
	"context"
	"fmt"
	"net/http"

	"energy-exchange/internal/application/backend"
	healthsvc "energy-exchange/internal/application/health"
	"energy-exchange/internal/application/ledger"
	listsvc "energy-exchange/internal/application/listings"
	"energy-exchange/internal/application/purchases"
	"energy-exchange/internal/config"
	"energy-exchange/internal/infrastructure/database"
	healthhandler "energy-exchange/internal/interfaces/handlers/health"
	listhandler "energy-exchange/internal/interfaces/handlers/listings"
	purchasehandler "energy-exchange/internal/interfaces/handlers/purchases"
	"energy-exchange/internal/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Runtime is what CreateApp wired, for the caller to ping, run, and close.
type Runtime struct {
	DB     *gorm.DB
	Rdb    *redis.Client
	Store  listsvc.Store
	Desk   *purchases.Desk
	Ledger *ledger.HTTPClient
}

type gormDBPinger struct {
	db *gorm.DB
}

func (g *gormDBPinger) Ping(ctx context.Context) error {
	sqlDB, err := g.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func CreateApp(cfg *config.Config) (*fiber.App, *Runtime, error) {
	rt := &Runtime{}

	if cfg.DatabaseURL != "" {
		db, err := database.Open(cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("database: %w", err)
		}
		if err := database.AutoMigrate(db); err != nil {
			return nil, nil, fmt.Errorf("database migrate: %w", err)
		}
		rt.DB = db
		rt.Store = &listsvc.GormStore{DB: db}
	} else {
		rt.Store = listsvc.NewMemoryStore()
	}

	var guard purchases.Guard = purchases.NewLocalGuard()
	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, nil, fmt.Errorf("redis url: %w", err)
		}
		rt.Rdb = redis.NewClient(opt)
		guard = &purchases.RedisGuard{Client: rt.Rdb, TTL: cfg.GuardTTL}
	}

	if cfg.LedgerURL != "" {
		rt.Ledger = &ledger.HTTPClient{BaseURL: cfg.LedgerURL, APIKey: cfg.LedgerAPIKey, Timeout: cfg.LedgerTimeout}
	}
	desk, err := purchases.NewDesk(rt.Store, guard, backendFactory(rt), cfg.Mode)
	if err != nil {
		return nil, nil, err
	}
	rt.Desk = desk

	app := fiber.New(fiber.Config{
		DisableStartupMessage:   true,
		ErrorHandler:            middleware.ErrorHandler,
		EnableTrustedProxyCheck: true,
	})

	app.Use(middleware.CORS(middleware.CORSConfig{
		AllowedSuffix: cfg.FrontendURLEndsWith,
		DevPassword:   cfg.DevPassword,
	}))
	app.Use(middleware.HealthMarker(rt.Rdb))
	app.Use(middleware.Tracing())
	app.Use(middleware.RouteLogger())

	hh := &healthhandler.Handlers{
		Rdb:            rt.Rdb,
		Desk:           desk,
		HealthAdminKey: cfg.HealthAdminKey,
	}
	if rt.DB != nil {
		hh.DB = &gormDBPinger{db: rt.DB}
	}
	if rt.Ledger != nil {
		hh.Ledger = healthsvc.PingerFunc(rt.Ledger.Ping)
	}
	app.Get("/", hh.JSON)
	app.Get("/reset", hh.Reset)
	app.Get("/health/json", hh.JSON)
	app.Get("/health/errors", hh.Errors)

	lh := &listhandler.Handlers{Store: rt.Store}
	lg := app.Group("/api/v1/listings")
	lg.Post("/create-listing", lh.CreateListing)
	lg.Get("/query", lh.QueryListings)
	lg.Get("/get-listing/:listing_id", lh.GetListingByID)
	lg.Get("/get-listing-events/:listing_id", lh.GetListingEvents)

	ph := &purchasehandler.Handlers{Desk: desk, Store: rt.Store}
	pg := app.Group("/api/v1/purchases")
	pg.Post("/begin", ph.Begin)
	pg.Post("/review", ph.Review)
	pg.Post("/confirm", ph.Confirm)
	pg.Post("/cancel", ph.Cancel)
	pg.Post("/retry", ph.Retry)
	pg.Post("/buy", ph.Buy)
	pg.Get("/get-attempt/:attempt_id", ph.GetAttempt)

	app.Get("/api/v1/mode", ph.GetMode)
	app.Put("/api/v1/mode", ph.SetMode)

	return app, rt, nil
}

// backendFactory builds settlement backends over the runtime's store.
// Live needs a configured ledger gateway.
func backendFactory(rt *Runtime) purchases.BackendFactory {
	return func(mode backend.Mode) (backend.Backend, error) {
		switch mode {
		case backend.ModeSimulated:
			return backend.NewSimulated(rt.Store), nil
		case backend.ModeLive:
			if rt.Ledger == nil {
				return nil, fmt.Errorf("live mode requires LEDGER_URL")
			}
			return &backend.Live{Client: rt.Ledger, Listings: rt.Store}, nil
		}
		return nil, fmt.Errorf("unknown transaction mode %q", mode)
	}
}

func Handler(app *fiber.App) http.Handler {
	return adaptor.FiberApp(app)
}
