// Package storefront assembles the commerce state layer around one key-value
// store and one remote backend.
package storefront

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/petshop-storefront/internal/bookings"
	"github.com/angelmondragon/petshop-storefront/internal/cart"
	"github.com/angelmondragon/petshop-storefront/internal/catalog"
	"github.com/angelmondragon/petshop-storefront/internal/checkout"
	"github.com/angelmondragon/petshop-storefront/internal/credits"
	"github.com/angelmondragon/petshop-storefront/internal/notifications"
	"github.com/angelmondragon/petshop-storefront/internal/remote"
	"github.com/angelmondragon/petshop-storefront/internal/session"
	"github.com/angelmondragon/petshop-storefront/internal/users"
	"github.com/angelmondragon/petshop-storefront/internal/wishlist"
	"github.com/angelmondragon/petshop-storefront/pkg/broadcast"
	"github.com/angelmondragon/petshop-storefront/pkg/config"
	pkgerrors "github.com/angelmondragon/petshop-storefront/pkg/errors"
	"github.com/angelmondragon/petshop-storefront/pkg/kvs"
	"github.com/angelmondragon/petshop-storefront/pkg/logger"
	"github.com/angelmondragon/petshop-storefront/pkg/metrics"
)

const feedSize = 50

// Params groups the externally constructed dependencies.
type Params struct {
	Config   *config.Config
	Store    kvs.Store
	Backend  remote.Backend
	Registry prometheus.Registerer
	Logger   *logger.Logger
}

// App holds every storefront service. Fields are read-only after New.
type App struct {
	Bus        *broadcast.Bus
	Metrics    *metrics.Storefront
	Catalog    *catalog.Catalog
	Principals *users.Repository
	Ledger     *credits.Ledger
	Cart       *cart.Repository
	Wishlist   *wishlist.Repository
	Bookings   *bookings.Service
	Checkout   *checkout.Service
	Session    *session.Service
	Notifier   *notifications.Notifier
	Feed       *notifications.Feed

	backend remote.Backend
	logg    *logger.Logger
	stops   []func()
}

func New(p Params) (*App, error) {
	if p.Config == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "config is required")
	}
	if p.Store == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "kvs store is required")
	}
	if p.Backend == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "remote backend is required")
	}
	logg := p.Logger
	if logg == nil {
		logg = logger.Nop()
	}

	m := metrics.NewStorefront(p.Registry)
	bus := broadcast.NewBus(logg, m)
	backend := remote.NewInstrumented(p.Backend, m, logg)

	cat, err := catalog.Load()
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load catalog")
	}

	principals := users.NewRepository(p.Store, logg)

	ledger, err := credits.NewLedger(credits.LedgerParams{
		Store:      p.Store,
		Principals: principals,
		Publisher:  bus,
		Mirror:     backend,
		Metrics:    m,
		Logger:     logg,
	})
	if err != nil {
		return nil, err
	}

	cartRepo, err := cart.NewRepository(p.Store, bus, logg)
	if err != nil {
		return nil, err
	}
	wishlistRepo, err := wishlist.NewRepository(p.Store, bus, logg)
	if err != nil {
		return nil, err
	}

	notifier := notifications.NewNotifier(bus, logg)
	feed := notifications.NewFeed(feedSize)

	bookingSvc, err := bookings.NewService(bookings.ServiceParams{
		Remote:                backend,
		Credits:               ledger,
		Services:              cat,
		Store:                 p.Store,
		Publisher:             bus,
		Logger:                logg,
		RefundCreditsOnCancel: p.Config.Booking.RefundCreditsOnCancel,
	})
	if err != nil {
		return nil, err
	}

	checkoutSvc, err := checkout.NewService(checkout.ServiceParams{
		Cart:      cartRepo,
		Prices:    cat,
		Credits:   ledger,
		Store:     p.Store,
		Publisher: bus,
		Notifier:  notifier,
		Metrics:   m,
		Logger:    logg,
	})
	if err != nil {
		return nil, err
	}

	sessionSvc, err := session.NewService(session.ServiceParams{
		Auth:          backend,
		Principals:    principals,
		Ledger:        ledger,
		Store:         p.Store,
		Publisher:     bus,
		Logger:        logg,
		StartingGrant: p.Config.Credits.StartingGrant,
	})
	if err != nil {
		return nil, err
	}

	consumer, err := notifications.NewConsumer(bus, notifier, feed)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "notification consumer")
	}

	app := &App{
		Bus:        bus,
		Metrics:    m,
		Catalog:    cat,
		Principals: principals,
		Ledger:     ledger,
		Cart:       cartRepo,
		Wishlist:   wishlistRepo,
		Bookings:   bookingSvc,
		Checkout:   checkoutSvc,
		Session:    sessionSvc,
		Notifier:   notifier,
		Feed:       feed,
		backend:    backend,
		logg:       logg,
	}
	app.stops = append(app.stops, feed.Attach(bus), consumer.Start())
	return app, nil
}

// Start restores the persisted session. A failed restore leaves the
// storefront signed out rather than refusing to serve.
func (a *App) Start(ctx context.Context) {
	if err := a.Session.Restore(ctx); err != nil {
		a.logg.Error(ctx, "restore session", err)
		a.Notifier.Error(ctx, err)
	}
}

// Close detaches subscribers and releases the remote backend.
func (a *App) Close() error {
	for i := len(a.stops) - 1; i >= 0; i-- {
		a.stops[i]()
	}
	a.stops = nil
	return a.backend.Close()
}
