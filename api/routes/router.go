package routes

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/petshop-storefront/api/controllers"
	"github.com/angelmondragon/petshop-storefront/api/middleware"
	"github.com/angelmondragon/petshop-storefront/internal/session"
	"github.com/angelmondragon/petshop-storefront/internal/users"
	"github.com/angelmondragon/petshop-storefront/pkg/config"
	"github.com/angelmondragon/petshop-storefront/pkg/logger"
)

// SessionService is everything the router needs from the session.
type SessionService interface {
	Current(ctx context.Context) (users.Principal, bool)
	Loading() bool
	State(ctx context.Context) session.State
	LoginWithCredentials(ctx context.Context, req session.LoginRequest) (users.Principal, error)
	Register(ctx context.Context, req session.RegisterRequest) (users.Principal, error)
	LoginWithFederated(ctx context.Context, req session.FederatedLoginRequest) (users.Principal, error)
	ContinueAsGuest(ctx context.Context) (users.Principal, error)
	Logout(ctx context.Context) error
}

// CreditsService is the read side of the LuckCoins ledger.
type CreditsService interface {
	Balance(ctx context.Context) (int64, error)
}

// Services wires the storefront into the HTTP surface.
type Services struct {
	Session  SessionService
	Cart     controllers.CartService
	Wishlist controllers.WishlistService
	Credits  CreditsService
	Catalog  controllers.Catalog
	Checkout controllers.CheckoutService
	Bookings controllers.BookingService
	Notifier controllers.Notifier
	Feed     controllers.NotificationFeed
	Events   controllers.Subscriber
	Metrics  prometheus.Gatherer
}

func NewRouter(cfg *config.Config, svc Services, logg *logger.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	r.Get("/health/live", controllers.HealthLive(cfg))
	r.Get("/health/ready", controllers.HealthReady(cfg, svc.Session))
	if svc.Metrics != nil {
		r.Handle("/metrics", promhttp.HandlerFor(svc.Metrics, promhttp.HandlerOpts{}))
	}

	n := svc.Notifier

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Session(svc.Session, logg))

		r.Get("/events", controllers.Events(svc.Events, logg))

		r.Route("/session", func(r chi.Router) {
			r.Get("/", controllers.SessionState(svc.Session, logg))
			r.Post("/login", controllers.SessionLogin(svc.Session, n, logg))
			r.Post("/register", controllers.SessionRegister(svc.Session, n, logg))
			r.Post("/federated", controllers.SessionFederatedLogin(svc.Session, n, logg))
			r.Post("/guest", controllers.SessionGuest(svc.Session, n, logg))
			r.Post("/logout", controllers.SessionLogout(svc.Session, n, logg))
		})

		r.Route("/catalog", func(r chi.Router) {
			r.Get("/products", controllers.CatalogProducts(svc.Catalog, logg))
			r.Get("/products/{productID}", controllers.CatalogProduct(svc.Catalog, logg))
			r.Get("/services", controllers.CatalogServices(svc.Catalog, logg))
			r.Get("/services/{serviceID}", controllers.CatalogService(svc.Catalog, logg))
		})

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", controllers.CartFetch(svc.Cart, logg))
			r.Delete("/", controllers.CartClear(svc.Cart, n, logg))
			r.Post("/items", controllers.CartAddItem(svc.Cart, n, logg))
			r.Put("/items/{productID}", controllers.CartSetQuantity(svc.Cart, n, logg))
			r.Delete("/items/{productID}", controllers.CartRemoveItem(svc.Cart, n, logg))
		})

		r.Route("/wishlist", func(r chi.Router) {
			r.Get("/", controllers.WishlistFetch(svc.Wishlist, logg))
			r.Delete("/", controllers.WishlistClear(svc.Wishlist, n, logg))
			r.Post("/panel", controllers.WishlistOpenPanel(svc.Wishlist, logg))
			r.Post("/{productID}/toggle", controllers.WishlistToggle(svc.Wishlist, n, logg))
		})

		r.Get("/credits", controllers.CreditsBalance(svc.Credits, n, logg))

		r.Route("/checkout", func(r chi.Router) {
			r.Post("/start", controllers.CheckoutStart(svc.Checkout, n, logg))
			r.Get("/quote", controllers.CheckoutQuote(svc.Checkout, n, logg))
			r.Post("/", controllers.CheckoutConfirm(svc.Checkout, n, logg))
			r.Delete("/", controllers.CheckoutAbandon(svc.Checkout, logg))
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", controllers.NotificationsList(svc.Feed, logg))
			r.Post("/read", controllers.NotificationsMarkAllRead(svc.Feed, logg))
		})

		r.Route("/bookings", func(r chi.Router) {
			r.Post("/draft", controllers.BookingsRequest(svc.Bookings, n, logg))
			r.Get("/draft", controllers.BookingsDraft(svc.Bookings, logg))

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireAuthenticated(logg))
				r.Get("/", controllers.BookingsMine(svc.Bookings, n, logg))
				r.Post("/", controllers.BookingsCreate(svc.Bookings, n, logg))
				r.Post("/{bookingID}/cancel", controllers.BookingsCancel(svc.Bookings, n, logg))
				r.Post("/{bookingID}/paid", controllers.BookingsMarkPaid(svc.Bookings, n, logg))
			})
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.RequireAdmin(logg))
			r.Get("/bookings", controllers.AdminBookingsList(svc.Bookings, n, logg))
			r.Post("/bookings/{bookingID}/confirm", controllers.BookingsConfirm(svc.Bookings, n, logg))
			r.Post("/bookings/{bookingID}/complete", controllers.BookingsComplete(svc.Bookings, n, logg))
			r.Post("/bookings/{bookingID}/paid", controllers.BookingsMarkPaid(svc.Bookings, n, logg))
		})
	})

	return r
}
