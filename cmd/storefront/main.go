package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/angelmondragon/petshop-storefront/api/routes"
	"github.com/angelmondragon/petshop-storefront/internal/remote"
	"github.com/angelmondragon/petshop-storefront/internal/storefront"
	"github.com/angelmondragon/petshop-storefront/pkg/config"
	"github.com/angelmondragon/petshop-storefront/pkg/db"
	"github.com/angelmondragon/petshop-storefront/pkg/kvs"
	"github.com/angelmondragon/petshop-storefront/pkg/logger"
	"github.com/angelmondragon/petshop-storefront/pkg/migrate"
	"github.com/angelmondragon/petshop-storefront/pkg/redis"
	"github.com/angelmondragon/petshop-storefront/pkg/security"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "storefront"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "storefront",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, cfg, logg)
	if err != nil {
		logg.Error(ctx, "failed to open kvs store", err)
		os.Exit(1)
	}
	defer func() {
		if err := closeStore.Close(); err != nil {
			logg.Error(context.Background(), "error closing kvs store", err)
		}
	}()

	backend, err := openBackend(ctx, cfg, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap remote backend", err)
		os.Exit(1)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	app, err := storefront.New(storefront.Params{
		Config:   cfg,
		Store:    store,
		Backend:  backend,
		Registry: reg,
		Logger:   logg,
	})
	if err != nil {
		logg.Error(ctx, "failed to assemble storefront", err)
		os.Exit(1)
	}
	defer func() {
		if err := app.Close(); err != nil {
			logg.Error(context.Background(), "error closing storefront", err)
		}
	}()
	app.Start(ctx)

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	serverCtx := logg.WithFields(ctx, map[string]any{
		"env":    cfg.App.Env,
		"addr":   addr,
		"store":  cfg.Store.NormalizedDriver(),
		"remote": backendName(cfg),
	})
	logg.Info(serverCtx, "starting storefront server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(cfg, routes.Services{
			Session:  app.Session,
			Cart:     app.Cart,
			Wishlist: app.Wishlist,
			Credits:  app.Ledger,
			Catalog:  app.Catalog,
			Checkout: app.Checkout,
			Bookings: app.Bookings,
			Notifier: app.Notifier,
			Feed:     app.Feed,
			Events:   app.Bus,
			Metrics:  reg,
		}, logg),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(serverCtx, "storefront server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		logg.Info(serverCtx, "shutting down storefront server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(serverCtx, "graceful shutdown failed", err)
		}
	}
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

// openStore selects the kvs backend named by PETSHOP_STORE_DRIVER.
func openStore(ctx context.Context, cfg *config.Config, logg *logger.Logger) (kvs.Store, io.Closer, error) {
	switch cfg.Store.NormalizedDriver() {
	case config.StoreDriverMemory:
		logg.Warn(ctx, "memory store selected; session state will not survive a restart")
		return kvs.NewMemoryStore(), closerFunc(func() error { return nil }), nil

	case config.StoreDriverRedis:
		client, err := redis.New(ctx, cfg.Redis, cfg.Store.Namespace, logg)
		if err != nil {
			return nil, nil, err
		}
		store, err := kvs.NewRedisStore(client)
		if err != nil {
			_ = client.Close()
			return nil, nil, err
		}
		return store, client, nil

	default:
		client, err := db.New(ctx, cfg.Store, logg)
		if err != nil {
			return nil, nil, err
		}
		if err := migrate.MaybeRun(ctx, cfg, logg, client); err != nil {
			_ = client.Close()
			return nil, nil, err
		}
		store, err := kvs.NewSQLStore(client.DB(), cfg.Store.Namespace)
		if err != nil {
			_ = client.Close()
			return nil, nil, err
		}
		return store, client, nil
	}
}

// openBackend uses Firebase when enabled and the in-process backend otherwise.
func openBackend(ctx context.Context, cfg *config.Config, logg *logger.Logger) (remote.Backend, error) {
	if cfg.Firebase.Enabled {
		fb, err := remote.NewFirebaseBackend(ctx, cfg.Firebase, logg)
		if err != nil {
			return nil, err
		}
		return fb, nil
	}

	local, err := remote.NewLocalBackend(security.NewHasher(cfg.Password), logg)
	if err != nil {
		return nil, err
	}
	if cfg.Local.AdminEmail != "" {
		if _, err := local.SeedAdmin(ctx, cfg.Local.AdminEmail, cfg.Local.AdminPassword, "Admin"); err != nil {
			return nil, err
		}
		logg.Info(logg.WithField(ctx, "admin_email", cfg.Local.AdminEmail), "seeded local admin")
	}
	return local, nil
}

func backendName(cfg *config.Config) string {
	if cfg.Firebase.Enabled {
		return "firebase"
	}
	return "local"
}
