package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"storefront/internal/config"
	"storefront/internal/db"
	"storefront/internal/dummyjson"
	"storefront/internal/events"
	"storefront/internal/httpserver"
	"storefront/internal/logging"
	cartrepo "storefront/internal/repository/cart"
	productrepo "storefront/internal/repository/product"
	accountsvc "storefront/internal/service/account"
	cartsvc "storefront/internal/service/cart"
	catalogsvc "storefront/internal/service/catalog"
	"storefront/internal/session"
)

func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(2)
	}
	logger, err := logging.New("api", cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(2)
	}
	defer func() { _ = logger.Sync() }()

	ctx := context.Background()

	var dbpool *pgxpool.Pool
	if cfg.NeedsDB() {
		dbpool, err = db.Connect(ctx, cfg.DBConnString, logger)
		if err != nil {
			logger.Fatal("connect to db", zap.Error(err))
		}
		defer dbpool.Close()
	}

	var publisher events.Publisher = events.NewLogPublisher(logger.Named("events"))
	if cfg.NATSURL != "" {
		natsPub, err := events.ConnectNATS(cfg.NATSURL, logger.Named("events"))
		if err != nil {
			logger.Fatal("connect to nats", zap.Error(err))
		}
		defer func() { _ = natsPub.Close() }()
		publisher = natsPub
	}

	dj := dummyjson.New(cfg.DummyJSONURL, &http.Client{Timeout: 10 * time.Second}, logger.Named("dummyjson"))
	djSource := catalogsvc.NewDummyJSONSource(dj, logger.Named("catalog"))

	var products catalogsvc.ProductSource = djSource
	if cfg.CatalogSource == "postgres" {
		products = catalogsvc.NewRepositorySource(productrepo.NewPostgres(dbpool, logger.Named("products")))
	}
	catalogService := catalogsvc.New(products, djSource, cfg.CatalogCacheTTL, logger.Named("catalog"))
	if err := catalogService.Refresh(ctx); err != nil {
		logger.Warn("initial catalog load failed; retrying on first request", zap.Error(err))
	}

	repoOpts := cartrepo.Options{Currency: cfg.DefaultCurrency, CheckoutURLBase: cfg.CheckoutURLBase}
	var cartBackend cartrepo.Repository
	switch cfg.CartBackend {
	case "postgres":
		cartBackend = cartrepo.NewPostgres(dbpool, catalogService, repoOpts, logger.Named("carts"))
	default:
		cartBackend = cartrepo.NewMemory(catalogService, repoOpts, logger.Named("carts"))
	}

	policy, err := cartsvc.ParsePolicy(cfg.CartRollbackPolicy)
	if err != nil {
		logger.Fatal("cart policy", zap.Error(err))
	}
	cartService := cartsvc.New(cartBackend, catalogService, cartsvc.Options{
		Policy:          policy,
		DefaultCurrency: cfg.DefaultCurrency,
		Workers:         cfg.CartDispatchWorkers,
		Publisher:       publisher,
		Logger:          logger.Named("cart"),
	})
	defer cartService.Close()

	var sessionStore session.Store = session.NewMemoryStore()
	switch cfg.SessionStore {
	case "redis":
		rdb, err := session.ConnectRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			logger.Fatal("connect to redis", zap.Error(err))
		}
		defer func() { _ = rdb.Close() }()
		sessionStore = session.NewRedisStore(rdb)
	case "postgres":
		pgStore := session.NewPostgresStore(dbpool)
		pruneCtx, stopPrune := context.WithCancel(ctx)
		defer stopPrune()
		go pruneSessions(pruneCtx, pgStore, logger.Named("session"))
		sessionStore = pgStore
	}
	sessions := session.NewManager(sessionStore, cfg.SessionTTL, publisher, logger.Named("session"))
	accountService := accountsvc.New(dj, sessions, logger.Named("account"))

	var ready httpserver.Pinger
	if dbpool != nil {
		ready = dbpool
	}
	srv, err := httpserver.New(cfg.HTTPAddr, logger.Named("http"), ready, httpserver.Deps{
		Catalog:  catalogService,
		Cart:     cartService,
		Account:  accountService,
		Sessions: sessions,
	}, cfg.CORSOrigins)
	if err != nil {
		logger.Fatal("init server", zap.Error(err))
	}

	serverErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-stopCh:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	case err := <-serverErr:
		logger.Error("server error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	} else {
		logger.Info("server stopped")
	}
}

func pruneSessions(ctx context.Context, store *session.PostgresStore, logger *zap.Logger) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := store.Prune(ctx)
			if err != nil {
				logger.Warn("prune sessions", zap.Error(err))
				continue
			}
			logger.Debug("pruned sessions", zap.Int64("removed", n))
		}
	}
}
