package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fjod/go_storefront/pkg/logger"
	"github.com/fjod/go_storefront/storefront/internal/backend"
	"github.com/fjod/go_storefront/storefront/internal/cache"
	"github.com/fjod/go_storefront/storefront/internal/cart"
	"github.com/fjod/go_storefront/storefront/internal/config"
	"github.com/fjod/go_storefront/storefront/internal/gateway"
	h "github.com/fjod/go_storefront/storefront/internal/http"
	"github.com/fjod/go_storefront/storefront/internal/metrics"
	"github.com/fjod/go_storefront/storefront/internal/poller"
	"github.com/fjod/go_storefront/storefront/internal/publisher"
	"github.com/fjod/go_storefront/storefront/internal/repository"
	"github.com/fjod/go_storefront/storefront/internal/service"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

const pruneInterval = time.Hour

type eventPublisher interface {
	service.Publisher
	Close() error
}

func main() {
	// prices and totals travel as JSON numbers, matching the backend and
	// the persisted snapshot format
	decimal.MarshalJSONWithoutQuotes = true

	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	log := logger.New(os.Stdout, logger.Options{Level: cfg.LogLevel, JSON: cfg.LogJSON})
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	snapshots, health, closeStorage, err := openSnapshots(ctx, cfg, log)
	if err != nil {
		log.Error("failed to open cart storage", "driver", cfg.StorageDriver, "error", err)
		os.Exit(1)
	}
	defer closeStorage()
	log.Info("cart storage ready", "driver", cfg.StorageDriver)

	registry := cart.NewRegistry(snapshots, log)

	api := backend.NewClient(backend.Config{
		BaseURL: cfg.APIBaseURL,
		Token:   cfg.APIToken,
		Timeout: cfg.RequestTimeout,
	}, log)

	script := gateway.NewScriptLoader(cfg.GatewayScriptURL, cfg.RequestTimeout, log)
	hosted := gateway.NewHostedCheckout(log)

	var events eventPublisher = publisher.Nop{}
	if len(cfg.KafkaBrokers) > 0 {
		events = publisher.NewEventPublisher(publisher.NewKafkaWriter(cfg.KafkaTopic, cfg.KafkaBrokers...), log)

		p := poller.NewPoller(poller.NewKafkaReader(cfg.KafkaGroupID, cfg.KafkaTopic, cfg.KafkaBrokers...), registry, log)
		defer p.Close()
		go p.Run(ctx)
		log.Info("checkout events enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	}
	defer func() {
		if err := events.Close(); err != nil {
			log.Warn("error closing event publisher", "error", err)
		}
	}()

	m := metrics.New()

	opts := service.DefaultOptions()
	opts.StoreName = cfg.StoreName
	opts.GatewayTimeout = cfg.GatewayTimeout
	opts.RequestTimeout = cfg.RequestTimeout

	checkout := service.NewCheckoutService(service.Deps{
		Carts:     registry,
		Orders:    api,
		Payments:  api,
		Script:    script,
		Widget:    hosted,
		Publisher: metrics.NewCountingPublisher(events, m),
		Log:       log,
	}, opts)
	go checkout.Run(ctx)

	resolver := service.NewPaymentResultResolver(api, registry, log)

	router := h.NewRouter(h.Handlers{
		Cart:     h.NewCartHandler(registry),
		Checkout: h.NewCheckoutHandler(checkout, hosted),
		Payment:  h.NewPaymentHandler(resolver),
		Orders:   h.NewOrdersHandler(api),
		Gateway:  h.NewGatewayHandler(script),
		Health:   health,
		Metrics:  m,
	}, log, cfg.RequestTimeout)

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("storefront starting", "port", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()

	log.Info("shutting down storefront")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", "error", err)
	}
	log.Info("storefront stopped")
}

// openSnapshots builds the configured cart snapshot store along with its
// health checks and a cleanup func.
func openSnapshots(ctx context.Context, cfg config.Config, log *slog.Logger) (cart.SnapshotStore, map[string]h.HealthCheck, func(), error) {
	switch cfg.StorageDriver {
	case config.StorageRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       0,
		})
		store := cache.NewRedisStore(client, cfg.CartSnapshotTTL)
		if err := store.Ping(ctx); err != nil {
			_ = client.Close()
			return nil, nil, nil, err
		}
		checks := map[string]h.HealthCheck{"redis": store.Ping}
		return store, checks, func() { _ = client.Close() }, nil

	case config.StorageMongo:
		store, err := repository.OpenMongoStore(ctx, cfg.MongoURI, cfg.MongoDBName, cfg.CartSnapshotTTL)
		if err != nil {
			return nil, nil, nil, err
		}
		checks := map[string]h.HealthCheck{"mongo": store.Ping}
		return store, checks, func() { _ = store.Close(context.Background()) }, nil

	case config.StorageMemory:
		return cache.NewMemoryStore(), nil, func() {}, nil

	default:
		store, err := repository.NewSQLiteStore(cfg.SQLitePath, cfg.CartSnapshotTTL)
		if err != nil {
			return nil, nil, nil, err
		}
		if cfg.CartSnapshotTTL > 0 {
			go prune(ctx, store, log)
		}
		checks := map[string]h.HealthCheck{"sqlite": store.Ping}
		return store, checks, func() { _ = store.Close() }, nil
	}
}

func prune(ctx context.Context, store *repository.SQLiteStore, log *slog.Logger) {
	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := store.Prune(ctx)
			if err != nil {
				log.Warn("cart snapshot prune failed", "error", err)
				continue
			}
			if n > 0 {
				log.Info("expired cart snapshots pruned", "count", n)
			}
		}
	}
}
