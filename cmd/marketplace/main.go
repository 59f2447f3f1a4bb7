package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"marketplace/internal/api"
	"marketplace/internal/api/handlers"
	"marketplace/internal/cache"
	"marketplace/internal/checkout"
	"marketplace/internal/database"
	"marketplace/internal/events"
	"marketplace/internal/metrics"
	"marketplace/internal/repository"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(logger); err != nil {
		logger.Fatal("service exited", zap.Error(err))
	}
}

func run(logger *zap.Logger) error {
	cfg, err := database.LoadConfig()
	if err != nil {
		return err
	}

	db, err := database.Connect(cfg)
	if err != nil {
		return err
	}
	defer db.Close()
	logger.Info("connected to database", zap.String("host", cfg.Host), zap.String("db", cfg.DBName))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := database.Migrate(ctx, db); err != nil {
		cancel()
		return err
	}
	cancel()
	logger.Info("migrations applied")

	productRepo := repository.NewProductRepository(db)
	customerRepo := repository.NewCustomerRepository(db)
	cartRepo := repository.NewCartRepository(db)
	orderRepo := repository.NewOrderRepository(db)

	// Redis is optional. Without it product reads hit the database directly
	// and checkout skips cache invalidation.
	var invalidator handlers.CacheInvalidator
	products := productRepo
	if cfg.RedisURL != "" {
		rdb, err := cache.ConnectRedis(cfg)
		if err != nil {
			logger.Warn("redis unavailable, serving uncached", zap.Error(err))
		} else {
			defer rdb.Close()
			cached := cache.NewCachedProductRepository(productRepo, rdb, cfg.CacheTTL, logger)
			products = cached
			invalidator = cached
			logger.Info("product cache enabled", zap.Duration("ttl", cfg.CacheTTL))
		}
	}

	producer := events.NewProducer(cfg.KafkaBrokers, logger)
	defer producer.Close()
	if producer.Enabled() {
		logger.Info("order event publishing enabled", zap.String("brokers", cfg.KafkaBrokers))
	}

	checkoutMetrics := metrics.NewCheckoutMetrics()
	engine := checkout.NewEngine(checkout.NewPGStore(db), logger, checkoutMetrics)

	router := api.NewRouter(api.Handlers{
		Products:  handlers.NewProductHandler(products),
		Customers: handlers.NewCustomerHandler(customerRepo),
		Cart:      handlers.NewCartHandler(cartRepo),
		Checkout:  handlers.NewCheckoutHandler(engine, producer, invalidator, logger),
		Orders:    handlers.NewOrderHandler(orderRepo),
	}, customerRepo, logger)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-stop:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
