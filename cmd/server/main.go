package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/damon-houk/catalog-service/internal/application/service"
	"github.com/damon-houk/catalog-service/internal/config"
	"github.com/damon-houk/catalog-service/internal/infrastructure/api"
	"github.com/damon-houk/catalog-service/internal/infrastructure/cache"
	"github.com/damon-houk/catalog-service/internal/infrastructure/db"
	"github.com/damon-houk/catalog-service/internal/infrastructure/handler"
	"github.com/damon-houk/catalog-service/internal/infrastructure/logger"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.GetDefaultLogger().Fatal("Invalid configuration", map[string]interface{}{"error": err.Error()})
	}

	log := logger.NewJSONLogger(os.Stdout, logger.ParseLevel(cfg.LogLevel)).
		WithField("service", "catalog")
	logger.SetDefaultLogger(log)

	for _, warning := range cfg.Warnings {
		log.Warn(warning, nil)
	}

	log.Info("Starting catalog service", map[string]interface{}{
		"port":             cfg.Port,
		"base_currency":    cfg.BaseCurrency,
		"rates_url":        cfg.RatesURL,
		"refresh_interval": cfg.RatesRefreshInterval.String(),
		"db_in_memory":     cfg.DBInMemory,
	})

	badgerDB, err := db.Open(cfg.DBPath, cfg.DBInMemory, log)
	if err != nil {
		log.Fatal("Failed to open database", map[string]interface{}{"error": err.Error()})
	}
	defer func() {
		if err := badgerDB.Close(); err != nil {
			log.Error("Error closing BadgerDB", map[string]interface{}{"error": err.Error()})
		}
	}()

	// Initialize repositories
	products := db.NewBadgerProductRepository(badgerDB)
	categories := db.NewBadgerCategoryRepository(badgerDB)
	rateRepo := db.NewBadgerExchangeRateRepository(badgerDB)

	// Rate store: warm from the last snapshot, then try the provider once
	ratesClient := api.NewRatesAPIClient(cfg.RatesURL, log, api.WithRetries(cfg.RatesMaxRetries, 0))
	store := cache.NewRateStore(cfg.BaseCurrency, ratesClient, rateRepo, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := store.Load(ctx); err != nil {
		log.Error("Could not load persisted exchange rates", map[string]interface{}{"error": err.Error()})
	}
	refreshCtx, cancel := context.WithTimeout(ctx, cfg.RatesTimeout)
	store.Refresh(refreshCtx)
	cancel()

	// Initialize services
	conversion := service.NewConversionService(store, log)
	productService := service.NewProductService(products, categories, conversion, log)
	categoryService := service.NewCategoryService(categories, products, conversion, log)

	router := handler.NewRouter(log,
		handler.NewProductHandler(productService, log),
		handler.NewCategoryHandler(categoryService, log),
		handler.NewCurrencyHandler(store, conversion, cfg.RatesTimeout, log),
	)

	server := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	if cfg.RatesRefreshInterval > 0 {
		g.Go(func() error {
			store.Run(gctx, cfg.RatesRefreshInterval, cfg.RatesTimeout)
			return nil
		})
	}

	g.Go(func() error {
		log.Info("Server listening", map[string]interface{}{"addr": server.Addr})
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down", map[string]interface{}{"timeout": cfg.ShutdownTimeout.String()})

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("Server stopped with error", map[string]interface{}{"error": err.Error()})
		return
	}
	log.Info("Server stopped", nil)
}
