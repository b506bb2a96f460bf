// Package main runs the commerce layer HTTP service.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cardwise/commerce_layer/internal/app/httpapi"
	"github.com/cardwise/commerce_layer/internal/app/services/advisor"
	cardsvc "github.com/cardwise/commerce_layer/internal/app/services/cards"
	cartsvc "github.com/cardwise/commerce_layer/internal/app/services/cart"
	checkoutsvc "github.com/cardwise/commerce_layer/internal/app/services/checkout"
	"github.com/cardwise/commerce_layer/internal/app/services/recommend"
	"github.com/cardwise/commerce_layer/internal/app/storage"
	"github.com/cardwise/commerce_layer/internal/app/storage/memory"
	"github.com/cardwise/commerce_layer/internal/app/storage/postgres"
	"github.com/cardwise/commerce_layer/internal/app/storage/supabase"
	"github.com/cardwise/commerce_layer/internal/config"
	"github.com/cardwise/commerce_layer/internal/logging"
	"github.com/cardwise/commerce_layer/internal/metrics"
	"github.com/cardwise/commerce_layer/internal/middleware"
	"github.com/cardwise/commerce_layer/pkg/logger"
)

const serviceName = "commerce-layer"

func main() {
	// Best-effort .env for local development.
	_ = godotenv.Load()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := config.LoadOrDefault()
	appLog := logger.NewDefault(serviceName)

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	mem := memory.New()
	cardStore, orderStore, closeStores, err := buildStores(ctx, cfg, mem)
	if err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}
	defer closeStores()

	carts := cartsvc.New(mem, cfg.Pricing.TaxRate, appLog.WithField("component", "cart"))
	lookup := cardsvc.NewBinLookupClient(os.Getenv("BIN_LOOKUP_URL"), appLog.WithField("component", "binlookup"))
	cards := cardsvc.New(cardStore, lookup, appLog.WithField("component", "cards"))

	var scanner *cardsvc.ScanClient
	if cfg.Scanner.BaseURL != "" {
		scanner = cardsvc.NewScanClient(cfg.Scanner.BaseURL, cfg.Scanner.Timeout.Std(), appLog.WithField("component", "cardscan"))
	}

	var adv *advisor.Client
	if cfg.Advisor.BaseURL != "" {
		adv = advisor.NewClient(cfg.Advisor.BaseURL, cfg.Advisor.Timeout.Std(), appLog.WithField("component", "advisor"))
	}

	if cfg.Selector.BaseURL == "" {
		log.Printf("Warning: selector.base_url not set; checkouts will fail with no recommendation")
	}
	recommender := recommend.NewClient(cfg.Selector.BaseURL, cfg.Selector.Timeout.Std(), appLog.WithField("component", "recommend"))

	hub := httpapi.NewHub(appLog.WithField("component", "checkout-ws"))
	sequencer := checkoutsvc.New(carts, cardStore, mem, orderStore, recommender,
		checkoutsvc.Handoff{
			ClientID:    cfg.Payment.ClientID,
			MerchantIDs: cfg.Payment.MerchantIDs,
			EntryPoint:  cfg.Payment.EntryPoint,
		}, m, appLog.WithField("component", "checkout"))
	sequencer.SetEventSink(hub)

	handler := httpapi.NewHandler(carts, cards, scanner, sequencer, adv, orderStore, hub,
		appLog.WithField("component", "httpapi"))

	router := mux.NewRouter()
	handler.RegisterRoutes(router)
	router.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{})).Methods("GET")

	reqLog := logging.NewLogger(serviceName)
	rateLimiter := middleware.NewRateLimiter(cfg.Server.RequestsPerSecond, cfg.Server.Burst, reqLog)
	rateLimiter.StartCleanup(ctx, 5*time.Minute)
	cors := middleware.NewCORSMiddleware(cfg.Server.AllowedOrigins)

	router.Use(middleware.MetricsMiddleware(serviceName, m))
	router.Use(middleware.LoggingMiddleware(reqLog))

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      cors.Handler(rateLimiter.Handler(router)),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		appLog.WithField("port", cfg.Server.Port).Info("commerce layer listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	appLog.Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		appLog.WithError(err).Error("shutdown error")
	}
	appLog.Info("service stopped")
}

// buildStores selects the card and order persistence backend. Carts and
// checkout sessions always live in memory; only cards and orders survive a
// restart.
func buildStores(ctx context.Context, cfg *config.Config, mem *memory.Store) (storage.CardStore, storage.OrderStore, func(), error) {
	noop := func() {}

	switch cfg.Storage.Backend {
	case "", "memory":
		return mem, mem, noop, nil

	case "postgres":
		store, err := postgres.Open(ctx, cfg.Storage.PostgresDSN)
		if err != nil {
			return nil, nil, noop, err
		}
		return store, store, func() { _ = store.Close() }, nil

	case "supabase":
		store, err := supabase.New(supabase.ConfigFromEnv())
		if err != nil {
			return nil, nil, noop, err
		}
		// Orders stay in memory; the Supabase schema only carries cards.
		return store, mem, noop, nil

	default:
		return nil, nil, noop, fmt.Errorf("unknown storage backend: %s", cfg.Storage.Backend)
	}
}
