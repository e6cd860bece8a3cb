package main

import (
	"context"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/vkornev/keymart/config"
	handler "github.com/vkornev/keymart/internal/handler/http"
	"github.com/vkornev/keymart/internal/logger"
	"github.com/vkornev/keymart/internal/provider"
	"github.com/vkornev/keymart/internal/repository"
	"github.com/vkornev/keymart/internal/repository/postgres"
	"github.com/vkornev/keymart/internal/service"
	"github.com/vkornev/keymart/internal/worker"
	"go.uber.org/zap"
)

func main() {

	// create new config
	cfg, err := config.New()
	if err != nil {
		log.Fatalf("Error loading config: %v", err)
	}

	// initialize logger
	if err := logger.Initialize(cfg.LogLevel); err != nil {
		log.Fatalf("Error initializing logger: %v", err)
	}
	defer logger.Log.Sync()

	// create context
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// order and license stores: postgres when a DSN is configured,
	// in-memory otherwise (demo runs without a database)
	var orderStore service.OrderStore
	var licenseStore service.LicenseStore

	if cfg.DatabaseDSN != "" {
		db, err := postgres.New(ctx, cfg.DatabaseDSN)
		if err != nil {
			logger.Log.Fatal("Error initializing database", zap.Error(err))
		}
		defer db.Close()

		// migrate database
		if err := db.Migrate(); err != nil {
			logger.Log.Fatal("Error migrating database", zap.Error(err))
		}

		orderStore = repository.NewOrderRepository(db)
		licenseStore = repository.NewLicenseRepository(db)
	} else {
		logger.Log.Warn("no database DSN configured, using in-memory stores")
		orderStore = repository.NewMemoryOrderStore()
		licenseStore = repository.NewMemoryLicenseStore()
	}

	// payment gateway: the strategy is selected once here, services never
	// re-check the deployment mode
	var client provider.Client

	if cfg.Live() {
		switch cfg.GatewayKind {
		case config.GatewaySessions:
			client = provider.NewSessionsClient(cfg.ProviderBaseURL, cfg.ProviderAPIKey)
		default:
			client = provider.NewInvoiceClient(cfg.ProviderBaseURL, cfg.ProviderAPIKey)
		}
	} else {
		logger.Log.Warn("running in mock mode, invoices are fabricated")
		client = provider.NewMockClient()
	}

	// dependency injection
	invoiceService := service.NewInvoiceService(orderStore, client)
	statusService := service.NewStatusService(orderStore, client)
	webhookService := service.NewWebhookService(cfg.WebhookSecret, orderStore, licenseStore)

	paymentHandler := handler.NewPaymentHandler(invoiceService, statusService)
	webhookHandler := handler.NewWebhookHandler(webhookService)

	router := chi.NewRouter()

	router.Use(handler.Logging(logger.Log))

	router.Post("/api/payments/invoice", paymentHandler.CreateInvoice())
	router.Get("/api/payments/status", paymentHandler.CheckStatus())
	router.Post("/api/payments/webhook", webhookHandler.Receive())

	// re-check stale pending orders in the background
	reconciler := worker.NewReconciler(statusService)
	go reconciler.Run(ctx)

	logger.Log.Info("Running server", zap.String("addr", cfg.ServerAddr))

	if err := http.ListenAndServe(cfg.ServerAddr, router); err != nil {
		logger.Log.Fatal("Error starting server", zap.Error(err))
	}
}
