package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/litefi/litevault-backend/internal/api"
	"github.com/litefi/litevault-backend/internal/config"
	"github.com/litefi/litevault-backend/internal/events"
	"github.com/litefi/litevault-backend/internal/fulfiller"
	"github.com/litefi/litevault-backend/internal/jobs"
	"github.com/litefi/litevault-backend/internal/log"
	"github.com/litefi/litevault-backend/internal/metrics"
	"github.com/litefi/litevault-backend/internal/queue"
	"github.com/litefi/litevault-backend/internal/repository"
	"github.com/litefi/litevault-backend/internal/store"
	"github.com/litefi/litevault-backend/internal/token"
	"github.com/litefi/litevault-backend/internal/vault"
	"github.com/litefi/litevault-backend/internal/ws"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Setup logger
	logger, err := log.NewSugar(cfg.Env)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Infow("Starting LiteVault API server",
		"env", cfg.Env,
		"addr", cfg.HTTPAddr,
		"asset", cfg.Vault.AssetSymbol,
	)

	// Setup metrics
	metricsObj, metricsHandler, err := metrics.Setup("litevault-api")
	if err != nil {
		logger.Fatalw("Failed to setup metrics", "error", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Open the journal database
	var repo *repository.Repository
	db, err := sql.Open("pgx", cfg.Database.PostgresDSN)
	if err != nil {
		logger.Fatalw("Failed to open database", "error", err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		logger.Warnw("Database unreachable, event journal disabled", "error", err)
	} else {
		repo = repository.NewRepository(db, logger)
		logger.Infow("Database connection established")
	}

	// Setup Redis cache (falls back to in-memory when redis is unreachable)
	cache, err := store.NewCache(cfg.Cache.RedisAddr, logger, metricsObj)
	if err != nil {
		logger.Fatalw("Failed to setup cache", "error", err)
	}
	defer cache.Close()

	if cache.IsInMemoryMode() {
		logger.Warnw("Cache running in in-memory mode")
	} else {
		logger.Infow("Cache connection established")
	}

	// Event bus feeds the journal worker and push channels
	bus := events.NewBus(logger)

	// Build the custody engine: asset ledger, vault, queue, fulfiller
	asset := token.NewLedger(cfg.Vault.AssetSymbol)
	vaultSvc := vault.NewService(asset, cfg.Vault.VaultAddress, bus, logger)

	queueSvc, err := queue.NewService(
		vaultSvc,
		cfg.Vault.QueueAddress,
		cfg.Vault.OwnerAddress,
		cfg.Vault.PenaltyFeePercentage,
		bus,
		logger,
	)
	if err != nil {
		logger.Fatalw("Failed to create withdrawal queue", "error", err)
	}

	fulfillerSvc, err := fulfiller.NewService(vaultSvc, queueSvc, cfg.Vault.FulfillerAddress, bus, logger)
	if err != nil {
		logger.Fatalw("Failed to create fulfiller", "error", err)
	}

	// Setup WebSocket hub and SSE handler
	wsHub := ws.NewHub(cache, logger, metricsObj)
	sseHandler := ws.NewSSEHandler(cache, logger)

	// Create context for background services
	jobCtx, jobCancel := context.WithCancel(context.Background())
	defer jobCancel()

	go wsHub.Run(jobCtx)

	// Background jobs: price sync, state snapshots, event journal
	mockBasePrice, err := cfg.Vault.GetInitialExchangePrice()
	if err != nil {
		logger.Fatalw("Invalid initial exchange price", "error", err)
	}

	priceUpdater := jobs.NewPriceUpdater(vaultSvc, cfg.Vault.BridgeAddress, cache, logger, jobs.PriceUpdaterConfig{
		ProviderType:  cfg.Prices.Provider,
		EndpointURL:   cfg.Prices.EndpointURL,
		PollInterval:  cfg.Prices.PollInterval,
		RetryInterval: cfg.Prices.RetryInterval,
		TTL:           cfg.Cache.TTL,
		MockBasePrice: mockBasePrice,
		MockDrift:     cfg.Prices.MockDrift,
	})
	go func() {
		if err := priceUpdater.Run(jobCtx); err != nil && err != context.Canceled {
			logger.Errorw("Price updater error", "error", err)
		}
	}()

	snapshotWorker := jobs.NewSnapshotWorker(vaultSvc, queueSvc, repo, cache, logger, 15*time.Second)
	go snapshotWorker.Run(jobCtx)

	journalWorker := jobs.NewJournalWorker(bus, repo, cache, metricsObj, logger)
	go journalWorker.Run(jobCtx)

	// Setup API handler and middleware
	handler := api.NewHandler(vaultSvc, queueSvc, fulfillerSvc, repo, cache, wsHub, sseHandler, cfg, logger, metricsObj)
	middleware := api.NewMiddleware(logger, metricsObj)

	router := handler.Routes(middleware, cfg.Security.CORSAllowedOrigins, cfg.Security.RateLimitRPM)
	logger.Infow("CORS configured", "allowed_origins", cfg.Security.CORSAllowedOrigins)

	// Add metrics endpoint
	router.Handle("/metrics", metricsHandler)

	// Setup HTTP server
	server := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in background
	serverErrors := make(chan error, 1)
	go func() {
		logger.Infow("API server starting", "addr", server.Addr)
		serverErrors <- server.ListenAndServe()
	}()

	// Wait for interrupt signal
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		logger.Fatalw("Server startup failed", "error", err)
	case sig := <-shutdown:
		logger.Infow("Shutdown signal received", "signal", sig.String())

		jobCancel()

		// Give outstanding requests 30 seconds to complete
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			logger.Errorw("Graceful shutdown failed", "error", err)
			server.Close()
		}

		logger.Infow("Server stopped")
	}
}
