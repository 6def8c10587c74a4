package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"crypto-card-service/config"
	httpHandler "crypto-card-service/internal/adapter/http/handler"
	"crypto-card-service/internal/adapter/oracle"
	pgStorage "crypto-card-service/internal/adapter/storage/postgres"
	redisStorage "crypto-card-service/internal/adapter/storage/redis"
	"crypto-card-service/internal/core/ports"
	"crypto-card-service/internal/service"
	"crypto-card-service/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)

	log.Info().
		Str("mode", cfg.Server.Mode).
		Int("port", cfg.Server.Port).
		Msg("Starting Crypto Card Service")

	ctx := context.Background()

	// Initialize PostgreSQL pool
	pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()
	log.Info().Msg("PostgreSQL connected")

	// Initialize Redis client
	rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()
	log.Info().Msg("Redis connected")

	// Initialize repositories
	cardRepo := pgStorage.NewCardRepo(pool)
	ledgerRepo := pgStorage.NewLedgerRepo(pool)
	orderRepo := pgStorage.NewOrderRepo(pool)
	assetRepo := pgStorage.NewAssetRepo(pool)
	transactor := pgStorage.NewTransactor(pool)

	// Initialize Redis stores
	quoteCache := redisStorage.NewQuoteCache(rdb)
	rateLimitStore := redisStorage.NewRateLimitStore(rdb)

	// Initialize core services
	salt, err := cfg.Derivation.Salt()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid derivation salt")
	}
	addressSvc, err := service.NewAddressService(salt)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize address derivation")
	}
	tokenSvc := service.NewJWTTokenService(cfg.JWT.Secret, cfg.JWT.Expiry, cfg.JWT.Issuer)
	rateOracle := oracle.NewClient(cfg.Oracle, log)

	// Initialize business services
	slippageTolerance, err := cfg.Exchange.SlippageTolerance()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid slippage tolerance")
	}
	ledgerSvc := service.NewLedgerService(cardRepo, ledgerRepo, transactor, log)
	cardSvc := service.NewCardService(cardRepo, addressSvc, log)
	exchangeSvc := service.NewExchangeService(
		orderRepo,
		cardRepo,
		ledgerRepo,
		quoteCache,
		rateOracle,
		addressSvc,
		transactor,
		service.ExchangeParams{
			QuoteTTL:              cfg.Exchange.QuoteTTL,
			SlippageTolerancePct:  slippageTolerance,
			ConfirmationThreshold: cfg.Exchange.ConfirmationThreshold,
			ExpirySweepBatch:      cfg.Exchange.ExpirySweepBatch,
		},
		log,
	)
	regulatorSvc := service.NewRegulatorService(ledgerSvc, cardRepo, log)
	dedupSvc := service.NewDedupService(assetRepo, service.DedupParams{
		MaxRetries:  cfg.Dedup.MaxRetries,
		BaseBackoff: cfg.Dedup.BaseBackoff,
	}, log)

	// Initialize health checkers
	pgHealth := pgStorage.NewHealthCheck(pool)
	redisHealth := redisStorage.NewHealthCheck(rdb)

	// Background schedules: nightly asset deduplication and the
	// stale-quote expiry sweep.
	scheduler := cron.New()
	if _, err := scheduler.AddFunc(cfg.Dedup.CronSpec, func() {
		report, err := dedupSvc.RunDeduplicationPass(context.Background())
		if err != nil {
			log.Error().Err(err).Msg("Asset deduplication pass failed")
			return
		}
		log.Info().
			Int("scanned", report.Scanned).
			Int("retained", report.Retained).
			Int64("removed", report.Removed).
			Msg("Asset deduplication pass finished")
	}); err != nil {
		log.Fatal().Err(err).Msg("Invalid dedup cron spec")
	}
	if _, err := scheduler.AddFunc(cfg.Exchange.ExpirySweepSpec, func() {
		expired, err := exchangeSvc.ExpireStale(context.Background())
		if err != nil {
			log.Error().Err(err).Msg("Quote expiry sweep failed")
			return
		}
		if expired > 0 {
			log.Info().Int("expired", expired).Msg("Expired stale orders")
		}
	}); err != nil {
		log.Fatal().Err(err).Msg("Invalid expiry sweep spec")
	}
	scheduler.Start()

	// Setup Gin router with all routes
	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		CardSvc:        cardSvc,
		LedgerSvc:      ledgerSvc,
		ExchangeSvc:    exchangeSvc,
		RegulatorSvc:   regulatorSvc,
		DedupSvc:       dedupSvc,
		TokenSvc:       tokenSvc,
		RateLimitStore: rateLimitStore,
		HealthCheckers: []ports.HealthChecker{pgHealth, redisHealth},
		Logger:         log,
	})

	// HTTP Server with graceful shutdown
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	// Start server in goroutine
	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	cronCtx := scheduler.Stop()
	<-cronCtx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}
