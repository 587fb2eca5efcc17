package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/minhkhoa/famledger-api-go/internal/config"
	"github.com/minhkhoa/famledger-api-go/internal/domain"
	"github.com/minhkhoa/famledger-api-go/internal/handler"
	"github.com/minhkhoa/famledger-api-go/internal/infra/cache"
	"github.com/minhkhoa/famledger-api-go/internal/infra/client"
	"github.com/minhkhoa/famledger-api-go/internal/infra/observability"
	"github.com/minhkhoa/famledger-api-go/internal/infra/resilience"
	"github.com/minhkhoa/famledger-api-go/internal/infra/supabase"
	"github.com/minhkhoa/famledger-api-go/internal/service"

	"go.uber.org/zap"
)

func main() {
	// --- Load .env file (for local development) ---
	_ = config.LoadDotEnv(".env")

	// --- Config ---
	cfg := config.Load()

	// --- Logger ---
	logger := observability.NewLogger(cfg.LogLevel)
	defer logger.Sync()

	logger.Info("configuration loaded",
		zap.Int("port", cfg.Port),
		zap.String("log_level", cfg.LogLevel),
		zap.Duration("http_timeout", cfg.HTTPTimeout),
		zap.Duration("cache_ttl", cfg.CacheTTL),
		zap.Int("max_retries", cfg.MaxRetries),
		zap.Duration("initial_backoff", cfg.InitialBackoff),
		zap.Duration("jwt_access_ttl", cfg.JWTAccessTTL),
		zap.Duration("jwt_refresh_ttl", cfg.JWTRefreshTTL),
	)

	if cfg.SupabaseURL == "" {
		logger.Fatal("SUPABASE_URL is required")
	}

	// --- Tracing ---
	shutdown, err := observability.InitTracer(cfg.OTLPEndpoint, "famledger-api")
	if err != nil {
		logger.Fatal("failed to init tracer", zap.Error(err))
	}
	defer shutdown(context.Background())

	// --- Metrics ---
	metrics := observability.NewMetrics()

	// --- Cache ---
	profileCache := cache.New[[]domain.Profile](cfg.CacheTTL)

	// --- Resilience ---
	resilienceCfg := resilience.Config{
		MaxRetries:     cfg.MaxRetries,
		InitialBackoff: cfg.InitialBackoff,
		MaxConcurrency: cfg.MaxConcurrency,
	}
	cb := resilience.NewCircuitBreaker("supabase")

	// --- Clients ---
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}

	store := supabase.NewClient(
		httpClient,
		cfg.SupabaseURL,
		cfg.SupabaseAnonKey,
		cfg.SupabaseServiceKey,
		cb,
		resilienceCfg,
		logger,
	)
	notifier := client.NewPushNotifier(httpClient, cfg.NotifierURL, logger)
	if cfg.NotifierURL == "" {
		logger.Warn("notifier: NOTIFIER_URL not set, push notifications disabled")
	}

	// --- Services ---
	budgetSvc := service.NewBudgetService(store, metrics, logger)
	ledgerSvc := service.NewLedgerService(store, budgetSvc, metrics, logger)
	transferSvc := service.NewTransferService(store, metrics, logger)

	svcs := &handler.Services{
		Auth:       service.NewAuthService(store, cfg.JWTSecret, cfg.JWTAccessTTL, cfg.JWTRefreshTTL, logger),
		Profiles:   service.NewProfileService(store, profileCache, metrics, logger),
		Ledger:     ledgerSvc,
		Budget:     budgetSvc,
		Dashboard:  service.NewDashboardService(store, metrics, logger),
		Transfers:  transferSvc,
		Requests:   service.NewRequestService(store, transferSvc, notifier, logger),
		Recurring:  service.NewRecurringService(store, metrics, logger),
		Goals:      service.NewGoalService(store, metrics, logger),
		Categories: service.NewCategoryService(store, logger),
		Settings:   service.NewSettingsService(store, logger),
	}

	// --- Router ---
	router := handler.NewRouter(svcs, metrics, logger)

	// --- Server ---
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// --- Graceful shutdown ---
	go func() {
		logger.Info("server starting", zap.Int("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("server forced shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}
