package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/boddenberg/finance-dashboard-bfa/internal/config"
	"github.com/boddenberg/finance-dashboard-bfa/internal/domain"
	"github.com/boddenberg/finance-dashboard-bfa/internal/handler"
	"github.com/boddenberg/finance-dashboard-bfa/internal/infra/cache"
	"github.com/boddenberg/finance-dashboard-bfa/internal/infra/client"
	"github.com/boddenberg/finance-dashboard-bfa/internal/infra/observability"
	"github.com/boddenberg/finance-dashboard-bfa/internal/infra/postgres"
	"github.com/boddenberg/finance-dashboard-bfa/internal/infra/resilience"
	"github.com/boddenberg/finance-dashboard-bfa/internal/infra/sqlite"
	"github.com/boddenberg/finance-dashboard-bfa/internal/infra/supabase"
	"github.com/boddenberg/finance-dashboard-bfa/internal/port"
	"github.com/boddenberg/finance-dashboard-bfa/internal/service"

	"go.uber.org/zap"
)

// Dashboard predictions and the AI pass-through trip separate breakers so
// client traffic on /v1/ai cannot open the dashboard's circuit.
const (
	predictorBreaker = "ai-predictor"
	advisorBreaker   = "ai-advisor"
)

// recordStore is what every backend provides.
type recordStore interface {
	port.RecordStore
	port.Pinger
}

func main() {
	// --- Load .env file (for local development) ---
	_ = config.LoadDotEnv(".env")

	// --- Config ---
	cfg := config.Load()

	// --- Logger ---
	logger := observability.NewLogger(cfg.LogLevel)
	defer logger.Sync()

	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}

	logger.Info("configuration loaded",
		zap.Int("port", cfg.Port),
		zap.String("log_level", cfg.LogLevel),
		zap.String("store_backend", cfg.StoreBackend),
		zap.String("ai_service_url", cfg.AIServiceURL),
		zap.Duration("http_timeout", cfg.HTTPTimeout),
		zap.Duration("prediction_timeout", cfg.PredictionTimeout),
		zap.Duration("cache_ttl", cfg.CacheTTL),
		zap.Int("max_retries", cfg.MaxRetries),
		zap.Int("max_concurrency", cfg.MaxConcurrency),
		zap.Bool("bearer_dashboard", cfg.JWTSecret != ""),
	)

	// --- Tracing ---
	shutdown, err := observability.InitTracer(cfg.OTLPEndpoint, "finance-dashboard-bfa")
	if err != nil {
		logger.Fatal("failed to init tracer", zap.Error(err))
	}
	defer shutdown(context.Background())

	// --- Metrics ---
	metrics := observability.NewMetrics()

	// --- Resilience ---
	resilienceCfg := resilience.Config{
		MaxRetries:     cfg.MaxRetries,
		InitialBackoff: cfg.InitialBackoff,
		MaxConcurrency: cfg.MaxConcurrency,
	}
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}

	// --- Record store ---
	store, closeStore, err := openStore(cfg, httpClient, resilienceCfg, metrics, logger)
	if err != nil {
		logger.Fatal("failed to open record store", zap.String("backend", cfg.StoreBackend), zap.Error(err))
	}
	defer closeStore()

	// --- AI prediction service ---
	predictor := client.NewPredictorClient(httpClient, cfg.AIServiceURL,
		resilience.NewCircuitBreaker(predictorBreaker, metrics.SetCircuitState))
	advisorClient := client.NewPredictorClient(httpClient, cfg.AIServiceURL,
		resilience.NewCircuitBreaker(advisorBreaker, metrics.SetCircuitState))

	// --- Services ---
	dashboard := service.NewDashboard(
		service.NewAggregator(store, metrics, logger),
		service.NewPredictionGateway(predictor, resilience.NewBulkhead(cfg.MaxConcurrency), cfg.PredictionTimeout, metrics, logger),
		domain.ReportOptions{
			IncomeWindowDays:  cfg.IncomeWindowDays,
			ExpenseWindowDays: cfg.ExpenseWindowDays,
			RecentLimit:       cfg.RecentLimit,
		},
		metrics,
		logger,
	)
	advisor := service.NewAdvisor(advisorClient, metrics, logger)

	// --- Router ---
	router := handler.NewRouter(handler.Options{
		JWTSecret:        cfg.JWTSecret,
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		PredictorBreaker: predictorBreaker,
	}, dashboard, advisor, store, metrics, logger)

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

// openStore builds the record store selected by STORE_BACKEND and returns a
// function releasing its resources.
func openStore(
	cfg *config.Config,
	httpClient *http.Client,
	resilienceCfg resilience.Config,
	metrics *observability.Metrics,
	logger *zap.Logger,
) (recordStore, func(), error) {
	switch cfg.StoreBackend {
	case config.BackendPostgres:
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		s, err := postgres.Open(ctx, cfg.DatabaseURL, logger)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil

	case config.BackendSQLite:
		s, err := sqlite.Open(cfg.SQLitePath, logger)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { s.Close() }, nil

	case config.BackendSupabase:
		logger.Info("using Supabase as record store", zap.String("supabase_url", cfg.SupabaseURL))
		categories := cache.New[domain.Category](cfg.CacheTTL)
		s := supabase.NewClient(
			httpClient,
			cfg.SupabaseURL,
			cfg.SupabaseAnonKey,
			cfg.SupabaseServiceKey,
			resilience.NewCircuitBreaker("supabase", metrics.SetCircuitState),
			resilienceCfg,
			categories,
			metrics,
			logger,
		)
		return s, categories.Close, nil
	}
	return nil, nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
}
