package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/boddenberg/finance-dashboard-bfa/internal/domain"
	"github.com/boddenberg/finance-dashboard-bfa/internal/infra/observability"
	"github.com/boddenberg/finance-dashboard-bfa/internal/port"
	"github.com/boddenberg/finance-dashboard-bfa/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("handler")

// healthCheckTimeout bounds the store ping of /healthz and /readyz.
const healthCheckTimeout = 2 * time.Second

// Options carries the router settings that come from configuration.
type Options struct {
	// JWTSecret enables GET /v1/dashboard when non-empty and restricts
	// GET /v1/users/{userId}/dashboard to the token subject.
	JWTSecret string
	// AllowedOrigins lists the frontend origins allowed by CORS.
	AllowedOrigins []string
	// PredictorBreaker names the circuit breaker reported by /v1/metrics/prediction.
	PredictorBreaker string
}

// NewRouter creates the HTTP router with all routes and middleware.
// store may be nil when the backend cannot report its health.
func NewRouter(
	opts Options,
	dashboard *service.Dashboard,
	advisor *service.Advisor,
	store port.Pinger,
	metrics *observability.Metrics,
	logger *zap.Logger,
) http.Handler {
	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.ZapLoggerMiddleware(logger))
	r.Use(observability.TracingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(middleware.Heartbeat("/ping"))

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler(store, logger))
	r.Get("/readyz", readyzHandler(store))
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	// --- API v1 ---
	r.Route("/v1", func(r chi.Router) {
		// Dashboard
		if opts.JWTSecret == "" {
			r.Get("/users/{userId}/dashboard", userDashboardHandler(dashboard, logger))
		} else {
			bearer := BearerUserMiddleware([]byte(opts.JWTSecret), logger)
			r.With(bearer, SameUserMiddleware(logger)).
				Get("/users/{userId}/dashboard", userDashboardHandler(dashboard, logger))
			r.With(bearer).
				Get("/dashboard", currentUserDashboardHandler(dashboard, logger))
		}

		// AI pass-through
		r.Post("/ai/predict", advisorHandler("predict", advisor.Predict, logger))
		r.Post("/ai/evaluate", advisorHandler("evaluate", advisor.Evaluate, logger))
		r.Post("/ai/suggest", advisorHandler("suggest", advisor.Suggest, logger))

		// Metrics
		r.Get("/metrics/prediction", predictionMetricsHandler(metrics, opts.PredictorBreaker))
	})

	return r
}

// ============================================================
// Operational
// ============================================================

func healthzHandler(store port.Pinger, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		now := time.Now().Format(time.RFC3339)

		services := []domain.ServiceHealth{
			{Name: "bfa-api", Status: "healthy", LatencyMs: 0, LastChecked: now},
		}

		if store != nil {
			start := time.Now()
			err := pingStore(r.Context(), store)
			latency := time.Since(start).Milliseconds()
			status := "healthy"
			if err != nil {
				logger.Warn("healthz: record store ping failed", zap.Error(err))
				status = "degraded"
			}
			services = append(services, domain.ServiceHealth{
				Name: "record-store", Status: status, LatencyMs: latency, LastChecked: now,
			})
		}

		overallStatus := "healthy"
		for _, s := range services {
			if s.Status == "unhealthy" {
				overallStatus = "unhealthy"
				break
			}
			if s.Status == "degraded" {
				overallStatus = "degraded"
			}
		}

		writeJSON(w, http.StatusOK, domain.HealthStatus{
			Status:   overallStatus,
			Services: services,
		})
	}
}

func readyzHandler(store port.Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if store != nil {
			if err := pingStore(r.Context(), store); err != nil {
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func pingStore(ctx context.Context, store port.Pinger) error {
	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()
	return store.Ping(ctx)
}

func predictionMetricsHandler(metrics *observability.Metrics, breaker string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, metrics.GetPredictionSnapshot(breaker))
	}
}
