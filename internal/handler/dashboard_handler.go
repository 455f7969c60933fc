package handler

import (
	"net/http"

	"github.com/boddenberg/finance-dashboard-bfa/internal/domain"
	"github.com/boddenberg/finance-dashboard-bfa/internal/service"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Dashboard
// ============================================================

// userDashboardHandler serves GET /v1/users/{userId}/dashboard.
func userDashboardHandler(svc *service.Dashboard, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := chi.URLParam(r, "userId")
		if userID == "" {
			writeError(w, http.StatusBadRequest, "userId is required")
			return
		}
		serveDashboard(w, r, svc, userID, "GET /v1/users/{userId}/dashboard", logger)
	}
}

// currentUserDashboardHandler serves GET /v1/dashboard for the token subject.
func currentUserDashboardHandler(svc *service.Dashboard, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := UserIDFromContext(r.Context())
		if userID == "" {
			handleServiceError(w, &domain.ErrUnauthorized{Message: "missing user"}, logger)
			return
		}
		serveDashboard(w, r, svc, userID, "GET /v1/dashboard", logger)
	}
}

func serveDashboard(w http.ResponseWriter, r *http.Request, svc *service.Dashboard, userID, route string, logger *zap.Logger) {
	ctx, span := tracer.Start(r.Context(), route)
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	opts, err := parseReportOptions(r)
	if err != nil {
		handleServiceError(w, err, logger)
		return
	}

	report, err := svc.GetReport(ctx, userID, opts)
	if err != nil {
		span.RecordError(err)
		handleServiceError(w, err, logger)
		return
	}

	writeJSON(w, http.StatusOK, report)
}
