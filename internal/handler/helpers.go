package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/boddenberg/finance-dashboard-bfa/internal/domain"

	"go.uber.org/zap"
)

// ============================================================
// Shared helper functions
// ============================================================

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// parsePositiveInt reads an optional positive integer query parameter.
// A missing parameter yields 0.
func parsePositiveInt(r *http.Request, name string) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, &domain.ErrValidation{Field: name, Message: "must be a positive integer"}
	}
	return n, nil
}

// parseReportOptions reads the report query parameters. Unset values stay
// zero and are filled with the service defaults.
func parseReportOptions(r *http.Request) (domain.ReportOptions, error) {
	var (
		opts domain.ReportOptions
		err  error
	)
	if opts.IncomeWindowDays, err = parsePositiveInt(r, "incomeWindowDays"); err != nil {
		return opts, err
	}
	if opts.ExpenseWindowDays, err = parsePositiveInt(r, "expenseWindowDays"); err != nil {
		return opts, err
	}
	if opts.RecentLimit, err = parsePositiveInt(r, "recentLimit"); err != nil {
		return opts, err
	}
	return opts, nil
}

// handleServiceError maps domain errors to HTTP responses.
func handleServiceError(w http.ResponseWriter, err error, logger *zap.Logger) {
	var validation *domain.ErrValidation
	var unauthorized *domain.ErrUnauthorized
	var forbidden *domain.ErrForbidden
	var storeUnavailable *domain.ErrStoreUnavailable
	var circuitOpen *domain.ErrCircuitOpen
	var timeout *domain.ErrTimeout
	var external *domain.ErrExternalService

	switch {
	case errors.As(err, &validation):
		logger.Debug("validation error", zap.String("error", err.Error()))
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &unauthorized):
		logger.Debug("unauthorized", zap.String("error", err.Error()))
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.As(err, &forbidden):
		logger.Warn("forbidden", zap.String("user_id", forbidden.UserID))
		writeError(w, http.StatusForbidden, err.Error())
	case errors.As(err, &storeUnavailable):
		logger.Error("record store unavailable",
			zap.String("query", storeUnavailable.Query),
			zap.Error(storeUnavailable.Err),
		)
		writeError(w, http.StatusInternalServerError, "record store unavailable")
	case errors.As(err, &circuitOpen):
		logger.Error("circuit breaker open", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.As(err, &timeout):
		logger.Error("request timeout", zap.Error(err))
		writeError(w, http.StatusGatewayTimeout, err.Error())
	case errors.As(err, &external):
		logger.Error("external service error", zap.String("service", external.Service), zap.Error(external.Err))
		writeError(w, http.StatusBadGateway, "external service "+external.Service+" unavailable")
	default:
		logger.Error("unhandled error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
