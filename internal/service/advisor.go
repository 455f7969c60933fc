package service

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/boddenberg/finance-dashboard-bfa/internal/domain"
	"github.com/boddenberg/finance-dashboard-bfa/internal/infra/observability"
	"github.com/boddenberg/finance-dashboard-bfa/internal/port"

	"go.uber.org/zap"
)

// Advisor forwards free-form requests to the AI service's predict, evaluate
// and suggest routes.
type Advisor struct {
	caller  port.AdvisorCaller
	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewAdvisor creates an Advisor.
func NewAdvisor(caller port.AdvisorCaller, metrics *observability.Metrics, logger *zap.Logger) *Advisor {
	return &Advisor{caller: caller, metrics: metrics, logger: logger}
}

// Predict forwards payload to /predict.
func (a *Advisor) Predict(ctx context.Context, payload json.RawMessage) (json.RawMessage, error) {
	return a.forward(ctx, "predict", payload)
}

// Evaluate forwards payload to /evaluate.
func (a *Advisor) Evaluate(ctx context.Context, payload json.RawMessage) (json.RawMessage, error) {
	return a.forward(ctx, "evaluate", payload)
}

// Suggest forwards payload to /suggest.
func (a *Advisor) Suggest(ctx context.Context, payload json.RawMessage) (json.RawMessage, error) {
	return a.forward(ctx, "suggest", payload)
}

func (a *Advisor) forward(ctx context.Context, operation string, payload json.RawMessage) (json.RawMessage, error) {
	ctx, span := tracer.Start(ctx, "Advisor."+operation)
	defer span.End()

	if !json.Valid(payload) {
		return nil, &domain.ErrValidation{Field: "body", Message: "must be valid JSON"}
	}

	resp, err := a.caller.Forward(ctx, operation, payload)
	if err != nil {
		span.RecordError(err)
		a.metrics.IncrExternalError("ai/" + operation)
		a.logger.Warn("advisor call failed",
			zap.String("operation", operation),
			zap.Error(err),
		)
		var ext *domain.ErrExternalService
		var open *domain.ErrCircuitOpen
		if errors.As(err, &ext) || errors.As(err, &open) {
			return nil, err
		}
		return nil, &domain.ErrExternalService{Service: "ai/" + operation, Err: err}
	}
	return resp, nil
}
