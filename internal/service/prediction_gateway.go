package service

import (
	"context"
	"errors"
	"time"

	"github.com/boddenberg/finance-dashboard-bfa/internal/domain"
	"github.com/boddenberg/finance-dashboard-bfa/internal/infra/observability"
	"github.com/boddenberg/finance-dashboard-bfa/internal/infra/resilience"
	"github.com/boddenberg/finance-dashboard-bfa/internal/port"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// PredictionGateway turns windowed expense records into a forecast. It never
// fails: when the predictor cannot produce a usable answer the result is nil.
type PredictionGateway struct {
	predictor port.Predictor
	bulkhead  *resilience.Bulkhead
	timeout   time.Duration
	metrics   *observability.Metrics
	logger    *zap.Logger
}

// NewPredictionGateway creates a PredictionGateway. timeout bounds each
// predictor call; the bulkhead caps concurrent calls across requests.
func NewPredictionGateway(
	predictor port.Predictor,
	bulkhead *resilience.Bulkhead,
	timeout time.Duration,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *PredictionGateway {
	return &PredictionGateway{
		predictor: predictor,
		bulkhead:  bulkhead,
		timeout:   timeout,
		metrics:   metrics,
		logger:    logger,
	}
}

// Predict returns the predictor's items for the given expense records, an
// empty non-nil slice when it answered with none, or nil when unavailable.
func (g *PredictionGateway) Predict(ctx context.Context, expenses []domain.Record) []domain.PredictionItem {
	ctx, span := tracer.Start(ctx, "PredictionGateway.Predict")
	defer span.End()
	span.SetAttributes(attribute.Int("records.count", len(expenses)))

	start := time.Now()
	defer func() {
		g.metrics.RecordRequestDuration("prediction", time.Since(start))
	}()

	items, err := g.call(ctx, BuildPredictionRequest(expenses))
	if err != nil {
		span.RecordError(err)
		g.metrics.IncrPrediction(observability.PredictionFailure)
		g.logger.Warn("prediction unavailable",
			zap.String("reason", reasonOf(err)),
			zap.Int("records", len(expenses)),
			zap.Error(err),
		)
		return nil
	}

	if len(items) == 0 {
		g.metrics.IncrPrediction(observability.PredictionEmpty)
		return []domain.PredictionItem{}
	}
	g.metrics.IncrPrediction(observability.PredictionSuccess)
	return items
}

func (g *PredictionGateway) call(ctx context.Context, req *domain.PredictionRequest) ([]domain.PredictionItem, error) {
	if err := g.bulkhead.TryAcquire(); err != nil {
		return nil, &domain.ErrPredictionUnavailable{Reason: "bulkhead_full", Err: err}
	}
	defer g.bulkhead.Release()

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	items, err := g.predictor.Predict(ctx, req)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []domain.PredictionItem{}
	}
	return items, nil
}

// BuildPredictionRequest maps expense records to the predictor input. Dates
// are UTC calendar days and records without a category use
// domain.DefaultCategoryLabel.
func BuildPredictionRequest(expenses []domain.Record) *domain.PredictionRequest {
	records := make([]domain.PredictionRecord, 0, len(expenses))
	for _, r := range expenses {
		records = append(records, domain.PredictionRecord{
			Date:     r.Date.UTC().Format(time.DateOnly),
			Amount:   r.Amount,
			Category: r.CategoryName(),
		})
	}
	return &domain.PredictionRequest{Records: records}
}

// reasonOf classifies a predictor failure for logs.
func reasonOf(err error) string {
	var (
		unavailable *domain.ErrPredictionUnavailable
		timeout     *domain.ErrTimeout
		open        *domain.ErrCircuitOpen
		status      *domain.ErrUpstreamStatus
	)
	switch {
	case errors.As(err, &unavailable):
		return unavailable.Reason
	case errors.As(err, &timeout), errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.As(err, &open):
		return "circuit_open"
	case errors.As(err, &status):
		return "upstream_status"
	case errors.Is(err, domain.ErrMalformedPrediction):
		return "malformed_response"
	}
	return "transport"
}
