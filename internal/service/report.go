package service

import (
	"context"
	"time"

	"github.com/boddenberg/finance-dashboard-bfa/internal/domain"
	"github.com/boddenberg/finance-dashboard-bfa/internal/infra/observability"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// AssembleReport composes the dashboard report. The balance is derived from
// the same totals the report carries, and a nil prediction stays nil.
func AssembleReport(agg *domain.Aggregation, prediction []domain.PredictionItem) *domain.Report {
	recent := agg.RecentTransactions
	if recent == nil {
		recent = []domain.Record{}
	}
	return &domain.Report{
		TotalBalance:       agg.TotalIncome.Sub(agg.TotalExpense),
		TotalIncome:        agg.TotalIncome,
		TotalExpenses:      agg.TotalExpense,
		WindowedExpense:    nonNilWindow(agg.WindowedExpense),
		WindowedIncome:     nonNilWindow(agg.WindowedIncome),
		RecentTransactions: recent,
		Prediction:         prediction,
	}
}

func nonNilWindow(w domain.WindowAggregate) domain.WindowAggregate {
	if w.Records == nil {
		w.Records = []domain.Record{}
	}
	return w
}

// Dashboard orchestrates aggregation, prediction and assembly for one
// report request.
type Dashboard struct {
	aggregator *Aggregator
	gateway    *PredictionGateway
	defaults   domain.ReportOptions
	now        func() time.Time
	metrics    *observability.Metrics
	logger     *zap.Logger
}

// NewDashboard creates the dashboard service. defaults fill any option left
// at zero by the caller.
func NewDashboard(
	aggregator *Aggregator,
	gateway *PredictionGateway,
	defaults domain.ReportOptions,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *Dashboard {
	return &Dashboard{
		aggregator: aggregator,
		gateway:    gateway,
		defaults:   defaults,
		now:        time.Now,
		metrics:    metrics,
		logger:     logger,
	}
}

// WithClock replaces the wall clock, for tests.
func (d *Dashboard) WithClock(now func() time.Time) *Dashboard {
	d.now = now
	return d
}

// GetReport builds the dashboard report for userID. Store failures are
// returned as *domain.ErrStoreUnavailable; predictor failures only null the
// prediction.
func (d *Dashboard) GetReport(ctx context.Context, userID string, opts domain.ReportOptions) (*domain.Report, error) {
	// Bail out early if the caller already cancelled.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ctx, span := tracer.Start(ctx, "Dashboard.GetReport")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	start := time.Now()
	defer func() {
		d.metrics.RecordRequestDuration("report", time.Since(start))
	}()

	opts = d.withDefaults(opts)

	agg, err := d.aggregator.Aggregate(ctx, userID, d.now(), opts)
	if err != nil {
		d.metrics.IncrRequest("error")
		return nil, err
	}

	prediction := d.gateway.Predict(ctx, agg.WindowedExpense.Records)
	report := AssembleReport(agg, prediction)

	d.metrics.IncrRequest("success")
	d.logger.Info("dashboard report assembled",
		zap.String("user_id", userID),
		zap.String("trace_id", trace.SpanContextFromContext(ctx).TraceID().String()),
		zap.Int("recent", len(report.RecentTransactions)),
		zap.Bool("prediction_available", report.Prediction != nil),
		zap.Duration("duration", time.Since(start)),
	)
	return report, nil
}

func (d *Dashboard) withDefaults(opts domain.ReportOptions) domain.ReportOptions {
	if opts.IncomeWindowDays == 0 {
		opts.IncomeWindowDays = d.defaults.IncomeWindowDays
	}
	if opts.ExpenseWindowDays == 0 {
		opts.ExpenseWindowDays = d.defaults.ExpenseWindowDays
	}
	if opts.RecentLimit == 0 {
		opts.RecentLimit = d.defaults.RecentLimit
	}
	return opts
}
