package service

import (
	"context"
	"sort"
	"time"

	"github.com/boddenberg/finance-dashboard-bfa/internal/domain"
	"github.com/boddenberg/finance-dashboard-bfa/internal/infra/observability"
	"github.com/boddenberg/finance-dashboard-bfa/internal/port"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var tracer = otel.Tracer("service")

const day = 24 * time.Hour

// Store query names, used as the Query of ErrStoreUnavailable and as the
// store error metric label.
const (
	QueryTotalIncome     = "total_income"
	QueryTotalExpense    = "total_expense"
	QueryWindowedIncome  = "windowed_income"
	QueryWindowedExpense = "windowed_expense"
	QueryRecentIncome    = "recent_income"
	QueryRecentExpense   = "recent_expense"
)

// Aggregator computes totals, rolling windows and recent transactions for a
// user from the record store.
type Aggregator struct {
	store   port.RecordStore
	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewAggregator creates an Aggregator.
func NewAggregator(store port.RecordStore, metrics *observability.Metrics, logger *zap.Logger) *Aggregator {
	return &Aggregator{store: store, metrics: metrics, logger: logger}
}

// Aggregate runs the six store queries concurrently and combines them. Any
// query failure fails the whole aggregation with *domain.ErrStoreUnavailable.
func (a *Aggregator) Aggregate(ctx context.Context, userID string, now time.Time, opts domain.ReportOptions) (*domain.Aggregation, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	ctx, span := tracer.Start(ctx, "Aggregator.Aggregate")
	defer span.End()
	span.SetAttributes(
		attribute.String("user.id", userID),
		attribute.Int("window.income_days", opts.IncomeWindowDays),
		attribute.Int("window.expense_days", opts.ExpenseWindowDays),
		attribute.Int("recent.limit", opts.RecentLimit),
	)

	incomeSince := now.Add(-time.Duration(opts.IncomeWindowDays) * day)
	expenseSince := now.Add(-time.Duration(opts.ExpenseWindowDays) * day)

	var (
		totalIncome, totalExpense   decimal.Decimal
		windowIncome, windowExpense []domain.Record
		recentIncome, recentExpense []domain.Record
	)

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		v, err := a.store.SumAmount(gCtx, userID, domain.RecordIncome)
		if err != nil {
			return a.storeFailure(QueryTotalIncome, userID, err)
		}
		totalIncome = v
		return nil
	})
	g.Go(func() error {
		v, err := a.store.SumAmount(gCtx, userID, domain.RecordExpense)
		if err != nil {
			return a.storeFailure(QueryTotalExpense, userID, err)
		}
		totalExpense = v
		return nil
	})
	g.Go(func() error {
		v, err := a.store.FindInWindow(gCtx, userID, domain.RecordIncome, incomeSince)
		if err != nil {
			return a.storeFailure(QueryWindowedIncome, userID, err)
		}
		windowIncome = v
		return nil
	})
	g.Go(func() error {
		v, err := a.store.FindInWindow(gCtx, userID, domain.RecordExpense, expenseSince)
		if err != nil {
			return a.storeFailure(QueryWindowedExpense, userID, err)
		}
		windowExpense = v
		return nil
	})
	g.Go(func() error {
		v, err := a.store.FindRecent(gCtx, userID, domain.RecordIncome, opts.RecentLimit)
		if err != nil {
			return a.storeFailure(QueryRecentIncome, userID, err)
		}
		recentIncome = v
		return nil
	})
	g.Go(func() error {
		v, err := a.store.FindRecent(gCtx, userID, domain.RecordExpense, opts.RecentLimit)
		if err != nil {
			return a.storeFailure(QueryRecentExpense, userID, err)
		}
		recentExpense = v
		return nil
	})

	if err := g.Wait(); err != nil {
		span.RecordError(err)
		return nil, err
	}

	return &domain.Aggregation{
		UserID:             userID,
		GeneratedAt:        now,
		TotalIncome:        totalIncome,
		TotalExpense:       totalExpense,
		WindowedIncome:     buildWindow(windowIncome, domain.RecordIncome, opts.IncomeWindowDays, incomeSince, now),
		WindowedExpense:    buildWindow(windowExpense, domain.RecordExpense, opts.ExpenseWindowDays, expenseSince, now),
		RecentTransactions: mergeRecent(recentIncome, recentExpense, opts.RecentLimit),
	}, nil
}

func (a *Aggregator) storeFailure(query, userID string, err error) error {
	a.logger.Error("record store query failed",
		zap.String("query", query),
		zap.String("user_id", userID),
		zap.Error(err),
	)
	a.metrics.IncrStoreError(query)
	return &domain.ErrStoreUnavailable{Query: query, Err: err}
}

// buildWindow keeps the records with since <= date <= now, orders them
// newest first and sums their amounts.
func buildWindow(records []domain.Record, t domain.RecordType, days int, since, now time.Time) domain.WindowAggregate {
	in := make([]domain.Record, 0, len(records))
	total := decimal.Zero
	for _, r := range records {
		if r.Date.Before(since) || r.Date.After(now) {
			continue
		}
		r.Type = t
		in = append(in, r)
		total = total.Add(r.Amount)
	}
	sortNewestFirst(in)

	return domain.WindowAggregate{
		WindowDays: days,
		Total:      total,
		Records:    in,
	}
}

// mergeRecent tags each list with its type, caps it at limit, concatenates
// income before expense and re-sorts newest first. Equal dates keep the
// concatenation order.
func mergeRecent(income, expense []domain.Record, limit int) []domain.Record {
	income = capNewest(income, limit)
	expense = capNewest(expense, limit)

	merged := make([]domain.Record, 0, len(income)+len(expense))
	for _, r := range income {
		r.Type = domain.RecordIncome
		merged = append(merged, r)
	}
	for _, r := range expense {
		r.Type = domain.RecordExpense
		merged = append(merged, r)
	}
	sortNewestFirst(merged)
	return merged
}

// capNewest returns at most limit of the newest records without reordering
// a store result that is already date-desc.
func capNewest(records []domain.Record, limit int) []domain.Record {
	if len(records) <= limit {
		return records
	}
	sorted := make([]domain.Record, len(records))
	copy(sorted, records)
	sortNewestFirst(sorted)
	return sorted[:limit]
}

func sortNewestFirst(records []domain.Record) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Date.After(records[j].Date)
	})
}
