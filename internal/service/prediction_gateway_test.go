package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/boddenberg/finance-dashboard-bfa/internal/domain"
	"github.com/boddenberg/finance-dashboard-bfa/internal/infra/observability"
	"github.com/boddenberg/finance-dashboard-bfa/internal/infra/resilience"
	"github.com/boddenberg/finance-dashboard-bfa/internal/service"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func newGateway(p *mockPredictor, metrics *observability.Metrics) *service.PredictionGateway {
	return service.NewPredictionGateway(p, resilience.NewBulkhead(4), time.Second, metrics, zap.NewNop())
}

func TestGateway_Success(t *testing.T) {
	items := []domain.PredictionItem{
		{Group: "Food", Predicted: decimal.NewFromInt(320), Confidence: decimal.RequireFromString("0.8"), Trend: domain.TrendStable},
	}
	p := &mockPredictor{items: items}
	metrics := observability.NewMetrics()

	got := newGateway(p, metrics).Predict(context.Background(), []domain.Record{
		rec("e1", domain.RecordExpense, 100, daysAgo(2)),
	})

	if len(got) != 1 || got[0].Group != "Food" {
		t.Fatalf("expected predictor items passed through, got %+v", got)
	}
	if snap := metrics.GetPredictionSnapshot("ai"); snap.Succeeded != 1 {
		t.Errorf("expected 1 success, got %d", snap.Succeeded)
	}
}

func TestGateway_BuildsRequest(t *testing.T) {
	p := &mockPredictor{items: []domain.PredictionItem{}}
	// 23:30 at UTC-3 is already the next day in UTC.
	local := time.Date(2026, 3, 1, 23, 30, 0, 0, time.FixedZone("BRT", -3*3600))

	records := []domain.Record{
		{ID: "a", Amount: decimal.RequireFromString("12.50"), Date: local, Category: &domain.Category{Name: "Food"}},
		{ID: "b", Amount: decimal.NewFromInt(7), Date: daysAgo(1)},
	}
	newGateway(p, observability.NewMetrics()).Predict(context.Background(), records)

	req := p.request()
	if req == nil || len(req.Records) != 2 {
		t.Fatalf("expected 2 prediction records, got %+v", req)
	}
	if req.Records[0].Date != "2026-03-02" {
		t.Errorf("expected UTC date 2026-03-02, got %s", req.Records[0].Date)
	}
	if req.Records[0].Category != "Food" || !req.Records[0].Amount.Equal(decimal.RequireFromString("12.5")) {
		t.Errorf("unexpected first record %+v", req.Records[0])
	}
	if req.Records[1].Category != domain.DefaultCategoryLabel {
		t.Errorf("expected fallback category, got %s", req.Records[1].Category)
	}
}

func TestGateway_EmptyResult(t *testing.T) {
	metrics := observability.NewMetrics()
	for _, items := range [][]domain.PredictionItem{nil, {}} {
		got := newGateway(&mockPredictor{items: items}, metrics).Predict(context.Background(), nil)
		if got == nil {
			t.Fatal("expected empty non-nil slice, got nil")
		}
		if len(got) != 0 {
			t.Errorf("expected no items, got %d", len(got))
		}
	}
	if snap := metrics.GetPredictionSnapshot("ai"); snap.Empty != 2 {
		t.Errorf("expected 2 empty outcomes, got %d", snap.Empty)
	}
}

func TestGateway_CallsPredictorWithoutRecords(t *testing.T) {
	p := &mockPredictor{items: []domain.PredictionItem{}}
	newGateway(p, observability.NewMetrics()).Predict(context.Background(), nil)

	if p.calls.Load() != 1 {
		t.Fatalf("expected predictor to be called once, got %d", p.calls.Load())
	}
	if req := p.request(); req.Records == nil || len(req.Records) != 0 {
		t.Errorf("expected empty records list, got %+v", req.Records)
	}
}

func TestGateway_FailureYieldsNil(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"network", &domain.ErrExternalService{Service: "ai/predict", Err: errors.New("connection refused")}},
		{"status 500", &domain.ErrExternalService{Service: "ai/predict", Err: &domain.ErrUpstreamStatus{Service: "ai", StatusCode: 500}}},
		{"malformed", &domain.ErrExternalService{Service: "ai/predict", Err: domain.ErrMalformedPrediction}},
		{"circuit open", &domain.ErrCircuitOpen{Service: "ai/predict"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			metrics := observability.NewMetrics()
			got := newGateway(&mockPredictor{err: tt.err}, metrics).Predict(context.Background(), nil)
			if got != nil {
				t.Errorf("expected nil prediction, got %+v", got)
			}
			if snap := metrics.GetPredictionSnapshot("ai"); snap.Failed != 1 {
				t.Errorf("expected 1 failure, got %d", snap.Failed)
			}
		})
	}
}

func TestGateway_Timeout(t *testing.T) {
	p := &mockPredictor{block: true, released: make(chan struct{})}
	gw := service.NewPredictionGateway(p, resilience.NewBulkhead(1), 50*time.Millisecond, observability.NewMetrics(), zap.NewNop())

	start := time.Now()
	got := gw.Predict(context.Background(), nil)
	if got != nil {
		t.Errorf("expected nil on timeout, got %+v", got)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("timeout not enforced, took %v", elapsed)
	}
}

func TestGateway_BulkheadFull(t *testing.T) {
	p := &mockPredictor{items: []domain.PredictionItem{}}
	bh := resilience.NewBulkhead(1)
	if err := bh.TryAcquire(); err != nil {
		t.Fatalf("unexpected acquire error: %v", err)
	}
	defer bh.Release()

	gw := service.NewPredictionGateway(p, bh, time.Second, observability.NewMetrics(), zap.NewNop())
	if got := gw.Predict(context.Background(), nil); got != nil {
		t.Errorf("expected nil when bulkhead is full, got %+v", got)
	}
	if p.calls.Load() != 0 {
		t.Errorf("expected predictor not to be called, got %d calls", p.calls.Load())
	}
}
