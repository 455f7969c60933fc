package service_test

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/boddenberg/finance-dashboard-bfa/internal/domain"

	"github.com/shopspring/decimal"
)

// --- Mocks ---

// mockStore serves records from memory. FindInWindow deliberately ignores
// since so the aggregator's own window filtering is exercised.
type mockStore struct {
	records []domain.Record
	errs    map[string]error // keyed by "<method>/<type>"
}

func (m *mockStore) fail(method string, t domain.RecordType) error {
	return m.errs[method+"/"+string(t)]
}

func (m *mockStore) ofType(t domain.RecordType) []domain.Record {
	var out []domain.Record
	for _, r := range m.records {
		if r.Type == t {
			out = append(out, r)
		}
	}
	return out
}

func (m *mockStore) SumAmount(_ context.Context, _ string, t domain.RecordType) (decimal.Decimal, error) {
	if err := m.fail("SumAmount", t); err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, r := range m.ofType(t) {
		total = total.Add(r.Amount)
	}
	return total, nil
}

func (m *mockStore) FindInWindow(_ context.Context, _ string, t domain.RecordType, _ time.Time) ([]domain.Record, error) {
	if err := m.fail("FindInWindow", t); err != nil {
		return nil, err
	}
	return m.ofType(t), nil
}

func (m *mockStore) FindRecent(_ context.Context, _ string, t domain.RecordType, limit int) ([]domain.Record, error) {
	if err := m.fail("FindRecent", t); err != nil {
		return nil, err
	}
	out := m.ofType(t)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type mockPredictor struct {
	mu       sync.Mutex
	items    []domain.PredictionItem
	err      error
	block    bool
	calls    atomic.Int32
	lastReq  *domain.PredictionRequest
	released chan struct{}
}

func (m *mockPredictor) Predict(ctx context.Context, req *domain.PredictionRequest) ([]domain.PredictionItem, error) {
	m.calls.Add(1)
	m.mu.Lock()
	m.lastReq = req
	m.mu.Unlock()

	if m.block {
		select {
		case <-ctx.Done():
			return nil, &domain.ErrTimeout{Operation: "ai/predict"}
		case <-m.released:
			return m.items, m.err
		}
	}
	return m.items, m.err
}

func (m *mockPredictor) request() *domain.PredictionRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastReq
}

type mockCaller struct {
	resp      json.RawMessage
	err       error
	operation string
	payload   json.RawMessage
}

func (m *mockCaller) Forward(_ context.Context, operation string, payload json.RawMessage) (json.RawMessage, error) {
	m.operation = operation
	m.payload = payload
	return m.resp, m.err
}

// --- Fixtures ---

var testNow = time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

func daysAgo(n int) time.Time {
	return testNow.Add(-time.Duration(n) * 24 * time.Hour)
}

func rec(id string, t domain.RecordType, amount int64, date time.Time) domain.Record {
	return domain.Record{
		ID:     id,
		UserID: "user-1",
		Amount: decimal.NewFromInt(amount),
		Date:   date,
		Type:   t,
	}
}

func defaultOpts() domain.ReportOptions {
	return domain.ReportOptions{IncomeWindowDays: 60, ExpenseWindowDays: 180, RecentLimit: 5}
}
