package client_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/boddenberg/finance-dashboard-bfa/internal/domain"
	"github.com/boddenberg/finance-dashboard-bfa/internal/infra/client"
	"github.com/boddenberg/finance-dashboard-bfa/internal/infra/resilience"

	"github.com/shopspring/decimal"
)

func newClient(t *testing.T, h http.HandlerFunc) *client.PredictorClient {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return client.NewPredictorClient(&http.Client{Timeout: 2 * time.Second}, srv.URL+"/", resilience.NewCircuitBreaker(t.Name(), nil))
}

func sampleRequest() *domain.PredictionRequest {
	return &domain.PredictionRequest{Records: []domain.PredictionRecord{
		{Date: "2025-09-15", Amount: decimal.RequireFromString("470.25"), Category: "Groceries"},
		{Date: "2025-10-10", Amount: decimal.NewFromInt(1450), Category: "Rent/Mortgage"},
	}}
}

func TestPredict_SendsRecordsAndDecodesItems(t *testing.T) {
	var got map[string][]map[string]any

	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/predict" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("expected JSON content type, got %q", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[
			{"group":"Necessary","predicted":1520.5,"confidence":35.2,"trend":"increasing_mild","message":"Slightly higher"},
			{"group":"Other","predicted":80,"confidence":0,"message":"Not enough data (used mean)"}
		]`))
	})

	items, err := c.Predict(context.Background(), sampleRequest())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	records := got["records"]
	if len(records) != 2 {
		t.Fatalf("expected 2 records sent, got %d", len(records))
	}
	if records[0]["date"] != "2025-09-15" || records[0]["category"] != "Groceries" {
		t.Errorf("unexpected first record: %v", records[0])
	}
	if amount, ok := records[0]["amount"].(float64); !ok || amount != 470.25 {
		t.Errorf("expected amount sent as number 470.25, got %#v", records[0]["amount"])
	}

	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	if items[0].Group != "Necessary" || !items[0].Predicted.Equal(decimal.RequireFromString("1520.5")) {
		t.Errorf("unexpected first item: %+v", items[0])
	}
	if items[0].Trend != domain.TrendIncreasingMild {
		t.Errorf("expected trend increasing_mild, got %q", items[0].Trend)
	}
	if items[1].Trend != "" || !items[1].Confidence.IsZero() {
		t.Errorf("unexpected second item: %+v", items[1])
	}
}

func TestPredict_EmptyArrayIsNonNil(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	})

	items, err := c.Predict(context.Background(), sampleRequest())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if items == nil || len(items) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", items)
	}
}

func TestPredict_Failures(t *testing.T) {
	cases := map[string]http.HandlerFunc{
		"server error": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		},
		"bad request": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":"Missing 'records' field"}`))
		},
		"malformed json": func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`[{"group":`))
		},
		"object instead of array": func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"group":"Necessary","predicted":1,"confidence":1}`))
		},
		"predictor error item": func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`[{"error":"no historical data"}]`))
		},
		"missing predicted": func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`[{"group":"Necessary","confidence":1}]`))
		},
		"NaN literal": func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`[{"group":"Necessary","predicted":NaN,"confidence":0}]`))
		},
	}

	for name, h := range cases {
		t.Run(name, func(t *testing.T) {
			c := newClient(t, h)
			items, err := c.Predict(context.Background(), sampleRequest())
			if err == nil {
				t.Fatalf("expected error, got items %+v", items)
			}
			var ext *domain.ErrExternalService
			if !errors.As(err, &ext) {
				t.Fatalf("expected ErrExternalService, got %T: %v", err, err)
			}
		})
	}
}

func TestPredict_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	c := client.NewPredictorClient(&http.Client{Timeout: time.Second}, url, resilience.NewCircuitBreaker("closed-server", nil))
	if _, err := c.Predict(context.Background(), sampleRequest()); err == nil {
		t.Fatal("expected error for closed server")
	}
}

func TestPredict_DeadlineExceeded(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err := c.Predict(ctx, sampleRequest())
	var timeout *domain.ErrTimeout
	if !errors.As(err, &timeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
}

func TestPredict_CircuitOpen(t *testing.T) {
	var calls atomic.Int32
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	})

	for i := 0; i < 5; i++ {
		_, _ = c.Predict(context.Background(), sampleRequest())
	}
	_, err := c.Predict(context.Background(), sampleRequest())

	var open *domain.ErrCircuitOpen
	if !errors.As(err, &open) {
		t.Fatalf("expected ErrCircuitOpen, got %v", err)
	}
	if n := calls.Load(); n != 5 {
		t.Errorf("expected the open breaker to short-circuit, server saw %d calls", n)
	}
}

func TestForward_PassesPayloadThrough(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/evaluate" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		if body["budget"] != float64(2000) {
			t.Errorf("payload not forwarded verbatim: %v", body)
		}
		w.Write([]byte(`{"overall":"Good"}`))
	})

	out, err := c.Forward(context.Background(), "evaluate", json.RawMessage(`{"records":[],"budget":2000}`))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if string(out) != `{"overall":"Good"}` {
		t.Errorf("unexpected response %s", out)
	}
}

func TestForward_UpstreamStatus(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := c.Forward(context.Background(), "suggest", json.RawMessage(`{}`))
	var status *domain.ErrUpstreamStatus
	if !errors.As(err, &status) || status.StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected upstream 500, got %v", err)
	}
}

func TestForward_ClientErrorsKeepBreakerClosed(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/evaluate" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"group":"Necessary","predicted":10,"confidence":50}]`))
	})

	for i := 0; i < 10; i++ {
		if _, err := c.Forward(context.Background(), "evaluate", json.RawMessage(`{"bad":true}`)); err == nil {
			t.Fatal("expected upstream 400 to surface")
		}
	}

	items, err := c.Predict(context.Background(), sampleRequest())
	if err != nil {
		t.Fatalf("expected predict through closed breaker, got %v", err)
	}
	if len(items) != 1 {
		t.Errorf("expected 1 item, got %d", len(items))
	}
}
