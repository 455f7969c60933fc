// Package client holds HTTP clients for the external AI prediction service.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/boddenberg/finance-dashboard-bfa/internal/domain"
	"github.com/boddenberg/finance-dashboard-bfa/internal/infra/resilience"

	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("client")

// maxResponseBytes caps how much of a predictor response is read.
const maxResponseBytes = 4 << 20

// ErrMalformedResponse is the client-side name of domain.ErrMalformedPrediction.
var ErrMalformedResponse = domain.ErrMalformedPrediction

// PredictorClient calls the AI prediction service. Each call is a single
// attempt guarded by a circuit breaker; deadlines come from the caller's
// context and the http.Client timeout.
type PredictorClient struct {
	httpClient *http.Client
	baseURL    string
	cb         *gobreaker.CircuitBreaker
}

// NewPredictorClient creates a new PredictorClient.
func NewPredictorClient(httpClient *http.Client, baseURL string, cb *gobreaker.CircuitBreaker) *PredictorClient {
	return &PredictorClient{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		cb:         cb,
	}
}

// wirePrediction mirrors domain.PredictionItem with presence tracking so a
// missing field can be told apart from a zero value.
type wirePrediction struct {
	Group      string           `json:"group"`
	Predicted  *decimal.Decimal `json:"predicted"`
	Confidence *decimal.Decimal `json:"confidence"`
	Trend      string           `json:"trend"`
	Message    string           `json:"message"`
	Error      *string          `json:"error"`
}

// Predict posts the windowed expense records to /predict and returns the
// validated prediction items. An empty JSON array yields an empty, non-nil
// slice.
func (c *PredictorClient) Predict(ctx context.Context, req *domain.PredictionRequest) ([]domain.PredictionItem, error) {
	ctx, span := tracer.Start(ctx, "PredictorClient.Predict")
	defer span.End()
	span.SetAttributes(attribute.Int("prediction.records", len(req.Records)))

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode prediction request: %w", err)
	}

	result, err := c.cb.Execute(func() (any, error) {
		raw, err := c.post(ctx, "predict", body)
		if err != nil {
			return nil, err
		}
		return decodePredictions(raw)
	})
	if err != nil {
		if resilience.IsBreakerRejection(err) {
			return nil, &domain.ErrCircuitOpen{Service: "ai/predict"}
		}
		return nil, &domain.ErrExternalService{Service: "ai/predict", Err: err}
	}

	items := result.([]domain.PredictionItem)
	span.SetAttributes(attribute.Int("prediction.items", len(items)))
	return items, nil
}

// Forward posts an opaque JSON payload to /<operation> and returns the raw
// JSON answer. Used by the AI pass-through endpoints.
func (c *PredictorClient) Forward(ctx context.Context, operation string, payload json.RawMessage) (json.RawMessage, error) {
	ctx, span := tracer.Start(ctx, "PredictorClient.Forward")
	defer span.End()
	span.SetAttributes(attribute.String("ai.operation", operation))

	service := "ai/" + operation

	result, err := c.cb.Execute(func() (any, error) {
		raw, err := c.post(ctx, operation, payload)
		if err != nil {
			return nil, err
		}
		if !json.Valid(raw) {
			return nil, ErrMalformedResponse
		}
		return json.RawMessage(raw), nil
	})
	if err != nil {
		if resilience.IsBreakerRejection(err) {
			return nil, &domain.ErrCircuitOpen{Service: service}
		}
		return nil, &domain.ErrExternalService{Service: service, Err: err}
	}

	return result.(json.RawMessage), nil
}

func (c *PredictorClient) post(ctx context.Context, operation string, body []byte) ([]byte, error) {
	url := fmt.Sprintf("%s/%s", c.baseURL, operation)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, &domain.ErrTimeout{Operation: "ai/" + operation}
		}
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
		return nil, &domain.ErrUpstreamStatus{Service: "ai/" + operation, StatusCode: resp.StatusCode}
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return raw, nil
}

// decodePredictions validates that raw is a JSON array of prediction-shaped
// objects. The predictor signals internal failures as [{"error": "..."}],
// which is rejected here.
func decodePredictions(raw []byte) ([]domain.PredictionItem, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, ErrMalformedResponse
	}

	var wire []wirePrediction
	if err := json.Unmarshal(trimmed, &wire); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	items := make([]domain.PredictionItem, 0, len(wire))
	for i, w := range wire {
		switch {
		case w.Error != nil:
			return nil, fmt.Errorf("%w: item %d: predictor error: %s", ErrMalformedResponse, i, *w.Error)
		case w.Group == "":
			return nil, fmt.Errorf("%w: item %d: missing group", ErrMalformedResponse, i)
		case w.Predicted == nil:
			return nil, fmt.Errorf("%w: item %d: missing predicted", ErrMalformedResponse, i)
		case w.Confidence == nil:
			return nil, fmt.Errorf("%w: item %d: missing confidence", ErrMalformedResponse, i)
		}
		items = append(items, domain.PredictionItem{
			Group:      w.Group,
			Predicted:  *w.Predicted,
			Confidence: *w.Confidence,
			Trend:      domain.Trend(w.Trend),
			Message:    w.Message,
		})
	}
	return items, nil
}
