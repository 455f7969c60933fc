// Package supabase implements the record store on top of Supabase PostgREST.
package supabase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/boddenberg/finance-dashboard-bfa/internal/domain"
	"github.com/boddenberg/finance-dashboard-bfa/internal/infra/observability"
	"github.com/boddenberg/finance-dashboard-bfa/internal/infra/resilience"
	"github.com/boddenberg/finance-dashboard-bfa/internal/port"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("supabase")

// Client wraps HTTP calls to Supabase PostgREST API.
type Client struct {
	httpClient     *http.Client
	baseURL        string
	apiKey         string
	serviceRoleKey string
	cb             *gobreaker.CircuitBreaker
	cfg            resilience.Config
	categories     port.Cache[domain.Category]
	metrics        *observability.Metrics
	logger         *zap.Logger
}

// NewClient creates a Supabase client. categories memoizes category rows
// by id across requests.
func NewClient(
	httpClient *http.Client,
	baseURL, apiKey, serviceRoleKey string,
	cb *gobreaker.CircuitBreaker,
	cfg resilience.Config,
	categories port.Cache[domain.Category],
	metrics *observability.Metrics,
	logger *zap.Logger,
) *Client {
	return &Client{
		httpClient:     httpClient,
		baseURL:        strings.TrimRight(baseURL, "/"),
		apiKey:         apiKey,
		serviceRoleKey: serviceRoleKey,
		cb:             cb,
		cfg:            cfg,
		categories:     categories,
		metrics:        metrics,
		logger:         logger,
	}
}

// get runs a GET against PostgREST with circuit breaker and retry.
// 4xx answers are not retried.
func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	var body []byte

	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			b, err := c.doRequest(ctx, http.MethodGet, path)
			if err != nil {
				var status *domain.ErrUpstreamStatus
				if errors.As(err, &status) && status.StatusCode < 500 {
					return resilience.Permanent(err)
				}
				return err
			}
			body = b
			return nil
		})
	})
	if err != nil {
		if resilience.IsBreakerRejection(err) {
			return nil, &domain.ErrCircuitOpen{Service: "supabase"}
		}
		return nil, err
	}
	return body, nil
}

// doRequest executes an authenticated request to Supabase PostgREST.
func (c *Client) doRequest(ctx context.Context, method, path string) ([]byte, error) {
	url := fmt.Sprintf("%s/rest/v1/%s", c.baseURL, path)
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		c.logger.Error("supabase: failed to create request",
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err),
		)
		return nil, err
	}

	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.serviceRoleKey))
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("supabase: request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err),
		)
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.logger.Error("supabase: failed to read response body",
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err),
		)
		return nil, err
	}

	if resp.StatusCode == http.StatusNoContent {
		return nil, nil // no data
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn("supabase: non-2xx response",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.String("body", string(body)),
		)
		return nil, &domain.ErrUpstreamStatus{Service: "supabase", StatusCode: resp.StatusCode}
	}

	c.logger.Debug("supabase: request OK",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
	)

	return body, nil
}

// Ping checks that PostgREST answers.
func (c *Client) Ping(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "Supabase.Ping")
	defer span.End()

	_, err := c.doRequest(ctx, http.MethodGet, "categories?select=id&limit=1")
	return err
}
