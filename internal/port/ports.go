// Package port defines the interfaces (ports) for external dependencies.
// Following hexagonal architecture, these ports decouple the service layer
// from concrete record stores and the AI prediction service.
package port

import (
	"context"
	"encoding/json"
	"time"

	"github.com/boddenberg/finance-dashboard-bfa/internal/domain"

	"github.com/shopspring/decimal"
)

// RecordStore provides read access to a user's income and expense records.
// Implemented by the postgres, sqlite and supabase adapters.
type RecordStore interface {
	// SumAmount returns the full-history total of the user's records of type t.
	SumAmount(ctx context.Context, userID string, t domain.RecordType) (decimal.Decimal, error)

	// FindInWindow returns records dated at or after since, newest first,
	// with categories resolved when available.
	FindInWindow(ctx context.Context, userID string, t domain.RecordType, since time.Time) ([]domain.Record, error)

	// FindRecent returns at most limit records, newest first.
	FindRecent(ctx context.Context, userID string, t domain.RecordType, limit int) ([]domain.Record, error)
}

// Pinger is implemented by stores that can report their own health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Predictor invokes the external spend prediction service.
type Predictor interface {
	Predict(ctx context.Context, req *domain.PredictionRequest) ([]domain.PredictionItem, error)
}

// AdvisorCaller forwards opaque JSON payloads to the AI service.
type AdvisorCaller interface {
	Forward(ctx context.Context, operation string, payload json.RawMessage) (json.RawMessage, error)
}

// Cache provides generic caching with TTL.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T)
	Delete(key string)
}
