// Package postgres implements the record store on PostgreSQL via pgx.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/boddenberg/finance-dashboard-bfa/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("postgres")

// Store implements port.RecordStore on a pgx connection pool.
type Store struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// Open migrates the database and connects a pool to it.
func Open(ctx context.Context, databaseURL string, logger *zap.Logger) (*Store, error) {
	if err := RunMigrations(databaseURL); err != nil {
		return nil, err
	}

	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	logger.Info("postgres store ready", zap.Int32("max_conns", pool.Config().MaxConns))
	return &Store{pool: pool, logger: logger}, nil
}

// Close closes the pool.
func (s *Store) Close() {
	s.pool.Close()
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func table(t domain.RecordType) (string, error) {
	switch t {
	case domain.RecordIncome:
		return "incomes", nil
	case domain.RecordExpense:
		return "expenses", nil
	}
	return "", &domain.ErrValidation{Field: "type", Message: fmt.Sprintf("unknown record type %q", t)}
}

// SumAmount returns the full-history total of the user's records of type t.
func (s *Store) SumAmount(ctx context.Context, userID string, t domain.RecordType) (decimal.Decimal, error) {
	ctx, span := tracer.Start(ctx, "Postgres.SumAmount")
	defer span.End()
	span.SetAttributes(attribute.String("record.type", string(t)))

	tbl, err := table(t)
	if err != nil {
		return decimal.Zero, err
	}

	var raw string
	query := fmt.Sprintf(`SELECT COALESCE(SUM(amount), 0)::text FROM %s WHERE user_id = $1`, tbl)
	if err := s.pool.QueryRow(ctx, query, userID).Scan(&raw); err != nil {
		return decimal.Zero, fmt.Errorf("sum %s: %w", tbl, err)
	}
	return decimal.NewFromString(raw)
}

const selectRecords = `
SELECT r.id::text, r.user_id, r.amount::text, r.date, r.source, c.name, c.icon, c.type
FROM %s r
LEFT JOIN categories c ON c.id = r.category_id
WHERE r.user_id = $1`

// FindInWindow returns the user's records dated at or after since, newest first.
func (s *Store) FindInWindow(ctx context.Context, userID string, t domain.RecordType, since time.Time) ([]domain.Record, error) {
	ctx, span := tracer.Start(ctx, "Postgres.FindInWindow")
	defer span.End()
	span.SetAttributes(attribute.String("record.type", string(t)))

	tbl, err := table(t)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(selectRecords, tbl) + ` AND r.date >= $2 ORDER BY r.date DESC, r.created_at ASC`
	return s.query(ctx, t, query, userID, since)
}

// FindRecent returns at most limit records of the user, newest first.
func (s *Store) FindRecent(ctx context.Context, userID string, t domain.RecordType, limit int) ([]domain.Record, error) {
	ctx, span := tracer.Start(ctx, "Postgres.FindRecent")
	defer span.End()
	span.SetAttributes(attribute.String("record.type", string(t)), attribute.Int("limit", limit))

	tbl, err := table(t)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(selectRecords, tbl) + ` ORDER BY r.date DESC, r.created_at ASC LIMIT $2`
	return s.query(ctx, t, query, userID, limit)
}

func (s *Store) query(ctx context.Context, t domain.RecordType, query string, args ...any) ([]domain.Record, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}

	records, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Record, error) {
		var (
			r                 domain.Record
			amount            string
			name, icon, ctype *string
		)
		if err := row.Scan(&r.ID, &r.UserID, &amount, &r.Date, &r.Source, &name, &icon, &ctype); err != nil {
			return r, err
		}
		a, err := decimal.NewFromString(amount)
		if err != nil {
			return r, fmt.Errorf("parse amount %q: %w", amount, err)
		}
		r.Amount = a
		r.Type = t
		if name != nil {
			r.Category = &domain.Category{Name: *name, Icon: deref(icon), Type: deref(ctype)}
		}
		return r, nil
	})
	if err != nil {
		return nil, fmt.Errorf("collect records: %w", err)
	}
	if records == nil {
		records = []domain.Record{}
	}
	return records, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
