// Package sqlite implements the record store on an embedded SQLite database.
// It backs local development and the end-to-end tests.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/boddenberg/finance-dashboard-bfa/internal/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	_ "modernc.org/sqlite"
)

var tracer = otel.Tracer("sqlite")

// Store implements port.RecordStore on SQLite.
type Store struct {
	db     *sql.DB
	logger *zap.Logger
}

// Open opens (creating if needed) the database at path and migrates it.
func Open(path string, logger *zap.Logger) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	if err := RunMigrations(path); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	logger.Info("sqlite store ready", zap.String("path", path))
	return &Store{db: db, logger: logger}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
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
// Amounts are summed as decimals, not by SQLite's floating point SUM.
func (s *Store) SumAmount(ctx context.Context, userID string, t domain.RecordType) (decimal.Decimal, error) {
	ctx, span := tracer.Start(ctx, "SQLite.SumAmount")
	defer span.End()
	span.SetAttributes(attribute.String("record.type", string(t)))

	tbl, err := table(t)
	if err != nil {
		return decimal.Zero, err
	}

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`SELECT amount FROM %s WHERE user_id = ?`, tbl), userID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("sum %s: %w", tbl, err)
	}
	defer rows.Close()

	total := decimal.Zero
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return decimal.Zero, fmt.Errorf("scan amount: %w", err)
		}
		amount, err := decimal.NewFromString(raw)
		if err != nil {
			return decimal.Zero, fmt.Errorf("parse amount %q: %w", raw, err)
		}
		total = total.Add(amount)
	}
	return total, rows.Err()
}

const selectRecords = `
SELECT r.id, r.user_id, r.amount, r.occurred_at, r.source, c.name, c.icon, c.type
FROM %s r
LEFT JOIN categories c ON c.id = r.category_id
WHERE r.user_id = ?`

// FindInWindow returns the user's records dated at or after since, newest first.
func (s *Store) FindInWindow(ctx context.Context, userID string, t domain.RecordType, since time.Time) ([]domain.Record, error) {
	ctx, span := tracer.Start(ctx, "SQLite.FindInWindow")
	defer span.End()
	span.SetAttributes(attribute.String("record.type", string(t)))

	tbl, err := table(t)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(selectRecords, tbl) + ` AND r.occurred_at >= ? ORDER BY r.occurred_at DESC, r.rowid ASC`
	return s.query(ctx, t, query, userID, since.UnixNano())
}

// FindRecent returns at most limit records of the user, newest first.
func (s *Store) FindRecent(ctx context.Context, userID string, t domain.RecordType, limit int) ([]domain.Record, error) {
	ctx, span := tracer.Start(ctx, "SQLite.FindRecent")
	defer span.End()
	span.SetAttributes(attribute.String("record.type", string(t)), attribute.Int("limit", limit))

	tbl, err := table(t)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(selectRecords, tbl) + ` ORDER BY r.occurred_at DESC, r.rowid ASC LIMIT ?`
	return s.query(ctx, t, query, userID, limit)
}

func (s *Store) query(ctx context.Context, t domain.RecordType, query string, args ...any) ([]domain.Record, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	records := []domain.Record{}
	for rows.Next() {
		var (
			r                 domain.Record
			amount            string
			occurredAt        int64
			name, icon, ctype sql.NullString
		)
		if err := rows.Scan(&r.ID, &r.UserID, &amount, &occurredAt, &r.Source, &name, &icon, &ctype); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		if r.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("parse amount %q: %w", amount, err)
		}
		r.Date = time.Unix(0, occurredAt).UTC()
		r.Type = t
		if name.Valid {
			r.Category = &domain.Category{Name: name.String, Icon: icon.String, Type: ctype.String}
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// InsertCategory stores a category and returns its id.
func (s *Store) InsertCategory(ctx context.Context, userID string, c domain.Category) (string, error) {
	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO categories (id, user_id, name, icon, type) VALUES (?, ?, ?, ?, ?)`,
		id, userID, c.Name, c.Icon, c.Type,
	)
	if err != nil {
		return "", fmt.Errorf("insert category: %w", err)
	}
	return id, nil
}

// InsertRecord stores r in the table for r.Type and returns its id. An empty
// categoryID leaves the record uncategorized.
func (s *Store) InsertRecord(ctx context.Context, r domain.Record, categoryID string) (string, error) {
	tbl, err := table(r.Type)
	if err != nil {
		return "", err
	}
	if r.ID == "" {
		r.ID = uuid.NewString()
	}

	var category sql.NullString
	if categoryID != "" {
		category = sql.NullString{String: categoryID, Valid: true}
	}

	_, err = s.db.ExecContext(ctx,
		fmt.Sprintf(`INSERT INTO %s (id, user_id, category_id, amount, occurred_at, source) VALUES (?, ?, ?, ?, ?, ?)`, tbl),
		r.ID, r.UserID, category, r.Amount.String(), r.Date.UnixNano(), r.Source,
	)
	if err != nil {
		return "", fmt.Errorf("insert into %s: %w", tbl, err)
	}
	return r.ID, nil
}
