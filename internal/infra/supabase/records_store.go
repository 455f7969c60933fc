package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/boddenberg/finance-dashboard-bfa/internal/domain"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
)

// ============================================================
// Records (implements port.RecordStore)
// ============================================================

const recordColumns = "id,user_id,category_id,amount,date,source"

// supabaseRecord maps the incomes/expenses table columns.
type supabaseRecord struct {
	ID         string          `json:"id"`
	UserID     string          `json:"user_id"`
	CategoryID *string         `json:"category_id"`
	Amount     decimal.Decimal `json:"amount"`
	Date       string          `json:"date"`
	Source     *string         `json:"source"`
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
func (c *Client) SumAmount(ctx context.Context, userID string, t domain.RecordType) (decimal.Decimal, error) {
	ctx, span := tracer.Start(ctx, "Supabase.SumAmount")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID), attribute.String("record.type", string(t)))

	tbl, err := table(t)
	if err != nil {
		return decimal.Zero, err
	}

	path := fmt.Sprintf("%s?select=amount&user_id=eq.%s", tbl, url.QueryEscape(userID))
	body, err := c.get(ctx, path)
	if err != nil {
		return decimal.Zero, err
	}
	if len(body) == 0 {
		return decimal.Zero, nil
	}

	var rows []struct {
		Amount decimal.Decimal `json:"amount"`
	}
	if err := json.Unmarshal(body, &rows); err != nil {
		return decimal.Zero, fmt.Errorf("decode %s amounts: %w", tbl, err)
	}

	total := decimal.Zero
	for _, r := range rows {
		total = total.Add(r.Amount)
	}
	return total, nil
}

// FindInWindow returns the user's records dated at or after since, newest first.
func (c *Client) FindInWindow(ctx context.Context, userID string, t domain.RecordType, since time.Time) ([]domain.Record, error) {
	ctx, span := tracer.Start(ctx, "Supabase.FindInWindow")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID), attribute.String("record.type", string(t)))

	tbl, err := table(t)
	if err != nil {
		return nil, err
	}

	path := fmt.Sprintf("%s?select=%s&user_id=eq.%s&date=gte.%s&order=date.desc",
		tbl, recordColumns, url.QueryEscape(userID), url.QueryEscape(since.UTC().Format(time.RFC3339Nano)))
	return c.listRecords(ctx, path, t)
}

// FindRecent returns at most limit records of the user, newest first.
func (c *Client) FindRecent(ctx context.Context, userID string, t domain.RecordType, limit int) ([]domain.Record, error) {
	ctx, span := tracer.Start(ctx, "Supabase.FindRecent")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID), attribute.Int("limit", limit))

	tbl, err := table(t)
	if err != nil {
		return nil, err
	}

	path := fmt.Sprintf("%s?select=%s&user_id=eq.%s&order=date.desc&limit=%d",
		tbl, recordColumns, url.QueryEscape(userID), limit)
	return c.listRecords(ctx, path, t)
}

func (c *Client) listRecords(ctx context.Context, path string, t domain.RecordType) ([]domain.Record, error) {
	body, err := c.get(ctx, path)
	if err != nil {
		return nil, err
	}
	if len(body) == 0 {
		return []domain.Record{}, nil
	}

	var rows []supabaseRecord
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode records: %w", err)
	}

	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		if r.CategoryID != nil {
			ids = append(ids, *r.CategoryID)
		}
	}
	categories, err := c.resolveCategories(ctx, ids)
	if err != nil {
		return nil, err
	}

	records := make([]domain.Record, 0, len(rows))
	for _, r := range rows {
		date, err := parseDate(r.Date)
		if err != nil {
			return nil, fmt.Errorf("record %s: %w", r.ID, err)
		}
		rec := domain.Record{
			ID:     r.ID,
			UserID: r.UserID,
			Amount: r.Amount,
			Date:   date,
			Type:   t,
		}
		if r.Source != nil {
			rec.Source = *r.Source
		}
		if r.CategoryID != nil {
			if cat, ok := categories[*r.CategoryID]; ok {
				cat := cat
				rec.Category = &cat
			}
		}
		records = append(records, rec)
	}
	return records, nil
}

func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	// timestamp without time zone columns come back without an offset
	if t, err := time.Parse("2006-01-02T15:04:05.999999", s); err == nil {
		return t, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return t, nil
}
