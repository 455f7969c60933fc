// Package domain defines the core entities of the finance dashboard BFA.
// These models are independent of any record store or transport and are the
// canonical data structures passed between store adapters, services and
// handlers.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Monetary values are emitted as JSON numbers, not strings.
func init() {
	decimal.MarshalJSONWithoutQuotes = true
}

// DefaultCategoryLabel is used wherever a category name is required but the
// record has no resolved category.
const DefaultCategoryLabel = "Other"

// ============================================================
// Records
// ============================================================

// RecordType distinguishes income from expense entries.
type RecordType string

const (
	RecordIncome  RecordType = "income"
	RecordExpense RecordType = "expense"
)

// Category is the lazily resolved category of a record.
type Category struct {
	Name string `json:"name"`
	Icon string `json:"icon,omitempty"`
	Type string `json:"type,omitempty"`
}

// Record is a single income or expense entry owned by one user.
type Record struct {
	ID       string          `json:"id"`
	UserID   string          `json:"userId"`
	Category *Category       `json:"category"`
	Amount   decimal.Decimal `json:"amount"`
	Date     time.Time       `json:"date"`
	Type     RecordType      `json:"type"`
	Source   string          `json:"source,omitempty"`
}

// CategoryName returns the resolved category name or DefaultCategoryLabel.
func (r Record) CategoryName() string {
	if r.Category == nil || r.Category.Name == "" {
		return DefaultCategoryLabel
	}
	return r.Category.Name
}

// ============================================================
// Aggregates
// ============================================================

// WindowAggregate is a trailing window of records ending at "now".
// Records are ordered by date, newest first.
type WindowAggregate struct {
	WindowDays int             `json:"windowDays"`
	Total      decimal.Decimal `json:"total"`
	Records    []Record        `json:"records"`
}

// Aggregation is everything the aggregator computes for one user.
type Aggregation struct {
	UserID             string
	GeneratedAt        time.Time
	TotalIncome        decimal.Decimal
	TotalExpense       decimal.Decimal
	WindowedIncome     WindowAggregate
	WindowedExpense    WindowAggregate
	RecentTransactions []Record
}
