package domain

import "github.com/shopspring/decimal"

// Report is the dashboard payload returned to the frontend.
//
// Prediction is nil when the predictor was unavailable and an empty slice
// when it answered with no items; the two serialize to null and [].
type Report struct {
	TotalBalance       decimal.Decimal  `json:"totalBalance"`
	TotalIncome        decimal.Decimal  `json:"totalIncome"`
	TotalExpenses      decimal.Decimal  `json:"totalExpenses"`
	WindowedExpense    WindowAggregate  `json:"windowedExpense"`
	WindowedIncome     WindowAggregate  `json:"windowedIncome"`
	RecentTransactions []Record         `json:"recentTransactions"`
	Prediction         []PredictionItem `json:"prediction"`
}

// ReportOptions controls the windows and recent-transaction limit of a report.
type ReportOptions struct {
	IncomeWindowDays  int
	ExpenseWindowDays int
	RecentLimit       int
}

// Validate checks that every option is positive.
func (o ReportOptions) Validate() error {
	switch {
	case o.IncomeWindowDays <= 0:
		return &ErrValidation{Field: "incomeWindowDays", Message: "must be positive"}
	case o.ExpenseWindowDays <= 0:
		return &ErrValidation{Field: "expenseWindowDays", Message: "must be positive"}
	case o.RecentLimit <= 0:
		return &ErrValidation{Field: "recentLimit", Message: "must be positive"}
	}
	return nil
}
