package domain

import "github.com/shopspring/decimal"

// Trend is the predictor's classification of the forecast against the last
// observed month.
type Trend string

const (
	TrendIncreasingStrong Trend = "increasing_strong"
	TrendIncreasingMild   Trend = "increasing_mild"
	TrendStable           Trend = "stable"
	TrendDecreasingMild   Trend = "decreasing_mild"
	TrendDecreasingStrong Trend = "decreasing_strong"
)

// PredictionItem is one forecast group returned by the prediction service.
type PredictionItem struct {
	Group      string          `json:"group"`
	Predicted  decimal.Decimal `json:"predicted"`
	Confidence decimal.Decimal `json:"confidence"`
	Trend      Trend           `json:"trend,omitempty"`
	Message    string          `json:"message,omitempty"`
}

// PredictionRecord is the predictor's input shape for a single expense.
type PredictionRecord struct {
	Date     string          `json:"date"` // YYYY-MM-DD
	Amount   decimal.Decimal `json:"amount"`
	Category string          `json:"category"`
}

// PredictionRequest is the body of POST /predict.
type PredictionRequest struct {
	Records []PredictionRecord `json:"records"`
}
