package models

import (
	"time"

	"rec-lem-prices/internal/analysis"
	"rec-lem-prices/internal/ledger"
	"rec-lem-prices/internal/model"
)

// PriceResponse is the clearing of one session
type PriceResponse struct {
	Mechanism     string        `json:"mechanism"`
	Price         float64       `json:"price"`
	AcceptedBuys  []model.Offer `json:"accepted_buys"`
	AcceptedSells []model.Offer `json:"accepted_sells"`
	OffersCross   bool          `json:"offers_cross"`
}

// RunResponse represents the response from a price discovery run
type RunResponse struct {
	ID        string       `json:"id,omitempty"`
	Status    string       `json:"status"`
	CreatedAt time.Time    `json:"created_at"`
	Summary   RunSummary   `json:"summary"`
	History   [][]float64  `json:"history,omitempty"`
	Ledger    []ledger.Row `json:"ledger,omitempty"`
}

// RunSummary contains the outcome of a run
type RunSummary struct {
	Mechanism  string              `json:"mechanism"`
	Timeframe  string              `json:"timeframe"`
	State      string              `json:"state"`
	Prices     []float64           `json:"prices"`
	Criterion  *float64            `json:"criterion"`
	Iterations int                 `json:"iterations"`
	Objective  float64             `json:"objective"`
	TradedKWh  float64             `json:"traded_kwh"`
	Stats      analysis.PriceStats `json:"stats"`
}

// LedgerResponse is the ledger of a stored run
type LedgerResponse struct {
	ID        string       `json:"id"`
	TradedKWh float64      `json:"traded_kwh"`
	Value     float64      `json:"value"`
	Ledger    []ledger.Row `json:"ledger"`
}

// CompareRunResponse represents the response from a comparison
type CompareRunResponse struct {
	Comparison []ComparisonResult `json:"comparison"`
}

// ComparisonResult contains results for one variation. Rank is 0 and Error
// is set when the variation failed.
type ComparisonResult struct {
	Rank    int          `json:"rank"`
	Name    string       `json:"name"`
	Summary *RunSummary  `json:"summary,omitempty"`
	Error   *ErrorDetail `json:"error,omitempty"`
}

// MechanismInfo represents information about a pricing mechanism
type MechanismInfo struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  []ParameterInfo `json:"parameters"`
}

// ParameterInfo describes a mechanism parameter
type ParameterInfo struct {
	Name        string      `json:"name"`
	Type        string      `json:"type"` // "float", "bool"
	Description string      `json:"description"`
	Default     interface{} `json:"default,omitempty"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error information
type ErrorDetail struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}
