package models

import (
	"rec-lem-prices/internal/model"
	"rec-lem-prices/internal/pricing"
)

// PriceRequest prices a single market session.
type PriceRequest struct {
	Buys    []model.Offer  `json:"buys"`
	Sells   []model.Offer  `json:"sells"`
	Pricing pricing.Params `json:"pricing"`
}

// RunRequest represents the request body for a full price discovery run
type RunRequest struct {
	Community model.Community `json:"community"`
	Timeframe string          `json:"timeframe,omitempty"` // "pre" (default) or "post"
	Rounding  string          `json:"rounding,omitempty"`  // "int" (default), "floor", "ceil"
	Market    string          `json:"market,omitempty"`    // "pool" (default) or "bilateral"
	Pricing   pricing.Params  `json:"pricing"`
	Options   RunOptions      `json:"options,omitempty"`
}

// RunOptions contains optional run parameters
type RunOptions struct {
	IncludeLedger  bool `json:"include_ledger,omitempty"`  // default: false
	IncludeHistory bool `json:"include_history,omitempty"` // default: false
	SocSteps       int  `json:"soc_steps,omitempty"`       // 0 = scheduler default
	PowerSteps     int  `json:"power_steps,omitempty"`     // 0 = scheduler default
}

// CompareRunRequest runs several pricing variations on the same community.
// An empty Variations list compares every mechanism with its defaults.
type CompareRunRequest struct {
	Community  model.Community `json:"community"`
	Timeframe  string          `json:"timeframe,omitempty"`
	Rounding   string          `json:"rounding,omitempty"`
	Market     string          `json:"market,omitempty"`
	Variations []RunVariation  `json:"variations,omitempty"`
}

// RunVariation defines a variation to test
type RunVariation struct {
	Name    string         `json:"name,omitempty"` // defaults to the mechanism label
	Pricing pricing.Params `json:"pricing"`
}
