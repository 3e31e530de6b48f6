package schedule

import (
	"context"
	"fmt"
	"time"

	"rec-lem-prices/internal/model"
)

// Timeframe tells forward-looking runs (schedules are still decisions) from
// backward-looking ones (flows are metered and fixed).
type Timeframe string

const (
	TimeframePre  Timeframe = "pre"
	TimeframePost Timeframe = "post"
)

// Market is how locally traded energy is matched.
type Market string

const (
	// MarketPool shares each session's local energy pro rata among all
	// pooled buyers and sellers.
	MarketPool Market = "pool"
	// MarketBilateral matches buyers with sellers pair by pair, each pair
	// paying its own grid fee.
	MarketBilateral Market = "bilateral"
)

// Validate accepts the known markets and the empty value, which means pool.
func (m Market) Validate() error {
	switch m {
	case "", MarketPool, MarketBilateral:
		return nil
	}
	return fmt.Errorf("%w: unknown market %q, expected pool or bilateral", model.ErrInvalidParameter, m)
}

// Status is the outcome of a solve.
type Status string

const (
	StatusOptimal    Status = "Optimal"
	StatusInfeasible Status = "Infeasible"
	StatusNotSolved  Status = "Not Solved"
)

// Request is one call into a Scheduler.
type Request struct {
	Community model.Community
	Rounding  model.Rounding
	// LEMPrices is the local market price per session, €/kWh.
	LEMPrices []float64
	Timeframe Timeframe
	// Equilibrium asks for the per-session duals of the local balance
	// constraint. Every member takes part in the pool.
	Equilibrium bool
	// Market defaults to MarketPool.
	Market Market
}

// MemberCost breaks down what a member pays over the horizon, €.
type MemberCost struct {
	Energy      float64 `json:"energy"`
	Degradation float64 `json:"degradation"`
	ExtraPower  float64 `json:"extra_power"`
	Total       float64 `json:"total"`
	// Individual is what the member would pay without the local market.
	Individual float64 `json:"individual"`
	// Pooled is false when the member was kept out of the pool.
	Pooled bool `json:"pooled"`
}

// PoolFlows are a member's energy exchanges per session, kWh.
type PoolFlows struct {
	LocalBought  []float64 `json:"e_pur_pool"`
	LocalSold    []float64 `json:"e_sale_pool"`
	RetailBought []float64 `json:"e_sup"`
	RetailSold   []float64 `json:"e_sur"`
}

// BilateralFlows are a member's local trades by counterpart id, kWh per
// session.
type BilateralFlows struct {
	BoughtFrom map[string][]float64 `json:"e_pur_bilateral"`
	SoldTo     map[string][]float64 `json:"e_sale_bilateral"`
}

// IndividualResult is the stage-one outcome of one member.
type IndividualResult struct {
	MemberID string    `json:"member_id"`
	Status   Status    `json:"status"`
	Cost     float64   `json:"cost"`
	NetLoad  []float64 `json:"e_met"`
}

// Result is what a Scheduler returns for a Request.
type Result struct {
	Status    Status  `json:"status"`
	Objective float64 `json:"obj_value"`
	// NetLoads is the realized net load per member and session, kWh.
	NetLoads map[string][]float64 `json:"e_cmet"`
	// Dispatch is the grid-side storage energy per member and session, kWh.
	// Positive is discharge.
	Dispatch map[string][]float64  `json:"e_bat,omitempty"`
	Costs    map[string]MemberCost `json:"costs"`
	// Pool holds each member's aggregate local and retail flows in either
	// market.
	Pool map[string]PoolFlows `json:"pool"`
	// Bilateral breaks the local flows down by counterpart. Bilateral
	// market only.
	Bilateral  map[string]BilateralFlows `json:"bilateral,omitempty"`
	DualPrices []float64                 `json:"dual_prices,omitempty"`
	Individual []IndividualResult        `json:"individual"`
}

// Scheduler dispatches community members under a candidate LEM price vector.
type Scheduler interface {
	Solve(ctx context.Context, req Request) (*Result, error)
}

// SchedulerFunc adapts a function to the Scheduler interface.
type SchedulerFunc func(ctx context.Context, req Request) (*Result, error)

func (f SchedulerFunc) Solve(ctx context.Context, req Request) (*Result, error) {
	return f(ctx, req)
}

const (
	DefaultSocSteps   = 50
	DefaultPowerSteps = 10
	DefaultTimeout    = 5 * time.Minute
)

// Config tunes the built-in scheduler.
type Config struct {
	// SocSteps controls the energy-content discretization of each storage.
	// Higher = more accurate, slower.
	SocSteps int `yaml:"soc_steps" json:"soc_steps"`
	// PowerSteps controls action discretization between [-Pmax, +Pmax].
	PowerSteps int `yaml:"power_steps" json:"power_steps"`
	// Workers bounds the per-member fan-out. 0 means GOMAXPROCS.
	Workers int `yaml:"workers" json:"workers"`
	// Timeout bounds one Solve call. 0 means DefaultTimeout.
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
}

// WithDefaults fills zero-valued settings.
func (c Config) WithDefaults() Config {
	if c.SocSteps <= 0 {
		c.SocSteps = DefaultSocSteps
	}
	if c.PowerSteps <= 0 {
		c.PowerSteps = DefaultPowerSteps
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	return c
}
