package pricing

import (
	"fmt"
	"math"

	"rec-lem-prices/internal/model"
)

// Mechanism names a pricing algorithm.
// Keep these values stable; they are used in config files and the API.
type Mechanism string

const (
	MechanismCrossingValue Mechanism = "crossing_value"
	MechanismMMR           Mechanism = "mmr"
	MechanismSDR           Mechanism = "sdr"
	// MechanismDual reads prices from the scheduler's balance-constraint
	// duals instead of running an auction. It has no per-session Func.
	MechanismDual Mechanism = "dual"
)

// Mechanisms lists every supported mechanism.
var Mechanisms = []Mechanism{MechanismCrossingValue, MechanismMMR, MechanismSDR, MechanismDual}

// Func prices one session. Every auction mechanism shares this signature.
type Func func(buys, sells []model.Offer) (float64, error)

// Params selects a mechanism and carries its parameters.
type Params struct {
	Mechanism Mechanism `json:"mechanism" yaml:"mechanism"`
	// Pruned screens offers down to the accepted ones first (MMR, SDR).
	Pruned bool `json:"pruned" yaml:"pruned"`
	// Divisor for MMR; 2 is the midpoint.
	Divisor float64 `json:"divisor,omitempty" yaml:"divisor,omitempty"`
	// Compensation for SDR, within [0, 1]; 0 is plain SDR.
	Compensation float64 `json:"compensation,omitempty" yaml:"compensation,omitempty"`
	// SmallIncrement biases crossing-value sort keys.
	SmallIncrement float64 `json:"small_increment,omitempty" yaml:"small_increment,omitempty"`
}

// WithDefaults fills zero-valued parameters that have a default.
func (p Params) WithDefaults() Params {
	if p.Mechanism == MechanismMMR && p.Divisor == 0 {
		p.Divisor = DefaultDivisor
	}
	return p
}

func (p Params) Validate() error {
	switch p.Mechanism {
	case MechanismCrossingValue, MechanismDual:
	case MechanismMMR:
		if p.Divisor <= 0 || math.IsNaN(p.Divisor) || math.IsInf(p.Divisor, 0) {
			return fmt.Errorf("%w: divisor must be > 0, got %g", model.ErrInvalidParameter, p.Divisor)
		}
	case MechanismSDR:
		if p.Compensation < 0 || p.Compensation > 1 || math.IsNaN(p.Compensation) {
			return fmt.Errorf("%w: compensation must be within [0, 1], got %g", model.ErrInvalidParameter, p.Compensation)
		}
	default:
		return fmt.Errorf("%w: unknown mechanism %q, expected one of crossing_value, mmr, sdr, dual", model.ErrInvalidParameter, p.Mechanism)
	}
	if p.SmallIncrement < 0 || math.IsNaN(p.SmallIncrement) {
		return fmt.Errorf("%w: small increment must be >= 0, got %g", model.ErrInvalidParameter, p.SmallIncrement)
	}
	return nil
}

// Name is a short human label, e.g. "pruned mmr".
func (p Params) Name() string {
	name := string(p.Mechanism)
	if p.Mechanism == MechanismSDR && p.Compensation > 0 {
		name = "sdrc"
	}
	if p.Pruned && (p.Mechanism == MechanismMMR || p.Mechanism == MechanismSDR) {
		name = "pruned " + name
	}
	return name
}

// Func validates the parameters and returns the session pricing function.
func (p Params) Func() (Func, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	switch p.Mechanism {
	case MechanismCrossingValue:
		eps := p.SmallIncrement
		return func(buys, sells []model.Offer) (float64, error) {
			return CrossingValue(buys, sells, eps)
		}, nil
	case MechanismMMR:
		divisor := p.Divisor
		if p.Pruned {
			return func(buys, sells []model.Offer) (float64, error) {
				return PrunedMMR(buys, sells, divisor)
			}, nil
		}
		return func(buys, sells []model.Offer) (float64, error) {
			return MMR(buys, sells, divisor)
		}, nil
	case MechanismSDR:
		comp := p.Compensation
		if p.Pruned {
			return func(buys, sells []model.Offer) (float64, error) {
				return PrunedSDR(buys, sells, comp)
			}, nil
		}
		return func(buys, sells []model.Offer) (float64, error) {
			return SDR(buys, sells, comp)
		}, nil
	default:
		return nil, fmt.Errorf("%w: mechanism %q has no session pricing function", model.ErrInvalidParameter, p.Mechanism)
	}
}

// SessionPrices applies fn to every session independently.
func SessionPrices(fn Func, buys, sells [][]model.Offer) ([]float64, error) {
	if len(buys) != len(sells) {
		return nil, model.ShapeError("sell offer sessions", len(sells), len(buys))
	}
	prices := make([]float64, len(buys))
	for t := range buys {
		p, err := fn(buys[t], sells[t])
		if err != nil {
			return nil, fmt.Errorf("session %d: %w", t, err)
		}
		prices[t] = p
	}
	return prices, nil
}

// Clearing is a session price together with the offers that would transact.
type Clearing struct {
	Price         float64       `json:"price"`
	AcceptedBuys  []model.Offer `json:"accepted_buys"`
	AcceptedSells []model.Offer `json:"accepted_sells"`
	OffersCross   bool          `json:"offers_cross"`
}

// Clear prices one session and screens its offers.
func Clear(fn Func, buys, sells []model.Offer) (Clearing, error) {
	price, err := fn(buys, sells)
	if err != nil {
		return Clearing{}, err
	}
	ab, as := AcceptedOffers(buys, sells)
	return Clearing{
		Price:         price,
		AcceptedBuys:  ab,
		AcceptedSells: as,
		OffersCross:   OffersCross(buys, sells),
	}, nil
}
