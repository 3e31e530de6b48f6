package model

import (
	"errors"
	"fmt"
)

// Member holds the forecast (pre-delivery) or metered (post-delivery) data of
// one community member.
// Units:
// - Consumption, Generation: kWh per session
// - BuyTariff, SellTariff: €/kWh retail tariffs
// - MaxPowerKW: kW contracted power at the meter (0 = unlimited)
type Member struct {
	ID          string    `json:"id" yaml:"id"`
	Consumption []float64 `json:"e_c" yaml:"e_c"`
	Generation  []float64 `json:"e_g" yaml:"e_g"`
	BuyTariff   []float64 `json:"l_buy" yaml:"l_buy"`
	SellTariff  []float64 `json:"l_sell" yaml:"l_sell"`
	MaxPowerKW  float64   `json:"max_p" yaml:"max_p"`
	Storage     []Storage `json:"btm_storage,omitempty" yaml:"btm_storage,omitempty"`
}

// Community is the input of a price discovery run.
// Units:
// - Horizon, DeltaT: hours
// - ExtraPowerCost: €/kW above a member's contracted power
// - GridTariff: €/kWh paid on energy traded locally
// - MarketBuy, MarketSell: €/kWh market-indexed tariffs per session
// - PairGridTariff: €/kWh paid by a buyer on energy bought from one seller,
//   by buyer id then seller id. Only bilateral trades use it; pairs that are
//   not listed pay GridTariff.
type Community struct {
	Members        []Member                        `json:"members" yaml:"members"`
	Horizon        float64                         `json:"horizon" yaml:"horizon"`
	DeltaT         float64                         `json:"delta_t" yaml:"delta_t"`
	ExtraPowerCost float64                         `json:"l_extra" yaml:"l_extra"`
	GridTariff     []float64                       `json:"l_grid" yaml:"l_grid"`
	MarketBuy      []float64                       `json:"l_market_buy" yaml:"l_market_buy"`
	MarketSell     []float64                       `json:"l_market_sell" yaml:"l_market_sell"`
	PairGridTariff map[string]map[string][]float64 `json:"l_grid_pairs,omitempty" yaml:"l_grid_pairs,omitempty"`
}

// Validate checks the community against its session count and returns it.
func (c Community) Validate(r Rounding) (int, error) {
	n, err := SessionCount(c.Horizon, c.DeltaT, r)
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, fmt.Errorf("%w: horizon shorter than one session", ErrInvalidParameter)
	}
	if len(c.Members) == 0 {
		return 0, errors.New("community has no members")
	}
	if c.ExtraPowerCost < 0 {
		return 0, fmt.Errorf("%w: l_extra must be >= 0", ErrInvalidParameter)
	}
	for name, s := range map[string][]float64{
		"l_grid":        c.GridTariff,
		"l_market_buy":  c.MarketBuy,
		"l_market_sell": c.MarketSell,
	} {
		if len(s) != n {
			return 0, ShapeError(name, len(s), n)
		}
	}

	seen := make(map[string]bool, len(c.Members))
	for _, m := range c.Members {
		if m.ID == "" {
			return 0, errors.New("member id is required")
		}
		if seen[m.ID] {
			return 0, fmt.Errorf("duplicate member id %q", m.ID)
		}
		seen[m.ID] = true
		if m.MaxPowerKW < 0 {
			return 0, fmt.Errorf("%w: member %s: max_p must be >= 0", ErrInvalidParameter, m.ID)
		}
		series := []struct {
			name string
			s    []float64
		}{
			{"e_c", m.Consumption},
			{"e_g", m.Generation},
			{"l_buy", m.BuyTariff},
			{"l_sell", m.SellTariff},
		}
		for _, sr := range series {
			if len(sr.s) != n {
				return 0, ShapeError(m.ID+"."+sr.name, len(sr.s), n)
			}
		}
		for i, st := range m.Storage {
			if err := st.Validate(); err != nil {
				return 0, fmt.Errorf("%w: member %s storage %d: %v", ErrInvalidParameter, m.ID, i, err)
			}
		}
	}

	for buyer, sellers := range c.PairGridTariff {
		if !seen[buyer] {
			return 0, fmt.Errorf("%w: l_grid_pairs: unknown member %q", ErrInvalidParameter, buyer)
		}
		for seller, fees := range sellers {
			if !seen[seller] || seller == buyer {
				return 0, fmt.Errorf("%w: l_grid_pairs.%s: invalid counterpart %q", ErrInvalidParameter, buyer, seller)
			}
			if len(fees) != n {
				return 0, ShapeError("l_grid_pairs."+buyer+"."+seller, len(fees), n)
			}
		}
	}
	return n, nil
}

// PairFee is the grid fee the buyer pays in session t on energy bought from
// the seller.
func (c Community) PairFee(buyer, seller string, t int) float64 {
	if fees, ok := c.PairGridTariff[buyer][seller]; ok {
		return fees[t]
	}
	return c.GridTariff[t]
}

// Member returns the member with the given id.
func (c Community) Member(id string) (Member, bool) {
	for _, m := range c.Members {
		if m.ID == id {
			return m, true
		}
	}
	return Member{}, false
}

// WithoutStorage returns a copy of the community where no member owns storage.
// Historical flows already include whatever the batteries did.
func (c Community) WithoutStorage() Community {
	out := c
	out.Members = make([]Member, len(c.Members))
	for i, m := range c.Members {
		m.Storage = nil
		out.Members[i] = m
	}
	return out
}

// NetLoad is e_c - e_g for every session.
func (m Member) NetLoad() []float64 {
	out := make([]float64, len(m.Consumption))
	for t := range out {
		out[t] = m.Consumption[t] - m.Generation[t]
	}
	return out
}

// InitialMembers builds the first member snapshot set from forecasts.
func (c Community) InitialMembers() Members {
	out := make(Members, 0, len(c.Members))
	for _, m := range c.Members {
		out = append(out, MemberState{
			ID:       m.ID,
			NetLoad:  m.NetLoad(),
			BuyCost:  m.BuyTariff,
			SellCost: m.SellTariff,
		})
	}
	return out
}
