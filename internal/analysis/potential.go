package analysis

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"rec-lem-prices/internal/model"
)

// PriceStats summarizes a price vector, €/kWh.
type PriceStats struct {
	Count int `json:"count"`

	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
	P05    float64 `json:"p05"`
	P95    float64 `json:"p95"`

	SpreadP95P05 float64 `json:"spread_p95_p05"`
}

func ComputePriceStats(prices []float64) PriceStats {
	p := PriceStats{Count: len(prices)}
	if len(prices) == 0 {
		return p
	}
	vals := append([]float64(nil), prices...)
	sort.Float64s(vals)
	p.Min = floats.Min(vals)
	p.Max = floats.Max(vals)
	p.Mean = stat.Mean(vals, nil)
	if len(vals) > 1 {
		p.StdDev = stat.StdDev(vals, nil)
	}
	p.P05 = percentileSorted(vals, 0.05)
	p.P95 = percentileSorted(vals, 0.95)
	p.SpreadP95P05 = p.P95 - p.P05
	return p
}

func percentileSorted(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[len(sorted)-1]
	}
	// Linear interpolation between order stats.
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

// TradePotential is a community-level summary of how much energy could change
// hands locally, independent of any pricing mechanism.
type TradePotential struct {
	Sessions int `json:"sessions"`

	DemandKWh float64 `json:"demand_kwh"`
	SupplyKWh float64 `json:"supply_kwh"`

	// MaxLocalKWh sums, per session, the smaller of forecast demand and
	// supply. No pool can trade more without storage shifting energy.
	MaxLocalKWh float64 `json:"max_local_kwh"`

	// RetailSpread is MaxLocalKWh valued at the per-session gap between the
	// cheapest retail buy and the best retail sell, in €.
	RetailSpread float64 `json:"retail_spread"`
}

func ComputeTradePotential(members model.Members, nSessions int) TradePotential {
	p := TradePotential{Sessions: nSessions}
	for t := 0; t < nSessions; t++ {
		demand, supply := 0.0, 0.0
		minBuy, maxSell := math.Inf(1), math.Inf(-1)
		for _, m := range members {
			if t >= len(m.NetLoad) {
				continue
			}
			switch e := m.NetLoad[t]; {
			case e > 0:
				demand += e
				if t < len(m.BuyCost) {
					minBuy = math.Min(minBuy, m.BuyCost[t])
				}
			case e < 0:
				supply -= e
				if t < len(m.SellCost) {
					maxSell = math.Max(maxSell, m.SellCost[t])
				}
			}
		}
		local := math.Min(demand, supply)
		p.DemandKWh += demand
		p.SupplyKWh += supply
		p.MaxLocalKWh += local
		if local > 0 && minBuy > maxSell {
			p.RetailSpread += local * (minBuy - maxSell)
		}
	}
	return p
}
