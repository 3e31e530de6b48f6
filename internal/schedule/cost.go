package schedule

import (
	"math"

	"rec-lem-prices/internal/model"
)

// tariffs prices a member's exchanges with the outside world for one solve.
type tariffs struct {
	buy        []float64 // €/kWh paid per kWh drawn
	sell       []float64 // €/kWh earned per kWh injected
	extraCost  float64   // €/kW above maxPowerKW
	maxPowerKW float64   // 0 = unlimited
	deltaT     float64
}

// retailTariffs is the best a member can do on its own: the cheaper of its
// retail and market-indexed tariffs when drawing, the better one when
// injecting. These are also the values the member offers at.
func retailTariffs(c model.Community, m model.Member) tariffs {
	n := len(m.BuyTariff)
	tr := tariffs{
		buy:        make([]float64, n),
		sell:       make([]float64, n),
		extraCost:  c.ExtraPowerCost,
		maxPowerKW: m.MaxPowerKW,
		deltaT:     c.DeltaT,
	}
	for t := 0; t < n; t++ {
		tr.buy[t] = math.Min(m.BuyTariff[t], c.MarketBuy[t])
		tr.sell[t] = math.Max(m.SellTariff[t], c.MarketSell[t])
	}
	return tr
}

// withLocalMarket lets the member buy locally at lem+grid and sell at lem
// whenever that beats its own tariffs.
func (tr tariffs) withLocalMarket(lem, grid []float64) tariffs {
	out := tr
	out.buy = make([]float64, len(tr.buy))
	out.sell = make([]float64, len(tr.sell))
	for t := range tr.buy {
		out.buy[t] = math.Min(tr.buy[t], lem[t]+grid[t])
		out.sell[t] = math.Max(tr.sell[t], lem[t])
	}
	return out
}

// extraPower is the penalty for exceeding the contracted power with one
// session's net load.
func (tr tariffs) extraPower(net float64) float64 {
	if tr.maxPowerKW <= 0 || tr.extraCost == 0 {
		return 0
	}
	over := math.Abs(net)/tr.deltaT - tr.maxPowerKW
	if over <= 0 {
		return 0
	}
	return over * tr.extraCost
}

// energy is the retail cost of a signed net load in session t.
// Injection earns money, so the result is negative then.
func (tr tariffs) energy(t int, net float64) float64 {
	if net > 0 {
		return net * tr.buy[t]
	}
	return net * tr.sell[t]
}

func (tr tariffs) session(t int, net float64) float64 {
	return tr.energy(t, net) + tr.extraPower(net)
}

// individualCost prices a whole schedule without the local market.
func (tr tariffs) individualCost(net []float64, degradation float64) MemberCost {
	c := MemberCost{Degradation: degradation}
	for t, e := range net {
		c.Energy += tr.energy(t, e)
		c.ExtraPower += tr.extraPower(e)
	}
	c.Total = c.Energy + c.Degradation + c.ExtraPower
	c.Individual = c.Total
	return c
}

// retailFlows splits a net load series into retail purchases and sales.
func retailFlows(net []float64) PoolFlows {
	f := newPoolFlows(len(net))
	for t, e := range net {
		if e > 0 {
			f.RetailBought[t] = e
		} else {
			f.RetailSold[t] = -e
		}
	}
	return f
}

func newPoolFlows(n int) PoolFlows {
	return PoolFlows{
		LocalBought:  make([]float64, n),
		LocalSold:    make([]float64, n),
		RetailBought: make([]float64, n),
		RetailSold:   make([]float64, n),
	}
}
