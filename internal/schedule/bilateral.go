package schedule

import (
	"math"
	"sort"

	"rec-lem-prices/internal/model"
)

// pair is a buyer and a seller that may trade in one session.
type pair struct {
	buyer, seller int
	fee           float64
}

// clearBilateral matches pooled buyers with pooled sellers session by
// session, cheapest grid fee first, and prices every member's flows. A pair
// only trades when buying at the local price plus its fee beats the buyer's
// own tariff and selling at the local price beats the seller's. Members
// outside the pool pay their individual cost.
func (s *PoolScheduler) clearBilateral(c model.Community, lem []float64, plans []*memberPlan, pooled []bool, n int) ([]MemberCost, []PoolFlows, []BilateralFlows) {
	costs := make([]MemberCost, len(plans))
	flows := make([]PoolFlows, len(plans))
	trades := make([]BilateralFlows, len(plans))

	for i, p := range plans {
		trades[i] = BilateralFlows{
			BoughtFrom: make(map[string][]float64),
			SoldTo:     make(map[string][]float64),
		}
		if !pooled[i] {
			costs[i] = p.indCost
			flows[i] = retailFlows(p.individual.NetLoad)
			continue
		}
		flows[i] = newPoolFlows(n)
		costs[i] = MemberCost{Degradation: p.collective.Degradation, Individual: p.indCost.Total, Pooled: true}
	}

	demand := make([]float64, len(plans))
	supply := make([]float64, len(plans))
	var pairs []pair
	for t := 0; t < n; t++ {
		for i, p := range plans {
			demand[i], supply[i] = 0, 0
			if !pooled[i] {
				continue
			}
			if e := p.collective.NetLoad[t]; e > 0 {
				demand[i] = e
			} else if e < 0 && lem[t] >= p.retail.sell[t] {
				supply[i] = -e
			}
		}

		pairs = pairs[:0]
		for b, buyer := range plans {
			if demand[b] == 0 {
				continue
			}
			for k, seller := range plans {
				if supply[k] == 0 || k == b {
					continue
				}
				fee := c.PairFee(buyer.member.ID, seller.member.ID, t)
				if lem[t]+fee <= buyer.retail.buy[t] {
					pairs = append(pairs, pair{buyer: b, seller: k, fee: fee})
				}
			}
		}
		sort.SliceStable(pairs, func(i, j int) bool { return pairs[i].fee < pairs[j].fee })

		for _, pr := range pairs {
			q := math.Min(demand[pr.buyer], supply[pr.seller])
			if q <= 0 {
				continue
			}
			demand[pr.buyer] -= q
			supply[pr.seller] -= q

			buyer, seller := plans[pr.buyer].member.ID, plans[pr.seller].member.ID
			flows[pr.buyer].LocalBought[t] += q
			flows[pr.seller].LocalSold[t] += q
			trade(trades[pr.buyer].BoughtFrom, seller, n)[t] += q
			trade(trades[pr.seller].SoldTo, buyer, n)[t] += q
			costs[pr.buyer].Energy += q * (lem[t] + pr.fee)
			costs[pr.seller].Energy -= q * lem[t]
		}

		for i, p := range plans {
			if !pooled[i] {
				continue
			}
			e := p.collective.NetLoad[t]
			f := flows[i]
			if e > 0 {
				f.RetailBought[t] = e - f.LocalBought[t]
			} else {
				f.RetailSold[t] = -e - f.LocalSold[t]
			}
			costs[i].Energy += f.RetailBought[t]*p.retail.buy[t] - f.RetailSold[t]*p.retail.sell[t]
			costs[i].ExtraPower += p.retail.extraPower(e)
		}
	}

	for i := range costs {
		if pooled[i] {
			costs[i].Total = costs[i].Energy + costs[i].Degradation + costs[i].ExtraPower
		}
	}
	return costs, flows, trades
}

// trade returns the counterpart's series, creating it on first use.
func trade(byCounterpart map[string][]float64, id string, n int) []float64 {
	series, ok := byCounterpart[id]
	if !ok {
		series = make([]float64, n)
		byCounterpart[id] = series
	}
	return series
}

// cheapestFees is, per session, the lowest grid fee a member pays on energy
// bought from any other member.
func cheapestFees(c model.Community, id string) []float64 {
	out := make([]float64, len(c.GridTariff))
	for t := range out {
		out[t] = math.Inf(1)
		for _, m := range c.Members {
			if m.ID != id {
				out[t] = math.Min(out[t], c.PairFee(id, m.ID, t))
			}
		}
		if math.IsInf(out[t], 1) {
			// Nobody to trade with.
			out[t] = c.GridTariff[t]
		}
	}
	return out
}
