package pricing

import (
	"math"

	"rec-lem-prices/internal/model"
)

// MakeOffers turns each member's net load into at most one offer per session.
// A consuming member bids the cheaper of its retail tariff and the
// market-indexed buy tariff; an injecting member asks the better of its
// feed-in tariff and the market-indexed sell tariff.
//
// The outer slices are indexed by session and always have nSessions entries.
func MakeOffers(members model.Members, nSessions int, marketBuy, marketSell []float64) (buys, sells [][]model.Offer, err error) {
	if len(marketBuy) != nSessions {
		return nil, nil, model.ShapeError("l_market_buy", len(marketBuy), nSessions)
	}
	if len(marketSell) != nSessions {
		return nil, nil, model.ShapeError("l_market_sell", len(marketSell), nSessions)
	}
	for _, m := range members {
		if len(m.NetLoad) != nSessions {
			return nil, nil, model.ShapeError(m.ID+".e_met", len(m.NetLoad), nSessions)
		}
		if len(m.BuyCost) != nSessions {
			return nil, nil, model.ShapeError(m.ID+".l_buy", len(m.BuyCost), nSessions)
		}
		if len(m.SellCost) != nSessions {
			return nil, nil, model.ShapeError(m.ID+".l_sell", len(m.SellCost), nSessions)
		}
	}

	buys = make([][]model.Offer, nSessions)
	sells = make([][]model.Offer, nSessions)
	for _, m := range members {
		for t := 0; t < nSessions; t++ {
			e := m.NetLoad[t]
			side, ok := model.SideFromNetLoad(e)
			if !ok {
				continue
			}
			switch side {
			case model.SideBuy:
				buys[t] = append(buys[t], model.Offer{
					Origin: m.ID,
					Amount: e,
					Value:  math.Min(m.BuyCost[t], marketBuy[t]),
				})
			case model.SideSell:
				sells[t] = append(sells[t], model.Offer{
					Origin: m.ID,
					Amount: math.Abs(e),
					Value:  math.Max(m.SellCost[t], marketSell[t]),
				})
			}
		}
	}
	return buys, sells, nil
}
