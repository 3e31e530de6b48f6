package pricing

import "rec-lem-prices/internal/model"

type rescued int

const (
	rescuedBoth rescued = iota
	rescuedBuy
	rescuedSell
)

// AcceptedOffers screens a session's offers down to the ones that would
// transact, in whole or in part, if the pool cleared competitively.
// Accepted offers are returned as offered (not cumulative), in merit order.
// Both results are empty when either side has no offers.
func AcceptedOffers(buys, sells []model.Offer) (acceptedBuys, acceptedSells []model.Offer) {
	if len(buys) == 0 || len(sells) == 0 {
		return nil, nil
	}
	buyers, sellers := meritOrder(buys, sells, 0)

	s, b := 0, 0
	last := rescuedBoth
walk:
	for s < len(sellers) && b < len(buyers) {
		switch {
		case sellers[s].Value > buyers[b].Value:
			// No more offers cross.
			break walk
		case buyers[b].Cumulative < sellers[s].Cumulative:
			acceptedBuys = append(acceptedBuys, buyers[b].Offer)
			b++
			last = rescuedBuy
		case sellers[s].Cumulative < buyers[b].Cumulative:
			acceptedSells = append(acceptedSells, sellers[s].Offer)
			s++
			last = rescuedSell
		default:
			acceptedBuys = append(acceptedBuys, buyers[b].Offer)
			acceptedSells = append(acceptedSells, sellers[s].Offer)
			b++
			s++
			last = rescuedBoth
		}
	}

	// The counterpart of the last one-sided acceptance was partially filled.
	switch last {
	case rescuedBuy:
		if s < len(sellers) {
			acceptedSells = append(acceptedSells, sellers[s].Offer)
		}
	case rescuedSell:
		if b < len(buyers) {
			acceptedBuys = append(acceptedBuys, buyers[b].Offer)
		}
	}
	return acceptedBuys, acceptedSells
}

// OffersCross reports whether the least valuable buy offer is priced below
// the most valuable sell offer, i.e. some offers cannot transact.
func OffersCross(buys, sells []model.Offer) bool {
	if len(buys) == 0 || len(sells) == 0 {
		return false
	}
	buyers, sellers := meritOrder(buys, sells, 0)
	return buyers[len(buyers)-1].Value < sellers[len(sellers)-1].Value
}
