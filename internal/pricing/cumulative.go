package pricing

import (
	"math"
	"sort"

	"rec-lem-prices/internal/model"
)

// cumOffer is an offer in merit order together with the total amount offered
// up to and including it.
type cumOffer struct {
	model.Offer
	Cumulative float64
}

// meritOrder sorts working copies of both sides (sells ascending, buys
// descending, ties keep input order) and accumulates their amounts.
// Sort keys are biased by eps: buys by -eps, sells by +eps. Values are left
// as offered.
func meritOrder(buys, sells []model.Offer, eps float64) (buyers, sellers []cumOffer) {
	buyers = make([]cumOffer, len(buys))
	for i, o := range buys {
		buyers[i] = cumOffer{Offer: o}
	}
	sellers = make([]cumOffer, len(sells))
	for i, o := range sells {
		o.Amount = math.Abs(o.Amount)
		sellers[i] = cumOffer{Offer: o}
	}

	sort.SliceStable(buyers, func(i, j int) bool {
		return buyers[i].Value-eps > buyers[j].Value-eps
	})
	sort.SliceStable(sellers, func(i, j int) bool {
		return sellers[i].Value+eps < sellers[j].Value+eps
	})

	accumulate(buyers)
	accumulate(sellers)
	return buyers, sellers
}

func accumulate(offers []cumOffer) {
	total := 0.0
	for i := range offers {
		total += offers[i].Amount
		offers[i].Cumulative = total
	}
}

func values(offers []model.Offer) []float64 {
	out := make([]float64, len(offers))
	for i, o := range offers {
		out[i] = o.Value
	}
	return out
}

func amounts(offers []model.Offer) []float64 {
	out := make([]float64, len(offers))
	for i, o := range offers {
		out[i] = math.Abs(o.Amount)
	}
	return out
}
