package pricing

import (
	"fmt"

	"gonum.org/v1/gonum/floats"

	"rec-lem-prices/internal/model"
)

// DefaultDivisor puts the MMR price halfway between the least valuable bid
// and the most valuable ask.
const DefaultDivisor = 2.0

// MMR computes the mid-market rate (min bid + max ask) / divisor.
// A divisor other than 2 gives the more general intermediary-market rate:
// larger values skew the price towards the asks.
//
// When the least valuable bid is below the most valuable ask there is no
// spread to split and the crossing value is returned instead.
func MMR(buys, sells []model.Offer, divisor float64) (float64, error) {
	if divisor <= 0 {
		return 0, fmt.Errorf("%w: divisor must be > 0, got %g", model.ErrInvalidParameter, divisor)
	}
	if p, ok := degenerate(buys, sells); ok {
		return p, nil
	}

	minBuy := floats.Min(values(buys))
	maxSell := floats.Max(values(sells))
	if minBuy < maxSell {
		return CrossingValue(buys, sells, 0)
	}
	return (minBuy + maxSell) / divisor, nil
}

// PrunedMMR applies MMR to the offers that would transact.
func PrunedMMR(buys, sells []model.Offer, divisor float64) (float64, error) {
	ab, as := AcceptedOffers(buys, sells)
	return MMR(ab, as, divisor)
}

// degenerate prices a pool missing at least one side.
func degenerate(buys, sells []model.Offer) (float64, bool) {
	switch {
	case len(buys) == 0 && len(sells) == 0:
		return 0, true
	case len(sells) == 0:
		return floats.Max(values(buys)), true
	case len(buys) == 0:
		return floats.Min(values(sells)), true
	}
	return 0, false
}
