package pricing

import (
	"fmt"

	"rec-lem-prices/internal/model"
)

// CrossingValue returns the double-auction clearing price of a session: the
// value at which cumulative supply meets cumulative demand.
//
// eps biases the merit-order sort keys (buys by -eps, sells by +eps) and may
// help the equilibrium loop settle. Use 0 for a plain clearing.
//
// Degenerate pools: only buyers gives the highest bid, only sellers the
// lowest ask, and an empty pool gives 0.
func CrossingValue(buys, sells []model.Offer, eps float64) (float64, error) {
	if eps < 0 {
		return 0, fmt.Errorf("%w: small increment must be >= 0, got %g", model.ErrInvalidParameter, eps)
	}
	if len(buys) == 0 && len(sells) == 0 {
		return 0, nil
	}

	buyers, sellers := meritOrder(buys, sells, eps)
	switch {
	case len(sellers) == 0:
		return buyers[0].Value, nil
	case len(buyers) == 0:
		return sellers[0].Value, nil
	}

	lastSold := sellers[0].Value
	crossing := lastSold
	s, b := 0, 0
	for s < len(sellers) && b < len(buyers) {
		if sellers[s].Value >= buyers[b].Value {
			return lastSold, nil
		}
		lastSold = sellers[s].Value
		if buyers[b].Cumulative > sellers[s].Cumulative {
			crossing = buyers[b].Value
			s++
		} else {
			crossing = sellers[s].Value
			b++
		}
	}
	return crossing, nil
}
