package pricing

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"rec-lem-prices/internal/model"
)

// SDR computes the supply/demand-ratio price of a session. A compensation in
// (0, 1] gives the compensated variant (SDRC), which moves the price towards
// the middle of the spread by that fraction of it.
//
// As with MMR, offers that already cross fall back to the crossing value.
func SDR(buys, sells []model.Offer, compensation float64) (float64, error) {
	if compensation < 0 || compensation > 1 || math.IsNaN(compensation) {
		return 0, fmt.Errorf("%w: compensation must be within [0, 1], got %g", model.ErrInvalidParameter, compensation)
	}
	if p, ok := degenerate(buys, sells); ok {
		return p, nil
	}

	supply := floats.Sum(amounts(sells))
	demand := floats.Sum(amounts(buys))
	minBuy := floats.Min(values(buys))
	maxSell := floats.Max(values(sells))
	if minBuy < maxSell {
		return CrossingValue(buys, sells, 0)
	}

	comp := (minBuy - maxSell) * compensation
	ratio := supply / demand
	switch {
	case math.IsInf(ratio, 1):
		return 0, nil
	case ratio >= 1:
		return maxSell + comp/ratio, nil
	case ratio >= 0:
		return (minBuy * (maxSell + comp)) / ((minBuy-maxSell-comp)*ratio + maxSell + comp), nil
	default:
		// NaN lands here as well: 0/0 means no energy was offered at all.
		return 0, fmt.Errorf("%w: supply/demand ratio %g (supply %g, demand %g)", model.ErrInvariantViolation, ratio, supply, demand)
	}
}

// PrunedSDR applies SDR to the offers that would transact.
func PrunedSDR(buys, sells []model.Offer, compensation float64) (float64, error) {
	if compensation < 0 || compensation > 1 || math.IsNaN(compensation) {
		return 0, fmt.Errorf("%w: compensation must be within [0, 1], got %g", model.ErrInvalidParameter, compensation)
	}
	ab, as := AcceptedOffers(buys, sells)
	return SDR(ab, as, compensation)
}
