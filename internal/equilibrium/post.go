package equilibrium

import (
	"context"
	"fmt"

	"rec-lem-prices/internal/model"
	"rec-lem-prices/internal/pricing"
	"rec-lem-prices/internal/schedule"
)

// RunPostDelivery prices metered flows, schedules once at that price and
// prices the resulting offers again. The second price vector is the answer.
func (l *Loop) RunPostDelivery(ctx context.Context, c model.Community, params pricing.Params) (*Outcome, error) {
	priceFn, err := params.Func()
	if err != nil {
		return nil, err
	}
	n, err := c.Validate(l.rounding)
	if err != nil {
		return nil, err
	}

	members := c.InitialMembers()
	first, err := l.price(priceFn, members, c, n)
	if err != nil {
		return nil, err
	}
	l.logger.Info("starting prices", "mechanism", params.Name(), "prices", formatPrices(first))

	res, err := l.solve(ctx, "post-delivery", schedule.Request{
		Community: c,
		Rounding:  l.rounding,
		LEMPrices: first,
		Timeframe: schedule.TimeframePost,
		Market:    l.market,
	})
	if err != nil {
		l.logger.Error("post-delivery failed", "state", StateFailed, "error", err)
		return nil, err
	}
	l.logger.Info("objective", "value", res.Objective)

	members = members.WithNetLoads(res.NetLoads)
	final, err := l.price(priceFn, members, c, n)
	if err != nil {
		return nil, err
	}
	l.logger.Info("final prices", "prices", formatPrices(final))

	return &Outcome{
		Prices:     final,
		Iterations: 1,
		Objective:  res.Objective,
		Result:     res,
		Members:    members,
		History:    [][]float64{first, final},
		State:      StateSinglePass,
	}, nil
}

func (l *Loop) price(fn pricing.Func, members model.Members, c model.Community, n int) ([]float64, error) {
	buys, sells, err := pricing.MakeOffers(members, n, c.MarketBuy, c.MarketSell)
	if err != nil {
		return nil, err
	}
	prices, err := pricing.SessionPrices(fn, buys, sells)
	if err != nil {
		return nil, fmt.Errorf("pricing: %w", err)
	}
	return prices, nil
}
