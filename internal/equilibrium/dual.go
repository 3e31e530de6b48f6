package equilibrium

import (
	"context"
	"errors"
	"fmt"

	"rec-lem-prices/internal/model"
	"rec-lem-prices/internal/schedule"
)

// DualPrices asks the scheduler for the shadow prices of its local balance
// constraint, with every LEM price set to zero. Post-delivery runs drop
// behind-the-meter storage first. Only the pool market has such a
// constraint.
func (l *Loop) DualPrices(ctx context.Context, c model.Community, tf schedule.Timeframe) ([]float64, *schedule.Result, error) {
	n, err := c.Validate(l.rounding)
	if err != nil {
		return nil, nil, err
	}
	if l.market != schedule.MarketPool {
		return nil, nil, fmt.Errorf("%w: dual prices need the pool market, got %q", model.ErrInvalidParameter, l.market)
	}
	switch tf {
	case schedule.TimeframePre:
	case schedule.TimeframePost:
		c = c.WithoutStorage()
	default:
		return nil, nil, fmt.Errorf("%w: unknown timeframe %q, expected pre or post", model.ErrInvalidParameter, tf)
	}

	stage := "dual prices"
	res, err := l.solve(ctx, stage, schedule.Request{
		Community:   c,
		Rounding:    l.rounding,
		LEMPrices:   make([]float64, n),
		Timeframe:   tf,
		Equilibrium: true,
	})
	if err != nil {
		return nil, nil, err
	}
	if res.DualPrices == nil {
		return nil, nil, &model.CollaboratorError{Stage: stage, Err: errors.New("no dual prices returned")}
	}
	if len(res.DualPrices) != n {
		return nil, nil, &model.CollaboratorError{Stage: stage, Err: model.ShapeError("dual prices", len(res.DualPrices), n)}
	}
	l.logger.Info("dual prices", "timeframe", tf, "prices", formatPrices(res.DualPrices))
	return res.DualPrices, res, nil
}

// RunDual wraps DualPrices into an Outcome.
func (l *Loop) RunDual(ctx context.Context, c model.Community, tf schedule.Timeframe) (*Outcome, error) {
	prices, res, err := l.DualPrices(ctx, c, tf)
	if err != nil {
		return nil, err
	}
	return &Outcome{
		Prices:     prices,
		Iterations: 1,
		Objective:  res.Objective,
		Result:     res,
		Members:    c.InitialMembers().WithNetLoads(res.NetLoads),
		History:    [][]float64{prices},
		State:      StateSinglePass,
	}, nil
}
