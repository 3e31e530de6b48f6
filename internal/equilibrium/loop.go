package equilibrium

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/shopspring/decimal"

	"rec-lem-prices/internal/model"
	"rec-lem-prices/internal/pricing"
	"rec-lem-prices/internal/schedule"
)

// State is where a run of the loop is.
type State string

const (
	StateInit          State = "INIT"
	StateIterating     State = "ITERATING"
	StateConverged     State = "CONVERGED"
	StateMaxIterations State = "MAX_ITERS"
	StateFailed        State = "FAILED"
	// StateSinglePass ends post-delivery and dual-price runs, which do not
	// iterate.
	StateSinglePass State = "SINGLE_PASS"
)

const (
	// MaxIterations caps the number of pricing/scheduling rounds.
	MaxIterations = 20
	// SentinelPrice seeds the first price vector far enough from any real
	// price that the first convergence test cannot pass.
	SentinelPrice = 10.0
)

// Outcome is what a run returns.
type Outcome struct {
	// Prices is the best price vector observed, €/kWh per session.
	Prices []float64
	// Criterion is the distance to the matching historical vector, rounded
	// to 3 decimals. Nil when the run stopped at the iteration cap or did
	// not iterate.
	Criterion  *float64
	Iterations int
	// Objective is the collective cost that came with Prices.
	Objective float64
	Result    *schedule.Result
	// Members is the net-load view Result produces; offers for the final
	// prices are built from it.
	Members model.Members
	History [][]float64
	State   State
}

// Loop couples a pricing mechanism with a scheduler.
type Loop struct {
	scheduler schedule.Scheduler
	rounding  model.Rounding
	market    schedule.Market
	logger    *slog.Logger
}

func NewLoop(scheduler schedule.Scheduler, rounding model.Rounding, logger *slog.Logger) *Loop {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loop{scheduler: scheduler, rounding: rounding, market: schedule.MarketPool, logger: logger}
}

// WithMarket returns a copy of the loop whose scheduling requests use the
// given market structure. The empty market means pool.
func (l *Loop) WithMarket(market schedule.Market) *Loop {
	out := *l
	out.market = market
	if market == "" {
		out.market = schedule.MarketPool
	}
	return &out
}

// Run dispatches to the dual-price adapter or to the loop of the timeframe.
func (l *Loop) Run(ctx context.Context, c model.Community, tf schedule.Timeframe, params pricing.Params) (*Outcome, error) {
	params = params.WithDefaults()
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if err := l.market.Validate(); err != nil {
		return nil, err
	}
	if params.Mechanism == pricing.MechanismDual {
		return l.RunDual(ctx, c, tf)
	}
	switch tf {
	case schedule.TimeframePre:
		return l.RunPreDelivery(ctx, c, params)
	case schedule.TimeframePost:
		return l.RunPostDelivery(ctx, c, params)
	default:
		return nil, fmt.Errorf("%w: unknown timeframe %q, expected pre or post", model.ErrInvalidParameter, tf)
	}
}

// RunPreDelivery iterates pricing and scheduling until the price vector
// matches any vector tried before, or the iteration cap is hit. It returns
// the prices that produced the lowest collective cost, not the last ones.
func (l *Loop) RunPreDelivery(ctx context.Context, c model.Community, params pricing.Params) (*Outcome, error) {
	priceFn, err := params.Func()
	if err != nil {
		return nil, err
	}
	n, err := c.Validate(l.rounding)
	if err != nil {
		return nil, err
	}

	members := c.InitialMembers()
	prices := make([]float64, n)
	for t := range prices {
		prices[t] = SentinelPrice
	}

	var (
		history     [][]float64
		it          int
		objective   = math.Inf(1)
		result      *schedule.Result
		best        = math.Inf(1)
		bestPrices  = prices
		bestResult  *schedule.Result
		bestMembers = members
		criterion   *float64
		state       = StateIterating
	)
	l.logger.Info("starting loop", "mechanism", params.Name(), "market", l.market, "sessions", n, "prices", formatPrices(prices))

	for {
		if objective < best {
			best = objective
			bestPrices = prices
			bestResult = result
			bestMembers = members
		}
		l.logger.Info("objective", "value", objective, "best", best)

		converged := false
		criteria := make([]float64, 0, len(history))
		for _, prev := range history {
			stop, d, err := pricing.StopCriterion(prev, prices)
			if err != nil {
				return nil, err
			}
			rounded := round3(d)
			criteria = append(criteria, rounded)
			if stop {
				criterion = &rounded
				converged = true
				break
			}
		}
		l.logger.Debug("criteria", "iteration", it, "distances", criteria)
		if converged {
			history = append(history, prices)
			state = StateConverged
			break
		}

		it++
		if it > MaxIterations {
			history = append(history, prices)
			state = StateMaxIterations
			break
		}

		buys, sells, err := pricing.MakeOffers(members, n, c.MarketBuy, c.MarketSell)
		if err != nil {
			return nil, err
		}
		history = append(history, prices)

		next, err := pricing.SessionPrices(priceFn, buys, sells)
		if err != nil {
			return nil, fmt.Errorf("iteration %d: %w", it, err)
		}
		l.logger.Info("iteration prices", "iteration", it, "prices", formatPrices(next))

		res, err := l.solve(ctx, fmt.Sprintf("iteration %d", it), schedule.Request{
			Community: c,
			Rounding:  l.rounding,
			LEMPrices: next,
			Timeframe: schedule.TimeframePre,
			Market:    l.market,
		})
		if err != nil {
			l.logger.Error("loop failed", "iteration", it, "state", StateFailed, "error", err)
			return nil, err
		}

		members = members.WithNetLoads(res.NetLoads)
		objective = res.Objective
		result = res
		prices = next
	}

	if it > MaxIterations {
		it = MaxIterations
	}
	if bestResult == nil {
		// No finite objective was ever observed.
		bestPrices, bestResult, bestMembers, best = prices, result, members, objective
	}
	l.logger.Info("loop stopped", "state", state, "iterations", it, "criterion", criterion, "prices", formatPrices(bestPrices))

	return &Outcome{
		Prices:     bestPrices,
		Criterion:  criterion,
		Iterations: it,
		Objective:  best,
		Result:     bestResult,
		Members:    bestMembers,
		History:    history,
		State:      state,
	}, nil
}

// solve calls the scheduler and turns any failure to reach an optimal
// solution into a CollaboratorError, including an optimal result that lacks
// a member's net load or carries one of the wrong length. Errors that
// already carry a taxonomy sentinel pass through unchanged.
func (l *Loop) solve(ctx context.Context, stage string, req schedule.Request) (*schedule.Result, error) {
	res, err := l.scheduler.Solve(ctx, req)
	if err != nil {
		if isClassified(err) {
			return nil, err
		}
		return nil, &model.CollaboratorError{Stage: stage, Err: err}
	}
	if res == nil {
		return nil, &model.CollaboratorError{Stage: stage, Err: errors.New("scheduler returned no result")}
	}
	if res.Status != schedule.StatusOptimal {
		statuses := make(map[string]string)
		for _, ind := range res.Individual {
			if ind.Status != schedule.StatusOptimal {
				statuses[ind.MemberID] = string(ind.Status)
			}
		}
		return nil, &model.CollaboratorError{
			Stage:    stage,
			Statuses: statuses,
			Err:      fmt.Errorf("status %s", res.Status),
		}
	}

	// Every member comes back with a full series or the result is unusable.
	n := len(req.LEMPrices)
	missing := make(map[string]string)
	for _, m := range req.Community.Members {
		nl, ok := res.NetLoads[m.ID]
		switch {
		case !ok:
			missing[m.ID] = "missing net load"
		case len(nl) != n:
			missing[m.ID] = fmt.Sprintf("net load has %d sessions, want %d", len(nl), n)
		}
	}
	if len(missing) > 0 {
		return nil, &model.CollaboratorError{
			Stage:    stage,
			Statuses: missing,
			Err:      fmt.Errorf("%d of %d members without a usable net load", len(missing), len(req.Community.Members)),
		}
	}
	return res, nil
}

func isClassified(err error) bool {
	for _, target := range []error{
		model.ErrShapeMismatch,
		model.ErrInvalidParameter,
		model.ErrInvariantViolation,
		model.ErrCollaboratorFailure,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func round3(x float64) float64 {
	f, _ := decimal.NewFromFloat(x).Round(3).Float64()
	return f
}

func formatPrices(prices []float64) string {
	parts := make([]string, len(prices))
	for i, p := range prices {
		parts[i] = fmt.Sprintf("%.2f", p)
	}
	return strings.Join(parts, "|")
}
