package analysis

import (
	"context"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"

	"rec-lem-prices/internal/equilibrium"
	"rec-lem-prices/internal/model"
	"rec-lem-prices/internal/pricing"
	"rec-lem-prices/internal/schedule"
)

// Runner runs one price discovery. *equilibrium.Loop implements it.
type Runner interface {
	Run(ctx context.Context, c model.Community, tf schedule.Timeframe, params pricing.Params) (*equilibrium.Outcome, error)
}

// Comparison is the result of one mechanism variant. Err is set instead of
// Outcome when the run failed.
type Comparison struct {
	// Index is the variant's position in the input.
	Index   int
	Rank    int
	Name    string
	Params  pricing.Params
	Outcome *equilibrium.Outcome
	Stats   PriceStats
	Err     error
}

// CompareMechanisms runs every variant against the same community and ranks
// the successful ones ascending by collective objective, then by iteration
// count. Failed variants follow, unranked, in input order.
//
// Only a canceled context fails the whole comparison.
func CompareMechanisms(ctx context.Context, runner Runner, c model.Community, tf schedule.Timeframe, variants []pricing.Params) ([]Comparison, error) {
	out := make([]Comparison, len(variants))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, p := range variants {
		i, p := i, p.WithDefaults()
		g.Go(func() error {
			res, err := runner.Run(gctx, c, tf, p)
			out[i] = Comparison{Index: i, Name: p.Name(), Params: p, Outcome: res, Err: err}
			if err != nil {
				out[i].Outcome = nil
				return ctx.Err()
			}
			out[i].Stats = ComputePriceStats(res.Prices)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if (a.Err == nil) != (b.Err == nil) {
			return a.Err == nil
		}
		if a.Err != nil {
			return false
		}
		if a.Outcome.Objective != b.Outcome.Objective {
			return a.Outcome.Objective < b.Outcome.Objective
		}
		return a.Outcome.Iterations < b.Outcome.Iterations
	})
	for i := range out {
		if out[i].Err == nil {
			out[i].Rank = i + 1
		}
	}
	return out, nil
}

// DefaultVariants is every mechanism with its default parameters, plain and
// pruned where pruning applies.
func DefaultVariants() []pricing.Params {
	return []pricing.Params{
		{Mechanism: pricing.MechanismCrossingValue},
		{Mechanism: pricing.MechanismMMR},
		{Mechanism: pricing.MechanismMMR, Pruned: true},
		{Mechanism: pricing.MechanismSDR},
		{Mechanism: pricing.MechanismSDR, Pruned: true},
		{Mechanism: pricing.MechanismDual},
	}
}
