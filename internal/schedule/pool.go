package schedule

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"rec-lem-prices/internal/model"
	"rec-lem-prices/internal/pricing"
)

// PoolScheduler is the built-in two-stage pool scheduler.
//
// Stage one dispatches every member on its own and prices the result without
// the local market; that is the member's individual cost. Stage two
// re-dispatches every member with the local market price in view and clears
// a pro-rata pool per session. Members that would pay more in the pool than
// on their own are sent back to their stage-one schedule.
type PoolScheduler struct {
	cfg    Config
	logger *slog.Logger
}

func NewPoolScheduler(cfg Config, logger *slog.Logger) *PoolScheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &PoolScheduler{cfg: cfg.WithDefaults(), logger: logger}
}

// memberPlan is the per-member state carried from stage one to stage two.
type memberPlan struct {
	member     model.Member
	retail     tariffs
	individual memberSchedule
	indCost    MemberCost
	collective memberSchedule
}

func (s *PoolScheduler) Solve(ctx context.Context, req Request) (*Result, error) {
	n, err := req.Community.Validate(req.Rounding)
	if err != nil {
		return nil, err
	}
	if len(req.LEMPrices) != n {
		return nil, model.ShapeError("lem prices", len(req.LEMPrices), n)
	}
	switch req.Timeframe {
	case TimeframePre, TimeframePost:
	default:
		return nil, fmt.Errorf("%w: unknown timeframe %q", model.ErrInvalidParameter, req.Timeframe)
	}
	if err := req.Market.Validate(); err != nil {
		return nil, err
	}
	if req.Market == "" {
		req.Market = MarketPool
	}
	if req.Equilibrium && req.Market == MarketBilateral {
		return nil, fmt.Errorf("%w: dual prices are only defined for the pool market", model.ErrInvalidParameter)
	}

	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	community := req.Community
	if req.Timeframe == TimeframePost {
		// Metered flows already include whatever the batteries did.
		community = community.WithoutStorage()
	}

	plans := make([]*memberPlan, len(community.Members))
	for i, m := range community.Members {
		plans[i] = &memberPlan{member: m, retail: retailTariffs(community, m)}
	}

	if err := s.stageOne(ctx, plans); err != nil {
		return nil, err
	}

	if req.Equilibrium {
		return s.equilibrium(community, plans, n)
	}

	if err := s.stageTwo(ctx, community, req.Market, req.LEMPrices, plans); err != nil {
		return nil, err
	}
	return s.settle(community, req.Market, req.LEMPrices, plans, n), nil
}

// fanOut runs fn once per member plan, bounded by the worker count. The
// first failure cancels the rest and fails the whole gather.
func (s *PoolScheduler) fanOut(ctx context.Context, stage string, plans []*memberPlan, fn func(ctx context.Context, p *memberPlan) error) error {
	g, gctx := errgroup.WithContext(ctx)
	workers := s.cfg.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	g.SetLimit(workers)

	var mu sync.Mutex
	statuses := make(map[string]string)
	for _, p := range plans {
		p := p
		g.Go(func() error {
			if err := fn(gctx, p); err != nil {
				status := string(StatusNotSolved)
				if errors.Is(err, errNoReachableState) {
					status = string(StatusInfeasible)
				}
				mu.Lock()
				statuses[p.member.ID] = status
				mu.Unlock()
				return fmt.Errorf("member %s: %w", p.member.ID, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return &model.CollaboratorError{Stage: stage, Statuses: statuses, Err: err}
	}
	return nil
}

func (s *PoolScheduler) stageOne(ctx context.Context, plans []*memberPlan) error {
	err := s.fanOut(ctx, "stage one", plans, func(ctx context.Context, p *memberPlan) error {
		sched, err := dispatchMember(ctx, p.member, p.retail, s.cfg)
		if err != nil {
			return err
		}
		p.individual = sched
		p.indCost = p.retail.individualCost(sched.NetLoad, sched.Degradation)
		return nil
	})
	if err != nil {
		return err
	}
	s.logger.Debug("stage one solved", "members", len(plans))
	return nil
}

func (s *PoolScheduler) stageTwo(ctx context.Context, c model.Community, market Market, lem []float64, plans []*memberPlan) error {
	err := s.fanOut(ctx, "stage two", plans, func(ctx context.Context, p *memberPlan) error {
		if len(p.member.Storage) == 0 {
			p.collective = p.individual
			return nil
		}
		fees := c.GridTariff
		if market == MarketBilateral {
			fees = cheapestFees(c, p.member.ID)
		}
		sched, err := dispatchMember(ctx, p.member, p.retail.withLocalMarket(lem, fees), s.cfg)
		if err != nil {
			return err
		}
		p.collective = sched
		return nil
	})
	if err != nil {
		return err
	}
	s.logger.Debug("stage two solved", "members", len(plans))
	return nil
}

// settle clears the local market, enforcing that nobody pays more than on
// their own. Each round removes at least one member, so it ends within
// len(plans)+1 rounds.
func (s *PoolScheduler) settle(c model.Community, market Market, lem []float64, plans []*memberPlan, n int) *Result {
	pooled := make([]bool, len(plans))
	for i := range pooled {
		pooled[i] = true
	}

	var (
		costs  []MemberCost
		flows  []PoolFlows
		trades []BilateralFlows
	)
	for {
		if market == MarketBilateral {
			costs, flows, trades = s.clearBilateral(c, lem, plans, pooled, n)
		} else {
			costs, flows = s.clear(c, lem, plans, pooled, n, false)
		}
		reverted := 0
		for i, p := range plans {
			if !pooled[i] {
				continue
			}
			if exceeds(costs[i].Total, p.indCost.Total) {
				pooled[i] = false
				reverted++
				s.logger.Debug("member left the pool", "member", p.member.ID,
					"collective_cost", costs[i].Total, "individual_cost", p.indCost.Total)
			}
		}
		if reverted == 0 {
			break
		}
	}

	res := &Result{
		Status:     StatusOptimal,
		NetLoads:   make(map[string][]float64, len(plans)),
		Dispatch:   make(map[string][]float64, len(plans)),
		Costs:      make(map[string]MemberCost, len(plans)),
		Pool:       make(map[string]PoolFlows, len(plans)),
		Individual: individualResults(plans),
	}
	for i, p := range plans {
		sched := p.collective
		if !pooled[i] {
			sched = p.individual
		}
		res.NetLoads[p.member.ID] = sched.NetLoad
		res.Dispatch[p.member.ID] = sched.Dispatch
		res.Costs[p.member.ID] = costs[i]
		res.Pool[p.member.ID] = flows[i]
		res.Objective += costs[i].Total
	}
	if trades != nil {
		res.Bilateral = make(map[string]BilateralFlows, len(plans))
		for i, p := range plans {
			res.Bilateral[p.member.ID] = trades[i]
		}
	}
	s.logger.Debug("local market settled", "market", market, "objective", res.Objective)
	return res
}

// clear runs a pro-rata pool per session among pooled members and prices
// every member's flows. Members outside the pool pay their individual cost.
// A pooled member only trades locally in sessions where that beats its own
// tariffs, unless open is set.
func (s *PoolScheduler) clear(c model.Community, lem []float64, plans []*memberPlan, pooled []bool, n int, open bool) ([]MemberCost, []PoolFlows) {
	costs := make([]MemberCost, len(plans))
	flows := make([]PoolFlows, len(plans))

	for i, p := range plans {
		if !pooled[i] {
			costs[i] = p.indCost
			flows[i] = retailFlows(p.individual.NetLoad)
			continue
		}
		flows[i] = newPoolFlows(n)
		costs[i] = MemberCost{Degradation: p.collective.Degradation, Individual: p.indCost.Total, Pooled: true}
	}

	for t := 0; t < n; t++ {
		buyer := func(p *memberPlan) bool {
			return p.collective.NetLoad[t] > 0 && (open || lem[t]+c.GridTariff[t] <= p.retail.buy[t])
		}
		seller := func(p *memberPlan) bool {
			return p.collective.NetLoad[t] < 0 && (open || lem[t] >= p.retail.sell[t])
		}

		demand, supply := 0.0, 0.0
		for i, p := range plans {
			switch {
			case !pooled[i]:
			case buyer(p):
				demand += p.collective.NetLoad[t]
			case seller(p):
				supply -= p.collective.NetLoad[t]
			}
		}
		traded := min(demand, supply)

		for i, p := range plans {
			if !pooled[i] {
				continue
			}
			e := p.collective.NetLoad[t]
			f := flows[i]
			switch {
			case buyer(p) && demand > 0:
				f.LocalBought[t] = e * traded / demand
			case seller(p) && supply > 0:
				f.LocalSold[t] = -e * traded / supply
			}
			if e > 0 {
				f.RetailBought[t] = e - f.LocalBought[t]
			} else {
				f.RetailSold[t] = -e - f.LocalSold[t]
			}
			costs[i].Energy += f.LocalBought[t]*(lem[t]+c.GridTariff[t]) + f.RetailBought[t]*p.retail.buy[t] -
				f.LocalSold[t]*lem[t] - f.RetailSold[t]*p.retail.sell[t]
			costs[i].ExtraPower += p.retail.extraPower(e)
		}
	}

	for i := range costs {
		if pooled[i] {
			costs[i].Total = costs[i].Energy + costs[i].Degradation + costs[i].ExtraPower
		}
	}
	return costs, flows
}

// equilibrium pools every member on its stage-one schedule and reads the
// duals of the per-session balance constraint. With linear offers the
// multiplier is the uniform clearing price of the session.
func (s *PoolScheduler) equilibrium(c model.Community, plans []*memberPlan, n int) (*Result, error) {
	members := make(model.Members, len(plans))
	for i, p := range plans {
		members[i] = model.MemberState{
			ID:       p.member.ID,
			NetLoad:  p.individual.NetLoad,
			BuyCost:  p.member.BuyTariff,
			SellCost: p.member.SellTariff,
		}
	}
	buys, sells, err := pricing.MakeOffers(members, n, c.MarketBuy, c.MarketSell)
	if err != nil {
		return nil, &model.CollaboratorError{Stage: "equilibrium", Err: err}
	}
	duals, err := pricing.SessionPrices(func(b, s []model.Offer) (float64, error) {
		return pricing.CrossingValue(b, s, 0)
	}, buys, sells)
	if err != nil {
		return nil, &model.CollaboratorError{Stage: "equilibrium", Err: err}
	}

	for _, p := range plans {
		p.collective = p.individual
	}
	pooled := make([]bool, len(plans))
	for i := range pooled {
		pooled[i] = true
	}
	costs, flows := s.clear(c, duals, plans, pooled, n, true)

	res := &Result{
		Status:     StatusOptimal,
		NetLoads:   make(map[string][]float64, len(plans)),
		Dispatch:   make(map[string][]float64, len(plans)),
		Costs:      make(map[string]MemberCost, len(plans)),
		Pool:       make(map[string]PoolFlows, len(plans)),
		DualPrices: duals,
		Individual: individualResults(plans),
	}
	for i, p := range plans {
		res.NetLoads[p.member.ID] = p.individual.NetLoad
		res.Dispatch[p.member.ID] = p.individual.Dispatch
		res.Costs[p.member.ID] = costs[i]
		res.Pool[p.member.ID] = flows[i]
		res.Objective += costs[i].Total
	}
	s.logger.Debug("equilibrium solved", "objective", res.Objective, "duals", duals)
	return res, nil
}

// exceeds compares costs to the micro-euro so that float noise does not push
// members out of the pool.
func exceeds(collective, individual float64) bool {
	return decimal.NewFromFloat(collective).Round(6).GreaterThan(decimal.NewFromFloat(individual).Round(6))
}

func individualResults(plans []*memberPlan) []IndividualResult {
	out := make([]IndividualResult, len(plans))
	for i, p := range plans {
		out[i] = IndividualResult{
			MemberID: p.member.ID,
			Status:   StatusOptimal,
			Cost:     p.indCost.Total,
			NetLoad:  p.individual.NetLoad,
		}
	}
	return out
}
