package schedule

import (
	"context"
	"errors"
	"math"

	"rec-lem-prices/internal/model"
)

var errNoReachableState = errors.New("no reachable storage state")

// memberSchedule is one member's behind-the-meter plan.
type memberSchedule struct {
	NetLoad     []float64
	Dispatch    []float64
	Degradation float64
}

// dispatchMember schedules every storage unit of a member in turn, each one
// against the net load left by the previous ones. A plan that ends up dearer
// than leaving the storage idle is dropped in favour of idling.
func dispatchMember(ctx context.Context, m model.Member, tr tariffs, cfg Config) (memberSchedule, error) {
	idle := memberSchedule{NetLoad: m.NetLoad()}
	idle.Dispatch = make([]float64, len(idle.NetLoad))
	if len(m.Storage) == 0 {
		return idle, nil
	}

	net := m.NetLoad()
	out := memberSchedule{NetLoad: net, Dispatch: make([]float64, len(net))}
	for _, st := range m.Storage {
		plan, err := planStorage(ctx, st, net, tr, cfg.SocSteps, cfg.PowerSteps)
		if err != nil {
			return memberSchedule{}, err
		}
		e := st.InitialKWh
		for t, request := range plan {
			step := st.Step(e, request, tr.deltaT)
			e = step.EndKWh
			net[t] -= step.GridKWh
			out.Dispatch[t] += step.GridKWh
			out.Degradation += st.DegradationCost * step.Throughput()
		}
	}

	if exceeds(tr.individualCost(out.NetLoad, out.Degradation).Total, tr.individualCost(idle.NetLoad, 0).Total) {
		return idle, nil
	}
	return out, nil
}

// planStorage finds the grid-side energy per session that minimizes the
// member's cost, given the net load of everything else behind the meter.
// It is a dynamic program over a discretized energy-content grid between
// the storage's SOC bounds. Every transition lands exactly on a level, and
// its cost is that of the grid energy needed to get there, so the plan
// never relies on energy the storage does not hold.
func planStorage(ctx context.Context, st model.Storage, base []float64, tr tariffs, socSteps, powerSteps int) ([]float64, error) {
	plan := make([]float64, len(base))
	lo, hi := st.MinKWh(), st.MaxKWh()
	if hi-lo <= 0 || len(base) == 0 {
		return plan, nil
	}
	if socSteps < 2 {
		socSteps = 2
	}
	if powerSteps < 1 {
		powerSteps = 1
	}
	const tol = 1e-9

	// Grid levels, plus the initial content when it falls between two.
	levels := make([]float64, socSteps+1)
	for i := range levels {
		levels[i] = lo + float64(i)*(hi-lo)/float64(socSteps)
	}
	width := (hi - lo) / float64(socSteps)
	start := int(math.Round((st.InitialKWh - lo) / width))
	if start < 0 || start > socSteps || math.Abs(levels[start]-st.InitialKWh) > tol {
		levels = append(levels, st.InitialKWh)
		start = len(levels) - 1
	}
	nStates := len(levels)

	limit := st.MaxPowerKW * tr.deltaT
	// move is the grid-side energy that takes the content from one level to
	// another; false when it breaks the power limit.
	move := func(e0, e1 float64) (float64, bool) {
		var grid float64
		switch d := e1 - e0; {
		case d > 0:
			grid = -d / st.ChargeEfficiency
		case d < 0:
			grid = -d * st.DischargeEfficiency
		}
		return grid, math.Abs(grid) <= limit+tol
	}
	clampIdx := func(i float64) int {
		return int(math.Max(0, math.Min(float64(socSteps), i)))
	}

	// Idle first so ties keep the battery still.
	stepKWh := limit / float64(powerSteps)
	actions := []float64{0}
	for k := 1; k <= powerSteps; k++ {
		actions = append(actions, float64(k)*stepKWh, -float64(k)*stepKWh)
	}

	inf := math.Inf(1)
	cost := make([]float64, nStates)
	next := make([]float64, nStates)
	for i := range cost {
		cost[i] = inf
	}
	cost[start] = 0

	// Backpointers per session and arrival state.
	from := make([][]int, len(base))
	chosen := make([][]float64, len(base))
	targets := make([]int, 0, 2)

	for t := range base {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for i := range next {
			next[i] = inf
		}
		from[t] = make([]int, nStates)
		chosen[t] = make([]float64, nStates)
		for i := range from[t] {
			from[t][i] = -1
		}

		for s := 0; s < nStates; s++ {
			if math.IsInf(cost[s], 1) {
				continue
			}
			e := levels[s]
			for _, a := range actions {
				targets = targets[:0]
				if a == 0 {
					targets = append(targets, s)
				} else {
					// The levels on either side of where the action would end.
					pos := (st.Step(e, a, tr.deltaT).EndKWh - lo) / width
					targets = append(targets, clampIdx(math.Floor(pos+tol)), clampIdx(math.Ceil(pos-tol)))
				}
				for _, ns := range targets {
					grid, ok := move(e, levels[ns])
					if !ok {
						continue
					}
					v := cost[s] + tr.session(t, base[t]-grid) + st.DegradationCost*math.Abs(grid)
					if v < next[ns]-tol {
						next[ns] = v
						from[t][ns] = s
						chosen[t][ns] = grid
					}
				}
			}
		}
		cost, next = next, cost
	}

	best := -1
	for i, v := range cost {
		if !math.IsInf(v, 1) && (best < 0 || v < cost[best]-tol) {
			best = i
		}
	}
	if best < 0 {
		return nil, errNoReachableState
	}

	s := best
	for t := len(base) - 1; t >= 0; t-- {
		plan[t] = chosen[t][s]
		s = from[t][s]
	}
	return plan, nil
}
