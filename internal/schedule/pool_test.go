package schedule

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"

	"rec-lem-prices/internal/model"
)

func round(x float64) float64 { return math.Round(x*1e6) / 1e6 }

func twoMembers() model.Community {
	return model.Community{
		Horizon:    2,
		DeltaT:     1,
		GridTariff: []float64{0.01, 0.01},
		MarketBuy:  []float64{0.25, 0.25},
		MarketSell: []float64{0.04, 0.04},
		Members: []model.Member{
			{
				ID:          "m1",
				Consumption: []float64{2, 0},
				Generation:  []float64{0, 0},
				BuyTariff:   []float64{0.20, 0.20},
				SellTariff:  []float64{0.05, 0.05},
			},
			{
				ID:          "m2",
				Consumption: []float64{0, 0},
				Generation:  []float64{1, 3},
				BuyTariff:   []float64{0.20, 0.20},
				SellTariff:  []float64{0.05, 0.05},
			},
		},
	}
}

func arbitrageStorage() model.Storage {
	return model.Storage{
		CapacityKWh: 10, MaxPowerKW: 5,
		ChargeEfficiency: 1, DischargeEfficiency: 1,
		InitialKWh: 0, MinSOC: 0, MaxSOC: 1,
	}
}

func TestPoolScheduler_ProRataPool(t *testing.T) {
	s := NewPoolScheduler(Config{}, nil)
	res, err := s.Solve(context.Background(), Request{
		Community: twoMembers(),
		LEMPrices: []float64{0.10, 0.10},
		Timeframe: TimeframePre,
	})
	assert.NoError(t, err)
	check.Equal(t, StatusOptimal, res.Status)

	check.Equal(t, []float64{2, 0}, res.NetLoads["m1"])
	check.Equal(t, []float64{-1, -3}, res.NetLoads["m2"])

	check.Equal(t, []float64{1, 0}, res.Pool["m1"].LocalBought)
	check.Equal(t, []float64{1, 0}, res.Pool["m1"].RetailBought)
	check.Equal(t, []float64{1, 0}, res.Pool["m2"].LocalSold)
	check.Equal(t, []float64{0, 3}, res.Pool["m2"].RetailSold)

	check.Equal(t, 0.31, round(res.Costs["m1"].Total))
	check.Equal(t, 0.40, round(res.Costs["m1"].Individual))
	check.Equal(t, -0.25, round(res.Costs["m2"].Total))
	check.Equal(t, -0.20, round(res.Costs["m2"].Individual))
	check.Equal(t, 0.06, round(res.Objective))
	check.Nil(t, res.DualPrices)

	check.Equal(t, 2, len(res.Individual))
	check.Equal(t, "m1", res.Individual[0].MemberID)
	check.Equal(t, StatusOptimal, res.Individual[0].Status)
}

func TestPoolScheduler_LEMAboveRetailKeepsBuyerOut(t *testing.T) {
	s := NewPoolScheduler(Config{}, nil)
	res, err := s.Solve(context.Background(), Request{
		Community: twoMembers(),
		LEMPrices: []float64{0.30, 0.30},
		Timeframe: TimeframePre,
	})
	assert.NoError(t, err)
	check.Equal(t, []float64{0, 0}, res.Pool["m1"].LocalBought)
	check.Equal(t, 0.40, round(res.Costs["m1"].Total))
}

func TestPoolScheduler_IndividualRationality(t *testing.T) {
	c := model.Community{
		Horizon:    2,
		DeltaT:     1,
		GridTariff: []float64{0.01, 0.01},
		MarketBuy:  []float64{0.25, 0.25},
		MarketSell: []float64{0.04, 0.04},
		Members: []model.Member{{
			ID:          "bat",
			Consumption: []float64{0, 0},
			Generation:  []float64{0, 0},
			BuyTariff:   []float64{0.20, 0.20},
			SellTariff:  []float64{0.05, 0.05},
			Storage:     []model.Storage{arbitrageStorage()},
		}},
	}

	s := NewPoolScheduler(Config{}, nil)
	res, err := s.Solve(context.Background(), Request{
		Community: c,
		LEMPrices: []float64{0.01, 0.30},
		Timeframe: TimeframePre,
	})
	assert.NoError(t, err)

	// Arbitraging against a pool nobody else trades in loses money, so the
	// member falls back to doing nothing.
	cost := res.Costs["bat"]
	check.False(t, cost.Pooled)
	check.Equal(t, 0.0, round(cost.Total))
	check.Equal(t, []float64{0, 0}, res.NetLoads["bat"])
	check.Equal(t, []float64{0, 0}, res.Dispatch["bat"])
}

func TestPoolScheduler_Equilibrium(t *testing.T) {
	s := NewPoolScheduler(Config{}, nil)
	res, err := s.Solve(context.Background(), Request{
		Community:   twoMembers(),
		LEMPrices:   []float64{0, 0},
		Timeframe:   TimeframePre,
		Equilibrium: true,
	})
	assert.NoError(t, err)
	check.Equal(t, []float64{0.20, 0.05}, res.DualPrices)
	// The pool clears at the duals for everyone.
	check.Equal(t, []float64{1, 0}, res.Pool["m1"].LocalBought)
	check.Equal(t, []float64{1, 0}, res.Pool["m2"].LocalSold)
}

func TestPoolScheduler_PostDeliveryIgnoresStorage(t *testing.T) {
	c := twoMembers()
	c.Members[0].Storage = []model.Storage{arbitrageStorage()}

	s := NewPoolScheduler(Config{}, nil)
	res, err := s.Solve(context.Background(), Request{
		Community: c,
		LEMPrices: []float64{0.10, 0.10},
		Timeframe: TimeframePost,
	})
	assert.NoError(t, err)
	check.Equal(t, []float64{2, 0}, res.NetLoads["m1"])
	check.Equal(t, []float64{0, 0}, res.Dispatch["m1"])
}

func TestPoolScheduler_ShapeMismatch(t *testing.T) {
	s := NewPoolScheduler(Config{}, nil)
	_, err := s.Solve(context.Background(), Request{
		Community: twoMembers(),
		LEMPrices: []float64{0.10},
		Timeframe: TimeframePre,
	})
	check.True(t, errors.Is(err, model.ErrShapeMismatch))
	check.False(t, errors.Is(err, model.ErrCollaboratorFailure))
}

func TestPoolScheduler_UnknownTimeframe(t *testing.T) {
	s := NewPoolScheduler(Config{}, nil)
	_, err := s.Solve(context.Background(), Request{
		Community: twoMembers(),
		LEMPrices: []float64{0.10, 0.10},
		Timeframe: "intraday",
	})
	check.True(t, errors.Is(err, model.ErrInvalidParameter))
}

func TestPoolScheduler_CanceledContextFailsTheGather(t *testing.T) {
	c := twoMembers()
	c.Members[1].Storage = []model.Storage{arbitrageStorage()}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := NewPoolScheduler(Config{Workers: 1}, nil)
	res, err := s.Solve(ctx, Request{
		Community: c,
		LEMPrices: []float64{0.10, 0.10},
		Timeframe: TimeframePre,
	})
	check.Nil(t, res)
	check.True(t, errors.Is(err, model.ErrCollaboratorFailure))
	check.True(t, errors.Is(err, context.Canceled))

	var collab *model.CollaboratorError
	assert.True(t, errors.As(err, &collab))
	check.Equal(t, "stage one", collab.Stage)
	check.Equal(t, string(StatusNotSolved), collab.Statuses["m2"])
}

func TestSchedulerFunc(t *testing.T) {
	var s Scheduler = SchedulerFunc(func(ctx context.Context, req Request) (*Result, error) {
		return &Result{Status: StatusOptimal, Objective: float64(len(req.LEMPrices))}, nil
	})
	res, err := s.Solve(context.Background(), Request{LEMPrices: []float64{1, 2, 3}})
	assert.NoError(t, err)
	check.Equal(t, 3.0, res.Objective)
}

func TestConfig_WithDefaults(t *testing.T) {
	c := Config{}.WithDefaults()
	check.Equal(t, DefaultSocSteps, c.SocSteps)
	check.Equal(t, DefaultPowerSteps, c.PowerSteps)
	check.Equal(t, DefaultTimeout, c.Timeout)
	check.Equal(t, 0, c.Workers)

	c = Config{SocSteps: 7, PowerSteps: 3, Timeout: DefaultTimeout / 5}.WithDefaults()
	check.Equal(t, 7, c.SocSteps)
	check.Equal(t, 3, c.PowerSteps)
	check.Equal(t, DefaultTimeout/5, c.Timeout)
}
