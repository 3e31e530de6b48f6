package schedule

import (
	"context"
	"errors"
	"testing"

	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"

	"rec-lem-prices/internal/model"
)

func threeMembers(pairs map[string]map[string][]float64) model.Community {
	member := func(id string, load float64) model.Member {
		m := model.Member{
			ID:          id,
			Consumption: []float64{0},
			Generation:  []float64{0},
			BuyTariff:   []float64{0.20},
			SellTariff:  []float64{0.05},
		}
		if load > 0 {
			m.Consumption[0] = load
		} else {
			m.Generation[0] = -load
		}
		return m
	}
	return model.Community{
		Horizon:        1,
		DeltaT:         1,
		GridTariff:     []float64{0.01},
		MarketBuy:      []float64{0.25},
		MarketSell:     []float64{0.04},
		PairGridTariff: pairs,
		Members: []model.Member{
			member("m1", 2),
			member("m2", -1),
			member("m3", -2),
		},
	}
}

func TestPoolScheduler_BilateralCheapestPairFirst(t *testing.T) {
	s := NewPoolScheduler(Config{}, nil)
	res, err := s.Solve(context.Background(), Request{
		Community: threeMembers(map[string]map[string][]float64{"m1": {"m3": {0.005}}}),
		LEMPrices: []float64{0.10},
		Timeframe: TimeframePre,
		Market:    MarketBilateral,
	})
	assert.NoError(t, err)
	check.Equal(t, StatusOptimal, res.Status)
	assert.NotNil(t, res.Bilateral)

	check.Equal(t, map[string][]float64{"m3": {2}}, res.Bilateral["m1"].BoughtFrom)
	check.Equal(t, map[string][]float64{"m1": {2}}, res.Bilateral["m3"].SoldTo)
	check.Equal(t, 0, len(res.Bilateral["m2"].SoldTo))

	check.Equal(t, []float64{2}, res.Pool["m1"].LocalBought)
	check.Equal(t, []float64{0}, res.Pool["m1"].RetailBought)
	check.Equal(t, []float64{1}, res.Pool["m2"].RetailSold)

	check.Equal(t, 0.21, round(res.Costs["m1"].Total))
	check.Equal(t, -0.05, round(res.Costs["m2"].Total))
	check.Equal(t, -0.20, round(res.Costs["m3"].Total))
	check.Equal(t, -0.04, round(res.Objective))
}

func TestPoolScheduler_BilateralSkipsDearPairs(t *testing.T) {
	s := NewPoolScheduler(Config{}, nil)
	res, err := s.Solve(context.Background(), Request{
		// 0.10 + 0.15 is dearer than buying at retail.
		Community: threeMembers(map[string]map[string][]float64{"m1": {"m3": {0.15}}}),
		LEMPrices: []float64{0.10},
		Timeframe: TimeframePre,
		Market:    MarketBilateral,
	})
	assert.NoError(t, err)

	check.Equal(t, map[string][]float64{"m2": {1}}, res.Bilateral["m1"].BoughtFrom)
	check.Equal(t, []float64{1}, res.Pool["m1"].RetailBought)
	check.Equal(t, []float64{2}, res.Pool["m3"].RetailSold)
	check.Equal(t, 0.31, round(res.Costs["m1"].Total))
}

func TestPoolScheduler_PoolMarketHasNoBilateralFlows(t *testing.T) {
	s := NewPoolScheduler(Config{}, nil)
	res, err := s.Solve(context.Background(), Request{
		Community: threeMembers(nil),
		LEMPrices: []float64{0.10},
		Timeframe: TimeframePre,
	})
	assert.NoError(t, err)
	check.Nil(t, res.Bilateral)
	// Pro rata: m2 and m3 each sell two thirds of what they offer.
	check.Equal(t, []float64{2}, res.Pool["m1"].LocalBought)
	check.Equal(t, 0.666667, round(res.Pool["m2"].LocalSold[0]))
}

func TestPoolScheduler_MarketErrors(t *testing.T) {
	cases := []struct {
		name string
		req  Request
	}{
		{"unknown market", Request{Market: "auction"}},
		{"bilateral duals", Request{Market: MarketBilateral, Equilibrium: true}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tc.req.Community = threeMembers(nil)
			tc.req.LEMPrices = []float64{0}
			tc.req.Timeframe = TimeframePre
			_, err := NewPoolScheduler(Config{}, nil).Solve(context.Background(), tc.req)
			check.True(t, errors.Is(err, model.ErrInvalidParameter))
		})
	}
}

func TestCheapestFees(t *testing.T) {
	c := threeMembers(map[string]map[string][]float64{
		"m1": {"m2": {0.02}, "m3": {0.03}},
		"m2": {"m3": {0.001}},
	})
	// Every counterpart of m1 is listed and dearer than the default fee.
	check.Equal(t, []float64{0.02}, cheapestFees(c, "m1"))
	check.Equal(t, []float64{0.001}, cheapestFees(c, "m2"))
	check.Equal(t, []float64{0.01}, cheapestFees(c, "m3"))
}
