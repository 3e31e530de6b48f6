package pricing

import (
	"errors"
	"math"
	"testing"

	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"

	"rec-lem-prices/internal/model"
)

func round(x float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(x*p) / p
}

func baseBuys() []model.Offer {
	return []model.Offer{
		{Origin: "1", Amount: 500, Value: 45},
		{Origin: "2", Amount: 500, Value: 40},
		{Origin: "3", Amount: 500, Value: 35},
	}
}

func sells(offers ...[2]float64) []model.Offer {
	out := make([]model.Offer, len(offers))
	for i, o := range offers {
		out[i] = model.Offer{Origin: string(rune('4' + i)), Amount: o[0], Value: o[1]}
	}
	return out
}

func TestMakeOffers(t *testing.T) {
	members := model.Members{{
		ID:       "m1",
		NetLoad:  []float64{-1.0, 1.0, 0.0, 1.0},
		BuyCost:  []float64{1.9, 1.9, 1.9, 1.5},
		SellCost: []float64{1.1, 1.1, 1.1, 1.2},
	}}
	marketBuy := []float64{2.0, 2.0, 2.0, 2.0}
	marketSell := []float64{1.0, 1.0, 1.0, 1.0}

	buys, sells, err := MakeOffers(members, 4, marketBuy, marketSell)
	assert.NoError(t, err)
	check.Equal(t, 4, len(buys))
	check.Equal(t, 4, len(sells))

	check.Equal(t, 0, len(buys[0]))
	check.Equal(t, []model.Offer{{Origin: "m1", Amount: 1.0, Value: 1.1}}, sells[0])

	check.Equal(t, []model.Offer{{Origin: "m1", Amount: 1.0, Value: 1.9}}, buys[1])
	check.Equal(t, 0, len(sells[1]))

	check.Equal(t, 0, len(buys[2]))
	check.Equal(t, 0, len(sells[2]))

	check.Equal(t, []model.Offer{{Origin: "m1", Amount: 1.0, Value: 1.5}}, buys[3])
	check.Equal(t, 0, len(sells[3]))
}

func TestMakeOffers_MarketTariffWins(t *testing.T) {
	members := model.Members{
		{ID: "a", NetLoad: []float64{2}, BuyCost: []float64{0.3}, SellCost: []float64{0.05}},
		{ID: "b", NetLoad: []float64{-3}, BuyCost: []float64{0.3}, SellCost: []float64{0.05}},
	}
	buys, sells, err := MakeOffers(members, 1, []float64{0.2}, []float64{0.08})
	assert.NoError(t, err)
	check.Equal(t, []model.Offer{{Origin: "a", Amount: 2, Value: 0.2}}, buys[0])
	check.Equal(t, []model.Offer{{Origin: "b", Amount: 3, Value: 0.08}}, sells[0])
}

func TestMakeOffers_ShapeMismatch(t *testing.T) {
	members := model.Members{{
		ID:       "m1",
		NetLoad:  []float64{1, 1},
		BuyCost:  []float64{1, 1, 1},
		SellCost: []float64{1, 1, 1},
	}}
	_, _, err := MakeOffers(members, 3, []float64{1, 1, 1}, []float64{1, 1, 1})
	check.True(t, errors.Is(err, model.ErrShapeMismatch))

	_, _, err = MakeOffers(nil, 3, []float64{1, 1}, []float64{1, 1, 1})
	check.True(t, errors.Is(err, model.ErrShapeMismatch))
}

func TestMMR(t *testing.T) {
	base := sells([2]float64{500, 0}, [2]float64{600, 10}, [2]float64{500, 15})
	cross := sells([2]float64{500, 0}, [2]float64{600, 10}, [2]float64{500, 50})

	cases := []struct {
		name    string
		buys    []model.Offer
		sells   []model.Offer
		divisor float64
		want    float64
	}{
		{"no buys returns min sell", nil, base, 2, 0},
		{"no sells returns max buy", baseBuys(), nil, 2, 45},
		{"no offers", nil, nil, 2, 0},
		{"midpoint", baseBuys(), base, 2, 25},
		{"divisor 3", baseBuys(), base, 3, 16.67},
		{"offers cross", baseBuys(), cross, 2, 10},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := MMR(tc.buys, tc.sells, tc.divisor)
			assert.NoError(t, err)
			check.Equal(t, tc.want, round(got, 2))
		})
	}
}

func TestPrunedMMR(t *testing.T) {
	base := sells([2]float64{500, 0}, [2]float64{600, 10}, [2]float64{500, 15})
	cross := sells([2]float64{500, 0}, [2]float64{600, 10}, [2]float64{500, 50})

	cases := []struct {
		name  string
		buys  []model.Offer
		sells []model.Offer
		want  float64
	}{
		{"no buys", nil, base, 0},
		{"no sells", baseBuys(), nil, 0},
		{"no offers", nil, nil, 0},
		{"midpoint", baseBuys(), base, 25},
		{"offers cross", baseBuys(), cross, 22.5},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := PrunedMMR(tc.buys, tc.sells, DefaultDivisor)
			assert.NoError(t, err)
			check.Equal(t, tc.want, got)
		})
	}
}

func TestMMR_InvalidDivisor(t *testing.T) {
	_, err := MMR(baseBuys(), nil, 0)
	check.True(t, errors.Is(err, model.ErrInvalidParameter))
	_, err = PrunedMMR(baseBuys(), nil, -2)
	check.True(t, errors.Is(err, model.ErrInvalidParameter))
}

func TestSDR(t *testing.T) {
	base := sells([2]float64{500, 0}, [2]float64{400, 10}, [2]float64{500, 15})
	cross := sells([2]float64{500, 0}, [2]float64{500, 10}, [2]float64{500, 50})
	excess := sells([2]float64{500, 0}, [2]float64{500, 10}, [2]float64{1000, 15})
	deficit := sells([2]float64{500, 0}, [2]float64{500, 10}, [2]float64{250, 15})

	cases := []struct {
		name         string
		buys         []model.Offer
		sells        []model.Offer
		compensation float64
		want         float64
		wantPruned   float64
	}{
		{"no buys", nil, base, 0, 0, 0},
		{"no sells", baseBuys(), nil, 0, 45, 0},
		{"no offers", nil, nil, 0, 0, 0},
		{"sdr", baseBuys(), base, 0, 15.594, 15.594},
		{"offers cross", baseBuys(), cross, 0, 10, 10},
		{"sdrc", baseBuys(), base, 0.5, 25.485, 25.485},
		{"supply exceeds demand", baseBuys(), excess, 0, 15, 15},
		{"demand exceeds supply", baseBuys(), deficit, 0, 16.579, 16.579},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := SDR(tc.buys, tc.sells, tc.compensation)
			assert.NoError(t, err)
			check.Equal(t, tc.want, round(got, 3))

			pruned, err := PrunedSDR(tc.buys, tc.sells, tc.compensation)
			assert.NoError(t, err)
			check.Equal(t, tc.wantPruned, round(pruned, 3))
		})
	}
}

func TestSDR_NoDemandIsZero(t *testing.T) {
	buys := []model.Offer{{Origin: "b", Amount: 0, Value: 20}}
	got, err := SDR(buys, sells([2]float64{10, 5}), 0)
	assert.NoError(t, err)
	check.Equal(t, 0.0, got)
}

func TestSDR_InvariantViolation(t *testing.T) {
	buys := []model.Offer{{Origin: "b", Amount: 0, Value: 20}}
	_, err := SDR(buys, sells([2]float64{0, 5}), 0)
	check.True(t, errors.Is(err, model.ErrInvariantViolation))
}

func TestSDR_InvalidCompensation(t *testing.T) {
	for _, c := range []float64{-0.1, 1.5, math.NaN()} {
		_, err := SDR(baseBuys(), nil, c)
		check.True(t, errors.Is(err, model.ErrInvalidParameter))
		_, err = PrunedSDR(baseBuys(), nil, c)
		check.True(t, errors.Is(err, model.ErrInvalidParameter))
	}
}

func TestCrossingValue(t *testing.T) {
	base := sells([2]float64{500, 0}, [2]float64{600, 10}, [2]float64{500, 15})
	cross := sells([2]float64{500, 0}, [2]float64{600, 10}, [2]float64{500, 50})

	cases := []struct {
		name  string
		buys  []model.Offer
		sells []model.Offer
		eps   float64
		want  float64
	}{
		{"no offers", nil, nil, 0, 0},
		{"only buyers", baseBuys(), nil, 0, 45},
		{"only sellers", nil, base, 0, 0},
		{"demand and supply exhaust", baseBuys(), base, 0, 15},
		{"offers cross", baseBuys(), cross, 0, 10},
		{"offers cross with increment", baseBuys(), cross, 0.001, 10},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := CrossingValue(tc.buys, tc.sells, tc.eps)
			assert.NoError(t, err)
			check.Equal(t, tc.want, got)
		})
	}
}

func TestCrossingValue_NegativeIncrement(t *testing.T) {
	_, err := CrossingValue(baseBuys(), nil, -0.001)
	check.True(t, errors.Is(err, model.ErrInvalidParameter))
}

func TestCrossingValue_DoesNotTouchInput(t *testing.T) {
	buys := []model.Offer{{Origin: "b", Amount: 1, Value: 1}, {Origin: "a", Amount: 2, Value: 3}}
	in := sells([2]float64{-2, 0.5})
	_, err := CrossingValue(buys, in, 0)
	assert.NoError(t, err)
	check.Equal(t, "b", buys[0].Origin)
	check.Equal(t, 1.0, buys[0].Amount)
	check.Equal(t, -2.0, in[0].Amount)
}

func TestStopCriterion(t *testing.T) {
	old := []float64{0.1, 0.2, 0.3, 0.4, 0.5}

	stop, d, err := StopCriterion(old, []float64{0.1, 0.2, 0.3, 0.4, 0.5000000001})
	assert.NoError(t, err)
	check.True(t, stop)
	check.Equal(t, 0.0, round(d, 6))

	stop, d, err = StopCriterion(old, []float64{0.1, 0.2, 0.3, 0.4, 0.7})
	assert.NoError(t, err)
	check.False(t, stop)
	check.Equal(t, 0.2, round(d, 6))
}

func TestStopCriterion_ShapeMismatch(t *testing.T) {
	_, _, err := StopCriterion([]float64{1, 2}, []float64{1})
	check.True(t, errors.Is(err, model.ErrShapeMismatch))
}
