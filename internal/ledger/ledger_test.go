package ledger

import (
	"bytes"
	"encoding/csv"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"

	"rec-lem-prices/internal/model"
)

func community() model.Community {
	return model.Community{
		Horizon:    2,
		DeltaT:     0.5,
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

func near(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestBuild(t *testing.T) {
	c := community()
	res, err := Build(c, c.InitialMembers(), []float64{0.1, 0.05})
	assert.NoError(t, err)
	assert.Equal(t, 2, len(res.Rows))

	r0 := res.Rows[0]
	check.Equal(t, 0, r0.Session)
	check.True(t, near(r0.StartHour, 0))
	check.True(t, near(r0.EndHour, 0.5))
	check.Equal(t, 1, r0.Buyers)
	check.Equal(t, 1, r0.Sellers)
	check.True(t, near(r0.DemandKWh, 2))
	check.True(t, near(r0.SupplyKWh, 1))
	check.True(t, near(r0.AcceptedDemandKWh, 2))
	check.True(t, near(r0.AcceptedSupplyKWh, 1))
	check.True(t, near(r0.TradedKWh, 1))
	check.True(t, near(r0.Value, 0.1))
	check.False(t, r0.OffersCross)

	// Nobody buys in the second session.
	r1 := res.Rows[1]
	check.True(t, near(r1.StartHour, 0.5))
	check.Equal(t, 0, r1.Buyers)
	check.Equal(t, 1, r1.Sellers)
	check.True(t, near(r1.SupplyKWh, 3))
	check.True(t, near(r1.AcceptedSupplyKWh, 0))
	check.True(t, near(r1.TradedKWh, 0))
	check.True(t, near(r1.CumTradedKWh, 1))
	check.True(t, near(r1.CumValue, 0.1))

	check.True(t, near(res.TradedKWh, 1))
	check.True(t, near(res.Value, 0.1))
}

func TestBuild_Errors(t *testing.T) {
	c := community()

	_, err := Build(c, c.InitialMembers(), nil)
	check.Error(t, err)

	_, err = Build(c, c.InitialMembers(), []float64{0.1, 0.1, 0.1})
	check.True(t, errors.Is(err, model.ErrShapeMismatch))
}

func TestWrite(t *testing.T) {
	c := community()
	res, err := Build(c, c.InitialMembers(), []float64{0.123456, 0.05})
	assert.NoError(t, err)

	var buf bytes.Buffer
	assert.NoError(t, Write(&buf, res.Rows))

	records, err := csv.NewReader(&buf).ReadAll()
	assert.NoError(t, err)
	assert.Equal(t, 3, len(records))
	check.Equal(t, "session", records[0][0])
	check.Equal(t, "price", records[0][3])
	check.Equal(t, "0.1235", records[1][3])
	check.Equal(t, "0.0500", records[2][3])
	check.Equal(t, "1.000000", records[1][10])
	check.Equal(t, "false", records[1][14])
}

// brokenWriter accepts the first limit bytes and then fails.
type brokenWriter struct{ limit int }

func (w *brokenWriter) Write(p []byte) (int, error) {
	if len(p) > w.limit {
		n := w.limit
		w.limit = 0
		return n, errors.New("disk full")
	}
	w.limit -= len(p)
	return len(p), nil
}

func TestWrite_FlushError(t *testing.T) {
	c := community()
	res, err := Build(c, c.InitialMembers(), []float64{0.1, 0.05})
	assert.NoError(t, err)

	// Everything fits in the csv writer's buffer, so the failure only shows
	// up when it is flushed.
	for _, limit := range []int{0, 10, 200} {
		err := Write(&brokenWriter{limit: limit}, res.Rows)
		check.Error(t, err)
	}
}

func TestWriteCSV(t *testing.T) {
	c := community()
	res, err := Build(c, c.InitialMembers(), []float64{0.1, 0.05})
	assert.NoError(t, err)

	path := filepath.Join(t.TempDir(), "ledger.csv")
	assert.NoError(t, WriteCSV(path, res.Rows))

	raw, err := os.ReadFile(path)
	assert.NoError(t, err)
	check.True(t, bytes.HasPrefix(raw, []byte("session,start_hour,end_hour,price,")))
}
