package data

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"

	"rec-lem-prices/internal/equilibrium"
)

const communityJSON = `{
  "horizon": 2,
  "delta_t": 1,
  "l_extra": 0.5,
  "l_grid": [0.01, 0.01],
  "l_market_buy": [0.25, 0.25],
  "l_market_sell": [0.04, 0.04],
  "members": [
    {"id": "m1", "e_c": [2, 0], "e_g": [0, 0], "l_buy": [0.2, 0.2], "l_sell": [0.05, 0.05], "max_p": 4,
     "btm_storage": [{"e_bn": 10, "p_max": 5, "eff_bc": 0.95, "eff_bd": 0.95, "init_e": 2, "soc_min": 0.1, "soc_max": 0.9}]},
    {"id": "m2", "e_c": [0, 0], "e_g": [1, 3], "l_buy": [0.2, 0.2], "l_sell": [0.05, 0.05]}
  ]
}`

const communityYAML = `community:
  horizon: 2
  delta_t: 1
  l_grid: [0.01, 0.01]
  l_market_buy: [0.25, 0.25]
  l_market_sell: [0.04, 0.04]
  members:
    - id: m1
      e_c: [2, 0]
      e_g: [0, 0]
      l_buy: [0.2, 0.2]
      l_sell: [0.05, 0.05]
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	assert.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadCommunityJSON(t *testing.T) {
	c, err := LoadCommunityJSON(writeFile(t, "community.json", communityJSON))
	assert.NoError(t, err)
	check.Equal(t, 2.0, c.Horizon)
	check.Equal(t, 0.5, c.ExtraPowerCost)
	assert.Equal(t, 2, len(c.Members))
	check.Equal(t, "m1", c.Members[0].ID)
	check.Equal(t, 4.0, c.Members[0].MaxPowerKW)
	assert.Equal(t, 1, len(c.Members[0].Storage))
	check.Equal(t, 10.0, c.Members[0].Storage[0].CapacityKWh)
	check.Equal(t, 0.9, c.Members[0].Storage[0].MaxSOC)
	check.Equal(t, 0, len(c.Members[1].Storage))

	n, err := c.Validate("")
	check.NoError(t, err)
	check.Equal(t, 2, n)
}

func TestLoadCommunity_PicksDecoder(t *testing.T) {
	c, err := LoadCommunity(writeFile(t, "community.yaml", communityYAML))
	assert.NoError(t, err)
	check.Equal(t, 1, len(c.Members))
	check.Equal(t, []float64{0.25, 0.25}, c.MarketBuy)

	c, err = LoadCommunity(writeFile(t, "community.JSON", communityJSON))
	assert.NoError(t, err)
	check.Equal(t, 2, len(c.Members))
}

func TestLoadCommunity_Errors(t *testing.T) {
	_, err := LoadCommunityJSON(filepath.Join(t.TempDir(), "missing.json"))
	check.Error(t, err)

	_, err = LoadCommunityJSON(writeFile(t, "bad.json", "{"))
	check.Error(t, err)

	_, err = LoadCommunityYAML(writeFile(t, "bad.yaml", "community: ["))
	check.Error(t, err)
}

func TestLoadOfferBook(t *testing.T) {
	b, err := LoadOfferBook(writeFile(t, "offers.json",
		`{"buys": [{"origin": "a", "amount": 2, "value": 0.2}], "sells": [{"origin": "b", "amount": 1, "value": 0.05}]}`))
	assert.NoError(t, err)
	assert.Equal(t, 1, len(b.Buys))
	check.Equal(t, "a", b.Buys[0].Origin)
	check.Equal(t, 0.05, b.Sells[0].Value)
}

func TestRunStore(t *testing.T) {
	s := NewRunStore(time.Minute, time.Hour)
	defer s.Close()

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	id := s.Put(&Run{Outcome: &equilibrium.Outcome{Iterations: 3}})
	check.NotEqual(t, "", id)
	check.Equal(t, 1, s.Len())

	run, ok := s.Get(id)
	assert.True(t, ok)
	check.Equal(t, id, run.ID)
	check.Equal(t, now, run.CreatedAt)
	check.Equal(t, 3, run.Outcome.Iterations)

	_, ok = s.Get("not-a-uuid")
	check.False(t, ok)

	other := s.Put(&Run{})
	check.NotEqual(t, id, other)

	now = now.Add(2 * time.Minute)
	_, ok = s.Get(id)
	check.False(t, ok)

	s.sweep()
	check.Equal(t, 0, s.Len())
}

func TestRunStore_Defaults(t *testing.T) {
	s := NewRunStore(0, 0)
	defer s.Close()
	check.Equal(t, DefaultRunTTL, s.ttl)

	// Close twice.
	s.Close()
}
