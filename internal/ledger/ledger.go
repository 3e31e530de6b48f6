package ledger

import (
	"fmt"
	"math"

	"rec-lem-prices/internal/model"
	"rec-lem-prices/internal/pricing"
)

// Row is one row of per-session output.
// This is the primary artifact for "what happened" in a run.
type Row struct {
	Session int `json:"session"`

	StartHour float64 `json:"start_hour"`
	EndHour   float64 `json:"end_hour"`

	Price float64 `json:"price"`

	Buyers  int `json:"buyers"`
	Sellers int `json:"sellers"`

	DemandKWh         float64 `json:"demand_kwh"`
	SupplyKWh         float64 `json:"supply_kwh"`
	AcceptedDemandKWh float64 `json:"accepted_demand_kwh"`
	AcceptedSupplyKWh float64 `json:"accepted_supply_kwh"`

	// TradedKWh is the energy the accepted offers can exchange locally.
	TradedKWh    float64 `json:"traded_kwh"`
	CumTradedKWh float64 `json:"cum_traded_kwh"`

	// Value is TradedKWh settled at Price, in €.
	Value    float64 `json:"value"`
	CumValue float64 `json:"cum_value"`

	OffersCross bool `json:"offers_cross"`
}

type Result struct {
	Rows      []Row   `json:"rows"`
	TradedKWh float64 `json:"traded_kwh"`
	Value     float64 `json:"value"`
}

// Build rebuilds each session's offers from the members' net loads and
// records what they would trade at prices.
func Build(c model.Community, members model.Members, prices []float64) (*Result, error) {
	n := len(prices)
	if n == 0 {
		return nil, fmt.Errorf("no prices")
	}
	buys, sells, err := pricing.MakeOffers(members, n, c.MarketBuy, c.MarketSell)
	if err != nil {
		return nil, err
	}

	rows := make([]Row, 0, n)
	cumTraded, cumValue := 0.0, 0.0
	for t := 0; t < n; t++ {
		accBuys, accSells := pricing.AcceptedOffers(buys[t], sells[t])
		accDemand := model.TotalAmount(accBuys)
		accSupply := model.TotalAmount(accSells)
		traded := math.Min(accDemand, accSupply)
		value := traded * prices[t]
		cumTraded += traded
		cumValue += value

		rows = append(rows, Row{
			Session: t,

			StartHour: float64(t) * c.DeltaT,
			EndHour:   float64(t+1) * c.DeltaT,

			Price: prices[t],

			Buyers:  len(buys[t]),
			Sellers: len(sells[t]),

			DemandKWh:         model.TotalAmount(buys[t]),
			SupplyKWh:         model.TotalAmount(sells[t]),
			AcceptedDemandKWh: accDemand,
			AcceptedSupplyKWh: accSupply,

			TradedKWh:    traded,
			CumTradedKWh: cumTraded,

			Value:    value,
			CumValue: cumValue,

			OffersCross: pricing.OffersCross(buys[t], sells[t]),
		})
	}

	return &Result{
		Rows:      rows,
		TradedKWh: cumTraded,
		Value:     cumValue,
	}, nil
}
