package model

// Offer is a single buy or sell offer made by a community member for one
// market session.
// Units:
// - Amount: kWh (always >= 0, the side is given by the list the offer is in)
// - Value: €/kWh
//
// Buy offers are willing to pay up to Value; sell offers accept down to Value.
type Offer struct {
	Origin string  `json:"origin"`
	Amount float64 `json:"amount"`
	Value  float64 `json:"value"`
}

// Side tells buy offers from sell offers where a single list is not enough
// (ledger rows, API payloads).
// Keep these values stable; they are intended for CSV output.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// SideFromNetLoad maps a signed net load (positive = consuming) to the side
// of the offer it produces. The second value is false when no offer is made.
func SideFromNetLoad(netLoad float64) (Side, bool) {
	switch {
	case netLoad > 0:
		return SideBuy, true
	case netLoad < 0:
		return SideSell, true
	default:
		return "", false
	}
}

// TotalAmount sums the amounts of a list of offers.
func TotalAmount(offers []Offer) float64 {
	total := 0.0
	for _, o := range offers {
		total += o.Amount
	}
	return total
}
