package ledger

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"

	"github.com/shopspring/decimal"
)

// pricePlaces is the precision prices are published with.
const pricePlaces = 4

func WriteCSV(path string, rows []Row) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := Write(f, rows); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Write streams rows as CSV with a header line. Errors from the final flush
// are returned too.
func Write(out io.Writer, rows []Row) error {
	w := csv.NewWriter(out)

	header := []string{
		"session",
		"start_hour",
		"end_hour",
		"price",
		"buyers",
		"sellers",
		"demand_kwh",
		"supply_kwh",
		"accepted_demand_kwh",
		"accepted_supply_kwh",
		"traded_kwh",
		"cum_traded_kwh",
		"value",
		"cum_value",
		"offers_cross",
	}
	if err := w.Write(header); err != nil {
		return err
	}

	for _, r := range rows {
		row := []string{
			strconv.Itoa(r.Session),
			fmtFloat(r.StartHour),
			fmtFloat(r.EndHour),
			fmtPrice(r.Price),
			strconv.Itoa(r.Buyers),
			strconv.Itoa(r.Sellers),
			fmtFloat(r.DemandKWh),
			fmtFloat(r.SupplyKWh),
			fmtFloat(r.AcceptedDemandKWh),
			fmtFloat(r.AcceptedSupplyKWh),
			fmtFloat(r.TradedKWh),
			fmtFloat(r.CumTradedKWh),
			fmtFloat(r.Value),
			fmtFloat(r.CumValue),
			strconv.FormatBool(r.OffersCross),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}

	w.Flush()
	return w.Error()
}

func fmtPrice(x float64) string {
	return decimal.NewFromFloat(x).StringFixed(pricePlaces)
}

func fmtFloat(x float64) string {
	return strconv.FormatFloat(x, 'f', 6, 64)
}
