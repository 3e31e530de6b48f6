package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"rec-lem-prices/internal/data"
	"rec-lem-prices/internal/model"
	"rec-lem-prices/internal/pricing"
)

var pricingFlags = []cli.Flag{
	&cli.StringFlag{
		Name:  "mechanism",
		Value: string(pricing.MechanismMMR),
		Usage: "specify the mechanism (crossing_value, mmr, sdr, dual)",
	},
	&cli.BoolFlag{
		Name:  "pruned",
		Usage: "price only the offers that would transact (mmr, sdr)",
	},
	&cli.Float64Flag{
		Name:  "divisor",
		Value: pricing.DefaultDivisor,
		Usage: "specify the mmr divisor (2 = midpoint)",
	},
	&cli.Float64Flag{
		Name:  "compensation",
		Usage: "specify the sdr compensation (0.0-1.0)",
	},
	&cli.Float64Flag{
		Name:  "increment",
		Usage: "specify the crossing value small increment",
	},
}

func paramsFromFlags(ctx *cli.Context) pricing.Params {
	return pricing.Params{
		Mechanism:      pricing.Mechanism(ctx.String("mechanism")),
		Pruned:         ctx.Bool("pruned"),
		Divisor:        ctx.Float64("divisor"),
		Compensation:   ctx.Float64("compensation"),
		SmallIncrement: ctx.Float64("increment"),
	}
}

var offersFlag = &cli.StringFlag{
	Name:     "offers",
	Required: true,
	Usage:    "specify the input offers.json ({\"buys\": [...], \"sells\": [...]})",
}

var priceCmd = &cli.Command{
	Name:  "price",
	Usage: "Price one session from an offers file",
	Flags: append([]cli.Flag{offersFlag}, pricingFlags...),
	Action: func(ctx *cli.Context) error {
		book, err := data.LoadOfferBook(ctx.String("offers"))
		if err != nil {
			return err
		}
		params := paramsFromFlags(ctx)
		fn, err := params.Func()
		if err != nil {
			return err
		}
		clearing, err := pricing.Clear(fn, book.Buys, book.Sells)
		if err != nil {
			return err
		}
		fmt.Printf("mechanism=%s price=%.6f offers_cross=%t\n", params.Name(), clearing.Price, clearing.OffersCross)
		return nil
	},
}

var screenCmd = &cli.Command{
	Name:  "screen",
	Usage: "List the offers of a session that would transact",
	Flags: []cli.Flag{offersFlag},
	Action: func(ctx *cli.Context) error {
		book, err := data.LoadOfferBook(ctx.String("offers"))
		if err != nil {
			return err
		}
		buys, sells := pricing.AcceptedOffers(book.Buys, book.Sells)
		out := struct {
			AcceptedBuys  []model.Offer `json:"accepted_buys"`
			AcceptedSells []model.Offer `json:"accepted_sells"`
			OffersCross   bool          `json:"offers_cross"`
		}{buys, sells, pricing.OffersCross(book.Buys, book.Sells)}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	},
}
