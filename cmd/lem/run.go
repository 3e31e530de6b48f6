package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v2"

	"rec-lem-prices/internal/analysis"
	"rec-lem-prices/internal/config"
	"rec-lem-prices/internal/equilibrium"
	"rec-lem-prices/internal/ledger"
	"rec-lem-prices/internal/schedule"
)

var configFlag = &cli.StringFlag{
	Name:     "config",
	Required: true,
	Usage:    "specify the run config.yaml",
}

func newLogger(ctx *cli.Context) *slog.Logger {
	level := slog.LevelWarn
	if ctx.Bool("verbose") {
		level = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func loadLoop(ctx *cli.Context) (*config.Config, *equilibrium.Loop, error) {
	cfg, err := config.Load(ctx.String("config"))
	if err != nil {
		return nil, nil, err
	}
	logger := newLogger(ctx)
	scheduler := schedule.NewPoolScheduler(cfg.Scheduler, logger)
	return cfg, equilibrium.NewLoop(scheduler, cfg.Rounding, logger).WithMarket(cfg.Market), nil
}

var loopCmd = &cli.Command{
	Name:  "loop",
	Usage: "Run price discovery from a config and write the session ledger",
	Flags: []cli.Flag{
		configFlag,
		&cli.StringFlag{
			Name:  "out",
			Value: "results/ledger.csv",
			Usage: "specify the output ledger.csv",
		},
	},
	Action: func(ctx *cli.Context) error {
		cfg, loop, err := loadLoop(ctx)
		if err != nil {
			return err
		}
		out, err := loop.Run(ctx.Context, cfg.Community, cfg.Timeframe, cfg.Pricing)
		if err != nil {
			return err
		}
		led, err := ledger.Build(cfg.Community, out.Members, out.Prices)
		if err != nil {
			return err
		}

		outPath := ctx.String("out")
		if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
			return err
		}
		if err := ledger.WriteCSV(outPath, led.Rows); err != nil {
			return err
		}

		fmt.Printf("Wrote %d rows to %s\n", len(led.Rows), outPath)
		fmt.Printf("mechanism=%s state=%s iterations=%d objective=%.6f\n",
			cfg.Pricing.Name(), out.State, out.Iterations, out.Objective)
		if out.Criterion != nil {
			fmt.Printf("criterion=%.3f\n", *out.Criterion)
		}
		fmt.Printf("prices=%v\n", out.Prices)
		fmt.Printf("traded=%.3f kWh value=€%.2f\n", led.TradedKWh, led.Value)
		return nil
	},
}

var dualCmd = &cli.Command{
	Name:  "dual",
	Usage: "Print the scheduler's dual prices for a config",
	Flags: []cli.Flag{configFlag},
	Action: func(ctx *cli.Context) error {
		cfg, loop, err := loadLoop(ctx)
		if err != nil {
			return err
		}
		prices, res, err := loop.DualPrices(ctx.Context, cfg.Community, cfg.Timeframe)
		if err != nil {
			return err
		}
		fmt.Printf("%-8s %-10s\n", "session", "price")
		for t, p := range prices {
			fmt.Printf("%-8d %-10.6f\n", t, p)
		}
		fmt.Printf("objective=%.6f\n", res.Objective)
		return nil
	},
}

var compareCmd = &cli.Command{
	Name:  "compare",
	Usage: "Run every mechanism on a config and rank them by collective cost",
	Flags: []cli.Flag{configFlag},
	Action: func(ctx *cli.Context) error {
		cfg, loop, err := loadLoop(ctx)
		if err != nil {
			return err
		}
		potential := analysis.ComputeTradePotential(cfg.Community.InitialMembers(), len(cfg.Community.MarketBuy))
		fmt.Printf("demand=%.3f supply=%.3f max_local=%.3f kWh retail_spread=€%.2f\n",
			potential.DemandKWh, potential.SupplyKWh, potential.MaxLocalKWh, potential.RetailSpread)

		ranked, err := analysis.CompareMechanisms(ctx.Context, loop, cfg.Community, cfg.Timeframe, analysis.DefaultVariants())
		if err != nil {
			return err
		}
		fmt.Printf("%-4s %-16s %-12s %-6s %-12s %-10s %-10s\n", "rank", "mechanism", "state", "iters", "objective", "mean", "p95-p05")
		for _, r := range ranked {
			if r.Err != nil {
				fmt.Printf("%-4s %-16s %v\n", "-", r.Name, r.Err)
				continue
			}
			fmt.Printf(
				"%-4d %-16s %-12s %-6d %-12.6f %-10.6f %-10.6f\n",
				r.Rank,
				r.Name,
				r.Outcome.State,
				r.Outcome.Iterations,
				r.Outcome.Objective,
				r.Stats.Mean,
				r.Stats.SpreadP95P05,
			)
		}
		return nil
	},
}
