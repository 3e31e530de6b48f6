package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "lem",
		Usage: "Price discovery for renewable energy community local markets",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "log every iteration",
			},
		},
		Commands: []*cli.Command{
			priceCmd,
			screenCmd,
			loopCmd,
			dualCmd,
			compareCmd,
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Println("Error: ", err)
		os.Exit(1)
	}
}
