package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/urfave/cli/v3"

	"github.com/wricardo/ksp-balance/balance/engine"
	"github.com/wricardo/ksp-balance/balance/export"
)

func curveCommand() *cli.Command {
	return &cli.Command{
		Name:      "curve",
		Usage:     "Print a tech tier's TMR to ISP curve",
		ArgsUsage: "<tech>",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "samples",
				Usage: "evenly spaced samples between the minimum and maximum TMR",
				Value: 21,
			},
			&cli.IntFlag{
				Name:  "digits",
				Usage: "significant digits in printed values",
			},
		},
		Action: runCurve,
	}
}

func runCurve(ctx context.Context, cmd *cli.Command) error {
	name := cmd.Args().First()
	if name == "" {
		return fmt.Errorf("tech name required")
	}

	s, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	manager, _, err := loadRegistry(s, logger)
	if err != nil {
		return err
	}
	tier, err := manager.Tech(name)
	if err != nil {
		return err
	}

	points, err := engine.SampleTech(tier.Curve, cmd.Int("samples"))
	if err != nil {
		return err
	}

	round := func(v float64) float64 { return export.Round(v, s.Digits) }
	w := tabwriter.NewWriter(cmd.Root().Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "TMR\tMULTIPLIER\tVAC ISP\tATM ISP\n")
	for _, p := range points {
		fmt.Fprintf(w, "%v\t%v\t%v\t%v\n", round(p.Tmr), round(p.TmrMultiplier), round(p.VacIsp), round(p.AtmIsp))
	}
	return w.Flush()
}
