// Command analyze prints quick, human-readable tables for every size-curve
// configuration: mass, thrust, TMR and ISP at the stock part sizes, plus
// the tier's TMR envelope. Sizes whose TMR multiplier saturates are marked.
package main

import (
	"fmt"
	"io"
	"math"
	"os"
	"text/tabwriter"

	"github.com/wricardo/ksp-balance/balance/config"
	"github.com/wricardo/ksp-balance/balance/engine"
	"github.com/wricardo/ksp-balance/balance/export"
)

func main() {
	techPath := "configs/example_techs.ini"
	configPath := "configs/example_configs.ini"
	if len(os.Args) > 1 {
		techPath = os.Args[1]
	}
	if len(os.Args) > 2 {
		configPath = os.Args[2]
	}

	manager, diags, err := config.NewManager(techPath, configPath, nil)
	if err != nil {
		fmt.Printf("Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	for _, d := range diags {
		fmt.Printf("⚠️  Skipped %v\n", d)
	}

	for _, cfg := range manager.ListConfigs() {
		fmt.Printf("\n=== Analyzing %s ===\n", cfg.Name)
		analyzeConfig(os.Stdout, cfg)
	}
}

func analyzeConfig(out io.Writer, cfg config.SizedConfig) {
	tech := cfg.Curve.Tech()
	p := cfg.Curve.Params()

	fmt.Fprintf(out, "Tech: %s\n", cfg.Tech)
	fmt.Fprintf(out, "TMR envelope: %g .. %g (optimal %g)\n", tech.MinTmr(), tech.MaxTmr(), tech.OptimalTmr())
	fmt.Fprintf(out, "Base: %g t at %g m\n", p.BaseMass, p.BaseSize)

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "size\tmass\tthrust\tTMR\tvac ISP\tatm ISP\t")

	clamped := 0
	for _, size := range engine.DefaultSampleSizes {
		stats, err := cfg.Curve.EngineFromSize(size)
		if err != nil {
			fmt.Fprintf(w, "%g\t❌ %v\t\t\t\t\t\n", size, err)
			continue
		}
		tmr, _ := cfg.Curve.TmrFromSize(size)

		mark := ""
		raw := p.BaseTmrMultiplier * math.Pow(size/p.BaseSize, p.SizeTmrExponent)
		if raw < engine.MinTmrMultiplier || raw > engine.MaxTmrMultiplier {
			mark = " *"
			clamped++
		}

		fmt.Fprintf(w, "%g\t%g\t%g\t%g%s\t%g\t%g\t\n", size,
			round(stats.Mass), round(stats.Thrust), round(tmr), mark,
			round(stats.VacIsp), round(stats.AtmIsp))
	}
	w.Flush()

	if clamped > 0 {
		fmt.Fprintf(out, "⚠️  * %d sizes hit the tier's TMR limit\n", clamped)
	} else {
		fmt.Fprintf(out, "✅ All stock sizes stay inside the TMR envelope\n")
	}
}

func round(v float64) float64 {
	return export.Round(v, export.DefaultDigits)
}
