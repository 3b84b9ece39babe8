package mcp

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/wricardo/ksp-balance/balance/batch"
	"github.com/wricardo/ksp-balance/balance/export"
	"github.com/wricardo/ksp-balance/balance/runs"
	"github.com/wricardo/ksp-balance/balance/service"
)

// maxListedResults caps how many per-part lines a tool response carries.
const maxListedResults = 50

// num renders v rounded to the export precision.
func num(v float64) string {
	return strconv.FormatFloat(export.Round(v, export.DefaultDigits), 'f', -1, 64)
}

func formatTechInfo(t *service.TechInfo) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Tech: %s\n", t.Name)
	fmt.Fprintf(&b, "Optimal TMR: %s (ISP %s)\n", num(t.Params.OptimalTmr), num(t.Params.MaxIsp))
	fmt.Fprintf(&b, "TMR range: %s..%s (scaling %s)\n", num(t.MinTmr), num(t.MaxTmr), num(t.Params.TmrScaling))
	fmt.Fprintf(&b, "ISP at the bounds: %s (range %s)\n", num(t.Params.MinIsp), num(t.IspRange))
	fmt.Fprintf(&b, "Exponent: %s\n", num(t.Params.Exponent))
	fmt.Fprintf(&b, "Atmosphere multiplier: %s\n", num(t.Params.AtmosphereMultiplier))
	if len(t.UsedBy) > 0 {
		fmt.Fprintf(&b, "Used by: %s\n", strings.Join(t.UsedBy, ", "))
	}
	return b.String()
}

func formatConfigInfo(cfg *service.ConfigInfo) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Configuration: %s (tech: %s)\n", cfg.Name, cfg.Tech)
	fmt.Fprintf(&b, "Base: size %s, mass %s, TMR multiplier %s\n",
		num(cfg.Params.BaseSize), num(cfg.Params.BaseMass), num(cfg.Params.BaseTmrMultiplier))
	fmt.Fprintf(&b, "Exponents: mass %s, TMR %s\n\n",
		num(cfg.Params.SizeMassExponent), num(cfg.Params.SizeTmrExponent))

	b.WriteString("size | mass | thrust | TMR | vac ISP | atm ISP\n")
	for _, s := range cfg.Samples {
		if s.Stats == nil {
			fmt.Fprintf(&b, "%s | error: %s\n", num(s.Size), s.Error)
			continue
		}
		fmt.Fprintf(&b, "%s | %s | %s | %s | %s | %s\n",
			num(s.Size), num(s.Stats.Mass), num(s.Stats.Thrust), num(s.Tmr),
			num(s.Stats.VacIsp), num(s.Stats.AtmIsp))
	}
	return b.String()
}

func formatCurve(curve *service.CurveResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "TMR curve for %s (%d samples):\n\n", curve.Tech, len(curve.Points))
	b.WriteString("TMR | multiplier | vac ISP | atm ISP\n")
	for _, p := range curve.Points {
		fmt.Fprintf(&b, "%s | %s | %s | %s\n", num(p.Tmr), num(p.TmrMultiplier), num(p.VacIsp), num(p.AtmIsp))
	}
	return b.String()
}

func formatDeriveResult(r *service.DeriveResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Engine: %s at size %s (tech: %s)\n", r.Config, num(r.Size), r.Tech)
	fmt.Fprintf(&b, "Mass: %s t\n", num(r.Stats.Mass))
	fmt.Fprintf(&b, "Thrust: %s kN\n", num(r.Stats.Thrust))
	fmt.Fprintf(&b, "TMR: %s (multiplier %s)\n", num(r.Tmr), num(r.TmrMultiplier))
	fmt.Fprintf(&b, "Vacuum ISP: %s s\n", num(r.Stats.VacIsp))
	fmt.Fprintf(&b, "Atmospheric ISP: %s s\n", num(r.Stats.AtmIsp))
	return b.String()
}

func formatBatchResult(results []batch.Result, rowErrs []batch.RowError, succeeded, failed int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Derived %d parts: %d succeeded, %d failed\n\n", len(results), succeeded, failed)
	for i, r := range results {
		if i == maxListedResults {
			fmt.Fprintf(&b, "... %d more\n", len(results)-maxListedResults)
			break
		}
		b.WriteString(formatResultLine(r))
	}
	if len(rowErrs) > 0 {
		fmt.Fprintf(&b, "\nUnreadable rows (%d):\n", len(rowErrs))
		for _, e := range rowErrs {
			fmt.Fprintf(&b, "x %s\n", e.Error())
		}
	}
	return b.String()
}

func formatResultLine(r batch.Result) string {
	if !r.OK() {
		msg := r.Error
		if msg == "" && r.Err != nil {
			msg = r.Err.Error()
		}
		return fmt.Sprintf("x %s (%s @ %s): %s\n", r.Row.Name, r.Row.Config, num(r.Row.Size), msg)
	}
	return fmt.Sprintf("- %s (%s @ %s): mass %s, thrust %s, ISP %s/%s\n",
		r.Row.Name, r.Row.Config, num(r.Row.Size),
		num(r.Stats.Mass), num(r.Stats.Thrust), num(r.Stats.VacIsp), num(r.Stats.AtmIsp))
}

func formatRun(run *runs.Run) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Run: %s\n", run.ID)
	fmt.Fprintf(&b, "Status: %s\n", run.Status)
	fmt.Fprintf(&b, "Created: %s\n", run.CreatedAt.Format("2006-01-02 15:04:05"))
	if run.CompletedAt != nil {
		fmt.Fprintf(&b, "Completed: %s\n", run.CompletedAt.Format("2006-01-02 15:04:05"))
	}
	if run.Error != "" {
		fmt.Fprintf(&b, "Error: %s\n", run.Error)
	}
	if !run.Status.Finished() {
		fmt.Fprintf(&b, "\n%d parts queued. Poll again shortly.\n", run.Total)
		return b.String()
	}
	b.WriteString("\n")
	b.WriteString(formatBatchResult(run.Results, run.RowErrors, run.Succeeded, run.Failed))
	return b.String()
}

func formatDiagnostics(diags []diagnosticDTO) string {
	if len(diags) == 0 {
		return "No diagnostics: every configuration entry loaded.\n"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Skipped entries (%d):\n\n", len(diags))
	for _, d := range diags {
		if d.Field != "" {
			fmt.Fprintf(&b, "- [%s] %s in %s, field %s: %s\n", d.Kind, d.Section, d.Source, d.Field, d.Error)
		} else {
			fmt.Fprintf(&b, "- [%s] %s in %s: %s\n", d.Kind, d.Section, d.Source, d.Error)
		}
	}
	return b.String()
}
