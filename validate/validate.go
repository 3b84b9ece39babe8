// Command validate checks a tech tier file and a size-curve file. It reports:
//   - Entries skipped for missing or malformed fields
//   - Size curves that reference an unknown tier
//   - Parameters the model rejects
//   - Stock sizes that fail to derive or whose TMR multiplier saturates
//   - Tiers no configuration uses
//
// It exits with a non-zero status when any entry was skipped or any stock
// size fails to derive.
package main

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/wricardo/ksp-balance/balance/config"
	"github.com/wricardo/ksp-balance/balance/engine"
)

// ValidationResult captures the outcome of validating a single file.
// Errors make the file invalid; Info carries checks that passed and
// warnings that do not.
type ValidationResult struct {
	File   string
	Valid  bool
	Errors []string
	Info   []string
}

func newResult(path string) ValidationResult {
	return ValidationResult{File: filepath.Base(path), Valid: true}
}

func (r *ValidationResult) fail(format string, args ...interface{}) {
	r.Valid = false
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

func (r *ValidationResult) note(format string, args ...interface{}) {
	r.Info = append(r.Info, fmt.Sprintf(format, args...))
}

// validateFiles validates techPath and then configPath against the tiers
// that loaded from it.
func validateFiles(techPath, configPath string) []ValidationResult {
	techResult := newResult(techPath)
	configResult := newResult(configPath)

	techs, ok := loadTechs(techPath, &techResult)
	if !ok {
		configResult.fail("Not checked: tech file could not be loaded")
		return []ValidationResult{techResult, configResult}
	}

	configs, ok := loadConfigs(configPath, techs, &configResult)
	if ok {
		checkSampleSizes(configs, &configResult)
		checkUnusedTechs(techs, configs, &techResult)
	}

	return []ValidationResult{techResult, configResult}
}

func loadTechs(path string, result *ValidationResult) (map[string]engine.TechCurve, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		result.fail("Failed to read file: %v", err)
		return nil, false
	}

	techs, diags, err := config.ParseTechs(path, data)
	if err != nil {
		result.fail("%v", err)
		return nil, false
	}
	for _, d := range diags {
		result.fail("%s", describe(d))
	}

	result.note("✓ Loaded %d tech tiers", len(techs))
	return techs, true
}

func loadConfigs(path string, techs map[string]engine.TechCurve, result *ValidationResult) (map[string]config.SizedConfig, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		result.fail("Failed to read file: %v", err)
		return nil, false
	}

	configs, diags, err := config.ParseConfigs(path, data, techs)
	if err != nil {
		result.fail("%v", err)
		return nil, false
	}
	for _, d := range diags {
		result.fail("%s", describe(d))
	}

	result.note("✓ Loaded %d size-curve configurations", len(configs))
	return configs, true
}

// checkSampleSizes derives every configuration at the stock sizes
func checkSampleSizes(configs map[string]config.SizedConfig, result *ValidationResult) {
	for _, name := range sortedKeys(configs) {
		curve := configs[name].Curve
		p := curve.Params()

		failed := false
		for _, size := range engine.DefaultSampleSizes {
			if _, err := curve.EngineFromSize(size); err != nil {
				result.fail("[%s] size %g: %v", name, size, err)
				failed = true
				continue
			}

			raw := p.BaseTmrMultiplier * math.Pow(size/p.BaseSize, p.SizeTmrExponent)
			if raw < engine.MinTmrMultiplier || raw > engine.MaxTmrMultiplier {
				result.note("⚠ [%s] size %g: TMR multiplier %.3g is clamped to [%g, %g]",
					name, size, raw, engine.MinTmrMultiplier, engine.MaxTmrMultiplier)
			}
		}
		if !failed {
			result.note("✓ [%s] derives at every stock size", name)
		}
	}
}

func checkUnusedTechs(techs map[string]engine.TechCurve, configs map[string]config.SizedConfig, result *ValidationResult) {
	used := make(map[string]bool)
	for _, cfg := range configs {
		used[cfg.Tech] = true
	}
	for _, name := range sortedKeys(techs) {
		if !used[name] {
			result.note("⚠ [%s] is not used by any configuration", name)
		}
	}
}

func describe(d config.Diagnostic) string {
	if d.Field != "" {
		return fmt.Sprintf("[%s] %s: %v (%s)", d.Section, d.Field, d.Err, d.Kind)
	}
	return fmt.Sprintf("[%s] %v (%s)", d.Section, d.Err, d.Kind)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// printReport writes results and reports whether every file is valid
func printReport(w io.Writer, results []ValidationResult) bool {
	allValid := true
	for _, result := range results {
		fmt.Fprintf(w, "\n%s %s\n", strings.Repeat("=", 20), result.File)

		if result.Valid {
			fmt.Fprintln(w, "✅ VALID")
		} else {
			fmt.Fprintln(w, "❌ INVALID")
			allValid = false
			for _, err := range result.Errors {
				fmt.Fprintln(w, "  ❌ "+err)
			}
		}
		for _, info := range result.Info {
			fmt.Fprintln(w, "  "+info)
		}
	}

	fmt.Fprintf(w, "\n%s\n", strings.Repeat("=", 40))
	if allValid {
		fmt.Fprintln(w, "✅ All configurations are valid!")
	} else {
		fmt.Fprintln(w, "❌ Some configurations have errors")
	}
	return allValid
}

func main() {
	cmd := &cli.Command{
		Name:      "validate",
		Usage:     "Validate tech tier and size-curve files",
		ArgsUsage: "[techs] [configs]",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			techPath := "../configs/example_techs.ini"
			configPath := "../configs/example_configs.ini"
			if cmd.Args().Len() > 0 {
				techPath = cmd.Args().Get(0)
			}
			if cmd.Args().Len() > 1 {
				configPath = cmd.Args().Get(1)
			}

			if !printReport(os.Stdout, validateFiles(techPath, configPath)) {
				os.Exit(1)
			}
			return nil
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
