// Package config loads technology tiers and size-curve configurations.
//
// The config package handles:
//   - Parsing tech tier and size-curve definitions from INI or YAML files
//   - Per-entry validation with partial-success loading
//   - Resolving size-curve tech references against the loaded tiers
//   - Caching the loaded registry and reloading it from disk
//
// Configuration Format:
//
// INI files hold one section per entry. A tech tier file:
//
//	[LiquidFuel]
//	optimalTmr = 20
//	tmrScaling = 2
//	maxIsp = 340
//	minIsp = 250
//	exponent = 2
//	atmosphereMultiplier = 0.9
//
// A size-curve file names the tier it is built on:
//
//	[Lifter]
//	tech = LiquidFuel
//	baseMass = 0.5
//	baseSize = 1.25
//	baseTmrMultiplier = 1.0
//	sizeMassExponent = 2.7
//	sizeTmrExponent = -0.6
//
// YAML files (.yaml, .yml) map entry names to the same keys. Keys are
// matched case-insensitively.
//
// Diagnostics:
//
// A missing or non-numeric field, an unknown tech reference, or parameters
// the model rejects never abort loading. The offending entry is skipped,
// a Diagnostic naming the file, section and field is recorded and logged,
// and the remaining entries load normally. Only unreadable or syntactically
// broken files are fatal.
//
// Usage:
//
//	manager, err := config.NewManager("configs/techs.ini", "configs/configs.ini", logger)
//	if err != nil {
//		log.Fatal(err)
//	}
//	for _, d := range manager.Diagnostics() {
//		fmt.Println(d)
//	}
//
//	lifter, err := manager.Config("Lifter")
//	stats, err := lifter.Curve.EngineFromSize(2.5)
package config
