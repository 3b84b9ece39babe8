// Package engine provides the balancing model for the KSP engine generator.
//
// The engine package implements:
//   - Tech curves relating thrust-to-mass ratio (TMR) to specific impulse
//   - Size curves relating engine diameter to mass and a TMR multiplier
//   - Derivation of final engine statistics from a size curve and a size
//   - Sampling helpers used by reports and previews
//
// Core Types:
//
// TechCurve describes one technology tier. SizeCurve describes how a family
// of parts built on one tier scales with size; it holds its own copy of the
// TechCurve it was built from. EngineStats is the immutable result of a
// derivation.
//
// Usage:
//
//	tech, err := engine.NewTechCurve(engine.TechParams{
//		OptimalTmr:           20,
//		TmrScaling:           2,
//		MaxIsp:               340,
//		MinIsp:               250,
//		Exponent:             2,
//		AtmosphereMultiplier: 0.9,
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	curve, err := engine.NewSizeCurve(tech, engine.SizeParams{
//		BaseMass:          0.5,
//		BaseSize:          1.25,
//		BaseTmrMultiplier: 1,
//		SizeMassExponent:  2.7,
//		SizeTmrExponent:   -0.6,
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	stats, err := curve.EngineFromSize(2.5)
//
// Model:
//
// ISP peaks at the tier's optimal TMR and falls off as a power law towards
// the edges of the TMR envelope, independently scaled on each side. The
// falloff is not clamped: TMR values outside the envelope extrapolate.
// Size curves keep TMR inside the envelope by clamping the normalized
// multiplier to [0, 2] before converting it to an absolute TMR.
//
// All types are immutable after construction and every operation is a pure
// function, so curves can be shared between goroutines without locking.
package engine
