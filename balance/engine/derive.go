package engine

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
)

// DeriveEngine composes a size curve and its tech tier into engine statistics.
//
// Thrust follows the TMR definition (thrust / mass), so thrust = mass * tmr.
// A result that overflows (extreme size exponents) is reported as
// ErrNonFinite rather than returned.
func DeriveEngine(c SizeCurve, size float64) (EngineStats, error) {
	tmr, err := c.TmrFromSize(size)
	if err != nil {
		return EngineStats{}, err
	}
	mass, err := c.MassFromSize(size)
	if err != nil {
		return EngineStats{}, err
	}

	vacIsp := c.tech.VacIspFromTmr(tmr)
	stats := EngineStats{
		Mass:   mass,
		Thrust: mass * tmr,
		VacIsp: vacIsp,
		AtmIsp: c.tech.VacIspToAtmIsp(vacIsp),
	}

	if !isFinite(stats.Mass) || !isFinite(stats.Thrust) || !isFinite(stats.VacIsp) || !isFinite(stats.AtmIsp) {
		return EngineStats{}, fmt.Errorf("%w at size %g", ErrNonFinite, size)
	}
	return stats, nil
}

// SampleTech evaluates the tech curve at n evenly spaced TMR values spanning
// [MinTmr, MaxTmr].
func SampleTech(t TechCurve, n int) ([]CurvePoint, error) {
	if n < MinCurveSamples || n > MaxCurveSamples {
		return nil, fmt.Errorf("%w: samples must be within [%d, %d], got %d",
			ErrDomain, MinCurveSamples, MaxCurveSamples, n)
	}

	tmrs := floats.Span(make([]float64, n), t.MinTmr(), t.MaxTmr())
	points := make([]CurvePoint, n)
	for i, tmr := range tmrs {
		vac := t.VacIspFromTmr(tmr)
		points[i] = CurvePoint{
			Tmr:           tmr,
			TmrMultiplier: t.TmrMultiplierFromTmr(tmr),
			VacIsp:        vac,
			AtmIsp:        t.VacIspToAtmIsp(vac),
		}
	}
	return points, nil
}
