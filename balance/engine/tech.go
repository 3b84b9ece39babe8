package engine

import "math"

// TechCurve relates thrust-to-mass ratio to specific impulse for one tier.
// The zero value is not usable; build curves with NewTechCurve.
type TechCurve struct {
	params TechParams

	maxTmr      float64
	minTmr      float64
	maxTmrRange float64
	minTmrRange float64
	ispRange    float64
}

// NewTechCurve validates p and precomputes the derived envelope values.
func NewTechCurve(p TechParams) (TechCurve, error) {
	if err := ValidateTechParams(p); err != nil {
		return TechCurve{}, err
	}

	maxTmr := p.OptimalTmr * p.TmrScaling
	minTmr := p.OptimalTmr / p.TmrScaling
	return TechCurve{
		params:      p,
		maxTmr:      maxTmr,
		minTmr:      minTmr,
		maxTmrRange: maxTmr - p.OptimalTmr,
		minTmrRange: p.OptimalTmr - minTmr,
		ispRange:    p.MaxIsp - p.MinIsp,
	}, nil
}

// ValidateTechParams reports the first parameter that cannot form a curve.
func ValidateTechParams(p TechParams) error {
	fields := []struct {
		name  string
		value float64
	}{
		{"optimalTmr", p.OptimalTmr},
		{"tmrScaling", p.TmrScaling},
		{"maxIsp", p.MaxIsp},
		{"minIsp", p.MinIsp},
		{"exponent", p.Exponent},
		{"atmosphereMultiplier", p.AtmosphereMultiplier},
	}
	for _, f := range fields {
		if !isFinite(f.value) {
			return invalid(f.name, f.value, "finite")
		}
	}

	if p.OptimalTmr <= 0 {
		return degenerate("optimalTmr", p.OptimalTmr, "> 0")
	}
	// tmrScaling == 1 collapses both TMR ranges to zero.
	if p.TmrScaling <= 1 {
		return degenerate("tmrScaling", p.TmrScaling, "> 1")
	}
	if p.MaxIsp < p.MinIsp {
		return invalid("maxIsp", p.MaxIsp, ">= minIsp")
	}
	if p.Exponent <= 0 {
		return invalid("exponent", p.Exponent, "> 0")
	}
	if p.AtmosphereMultiplier < 0 {
		return invalid("atmosphereMultiplier", p.AtmosphereMultiplier, ">= 0")
	}
	return nil
}

// Params returns the parameters the curve was built from.
func (t TechCurve) Params() TechParams { return t.params }

// OptimalTmr returns the TMR at which vacuum ISP peaks at MaxIsp.
func (t TechCurve) OptimalTmr() float64 { return t.params.OptimalTmr }

// MaxTmr returns the upper edge of the envelope, OptimalTmr * TmrScaling.
func (t TechCurve) MaxTmr() float64 { return t.maxTmr }

// MinTmr returns the lower edge of the envelope, OptimalTmr / TmrScaling.
func (t TechCurve) MinTmr() float64 { return t.minTmr }

// MaxTmrRange returns MaxTmr - OptimalTmr.
func (t TechCurve) MaxTmrRange() float64 { return t.maxTmrRange }

// MinTmrRange returns OptimalTmr - MinTmr.
func (t TechCurve) MinTmrRange() float64 { return t.minTmrRange }

// IspRange returns MaxIsp - MinIsp.
func (t TechCurve) IspRange() float64 { return t.ispRange }

// VacIspFromTmr returns the vacuum ISP at the given TMR.
//
// The penalty is the normalized distance from the optimal TMR raised to the
// tier's exponent, scaled by the ISP range. Each side of the peak is
// normalized by its own range so the curve can be skewed. tmr is not clamped:
// values outside [MinTmr, MaxTmr] extrapolate past MinIsp.
func (t TechCurve) VacIspFromTmr(tmr float64) float64 {
	opt := t.params.OptimalTmr

	var distance float64
	if tmr < opt {
		distance = (opt - tmr) / t.minTmrRange
	} else {
		distance = (tmr - opt) / t.maxTmrRange
	}

	penalty := math.Pow(distance, t.params.Exponent) * t.ispRange
	return t.params.MaxIsp - penalty
}

// AtmIspFromTmr returns the atmospheric ISP at the given TMR.
func (t TechCurve) AtmIspFromTmr(tmr float64) float64 {
	return t.VacIspToAtmIsp(t.VacIspFromTmr(tmr))
}

// VacIspToAtmIsp scales a vacuum ISP by the atmosphere multiplier.
func (t TechCurve) VacIspToAtmIsp(vacIsp float64) float64 {
	return vacIsp * t.params.AtmosphereMultiplier
}

// AtmIspToVacIsp fails with ErrDivideByZero for vacuum-only tiers.
func (t TechCurve) AtmIspToVacIsp(atmIsp float64) (float64, error) {
	if t.params.AtmosphereMultiplier == 0 {
		return 0, ErrDivideByZero
	}
	return atmIsp / t.params.AtmosphereMultiplier, nil
}

// TmrFromTmrMultiplier maps a normalized multiplier to an absolute TMR.
// The multiplier is clamped to [0, 2]: 0 is MinTmr, 1 the optimal TMR and
// 2 MaxTmr, interpolating linearly on each side.
func (t TechCurve) TmrFromTmrMultiplier(multiplier float64) float64 {
	m := clamp(multiplier, MinTmrMultiplier, MaxTmrMultiplier)
	if m > OptimalTmrMultiplier {
		return (m-OptimalTmrMultiplier)*t.maxTmrRange + t.params.OptimalTmr
	}
	return (m-OptimalTmrMultiplier)*t.minTmrRange + t.params.OptimalTmr
}

// TmrMultiplierFromTmr is the inverse of TmrFromTmrMultiplier for TMR values
// inside the envelope. Values outside it map beyond [0, 2].
func (t TechCurve) TmrMultiplierFromTmr(tmr float64) float64 {
	opt := t.params.OptimalTmr
	if tmr > opt {
		return OptimalTmrMultiplier + (tmr-opt)/t.maxTmrRange
	}
	return OptimalTmrMultiplier + (tmr-opt)/t.minTmrRange
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(v, hi))
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
