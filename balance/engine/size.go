package engine

import "math"

// SizeCurve relates a part's size (diameter in meters) to its mass and TMR
// multiplier. It owns a copy of its TechCurve, so later changes to a shared
// tier definition never reach an already-built SizeCurve.
type SizeCurve struct {
	tech   TechCurve
	params SizeParams
}

// NewSizeCurve validates p and binds it to a copy of tech.
func NewSizeCurve(tech TechCurve, p SizeParams) (SizeCurve, error) {
	if err := ValidateSizeParams(p); err != nil {
		return SizeCurve{}, err
	}
	return SizeCurve{tech: tech, params: p}, nil
}

// ValidateSizeParams reports the first parameter that cannot form a curve.
func ValidateSizeParams(p SizeParams) error {
	fields := []struct {
		name  string
		value float64
	}{
		{"baseMass", p.BaseMass},
		{"baseSize", p.BaseSize},
		{"baseTmrMultiplier", p.BaseTmrMultiplier},
		{"sizeMassExponent", p.SizeMassExponent},
		{"sizeTmrExponent", p.SizeTmrExponent},
	}
	for _, f := range fields {
		if !isFinite(f.value) {
			return invalid(f.name, f.value, "finite")
		}
	}

	if p.BaseSize <= 0 {
		return degenerate("baseSize", p.BaseSize, "> 0")
	}
	if p.BaseMass <= 0 {
		return invalid("baseMass", p.BaseMass, "> 0")
	}
	if p.BaseTmrMultiplier < MinTmrMultiplier || p.BaseTmrMultiplier > MaxTmrMultiplier {
		return invalid("baseTmrMultiplier", p.BaseTmrMultiplier, "within [0, 2]")
	}
	return nil
}

// Tech returns the curve's own copy of its tech tier.
func (c SizeCurve) Tech() TechCurve { return c.tech }

// Params returns the parameters the curve was built from.
func (c SizeCurve) Params() SizeParams { return c.params }

// MassFromSize scales BaseMass by (size/BaseSize)^SizeMassExponent.
func (c SizeCurve) MassFromSize(size float64) (float64, error) {
	ratio, err := c.sizeRatio(size)
	if err != nil {
		return 0, err
	}
	return c.params.BaseMass * math.Pow(ratio, c.params.SizeMassExponent), nil
}

// TmrMultiplierFromSize scales BaseTmrMultiplier by (size/BaseSize)^SizeTmrExponent
// and saturates the result into [0, 2] so no size exceeds the tier's limits.
func (c SizeCurve) TmrMultiplierFromSize(size float64) (float64, error) {
	ratio, err := c.sizeRatio(size)
	if err != nil {
		return 0, err
	}
	multiplier := c.params.BaseTmrMultiplier * math.Pow(ratio, c.params.SizeTmrExponent)
	return clamp(multiplier, MinTmrMultiplier, MaxTmrMultiplier), nil
}

// TmrFromSize converts the size's TMR multiplier into an absolute TMR.
func (c SizeCurve) TmrFromSize(size float64) (float64, error) {
	multiplier, err := c.TmrMultiplierFromSize(size)
	if err != nil {
		return 0, err
	}
	return c.tech.TmrFromTmrMultiplier(multiplier), nil
}

// EngineFromSize derives the engine statistics for one size.
func (c SizeCurve) EngineFromSize(size float64) (EngineStats, error) {
	return DeriveEngine(c, size)
}

func (c SizeCurve) sizeRatio(size float64) (float64, error) {
	if !(size > 0) || math.IsInf(size, 0) || !(c.params.BaseSize > 0) {
		return 0, ErrNonPositiveSize
	}
	return size / c.params.BaseSize, nil
}
