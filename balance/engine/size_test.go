package engine

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func referenceSizeParams() SizeParams {
	return SizeParams{
		BaseMass:          0.5,
		BaseSize:          1.25,
		BaseTmrMultiplier: 1.0,
		SizeMassExponent:  2.7,
		SizeTmrExponent:   -0.6,
	}
}

func referenceSizeCurve(t *testing.T) SizeCurve {
	t.Helper()
	curve, err := NewSizeCurve(referenceTech(t), referenceSizeParams())
	require.NoError(t, err)
	return curve
}

func TestNewSizeCurve_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(p *SizeParams)
	}{
		{"zero base size", func(p *SizeParams) { p.BaseSize = 0 }},
		{"negative base size", func(p *SizeParams) { p.BaseSize = -1.25 }},
		{"zero base mass", func(p *SizeParams) { p.BaseMass = 0 }},
		{"multiplier above two", func(p *SizeParams) { p.BaseTmrMultiplier = 2.5 }},
		{"negative multiplier", func(p *SizeParams) { p.BaseTmrMultiplier = -0.1 }},
		{"NaN exponent", func(p *SizeParams) { p.SizeMassExponent = math.NaN() }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := referenceSizeParams()
			tt.mutate(&p)

			_, err := NewSizeCurve(referenceTech(t), p)
			assert.ErrorIs(t, err, ErrInvalidCurve)
		})
	}
}

func TestNewSizeCurve_BaseSizeIsDomainError(t *testing.T) {
	p := referenceSizeParams()
	p.BaseSize = 0

	_, err := NewSizeCurve(referenceTech(t), p)
	assert.ErrorIs(t, err, ErrDomain)
}

func TestMassFromSize_BaseSizeReturnsBaseMass(t *testing.T) {
	curve := referenceSizeCurve(t)

	mass, err := curve.MassFromSize(1.25)
	require.NoError(t, err)
	assert.Equal(t, 0.5, mass)
}

func TestMassFromSize_NonPositiveSize(t *testing.T) {
	curve := referenceSizeCurve(t)

	for _, size := range []float64{0, -1, math.NaN(), math.Inf(1)} {
		_, err := curve.MassFromSize(size)
		assert.ErrorIs(t, err, ErrNonPositiveSize, "size %v", size)
	}
}

func TestTmrMultiplierFromSize_AlwaysClamped(t *testing.T) {
	p := referenceSizeParams()
	p.BaseTmrMultiplier = 1.8
	p.SizeTmrExponent = -8
	curve, err := NewSizeCurve(referenceTech(t), p)
	require.NoError(t, err)

	for _, size := range []float64{1e-6, 0.01, 0.625, 1.25, 2.5, 3.75, 100, 1e9} {
		m, err := curve.TmrMultiplierFromSize(size)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, m, 0.0, "size %v", size)
		assert.LessOrEqual(t, m, 2.0, "size %v", size)
	}

	small, err := curve.TmrMultiplierFromSize(0.01)
	require.NoError(t, err)
	assert.Equal(t, 2.0, small, "tiny parts saturate at the tier maximum")
}

func TestTmrFromSize_UsesTechMapping(t *testing.T) {
	curve := referenceSizeCurve(t)

	tmr, err := curve.TmrFromSize(1.25)
	require.NoError(t, err)
	assert.Equal(t, 20.0, tmr)
}

func TestSizeCurve_OwnsItsTechCopy(t *testing.T) {
	registry := map[string]TechCurve{"liquid": referenceTech(t)}

	curve, err := NewSizeCurve(registry["liquid"], referenceSizeParams())
	require.NoError(t, err)
	before, err := curve.EngineFromSize(2.5)
	require.NoError(t, err)

	p := referenceTechParams()
	p.MaxIsp = 900
	p.OptimalTmr = 5
	replaced, err := NewTechCurve(p)
	require.NoError(t, err)
	registry["liquid"] = replaced

	after, err := curve.EngineFromSize(2.5)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Equal(t, 340.0, curve.Tech().Params().MaxIsp)
}
