package engine

const (
	// MinTmrMultiplier maps to a tier's minimum TMR.
	MinTmrMultiplier = 0.0
	// OptimalTmrMultiplier maps to a tier's optimal TMR.
	OptimalTmrMultiplier = 1.0
	// MaxTmrMultiplier maps to a tier's maximum TMR.
	MaxTmrMultiplier = 2.0

	// MinCurveSamples is the smallest number of points SampleTech accepts.
	MinCurveSamples = 2
	// MaxCurveSamples bounds preview requests.
	MaxCurveSamples = 1000
)

// DefaultSampleSizes are the part diameters (meters) used for quick reports.
var DefaultSampleSizes = []float64{0.625, 1.25, 2.5, 3.75}

// TechParams are the raw parameters of a technology tier.
type TechParams struct {
	OptimalTmr           float64 `json:"optimalTmr" yaml:"optimalTmr"`
	TmrScaling           float64 `json:"tmrScaling" yaml:"tmrScaling"`
	MaxIsp               float64 `json:"maxIsp" yaml:"maxIsp"`
	MinIsp               float64 `json:"minIsp" yaml:"minIsp"`
	Exponent             float64 `json:"exponent" yaml:"exponent"`
	AtmosphereMultiplier float64 `json:"atmosphereMultiplier" yaml:"atmosphereMultiplier"`
}

// SizeParams are the raw parameters of a size curve, excluding its tech tier.
type SizeParams struct {
	BaseMass          float64 `json:"baseMass" yaml:"baseMass"`
	BaseSize          float64 `json:"baseSize" yaml:"baseSize"`
	BaseTmrMultiplier float64 `json:"baseTmrMultiplier" yaml:"baseTmrMultiplier"`
	SizeMassExponent  float64 `json:"sizeMassExponent" yaml:"sizeMassExponent"`
	SizeTmrExponent   float64 `json:"sizeTmrExponent" yaml:"sizeTmrExponent"`
}

// EngineStats is the derived performance of one engine.
// Values are never rounded here; formatting belongs to the exporters.
type EngineStats struct {
	Mass   float64 `json:"mass"`
	Thrust float64 `json:"thrust"`
	VacIsp float64 `json:"vac_isp"`
	AtmIsp float64 `json:"atm_isp"`
}

// CurvePoint is one sample of a tech curve.
type CurvePoint struct {
	Tmr           float64 `json:"tmr"`
	TmrMultiplier float64 `json:"tmr_multiplier"`
	VacIsp        float64 `json:"vac_isp"`
	AtmIsp        float64 `json:"atm_isp"`
}
