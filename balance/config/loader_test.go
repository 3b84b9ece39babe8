package config

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/multierr"

	"github.com/wricardo/ksp-balance/balance/engine"
)

const techsINI = `
[LiquidFuel]
optimalTmr = 20
tmrScaling = 2
maxIsp = 340
minIsp = 250
exponent = 2
atmosphereMultiplier = 0.9

[Broken]
optimalTmr = 15
tmrScaling = 1.5
maxIsp = 300
minIsp = 200
atmosphereMultiplier = 0.8
`

const configsINI = `
[Lifter]
tech = LiquidFuel
baseMass = 0.5
baseSize = 1.25
baseTmrMultiplier = 1.0
sizeMassExponent = 2.7
sizeTmrExponent = -0.6
`

var _ = Describe("ParseTechs", func() {
	Context("when one tier is missing a field", func() {
		It("skips that tier and still loads the well-formed one", func() {
			techs, diags, err := ParseTechs("techs.ini", []byte(techsINI))
			Expect(err).NotTo(HaveOccurred())

			Expect(techs).To(HaveLen(1))
			Expect(techs).To(HaveKey("LiquidFuel"))
			Expect(techs).NotTo(HaveKey("Broken"))

			Expect(diags).To(HaveLen(1))
			Expect(diags[0].Kind).To(Equal(KindConfiguration))
			Expect(diags[0].Section).To(Equal("Broken"))
			Expect(diags[0].Field).To(Equal(FieldExponent))
			Expect(diags[0]).To(MatchError(ErrMissingField))
		})

		It("builds the loaded tier with the declared parameters", func() {
			techs, _, err := ParseTechs("techs.ini", []byte(techsINI))
			Expect(err).NotTo(HaveOccurred())

			liquid := techs["LiquidFuel"]
			Expect(liquid.MaxTmr()).To(Equal(40.0))
			Expect(liquid.MinTmr()).To(Equal(10.0))
			Expect(liquid.VacIspFromTmr(20)).To(Equal(340.0))
		})
	})

	It("matches keys case-insensitively", func() {
		data := `
[Ion]
OPTIMALTMR = 0.5
tmrscaling = 3
MaxIsp = 4200
minIsp = 2000
Exponent = 1.5
atmosphereMultiplier = 0.05
`
		techs, diags, err := ParseTechs("techs.ini", []byte(data))
		Expect(err).NotTo(HaveOccurred())
		Expect(diags).To(BeEmpty())
		Expect(techs).To(HaveKey("Ion"))
	})

	It("reports non-numeric values as invalid fields", func() {
		data := `
[Bad]
optimalTmr = twenty
tmrScaling = 2
maxIsp = 340
minIsp = 250
exponent = 2
atmosphereMultiplier = 0.9
`
		techs, diags, err := ParseTechs("techs.ini", []byte(data))
		Expect(err).NotTo(HaveOccurred())
		Expect(techs).To(BeEmpty())
		Expect(diags).To(HaveLen(1))
		Expect(diags[0].Field).To(Equal(FieldOptimalTmr))
		Expect(diags[0]).To(MatchError(ErrInvalidField))
	})

	It("classifies degenerate envelopes as domain diagnostics", func() {
		data := `
[Flat]
optimalTmr = 20
tmrScaling = 1
maxIsp = 340
minIsp = 250
exponent = 2
atmosphereMultiplier = 0.9
`
		_, diags, err := ParseTechs("techs.ini", []byte(data))
		Expect(err).NotTo(HaveOccurred())
		Expect(diags).To(HaveLen(1))
		Expect(diags[0].Kind).To(Equal(KindDomain))
		Expect(diags[0]).To(MatchError(engine.ErrDomain))
	})

	It("classifies rule violations as configuration diagnostics", func() {
		data := `
[Inverted]
optimalTmr = 20
tmrScaling = 2
maxIsp = 200
minIsp = 250
exponent = 2
atmosphereMultiplier = 0.9
`
		_, diags, err := ParseTechs("techs.ini", []byte(data))
		Expect(err).NotTo(HaveOccurred())
		Expect(diags).To(HaveLen(1))
		Expect(diags[0].Kind).To(Equal(KindConfiguration))
		Expect(diags[0]).To(MatchError(engine.ErrInvalidCurve))
	})

	It("reads YAML files", func() {
		data := `
LiquidFuel:
  optimalTmr: 20
  tmrScaling: 2
  maxIsp: 340
  minIsp: 250
  exponent: 2
  atmosphereMultiplier: 0.9
Vacuum:
  optimalTmr: 8
  tmrScaling: 2
  maxIsp: 380
  minIsp: 300
  exponent: 1
  atmosphereMultiplier: 0
`
		techs, diags, err := ParseTechs("techs.yaml", []byte(data))
		Expect(err).NotTo(HaveOccurred())
		Expect(diags).To(BeEmpty())
		Expect(techs).To(HaveLen(2))
		Expect(techs["Vacuum"].VacIspToAtmIsp(380)).To(Equal(0.0))
	})

	It("rejects unknown file extensions", func() {
		_, _, err := ParseTechs("techs.txt", []byte(techsINI))
		Expect(err).To(MatchError(ErrUnsupportedFormat))
	})

	It("fails on syntactically broken YAML", func() {
		_, _, err := ParseTechs("techs.yaml", []byte("LiquidFuel: [unterminated"))
		Expect(err).To(HaveOccurred())
	})

	It("skips YAML entries that are not mappings", func() {
		data := `
LiquidFuel:
  optimalTmr: 20
  tmrScaling: 2
  maxIsp: 340
  minIsp: 250
  exponent: 2
  atmosphereMultiplier: 0.9
Broken: 42
Listed: [1, 2]
`
		techs, diags, err := ParseTechs("techs.yaml", []byte(data))
		Expect(err).NotTo(HaveOccurred())
		Expect(techs).To(HaveLen(1))
		Expect(techs).To(HaveKey("LiquidFuel"))

		Expect(diags).To(HaveLen(2))
		Expect(diags.Sections()).To(Equal([]string{"Broken", "Listed"}))
		for _, d := range diags {
			Expect(d.Kind).To(Equal(KindConfiguration))
			Expect(d.Source).To(Equal("techs.yaml"))
			Expect(d).To(MatchError(ErrInvalidEntry))
		}
	})

	It("skips YAML configurations that are not mappings", func() {
		techs, _, err := ParseTechs("techs.ini", []byte(techsINI))
		Expect(err).NotTo(HaveOccurred())

		data := `
Lifter:
  tech: LiquidFuel
  baseMass: 0.5
  baseSize: 1.25
  baseTmrMultiplier: 1
  sizeMassExponent: 2.7
  sizeTmrExponent: -0.6
Broken: "not a config"
`
		configs, diags, err := ParseConfigs("configs.yaml", []byte(data), techs)
		Expect(err).NotTo(HaveOccurred())
		Expect(configs).To(HaveKey("Lifter"))
		Expect(diags).To(HaveLen(1))
		Expect(diags[0].Section).To(Equal("Broken"))
		Expect(diags[0]).To(MatchError(ErrInvalidEntry))
	})
})

var _ = Describe("ParseConfigs", func() {
	var techs map[string]engine.TechCurve

	BeforeEach(func() {
		var err error
		techs, _, err = ParseTechs("techs.ini", []byte(techsINI))
		Expect(err).NotTo(HaveOccurred())
	})

	It("resolves the tech reference and derives engines", func() {
		configs, diags, err := ParseConfigs("configs.ini", []byte(configsINI), techs)
		Expect(err).NotTo(HaveOccurred())
		Expect(diags).To(BeEmpty())

		lifter := configs["Lifter"]
		Expect(lifter.Name).To(Equal("Lifter"))
		Expect(lifter.Tech).To(Equal("LiquidFuel"))

		stats, err := lifter.Curve.EngineFromSize(1.25)
		Expect(err).NotTo(HaveOccurred())
		Expect(stats.Thrust).To(Equal(10.0))
	})

	It("reports unknown tech references", func() {
		data := configsINI + `
[Orphan]
tech = Antimatter
baseMass = 1
baseSize = 2.5
baseTmrMultiplier = 1
sizeMassExponent = 2
sizeTmrExponent = 0
`
		configs, diags, err := ParseConfigs("configs.ini", []byte(data), techs)
		Expect(err).NotTo(HaveOccurred())
		Expect(configs).To(HaveLen(1))
		Expect(diags).To(HaveLen(1))
		Expect(diags[0].Kind).To(Equal(KindReference))
		Expect(diags[0].Section).To(Equal("Orphan"))
		Expect(diags[0]).To(MatchError(ErrUnknownTech))
	})

	It("reports a tier that failed to load as an unknown reference", func() {
		data := `
[UsesBroken]
tech = Broken
baseMass = 1
baseSize = 2.5
baseTmrMultiplier = 1
sizeMassExponent = 2
sizeTmrExponent = 0
`
		_, diags, err := ParseConfigs("configs.ini", []byte(data), techs)
		Expect(err).NotTo(HaveOccurred())
		Expect(diags).To(HaveLen(1))
		Expect(diags[0]).To(MatchError(ErrUnknownTech))
	})

	It("reports every missing field of an entry", func() {
		data := `
[Sparse]
tech = LiquidFuel
baseMass = 1
`
		_, diags, err := ParseConfigs("configs.ini", []byte(data), techs)
		Expect(err).NotTo(HaveOccurred())
		Expect(diags).To(HaveLen(4))
		Expect(diags.Sections()).To(Equal([]string{"Sparse"}))
		for _, d := range diags {
			Expect(d).To(MatchError(ErrMissingField))
		}
	})
})

var _ = Describe("Diagnostics", func() {
	It("combines entries into one error", func() {
		diags := Diagnostics{
			{Kind: KindConfiguration, Source: "a.ini", Section: "A", Field: "exponent", Err: ErrMissingField},
			{Kind: KindReference, Source: "b.ini", Section: "B", Err: ErrUnknownTech},
		}

		err := diags.Err()
		Expect(err).To(HaveOccurred())
		Expect(multierr.Errors(err)).To(HaveLen(2))
		Expect(errors.Is(err, ErrMissingField)).To(BeTrue())
		Expect(errors.Is(err, ErrUnknownTech)).To(BeTrue())
		Expect(err.Error()).To(ContainSubstring("a.ini: [A] exponent: missing field"))
	})

	It("returns nil when empty", func() {
		Expect(Diagnostics{}.Err()).To(BeNil())
	})

	It("serializes the error as a message", func() {
		d := Diagnostic{Kind: KindDomain, Source: "t.ini", Section: "S", Err: engine.ErrDivideByZero}
		data, err := d.MarshalJSON()
		Expect(err).NotTo(HaveOccurred())
		Expect(string(data)).To(ContainSubstring(`"kind":"domain"`))
		Expect(string(data)).To(ContainSubstring(`"error":"domain error: division by zero"`))
	})
})
