package config

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func writeFile(dir, name, content string) string {
	path := filepath.Join(dir, name)
	Expect(os.WriteFile(path, []byte(content), 0644)).To(Succeed())
	return path
}

var _ = Describe("Manager", func() {
	var (
		dir        string
		techPath   string
		configPath string
		logs       *observer.ObservedLogs
		logger     *zap.Logger
	)

	BeforeEach(func() {
		dir = GinkgoT().TempDir()
		techPath = writeFile(dir, "techs.ini", techsINI)
		configPath = writeFile(dir, "configs.ini", configsINI)

		var core zapcore.Core
		core, logs = observer.New(zap.InfoLevel)
		logger = zap.New(core)
	})

	It("loads what it can and reports the rest", func() {
		m, diags, err := NewManager(techPath, configPath, logger)
		Expect(err).NotTo(HaveOccurred())

		Expect(diags).To(HaveLen(1))
		Expect(m.Diagnostics()).To(Equal(diags))
		Expect(m.ListTechs()).To(HaveLen(1))
		Expect(m.ListConfigs()).To(HaveLen(1))

		warnings := logs.FilterMessage("skipped configuration entry").All()
		Expect(warnings).To(HaveLen(1))
		Expect(warnings[0].ContextMap()).To(HaveKeyWithValue("section", "Broken"))
		Expect(warnings[0].ContextMap()).To(HaveKeyWithValue("field", FieldExponent))
	})

	It("looks up tiers and configurations by name", func() {
		m, _, err := NewManager(techPath, configPath, logger)
		Expect(err).NotTo(HaveOccurred())

		tier, err := m.Tech("LiquidFuel")
		Expect(err).NotTo(HaveOccurred())
		Expect(tier.Curve.OptimalTmr()).To(Equal(20.0))

		cfg, err := m.Config("Lifter")
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Tech).To(Equal("LiquidFuel"))

		_, err = m.Tech("Broken")
		Expect(err).To(MatchError(ErrTechNotFound))

		_, err = m.Config("Missing")
		Expect(err).To(MatchError(ErrConfigNotFound))
	})

	It("lists entries sorted by name", func() {
		writeFile(dir, "configs.ini", configsINI+`
[Aerospike]
tech = LiquidFuel
baseMass = 1.5
baseSize = 2.5
baseTmrMultiplier = 0.8
sizeMassExponent = 2.5
sizeTmrExponent = -0.3
`)
		m, _, err := NewManager(techPath, configPath, nil)
		Expect(err).NotTo(HaveOccurred())

		configs := m.ListConfigs()
		Expect(configs).To(HaveLen(2))
		Expect(configs[0].Name).To(Equal("Aerospike"))
		Expect(configs[1].Name).To(Equal("Lifter"))
	})

	It("fails when a file cannot be read", func() {
		_, _, err := NewManager(filepath.Join(dir, "nope.ini"), configPath, logger)
		Expect(err).To(HaveOccurred())
	})

	Describe("Reload", func() {
		It("swaps in the new registry without touching handed-out curves", func() {
			m, _, err := NewManager(techPath, configPath, logger)
			Expect(err).NotTo(HaveOccurred())

			before, err := m.Config("Lifter")
			Expect(err).NotTo(HaveOccurred())

			writeFile(dir, "techs.ini", `
[LiquidFuel]
optimalTmr = 10
tmrScaling = 3
maxIsp = 900
minIsp = 100
exponent = 1
atmosphereMultiplier = 0.5
`)
			diags, err := m.Reload()
			Expect(err).NotTo(HaveOccurred())
			Expect(diags).To(BeEmpty())
			Expect(m.Diagnostics()).To(BeEmpty())

			after, err := m.Config("Lifter")
			Expect(err).NotTo(HaveOccurred())
			Expect(after.Curve.Tech().Params().MaxIsp).To(Equal(900.0))
			Expect(before.Curve.Tech().Params().MaxIsp).To(Equal(340.0))
		})

		It("keeps the previous registry when a file disappears", func() {
			m, _, err := NewManager(techPath, configPath, logger)
			Expect(err).NotTo(HaveOccurred())

			Expect(os.Remove(configPath)).To(Succeed())
			_, err = m.Reload()
			Expect(err).To(HaveOccurred())

			_, err = m.Config("Lifter")
			Expect(err).NotTo(HaveOccurred())
		})
	})
})
