package config

import (
	"fmt"
	"os"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/wricardo/ksp-balance/balance/engine"
	"github.com/wricardo/ksp-balance/logging"
	"github.com/wricardo/ksp-balance/metrics"
)

// Manager holds the loaded tech tiers and size-curve configurations
type Manager struct {
	techPath    string
	configPath  string
	logger      *zap.Logger
	techs       map[string]engine.TechCurve
	configs     map[string]SizedConfig
	diagnostics Diagnostics
	mu          sync.RWMutex
}

// NewManager loads techPath and then configPath. Rejected entries are
// returned as Diagnostics; the error is reserved for files that cannot be
// read or parsed at all.
func NewManager(techPath, configPath string, logger *zap.Logger) (*Manager, Diagnostics, error) {
	m := &Manager{
		techPath:   techPath,
		configPath: configPath,
		logger:     logging.OrNop(logger),
	}

	diags, err := m.Reload()
	if err != nil {
		return nil, nil, err
	}
	return m, diags, nil
}

// Reload re-reads both files and swaps in the new registry. Size curves
// handed out before the reload keep the tiers they were built with. On a
// fatal error the previous registry stays in place.
func (m *Manager) Reload() (Diagnostics, error) {
	techData, err := os.ReadFile(m.techPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read tech file: %w", err)
	}
	configData, err := os.ReadFile(m.configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	techs, techDiags, err := ParseTechs(m.techPath, techData)
	if err != nil {
		return nil, err
	}
	configs, configDiags, err := ParseConfigs(m.configPath, configData, techs)
	if err != nil {
		return nil, err
	}

	diags := append(techDiags, configDiags...)
	for _, d := range diags {
		m.logger.Warn("skipped configuration entry",
			zap.String("kind", string(d.Kind)),
			zap.String("source", d.Source),
			zap.String("section", d.Section),
			zap.String("field", d.Field),
			zap.Error(d.Err),
		)
		metrics.RecordDiagnostic(string(d.Kind))
	}
	m.logger.Info("loaded balance configuration",
		zap.Int("techs", len(techs)),
		zap.Int("configs", len(configs)),
		zap.Int("diagnostics", len(diags)),
	)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.techs = techs
	m.configs = configs
	m.diagnostics = diags
	return diags, nil
}

// Tech returns the tier registered under name
func (m *Manager) Tech(name string) (Tier, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	curve, ok := m.techs[name]
	if !ok {
		return Tier{}, fmt.Errorf("%w: %q", ErrTechNotFound, name)
	}
	return Tier{Name: name, Curve: curve}, nil
}

// Config returns the size-curve configuration registered under name
func (m *Manager) Config(name string) (SizedConfig, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cfg, ok := m.configs[name]
	if !ok {
		return SizedConfig{}, fmt.Errorf("%w: %q", ErrConfigNotFound, name)
	}
	return cfg, nil
}

// ListTechs returns every loaded tier sorted by name
func (m *Manager) ListTechs() []Tier {
	m.mu.RLock()
	defer m.mu.RUnlock()

	tiers := make([]Tier, 0, len(m.techs))
	for name, curve := range m.techs {
		tiers = append(tiers, Tier{Name: name, Curve: curve})
	}
	sort.Slice(tiers, func(i, j int) bool { return tiers[i].Name < tiers[j].Name })
	return tiers
}

// ListConfigs returns every loaded configuration sorted by name
func (m *Manager) ListConfigs() []SizedConfig {
	m.mu.RLock()
	defer m.mu.RUnlock()

	configs := make([]SizedConfig, 0, len(m.configs))
	for _, cfg := range m.configs {
		configs = append(configs, cfg)
	}
	sort.Slice(configs, func(i, j int) bool { return configs[i].Name < configs[j].Name })
	return configs
}

// Diagnostics returns the problems recorded by the last successful load
func (m *Manager) Diagnostics() Diagnostics {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(Diagnostics, len(m.diagnostics))
	copy(out, m.diagnostics)
	return out
}
