package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/wricardo/ksp-balance/balance/batch"
	"github.com/wricardo/ksp-balance/balance/config"
	"github.com/wricardo/ksp-balance/balance/engine"
	"github.com/wricardo/ksp-balance/balance/runs"
	"github.com/wricardo/ksp-balance/logging"
	"github.com/wricardo/ksp-balance/metrics"
)

// Option configures the service
type Option func(*balanceServiceImpl)

// WithPublisher streams asynchronous run progress to p
func WithPublisher(p Publisher) Option {
	return func(s *balanceServiceImpl) { s.publisher = p }
}

// WithLogger sets the service logger
func WithLogger(logger *zap.Logger) Option {
	return func(s *balanceServiceImpl) { s.logger = logging.OrNop(logger) }
}

// WithWorkers bounds the goroutines used per batch
func WithWorkers(n int) Option {
	return func(s *balanceServiceImpl) { s.workers = n }
}

// WithBaseContext sets the context asynchronous runs derive from. Canceling
// it cancels every run still in flight.
func WithBaseContext(ctx context.Context) Option {
	return func(s *balanceServiceImpl) { s.baseCtx = ctx }
}

// balanceServiceImpl implements the BalanceService interface
type balanceServiceImpl struct {
	registry  Registry
	runs      RunStore
	publisher Publisher
	logger    *zap.Logger
	workers   int
	baseCtx   context.Context
}

// NewBalanceService creates a new balance service instance
func NewBalanceService(registry Registry, runStore RunStore, opts ...Option) BalanceService {
	s := &balanceServiceImpl{
		registry:  registry,
		runs:      runStore,
		publisher: nopPublisher{},
		logger:    zap.NewNop(),
		baseCtx:   context.Background(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.publisher == nil {
		s.publisher = nopPublisher{}
	}
	return s
}

// ListTechs returns every loaded tier
func (s *balanceServiceImpl) ListTechs(ctx context.Context) ([]*TechInfo, error) {
	usedBy := s.techUsage()
	tiers := s.registry.ListTechs()
	result := make([]*TechInfo, 0, len(tiers))
	for _, tier := range tiers {
		result = append(result, newTechInfo(tier, usedBy[tier.Name]))
	}
	return result, nil
}

// GetTech returns one tier
func (s *balanceServiceImpl) GetTech(ctx context.Context, name string) (*TechInfo, error) {
	tier, err := s.registry.Tech(name)
	if err != nil {
		return nil, err
	}
	return newTechInfo(tier, s.techUsage()[name]), nil
}

// ListConfigs returns every loaded configuration without samples
func (s *balanceServiceImpl) ListConfigs(ctx context.Context) ([]*ConfigInfo, error) {
	configs := s.registry.ListConfigs()
	result := make([]*ConfigInfo, 0, len(configs))
	for _, cfg := range configs {
		result = append(result, &ConfigInfo{Name: cfg.Name, Tech: cfg.Tech, Params: cfg.Curve.Params()})
	}
	return result, nil
}

// GetConfig returns one configuration evaluated at the default sample sizes
func (s *balanceServiceImpl) GetConfig(ctx context.Context, name string) (*ConfigInfo, error) {
	cfg, err := s.registry.Config(name)
	if err != nil {
		return nil, err
	}

	info := &ConfigInfo{Name: cfg.Name, Tech: cfg.Tech, Params: cfg.Curve.Params()}
	for _, size := range engine.DefaultSampleSizes {
		info.Samples = append(info.Samples, sampleAt(cfg.Curve, size))
	}
	return info, nil
}

// Diagnostics returns the problems recorded by the last load
func (s *balanceServiceImpl) Diagnostics(ctx context.Context) (config.Diagnostics, error) {
	return s.registry.Diagnostics(), nil
}

// Reload re-reads the tier and configuration files
func (s *balanceServiceImpl) Reload(ctx context.Context) (*ReloadResult, error) {
	diags, err := s.registry.Reload()
	if err != nil {
		return nil, fmt.Errorf("failed to reload: %w", err)
	}
	return &ReloadResult{
		Techs:       len(s.registry.ListTechs()),
		Configs:     len(s.registry.ListConfigs()),
		Diagnostics: diags,
	}, nil
}

// Derive computes one engine
func (s *balanceServiceImpl) Derive(ctx context.Context, configName string, size float64) (*DeriveResult, error) {
	cfg, err := s.registry.Config(configName)
	if err != nil {
		metrics.RecordDerivation(metrics.OutcomeReference)
		return nil, err
	}

	stats, err := cfg.Curve.EngineFromSize(size)
	if err != nil {
		metrics.RecordDerivation(metrics.OutcomeDomain)
		return nil, err
	}
	metrics.RecordDerivation(metrics.OutcomeOK)

	// Both succeed whenever EngineFromSize did.
	tmr, _ := cfg.Curve.TmrFromSize(size)
	multiplier, _ := cfg.Curve.TmrMultiplierFromSize(size)

	return &DeriveResult{
		Config:        cfg.Name,
		Tech:          cfg.Tech,
		Size:          size,
		Tmr:           tmr,
		TmrMultiplier: multiplier,
		Stats:         stats,
	}, nil
}

// Batch derives rows synchronously. rowErrs are rows the caller could not
// read; they are returned with the results and counted as failures.
func (s *balanceServiceImpl) Batch(ctx context.Context, rows []batch.Row, rowErrs []batch.RowError) (*BatchResult, error) {
	if err := validateRows(rows, rowErrs); err != nil {
		return nil, err
	}

	results, err := s.processor(nil).Run(ctx, rows, s.registry)
	if err != nil {
		return nil, err
	}

	out := &BatchResult{Results: results, RowErrors: rowErrs, Failed: len(rowErrs)}
	for _, r := range results {
		if r.OK() {
			out.Succeeded++
		} else {
			out.Failed++
		}
	}
	return out, nil
}

// TechCurve samples a tier's TMR to ISP curve
func (s *balanceServiceImpl) TechCurve(ctx context.Context, techName string, samples int) (*CurveResult, error) {
	tier, err := s.registry.Tech(techName)
	if err != nil {
		return nil, err
	}
	points, err := engine.SampleTech(tier.Curve, samples)
	if err != nil {
		return nil, err
	}
	return &CurveResult{Tech: tier.Name, Points: points}, nil
}

// StartRun derives rows in the background and returns the pending run
func (s *balanceServiceImpl) StartRun(ctx context.Context, rows []batch.Row, rowErrs []batch.RowError) (*runs.Run, error) {
	if err := validateRows(rows, rowErrs); err != nil {
		return nil, err
	}

	run := s.runs.Create(len(rows), rowErrs...)
	s.logger.Info("run submitted",
		zap.String("run_id", run.ID),
		zap.Int("parts", len(rows)),
		zap.Int("row_errors", len(rowErrs)),
	)

	go s.execute(run.ID, rows)

	return &run, nil
}

func (s *balanceServiceImpl) execute(runID string, rows []batch.Row) {
	if err := s.runs.Start(runID); err != nil {
		s.logger.Warn("failed to start run", zap.String("run_id", runID), zap.Error(err))
		return
	}

	p := s.processor(func(index int, r batch.Result) {
		s.publisher.PublishPart(runID, index, r)
	})
	results, runErr := p.Run(s.baseCtx, rows, s.registry)

	if err := s.runs.Complete(runID, results, runErr); err != nil {
		s.logger.Warn("failed to complete run", zap.String("run_id", runID), zap.Error(err))
		return
	}

	run, err := s.runs.Get(runID)
	if err != nil {
		s.logger.Warn("completed run disappeared", zap.String("run_id", runID), zap.Error(err))
		return
	}
	s.logger.Info("run finished",
		zap.String("run_id", runID),
		zap.String("status", string(run.Status)),
		zap.Int("succeeded", run.Succeeded),
		zap.Int("failed", run.Failed),
	)
	s.publisher.PublishRunComplete(run)
}

// GetRun returns a run with its results
func (s *balanceServiceImpl) GetRun(ctx context.Context, id string) (*runs.Run, error) {
	run, err := s.runs.Get(id)
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// ListRuns returns run summaries, newest first
func (s *balanceServiceImpl) ListRuns(ctx context.Context) ([]runs.Run, error) {
	return s.runs.List(), nil
}

// DeleteRun removes a finished run
func (s *balanceServiceImpl) DeleteRun(ctx context.Context, id string) error {
	if err := s.runs.Delete(id); err != nil {
		return err
	}
	s.logger.Info("run deleted", zap.String("run_id", id))
	return nil
}

func (s *balanceServiceImpl) processor(onResult func(int, batch.Result)) *batch.Processor {
	p := batch.NewProcessor(s.workers, s.logger)
	p.OnResult = onResult
	return p
}

// techUsage maps each tier to the configurations built on it
func (s *balanceServiceImpl) techUsage() map[string][]string {
	usage := make(map[string][]string)
	for _, cfg := range s.registry.ListConfigs() {
		usage[cfg.Tech] = append(usage[cfg.Tech], cfg.Name)
	}
	return usage
}

func newTechInfo(tier config.Tier, usedBy []string) *TechInfo {
	if usedBy == nil {
		usedBy = []string{}
	}
	return &TechInfo{
		Name:        tier.Name,
		Params:      tier.Curve.Params(),
		MaxTmr:      tier.Curve.MaxTmr(),
		MinTmr:      tier.Curve.MinTmr(),
		MaxTmrRange: tier.Curve.MaxTmrRange(),
		MinTmrRange: tier.Curve.MinTmrRange(),
		IspRange:    tier.Curve.IspRange(),
		UsedBy:      usedBy,
	}
}

func sampleAt(curve engine.SizeCurve, size float64) SizeSample {
	sample := SizeSample{Size: size}
	stats, err := curve.EngineFromSize(size)
	if err != nil {
		sample.Error = err.Error()
		return sample
	}
	sample.Stats = &stats
	sample.Tmr, _ = curve.TmrFromSize(size)
	sample.TmrMultiplier, _ = curve.TmrMultiplierFromSize(size)
	return sample
}

// validateRows checks the request as a whole. Problems with a single row
// are reported per row by the batch.
func validateRows(rows []batch.Row, rowErrs []batch.RowError) error {
	if len(rows) == 0 && len(rowErrs) == 0 {
		return fmt.Errorf("%w: no parts given", ErrInvalidInput)
	}
	if n := len(rows) + len(rowErrs); n > MaxBatchRows {
		return fmt.Errorf("%w: %d parts exceeds the limit of %d", ErrInvalidInput, n, MaxBatchRows)
	}
	return nil
}

type nopPublisher struct{}

func (nopPublisher) PublishPart(string, int, batch.Result) {}
func (nopPublisher) PublishRunComplete(runs.Run)           {}
