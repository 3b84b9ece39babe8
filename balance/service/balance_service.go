package service

import (
	"context"

	"github.com/wricardo/ksp-balance/balance/batch"
	"github.com/wricardo/ksp-balance/balance/config"
	"github.com/wricardo/ksp-balance/balance/runs"
)

// BalanceService defines all balance operations exposed to transports
type BalanceService interface {
	// Registry
	ListTechs(ctx context.Context) ([]*TechInfo, error)
	GetTech(ctx context.Context, name string) (*TechInfo, error)
	ListConfigs(ctx context.Context) ([]*ConfigInfo, error)
	GetConfig(ctx context.Context, name string) (*ConfigInfo, error)
	Diagnostics(ctx context.Context) (config.Diagnostics, error)
	Reload(ctx context.Context) (*ReloadResult, error)

	// Derivation
	Derive(ctx context.Context, configName string, size float64) (*DeriveResult, error)
	Batch(ctx context.Context, rows []batch.Row, rowErrs []batch.RowError) (*BatchResult, error)
	TechCurve(ctx context.Context, techName string, samples int) (*CurveResult, error)

	// Runs
	StartRun(ctx context.Context, rows []batch.Row, rowErrs []batch.RowError) (*runs.Run, error)
	GetRun(ctx context.Context, id string) (*runs.Run, error)
	ListRuns(ctx context.Context) ([]runs.Run, error)
	DeleteRun(ctx context.Context, id string) error
}

// Registry provides the loaded tiers and configurations. *config.Manager
// satisfies it.
type Registry interface {
	Tech(name string) (config.Tier, error)
	Config(name string) (config.SizedConfig, error)
	ListTechs() []config.Tier
	ListConfigs() []config.SizedConfig
	Diagnostics() config.Diagnostics
	Reload() (config.Diagnostics, error)
}

// RunStore tracks asynchronous runs. *runs.Manager satisfies it.
type RunStore interface {
	Create(total int, rowErrs ...batch.RowError) runs.Run
	Start(id string) error
	Complete(id string, results []batch.Result, runErr error) error
	Get(id string) (runs.Run, error)
	List() []runs.Run
	Delete(id string) error
}

// Publisher receives progress of asynchronous runs
type Publisher interface {
	PublishPart(runID string, index int, result batch.Result)
	PublishRunComplete(run runs.Run)
}
