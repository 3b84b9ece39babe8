package batch

import (
	"context"
	"errors"
	"runtime"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/wricardo/ksp-balance/balance/config"
	"github.com/wricardo/ksp-balance/balance/engine"
	"github.com/wricardo/ksp-balance/logging"
	"github.com/wricardo/ksp-balance/metrics"
)

// Resolver looks up size-curve configurations by name. *config.Manager
// satisfies it.
type Resolver interface {
	Config(name string) (config.SizedConfig, error)
}

// Result is the outcome of one row. Exactly one of Stats and Err is set.
type Result struct {
	Row   Row                 `json:"row"`
	Stats *engine.EngineStats `json:"stats,omitempty"`
	Err   error               `json:"-"`
	Error string              `json:"error,omitempty"`
	Kind  string              `json:"kind,omitempty"`
}

// OK reports whether the row derived successfully. Results decoded from
// JSON carry no Err, so a missing Stats also counts as a failure.
func (r Result) OK() bool { return r.Err == nil && r.Stats != nil }

// Processor derives rows on a bounded number of goroutines.
type Processor struct {
	Workers int
	Logger  *zap.Logger

	// OnResult, when set, is called once per row as soon as it completes.
	// Calls may arrive concurrently and out of order.
	OnResult func(index int, r Result)
}

// NewProcessor returns a Processor with the given worker count. A count
// below one uses GOMAXPROCS.
func NewProcessor(workers int, logger *zap.Logger) *Processor {
	if workers < 1 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Processor{Workers: workers, Logger: logging.OrNop(logger)}
}

// Run derives every row and returns the results in input order. Per-row
// failures are carried in each Result; the returned error is only set when
// ctx is canceled before every row has run.
func (p *Processor) Run(ctx context.Context, rows []Row, resolver Resolver) ([]Result, error) {
	start := time.Now()
	logger := logging.OrNop(p.Logger)
	workers := p.Workers
	if workers < 1 {
		workers = runtime.GOMAXPROCS(0)
	}

	results := make([]Result, len(rows))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, row := range rows {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res := Derive(row, resolver)
			if res.Err != nil {
				logger.Debug("row failed",
					zap.String("name", row.Name),
					zap.String("config", row.Config),
					zap.Float64("size", row.Size),
					zap.Error(res.Err),
				)
			}
			results[i] = res
			if p.OnResult != nil {
				p.OnResult(i, res)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	metrics.ObserveBatch(time.Since(start))
	logger.Info("batch complete", zap.Int("rows", len(rows)), zap.Duration("elapsed", time.Since(start)))
	return results, nil
}

// Derive resolves and derives a single row.
func Derive(row Row, resolver Resolver) Result {
	res := Result{Row: row}

	cfg, err := resolver.Config(row.Config)
	if err != nil {
		res.Err = err
	} else {
		stats, derr := cfg.Curve.EngineFromSize(row.Size)
		if derr != nil {
			res.Err = derr
		} else {
			res.Stats = &stats
		}
	}

	outcome := kindOf(res.Err)
	if res.Err != nil {
		res.Kind = outcome
		res.Error = res.Err.Error()
	}
	metrics.RecordDerivation(outcome)
	return res
}

func kindOf(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeOK
	case errors.Is(err, config.ErrConfigNotFound):
		return metrics.OutcomeReference
	default:
		return metrics.OutcomeDomain
	}
}
