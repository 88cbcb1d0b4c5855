// Package engine runs a selection of quality checks against one dataset and
// assembles the results, the aggregate score and the recommendations into a
// Report.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/KaramelBytes/datacheck-cli/internal/dataset"
	"github.com/KaramelBytes/datacheck-cli/internal/quality"
	"github.com/KaramelBytes/datacheck-cli/internal/scoring"
)

// Engine runs checks. It holds no per-run state and is safe for concurrent
// use.
type Engine struct {
	logger *slog.Logger
}

// New returns an Engine logging to logger, or to slog.Default() when nil.
func New(logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{logger: logger}
}

// RunQualityCheck runs cfg against ds with a default engine.
func RunQualityCheck(ctx context.Context, ds *dataset.Dataset, cfg Config) (*Report, error) {
	return New(nil).Run(ctx, ds, cfg)
}

// Run executes the configured checks. Weight errors are returned before
// any check runs. A check that fails is recorded in the report with
// StatusError and its siblings still run, unless cfg.FailFast is set, in
// which case the first error is returned. Cancelling ctx aborts the run.
func (e *Engine) Run(ctx context.Context, ds *dataset.Dataset, cfg Config) (*Report, error) {
	if ds == nil {
		return nil, fmt.Errorf("run quality check: nil dataset")
	}
	weights := cfg.Weights
	if weights == nil {
		weights = scoring.DefaultWeights()
	}
	if err := scoring.ValidateWeights(weights); err != nil {
		return nil, err
	}
	start := time.Now()
	checks := cfg.checks()
	results := make([]quality.CheckResult, len(checks))
	log := e.logger.With("dataset", ds.Name(), "rows", ds.Rows())
	log.Debug("quality run started", "checks", len(checks), "parallel", cfg.Parallel)

	runOne := func(ctx context.Context, i int) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		k := checks[i]
		t0 := time.Now()
		res, err := runCheck(ds, k, cfg)
		if err != nil {
			if cfg.FailFast {
				return fmt.Errorf("%s check: %w", k, err)
			}
			log.Warn("check failed", "check", k.String(), "error", err)
			res = quality.Failed(k, ds.Rows(), err)
		}
		log.Debug("check finished", "check", k.String(), "status", string(res.Status),
			"issues", len(res.Issues), "duration", time.Since(t0))
		results[i] = res
		return nil
	}

	if cfg.Parallel {
		g, gctx := errgroup.WithContext(ctx)
		for i := range checks {
			g.Go(func() error { return runOne(gctx, i) })
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	} else {
		for i := range checks {
			if err := runOne(ctx, i); err != nil {
				return nil, err
			}
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	score, err := scoring.Aggregate(results, weights)
	if err != nil {
		return nil, err
	}
	recs := scoring.Recommend(score, results, cfg.WarnThreshold)
	rep := &Report{
		id:       uuid.NewString(),
		dataset:  ds.Name(),
		rows:     ds.Rows(),
		cols:     ds.Width(),
		created:  start,
		duration: time.Since(start),
		results:  results,
		score:    score,
		recs:     recs,
	}
	log.Info("quality run finished", "report", rep.id, "overall", score.Overall,
		"recommendations", len(recs), "duration", rep.duration)
	return rep, nil
}

// runCheck dispatches one check with options derived from cfg.
func runCheck(ds *dataset.Dataset, k quality.CheckKind, cfg Config) (quality.CheckResult, error) {
	switch k {
	case quality.MissingValuesCheck:
		return quality.CheckMissingValues(ds, quality.MissingOptions{Threshold: cfg.threshold(k)})
	case quality.OutliersCheck:
		opt, err := cfg.outlierOptions()
		if err != nil {
			return quality.CheckResult{}, err
		}
		return quality.CheckOutliers(ds, opt)
	case quality.DuplicatesCheck:
		return quality.CheckDuplicates(ds, quality.DuplicateOptions{
			Columns:   cfg.DuplicateColumns,
			Fuzzy:     cfg.Fuzzy,
			Threshold: cfg.threshold(k),
		})
	case quality.FormatCheck:
		opt := quality.DefaultFormatOptions()
		opt.Rules = cfg.FormatRules
		return quality.CheckDataFormat(ds, opt)
	case quality.BalanceCheck:
		if cfg.Target == "" {
			return quality.Skipped(k, ds.Rows(), "no target column configured"), nil
		}
		return quality.CheckDataBalance(ds, quality.BalanceOptions{Target: cfg.Target, Threshold: cfg.threshold(k)})
	case quality.DistributionCheck:
		return quality.CheckDataDistribution(ds, quality.DistributionOptions{Threshold: cfg.threshold(k)})
	}
	return quality.CheckResult{}, &quality.ConfigError{Field: "checks", Reason: fmt.Sprintf("unknown check %d", int(k))}
}
