// Package portfolio fans one foreman out over a configured set of
// targets with bounded concurrency, isolating each target's failures and
// folding the finished results into portfolio totals.
package portfolio

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lucasnoah/repocrew/internal/logging"
	"github.com/lucasnoah/repocrew/internal/run"
)

// TargetRunner runs one pipeline pass for one target. *foreman.Foreman
// satisfies this; tests substitute their own.
type TargetRunner interface {
	Run(ctx context.Context, target run.Target, mode run.Mode) (*run.PipelineRun, error)
}

// ResultSink receives finalized runs after they are already authoritative.
// Implementations must never surface errors to the runner.
type ResultSink interface {
	Write(pf *run.PortfolioRun)
}

// Opts configures a Runner.
type Opts struct {
	Runner TargetRunner
	// Concurrency bounds how many targets run at once. Zero or negative
	// means 1.
	Concurrency int
	// Deadline, when positive, stops admitting new targets to the pool
	// once it elapses. Already-started targets run to their own per-stage
	// deadlines; nothing is hard-killed.
	Deadline time.Duration
	// Sink, when set, receives the finalized portfolio run fire-and-forget.
	Sink ResultSink
	// Store, when set, keeps the finalized portfolio run locally so the
	// results commands can read it back. Save failures are logged, never
	// surfaced.
	Store *run.Store
}

// Runner executes a portfolio of targets through a fixed-size worker pool.
type Runner struct {
	runner      TargetRunner
	concurrency int
	deadline    time.Duration
	sink        ResultSink
	store       *run.Store
	logger      *slog.Logger
}

// NewRunner creates a portfolio Runner.
func NewRunner(opts Opts) (*Runner, error) {
	if opts.Runner == nil {
		return nil, fmt.Errorf("portfolio runner requires a target runner")
	}
	concurrency := opts.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}
	return &Runner{
		runner:      opts.Runner,
		concurrency: concurrency,
		deadline:    opts.Deadline,
		sink:        opts.Sink,
		store:       opts.Store,
		logger:      logging.New("portfolio"),
	}, nil
}

// Run processes every target and returns the aggregated portfolio run.
// Individual target failures are recorded in the result body and never
// abort siblings; the only errors returned are could-not-start conditions
// (an empty target set, an invalid mode).
func (r *Runner) Run(ctx context.Context, targets []run.Target, mode run.Mode) (*run.PortfolioRun, error) {
	if _, err := run.ParseMode(string(mode)); err != nil {
		return nil, err
	}
	if len(targets) == 0 {
		return nil, fmt.Errorf("no targets to run")
	}

	pf := &run.PortfolioRun{
		PortfolioRunID: run.NewRunID(),
		Mode:           mode,
		StartedAt:      time.Now().UTC(),
	}
	r.logger.Info("portfolio started",
		"portfolio_run_id", pf.PortfolioRunID, "mode", mode,
		"targets", len(targets), "concurrency", r.concurrency)

	admitUntil := time.Time{}
	if r.deadline > 0 {
		admitUntil = time.Now().Add(r.deadline)
	}

	results := make([]run.PipelineRun, len(targets))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)

	for i, target := range targets {
		i, target := i, target
		g.Go(func() error {
			results[i] = r.runOne(gctx, target, mode, admitUntil)
			return nil // a target failure never cancels siblings
		})
	}
	_ = g.Wait()

	// Aggregation is an order-independent fold over finished results, but
	// a stable report ordering is friendlier to read.
	sort.Slice(results, func(i, j int) bool { return results[i].TargetID < results[j].TargetID })
	pf.Runs = results
	pf.Totals = Aggregate(results)
	pf.FinishedAt = time.Now().UTC()

	r.logger.Info("portfolio finished",
		"portfolio_run_id", pf.PortfolioRunID,
		"issues_found", pf.Totals.IssuesFound, "issues_fixed", pf.Totals.IssuesFixed)

	// The result is final at this point; persistence cannot affect it.
	if r.store != nil {
		if err := r.store.SavePortfolio(pf); err != nil {
			r.logger.Error("save portfolio run",
				"portfolio_run_id", pf.PortfolioRunID, "error", err)
		}
	}
	if r.sink != nil {
		r.sink.Write(pf)
	}
	return pf, nil
}

// runOne executes a single target inside the pool, converting every
// failure mode (returned error, panic, missed admission deadline) into
// a failed PipelineRun so the slot always yields a result.
func (r *Runner) runOne(ctx context.Context, target run.Target, mode run.Mode, admitUntil time.Time) (result run.PipelineRun) {
	started := time.Now().UTC()

	// Pool boundary: an unhandled panic in one target becomes that
	// target's failure, not the portfolio's.
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("target panicked", "target", target.ID, "panic", rec)
			result = failedRun(target, mode, started, fmt.Sprintf("panic: %v", rec))
		}
	}()

	if !admitUntil.IsZero() && time.Now().After(admitUntil) {
		r.logger.Warn("target not admitted, portfolio deadline elapsed", "target", target.ID)
		return failedRun(target, mode, started, "not admitted: portfolio deadline elapsed")
	}

	pr, err := r.runner.Run(ctx, target, mode)
	if err != nil {
		r.logger.Warn("target failed to start", "target", target.ID, "error", err)
		return failedRun(target, mode, started, err.Error())
	}
	return *pr
}

func failedRun(target run.Target, mode run.Mode, started time.Time, msg string) run.PipelineRun {
	return run.PipelineRun{
		RunID:      run.NewRunID(),
		TargetID:   target.ID,
		Mode:       mode,
		Status:     run.StatusFailed,
		Error:      msg,
		StartedAt:  started,
		FinishedAt: time.Now().UTC(),
	}
}
