// Package foreman sequences the pipeline stages for a single target:
// detection, then per-issue planning, implementation, and verification,
// then best-effort wrap-up. It validates the contract at every hop and
// enforces the run mode at the side-effect boundary.
package foreman

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/lucasnoah/repocrew/internal/contract"
	"github.com/lucasnoah/repocrew/internal/logging"
	"github.com/lucasnoah/repocrew/internal/notify"
	"github.com/lucasnoah/repocrew/internal/registry"
	"github.com/lucasnoah/repocrew/internal/run"
)

// ErrTargetBusy is returned when a run for the same target is already in
// flight and the foreman is not configured to queue.
var ErrTargetBusy = errors.New("a run for this target is already in flight")

// Stage names as they appear in run records and event logs.
const (
	StageDetect    = "detect"
	StagePlan      = "plan"
	StageImplement = "implement"
	StageVerify    = "verify"
	StageDocs      = "docs"
	StageCleanup   = "cleanup"
	StageIndex     = "index"
)

// EventLog is the subset of the events database the foreman writes to.
// All writes are best effort.
type EventLog interface {
	LogRunEvent(runID, targetID, mode, event, status, detail string) error
	LogStageEvent(runID, targetID, stage, issueID, outcome string, durationMs int, detail string) error
}

// Authorizer answers whether a resolved worker may execute a skill in this
// process. The credential system behind it lives outside this repository;
// the foreman consumes only the boolean, once per invocation.
type Authorizer interface {
	Authorized(agentID, skill string) bool
}

// Opts configures a Foreman.
type Opts struct {
	Registry *registry.Registry
	Store    *run.Store
	Notifier notify.Notifier // used only in create mode; nil means LogNotifier
	Events   EventLog        // nil disables event logging
	Auth     Authorizer      // nil authorizes every resolved worker
	// StageTimeout bounds each worker invocation. Zero means 2 minutes.
	StageTimeout time.Duration
	// WaitForTarget queues a second run for a busy target instead of
	// rejecting it with ErrTargetBusy.
	WaitForTarget bool
}

// Foreman coordinates the department for one target at a time.
type Foreman struct {
	reg          *registry.Registry
	store        *run.Store
	notifier     notify.Notifier
	events       EventLog
	auth         Authorizer
	stageTimeout time.Duration
	waitForBusy  bool
	logger       *slog.Logger

	mu       sync.Mutex
	inflight map[string]chan struct{}
}

// New creates a Foreman.
func New(opts Opts) (*Foreman, error) {
	if opts.Registry == nil {
		return nil, fmt.Errorf("foreman requires a registry")
	}
	if opts.Store == nil {
		return nil, fmt.Errorf("foreman requires a run store")
	}
	notifier := opts.Notifier
	if notifier == nil {
		notifier = notify.LogNotifier{}
	}
	timeout := opts.StageTimeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &Foreman{
		reg:          opts.Registry,
		store:        opts.Store,
		notifier:     notifier,
		events:       opts.Events,
		auth:         opts.Auth,
		stageTimeout: timeout,
		waitForBusy:  opts.WaitForTarget,
		logger:       logging.New("foreman"),
		inflight:     make(map[string]chan struct{}),
	}, nil
}

// Run executes one full pipeline pass for a target. The mode is fixed for
// the run's lifetime. Stage failures never escape as errors: they are
// folded into the returned PipelineRun. The only errors returned are
// could-not-start conditions (bad mode, duplicate in-flight target,
// cancelled context while queued).
func (f *Foreman) Run(ctx context.Context, target run.Target, mode run.Mode) (*run.PipelineRun, error) {
	if _, err := run.ParseMode(string(mode)); err != nil {
		return nil, err
	}

	release, err := f.acquire(ctx, target.ID)
	if err != nil {
		return nil, err
	}
	defer release()

	pr := &run.PipelineRun{
		RunID:     run.NewRunID(),
		TargetID:  target.ID,
		Mode:      mode,
		StartedAt: time.Now().UTC(),
	}
	f.logEvent(pr, "started", "", "")
	f.logger.Info("run started", "run_id", pr.RunID, "target", target.ID, "mode", mode)

	f.execute(ctx, pr, target, mode)

	pr.FinishedAt = time.Now().UTC()
	f.logEvent(pr, "finished", pr.Status, pr.Error)
	f.logger.Info("run finished",
		"run_id", pr.RunID, "target", target.ID, "status", pr.Status,
		"issues_found", pr.IssuesFound, "issues_fixed", pr.IssuesFixed)

	// Local record keeping is best effort; the caller already has the
	// authoritative result in hand.
	if err := f.store.SaveRun(pr); err != nil {
		f.logger.Warn("save run record", "run_id", pr.RunID, "error", err)
	}
	return pr, nil
}

// execute drives the stage state machine and fills in the run record.
func (f *Foreman) execute(ctx context.Context, pr *run.PipelineRun, target run.Target, mode run.Mode) {
	issues, err := f.detect(ctx, pr, target)
	if err != nil {
		pr.Status = run.StatusFailed
		pr.Error = err.Error()
		return
	}
	pr.IssuesFound = len(issues)

	// Preview stops after detection: findings only, zero side effects,
	// not even workspace artifacts.
	if mode == run.ModePreview {
		for _, issue := range issues {
			pr.Issues = append(pr.Issues, run.IssueResult{Issue: issue})
		}
		pr.Status = run.StatusSuccess
		return
	}

	known := make(map[string]bool, len(issues))
	for _, issue := range issues {
		known[issue.ID] = true
	}

	effects := newEffectsGate(mode, f.notifier, f.logger)

	for _, issue := range issues {
		result := f.processIssue(ctx, pr, target, mode, issue, known, effects)
		pr.Issues = append(pr.Issues, result)
		if result.Fixed {
			pr.IssuesFixed++
		}
	}

	pr.Status = run.DeriveStatus(pr.Issues)

	f.wrapUp(ctx, pr, target, mode)
}

// detect runs the detection stage, which is read-only by construction and
// runs in every mode.
func (f *Foreman) detect(ctx context.Context, pr *run.PipelineRun, target run.Target) ([]contract.IssueSpec, error) {
	payload, err := contract.ToPayload(map[string]any{"target": target})
	if err != nil {
		return nil, err
	}

	out, err := f.invoke(ctx, pr, contract.SkillDetectIssues, StageDetect, "", payload)
	if err != nil {
		return nil, err
	}

	var res struct {
		Issues []contract.IssueSpec `json:"issues"`
	}
	if err := contract.FromPayload(out, &res); err != nil {
		return nil, err
	}
	return res.Issues, nil
}

// processIssue runs planning, implementation, and verification for a
// single issue. Each issue is isolated: a failure here terminates only
// this issue's processing.
func (f *Foreman) processIssue(
	ctx context.Context,
	pr *run.PipelineRun,
	target run.Target,
	mode run.Mode,
	issue contract.IssueSpec,
	known map[string]bool,
	effects contract.Effects,
) run.IssueResult {
	result := run.IssueResult{Issue: issue}

	// Plan.
	payload, err := contract.ToPayload(map[string]any{"issue": issue})
	if err != nil {
		return failIssue(result, StagePlan, err)
	}
	out, err := f.invoke(ctx, pr, contract.SkillPlanFix, StagePlan, issue.ID, payload)
	if err != nil {
		return failIssue(result, StagePlan, err)
	}
	var planned struct {
		Plan contract.FixPlan `json:"plan"`
	}
	if err := contract.FromPayload(out, &planned); err != nil {
		return failIssue(result, StagePlan, err)
	}
	plan := planned.Plan

	// Referential integrity is checked before the plan crosses into the
	// implementation stage: an orphan reference is a contract failure,
	// not a silent drop.
	if !known[plan.IssueID] {
		return failIssue(result, StagePlan, &contract.ContractValidationError{
			Skill:     contract.SkillPlanFix,
			FieldPath: "plan.issue_id",
			Message:   fmt.Sprintf("references unknown issue %q", plan.IssueID),
		})
	}
	if plan.IssueID != issue.ID {
		return failIssue(result, StagePlan, &contract.ContractValidationError{
			Skill:     contract.SkillPlanFix,
			FieldPath: "plan.issue_id",
			Message:   fmt.Sprintf("got %q, want %q", plan.IssueID, issue.ID),
		})
	}
	result.Plan = &plan

	// Implement. The effects gate travels in the context; mode-forbidden
	// external actions are rejected there before they execute.
	payload, err = contract.ToPayload(map[string]any{"target": target, "issue": issue, "plan": plan})
	if err != nil {
		return failIssue(result, StageImplement, err)
	}
	ictx := contract.WithEffects(ctx, effects)
	out, err = f.invoke(ictx, pr, contract.SkillApplyFix, StageImplement, issue.ID, payload)
	if err != nil {
		return failIssue(result, StageImplement, err)
	}
	var applied struct {
		Artifacts []contract.FixArtifact `json:"artifacts"`
		Applied   bool                   `json:"applied"`
	}
	if err := contract.FromPayload(out, &applied); err != nil {
		return failIssue(result, StageImplement, err)
	}

	if err := f.persistArtifacts(pr.RunID, applied.Artifacts); err != nil {
		return failIssue(result, StageImplement, err)
	}

	// Verify.
	payload, err = contract.ToPayload(map[string]any{"plan": plan, "artifacts": applied.Artifacts})
	if err != nil {
		return failIssue(result, StageVerify, err)
	}
	out, err = f.invoke(ctx, pr, contract.SkillVerifyFix, StageVerify, issue.ID, payload)
	if err != nil {
		return failIssue(result, StageVerify, err)
	}
	var verified struct {
		Verdict contract.QAVerdict `json:"verdict"`
	}
	if err := contract.FromPayload(out, &verified); err != nil {
		return failIssue(result, StageVerify, err)
	}
	if verified.Verdict.FixPlanID != plan.ID {
		return failIssue(result, StageVerify, &contract.ContractValidationError{
			Skill:     contract.SkillVerifyFix,
			FieldPath: "verdict.fix_plan_id",
			Message:   fmt.Sprintf("got %q, want %q", verified.Verdict.FixPlanID, plan.ID),
		})
	}

	result.Verdict = &verified.Verdict
	result.Fixed = verified.Verdict.Passed
	return result
}

// wrapUp runs the documentation, cleanup, and indexing stages once per
// target. These are best effort: a failure is noted on the run but never
// flips its status.
func (f *Foreman) wrapUp(ctx context.Context, pr *run.PipelineRun, target run.Target, mode run.Mode) {
	workspace, err := f.store.Workspace(pr.RunID)
	if err != nil {
		f.logger.Warn("wrap-up skipped", "run_id", pr.RunID, "error", err)
		pr.WrapUp = append(pr.WrapUp, run.StageNote{Stage: StageDocs, OK: false, Error: err.Error()})
		return
	}

	stages := []struct {
		stage   string
		skill   string
		payload map[string]any
	}{
		{StageDocs, contract.SkillWriteDocs, map[string]any{
			"target":       target,
			"run_id":       pr.RunID,
			"mode":         string(mode),
			"issues_found": pr.IssuesFound,
			"issues_fixed": pr.IssuesFixed,
			"workspace":    workspace,
		}},
		{StageCleanup, contract.SkillCleanupWorkspace, map[string]any{
			"workspace": workspace,
		}},
		{StageIndex, contract.SkillIndexTarget, map[string]any{
			"target":    target,
			"run_id":    pr.RunID,
			"workspace": workspace,
		}},
	}

	for _, s := range stages {
		payload, err := contract.ToPayload(s.payload)
		if err != nil {
			pr.WrapUp = append(pr.WrapUp, run.StageNote{Stage: s.stage, OK: false, Error: err.Error()})
			continue
		}
		out, err := f.invoke(ctx, pr, s.skill, s.stage, "", payload)
		if err != nil {
			f.logger.Warn("wrap-up stage failed", "run_id", pr.RunID, "stage", s.stage, "error", err)
			pr.WrapUp = append(pr.WrapUp, run.StageNote{Stage: s.stage, OK: false, Error: err.Error()})
			continue
		}
		var res struct {
			Summary string `json:"summary"`
		}
		_ = contract.FromPayload(out, &res)
		pr.WrapUp = append(pr.WrapUp, run.StageNote{Stage: s.stage, OK: true, Summary: res.Summary})
	}
}

// persistArtifacts writes remediation artifacts into the run workspace.
// Dry-run and create persist the same content.
func (f *Foreman) persistArtifacts(runID string, artifacts []contract.FixArtifact) error {
	workspace, err := f.store.Workspace(runID)
	if err != nil {
		return err
	}
	for _, a := range artifacts {
		path := filepath.Join(workspace, filepath.Base(a.Name))
		if err := run.WriteAtomic(path, []byte(a.Content)); err != nil {
			return fmt.Errorf("persist artifact %s: %w", a.Name, err)
		}
	}
	return nil
}

func failIssue(result run.IssueResult, stage string, err error) run.IssueResult {
	result.FailedAt = stage
	result.Error = err.Error()
	return result
}

// acquire takes the per-target single-flight slot. At most one run per
// target id is in flight system-wide.
func (f *Foreman) acquire(ctx context.Context, targetID string) (func(), error) {
	for {
		f.mu.Lock()
		done, busy := f.inflight[targetID]
		if !busy {
			done = make(chan struct{})
			f.inflight[targetID] = done
			f.mu.Unlock()
			var once sync.Once
			return func() {
				once.Do(func() {
					f.mu.Lock()
					delete(f.inflight, targetID)
					f.mu.Unlock()
					close(done)
				})
			}, nil
		}
		f.mu.Unlock()

		if !f.waitForBusy {
			return nil, fmt.Errorf("target %s: %w", targetID, ErrTargetBusy)
		}
		select {
		case <-done:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (f *Foreman) logEvent(pr *run.PipelineRun, event, status, detail string) {
	if f.events == nil {
		return
	}
	if err := f.events.LogRunEvent(pr.RunID, pr.TargetID, string(pr.Mode), event, status, detail); err != nil {
		f.logger.Warn("log run event", "run_id", pr.RunID, "error", err)
	}
}
