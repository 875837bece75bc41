package foreman

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lucasnoah/repocrew/internal/contract"
	"github.com/lucasnoah/repocrew/internal/run"
)

// invoke dispatches one envelope to the worker registered for a skill.
// The contract is validated on both sides of the hop: the payload against
// the skill's input schema before dispatch, the result against its output
// schema before the foreman trusts it. The invocation is bounded by the
// stage timeout; expiry cancels only this invocation.
func (f *Foreman) invoke(ctx context.Context, pr *run.PipelineRun, skill, stage, issueID string, payload map[string]any) (map[string]any, error) {
	reg, err := f.reg.Resolve(skill)
	if err != nil {
		f.logStage(pr, stage, issueID, "unavailable", 0, err.Error())
		return nil, err
	}

	if f.auth != nil && !f.auth.Authorized(reg.Descriptor.ID, skill) {
		aerr := &contract.WorkerUnavailableError{
			Skill:  skill,
			Reason: fmt.Sprintf("agent %s is not authorized", reg.Descriptor.ID),
		}
		f.logStage(pr, stage, issueID, "unauthorized", 0, aerr.Error())
		return nil, aerr
	}

	if err := contract.ValidateAgainst(skill, reg.Skill.InputSchema, payload); err != nil {
		f.logStage(pr, stage, issueID, "contract_rejected", 0, err.Error())
		return nil, err
	}

	ictx, cancel := context.WithTimeout(ctx, f.stageTimeout)
	defer cancel()

	env := contract.TaskEnvelope{
		CorrelationID: uuid.NewString(),
		Skill:         skill,
		Mode:          string(pr.Mode),
		Payload:       payload,
		Deadline:      time.Now().Add(f.stageTimeout),
	}

	start := time.Now()
	out, err := runHandler(ictx, reg.Handler, env)
	elapsed := time.Since(start)

	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			terr := &contract.TimeoutError{Skill: skill, Elapsed: elapsed.Round(time.Millisecond).String()}
			f.logStage(pr, stage, issueID, "timeout", int(elapsed.Milliseconds()), terr.Error())
			return nil, terr
		}
		f.logStage(pr, stage, issueID, "failed", int(elapsed.Milliseconds()), err.Error())
		return nil, err
	}

	if err := contract.ValidateAgainst(skill, reg.Skill.OutputSchema, out); err != nil {
		f.logStage(pr, stage, issueID, "contract_rejected", int(elapsed.Milliseconds()), err.Error())
		return nil, err
	}

	f.logStage(pr, stage, issueID, "success", int(elapsed.Milliseconds()), "")
	return out, nil
}

// runHandler executes the handler on its own goroutine so the foreman can
// honor the deadline even when the worker ignores its context. A panic in
// a worker is converted to an error here; it must not take down the pool.
func runHandler(ctx context.Context, h func(context.Context, contract.TaskEnvelope) (map[string]any, error), env contract.TaskEnvelope) (map[string]any, error) {
	type result struct {
		out map[string]any
		err error
	}
	done := make(chan result, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- result{err: fmt.Errorf("worker panic in %s: %v", env.Skill, r)}
			}
		}()
		out, err := h(ctx, env)
		done <- result{out: out, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-done:
		return r.out, r.err
	}
}

func (f *Foreman) logStage(pr *run.PipelineRun, stage, issueID, outcome string, durationMs int, detail string) {
	if f.events == nil {
		return
	}
	if err := f.events.LogStageEvent(pr.RunID, pr.TargetID, stage, issueID, outcome, durationMs, detail); err != nil {
		f.logger.Warn("log stage event", "run_id", pr.RunID, "stage", stage, "error", err)
	}
}
