package agent

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/lucasnoah/repocrew/internal/contract"
	"github.com/lucasnoah/repocrew/internal/run"
)

type applyInput struct {
	Target run.Target         `json:"target"`
	Issue  contract.IssueSpec `json:"issue"`
	Plan   contract.FixPlan   `json:"plan"`
}

type applyOutput struct {
	Artifacts         []contract.FixArtifact `json:"artifacts"`
	Applied           bool                   `json:"applied"`
	SuppressedActions []string               `json:"suppressed_actions,omitempty"`
}

// ApplyFix produces the remediation artifacts for one plan. Artifact
// content is identical in dry-run and create mode; the external actions
// (rewriting the target tree, opening a tracking ticket) go through the
// effects surface, where the foreman rejects them outside create mode. A
// rejected action is recorded as suppressed, not treated as a failure.
func ApplyFix(ctx context.Context, env contract.TaskEnvelope) (map[string]any, error) {
	var in applyInput
	if err := contract.FromPayload(env.Payload, &in); err != nil {
		return nil, err
	}

	artifact, rewrite, err := buildRemediation(in)
	if err != nil {
		return nil, err
	}

	out := applyOutput{Artifacts: []contract.FixArtifact{artifact}}

	effects := contract.EffectsFromContext(ctx)

	// Attempt the external actions unconditionally; the gate decides.
	if rewrite != nil && effects != nil {
		err := effects.ApplyRewrite(filepath.Join(in.Target.Location, in.Issue.File), rewrite)
		var blocked *contract.SideEffectBlockedError
		switch {
		case err == nil:
			out.Applied = true
		case errors.As(err, &blocked):
			out.SuppressedActions = append(out.SuppressedActions, "apply_rewrite")
		default:
			return nil, fmt.Errorf("apply rewrite for %s: %w", in.Issue.ID, err)
		}
	}

	if needsTicket(in.Issue) && effects != nil {
		err := effects.OpenTicket(map[string]any{
			"issue_id": in.Issue.ID,
			"plan_id":  in.Plan.ID,
			"severity": in.Issue.Severity,
			"summary":  in.Issue.Description,
			"target":   in.Target.ID,
		})
		var blocked *contract.SideEffectBlockedError
		switch {
		case err == nil:
			// ticket opened
		case errors.As(err, &blocked):
			out.SuppressedActions = append(out.SuppressedActions, "open_ticket")
		default:
			return nil, fmt.Errorf("open ticket for %s: %w", in.Issue.ID, err)
		}
	}

	return contract.ToPayload(out)
}

// needsTicket reports whether an issue warrants a tracking ticket in
// create mode.
func needsTicket(issue contract.IssueSpec) bool {
	return issue.Severity == contract.SeverityHigh || issue.Severity == contract.SeverityCritical
}

// buildRemediation renders the remediation artifact for a plan, and the
// rewritten file content when the fix is mechanical (nil otherwise).
func buildRemediation(in applyInput) (contract.FixArtifact, []byte, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "remediation: %s\n", in.Plan.ID)
	fmt.Fprintf(&b, "issue: %s (%s, %s)\n", in.Issue.ID, in.Issue.Kind, in.Issue.Severity)
	fmt.Fprintf(&b, "file: %s\n\n", in.Issue.File)
	for _, step := range in.Plan.Steps {
		fmt.Fprintf(&b, "%d. %s: %s\n", step.Order, step.Action, step.Detail)
	}

	var rewrite []byte
	if in.Issue.Kind == KindTrailingWhitespace {
		fixed, err := stripTrailingWhitespace(filepath.Join(in.Target.Location, in.Issue.File))
		if err != nil {
			return contract.FixArtifact{}, nil, err
		}
		rewrite = fixed
		fmt.Fprintf(&b, "\nrewrite: %d bytes of cleaned content prepared\n", len(fixed))
	}

	artifact := contract.FixArtifact{
		PlanID:  in.Plan.ID,
		Name:    in.Plan.ID + ".remediation.txt",
		Content: b.String(),
	}
	return artifact, rewrite, nil
}

// stripTrailingWhitespace returns the file's content with trailing blanks
// removed from every line. Reading the target is allowed in any mode;
// writing it back is not.
func stripTrailingWhitespace(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	lines := strings.Split(string(data), "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	return []byte(strings.Join(lines, "\n")), nil
}
