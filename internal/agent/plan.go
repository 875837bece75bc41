package agent

import (
	"context"
	"fmt"

	"github.com/lucasnoah/repocrew/internal/contract"
)

type planInput struct {
	Issue contract.IssueSpec `json:"issue"`
}

type planOutput struct {
	Plan contract.FixPlan `json:"plan"`
}

// PlanFix turns one detected issue into an ordered remediation plan with
// an estimated risk. Plans are deterministic per issue so dry-run and
// create produce equivalent downstream artifacts.
func PlanFix(ctx context.Context, env contract.TaskEnvelope) (map[string]any, error) {
	var in planInput
	if err := contract.FromPayload(env.Payload, &in); err != nil {
		return nil, err
	}

	steps, risk := planFor(in.Issue)
	plan := contract.FixPlan{
		ID:            "PLAN-" + in.Issue.ID,
		IssueID:       in.Issue.ID,
		Steps:         steps,
		EstimatedRisk: risk,
	}

	return contract.ToPayload(planOutput{Plan: plan})
}

// planFor maps an issue kind to its remediation steps and risk estimate.
func planFor(issue contract.IssueSpec) ([]contract.PlanStep, string) {
	loc := issue.File
	if issue.Line > 0 {
		loc = fmt.Sprintf("%s:%d", issue.File, issue.Line)
	}

	switch issue.Kind {
	case KindMergeConflict:
		return []contract.PlanStep{
			{Order: 1, Action: "inspect_conflict", Detail: "review both sides of the conflict at " + loc},
			{Order: 2, Action: "resolve_conflict", Detail: "remove conflict markers and keep the intended hunk"},
			{Order: 3, Action: "run_build", Detail: "confirm the tree still builds"},
		}, "high"
	case KindHardcodedCred:
		return []contract.PlanStep{
			{Order: 1, Action: "rotate_credential", Detail: "treat the value at " + loc + " as leaked and rotate it"},
			{Order: 2, Action: "extract_to_env", Detail: "move the secret into environment/secret storage"},
			{Order: 3, Action: "open_ticket", Detail: "file a tracking ticket for the rotation"},
		}, "high"
	case KindTrailingWhitespace:
		return []contract.PlanStep{
			{Order: 1, Action: "strip_whitespace", Detail: "rewrite " + issue.File + " without trailing whitespace"},
		}, "low"
	case KindOversizedFile:
		return []contract.PlanStep{
			{Order: 1, Action: "audit_file", Detail: "check whether " + issue.File + " belongs in the repository"},
			{Order: 2, Action: "relocate_or_split", Detail: "move to artifact storage or split the file"},
		}, "medium"
	default: // todo_debt and anything future
		return []contract.PlanStep{
			{Order: 1, Action: "triage_marker", Detail: "decide whether the marker at " + loc + " is still relevant"},
			{Order: 2, Action: "file_or_remove", Detail: "convert to a tracked issue or delete the marker"},
		}, "low"
	}
}
