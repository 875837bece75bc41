package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/lucasnoah/repocrew/internal/contract"
)

type verifyInput struct {
	Plan      contract.FixPlan       `json:"plan"`
	Artifacts []contract.FixArtifact `json:"artifacts"`
}

type verifyOutput struct {
	Verdict contract.QAVerdict `json:"verdict"`
}

// VerifyFix checks the implemented fix against its plan: every artifact
// must belong to the plan, the remediation must be non-empty, and each
// plan step must be reflected in the remediation text. A failed verdict
// marks the issue unresolved; it never aborts the rest of the target.
func VerifyFix(ctx context.Context, env contract.TaskEnvelope) (map[string]any, error) {
	var in verifyInput
	if err := contract.FromPayload(env.Payload, &in); err != nil {
		return nil, err
	}

	var findings []string

	if len(in.Artifacts) == 0 {
		findings = append(findings, "no remediation artifacts produced")
	}
	for _, a := range in.Artifacts {
		if a.PlanID != in.Plan.ID {
			findings = append(findings, fmt.Sprintf("artifact %s references plan %s, want %s", a.Name, a.PlanID, in.Plan.ID))
		}
		if strings.TrimSpace(a.Content) == "" {
			findings = append(findings, fmt.Sprintf("artifact %s is empty", a.Name))
		}
	}

	for _, step := range in.Plan.Steps {
		if !artifactsMention(in.Artifacts, step.Action) {
			findings = append(findings, fmt.Sprintf("plan step %d (%s) not covered by any artifact", step.Order, step.Action))
		}
	}

	verdict := contract.QAVerdict{
		FixPlanID: in.Plan.ID,
		Passed:    len(findings) == 0,
		Findings:  findings,
	}
	return contract.ToPayload(verifyOutput{Verdict: verdict})
}

func artifactsMention(artifacts []contract.FixArtifact, s string) bool {
	for _, a := range artifacts {
		if strings.Contains(a.Content, s) {
			return true
		}
	}
	return false
}
