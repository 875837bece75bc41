package contract

import (
	"encoding/json"
	"fmt"
	"time"
)

// Skill names understood by the default department. The registry rejects
// registration of handlers for names outside this set.
const (
	SkillDetectIssues     = "detect_issues"
	SkillPlanFix          = "plan_fix"
	SkillApplyFix         = "apply_fix"
	SkillVerifyFix        = "verify_fix"
	SkillWriteDocs        = "write_docs"
	SkillCleanupWorkspace = "cleanup_workspace"
	SkillIndexTarget      = "index_target"
)

// KnownSkills lists every skill name the pipeline can dispatch.
var KnownSkills = []string{
	SkillDetectIssues,
	SkillPlanFix,
	SkillApplyFix,
	SkillVerifyFix,
	SkillWriteDocs,
	SkillCleanupWorkspace,
	SkillIndexTarget,
}

// Severity levels for detected issues, lowest to highest.
const (
	SeverityLow      = "low"
	SeverityMedium   = "medium"
	SeverityHigh     = "high"
	SeverityCritical = "critical"
)

// IssueSpec describes one detected problem in a target.
type IssueSpec struct {
	ID          string `json:"id"`
	Kind        string `json:"kind"`
	Severity    string `json:"severity"`
	File        string `json:"file"`
	Line        int    `json:"line,omitempty"`
	Description string `json:"description"`
}

// PlanStep is one ordered remediation step inside a FixPlan.
type PlanStep struct {
	Order  int    `json:"order"`
	Action string `json:"action"`
	Detail string `json:"detail,omitempty"`
}

// FixPlan is the ordered remediation for one IssueSpec.
type FixPlan struct {
	ID            string     `json:"id"`
	IssueID       string     `json:"issue_id"`
	Steps         []PlanStep `json:"steps"`
	EstimatedRisk string     `json:"estimated_risk"`
}

// FixArtifact is one remediation artifact produced by the implementation
// stage. Identical content is produced in dry-run and create mode; only the
// external action differs.
type FixArtifact struct {
	PlanID  string `json:"plan_id"`
	Name    string `json:"name"`
	Content string `json:"content"`
}

// QAVerdict is the terminal pass/fail judgment for one implemented fix.
type QAVerdict struct {
	FixPlanID string   `json:"fix_plan_id"`
	Passed    bool     `json:"passed"`
	Findings  []string `json:"findings,omitempty"`
}

// TaskEnvelope is one request to a worker: which skill, with what payload,
// and by when.
type TaskEnvelope struct {
	CorrelationID string         `json:"correlation_id"`
	Skill         string         `json:"skill"`
	Mode          string         `json:"mode"`
	Payload       map[string]any `json:"payload"`
	Deadline      time.Time      `json:"deadline"`
}

// ToPayload converts a typed value into the map form carried by a
// TaskEnvelope, via a JSON round trip so tags and omitempty apply.
func ToPayload(v any) (map[string]any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("unmarshal payload: %w", err)
	}
	return m, nil
}

// FromPayload decodes an envelope payload map into a typed value.
func FromPayload(m map[string]any, v any) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal payload map: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	return nil
}
