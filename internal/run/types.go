package run

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lucasnoah/repocrew/internal/contract"
)

// Mode is the permitted side-effect level for one run. It is fixed at run
// start and never escalated mid-run.
type Mode string

const (
	ModePreview Mode = "preview"
	ModeDryRun  Mode = "dry-run"
	ModeCreate  Mode = "create"
)

// ParseMode validates a mode string from config or flags.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModePreview, ModeDryRun, ModeCreate:
		return Mode(s), nil
	case "":
		return "", fmt.Errorf("mode is required (preview, dry-run, or create)")
	default:
		return "", fmt.Errorf("invalid mode %q (want preview, dry-run, or create)", s)
	}
}

// Effectful reports whether the mode runs the implementation stage at all.
func (m Mode) Effectful() bool {
	return m == ModeDryRun || m == ModeCreate
}

// Pipeline run statuses.
const (
	StatusSuccess = "success"
	StatusPartial = "partial"
	StatusFailed  = "failed"
)

// Target identifies one repository in the portfolio.
type Target struct {
	ID       string   `json:"id"`
	Location string   `json:"location"`
	Tags     []string `json:"tags,omitempty"`
}

// IssueResult records the outcome of one issue's plan/implement/verify
// cycle within a target.
type IssueResult struct {
	Issue    contract.IssueSpec  `json:"issue"`
	Plan     *contract.FixPlan   `json:"plan,omitempty"`
	Verdict  *contract.QAVerdict `json:"verdict,omitempty"`
	Fixed    bool                `json:"fixed"`
	FailedAt string              `json:"failed_at,omitempty"` // stage name, "" if no stage failed
	Error    string              `json:"error,omitempty"`
}

// StageNote records a best-effort wrap-up stage outcome.
type StageNote struct {
	Stage   string `json:"stage"`
	OK      bool   `json:"ok"`
	Summary string `json:"summary,omitempty"`
	Error   string `json:"error,omitempty"`
}

// PipelineRun is one full pass over one target. Immutable once finished.
type PipelineRun struct {
	RunID       string        `json:"run_id"`
	TargetID    string        `json:"target_id"`
	Mode        Mode          `json:"mode"`
	Status      string        `json:"status"`
	IssuesFound int           `json:"issues_found"`
	IssuesFixed int           `json:"issues_fixed"`
	Issues      []IssueResult `json:"issues,omitempty"`
	WrapUp      []StageNote   `json:"wrap_up,omitempty"`
	Error       string        `json:"error,omitempty"`
	StartedAt   time.Time     `json:"started_at"`
	FinishedAt  time.Time     `json:"finished_at"`
}

// Totals are the portfolio-level rollup, computed as a pure fold over
// finished per-target results.
type Totals struct {
	TargetsAnalyzed int            `json:"total_repos_analyzed"`
	IssuesFound     int            `json:"issues_found"`
	IssuesFixed     int            `json:"issues_fixed"`
	FixRate         float64        `json:"fix_rate"`
	BySeverity      map[string]int `json:"by_severity"`
	ByStatus        map[string]int `json:"by_status"`
}

// PortfolioRun aggregates many PipelineRuns for one invocation.
type PortfolioRun struct {
	PortfolioRunID string        `json:"portfolio_run_id"`
	Mode           Mode          `json:"mode"`
	Runs           []PipelineRun `json:"runs"`
	Totals         Totals        `json:"totals"`
	StartedAt      time.Time     `json:"started_at"`
	FinishedAt     time.Time     `json:"finished_at"`
}

// NewRunID returns a fresh correlation id for a pipeline run.
func NewRunID() string {
	return uuid.NewString()
}

// DeriveStatus maps per-issue outcomes to the run status: success if every
// issue was fixed, failed if none were, partial otherwise. A run with no
// issues found is a success.
func DeriveStatus(results []IssueResult) string {
	if len(results) == 0 {
		return StatusSuccess
	}
	fixed := 0
	for _, r := range results {
		if r.Fixed {
			fixed++
		}
	}
	switch fixed {
	case len(results):
		return StatusSuccess
	case 0:
		return StatusFailed
	default:
		return StatusPartial
	}
}
