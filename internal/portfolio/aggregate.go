package portfolio

import "github.com/lucasnoah/repocrew/internal/run"

// Aggregate computes portfolio totals from finalized per-target results.
// It is a pure fold: no re-validation of worker output happens here, and
// the outcome does not depend on completion order.
func Aggregate(runs []run.PipelineRun) run.Totals {
	totals := run.Totals{
		BySeverity: make(map[string]int),
		ByStatus:   make(map[string]int),
	}

	for _, pr := range runs {
		totals.TargetsAnalyzed++
		totals.IssuesFound += pr.IssuesFound
		totals.IssuesFixed += pr.IssuesFixed
		totals.ByStatus[pr.Status]++
		for _, ir := range pr.Issues {
			totals.BySeverity[ir.Issue.Severity]++
		}
	}

	if totals.IssuesFound > 0 {
		totals.FixRate = float64(totals.IssuesFixed) / float64(totals.IssuesFound)
	}
	return totals
}
