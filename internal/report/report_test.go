package report

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/lucasnoah/repocrew/internal/contract"
	"github.com/lucasnoah/repocrew/internal/run"
)

func samplePortfolio() *run.PortfolioRun {
	return &run.PortfolioRun{
		PortfolioRunID: "pf-42",
		Mode:           run.ModeDryRun,
		Runs: []run.PipelineRun{
			{RunID: "r-1", TargetID: "api", Status: run.StatusSuccess, IssuesFound: 3, IssuesFixed: 3},
			{RunID: "r-2", TargetID: "web", Status: run.StatusFailed, IssuesFound: 1, Error: "clone failed"},
		},
		Totals: run.Totals{
			TargetsAnalyzed: 2,
			IssuesFound:     4,
			IssuesFixed:     3,
			FixRate:         0.75,
			BySeverity:      map[string]int{contract.SeverityLow: 3, contract.SeverityHigh: 1},
			ByStatus:        map[string]int{run.StatusSuccess: 1, run.StatusFailed: 1},
		},
		StartedAt:  time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC),
		FinishedAt: time.Date(2026, 8, 30, 10, 5, 0, 0, time.UTC),
	}
}

func TestRender_JSON(t *testing.T) {
	out, err := Render(samplePortfolio(), FormatJSON)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}

	var pf run.PortfolioRun
	if err := json.Unmarshal(out, &pf); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if pf.Totals.TargetsAnalyzed != 2 || pf.Totals.FixRate != 0.75 {
		t.Errorf("round trip totals: %+v", pf.Totals)
	}
	if !strings.Contains(string(out), `"total_repos_analyzed": 2`) {
		t.Errorf("missing totals field in:\n%s", out)
	}
}

func TestRender_Markdown(t *testing.T) {
	out, err := Render(samplePortfolio(), FormatMarkdown)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	text := string(out)

	for _, want := range []string{
		"# Portfolio run pf-42",
		"- mode: dry-run",
		"- targets analyzed: 2",
		"- fix rate: 75.0%",
		"| high | 1 |",
		"| low | 3 |",
		"| api | success | 3 | 3 |  |",
		"| web | failed | 1 | 0 | clone failed |",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("missing %q in:\n%s", want, text)
		}
	}
}

func TestRender_Markdown_NoSeverities(t *testing.T) {
	pf := samplePortfolio()
	pf.Totals.BySeverity = nil

	out, err := Render(pf, FormatMarkdown)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !strings.Contains(string(out), "None.") {
		t.Errorf("empty severity table not handled:\n%s", out)
	}
}

func TestRender_UnknownFormat(t *testing.T) {
	if _, err := Render(samplePortfolio(), "yaml"); err == nil {
		t.Error("expected error for unknown format")
	}
}
