package analytics

import (
	"path/filepath"
	"testing"

	"github.com/lucasnoah/repocrew/internal/db"
)

func seededDB(t *testing.T) *db.DB {
	t.Helper()
	d, err := db.Open(filepath.Join(t.TempDir(), "crew.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	if err := d.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	stages := []struct {
		stage   string
		outcome string
		ms      int
	}{
		{"detect", "success", 100},
		{"detect", "success", 200},
		{"detect", "timeout", 2000},
		{"plan", "success", 50},
		{"plan", "contract_rejected", 10},
		{"verify", "success", 300},
	}
	for _, s := range stages {
		if err := d.LogStageEvent("r-1", "api", s.stage, "", s.outcome, s.ms, ""); err != nil {
			t.Fatalf("seed stage event: %v", err)
		}
	}

	runs := []struct{ event, status string }{
		{"started", ""},
		{"finished", "success"},
		{"started", ""},
		{"finished", "partial"},
		{"started", ""},
		{"finished", "success"},
	}
	for _, r := range runs {
		if err := d.LogRunEvent("r-1", "api", "dry-run", r.event, r.status, ""); err != nil {
			t.Fatalf("seed run event: %v", err)
		}
	}
	return d
}

func TestQueryStageDurations(t *testing.T) {
	d := seededDB(t)

	stats, err := QueryStageDurations(d, "")
	if err != nil {
		t.Fatalf("QueryStageDurations: %v", err)
	}

	byStage := make(map[string]StageDuration)
	for _, s := range stats {
		byStage[s.Stage] = s
	}

	detect, ok := byStage["detect"]
	if !ok {
		t.Fatal("no detect stats")
	}
	if detect.Count != 3 {
		t.Errorf("detect count = %d, want 3", detect.Count)
	}
	if want := (100.0 + 200.0 + 2000.0) / 3; detect.Avg != 766.67 {
		t.Errorf("detect avg = %v, want %.2f rounded", detect.Avg, want)
	}
	if detect.P50 != 200 {
		t.Errorf("detect p50 = %v, want 200", detect.P50)
	}
	if detect.P95 != 2000 {
		t.Errorf("detect p95 = %v, want 2000", detect.P95)
	}

	// Results are ordered by stage name.
	for i := 1; i < len(stats); i++ {
		if stats[i-1].Stage >= stats[i].Stage {
			t.Errorf("unsorted stats: %v", stats)
		}
	}
}

func TestQueryStageOutcomes(t *testing.T) {
	d := seededDB(t)

	rates, err := QueryStageOutcomes(d, "")
	if err != nil {
		t.Fatalf("QueryStageOutcomes: %v", err)
	}

	byStage := make(map[string]StageOutcomeRate)
	for _, r := range rates {
		byStage[r.Stage] = r
	}

	detect := byStage["detect"]
	if detect.Total != 3 || detect.SuccessPct != 66.67 || detect.TimeoutPct != 33.33 {
		t.Errorf("detect rates: %+v", detect)
	}
	plan := byStage["plan"]
	if plan.Total != 2 || plan.SuccessPct != 50 || plan.ContractPct != 50 {
		t.Errorf("plan rates: %+v", plan)
	}
}

func TestQueryRunStatuses(t *testing.T) {
	d := seededDB(t)

	counts, err := QueryRunStatuses(d, "")
	if err != nil {
		t.Fatalf("QueryRunStatuses: %v", err)
	}

	got := make(map[string]int)
	for _, c := range counts {
		got[c.Status] = c.Count
	}
	if got["success"] != 2 || got["partial"] != 1 {
		t.Errorf("status counts = %v", got)
	}
}

func TestQueries_EmptyDatabase(t *testing.T) {
	d, err := db.Open(filepath.Join(t.TempDir(), "crew.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	if err := d.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	if stats, err := QueryStageDurations(d, ""); err != nil || len(stats) != 0 {
		t.Errorf("stage durations: %v, %v", stats, err)
	}
	if rates, err := QueryStageOutcomes(d, ""); err != nil || len(rates) != 0 {
		t.Errorf("stage outcomes: %v, %v", rates, err)
	}
	if counts, err := QueryRunStatuses(d, ""); err != nil || len(counts) != 0 {
		t.Errorf("run statuses: %v, %v", counts, err)
	}
}
