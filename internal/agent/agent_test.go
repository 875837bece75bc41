package agent

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/lucasnoah/repocrew/internal/contract"
	"github.com/lucasnoah/repocrew/internal/run"
)

// writeTree lays out a fixture repository under a temp dir.
func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		path := filepath.Join(root, rel)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", rel, err)
		}
	}
	return root
}

func detectEnv(target run.Target) contract.TaskEnvelope {
	payload, _ := contract.ToPayload(detectInput{Target: target})
	return contract.TaskEnvelope{
		CorrelationID: "test",
		Skill:         contract.SkillDetectIssues,
		Mode:          "preview",
		Payload:       payload,
	}
}

func runDetect(t *testing.T, root string) []contract.IssueSpec {
	t.Helper()
	out, err := DetectIssues(context.Background(), detectEnv(run.Target{ID: "fixture", Location: root}))
	if err != nil {
		t.Fatalf("DetectIssues: %v", err)
	}
	var parsed detectOutput
	if err := contract.FromPayload(out, &parsed); err != nil {
		t.Fatalf("decode output: %v", err)
	}
	return parsed.Issues
}

func issuesOfKind(issues []contract.IssueSpec, kind string) []contract.IssueSpec {
	var out []contract.IssueSpec
	for _, is := range issues {
		if is.Kind == kind {
			out = append(out, is)
		}
	}
	return out
}

func TestDetectIssues_Patterns(t *testing.T) {
	root := writeTree(t, map[string]string{
		"main.go":      "package main\n\nfunc main() {\n\t// TODO: wire flags\n}\n",
		"conflict.txt": "line\n<<<<<<< HEAD\nours\n=======\ntheirs\n>>>>>>> branch\n",
		"config.yaml":  `api_key: "sk-live-0123456789abcdef"` + "\n",
		"notes.md":     "trailing here  \nand here\t\nclean\n",
		".git/HEAD":    "ref: refs/heads/main\n",
		"vendor/x.go":  "// TODO: never seen\n",
	})

	issues := runDetect(t, root)

	if got := issuesOfKind(issues, KindMergeConflict); len(got) != 3 {
		t.Errorf("merge_conflict issues = %d, want 3 (one per marker line)", len(got))
	}
	if got := issuesOfKind(issues, KindHardcodedCred); len(got) != 1 {
		t.Errorf("hardcoded_credential issues = %d, want 1", len(got))
	} else if got[0].Severity != contract.SeverityCritical {
		t.Errorf("credential severity = %s, want critical", got[0].Severity)
	}
	if got := issuesOfKind(issues, KindTodoDebt); len(got) != 1 {
		t.Errorf("todo_debt issues = %d, want 1 (skip dirs must be honored)", len(got))
	}
	if got := issuesOfKind(issues, KindTrailingWhitespace); len(got) != 1 {
		t.Errorf("trailing_whitespace issues = %d, want 1 per file", len(got))
	} else {
		if got[0].File != "notes.md" || got[0].Line != 1 {
			t.Errorf("whitespace issue at %s:%d, want notes.md:1", got[0].File, got[0].Line)
		}
		if !strings.Contains(got[0].Description, "2 line(s)") {
			t.Errorf("whitespace description = %q, want count of 2", got[0].Description)
		}
	}
}

func TestDetectIssues_Deterministic(t *testing.T) {
	root := writeTree(t, map[string]string{
		"a.go": "// TODO: a\n",
		"b.go": "// FIXME: b\n",
		"c.md": "x  \n",
	})

	first := runDetect(t, root)
	second := runDetect(t, root)

	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("repeated scans differ (-first +second):\n%s", diff)
	}
	if len(first) == 0 {
		t.Fatal("expected issues in fixture")
	}
	for _, is := range first {
		if !strings.HasPrefix(is.ID, "ISS-") {
			t.Errorf("issue id %q lacks ISS- prefix", is.ID)
		}
	}
}

func TestDetectIssues_OversizedFile(t *testing.T) {
	root := writeTree(t, map[string]string{
		"big.dat": strings.Repeat("x", 500<<10),
	})

	issues := runDetect(t, root)
	got := issuesOfKind(issues, KindOversizedFile)
	if len(got) != 1 {
		t.Fatalf("oversized_file issues = %d, want 1", len(got))
	}
	if got[0].Severity != contract.SeverityMedium {
		t.Errorf("severity = %s, want medium", got[0].Severity)
	}
}

func TestDetectIssues_BadLocation(t *testing.T) {
	env := detectEnv(run.Target{ID: "x", Location: filepath.Join(t.TempDir(), "missing")})
	if _, err := DetectIssues(context.Background(), env); err == nil {
		t.Error("expected error for missing location")
	}
}

func TestPlanFix(t *testing.T) {
	tests := []struct {
		kind       string
		wantRisk   string
		wantAction string
	}{
		{KindMergeConflict, "high", "resolve_conflict"},
		{KindHardcodedCred, "high", "rotate_credential"},
		{KindTrailingWhitespace, "low", "strip_whitespace"},
		{KindOversizedFile, "medium", "relocate_or_split"},
		{KindTodoDebt, "low", "triage_marker"},
	}

	for _, tt := range tests {
		t.Run(tt.kind, func(t *testing.T) {
			issue := contract.IssueSpec{ID: "ISS-abc", Kind: tt.kind, Severity: contract.SeverityLow, File: "f.go", Line: 3, Description: "d"}
			payload, _ := contract.ToPayload(planInput{Issue: issue})
			out, err := PlanFix(context.Background(), contract.TaskEnvelope{Skill: contract.SkillPlanFix, Payload: payload})
			if err != nil {
				t.Fatalf("PlanFix: %v", err)
			}
			var parsed planOutput
			if err := contract.FromPayload(out, &parsed); err != nil {
				t.Fatalf("decode: %v", err)
			}

			plan := parsed.Plan
			if plan.IssueID != "ISS-abc" || plan.ID != "PLAN-ISS-abc" {
				t.Errorf("plan ids: %s / %s", plan.ID, plan.IssueID)
			}
			if plan.EstimatedRisk != tt.wantRisk {
				t.Errorf("risk = %s, want %s", plan.EstimatedRisk, tt.wantRisk)
			}
			found := false
			for i, step := range plan.Steps {
				if step.Order != i+1 {
					t.Errorf("step %d has order %d", i, step.Order)
				}
				if step.Action == tt.wantAction {
					found = true
				}
			}
			if !found {
				t.Errorf("no step %q in %+v", tt.wantAction, plan.Steps)
			}
		})
	}
}

// fakeEffects records calls; blocked simulates the gate outside create mode.
type fakeEffects struct {
	blocked  bool
	rewrites map[string][]byte
	tickets  []map[string]any
}

func (f *fakeEffects) ApplyRewrite(path string, content []byte) error {
	if f.blocked {
		return &contract.SideEffectBlockedError{Action: "apply_rewrite", Mode: "dry-run"}
	}
	if f.rewrites == nil {
		f.rewrites = make(map[string][]byte)
	}
	f.rewrites[path] = content
	return nil
}

func (f *fakeEffects) OpenTicket(payload map[string]any) error {
	if f.blocked {
		return &contract.SideEffectBlockedError{Action: "open_ticket", Mode: "dry-run"}
	}
	f.tickets = append(f.tickets, payload)
	return nil
}

func applyFor(t *testing.T, root string, issue contract.IssueSpec, effects contract.Effects, mode string) applyOutput {
	t.Helper()
	target := run.Target{ID: "fixture", Location: root}
	planPayload, _ := contract.ToPayload(planInput{Issue: issue})
	planned, err := PlanFix(context.Background(), contract.TaskEnvelope{Skill: contract.SkillPlanFix, Payload: planPayload})
	if err != nil {
		t.Fatalf("PlanFix: %v", err)
	}
	var po planOutput
	if err := contract.FromPayload(planned, &po); err != nil {
		t.Fatalf("decode plan: %v", err)
	}

	payload, _ := contract.ToPayload(applyInput{Target: target, Issue: issue, Plan: po.Plan})
	ctx := contract.WithEffects(context.Background(), effects)
	out, err := ApplyFix(ctx, contract.TaskEnvelope{Skill: contract.SkillApplyFix, Mode: mode, Payload: payload})
	if err != nil {
		t.Fatalf("ApplyFix: %v", err)
	}
	var ao applyOutput
	if err := contract.FromPayload(out, &ao); err != nil {
		t.Fatalf("decode apply: %v", err)
	}
	return ao
}

func TestApplyFix_RewriteApplied(t *testing.T) {
	root := writeTree(t, map[string]string{"doc.md": "dirty  \nclean\n"})
	issue := contract.IssueSpec{
		ID: "ISS-ws", Kind: KindTrailingWhitespace, Severity: contract.SeverityLow,
		File: "doc.md", Line: 1, Description: "1 line(s) with trailing whitespace",
	}

	fe := &fakeEffects{}
	out := applyFor(t, root, issue, fe, "create")

	if !out.Applied {
		t.Error("Applied = false, want true")
	}
	if len(out.SuppressedActions) != 0 {
		t.Errorf("SuppressedActions = %v, want none", out.SuppressedActions)
	}
	rewritten, ok := fe.rewrites[filepath.Join(root, "doc.md")]
	if !ok {
		t.Fatal("no rewrite recorded")
	}
	if string(rewritten) != "dirty\nclean\n" {
		t.Errorf("rewrite content = %q", rewritten)
	}
	if len(out.Artifacts) != 1 || !strings.Contains(out.Artifacts[0].Content, "1. strip_whitespace: rewrite") {
		t.Errorf("artifact missing plan step coverage: %+v", out.Artifacts)
	}
}

func TestApplyFix_BlockedActionsSuppressed(t *testing.T) {
	root := writeTree(t, map[string]string{"doc.md": "dirty  \n"})
	issue := contract.IssueSpec{
		ID: "ISS-ws", Kind: KindTrailingWhitespace, Severity: contract.SeverityLow,
		File: "doc.md", Line: 1, Description: "whitespace",
	}

	fe := &fakeEffects{blocked: true}
	out := applyFor(t, root, issue, fe, "dry-run")

	if out.Applied {
		t.Error("Applied = true under a blocking gate")
	}
	if len(out.SuppressedActions) != 1 || out.SuppressedActions[0] != "apply_rewrite" {
		t.Errorf("SuppressedActions = %v, want [apply_rewrite]", out.SuppressedActions)
	}
	if len(fe.rewrites) != 0 {
		t.Errorf("rewrites happened despite block: %v", fe.rewrites)
	}
	// The artifact is still produced in full.
	if len(out.Artifacts) != 1 || out.Artifacts[0].Content == "" {
		t.Errorf("blocked mode must still produce artifacts: %+v", out.Artifacts)
	}
}

func TestApplyFix_ArtifactsMatchAcrossModes(t *testing.T) {
	files := map[string]string{"doc.md": "dirty  \n"}
	issue := func() contract.IssueSpec {
		return contract.IssueSpec{
			ID: "ISS-ws", Kind: KindTrailingWhitespace, Severity: contract.SeverityLow,
			File: "doc.md", Line: 1, Description: "whitespace",
		}
	}

	dry := applyFor(t, writeTree(t, files), issue(), &fakeEffects{blocked: true}, "dry-run")
	create := applyFor(t, writeTree(t, files), issue(), &fakeEffects{}, "create")

	if diff := cmp.Diff(dry.Artifacts, create.Artifacts); diff != "" {
		t.Errorf("artifacts differ between modes (-dry +create):\n%s", diff)
	}
}

func TestApplyFix_TicketForHighSeverity(t *testing.T) {
	root := writeTree(t, map[string]string{"config.yaml": `secret: "aaaaaaaaaaaa"` + "\n"})
	issue := contract.IssueSpec{
		ID: "ISS-cred", Kind: KindHardcodedCred, Severity: contract.SeverityCritical,
		File: "config.yaml", Line: 1, Description: "likely hardcoded credential",
	}

	fe := &fakeEffects{}
	applyFor(t, root, issue, fe, "create")

	if len(fe.tickets) != 1 {
		t.Fatalf("tickets = %d, want 1", len(fe.tickets))
	}
	if fe.tickets[0]["issue_id"] != "ISS-cred" {
		t.Errorf("ticket payload = %v", fe.tickets[0])
	}
}

func TestVerifyFix(t *testing.T) {
	plan := contract.FixPlan{
		ID:      "PLAN-1",
		IssueID: "ISS-1",
		Steps: []contract.PlanStep{
			{Order: 1, Action: "strip_whitespace"},
		},
		EstimatedRisk: "low",
	}

	verify := func(t *testing.T, artifacts []contract.FixArtifact) contract.QAVerdict {
		t.Helper()
		payload, _ := contract.ToPayload(verifyInput{Plan: plan, Artifacts: artifacts})
		out, err := VerifyFix(context.Background(), contract.TaskEnvelope{Skill: contract.SkillVerifyFix, Payload: payload})
		if err != nil {
			t.Fatalf("VerifyFix: %v", err)
		}
		var vo verifyOutput
		if err := contract.FromPayload(out, &vo); err != nil {
			t.Fatalf("decode: %v", err)
		}
		return vo.Verdict
	}

	t.Run("pass", func(t *testing.T) {
		v := verify(t, []contract.FixArtifact{{PlanID: "PLAN-1", Name: "a.txt", Content: "1. strip_whitespace done"}})
		if !v.Passed || len(v.Findings) != 0 {
			t.Errorf("verdict = %+v, want pass", v)
		}
		if v.FixPlanID != "PLAN-1" {
			t.Errorf("FixPlanID = %s", v.FixPlanID)
		}
	})

	t.Run("no artifacts", func(t *testing.T) {
		if v := verify(t, nil); v.Passed {
			t.Error("empty artifact set must fail verification")
		}
	})

	t.Run("wrong plan reference", func(t *testing.T) {
		v := verify(t, []contract.FixArtifact{{PlanID: "PLAN-other", Name: "a.txt", Content: "strip_whitespace"}})
		if v.Passed {
			t.Error("mismatched plan id must fail verification")
		}
	})

	t.Run("uncovered step", func(t *testing.T) {
		v := verify(t, []contract.FixArtifact{{PlanID: "PLAN-1", Name: "a.txt", Content: "did something else"}})
		if v.Passed {
			t.Error("uncovered plan step must fail verification")
		}
	})
}

func TestWrapUpSkills(t *testing.T) {
	root := writeTree(t, map[string]string{
		"main.go":   "package main\n",
		"README.md": "hi\n",
	})
	workspace := t.TempDir()

	t.Run("write_docs", func(t *testing.T) {
		payload, _ := contract.ToPayload(docsInput{
			Target: run.Target{ID: "fixture", Location: root}, RunID: "r1",
			Mode: "dry-run", IssuesFound: 2, IssuesFixed: 1, Workspace: workspace,
		})
		out, err := WriteDocs(context.Background(), contract.TaskEnvelope{Skill: contract.SkillWriteDocs, Payload: payload})
		if err != nil {
			t.Fatalf("WriteDocs: %v", err)
		}
		var wo wrapupOutput
		if err := contract.FromPayload(out, &wo); err != nil {
			t.Fatalf("decode: %v", err)
		}
		data, err := os.ReadFile(wo.Path)
		if err != nil {
			t.Fatalf("read summary: %v", err)
		}
		if !strings.Contains(string(data), "issues fixed: 1") {
			t.Errorf("summary content: %s", data)
		}
	})

	t.Run("cleanup_workspace", func(t *testing.T) {
		keep := filepath.Join(workspace, "summary.md")
		junk := filepath.Join(workspace, "scratch.tmp")
		if err := os.WriteFile(junk, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
		payload, _ := contract.ToPayload(cleanupInput{Workspace: workspace})
		if _, err := CleanupWorkspace(context.Background(), contract.TaskEnvelope{Skill: contract.SkillCleanupWorkspace, Payload: payload}); err != nil {
			t.Fatalf("CleanupWorkspace: %v", err)
		}
		if _, err := os.Stat(junk); !os.IsNotExist(err) {
			t.Error("tmp file survived cleanup")
		}
		if _, err := os.Stat(keep); err != nil {
			t.Error("summary removed by cleanup")
		}
	})

	t.Run("index_target", func(t *testing.T) {
		payload, _ := contract.ToPayload(indexInput{
			Target: run.Target{ID: "fixture", Location: root}, RunID: "r1", Workspace: workspace,
		})
		out, err := IndexTarget(context.Background(), contract.TaskEnvelope{Skill: contract.SkillIndexTarget, Payload: payload})
		if err != nil {
			t.Fatalf("IndexTarget: %v", err)
		}
		var wo wrapupOutput
		if err := contract.FromPayload(out, &wo); err != nil {
			t.Fatalf("decode: %v", err)
		}
		data, err := os.ReadFile(wo.Path)
		if err != nil {
			t.Fatalf("read index: %v", err)
		}
		if !strings.Contains(string(data), `".go"`) {
			t.Errorf("index content: %s", data)
		}
	})
}

func TestDefaultRegistry_CoversAllSkills(t *testing.T) {
	reg, err := DefaultRegistry()
	if err != nil {
		t.Fatalf("DefaultRegistry: %v", err)
	}
	if missing := reg.MissingSkills(contract.KnownSkills); len(missing) != 0 {
		t.Errorf("skills without a worker: %v", missing)
	}
}
