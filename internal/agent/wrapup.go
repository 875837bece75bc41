package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lucasnoah/repocrew/internal/contract"
	"github.com/lucasnoah/repocrew/internal/run"
)

// Wrap-up skills run once per target after all issues are processed. They
// are best effort: the foreman logs their failures without flipping the
// run status.

type docsInput struct {
	Target      run.Target `json:"target"`
	RunID       string     `json:"run_id"`
	Mode        string     `json:"mode"`
	IssuesFound int        `json:"issues_found"`
	IssuesFixed int        `json:"issues_fixed"`
	Workspace   string     `json:"workspace"`
}

type wrapupOutput struct {
	Summary string `json:"summary"`
	Path    string `json:"path,omitempty"`
}

// WriteDocs renders a human-readable run summary into the run workspace.
func WriteDocs(ctx context.Context, env contract.TaskEnvelope) (map[string]any, error) {
	var in docsInput
	if err := contract.FromPayload(env.Payload, &in); err != nil {
		return nil, err
	}
	if in.Workspace == "" {
		return nil, fmt.Errorf("write_docs: no workspace provided")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# Run %s\n\n", in.RunID)
	fmt.Fprintf(&b, "- target: %s (%s)\n", in.Target.ID, in.Target.Location)
	fmt.Fprintf(&b, "- mode: %s\n", in.Mode)
	fmt.Fprintf(&b, "- issues found: %d\n", in.IssuesFound)
	fmt.Fprintf(&b, "- issues fixed: %d\n", in.IssuesFixed)
	fmt.Fprintf(&b, "- written: %s\n", time.Now().UTC().Format(time.RFC3339))

	path := filepath.Join(in.Workspace, "summary.md")
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return nil, fmt.Errorf("write summary: %w", err)
	}

	return contract.ToPayload(wrapupOutput{
		Summary: fmt.Sprintf("summary for %s written", in.Target.ID),
		Path:    path,
	})
}

type cleanupInput struct {
	Workspace string `json:"workspace"`
}

// CleanupWorkspace prunes scratch files left behind by earlier stages.
func CleanupWorkspace(ctx context.Context, env contract.TaskEnvelope) (map[string]any, error) {
	var in cleanupInput
	if err := contract.FromPayload(env.Payload, &in); err != nil {
		return nil, err
	}

	removed := 0
	entries, err := os.ReadDir(in.Workspace)
	if err != nil {
		return nil, fmt.Errorf("read workspace: %w", err)
	}
	for _, e := range entries {
		name := e.Name()
		if strings.HasSuffix(name, ".tmp") || strings.HasPrefix(name, ".tmp-") {
			if err := os.Remove(filepath.Join(in.Workspace, name)); err == nil {
				removed++
			}
		}
	}

	return contract.ToPayload(wrapupOutput{
		Summary: fmt.Sprintf("removed %d scratch file(s)", removed),
	})
}

type indexInput struct {
	Target    run.Target `json:"target"`
	RunID     string     `json:"run_id"`
	Workspace string     `json:"workspace"`
}

// IndexTarget writes a lightweight file index of the target tree into the
// workspace, for later cross-run queries.
func IndexTarget(ctx context.Context, env contract.TaskEnvelope) (map[string]any, error) {
	var in indexInput
	if err := contract.FromPayload(env.Payload, &in); err != nil {
		return nil, err
	}
	if in.Workspace == "" {
		return nil, fmt.Errorf("index_target: no workspace provided")
	}

	files := 0
	byExt := make(map[string]int)
	err := filepath.WalkDir(in.Target.Location, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if skipDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		files++
		ext := strings.ToLower(filepath.Ext(path))
		if ext == "" {
			ext = "(none)"
		}
		byExt[ext]++
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("index %s: %w", in.Target.ID, err)
	}

	index := map[string]any{
		"target_id":    in.Target.ID,
		"run_id":       in.RunID,
		"files":        files,
		"by_extension": byExt,
	}
	data, err := json.MarshalIndent(index, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal index: %w", err)
	}
	path := filepath.Join(in.Workspace, "index.json")
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return nil, fmt.Errorf("write index: %w", err)
	}

	return contract.ToPayload(wrapupOutput{
		Summary: fmt.Sprintf("indexed %d file(s)", files),
		Path:    path,
	})
}
