// Package agent holds the built-in specialist workers. Each worker is a
// stateless skill handler over the contract types; the interesting logic
// of the system lives in how the foreman sequences them, not here.
package agent

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/lucasnoah/repocrew/internal/contract"
	"github.com/lucasnoah/repocrew/internal/run"
)

// Issue kinds produced by the detector.
const (
	KindMergeConflict      = "merge_conflict"
	KindHardcodedCred      = "hardcoded_credential"
	KindTodoDebt           = "todo_debt"
	KindTrailingWhitespace = "trailing_whitespace"
	KindOversizedFile      = "oversized_file"
)

const (
	maxScanFileSize  = 1 << 20 // files larger than this are not line-scanned
	oversizedFileMin = 400 << 10
)

// skipDirs are never descended into during a scan.
var skipDirs = map[string]bool{
	".git":         true,
	"node_modules": true,
	"vendor":       true,
	".idea":        true,
	"dist":         true,
}

var (
	conflictMarkerRe = regexp.MustCompile(`^(<{7} |={7}$|>{7} )`)
	credentialRe     = regexp.MustCompile(`(?i)\b(password|passwd|secret|api[_-]?key|auth[_-]?token)\b\s*[:=]\s*["'][^"']{8,}["']`)
	todoRe           = regexp.MustCompile(`\b(TODO|FIXME|XXX|HACK)\b`)
)

// detectInput is the payload for a detect_issues envelope.
type detectInput struct {
	Target run.Target `json:"target"`
}

// detectOutput is the result payload of detect_issues.
type detectOutput struct {
	Issues []contract.IssueSpec `json:"issues"`
}

// DetectIssues scans the target tree for known problem patterns. It is
// read-only by construction, so the foreman runs it in every mode. Issue
// ids are a stable hash of (kind, file, line): scanning an unchanged tree
// twice yields the identical issue set.
func DetectIssues(ctx context.Context, env contract.TaskEnvelope) (map[string]any, error) {
	var in detectInput
	if err := contract.FromPayload(env.Payload, &in); err != nil {
		return nil, err
	}

	root := in.Target.Location
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("target %s: %w", in.Target.ID, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("target %s: location %s is not a directory", in.Target.ID, root)
	}

	// Non-nil so a clean tree serializes as an empty array, which is what
	// the output contract requires.
	issues := []contract.IssueSpec{}

	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			if skipDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			rel = path
		}

		fi, err := d.Info()
		if err != nil {
			return nil // file vanished mid-scan; not this target's problem
		}
		if fi.Size() >= oversizedFileMin {
			issues = append(issues, newIssue(KindOversizedFile, contract.SeverityMedium, rel, 0,
				fmt.Sprintf("file is %d KiB, consider splitting or moving to artifact storage", fi.Size()>>10)))
		}
		if fi.Size() > maxScanFileSize || isProbablyBinary(path) {
			return nil
		}

		issues = append(issues, scanFile(path, rel)...)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", root, err)
	}

	// Deterministic output order regardless of walk quirks.
	sort.Slice(issues, func(i, j int) bool { return issues[i].ID < issues[j].ID })

	return contract.ToPayload(detectOutput{Issues: issues})
}

// scanFile line-scans one file and returns any issues found in it.
func scanFile(path, rel string) []contract.IssueSpec {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}

	var issues []contract.IssueSpec
	trailingLines := 0
	firstTrailing := 0

	lines := strings.Split(string(data), "\n")
	for i, line := range lines {
		lineNo := i + 1
		switch {
		case conflictMarkerRe.MatchString(line):
			issues = append(issues, newIssue(KindMergeConflict, contract.SeverityHigh, rel, lineNo,
				"unresolved merge conflict marker"))
		case credentialRe.MatchString(line):
			issues = append(issues, newIssue(KindHardcodedCred, contract.SeverityCritical, rel, lineNo,
				"likely hardcoded credential"))
		case todoRe.MatchString(line):
			sev := contract.SeverityLow
			if strings.Contains(line, "FIXME") {
				sev = contract.SeverityMedium
			}
			issues = append(issues, newIssue(KindTodoDebt, sev, rel, lineNo,
				"tracked debt marker: "+strings.TrimSpace(truncate(line, 120))))
		}
		if line != strings.TrimRight(line, " \t") {
			if trailingLines == 0 {
				firstTrailing = lineNo
			}
			trailingLines++
		}
	}

	// One whitespace issue per file, not one per line.
	if trailingLines > 0 {
		issues = append(issues, newIssue(KindTrailingWhitespace, contract.SeverityLow, rel, firstTrailing,
			fmt.Sprintf("%d line(s) with trailing whitespace", trailingLines)))
	}
	return issues
}

func newIssue(kind, severity, file string, line int, description string) contract.IssueSpec {
	return contract.IssueSpec{
		ID:          issueID(kind, file, line),
		Kind:        kind,
		Severity:    severity,
		File:        file,
		Line:        line,
		Description: description,
	}
}

// issueID derives a stable id from the issue's identity fields.
func issueID(kind, file string, line int) string {
	sum := sha256.Sum256(fmt.Appendf(nil, "%s|%s|%d", kind, file, line))
	return "ISS-" + hex.EncodeToString(sum[:6])
}

func isProbablyBinary(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png", ".jpg", ".jpeg", ".gif", ".ico", ".pdf", ".zip", ".gz", ".tar",
		".so", ".dylib", ".dll", ".exe", ".bin", ".woff", ".woff2", ".db":
		return true
	}
	return false
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
