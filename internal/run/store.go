package run

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Store keeps run records and their working artifacts on disk.
//
// Layout under baseDir:
//
//	runs/<run_id>/run.json            pipeline run record
//	runs/<run_id>/workspace/          scratch space for stage artifacts
//	portfolios/<portfolio_run_id>.json
type Store struct {
	baseDir string
}

// NewStore creates a Store rooted at baseDir.
func NewStore(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

// DefaultStore returns a Store at ~/.repocrew, creating the directory if
// needed.
func DefaultStore() (*Store, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("get home dir: %w", err)
	}
	dir := filepath.Join(home, ".repocrew")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("mkdir %s: %w", dir, err)
	}
	return &Store{baseDir: dir}, nil
}

// BaseDir returns the store's root directory.
func (s *Store) BaseDir() string {
	return s.baseDir
}

func (s *Store) runDir(runID string) string {
	return filepath.Join(s.baseDir, "runs", runID)
}

func (s *Store) runPath(runID string) string {
	return filepath.Join(s.runDir(runID), "run.json")
}

// Workspace returns (and creates) the scratch directory for a run, where
// stage handlers put remediation artifacts and summaries.
func (s *Store) Workspace(runID string) (string, error) {
	dir := filepath.Join(s.runDir(runID), "workspace")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("mkdir workspace: %w", err)
	}
	return dir, nil
}

// SaveRun writes a finalized pipeline run record.
func (s *Store) SaveRun(pr *PipelineRun) error {
	if pr.RunID == "" {
		return fmt.Errorf("pipeline run has empty run_id")
	}
	return writeJSON(s.runPath(pr.RunID), pr)
}

// GetRun reads one pipeline run record.
func (s *Store) GetRun(runID string) (*PipelineRun, error) {
	var pr PipelineRun
	if err := readJSON(s.runPath(runID), &pr); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("run %s not found", runID)
		}
		return nil, err
	}
	return &pr, nil
}

// ListRuns returns stored pipeline runs, optionally filtered by status.
// Pass "" to return all. Results are ordered by start time.
func (s *Store) ListRuns(statusFilter string) ([]PipelineRun, error) {
	entries, err := os.ReadDir(filepath.Join(s.baseDir, "runs"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read runs dir: %w", err)
	}

	var runs []PipelineRun
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		pr, err := s.GetRun(entry.Name())
		if err != nil {
			continue // skip broken entries
		}
		if statusFilter == "" || pr.Status == statusFilter {
			runs = append(runs, *pr)
		}
	}

	sort.Slice(runs, func(i, j int) bool {
		return runs[i].StartedAt.Before(runs[j].StartedAt)
	})
	return runs, nil
}

// SavePortfolio writes a finalized portfolio run record.
func (s *Store) SavePortfolio(pf *PortfolioRun) error {
	if pf.PortfolioRunID == "" {
		return fmt.Errorf("portfolio run has empty portfolio_run_id")
	}
	path := filepath.Join(s.baseDir, "portfolios", pf.PortfolioRunID+".json")
	return writeJSON(path, pf)
}

// GetPortfolio reads one portfolio run record.
func (s *Store) GetPortfolio(id string) (*PortfolioRun, error) {
	var pf PortfolioRun
	path := filepath.Join(s.baseDir, "portfolios", id+".json")
	if err := readJSON(path, &pf); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("portfolio run %s not found", id)
		}
		return nil, err
	}
	return &pf, nil
}

// ListPortfolios returns stored portfolio runs ordered by start time.
func (s *Store) ListPortfolios() ([]PortfolioRun, error) {
	entries, err := os.ReadDir(filepath.Join(s.baseDir, "portfolios"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read portfolios dir: %w", err)
	}

	var out []PortfolioRun
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		pf, err := s.GetPortfolio(strings.TrimSuffix(name, ".json"))
		if err != nil {
			continue
		}
		out = append(out, *pf)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].StartedAt.Before(out[j].StartedAt)
	})
	return out, nil
}

// DeleteRun removes all data for a run.
func (s *Store) DeleteRun(runID string) error {
	dir := s.runDir(runID)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return fmt.Errorf("run %s not found", runID)
	}
	return os.RemoveAll(dir)
}

// WriteAtomic replaces the file at path in one step: the content is
// staged in a temp file in the destination directory, then renamed into
// place, so a reader never observes a partial write.
func WriteAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("stage %s: %w", path, err)
	}
	_, err = tmp.Write(data)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = os.Rename(tmp.Name(), path)
	}
	if err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// writeJSON persists v in the store's on-disk record format: indented
// JSON with a trailing newline, written atomically.
func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", path, err)
	}
	return WriteAtomic(path, append(data, '\n'))
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
