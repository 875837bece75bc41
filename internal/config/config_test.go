package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const sampleYAML = `portfolio:
  name: fleet
  mode: dry-run
  concurrency: 3
  deadline: 10m
  defaults:
    stage_timeout: 90s
  sink:
    backend: sqlite
    path: /tmp/crew-sink.db
  targets:
    - id: api
      location: /srv/repos/api
      tags: [go, backend]
    - id: web
      location: /srv/repos/web
      tags: [frontend]
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "portfolio.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleYAML))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	p := cfg.Portfolio
	if p.Name != "fleet" {
		t.Errorf("Name = %q, want fleet", p.Name)
	}
	if p.Mode != "dry-run" {
		t.Errorf("Mode = %q, want dry-run", p.Mode)
	}
	if p.Concurrency != 3 {
		t.Errorf("Concurrency = %d, want 3", p.Concurrency)
	}
	if p.Sink.Backend != "sqlite" {
		t.Errorf("Sink.Backend = %q, want sqlite", p.Sink.Backend)
	}
	if len(p.Targets) != 2 || p.Targets[0].ID != "api" {
		t.Errorf("unexpected targets: %+v", p.Targets)
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, `portfolio:
  name: minimal
  targets:
    - id: a
      location: /repos/a
`))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	p := cfg.Portfolio
	if p.Mode != "preview" {
		t.Errorf("default Mode = %q, want preview", p.Mode)
	}
	if p.Concurrency != 1 {
		t.Errorf("default Concurrency = %d, want 1", p.Concurrency)
	}
	if p.Defaults.StageTimeout != "2m" {
		t.Errorf("default StageTimeout = %q, want 2m", p.Defaults.StageTimeout)
	}
	if p.Sink.Backend != "fs" {
		t.Errorf("default Sink.Backend = %q, want fs", p.Sink.Backend)
	}
}

func TestLoad_BadYAML(t *testing.T) {
	if _, err := Load(writeConfig(t, "portfolio: [not a mapping")); err == nil {
		t.Error("expected parse error")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestValidate_Valid(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleYAML))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if errs := Validate(cfg); len(errs) != 0 {
		t.Errorf("Validate = %v, want no errors", errs)
	}
}

func TestValidate_Errors(t *testing.T) {
	cfg := &PortfolioConfig{
		Portfolio: Portfolio{
			Name:        "",
			Mode:        "yolo",
			Concurrency: 0,
			Deadline:    "soon",
			Sink:        Sink{Backend: "postgres"},
			Targets: []Target{
				{ID: "a", Location: "/r/a"},
				{ID: "a", Location: ""},
				{ID: "", Location: "/r/c"},
			},
		},
	}

	errs := Validate(cfg)

	wantFields := []string{
		"portfolio.name",
		"portfolio.mode",
		"portfolio.concurrency",
		"portfolio.deadline",
		"portfolio.sink.dsn",
		"portfolio.targets[1].id",
		"portfolio.targets[1].location",
		"portfolio.targets[2].id",
	}
	for _, field := range wantFields {
		found := false
		for _, e := range errs {
			if e.Field == field {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("missing validation error for %s in %v", field, errs)
		}
	}
}

func TestValidate_NoTargets(t *testing.T) {
	cfg := &PortfolioConfig{Portfolio: Portfolio{Name: "x", Mode: "preview", Concurrency: 1, Sink: Sink{Backend: "none"}}}
	errs := Validate(cfg)
	found := false
	for _, e := range errs {
		if e.Field == "portfolio.targets" && strings.Contains(e.Message, "at least one") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected targets error, got %v", errs)
	}
}

func TestFilterTargets(t *testing.T) {
	targets := []Target{
		{ID: "api", Tags: []string{"go", "backend"}},
		{ID: "web", Tags: []string{"frontend"}},
		{ID: "cli", Tags: []string{"go"}},
	}

	tests := []struct {
		name string
		ids  []string
		tags []string
		want []string
	}{
		{"no filters", nil, nil, []string{"api", "web", "cli"}},
		{"by id", []string{"web"}, nil, []string{"web"}},
		{"by tag", nil, []string{"go"}, []string{"api", "cli"}},
		{"id and tag", []string{"api", "web"}, []string{"go"}, []string{"api"}},
		{"no match", []string{"nope"}, nil, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FilterTargets(targets, tt.ids, tt.tags)
			var ids []string
			for _, tgt := range got {
				ids = append(ids, tgt.ID)
			}
			if len(ids) != len(tt.want) {
				t.Fatalf("got %v, want %v", ids, tt.want)
			}
			for i := range ids {
				if ids[i] != tt.want[i] {
					t.Errorf("got %v, want %v", ids, tt.want)
					break
				}
			}
		})
	}
}
