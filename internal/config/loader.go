package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Load reads and parses a portfolio configuration from the given YAML file
// path, then applies defaults.
func Load(path string) (*PortfolioConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg PortfolioConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config YAML: %w", err)
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

// LoadDefault searches standard locations and loads the first config
// found. Search order: ./portfolio.yaml, ~/.repocrew/config.yaml
func LoadDefault() (*PortfolioConfig, error) {
	candidates := []string{"portfolio.yaml"}

	home, err := os.UserHomeDir()
	if err == nil {
		candidates = append(candidates, filepath.Join(home, ".repocrew", "config.yaml"))
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}
	}

	return nil, fmt.Errorf("no portfolio config found (searched: %v)", candidates)
}

// applyDefaults fills unset portfolio-level knobs.
func applyDefaults(cfg *PortfolioConfig) {
	p := &cfg.Portfolio

	if p.Mode == "" {
		p.Mode = "preview"
	}
	if p.Concurrency <= 0 {
		p.Concurrency = 1
	}
	if p.Defaults.StageTimeout == "" {
		p.Defaults.StageTimeout = "2m"
	}
	if p.Sink.Backend == "" {
		p.Sink.Backend = "fs"
	}
}

// FilterTargets returns the targets matching the id and tag filters. Empty
// filters match everything. Order from the config is preserved.
func FilterTargets(targets []Target, ids, tags []string) []Target {
	idSet := make(map[string]bool, len(ids))
	for _, id := range ids {
		idSet[id] = true
	}
	tagSet := make(map[string]bool, len(tags))
	for _, t := range tags {
		tagSet[t] = true
	}

	var out []Target
	for _, t := range targets {
		if len(idSet) > 0 && !idSet[t.ID] {
			continue
		}
		if len(tagSet) > 0 && !hasAnyTag(t.Tags, tagSet) {
			continue
		}
		out = append(out, t)
	}
	return out
}

func hasAnyTag(tags []string, want map[string]bool) bool {
	for _, t := range tags {
		if want[t] {
			return true
		}
	}
	return false
}
