package cli

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/lucasnoah/repocrew/internal/agent"
	"github.com/lucasnoah/repocrew/internal/config"
	"github.com/lucasnoah/repocrew/internal/contract"
	"github.com/lucasnoah/repocrew/internal/db"
	"github.com/lucasnoah/repocrew/internal/foreman"
	"github.com/lucasnoah/repocrew/internal/portfolio"
	"github.com/lucasnoah/repocrew/internal/registry"
	"github.com/lucasnoah/repocrew/internal/run"
	"github.com/lucasnoah/repocrew/internal/sink"
)

// loadConfig loads and validates the portfolio config from --config or the
// default search path. Validation failures are could-not-start errors.
func loadConfig() (*config.PortfolioConfig, error) {
	var cfg *config.PortfolioConfig
	var err error
	if flagConfig != "" {
		cfg, err = config.Load(flagConfig)
	} else {
		cfg, err = config.LoadDefault()
	}
	if err != nil {
		return nil, err
	}

	if errs := config.Validate(cfg); len(errs) > 0 {
		fmt.Fprintln(os.Stderr, "config validation failed:")
		for _, e := range errs {
			fmt.Fprintf(os.Stderr, "  - %s\n", e)
		}
		return nil, fmt.Errorf("invalid portfolio config (%d error(s))", len(errs))
	}
	return cfg, nil
}

// newRunStore builds the run store for a config, honoring state_dir.
func newRunStore(cfg *config.PortfolioConfig) (*run.Store, error) {
	if dir := cfg.Portfolio.StateDir; dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("mkdir %s: %w", dir, err)
		}
		return run.NewStore(dir), nil
	}
	return run.DefaultStore()
}

// openEventsDB opens the events database, creating the schema if needed.
func openEventsDB() (*db.DB, error) {
	path, err := db.DefaultDBPath()
	if err != nil {
		return nil, err
	}
	database, err := db.Open(path)
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(); err != nil {
		database.Close()
		return nil, err
	}
	return database, nil
}

// checkSkillCoverage rejects a registry that cannot staff every pipeline
// stage. A hole would fail each target one by one at the same stage, so
// it surfaces as a could-not-start error before any target is admitted.
func checkSkillCoverage(reg *registry.Registry) error {
	if missing := reg.MissingSkills(contract.KnownSkills); len(missing) > 0 {
		return fmt.Errorf("no agent registered for skill(s): %s", strings.Join(missing, ", "))
	}
	return nil
}

// buildRunner wires the full stack for one portfolio run: registry,
// foreman, pool runner, run store, and sink. The returned cleanup flushes
// the sink and closes the events database.
func buildRunner(cfg *config.PortfolioConfig) (*portfolio.Runner, *sink.Sink, func(), error) {
	reg, err := agent.DefaultRegistry()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("build registry: %w", err)
	}
	if err := checkSkillCoverage(reg); err != nil {
		return nil, nil, nil, err
	}

	store, err := newRunStore(cfg)
	if err != nil {
		return nil, nil, nil, err
	}

	database, err := openEventsDB()
	if err != nil {
		return nil, nil, nil, err
	}

	stageTimeout, err := time.ParseDuration(cfg.Portfolio.Defaults.StageTimeout)
	if err != nil {
		database.Close()
		return nil, nil, nil, fmt.Errorf("parse stage_timeout: %w", err)
	}

	fm, err := foreman.New(foreman.Opts{
		Registry:     reg,
		Store:        store,
		Events:       database,
		StageTimeout: stageTimeout,
	})
	if err != nil {
		database.Close()
		return nil, nil, nil, err
	}

	objStore, err := sink.NewStore(cfg.Portfolio.Sink.Backend, cfg.Portfolio.Sink.Path, cfg.Portfolio.Sink.DSN)
	if err != nil {
		database.Close()
		return nil, nil, nil, fmt.Errorf("build result sink: %w", err)
	}
	var resultSink *sink.Sink
	if objStore != nil {
		resultSink = sink.New(objStore, 0)
	}

	var deadline time.Duration
	if cfg.Portfolio.Deadline != "" {
		deadline, err = time.ParseDuration(cfg.Portfolio.Deadline)
		if err != nil {
			database.Close()
			return nil, nil, nil, fmt.Errorf("parse deadline: %w", err)
		}
	}

	runner, err := portfolio.NewRunner(portfolio.Opts{
		Runner:      fm,
		Concurrency: cfg.Portfolio.Concurrency,
		Deadline:    deadline,
		Sink:        resultSink,
		Store:       store,
	})
	if err != nil {
		database.Close()
		return nil, nil, nil, err
	}

	cleanup := func() {
		resultSink.Flush()
		database.Close()
	}
	return runner, resultSink, cleanup, nil
}
