package config

import (
	"fmt"
	"time"
)

// ValidationError represents a single validation issue with a config.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// recognizedModes is the set of valid run modes.
var recognizedModes = map[string]bool{
	"preview": true,
	"dry-run": true,
	"create":  true,
}

// recognizedSinkBackends is the set of valid sink backends.
var recognizedSinkBackends = map[string]bool{
	"fs":       true,
	"sqlite":   true,
	"postgres": true,
	"none":     true,
}

// Validate checks a PortfolioConfig for structural and semantic errors.
// It returns a slice of all validation errors found (empty if valid).
func Validate(cfg *PortfolioConfig) []ValidationError {
	var errs []ValidationError
	p := cfg.Portfolio

	if p.Name == "" {
		errs = append(errs, ValidationError{Field: "portfolio.name", Message: "is required"})
	}
	if !recognizedModes[p.Mode] {
		errs = append(errs, ValidationError{
			Field:   "portfolio.mode",
			Message: fmt.Sprintf("unrecognized mode %q (want preview, dry-run, or create)", p.Mode),
		})
	}
	if p.Concurrency < 1 {
		errs = append(errs, ValidationError{Field: "portfolio.concurrency", Message: "must be at least 1"})
	}
	if p.Deadline != "" {
		if _, err := time.ParseDuration(p.Deadline); err != nil {
			errs = append(errs, ValidationError{
				Field:   "portfolio.deadline",
				Message: fmt.Sprintf("invalid duration %q", p.Deadline),
			})
		}
	}
	if p.Defaults.StageTimeout != "" {
		if _, err := time.ParseDuration(p.Defaults.StageTimeout); err != nil {
			errs = append(errs, ValidationError{
				Field:   "portfolio.defaults.stage_timeout",
				Message: fmt.Sprintf("invalid duration %q", p.Defaults.StageTimeout),
			})
		}
	}

	if !recognizedSinkBackends[p.Sink.Backend] {
		errs = append(errs, ValidationError{
			Field:   "portfolio.sink.backend",
			Message: fmt.Sprintf("unrecognized backend %q", p.Sink.Backend),
		})
	}
	if p.Sink.Backend == "postgres" && p.Sink.DSN == "" {
		errs = append(errs, ValidationError{Field: "portfolio.sink.dsn", Message: "is required for the postgres backend"})
	}

	if len(p.Targets) == 0 {
		errs = append(errs, ValidationError{Field: "portfolio.targets", Message: "at least one target is required"})
	}

	seen := make(map[string]bool)
	for i, t := range p.Targets {
		prefix := fmt.Sprintf("portfolio.targets[%d]", i)
		if t.ID == "" {
			errs = append(errs, ValidationError{Field: prefix + ".id", Message: "is required"})
			continue
		}
		if seen[t.ID] {
			errs = append(errs, ValidationError{
				Field:   prefix + ".id",
				Message: fmt.Sprintf("duplicate target ID %q", t.ID),
			})
		}
		seen[t.ID] = true
		if t.Location == "" {
			errs = append(errs, ValidationError{Field: prefix + ".location", Message: "is required"})
		}
	}

	return errs
}
