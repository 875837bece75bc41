package config

// PortfolioConfig is the top-level configuration structure parsed from
// portfolio YAML.
type PortfolioConfig struct {
	Portfolio Portfolio `yaml:"portfolio"`
}

// Portfolio defines one fleet of targets and how runs over it behave.
type Portfolio struct {
	Name        string   `yaml:"name"`
	Mode        string   `yaml:"mode"`
	Concurrency int      `yaml:"concurrency"`
	Deadline    string   `yaml:"deadline"`
	StateDir    string   `yaml:"state_dir"`
	Defaults    Defaults `yaml:"defaults"`
	Sink        Sink     `yaml:"sink"`
	Targets     []Target `yaml:"targets"`
}

// Defaults holds values applied where a stage invocation doesn't specify
// its own.
type Defaults struct {
	StageTimeout string `yaml:"stage_timeout"`
}

// Sink configures where finalized run records are persisted (best effort).
type Sink struct {
	Backend string `yaml:"backend"` // "fs", "sqlite", "postgres", "none"
	Path    string `yaml:"path"`    // fs directory or sqlite file
	DSN     string `yaml:"dsn"`     // postgres connection string
}

// Target is one repository in the portfolio.
type Target struct {
	ID       string   `yaml:"id"`
	Location string   `yaml:"location"`
	Tags     []string `yaml:"tags"`
}
