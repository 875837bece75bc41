package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lucasnoah/repocrew/internal/config"
	"github.com/lucasnoah/repocrew/internal/report"
	"github.com/lucasnoah/repocrew/internal/run"
)

var (
	flagMode    string
	flagTargets []string
	flagTags    []string
	flagOutput  string
	flagWorkers int
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the pipeline over the configured portfolio",
	Long: `Run dispatches every configured target (or the --target/--tag subset)
through the detection/planning/implementation/verification pipeline.

The exit code is 0 whenever the portfolio completed, even if individual
targets failed; per-target failures are reported in the result body.
Non-zero exit is reserved for could-not-start conditions.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		modeStr := flagMode
		if modeStr == "" {
			modeStr = cfg.Portfolio.Mode
		}
		mode, err := run.ParseMode(modeStr)
		if err != nil {
			return err
		}

		targets := config.FilterTargets(cfg.Portfolio.Targets, flagTargets, flagTags)
		if len(targets) == 0 {
			return fmt.Errorf("no targets match the given filters")
		}

		if flagWorkers > 0 {
			cfg.Portfolio.Concurrency = flagWorkers
		}

		runner, _, cleanup, err := buildRunner(cfg)
		if err != nil {
			return err
		}
		defer cleanup()

		pf, err := runner.Run(cmd.Context(), toRunTargets(targets), mode)
		if err != nil {
			return err
		}

		out, err := report.Render(pf, flagOutput)
		if err != nil {
			return err
		}
		cmd.OutOrStdout().Write(out)
		return nil
	},
}

func toRunTargets(targets []config.Target) []run.Target {
	out := make([]run.Target, len(targets))
	for i, t := range targets {
		out[i] = run.Target{ID: t.ID, Location: t.Location, Tags: t.Tags}
	}
	return out
}

func init() {
	runCmd.Flags().StringVar(&flagMode, "mode", "", "Run mode: preview, dry-run, or create (default from config)")
	runCmd.Flags().StringSliceVar(&flagTargets, "target", nil, "Only run these target ids (repeatable)")
	runCmd.Flags().StringSliceVar(&flagTags, "tag", nil, "Only run targets carrying one of these tags (repeatable)")
	runCmd.Flags().StringVar(&flagOutput, "output", report.FormatJSON, "Output format: json or markdown")
	runCmd.Flags().IntVar(&flagWorkers, "concurrency", 0, "Max targets in flight at once (default from config)")
}
