package cli

import (
	"github.com/spf13/cobra"

	"github.com/lucasnoah/repocrew/internal/logging"
)

var version = "dev"

func SetVersion(v string) {
	version = v
}

var (
	flagConfig    string
	flagLogLevel  string
	flagLogFormat string
)

var rootCmd = &cobra.Command{
	Use:   "crew",
	Short: "A department of repair agents for your repositories",
	Long: `repocrew runs a coordinated department of specialist workers over a
portfolio of repositories: detect issues, plan fixes, implement and verify
them, then roll the results up across the whole fleet.

Run records live under ~/.repocrew/ (SQLite for events, JSON for run
artifacts). Modes escalate from preview (read-only) through dry-run
(artifacts, no external actions) to create (full effect).`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.Init(logging.ParseLevel(flagLogLevel), flagLogFormat)
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Path to portfolio config (default: ./portfolio.yaml, ~/.repocrew/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "info", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&flagLogFormat, "log-format", "text", "Log format: text or json")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(targetsCmd)
	rootCmd.AddCommand(agentsCmd)
	rootCmd.AddCommand(resultsCmd)
	rootCmd.AddCommand(dbCmd)
	rootCmd.AddCommand(analyticsCmd)
	rootCmd.AddCommand(configCmd)
}
