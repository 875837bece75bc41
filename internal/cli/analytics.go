package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lucasnoah/repocrew/internal/analytics"
)

var analyticsCmd = &cobra.Command{
	Use:   "analytics",
	Short: "Summary statistics from the events database",
	RunE: func(cmd *cobra.Command, args []string) error {
		database, err := openEventsDB()
		if err != nil {
			return err
		}
		defer database.Close()

		since, _ := cmd.Flags().GetString("since")

		durations, err := analytics.QueryStageDurations(database, since)
		if err != nil {
			return err
		}
		outcomes, err := analytics.QueryStageOutcomes(database, since)
		if err != nil {
			return err
		}
		statuses, err := analytics.QueryRunStatuses(database, since)
		if err != nil {
			return err
		}

		format, _ := cmd.Flags().GetString("format")
		if format == "json" {
			data, _ := json.MarshalIndent(map[string]any{
				"stage_durations": durations,
				"stage_outcomes":  outcomes,
				"run_statuses":    statuses,
			}, "", "  ")
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		}

		w := cmd.OutOrStdout()
		fmt.Fprintln(w, "Stage durations (ms):")
		for _, d := range durations {
			fmt.Fprintf(w, "  %-12s count=%-5d avg=%-9.2f p50=%-9.2f p95=%.2f\n", d.Stage, d.Count, d.Avg, d.P50, d.P95)
		}
		fmt.Fprintln(w, "Stage outcomes:")
		for _, o := range outcomes {
			fmt.Fprintf(w, "  %-12s total=%-5d success=%5.1f%% timeout=%5.1f%% contract=%5.1f%%\n",
				o.Stage, o.Total, o.SuccessPct, o.TimeoutPct, o.ContractPct)
		}
		fmt.Fprintln(w, "Run statuses:")
		for _, s := range statuses {
			fmt.Fprintf(w, "  %-12s %d\n", s.Status, s.Count)
		}
		return nil
	},
}

func init() {
	analyticsCmd.Flags().String("since", "", "Only include events at or after this timestamp (e.g. 2026-08-01)")
	analyticsCmd.Flags().String("format", "text", "Output format: text or json")
}
