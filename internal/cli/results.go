package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lucasnoah/repocrew/internal/report"
)

var resultsCmd = &cobra.Command{
	Use:   "results",
	Short: "Inspect stored run records",
}

var resultsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored pipeline runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		store, err := newRunStore(cfg)
		if err != nil {
			return err
		}

		status, _ := cmd.Flags().GetString("status")
		runs, err := store.ListRuns(status)
		if err != nil {
			return err
		}

		if len(runs) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No runs found.")
			return nil
		}

		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "%-38s %-16s %-8s %-8s %-6s %-6s\n", "RUN", "TARGET", "MODE", "STATUS", "FOUND", "FIXED")
		fmt.Fprintf(w, "%-38s %-16s %-8s %-8s %-6s %-6s\n",
			strings.Repeat("-", 38), strings.Repeat("-", 16), strings.Repeat("-", 8),
			strings.Repeat("-", 8), strings.Repeat("-", 6), strings.Repeat("-", 6))
		for _, pr := range runs {
			fmt.Fprintf(w, "%-38s %-16s %-8s %-8s %-6d %-6d\n",
				pr.RunID, pr.TargetID, pr.Mode, pr.Status, pr.IssuesFound, pr.IssuesFixed)
		}
		return nil
	},
}

var resultsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show one pipeline run record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		store, err := newRunStore(cfg)
		if err != nil {
			return err
		}

		pr, err := store.GetRun(args[0])
		if err != nil {
			return err
		}
		data, err := json.MarshalIndent(pr, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	},
}

var resultsPortfolioCmd = &cobra.Command{
	Use:   "portfolio [portfolio-run-id]",
	Short: "List stored portfolio runs, or render one",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		store, err := newRunStore(cfg)
		if err != nil {
			return err
		}

		if len(args) == 1 {
			pf, err := store.GetPortfolio(args[0])
			if err != nil {
				return err
			}
			format, _ := cmd.Flags().GetString("format")
			out, err := report.Render(pf, format)
			if err != nil {
				return err
			}
			cmd.OutOrStdout().Write(out)
			return nil
		}

		portfolios, err := store.ListPortfolios()
		if err != nil {
			return err
		}
		if len(portfolios) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No portfolio runs found.")
			return nil
		}
		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "%-38s %-8s %-8s %-6s %-6s\n", "PORTFOLIO RUN", "MODE", "TARGETS", "FOUND", "FIXED")
		for _, pf := range portfolios {
			fmt.Fprintf(w, "%-38s %-8s %-8d %-6d %-6d\n",
				pf.PortfolioRunID, pf.Mode, pf.Totals.TargetsAnalyzed,
				pf.Totals.IssuesFound, pf.Totals.IssuesFixed)
		}
		return nil
	},
}

func init() {
	resultsListCmd.Flags().String("status", "", "Filter by status: success, partial, failed")
	resultsPortfolioCmd.Flags().String("format", report.FormatJSON, "Output format: json or markdown")
	resultsCmd.AddCommand(resultsListCmd)
	resultsCmd.AddCommand(resultsShowCmd)
	resultsCmd.AddCommand(resultsPortfolioCmd)
}
