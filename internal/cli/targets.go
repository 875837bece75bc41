package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var targetsCmd = &cobra.Command{
	Use:   "targets",
	Short: "Portfolio target management",
}

var targetsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List configured targets",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		format, _ := cmd.Flags().GetString("format")
		if format == "json" {
			data, _ := json.MarshalIndent(cfg.Portfolio.Targets, "", "  ")
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		}

		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "%-16s %-40s %s\n", "ID", "LOCATION", "TAGS")
		fmt.Fprintf(w, "%-16s %-40s %s\n", strings.Repeat("-", 16), strings.Repeat("-", 40), strings.Repeat("-", 4))
		for _, t := range cfg.Portfolio.Targets {
			fmt.Fprintf(w, "%-16s %-40s %s\n", t.ID, t.Location, strings.Join(t.Tags, ","))
		}
		return nil
	},
}

func init() {
	targetsListCmd.Flags().String("format", "text", "Output format: text or json")
	targetsCmd.AddCommand(targetsListCmd)
}
