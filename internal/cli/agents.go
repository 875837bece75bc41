package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lucasnoah/repocrew/internal/agent"
)

var agentsCmd = &cobra.Command{
	Use:   "agents",
	Short: "List the registered department and its skills",
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := agent.DefaultRegistry()
		if err != nil {
			return err
		}

		descriptors := reg.Agents()

		format, _ := cmd.Flags().GetString("format")
		if format == "json" {
			data, _ := json.MarshalIndent(descriptors, "", "  ")
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		}

		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "%-12s %-8s %s\n", "AGENT", "VERSION", "SKILLS")
		fmt.Fprintf(w, "%-12s %-8s %s\n", strings.Repeat("-", 12), strings.Repeat("-", 8), strings.Repeat("-", 6))
		for _, d := range descriptors {
			names := make([]string, len(d.Skills))
			for i, s := range d.Skills {
				names[i] = s.Name
			}
			fmt.Fprintf(w, "%-12s %-8d %s\n", d.ID, d.Version, strings.Join(names, ", "))
		}
		return nil
	},
}

func init() {
	agentsCmd.Flags().String("format", "text", "Output format: text or json")
}
