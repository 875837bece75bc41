package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lucasnoah/repocrew/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Portfolio configuration helpers",
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the portfolio config and report every problem",
	RunE: func(cmd *cobra.Command, args []string) error {
		var cfg *config.PortfolioConfig
		var err error
		if flagConfig != "" {
			cfg, err = config.Load(flagConfig)
		} else {
			cfg, err = config.LoadDefault()
		}
		if err != nil {
			return err
		}

		errs := config.Validate(cfg)
		if len(errs) == 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "config OK: %d target(s)\n", len(cfg.Portfolio.Targets))
			return nil
		}
		for _, e := range errs {
			fmt.Fprintf(cmd.OutOrStdout(), "  - %s\n", e)
		}
		return fmt.Errorf("%d validation error(s)", len(errs))
	},
}

func init() {
	configCmd.AddCommand(configValidateCmd)
}
