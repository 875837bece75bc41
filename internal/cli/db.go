package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lucasnoah/repocrew/internal/db"
)

var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Events database management",
}

var dbInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the events database and apply the schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		database, err := openEventsDB()
		if err != nil {
			return err
		}
		defer database.Close()
		fmt.Fprintf(cmd.OutOrStdout(), "events database ready at %s\n", database.Path())
		return nil
	},
}

var dbPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the events database path",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := db.DefaultDBPath()
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), path)
		return nil
	},
}

var dbResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset the events database (destructive!)",
	RunE: func(cmd *cobra.Command, args []string) error {
		database, err := openEventsDB()
		if err != nil {
			return err
		}
		defer database.Close()
		if err := database.Reset(); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "events database reset")
		return nil
	},
}

func init() {
	dbCmd.AddCommand(dbInitCmd)
	dbCmd.AddCommand(dbPathCmd)
	dbCmd.AddCommand(dbResetCmd)
}
