package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(dumpCmd)
}

var dumpCmd = &cobra.Command{
	Use:   "dump [database]",
	Short: "Print the per-object counters as SQL",
	Long: `dump prints the raw counters of every table and index as an SQL script
that recreates the space_used table, suitable for loading into sqlite3.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, _, err := openSession(commandContext(cmd), args)
		if err != nil {
			return err
		}
		defer func() { _ = s.Close() }()

		lines, err := s.Dump(commandContext(cmd))
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for _, l := range lines {
			if _, err := fmt.Fprintln(out, l); err != nil {
				return err
			}
		}
		return nil
	},
}
