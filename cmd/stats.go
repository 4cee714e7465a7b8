package cmd

import (
	"github.com/spf13/cobra"

	"github.com/agentic-research/spaceused/api"
	"github.com/agentic-research/spaceused/internal/config"
	"github.com/agentic-research/spaceused/internal/report"
)

var (
	statsTable   string
	statsIndex   string
	statsIndices bool
)

func init() {
	statsCmd.Flags().StringVarP(&statsTable, "table", "t", "", "Metrics of one table")
	statsCmd.Flags().StringVarP(&statsIndex, "index", "i", "", "Metrics of one index")
	statsCmd.Flags().BoolVar(&statsIndices, "indices", false, "Metrics of all indices together")
	statsCmd.Flags().BoolVar(&excludeIndices, "exclude-indices", false, "Leave indices out of table and global metrics")
	statsCmd.MarkFlagsMutuallyExclusive("table", "index", "indices")
	rootCmd.AddCommand(statsCmd)
}

var statsCmd = &cobra.Command{
	Use:   "stats [database]",
	Short: "Print the storage metrics of a table, an index or the whole file",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, _, err := openSession(commandContext(cmd), args)
		if err != nil {
			return err
		}
		defer func() { _ = s.Close() }()

		var (
			m     api.StorageMetrics
			title string
		)
		switch {
		case statsTable != "" && cfg.ExcludeIndices:
			m, err = s.TableStats(statsTable, true)
			title = "Table " + statsTable + " w/o any indices"
		case statsTable != "":
			m, err = s.TableStats(statsTable, false)
			title = "Table " + statsTable + " and all its indices"
		case statsIndex != "":
			m, err = s.IndexStats(statsIndex)
			title = "Index " + statsIndex
		case statsIndices:
			m, err = s.IndicesStats()
			title = "All indices"
		case cfg.ExcludeIndices:
			m = s.GlobalStats(true)
			title = "All tables"
		default:
			m = s.GlobalStats(false)
			title = "All tables and indices"
		}
		if err != nil {
			return err
		}

		if cfg.Format == config.FormatJSON {
			return report.Encode(cmd.OutOrStdout(), m.Map(), cfg.Query)
		}
		return report.WriteMetrics(cmd.OutOrStdout(), title, m)
	},
}
