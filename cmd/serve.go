package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/agentic-research/spaceused/internal/analyzer"
	"github.com/agentic-research/spaceused/internal/mcpserver"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve [database]",
	Short: "Answer storage questions about a database over MCP (stdio)",
	Long: `serve analyses the database and exposes the results as Model Context
Protocol tools on standard input and output. The refresh tool analyses the
file again. Logs go to stderr.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, path, err := openSession(commandContext(cmd), args)
		if err != nil {
			return err
		}
		srv := mcpserver.New(s, path,
			mcpserver.WithVersion(Version),
			mcpserver.WithLogger(logger),
			mcpserver.WithReopen(func(ctx context.Context) (*analyzer.Session, error) {
				next, _, err := openSession(ctx, []string{path})
				return next, err
			}),
		)
		defer func() { _ = srv.Close() }()

		return srv.ServeStdio()
	},
}
