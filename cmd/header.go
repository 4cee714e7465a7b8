package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/spf13/cobra"

	"github.com/agentic-research/spaceused/internal/config"
	"github.com/agentic-research/spaceused/internal/header"
	"github.com/agentic-research/spaceused/internal/report"
)

func init() {
	rootCmd.AddCommand(headerCmd)
}

var headerCmd = &cobra.Command{
	Use:   "header [database]",
	Short: "Decode the 100-byte database header",
	Long: `header prints the fields of the database header and whether they
look valid. Only the first 100 bytes are read, so it also works on files
SQLite refuses to open.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := databasePath(args)
		if err != nil {
			return err
		}
		h, err := header.Read(osfs.New(filepath.Dir(path)), filepath.Base(path))
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		if !h.HasMagic() {
			logger.Warn("header string does not match", "database", path)
		}

		if cfg.Format == config.FormatJSON {
			return report.Encode(cmd.OutOrStdout(), report.HeaderMap(h), cfg.Query)
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), h.String())
		return err
	},
}
