package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/agentic-research/spaceused/internal/analyzer"
	"github.com/agentic-research/spaceused/internal/config"
	"github.com/agentic-research/spaceused/internal/logging"
	"github.com/agentic-research/spaceused/internal/report"
)

// Version is stamped at build time with -ldflags.
var Version = "dev"

var (
	configPath     string
	formatFlag     string
	queryFlag      string
	logLevelFlag   string
	workersFlag    int
	excludeIndices bool

	// Resolved settings, filled in before any command runs.
	cfg    = config.Default()
	logger = slog.Default()
)

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&configPath, "config", "c", "", "Path to an HCL config file")
	pf.StringVarP(&formatFlag, "format", "f", config.FormatText, "Output format: text or json")
	pf.StringVarP(&queryFlag, "query", "q", "", "JSONPath expression selecting part of the JSON output")
	pf.StringVar(&logLevelFlag, "log-level", "info", "Log level: debug, info, warn or error")
	pf.IntVarP(&workersFlag, "workers", "w", 0, "Concurrent extraction jobs (default GOMAXPROCS)")

	rootCmd.Flags().BoolVar(&excludeIndices, "exclude-indices", false, "Report tables without their indices")
}

var rootCmd = &cobra.Command{
	Use:   "spaceused [database]",
	Short: "Report how an SQLite database file uses its pages",
	Long: `spaceused reads an SQLite database file and reports how much space each
table and index uses: payload, metadata, unused bytes, overflow and
fragmentation. The file is opened read-only.`,
	Args:              cobra.MaximumNArgs(1),
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error { return loadSettings(cmd) },
	RunE: func(cmd *cobra.Command, args []string) error {
		s, path, err := openSession(commandContext(cmd), args)
		if err != nil {
			return err
		}
		defer func() { _ = s.Close() }()

		r, err := report.Build(s, report.Options{
			Title:          path,
			ExcludeIndices: cfg.ExcludeIndices,
			Tables:         cfg.Tables,
		})
		if err != nil {
			return err
		}
		if cfg.Format == config.FormatJSON {
			return r.WriteJSON(cmd.OutOrStdout(), cfg.Query)
		}
		return r.WriteText(cmd.OutOrStdout())
	},
}

// loadSettings layers the config file and then explicitly set flags over
// the defaults, and installs the logger.
func loadSettings(cmd *cobra.Command) error {
	c := config.Default()
	if configPath != "" {
		var err error
		if c, err = config.Load(configPath); err != nil {
			return err
		}
	}

	f := cmd.Flags()
	if f.Changed("format") {
		c.Format = formatFlag
	}
	if f.Changed("query") {
		c.Query = queryFlag
	}
	if f.Changed("log-level") {
		c.LogLevel = logLevelFlag
	}
	if f.Changed("workers") && workersFlag > 0 {
		c.Workers = workersFlag
	}
	if f.Changed("exclude-indices") {
		c.ExcludeIndices = excludeIndices
	}
	// A query only makes sense on JSON.
	if c.Query != "" {
		c.Format = config.FormatJSON
	}
	if err := c.Validate(); err != nil {
		return err
	}

	l, err := logging.Init(cmd.ErrOrStderr(), c.LogLevel, c.LogJSON)
	if err != nil {
		return err
	}
	cfg, logger = c, l
	return nil
}

// databasePath picks the database from the arguments, falling back to the
// config file.
func databasePath(args []string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	if cfg.Database != "" {
		return cfg.Database, nil
	}
	return "", errors.New("no database given: pass a path or set database in the config file")
}

func openSession(ctx context.Context, args []string) (*analyzer.Session, string, error) {
	path, err := databasePath(args)
	if err != nil {
		return nil, "", err
	}
	logger.Debug("analysing", "database", path, "workers", cfg.Workers)
	s, err := analyzer.Open(ctx, path, analyzer.WithLogger(logger), analyzer.WithWorkers(cfg.Workers))
	if errors.Is(err, analyzer.ErrUnsupportedCapability) {
		return nil, "", fmt.Errorf("%s: the SQLite engine lacks the dbstat virtual table: %w", path, err)
	}
	if err != nil {
		return nil, "", err
	}
	return s, path, nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
