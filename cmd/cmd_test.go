package cmd

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/ohler55/ojg/oj"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/agentic-research/spaceused/internal/analyzer"
)

func setupTestDB(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "app.db")
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	_, err = db.Exec(`
		CREATE TABLE nodes (
			id TEXT PRIMARY KEY,
			parent_id TEXT,
			name TEXT NOT NULL,
			record BLOB
		);
		CREATE INDEX idx_parent_name ON nodes(parent_id, name);

		CREATE TABLE node_refs (
			token TEXT,
			node_id TEXT,
			PRIMARY KEY (token, node_id)
		) WITHOUT ROWID;
	`)
	require.NoError(t, err)
	for i := 0; i < 200; i++ {
		id := "n" + strconv.Itoa(i)
		_, err = db.Exec("INSERT INTO nodes VALUES (?, 'root', ?, ?)",
			id, "name"+strconv.Itoa(i), bytes.Repeat([]byte{byte(i)}, 120))
		require.NoError(t, err)
		_, err = db.Exec("INSERT INTO node_refs VALUES (?, ?)", "tok"+strconv.Itoa(i%10), id)
		require.NoError(t, err)
	}
	return path
}

// resetFlags puts every flag back to its default so runs do not leak into
// each other.
func resetFlags() {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	rootCmd.PersistentFlags().VisitAll(reset)
	rootCmd.Flags().VisitAll(reset)
	for _, c := range rootCmd.Commands() {
		c.Flags().VisitAll(reset)
	}
}

// run executes the CLI with args and returns what it wrote to stdout.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags()
	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func skipWithoutDBStat(t *testing.T, err error) {
	t.Helper()
	if errors.Is(err, analyzer.ErrUnsupportedCapability) {
		t.Skip("sqlite driver built without dbstat")
	}
}

func TestHeaderCommand(t *testing.T) {
	path := setupTestDB(t)

	out, err := run(t, "header", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Header seems valid? true")
	assert.Contains(t, out, "Page size: 4096")

	out, err = run(t, "header", "--format", "json", "--query", "$.page_size", path)
	require.NoError(t, err)
	assert.Equal(t, "4096\n", out)
}

func TestHeaderCommand_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "junk.db")
	require.NoError(t, os.WriteFile(path, []byte("not a database"), 0o644))

	_, err := run(t, "header", path)
	require.ErrorIs(t, err, analyzer.ErrMalformedHeader)
}

func TestReportCommand(t *testing.T) {
	path := setupTestDB(t)

	out, err := run(t, "--exclude-indices=false", path)
	skipWithoutDBStat(t, err)
	require.NoError(t, err)
	assert.Contains(t, out, "Disk-Space Utilization Report For "+path)
	assert.Contains(t, out, "*** Table NODES and all its indices ")
	assert.Contains(t, out, "*** Index IDX_PARENT_NAME of table NODES ")

	out, err = run(t, "--format", "json", "--query", "$.tables[*].name", path)
	require.NoError(t, err)
	names, err := oj.ParseString(out)
	require.NoError(t, err)
	assert.ElementsMatch(t, []any{"nodes", "node_refs", "sqlite_schema"}, normalizeSchema(names.([]any)))
}

// normalizeSchema maps the legacy schema table name to the current one.
func normalizeSchema(names []any) []any {
	for i, n := range names {
		if n == "sqlite_master" {
			names[i] = "sqlite_schema"
		}
	}
	return names
}

func TestStatsCommand(t *testing.T) {
	path := setupTestDB(t)

	out, err := run(t, "stats", "--format", "json", "--table", "node_refs", path)
	skipWithoutDBStat(t, err)
	require.NoError(t, err)
	doc, err := oj.ParseString(out)
	require.NoError(t, err)
	m := doc.(map[string]any)
	assert.EqualValues(t, 200, m["nentry"], "WITHOUT ROWID tables count leaf cells")

	out, err = run(t, "stats", "--index", "idx_parent_name", path)
	require.NoError(t, err)
	assert.Contains(t, out, "*** Index idx_parent_name ")
	assert.Contains(t, out, "Number of entries")

	_, err = run(t, "stats", "--table", "missing", path)
	require.ErrorIs(t, err, analyzer.ErrUnknownObject)
}

func TestDumpCommand(t *testing.T) {
	path := setupTestDB(t)

	out, err := run(t, "dump", path)
	skipWithoutDBStat(t, err)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	assert.Equal(t, "BEGIN TRANSACTION;", lines[0])
	assert.Equal(t, "COMMIT;", lines[len(lines)-1])
	assert.Contains(t, out, `INSERT INTO "space_used" VALUES('nodes'`)
}

func TestConfigFile(t *testing.T) {
	path := setupTestDB(t)
	conf := filepath.Join(t.TempDir(), "spaceused.hcl")
	require.NoError(t, os.WriteFile(conf, []byte(`
database = "`+filepath.ToSlash(path)+`"
format   = "json"
query    = "$.page_count"
`), 0o644))

	out, err := run(t, "header", "--config", conf)
	require.NoError(t, err)
	assert.NotEmpty(t, strings.TrimSpace(out))
	assert.NotContains(t, out, "Header seems valid?", "format comes from the config file")

	_, err = run(t, "header", "--config", filepath.Join(t.TempDir(), "missing.hcl"))
	require.Error(t, err)
}

func TestDatabasePath(t *testing.T) {
	prev := cfg
	t.Cleanup(func() { cfg = prev })

	cfg.Database = ""
	_, err := databasePath(nil)
	require.Error(t, err)

	cfg.Database = "from-config.db"
	p, err := databasePath(nil)
	require.NoError(t, err)
	assert.Equal(t, "from-config.db", p)

	p, err = databasePath([]string{"arg.db"})
	require.NoError(t, err)
	assert.Equal(t, "arg.db", p)
}
