package source

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/agentic-research/spaceused/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func createTestDB(t *testing.T) string {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")

	db, err := sql.Open("sqlite", dbPath)
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	_, err = db.Exec(`
		CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT, bio TEXT);
		CREATE INDEX idx_users_name ON users(name);
		CREATE TABLE kv (k TEXT PRIMARY KEY, v BLOB) WITHOUT ROWID;
		CREATE TABLE tags (tag TEXT PRIMARY KEY, n INTEGER);
	`)
	require.NoError(t, err)

	for i := 0; i < 200; i++ {
		_, err = db.Exec("INSERT INTO users (name, bio) VALUES (?, ?)",
			strings.Repeat("n", i%20+1), strings.Repeat("b", 50))
		require.NoError(t, err)
	}
	// One oversized row forces an overflow chain.
	_, err = db.Exec("INSERT INTO users (name, bio) VALUES (?, ?)", "big", strings.Repeat("x", 20000))
	require.NoError(t, err)
	_, err = db.Exec("INSERT INTO kv (k, v) VALUES ('a', x'01'), ('b', x'02')")
	require.NoError(t, err)
	return dbPath
}

func openTestSource(t *testing.T, path string) *DBStat {
	t.Helper()
	src, err := OpenDBStat(context.Background(), path)
	if errors.Is(err, ErrUnsupportedCapability) {
		t.Skip("sqlite driver built without dbstat")
	}
	require.NoError(t, err)
	t.Cleanup(func() { _ = src.Close() })
	return src
}

func TestDBStat_Catalog(t *testing.T) {
	src := openTestSource(t, createTestDB(t))
	ctx := context.Background()

	tables, err := src.Tables(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"users", "kv", "tags"}, tables)

	indices, err := src.Indices(ctx)
	require.NoError(t, err)
	names := make([]string, 0, len(indices))
	for _, idx := range indices {
		names = append(names, idx.Name)
	}
	assert.Contains(t, names, "idx_users_name")
	assert.Contains(t, names, "sqlite_autoindex_tags_1")
	assert.NotContains(t, names, "sqlite_autoindex_kv_1", "WITHOUT ROWID primary key has no schema entry")

	list, err := src.IndexList(ctx, "kv")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "pk", list[0].Origin)
	assert.True(t, list[0].Unique)

	ok, err := src.HasObject(ctx, list[0].Name)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = src.HasObject(ctx, "users")
	require.NoError(t, err)
	assert.True(t, ok)

	schema, err := src.SchemaTable(ctx)
	require.NoError(t, err)
	assert.Contains(t, []string{"sqlite_schema", "sqlite_master"}, schema)

	n, err := src.ItemCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), n) // 3 tables, 1 index, 1 autoindex
}

func TestDBStat_Pages(t *testing.T) {
	src := openTestSource(t, createTestDB(t))
	ctx := context.Background()

	pages, err := src.Pages(ctx, "users")
	require.NoError(t, err)
	require.NotEmpty(t, pages)

	var overflow int
	for i, p := range pages {
		assert.Equal(t, "users", p.Name)
		if i > 0 {
			assert.Greater(t, p.PageNo, pages[i-1].PageNo, "pages ordered by number")
		}
		if p.PageType == api.PageOverflow {
			overflow++
			assert.Contains(t, p.Path, "+")
		}
	}
	assert.Greater(t, overflow, 0, "20 KB row must spill to overflow pages")

	none, err := src.Pages(ctx, "no_such_table")
	require.NoError(t, err)
	assert.Empty(t, none)

	all, err := src.AllPages(ctx)
	require.NoError(t, err)
	assert.Greater(t, len(all), len(pages))

	var streamed int
	require.NoError(t, src.StreamPages(ctx, "users", func(api.PageFact) error {
		streamed++
		return nil
	}))
	assert.Equal(t, len(pages), streamed)
}

func TestDBStat_NonexistentFile(t *testing.T) {
	_, err := OpenDBStat(context.Background(), filepath.Join(t.TempDir(), "missing.db"))
	require.Error(t, err)
}
