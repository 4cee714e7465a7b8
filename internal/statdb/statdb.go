// Package statdb keeps the raw per-object counters of an analysis in an
// in-memory SQLite database so they can be dumped as SQL.
package statdb

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/agentic-research/spaceused/api"
	_ "modernc.org/sqlite"
)

// Schema is the DDL of the space_used table.
const Schema = `CREATE TABLE space_used(
  name clob,        -- Name of a table or index in the database file
  tblname clob,     -- Name of associated table
  is_index boolean, -- TRUE if it is an index, false for a table
  is_without_rowid boolean, -- TRUE if WITHOUT ROWID table
  nentry int,       -- Number of entries in the BTree
  leaf_entries int, -- Number of leaf entries
  depth int,        -- Depth of the b-tree
  payload int,      -- Total amount of data stored in this table or index
  ovfl_payload int, -- Total amount of data stored on overflow pages
  ovfl_cnt int,     -- Number of entries that use overflow
  mx_payload int,   -- Maximum payload size
  int_pages int,    -- Number of interior pages used
  leaf_pages int,   -- Number of leaf pages used
  ovfl_pages int,   -- Number of overflow pages used
  int_unused int,   -- Number of unused bytes on interior pages
  leaf_unused int,  -- Number of unused bytes on primary pages
  ovfl_unused int,  -- Number of unused bytes on overflow pages
  gap_cnt int,      -- Number of gaps in the page layout
  compressed_size int -- Total bytes stored on disk
)`

const columns = `name, tblname, is_index, is_without_rowid, nentry, leaf_entries, depth,
	payload, ovfl_payload, ovfl_cnt, mx_payload, int_pages, leaf_pages, ovfl_pages,
	int_unused, leaf_unused, ovfl_unused, gap_cnt, compressed_size`

// DB is an in-memory stat database.
type DB struct {
	db *sql.DB
	mu sync.Mutex
}

// Open creates an empty stat database.
func Open(ctx context.Context) (*DB, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("open stat db: %w", err)
	}
	// Every connection to :memory: is a separate database.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, Schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create space_used: %w", err)
	}
	return &DB{db: db}, nil
}

// Close releases the database.
func (d *DB) Close() error {
	return d.db.Close()
}

// Insert writes rows in a single transaction.
func (d *DB) Insert(ctx context.Context, rows []api.RawObjectStats) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }() // no-op after commit

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO space_used (`+columns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, r := range rows {
		if _, err := stmt.ExecContext(ctx, values(r)...); err != nil {
			return fmt.Errorf("insert %s: %w", r.Name, err)
		}
	}
	return tx.Commit()
}

// Rows reads every stored row back, in insertion order.
func (d *DB) Rows(ctx context.Context) ([]api.RawObjectStats, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	rows, err := d.db.QueryContext(ctx, `SELECT `+columns+` FROM space_used ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("query space_used: %w", err)
	}
	defer func() { _ = rows.Close() }() // safe to ignore

	var out []api.RawObjectStats
	for rows.Next() {
		var r api.RawObjectStats
		if err := rows.Scan(&r.Name, &r.Table, &r.IsIndex, &r.IsWithoutRowid,
			&r.Entries, &r.LeafEntries, &r.Depth, &r.Payload, &r.OverflowPayload,
			&r.OverflowEntries, &r.MaxPayload, &r.InternalPages, &r.LeafPages,
			&r.OverflowPages, &r.InternalUnused, &r.LeafUnused, &r.OverflowUnused,
			&r.Gaps, &r.DiskSize); err != nil {
			return nil, fmt.Errorf("scan space_used: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Dump renders the stat database as SQL statements, one per line.
func (d *DB) Dump(ctx context.Context) ([]string, error) {
	rows, err := d.Rows(ctx)
	if err != nil {
		return nil, err
	}

	lines := make([]string, 0, len(rows)+3)
	lines = append(lines, "BEGIN TRANSACTION;", Schema+";")
	for _, r := range rows {
		vals := values(r)
		lits := make([]string, len(vals))
		for i, v := range vals {
			lits[i] = literal(v)
		}
		lines = append(lines, `INSERT INTO "space_used" VALUES(`+strings.Join(lits, ",")+`);`)
	}
	lines = append(lines, "COMMIT;")
	return lines, nil
}

func values(r api.RawObjectStats) []any {
	return []any{
		r.Name, r.Table, r.IsIndex, r.IsWithoutRowid,
		int64(r.Entries), int64(r.LeafEntries), int64(r.Depth),
		int64(r.Payload), int64(r.OverflowPayload), int64(r.OverflowEntries), int64(r.MaxPayload),
		int64(r.InternalPages), int64(r.LeafPages), int64(r.OverflowPages),
		int64(r.InternalUnused), int64(r.LeafUnused), int64(r.OverflowUnused),
		int64(r.Gaps), int64(r.DiskSize),
	}
}

func literal(v any) string {
	switch x := v.(type) {
	case string:
		return "'" + strings.ReplaceAll(x, "'", "''") + "'"
	case bool:
		if x {
			return "1"
		}
		return "0"
	case int64:
		return strconv.FormatInt(x, 10)
	default:
		return fmt.Sprint(x)
	}
}
