package source

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/agentic-research/spaceused/api"
	_ "modernc.org/sqlite"
)

const pageColumns = `name, path, pageno, pagetype, ncell, payload, unused, mx_payload, pgoffset, pgsize`

// DBStat reads page facts from SQLite's dbstat virtual table.
// The database file is opened read-only.
type DBStat struct {
	db   *sql.DB
	path string
}

// OpenDBStat opens the database at path and checks that the SQLite build
// provides the dbstat virtual table.
func OpenDBStat(ctx context.Context, path string) (*DBStat, error) {
	db, err := sql.Open("sqlite", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	db.SetMaxOpenConns(4)

	var n int
	err = db.QueryRowContext(ctx,
		`SELECT count(*) FROM pragma_compile_options WHERE compile_options = 'ENABLE_DBSTAT_VTAB'`).Scan(&n)
	if err != nil {
		_ = db.Close() // ignore error
		return nil, fmt.Errorf("query compile options of %s: %w", path, err)
	}
	if n == 0 {
		_ = db.Close() // ignore error
		return nil, fmt.Errorf("%w: sqlite was built without ENABLE_DBSTAT_VTAB", ErrUnsupportedCapability)
	}

	return &DBStat{db: db, path: path}, nil
}

// Close releases the database connection.
func (s *DBStat) Close() error {
	return s.db.Close()
}

// Pages implements PageSource.
func (s *DBStat) Pages(ctx context.Context, name string) ([]api.PageFact, error) {
	var pages []api.PageFact
	err := s.stream(ctx, `SELECT `+pageColumns+` FROM dbstat WHERE name = ? ORDER BY pageno`,
		func(p api.PageFact) error {
			pages = append(pages, p)
			return nil
		}, name)
	if err != nil {
		return nil, fmt.Errorf("pages of %s: %w", name, err)
	}
	return pages, nil
}

// AllPages implements PageSource.
func (s *DBStat) AllPages(ctx context.Context) ([]api.PageFact, error) {
	var pages []api.PageFact
	err := s.stream(ctx, `SELECT `+pageColumns+` FROM dbstat ORDER BY name, path`,
		func(p api.PageFact) error {
			pages = append(pages, p)
			return nil
		})
	if err != nil {
		return nil, fmt.Errorf("all pages: %w", err)
	}
	return pages, nil
}

// StreamPages calls fn for each page owned by name, in page-number order,
// without holding more than one fact in memory.
func (s *DBStat) StreamPages(ctx context.Context, name string, fn func(api.PageFact) error) error {
	return s.stream(ctx, `SELECT `+pageColumns+` FROM dbstat WHERE name = ? ORDER BY pageno`, fn, name)
}

func (s *DBStat) stream(ctx context.Context, query string, fn func(api.PageFact) error, args ...any) error {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("query dbstat: %w", err)
	}
	defer func() { _ = rows.Close() }() // safe to ignore

	for rows.Next() {
		var (
			p        api.PageFact
			pageType string
			offset   sql.NullInt64
		)
		if err := rows.Scan(&p.Name, &p.Path, &p.PageNo, &pageType, &p.CellCount,
			&p.Payload, &p.Unused, &p.MaxPayload, &offset, &p.Size); err != nil {
			return fmt.Errorf("scan dbstat row: %w", err)
		}
		p.PageType = api.PageType(pageType)
		p.Offset = offset.Int64
		if err := fn(p); err != nil {
			return err
		}
	}
	return rows.Err()
}

// Tables implements Catalog.
func (s *DBStat) Tables(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name FROM sqlite_master WHERE rootpage > 0 AND type = 'table'`)
	if err != nil {
		return nil, fmt.Errorf("query tables: %w", err)
	}
	defer func() { _ = rows.Close() }() // safe to ignore

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan table: %w", err)
		}
		tables = append(tables, name)
	}
	return tables, rows.Err()
}

// Indices implements Catalog.
func (s *DBStat) Indices(ctx context.Context) ([]api.Index, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, tbl_name FROM sqlite_master WHERE rootpage > 0 AND type = 'index'`)
	if err != nil {
		return nil, fmt.Errorf("query indices: %w", err)
	}
	defer func() { _ = rows.Close() }() // safe to ignore

	var indices []api.Index
	for rows.Next() {
		var idx api.Index
		if err := rows.Scan(&idx.Name, &idx.Table); err != nil {
			return nil, fmt.Errorf("scan index: %w", err)
		}
		indices = append(indices, idx)
	}
	return indices, rows.Err()
}

// IndexList implements Catalog.
func (s *DBStat) IndexList(ctx context.Context, table string) ([]api.IndexListEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT seq, name, "unique", origin, partial FROM pragma_index_list(?)`, table)
	if err != nil {
		return nil, fmt.Errorf("index list of %s: %w", table, err)
	}
	defer func() { _ = rows.Close() }() // safe to ignore

	var entries []api.IndexListEntry
	for rows.Next() {
		var e api.IndexListEntry
		if err := rows.Scan(&e.Seq, &e.Name, &e.Unique, &e.Origin, &e.Partial); err != nil {
			return nil, fmt.Errorf("scan index list of %s: %w", table, err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// HasObject implements Catalog.
func (s *DBStat) HasObject(ctx context.Context, name string) (bool, error) {
	var n int
	if err := s.db.QueryRowContext(ctx,
		`SELECT count(*) FROM sqlite_master WHERE name = ?`, name).Scan(&n); err != nil {
		return false, fmt.Errorf("lookup %s: %w", name, err)
	}
	return n > 0, nil
}

// SchemaTable implements Catalog. Page 1 always belongs to the schema
// table; its reported name depends on the SQLite version.
func (s *DBStat) SchemaTable(ctx context.Context) (string, error) {
	var name string
	err := s.db.QueryRowContext(ctx, `SELECT name FROM dbstat WHERE pageno = 1`).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return "sqlite_master", nil
	}
	if err != nil {
		return "", fmt.Errorf("owner of page 1: %w", err)
	}
	return name, nil
}

// ItemCount implements Catalog.
func (s *DBStat) ItemCount(ctx context.Context) (uint64, error) {
	var n uint64
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM sqlite_master`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count schema rows: %w", err)
	}
	return n, nil
}
