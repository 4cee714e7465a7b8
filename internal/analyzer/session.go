// Package analyzer runs a storage-space analysis of one database file.
//
// A Session parses the file header, extracts raw counters for every table
// and index from a page source, and answers metric queries from those
// counters. Everything is computed once in Open or New; queries only read.
package analyzer

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	billy "github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"golang.org/x/sync/errgroup"

	"github.com/agentic-research/spaceused/api"
	"github.com/agentic-research/spaceused/internal/header"
	"github.com/agentic-research/spaceused/internal/rawstats"
	"github.com/agentic-research/spaceused/internal/source"
	"github.com/agentic-research/spaceused/internal/statdb"
)

// Session holds the results of analysing one database file.
type Session struct {
	hdr    *header.Header
	src    source.Source
	closer io.Closer // set when the session opened src itself
	stats  *statdb.DB
	log    *slog.Logger

	fsys     billy.Filesystem
	fileName string
	workers  int

	schemaTable string
	tables      []string
	indices     []api.Index
	itemCount   uint64

	rows   []api.RawObjectStats // one per table and index, never modified
	byName map[string]int

	compressedOnce sync.Once
	compressed     bool
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the logger used for progress messages.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.log = l
		}
	}
}

// WithWorkers bounds the number of objects extracted concurrently.
func WithWorkers(n int) Option {
	return func(s *Session) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithFile names the database file the header was read from, so that
// FileSize can stat it.
func WithFile(fsys billy.Filesystem, name string) Option {
	return func(s *Session) {
		s.fsys = fsys
		s.fileName = name
	}
}

// Open analyses the database file at path using SQLite's dbstat table.
func Open(ctx context.Context, path string, opts ...Option) (*Session, error) {
	fsys := osfs.New(filepath.Dir(path))
	name := filepath.Base(path)

	hdr, err := header.Read(fsys, name)
	if err != nil {
		return nil, err
	}

	src, err := source.OpenDBStat(ctx, path)
	if err != nil {
		return nil, err
	}

	opts = append([]Option{WithFile(fsys, name)}, opts...)
	s, err := New(ctx, hdr, src, opts...)
	if err != nil {
		_ = src.Close() // ignore error
		return nil, err
	}
	s.closer = src
	return s, nil
}

// New analyses the objects reported by src. The header supplies page size,
// page count, freelist size and vacuum mode.
func New(ctx context.Context, hdr *header.Header, src source.Source, opts ...Option) (*Session, error) {
	s := &Session{
		hdr:     hdr,
		src:     src,
		log:     slog.Default(),
		workers: runtime.GOMAXPROCS(0),
		byName:  make(map[string]int),
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.loadCatalog(ctx); err != nil {
		return nil, err
	}

	stats, err := statdb.Open(ctx)
	if err != nil {
		return nil, err
	}
	s.stats = stats

	if err := s.extract(ctx); err != nil {
		_ = stats.Close() // ignore error
		return nil, err
	}
	return s, nil
}

// Close releases the stat database and, for sessions created by Open, the
// source database.
func (s *Session) Close() error {
	err := s.stats.Close()
	if s.closer != nil {
		if cerr := s.closer.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

func (s *Session) loadCatalog(ctx context.Context) error {
	var err error
	if s.schemaTable, err = s.src.SchemaTable(ctx); err != nil {
		return err
	}
	if s.tables, err = s.src.Tables(ctx); err != nil {
		return err
	}
	if s.indices, err = s.src.Indices(ctx); err != nil {
		return err
	}
	if s.itemCount, err = s.src.ItemCount(ctx); err != nil {
		return err
	}
	return nil
}

type object struct {
	name    string
	table   string
	isIndex bool
}

// extract computes one raw row per object. Objects are independent, so
// they run concurrently; each job owns its slot in rows.
func (s *Session) extract(ctx context.Context) error {
	objects := make([]object, 0, len(s.tables)+len(s.indices)+1)
	objects = append(objects, object{name: s.schemaTable, table: s.schemaTable})
	for _, t := range s.tables {
		objects = append(objects, object{name: t, table: t})
	}
	for _, idx := range s.indices {
		objects = append(objects, object{name: idx.Name, table: idx.Table, isIndex: true})
	}

	start := time.Now()
	rows := make([]api.RawObjectStats, len(objects))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i, obj := range objects {
		g.Go(func() error {
			pages, err := s.src.Pages(gctx, obj.name)
			if err != nil {
				return fmt.Errorf("extract %s: %w", obj.name, err)
			}
			r := rawstats.Extract(obj.name, pages)
			r.Table = obj.table
			r.IsIndex = obj.isIndex
			if !obj.isIndex {
				if r.IsWithoutRowid, err = s.withoutRowid(gctx, obj.name); err != nil {
					return fmt.Errorf("extract %s: %w", obj.name, err)
				}
			}
			rows[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for i, r := range rows {
		s.byName[r.Name] = i
	}
	s.rows = rows

	if err := s.stats.Insert(ctx, rows); err != nil {
		return fmt.Errorf("store raw stats: %w", err)
	}

	s.log.Debug("extracted raw stats",
		"objects", len(rows),
		"workers", s.workers,
		"elapsed", time.Since(start))
	return nil
}

// withoutRowid reports whether table stores its rows in its primary key
// b-tree: its index list has a primary-key index with no schema entry of
// its own.
func (s *Session) withoutRowid(ctx context.Context, table string) (bool, error) {
	list, err := s.src.IndexList(ctx, table)
	if err != nil {
		return false, err
	}
	for _, idx := range list {
		if idx.Origin != "pk" {
			continue
		}
		ok, err := s.src.HasObject(ctx, idx.Name)
		if err != nil {
			return false, err
		}
		if !ok {
			return true, nil
		}
	}
	return false, nil
}

// Header returns the parsed file header.
func (s *Session) Header() *header.Header { return s.hdr }

// SchemaTable is the name of the table holding the schema.
func (s *Session) SchemaTable() string { return s.schemaTable }

// Tables lists the user tables, without the schema table.
func (s *Session) Tables() []string { return append([]string(nil), s.tables...) }

// Indices lists the indices.
func (s *Session) Indices() []api.Index { return append([]api.Index(nil), s.indices...) }

// RawStats returns a copy of the raw rows, one per table and index.
func (s *Session) RawStats() []api.RawObjectStats {
	return append([]api.RawObjectStats(nil), s.rows...)
}

// Row returns the raw row of the named table or index.
func (s *Session) Row(name string) (api.RawObjectStats, error) {
	i, ok := s.byName[name]
	if !ok {
		return api.RawObjectStats{}, fmt.Errorf("%w: %s", ErrUnknownObject, name)
	}
	return s.rows[i], nil
}

// IsWithoutRowid reports whether the named table is a WITHOUT ROWID table.
func (s *Session) IsWithoutRowid(table string) (bool, error) {
	r, err := s.Row(table)
	if err != nil {
		return false, err
	}
	return r.IsWithoutRowid, nil
}

// Pages returns every page of the file as reported by the source.
func (s *Session) Pages(ctx context.Context) ([]api.PageFact, error) {
	return s.src.AllPages(ctx)
}

// Dump returns the raw rows as SQL statements.
func (s *Session) Dump(ctx context.Context) ([]string, error) {
	return s.stats.Dump(ctx)
}
