package analyzer

import (
	"fmt"
	"strings"

	"github.com/agentic-research/spaceused/api"
	"github.com/agentic-research/spaceused/internal/header"
	"github.com/agentic-research/spaceused/internal/metrics"
)

func (s *Session) aggregator() metrics.Aggregator {
	return metrics.Aggregator{
		PageSize:  uint64(s.hdr.PageSize),
		PageCount: uint64(s.hdr.PageCount),
	}
}

// Aggregate computes metrics over the rows selected by pred.
func (s *Session) Aggregate(pred metrics.Predicate) api.StorageMetrics {
	return s.aggregator().Aggregate(s.rows, pred)
}

// TableStats returns the metrics of a table. Unless excludeIndices is set,
// the table's indices are counted as part of it.
func (s *Session) TableStats(name string, excludeIndices bool) (api.StorageMetrics, error) {
	pred := metrics.OwnedBy(name)
	if excludeIndices {
		pred = metrics.Named(name)
	}
	m := s.Aggregate(pred)
	if m.Count == 0 {
		return api.StorageMetrics{}, fmt.Errorf("%w: table %s", ErrUnknownObject, name)
	}
	return m, nil
}

// IndexStats returns the metrics of one index.
func (s *Session) IndexStats(name string) (api.StorageMetrics, error) {
	m := s.Aggregate(func(r api.RawObjectStats) bool { return r.IsIndex && r.Name == name })
	if m.Count == 0 {
		return api.StorageMetrics{}, fmt.Errorf("%w: index %s", ErrUnknownObject, name)
	}
	return m, nil
}

// GlobalStats returns the metrics of the whole database, optionally
// leaving out the indices.
func (s *Session) GlobalStats(excludeIndices bool) api.StorageMetrics {
	if excludeIndices {
		return s.Aggregate(metrics.Tables)
	}
	return s.Aggregate(metrics.All)
}

// IndicesStats returns the metrics of all indices taken together.
func (s *Session) IndicesStats() (api.StorageMetrics, error) {
	if len(s.indices) == 0 {
		return api.StorageMetrics{}, ErrNoIndices
	}
	return s.Aggregate(metrics.Indices), nil
}

// PageSize is the database page size in bytes.
func (s *Session) PageSize() uint64 { return uint64(s.hdr.PageSize) }

// PageCount is the number of pages according to the header.
func (s *Session) PageCount() uint64 { return uint64(s.hdr.PageCount) }

// FreelistCount is the number of pages on the freelist.
func (s *Session) FreelistCount() uint64 { return uint64(s.hdr.FreelistCount) }

// FileSize is the physical size of the database file in bytes.
func (s *Session) FileSize() (int64, error) {
	if s.fsys == nil {
		return 0, fmt.Errorf("file size: session has no backing file")
	}
	fi, err := s.fsys.Stat(s.fileName)
	if err != nil {
		return 0, fmt.Errorf("stat %s: %w", s.fileName, err)
	}
	return fi.Size(), nil
}

// LogicalFileSize is page count times page size.
func (s *Session) LogicalFileSize() uint64 {
	return metrics.LogicalFileSize(s.PageCount(), s.PageSize())
}

// AutovacuumPageCount is the number of pointer-map pages.
func (s *Session) AutovacuumPageCount() uint64 {
	enabled := s.hdr.AutoVacuum() != header.VacuumNone
	return metrics.AutovacuumPageCount(s.PageCount(), s.PageSize(), enabled)
}

// InUsePages is the number of pages used by tables and indices.
func (s *Session) InUsePages() uint64 {
	return metrics.InUsePages(s.rows)
}

// InUsePercent is InUsePages as a percentage of the page count.
func (s *Session) InUsePercent() float64 {
	return metrics.Percentage(float64(s.InUsePages()), float64(s.PageCount()))
}

// CalculatedFreePages is the page count minus pages in use and pointer-map
// pages. It may differ from FreelistCount on an inconsistent file.
func (s *Session) CalculatedFreePages() int64 {
	return metrics.CalculatedFreePages(s.PageCount(), s.InUsePages(), s.AutovacuumPageCount())
}

// CalculatedPageCount adds pages in use, freelist pages and pointer-map
// pages. It may differ from PageCount on an inconsistent file.
func (s *Session) CalculatedPageCount() uint64 {
	return metrics.CalculatedPageCount(s.InUsePages(), s.FreelistCount(), s.AutovacuumPageCount())
}

// IsCompressed reports whether the file's pages are stored compressed.
// Only one table is sampled; the answer is computed on first use.
func (s *Session) IsCompressed() bool {
	s.compressedOnce.Do(func() {
		sample := s.schemaTable
		if len(s.tables) > 0 {
			sample = s.tables[len(s.tables)-1]
		}
		s.compressed = s.Aggregate(metrics.OwnedBy(sample)).IsCompressed
	})
	return s.compressed
}

// PayloadSize is the payload stored in user tables, without indices and
// without the schema table.
func (s *Session) PayloadSize() uint64 {
	var n uint64
	for _, r := range s.rows {
		if !r.IsIndex && r.Name != s.schemaTable {
			n += r.Payload
		}
	}
	return n
}

// ItemCount is the number of entries in the schema table.
func (s *Session) ItemCount() uint64 { return s.itemCount }

// TableCount is the number of tables, counting the schema table.
func (s *Session) TableCount() int { return len(s.tables) + 1 }

// IndexCount is the number of indices.
func (s *Session) IndexCount() int { return len(s.indices) }

// AutoIndexCount is the number of indices SQLite created for UNIQUE and
// PRIMARY KEY constraints.
func (s *Session) AutoIndexCount() int {
	n := 0
	for _, idx := range s.indices {
		if strings.HasPrefix(idx.Name, "sqlite_autoindex") {
			n++
		}
	}
	return n
}

// ManualIndexCount is the number of indices created with CREATE INDEX.
func (s *Session) ManualIndexCount() int {
	return s.IndexCount() - s.AutoIndexCount()
}

// TableSpaceUsage maps each table to the pages it uses, indices included.
func (s *Session) TableSpaceUsage() map[string]uint64 {
	usage := make(map[string]uint64)
	for _, r := range s.rows {
		usage[r.Table] += r.TotalPages()
	}
	return usage
}

// TablePageCount is the number of pages used by a table, with or without
// its indices.
func (s *Session) TablePageCount(name string, excludeIndices bool) (uint64, error) {
	m, err := s.TableStats(name, excludeIndices)
	if err != nil {
		return 0, err
	}
	return m.TotalPages, nil
}

// IndexPageCount is the number of pages used by an index.
func (s *Session) IndexPageCount(name string) (uint64, error) {
	m, err := s.IndexStats(name)
	if err != nil {
		return 0, err
	}
	return m.TotalPages, nil
}
