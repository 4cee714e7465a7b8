// Package metrics turns raw per-object counters into StorageMetrics and
// computes the whole-file quantities that do not depend on any one object.
package metrics

import "github.com/agentic-research/spaceused/api"

// compressedPageOverhead is the fixed per-page header cost of a compressed
// page.
const compressedPageOverhead = 14

// overflowPointerSize is the next-page pointer at the start of every
// overflow page except the last of a chain.
const overflowPointerSize = 4

// Percentage returns 100*value/total, or 0 when total is 0.
func Percentage(value, total float64) float64 {
	if total == 0 {
		return 0
	}
	return 100 * value / total
}

// Predicate selects the raw rows taking part in an aggregation.
type Predicate func(api.RawObjectStats) bool

// All selects every table and index.
func All(api.RawObjectStats) bool { return true }

// Tables selects tables only.
func Tables(r api.RawObjectStats) bool { return !r.IsIndex }

// Indices selects indices only.
func Indices(r api.RawObjectStats) bool { return r.IsIndex }

// Named selects the single object called name.
func Named(name string) Predicate {
	return func(r api.RawObjectStats) bool { return r.Name == name }
}

// OwnedBy selects a table together with its indices.
func OwnedBy(table string) Predicate {
	return func(r api.RawObjectStats) bool { return r.Table == table }
}

// Aggregator combines raw rows into StorageMetrics for a database with the
// given page size and page count.
type Aggregator struct {
	PageSize  uint64
	PageCount uint64
}

// Aggregate sums the rows matching pred and derives the ratios.
func (a Aggregator) Aggregate(rows []api.RawObjectStats, pred Predicate) api.StorageMetrics {
	if pred == nil {
		pred = All
	}

	var m api.StorageMetrics
	for _, r := range rows {
		if !pred(r) {
			continue
		}
		m.Count++
		if r.IsIndex || r.IsWithoutRowid {
			m.Entries += r.LeafEntries
		} else {
			m.Entries += r.Entries
		}
		m.Payload += r.Payload
		m.OverflowPayload += r.OverflowPayload
		m.OverflowEntries += r.OverflowEntries
		m.LeafPages += r.LeafPages
		m.InternalPages += r.InternalPages
		m.OverflowPages += r.OverflowPages
		m.LeafUnused += r.LeafUnused
		m.InternalUnused += r.InternalUnused
		m.OverflowUnused += r.OverflowUnused
		m.Gaps += r.Gaps
		m.DiskSize += r.DiskSize
		m.MaxPayload = max(m.MaxPayload, r.MaxPayload)
		m.Depth = max(m.Depth, r.Depth)
	}

	a.derive(&m)
	return m
}

func (a Aggregator) derive(m *api.StorageMetrics) {
	pageSize := float64(a.PageSize)

	m.TotalPages = m.InternalPages + m.LeafPages + m.OverflowPages
	m.TotalPagesPercent = Percentage(float64(m.TotalPages), float64(a.PageCount))
	m.Storage = m.TotalPages * a.PageSize

	m.IsCompressed = m.Storage > m.DiskSize
	if m.IsCompressed {
		m.CompressedOverhead = compressedPageOverhead
	}

	m.PayloadPercent = Percentage(float64(m.Payload), float64(m.Storage))
	m.TotalUnused = m.InternalUnused + m.LeafUnused + m.OverflowUnused

	m.TotalMetadata = int64(m.Storage) - int64(m.Payload) - int64(m.TotalUnused) +
		overflowPointerSize*(int64(m.OverflowPages)-int64(m.OverflowEntries))
	m.MetadataPercent = Percentage(float64(m.TotalMetadata), float64(m.Storage))

	if m.Entries > 0 {
		n := float64(m.Entries)
		m.AveragePayload = float64(m.Payload) / n
		m.AverageUnused = float64(m.TotalUnused) / n
		m.AverageMetadata = float64(m.TotalMetadata) / n
	}

	m.OverflowPercent = Percentage(float64(m.OverflowEntries), float64(m.Entries))
	if m.TotalPages > 1 {
		m.Fragmentation = Percentage(float64(m.Gaps), float64(m.TotalPages-1))
	}

	m.InternalUnusedPercent = Percentage(float64(m.InternalUnused), float64(m.InternalPages)*pageSize)
	m.OverflowUnusedPercent = Percentage(float64(m.OverflowUnused), float64(m.OverflowPages)*pageSize)
	m.LeafUnusedPercent = Percentage(float64(m.LeafUnused), float64(m.LeafPages)*pageSize)
	m.TotalUnusedPercent = Percentage(float64(m.TotalUnused), float64(m.Storage))
}
