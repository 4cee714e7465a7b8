// Package rawstats reduces the page facts of one table or index to the raw
// counters the metrics aggregator works from.
package rawstats

import (
	"strings"

	"github.com/RoaringBitmap/roaring"
	"github.com/agentic-research/spaceused/api"
)

// overflowStart is the path suffix of the first page of an overflow chain.
const overflowStart = "+000000"

// Extract computes the counters for the object called name from its pages.
// Pages owned by other objects are ignored. The identity fields (Table,
// IsIndex, IsWithoutRowid) are left for the caller, who knows the schema.
func Extract(name string, pages []api.PageFact) api.RawObjectStats {
	s := api.RawObjectStats{Name: name}

	all := roaring.New()
	leaves := roaring.New()

	for _, p := range pages {
		if p.Name != name {
			continue
		}
		s.Entries += p.CellCount
		s.Payload += p.Payload
		s.DiskSize += p.Size
		if p.MaxPayload > s.MaxPayload {
			s.MaxPayload = p.MaxPayload
		}
		if strings.HasSuffix(p.Path, overflowStart) {
			s.OverflowEntries++
		}
		if d := Depth(p.Path); d > s.Depth {
			s.Depth = d
		}

		switch p.PageType {
		case api.PageInternal:
			s.InternalPages++
			s.InternalUnused += p.Unused
		case api.PageLeaf:
			s.LeafPages++
			s.LeafUnused += p.Unused
			s.LeafEntries += p.CellCount
			leaves.Add(p.PageNo)
		case api.PageOverflow:
			s.OverflowPages++
			s.OverflowUnused += p.Unused
			s.OverflowPayload += p.Payload
		}
		all.Add(p.PageNo)
	}

	s.Gaps = countGaps(all, leaves)
	return s
}

// Depth is the tree level encoded in a page path: four characters per
// level, root "/" being level 1. Overflow pages do not count.
func Depth(path string) uint64 {
	if strings.Contains(path, "+") {
		return 0
	}
	return uint64(len(path)+3) / 4
}

// countGaps visits the object's pages in ascending page-number order and
// counts the leaf pages that do not immediately follow the previous page.
// The first page visited is never a gap.
func countGaps(all, leaves *roaring.Bitmap) uint64 {
	var (
		gaps uint64
		prev uint32
		seen bool
	)
	it := all.Iterator()
	for it.HasNext() {
		pg := it.Next()
		if seen && leaves.Contains(pg) && pg != prev+1 {
			gaps++
		}
		prev = pg
		seen = true
	}
	return gaps
}
