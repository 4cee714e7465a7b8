package metrics

import (
	"math"

	"github.com/agentic-research/spaceused/api"
)

// LogicalFileSize is the size the file should have given its page count.
// It equals the physical size unless the file is compressed or truncated.
func LogicalFileSize(pageCount, pageSize uint64) uint64 {
	return pageCount * pageSize
}

// AutovacuumPageCount is the number of pointer-map pages in a file.
//
// With auto-vacuum the file holds one pointer-map page, then pageSize/5
// other pages, then another pointer-map page, and so on; the first
// pointer-map page is page 2.
func AutovacuumPageCount(pageCount, pageSize uint64, enabled bool) uint64 {
	if !enabled || pageCount <= 1 || pageSize == 0 {
		return 0
	}
	pointersPerPage := float64(pageSize) / 5
	return uint64(math.Ceil(float64(pageCount-1) / (pointersPerPage + 1)))
}

// InUsePages is the number of pages allocated to the given tables and
// indices.
func InUsePages(rows []api.RawObjectStats) uint64 {
	var n uint64
	for _, r := range rows {
		n += r.TotalPages()
	}
	return n
}

// CalculatedFreePages is the page count minus the pages in use and the
// pointer-map pages. It is signed because a corrupt or mid-transaction file
// can make it negative.
func CalculatedFreePages(pageCount, inUse, autovacuum uint64) int64 {
	return int64(pageCount) - int64(inUse) - int64(autovacuum)
}

// CalculatedPageCount rebuilds the page count from its parts. It need not
// match the header's page count.
func CalculatedPageCount(inUse, freelist, autovacuum uint64) uint64 {
	return inUse + freelist + autovacuum
}
