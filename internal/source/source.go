// Package source supplies the per-page facts and schema catalog the
// analyzer works from. The analyzer never walks b-trees itself; anything
// exposing page-level metadata can implement PageSource.
package source

import (
	"context"
	"errors"

	"github.com/agentic-research/spaceused/api"
)

// ErrUnsupportedCapability is returned when the underlying engine cannot
// report per-page metadata.
var ErrUnsupportedCapability = errors.New("page introspection not supported")

// PageSource yields the pages of a database file.
type PageSource interface {
	// Pages returns the pages owned by the named table or index, ordered by
	// page number. An unknown or empty object yields no pages.
	Pages(ctx context.Context, name string) ([]api.PageFact, error)
	// AllPages returns every page of the file ordered by owner and path.
	AllPages(ctx context.Context) ([]api.PageFact, error)
}

// Catalog describes the tables and indices stored in the file.
type Catalog interface {
	// Tables lists user tables with a root page, in schema order. The schema
	// table itself is not included.
	Tables(ctx context.Context) ([]string, error)
	// Indices lists indices with a root page, in schema order.
	Indices(ctx context.Context) ([]api.Index, error)
	// IndexList returns PRAGMA index_list for the table.
	IndexList(ctx context.Context, table string) ([]api.IndexListEntry, error)
	// HasObject reports whether the schema has an entry with this name.
	HasObject(ctx context.Context, name string) (bool, error)
	// SchemaTable is the name the engine reports for the schema table.
	SchemaTable(ctx context.Context) (string, error)
	// ItemCount is the number of rows of the schema table.
	ItemCount(ctx context.Context) (uint64, error)
}

// Source is a page source that also knows the schema.
type Source interface {
	PageSource
	Catalog
}
