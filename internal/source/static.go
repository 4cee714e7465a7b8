package source

import (
	"context"
	"sort"

	"github.com/agentic-research/spaceused/api"
)

// Static serves page facts and a catalog held in memory. It is useful when
// the facts were captured elsewhere, and in tests.
type Static struct {
	Schema     string // defaults to "sqlite_schema"
	TableNames []string
	IndexDefs  []api.Index
	// IndexLists maps a table to its PRAGMA index_list rows.
	IndexLists map[string][]api.IndexListEntry
	// Hidden names objects that appear in index lists but have no schema
	// entry of their own (the primary key of a WITHOUT ROWID table).
	Hidden []string
	Facts  []api.PageFact
}

var _ Source = (*Static)(nil)

func (s *Static) Pages(_ context.Context, name string) ([]api.PageFact, error) {
	var pages []api.PageFact
	for _, p := range s.Facts {
		if p.Name == name {
			pages = append(pages, p)
		}
	}
	sort.SliceStable(pages, func(i, j int) bool { return pages[i].PageNo < pages[j].PageNo })
	return pages, nil
}

func (s *Static) AllPages(_ context.Context) ([]api.PageFact, error) {
	pages := append([]api.PageFact(nil), s.Facts...)
	sort.SliceStable(pages, func(i, j int) bool {
		if pages[i].Name != pages[j].Name {
			return pages[i].Name < pages[j].Name
		}
		return pages[i].Path < pages[j].Path
	})
	return pages, nil
}

func (s *Static) Tables(context.Context) ([]string, error) {
	return append([]string(nil), s.TableNames...), nil
}

func (s *Static) Indices(context.Context) ([]api.Index, error) {
	return append([]api.Index(nil), s.IndexDefs...), nil
}

func (s *Static) IndexList(_ context.Context, table string) ([]api.IndexListEntry, error) {
	return append([]api.IndexListEntry(nil), s.IndexLists[table]...), nil
}

func (s *Static) HasObject(_ context.Context, name string) (bool, error) {
	for _, h := range s.Hidden {
		if h == name {
			return false, nil
		}
	}
	if name == s.schemaName() {
		return false, nil
	}
	for _, t := range s.TableNames {
		if t == name {
			return true, nil
		}
	}
	for _, idx := range s.IndexDefs {
		if idx.Name == name {
			return true, nil
		}
	}
	for _, entries := range s.IndexLists {
		for _, e := range entries {
			if e.Name == name {
				return true, nil
			}
		}
	}
	return false, nil
}

func (s *Static) SchemaTable(context.Context) (string, error) {
	return s.schemaName(), nil
}

func (s *Static) ItemCount(context.Context) (uint64, error) {
	return uint64(len(s.TableNames) + len(s.IndexDefs)), nil
}

func (s *Static) schemaName() string {
	if s.Schema == "" {
		return "sqlite_schema"
	}
	return s.Schema
}
