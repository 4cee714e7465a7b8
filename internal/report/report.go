// Package report assembles the results of an analysis into a document that
// can be rendered as text, as JSON, or narrowed with a JSONPath query.
package report

import (
	"fmt"
	"sort"

	"github.com/agentic-research/spaceused/api"
	"github.com/agentic-research/spaceused/internal/analyzer"
)

// Options control which objects the report covers.
type Options struct {
	// Title names the database in the text report.
	Title string
	// ExcludeIndices reports tables without their indices.
	ExcludeIndices bool
	// Tables restricts the per-table sections. Empty means all tables.
	Tables []string
}

// Summary holds the whole-file figures.
type Summary struct {
	PageSize            uint64
	PageCount           uint64
	InUsePages          uint64
	InUsePercent        float64
	FreelistCount       uint64
	AutovacuumPages     uint64
	CalculatedFreePages int64
	CalculatedPageCount uint64
	LogicalFileSize     uint64
	// FileSize is nil when the session has no backing file.
	FileSize         *int64
	PayloadSize      uint64
	IsCompressed     bool
	ItemCount        uint64
	TableCount       int
	IndexCount       int
	AutoIndexCount   int
	ManualIndexCount int
	VacuumMode       string
	Encoding         string
	HeaderValid      bool
}

// Object is the report section of one table or index.
type Object struct {
	Name    string
	IsIndex bool
	// Pages is the number of pages used, counting the indices of a table
	// unless indices are excluded.
	Pages   uint64
	Metrics api.StorageMetrics
	// TableOnly is the table without its indices. It is set only for
	// tables that have indices when indices are included.
	TableOnly *api.StorageMetrics
	Indices   []Object
}

// Report is the full analysis document.
type Report struct {
	Title   string
	Summary Summary
	Global  api.StorageMetrics
	// TablesOnly aggregates every table with no index.
	TablesOnly api.StorageMetrics
	// AllIndices is nil when the database has no index.
	AllIndices *api.StorageMetrics
	Objects    []Object
}

// Build collects every figure of the report from s.
func Build(s *analyzer.Session, opts Options) (*Report, error) {
	r := &Report{
		Title:      opts.Title,
		Summary:    Summarize(s),
		Global:     s.GlobalStats(opts.ExcludeIndices),
		TablesOnly: s.GlobalStats(true),
	}
	if idx, err := s.IndicesStats(); err == nil {
		r.AllIndices = &idx
	}

	byTable := make(map[string][]api.Index)
	for _, idx := range s.Indices() {
		byTable[idx.Table] = append(byTable[idx.Table], idx)
	}

	for _, name := range selectTables(s, opts.Tables) {
		obj, err := tableObject(s, name, byTable[name], opts.ExcludeIndices)
		if err != nil {
			return nil, err
		}
		r.Objects = append(r.Objects, obj)
	}
	sort.SliceStable(r.Objects, func(i, j int) bool {
		if r.Objects[i].Pages != r.Objects[j].Pages {
			return r.Objects[i].Pages > r.Objects[j].Pages
		}
		return r.Objects[i].Name < r.Objects[j].Name
	})
	return r, nil
}

// Summarize collects the whole-file figures of s.
func Summarize(s *analyzer.Session) Summary {
	h := s.Header()
	sum := Summary{
		PageSize:            s.PageSize(),
		PageCount:           s.PageCount(),
		InUsePages:          s.InUsePages(),
		InUsePercent:        s.InUsePercent(),
		FreelistCount:       s.FreelistCount(),
		AutovacuumPages:     s.AutovacuumPageCount(),
		CalculatedFreePages: s.CalculatedFreePages(),
		CalculatedPageCount: s.CalculatedPageCount(),
		LogicalFileSize:     s.LogicalFileSize(),
		PayloadSize:         s.PayloadSize(),
		IsCompressed:        s.IsCompressed(),
		ItemCount:           s.ItemCount(),
		TableCount:          s.TableCount(),
		IndexCount:          s.IndexCount(),
		AutoIndexCount:      s.AutoIndexCount(),
		ManualIndexCount:    s.ManualIndexCount(),
		VacuumMode:          h.AutoVacuum().String(),
		Encoding:            h.TextEncoding.String(),
		HeaderValid:         h.SeemsValid(),
	}
	if size, err := s.FileSize(); err == nil {
		sum.FileSize = &size
	}
	return sum
}

func selectTables(s *analyzer.Session, want []string) []string {
	if len(want) > 0 {
		return want
	}
	return append([]string{s.SchemaTable()}, s.Tables()...)
}

func tableObject(s *analyzer.Session, name string, indices []api.Index, excludeIndices bool) (Object, error) {
	m, err := s.TableStats(name, excludeIndices)
	if err != nil {
		return Object{}, fmt.Errorf("report table %s: %w", name, err)
	}
	obj := Object{Name: name, Pages: m.TotalPages, Metrics: m}
	if excludeIndices || len(indices) == 0 {
		return obj, nil
	}

	only, err := s.TableStats(name, true)
	if err != nil {
		return Object{}, fmt.Errorf("report table %s: %w", name, err)
	}
	obj.TableOnly = &only
	for _, idx := range indices {
		im, err := s.IndexStats(idx.Name)
		if err != nil {
			return Object{}, fmt.Errorf("report index %s: %w", idx.Name, err)
		}
		obj.Indices = append(obj.Indices, Object{Name: idx.Name, IsIndex: true, Pages: im.TotalPages, Metrics: im})
	}
	return obj, nil
}

// Map returns the report as nested generic maps and slices, the shape the
// JSON encoder and JSONPath queries work on.
func (r *Report) Map() map[string]any {
	out := map[string]any{
		"summary":     r.Summary.Map(),
		"global":      r.Global.Map(),
		"tables_only": r.TablesOnly.Map(),
	}
	if r.Title != "" {
		out["database"] = r.Title
	}
	if r.AllIndices != nil {
		out["indices"] = r.AllIndices.Map()
	}
	objs := make([]any, 0, len(r.Objects))
	for _, o := range r.Objects {
		objs = append(objs, o.Map())
	}
	out["tables"] = objs
	return out
}

// Map returns the summary keyed by snake_case names.
func (s Summary) Map() map[string]any {
	m := map[string]any{
		"page_size":             s.PageSize,
		"page_count":            s.PageCount,
		"in_use_pages":          s.InUsePages,
		"in_use_percent":        s.InUsePercent,
		"freelist_count":        s.FreelistCount,
		"autovacuum_page_count": s.AutovacuumPages,
		"calculated_free_pages": s.CalculatedFreePages,
		"calculated_page_count": s.CalculatedPageCount,
		"logical_file_size":     s.LogicalFileSize,
		"payload_size":          s.PayloadSize,
		"is_compressed":         s.IsCompressed,
		"item_count":            s.ItemCount,
		"table_count":           s.TableCount,
		"index_count":           s.IndexCount,
		"auto_index_count":      s.AutoIndexCount,
		"manual_index_count":    s.ManualIndexCount,
		"vacuum_mode":           s.VacuumMode,
		"text_encoding":         s.Encoding,
		"header_valid":          s.HeaderValid,
	}
	if s.FileSize != nil {
		m["file_size"] = *s.FileSize
	}
	return m
}

// Map returns the object section with its metrics and indices.
func (o Object) Map() map[string]any {
	m := map[string]any{
		"name":     o.Name,
		"is_index": o.IsIndex,
		"pages":    o.Pages,
		"metrics":  o.Metrics.Map(),
	}
	if o.TableOnly != nil {
		m["table_only"] = o.TableOnly.Map()
	}
	if len(o.Indices) > 0 {
		idx := make([]any, 0, len(o.Indices))
		for _, i := range o.Indices {
			idx = append(idx, i.Map())
		}
		m["indices"] = idx
	}
	return m
}
