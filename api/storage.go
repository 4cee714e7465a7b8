package api

// PageType is the role a page plays in its b-tree.
type PageType string

const (
	PageInternal PageType = "internal"
	PageLeaf     PageType = "leaf"
	PageOverflow PageType = "overflow"
)

// PageFact describes one physical page of the database file.
// It mirrors a row of SQLite's dbstat virtual table.
type PageFact struct {
	// Name of the table or index owning the page.
	Name string `json:"name"`
	// Path from the root page to this page. Each tree level adds four
	// characters ("/000/001/"); overflow pages carry a "+NNNNNN" suffix with
	// their position in the chain.
	Path       string   `json:"path"`
	PageNo     uint32   `json:"pageno"`
	PageType   PageType `json:"pagetype"`
	CellCount  uint64   `json:"ncell"` // 0 for overflow pages
	Payload    uint64   `json:"payload"`
	Unused     uint64   `json:"unused"`
	MaxPayload uint64   `json:"mx_payload"`
	Offset     int64    `json:"pgoffset"`
	// Size is the number of bytes the page occupies on disk. It is smaller
	// than the page size when the storage layer compresses pages.
	Size uint64 `json:"pgsize"`
}

// Index names an index and the table it belongs to.
type Index struct {
	Name  string `json:"name"`
	Table string `json:"tbl_name"`
}

// IndexListEntry is one row of PRAGMA index_list.
type IndexListEntry struct {
	Seq    int    `json:"seq"`
	Name   string `json:"name"`
	Unique bool   `json:"unique"`
	// Origin is "c" (CREATE INDEX), "u" (UNIQUE constraint) or "pk"
	// (PRIMARY KEY constraint).
	Origin  string `json:"origin"`
	Partial bool   `json:"partial"`
}

// RawObjectStats holds the counters collected for one table or index.
// Rows are computed once per analysis and never modified afterwards.
type RawObjectStats struct {
	Name           string `json:"name"`
	Table          string `json:"tblname"`
	IsIndex        bool   `json:"is_index"`
	IsWithoutRowid bool   `json:"is_without_rowid"`

	Entries     uint64 `json:"nentry"`
	LeafEntries uint64 `json:"leaf_entries"`
	Depth       uint64 `json:"depth"`

	Payload         uint64 `json:"payload"`
	OverflowPayload uint64 `json:"ovfl_payload"`
	OverflowEntries uint64 `json:"ovfl_cnt"` // entries that spill onto overflow pages
	MaxPayload      uint64 `json:"mx_payload"`

	InternalPages uint64 `json:"int_pages"`
	LeafPages     uint64 `json:"leaf_pages"`
	OverflowPages uint64 `json:"ovfl_pages"`

	InternalUnused uint64 `json:"int_unused"`
	LeafUnused     uint64 `json:"leaf_unused"`
	OverflowUnused uint64 `json:"ovfl_unused"`

	Gaps     uint64 `json:"gap_cnt"`
	DiskSize uint64 `json:"compressed_size"`
}

// TotalPages is the number of pages of every type used by the object.
func (r RawObjectStats) TotalPages() uint64 {
	return r.InternalPages + r.LeafPages + r.OverflowPages
}

// StorageMetrics summarises the space used by a set of tables and indices.
type StorageMetrics struct {
	Entries         uint64 `json:"nentry"`
	Payload         uint64 `json:"payload"`
	OverflowPayload uint64 `json:"ovfl_payload"`
	MaxPayload      uint64 `json:"mx_payload"`
	OverflowEntries uint64 `json:"ovfl_cnt"`
	LeafPages       uint64 `json:"leaf_pages"`
	InternalPages   uint64 `json:"int_pages"`
	OverflowPages   uint64 `json:"ovfl_pages"`
	LeafUnused      uint64 `json:"leaf_unused"`
	InternalUnused  uint64 `json:"int_unused"`
	OverflowUnused  uint64 `json:"ovfl_unused"`
	Gaps            uint64 `json:"gap_cnt"`
	DiskSize        uint64 `json:"compressed_size"`
	Depth           uint64 `json:"depth"`
	// Count is the number of tables and indices that were aggregated.
	Count uint64 `json:"cnt"`

	TotalPages         uint64  `json:"total_pages"`
	TotalPagesPercent  float64 `json:"total_pages_percent"`
	Storage            uint64  `json:"storage"`
	IsCompressed       bool    `json:"is_compressed"`
	CompressedOverhead uint64  `json:"compressed_overhead"`
	PayloadPercent     float64 `json:"payload_percent"`
	TotalUnused        uint64  `json:"total_unused"`
	TotalMetadata      int64   `json:"total_metadata"`
	MetadataPercent    float64 `json:"metadata_percent"`
	AveragePayload     float64 `json:"average_payload"`
	AverageUnused      float64 `json:"average_unused"`
	AverageMetadata    float64 `json:"average_metadata"`
	OverflowPercent    float64 `json:"ovfl_percent"`
	Fragmentation      float64 `json:"fragmentation"`

	InternalUnusedPercent float64 `json:"int_unused_percent"`
	OverflowUnusedPercent float64 `json:"ovfl_unused_percent"`
	LeafUnusedPercent     float64 `json:"leaf_unused_percent"`
	TotalUnusedPercent    float64 `json:"total_unused_percent"`
}

// Field is one named value of a StorageMetrics.
type Field struct {
	Key   string
	Value any
}

// Fields returns the metrics as an ordered list of key/value pairs, using
// the same keys as the JSON encoding.
func (m StorageMetrics) Fields() []Field {
	return []Field{
		{"nentry", m.Entries},
		{"payload", m.Payload},
		{"ovfl_payload", m.OverflowPayload},
		{"mx_payload", m.MaxPayload},
		{"ovfl_cnt", m.OverflowEntries},
		{"leaf_pages", m.LeafPages},
		{"int_pages", m.InternalPages},
		{"ovfl_pages", m.OverflowPages},
		{"leaf_unused", m.LeafUnused},
		{"int_unused", m.InternalUnused},
		{"ovfl_unused", m.OverflowUnused},
		{"gap_cnt", m.Gaps},
		{"compressed_size", m.DiskSize},
		{"depth", m.Depth},
		{"cnt", m.Count},
		{"total_pages", m.TotalPages},
		{"total_pages_percent", m.TotalPagesPercent},
		{"storage", m.Storage},
		{"is_compressed", m.IsCompressed},
		{"compressed_overhead", m.CompressedOverhead},
		{"payload_percent", m.PayloadPercent},
		{"total_unused", m.TotalUnused},
		{"total_metadata", m.TotalMetadata},
		{"metadata_percent", m.MetadataPercent},
		{"average_payload", m.AveragePayload},
		{"average_unused", m.AverageUnused},
		{"average_metadata", m.AverageMetadata},
		{"ovfl_percent", m.OverflowPercent},
		{"fragmentation", m.Fragmentation},
		{"int_unused_percent", m.InternalUnusedPercent},
		{"ovfl_unused_percent", m.OverflowUnusedPercent},
		{"leaf_unused_percent", m.LeafUnusedPercent},
		{"total_unused_percent", m.TotalUnusedPercent},
	}
}

// Map returns the metrics as a generic map, suitable for JSON encoders and
// JSONPath queries.
func (m StorageMetrics) Map() map[string]any {
	fields := m.Fields()
	out := make(map[string]any, len(fields))
	for _, f := range fields {
		out[f.Key] = f.Value
	}
	return out
}
