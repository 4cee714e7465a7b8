package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/agentic-research/spaceused/api"
	"github.com/agentic-research/spaceused/internal/metrics"
)

const labelWidth = 50

type textWriter struct {
	b strings.Builder
}

func (t *textWriter) heading(format string, args ...any) {
	if t.b.Len() > 0 {
		t.b.WriteString("\n")
	}
	fmt.Fprintf(&t.b, "*** "+format+" ", args...)
	t.b.WriteString(strings.Repeat("*", max(3, 76-t.lastLineLen())))
	t.b.WriteString("\n\n")
}

func (t *textWriter) lastLineLen() int {
	s := t.b.String()
	return len(s) - strings.LastIndexByte(s, '\n') - 1
}

// line writes "label....... value".
func (t *textWriter) line(label, value string) {
	dots := max(1, labelWidth-len(label))
	fmt.Fprintf(&t.b, "%s%s %s\n", label, strings.Repeat(".", dots), value)
}

func (t *textWriter) count(label string, n uint64) {
	t.line(label, humanize.Comma(int64(n)))
}

func (t *textWriter) countPct(label string, n uint64, p float64) {
	t.line(label, fmt.Sprintf("%-12s %s", humanize.Comma(int64(n)), percent(p)))
}

func (t *textWriter) bytes(label string, n uint64) {
	t.line(label, fmt.Sprintf("%-12s (%s)", humanize.Comma(int64(n)), humanize.IBytes(n)))
}

func percent(p float64) string {
	return humanize.FormatFloat("#,###.##", p) + "%"
}

// WriteText writes the report in the layout of sqlite3_analyzer.
func (r *Report) WriteText(w io.Writer) error {
	var t textWriter
	s := r.Summary

	title := r.Title
	if title == "" {
		title = "database"
	}
	t.b.WriteString("/** Disk-Space Utilization Report For " + title + "\n\n")
	t.line("Page size in bytes", humanize.Comma(int64(s.PageSize)))
	t.count("Pages in the whole file (measured)", s.PageCount)
	t.count("Pages in the whole file (calculated)", s.CalculatedPageCount)
	t.countPct("Pages that store data", s.InUsePages, s.InUsePercent)
	t.countPct("Pages on the freelist (per header)", s.FreelistCount,
		pct(s.FreelistCount, s.PageCount))
	t.line("Pages on the freelist (calculated)", humanize.Comma(s.CalculatedFreePages))
	t.countPct("Pages of auto-vacuum overhead", s.AutovacuumPages,
		pct(s.AutovacuumPages, s.PageCount))
	t.line("Auto-vacuum mode", s.VacuumMode)
	t.line("Text encoding", s.Encoding)
	t.count("Number of tables in the database", uint64(s.TableCount))
	t.count("Number of indices", uint64(s.IndexCount))
	t.count("Number of defined indices", uint64(s.ManualIndexCount))
	t.count("Number of implied indices", uint64(s.AutoIndexCount))
	t.count("Number of schema entries", s.ItemCount)
	if s.FileSize != nil {
		t.bytes("Size of the file in bytes", uint64(*s.FileSize))
	}
	t.bytes("Size of the file (pages x page size)", s.LogicalFileSize)
	t.bytes("Bytes of user payload stored", s.PayloadSize)
	if s.IsCompressed {
		t.line("Pages are compressed", "yes")
	}
	if !s.HeaderValid {
		t.line("Header seems valid", "no")
	}

	t.heading("Page counts for all tables with their indices")
	for _, o := range r.Objects {
		t.countPct(strings.ToUpper(o.Name), o.Pages, pct(o.Pages, s.PageCount))
	}

	t.heading("All tables and indices")
	writeMetrics(&t, r.Global)
	t.heading("All tables")
	writeMetrics(&t, r.TablesOnly)
	if r.AllIndices != nil {
		t.heading("All indices")
		writeMetrics(&t, *r.AllIndices)
	}

	for _, o := range r.Objects {
		if o.TableOnly == nil {
			t.heading("Table %s", strings.ToUpper(o.Name))
			writeMetrics(&t, o.Metrics)
			continue
		}
		t.heading("Table %s and all its indices", strings.ToUpper(o.Name))
		writeMetrics(&t, o.Metrics)
		t.heading("Table %s w/o any indices", strings.ToUpper(o.Name))
		writeMetrics(&t, *o.TableOnly)
		for _, idx := range o.Indices {
			t.heading("Index %s of table %s", strings.ToUpper(idx.Name), strings.ToUpper(o.Name))
			writeMetrics(&t, idx.Metrics)
		}
	}

	_, err := io.WriteString(w, t.b.String())
	return err
}

// WriteMetrics writes one metrics section under the given heading.
func WriteMetrics(w io.Writer, title string, m api.StorageMetrics) error {
	var t textWriter
	t.heading("%s", title)
	writeMetrics(&t, m)
	_, err := io.WriteString(w, t.b.String())
	return err
}

func writeMetrics(t *textWriter, m api.StorageMetrics) {
	t.line("Percentage of total database", percent(m.TotalPagesPercent))
	t.count("Number of entries", m.Entries)
	t.bytes("Bytes of storage consumed", m.Storage)
	t.countPct("Bytes of payload", m.Payload, m.PayloadPercent)
	t.line("Bytes of metadata", fmt.Sprintf("%-12s %s",
		humanize.Comma(m.TotalMetadata), percent(m.MetadataPercent)))
	if m.Count > 1 {
		t.count("Tables and indices combined", m.Count)
	}
	t.count("B-tree depth", m.Depth)
	t.line("Average payload per entry", humanize.FormatFloat("#,###.##", m.AveragePayload))
	t.line("Average unused bytes per entry", humanize.FormatFloat("#,###.##", m.AverageUnused))
	t.line("Average metadata per entry", humanize.FormatFloat("#,###.##", m.AverageMetadata))
	t.count("Maximum payload per entry", m.MaxPayload)
	t.countPct("Entries that use overflow", m.OverflowEntries, m.OverflowPercent)
	t.count("Index pages used", m.InternalPages)
	t.count("Primary pages used", m.LeafPages)
	t.count("Overflow pages used", m.OverflowPages)
	t.count("Total pages used", m.TotalPages)
	t.countPct("Unused bytes on index pages", m.InternalUnused, m.InternalUnusedPercent)
	t.countPct("Unused bytes on primary pages", m.LeafUnused, m.LeafUnusedPercent)
	t.countPct("Unused bytes on overflow pages", m.OverflowUnused, m.OverflowUnusedPercent)
	t.countPct("Unused bytes on all pages", m.TotalUnused, m.TotalUnusedPercent)
	t.line("Fragmentation", percent(m.Fragmentation))
	if m.IsCompressed {
		t.bytes("Bytes used after compression", m.DiskSize)
		t.count("Compression overhead", m.CompressedOverhead)
	}
}

func pct(n, total uint64) float64 {
	return metrics.Percentage(float64(n), float64(total))
}
