package analyzer

import (
	"context"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentic-research/spaceused/api"
	"github.com/agentic-research/spaceused/internal/header"
	"github.com/agentic-research/spaceused/internal/metrics"
	"github.com/agentic-research/spaceused/internal/source"
)

func headerBytes(pageSize uint16, pageCount, freelist, largestRoot uint32) []byte {
	b := make([]byte, header.Size)
	copy(b, header.Magic)
	binary.BigEndian.PutUint16(b[16:], pageSize)
	b[18], b[19] = 1, 1
	b[21], b[22], b[23] = 64, 32, 32
	binary.BigEndian.PutUint32(b[28:], pageCount)
	binary.BigEndian.PutUint32(b[36:], freelist)
	binary.BigEndian.PutUint32(b[44:], 4)
	binary.BigEndian.PutUint32(b[52:], largestRoot)
	binary.BigEndian.PutUint32(b[56:], 1)
	return b
}

func testHeader(t *testing.T, pageCount, freelist uint32) *header.Header {
	t.Helper()
	h, err := header.Parse(headerBytes(4096, pageCount, freelist, 0))
	require.NoError(t, err)
	return h
}

func page(name, path string, no uint32, typ api.PageType, cells, payload, unused uint64) api.PageFact {
	return api.PageFact{
		Name: name, Path: path, PageNo: no, PageType: typ,
		CellCount: cells, Payload: payload, Unused: unused, MaxPayload: payload,
		Offset: int64(no-1) * 4096, Size: 4096,
	}
}

func testSource() *source.Static {
	return &source.Static{
		TableNames: []string{"t", "e", "w"},
		IndexDefs:  []api.Index{{Name: "t_idx", Table: "t"}},
		IndexLists: map[string][]api.IndexListEntry{
			"t": {{Name: "t_idx", Origin: "c"}},
			"w": {{Name: "sqlite_autoindex_w_1", Origin: "pk", Unique: true}},
		},
		Hidden: []string{"sqlite_autoindex_w_1"},
		Facts: []api.PageFact{
			page("sqlite_schema", "/", 1, api.PageLeaf, 4, 600, 3000),
			page("t", "/", 2, api.PageInternal, 2, 0, 4000),
			page("t", "/000/", 3, api.PageLeaf, 10, 1000, 2000),
			page("t", "/001/", 4, api.PageLeaf, 10, 1200, 1800),
			page("t", "/001+000000", 5, api.PageOverflow, 0, 4092, 0),
			page("t", "/002/", 6, api.PageLeaf, 5, 300, 3500),
			page("t_idx", "/", 7, api.PageLeaf, 25, 250, 3600),
			page("w", "/", 8, api.PageLeaf, 3, 90, 3900),
		},
	}
}

func newTestSession(t *testing.T, src source.Source, hdr *header.Header, opts ...Option) *Session {
	t.Helper()
	s, err := New(context.Background(), hdr, src, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSession_RawStats(t *testing.T) {
	s := newTestSession(t, testSource(), testHeader(t, 10, 1))

	rows := s.RawStats()
	require.Len(t, rows, 5) // schema, t, e, w, t_idx
	assert.Equal(t, "sqlite_schema", rows[0].Name)

	tbl, err := s.Row("t")
	require.NoError(t, err)
	assert.Equal(t, "t", tbl.Table)
	assert.False(t, tbl.IsIndex)
	assert.Equal(t, uint64(27), tbl.Entries)
	assert.Equal(t, uint64(25), tbl.LeafEntries)
	assert.Equal(t, uint64(1), tbl.OverflowEntries)
	assert.Equal(t, uint64(2), tbl.Depth)
	assert.Equal(t, uint64(0), tbl.Gaps)

	idx, err := s.Row("t_idx")
	require.NoError(t, err)
	assert.True(t, idx.IsIndex)
	assert.Equal(t, "t", idx.Table)

	empty, err := s.Row("e")
	require.NoError(t, err)
	assert.Equal(t, uint64(0), empty.TotalPages())

	_, err = s.Row("nope")
	require.ErrorIs(t, err, ErrUnknownObject)
}

func TestSession_WithoutRowid(t *testing.T) {
	s := newTestSession(t, testSource(), testHeader(t, 10, 1))

	ok, err := s.IsWithoutRowid("w")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.IsWithoutRowid("t")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = s.IsWithoutRowid("missing")
	require.ErrorIs(t, err, ErrUnknownObject)
}

func TestSession_TableStats(t *testing.T) {
	s := newTestSession(t, testSource(), testHeader(t, 10, 1))

	withIdx, err := s.TableStats("t", false)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), withIdx.Count)
	assert.Equal(t, uint64(6), withIdx.TotalPages)
	assert.Equal(t, uint64(27+25), withIdx.Entries)

	alone, err := s.TableStats("t", true)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), alone.Count)
	assert.Equal(t, uint64(5), alone.TotalPages)
	assert.Equal(t, uint64(5*4096), alone.Storage)

	empty, err := s.TableStats("e", false)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), empty.Count)
	assert.Equal(t, uint64(0), empty.TotalPages)
	assert.Equal(t, 0.0, empty.AveragePayload)

	_, err = s.TableStats("nope", false)
	require.ErrorIs(t, err, ErrUnknownObject)
	_, err = s.TableStats("t_idx", false)
	require.ErrorIs(t, err, ErrUnknownObject)
}

func TestSession_IndexStats(t *testing.T) {
	s := newTestSession(t, testSource(), testHeader(t, 10, 1))

	m, err := s.IndexStats("t_idx")
	require.NoError(t, err)
	assert.Equal(t, uint64(25), m.Entries)
	assert.Equal(t, uint64(1), m.TotalPages)

	_, err = s.IndexStats("t")
	require.ErrorIs(t, err, ErrUnknownObject)

	all, err := s.IndicesStats()
	require.NoError(t, err)
	assert.Equal(t, m, all)

	n, err := s.IndexPageCount("t_idx")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), n)
}

func TestSession_NoIndices(t *testing.T) {
	src := testSource()
	src.IndexDefs = nil
	s := newTestSession(t, src, testHeader(t, 10, 1))

	_, err := s.IndicesStats()
	require.ErrorIs(t, err, ErrNoIndices)
}

func TestSession_GlobalStats(t *testing.T) {
	s := newTestSession(t, testSource(), testHeader(t, 10, 1))

	all := s.GlobalStats(false)
	assert.Equal(t, uint64(5), all.Count)
	assert.Equal(t, uint64(8), all.TotalPages)
	assert.InDelta(t, 80.0, all.TotalPagesPercent, 1e-9)

	tablesOnly := s.GlobalStats(true)
	assert.Equal(t, uint64(4), tablesOnly.Count)
	assert.Equal(t, uint64(7), tablesOnly.TotalPages)

	// Per-table aggregates add up to the global one.
	var pages, payload uint64
	for _, name := range append([]string{s.SchemaTable()}, s.Tables()...) {
		m, err := s.TableStats(name, false)
		require.NoError(t, err)
		pages += m.TotalPages
		payload += m.Payload
	}
	assert.Equal(t, all.TotalPages, pages)
	assert.Equal(t, all.Payload, payload)
}

func TestSession_DatabaseLevel(t *testing.T) {
	s := newTestSession(t, testSource(), testHeader(t, 10, 1))

	assert.Equal(t, uint64(4096), s.PageSize())
	assert.Equal(t, uint64(10), s.PageCount())
	assert.Equal(t, uint64(40960), s.LogicalFileSize())
	assert.Equal(t, uint64(8), s.InUsePages())
	assert.InDelta(t, 80.0, s.InUsePercent(), 1e-9)
	assert.Equal(t, uint64(0), s.AutovacuumPageCount())
	assert.Equal(t, int64(2), s.CalculatedFreePages())
	assert.Equal(t, uint64(9), s.CalculatedPageCount())
	assert.Equal(t, uint64(1000+1200+4092+300+90), s.PayloadSize())
	assert.Equal(t, 3+1, s.TableCount())
	assert.Equal(t, 1, s.IndexCount())
	assert.Equal(t, 0, s.AutoIndexCount())
	assert.Equal(t, 1, s.ManualIndexCount())
	assert.Equal(t, map[string]uint64{"sqlite_schema": 1, "t": 6, "e": 0, "w": 1}, s.TableSpaceUsage())

	n, err := s.TablePageCount("t", true)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), n)

	_, err = s.FileSize()
	require.Error(t, err, "no backing file")
}

func TestSession_Autovacuum(t *testing.T) {
	h, err := header.Parse(headerBytes(4096, 1000, 0, 3))
	require.NoError(t, err)
	s := newTestSession(t, testSource(), h)

	assert.Equal(t, uint64(2), s.AutovacuumPageCount())
	assert.Equal(t, int64(1000-8-2), s.CalculatedFreePages())
}

func TestSession_IsCompressed(t *testing.T) {
	s := newTestSession(t, testSource(), testHeader(t, 10, 1))
	assert.False(t, s.IsCompressed())

	src := testSource()
	for i := range src.Facts {
		if src.Facts[i].Name == "w" {
			src.Facts[i].Size = 1200
		}
	}
	c := newTestSession(t, src, testHeader(t, 10, 1))
	assert.True(t, c.IsCompressed())
	assert.True(t, c.IsCompressed(), "memoised value is stable")

	// Only the sampled table decides.
	tm, err := c.TableStats("t", false)
	require.NoError(t, err)
	assert.False(t, tm.IsCompressed)
}

func TestSession_FileSize(t *testing.T) {
	fsys := memfs.New()
	require.NoError(t, util.WriteFile(fsys, "app.db", make([]byte, 10*4096), 0o644))

	s := newTestSession(t, testSource(), testHeader(t, 10, 1), WithFile(fsys, "app.db"), WithWorkers(2))
	size, err := s.FileSize()
	require.NoError(t, err)
	assert.Equal(t, int64(40960), size)
	assert.Equal(t, uint64(size), s.LogicalFileSize())
}

func TestSession_Dump(t *testing.T) {
	s := newTestSession(t, testSource(), testHeader(t, 10, 1))

	lines, err := s.Dump(context.Background())
	require.NoError(t, err)
	require.Len(t, lines, 5+3)
	assert.Equal(t, "BEGIN TRANSACTION;", lines[0])
	assert.Contains(t, lines[3], "'t'")
}

func TestSession_Aggregate(t *testing.T) {
	s := newTestSession(t, testSource(), testHeader(t, 10, 1))
	m := s.Aggregate(metrics.Named("w"))
	assert.Equal(t, uint64(3), m.Entries, "WITHOUT ROWID uses leaf entries")
}

type failingSource struct {
	*source.Static
}

var errBroken = errors.New("broken page source")

func (f failingSource) Pages(ctx context.Context, name string) ([]api.PageFact, error) {
	if name == "w" {
		return nil, errBroken
	}
	return f.Static.Pages(ctx, name)
}

func TestSession_SourceFailureIsFatal(t *testing.T) {
	_, err := New(context.Background(), testHeader(t, 10, 1), failingSource{testSource()}, WithWorkers(1))
	require.ErrorIs(t, err, errBroken)
}
