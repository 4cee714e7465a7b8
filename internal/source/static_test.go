package source

import (
	"context"
	"testing"

	"github.com/agentic-research/spaceused/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatic(t *testing.T) {
	ctx := context.Background()
	s := &Static{
		TableNames: []string{"t"},
		IndexDefs:  []api.Index{{Name: "t_idx", Table: "t"}},
		IndexLists: map[string][]api.IndexListEntry{
			"t": {{Name: "t_idx", Origin: "c"}, {Name: "pk_hidden", Origin: "pk"}},
		},
		Hidden: []string{"pk_hidden"},
		Facts: []api.PageFact{
			{Name: "t", PageNo: 9, PageType: api.PageLeaf},
			{Name: "t_idx", PageNo: 3, PageType: api.PageLeaf},
			{Name: "t", PageNo: 2, PageType: api.PageInternal, Path: "/"},
		},
	}

	pages, err := s.Pages(ctx, "t")
	require.NoError(t, err)
	require.Len(t, pages, 2)
	assert.Equal(t, uint32(2), pages[0].PageNo)
	assert.Equal(t, uint32(9), pages[1].PageNo)

	all, err := s.AllPages(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)
	assert.Equal(t, "t", all[0].Name)

	ok, err := s.HasObject(ctx, "t_idx")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.HasObject(ctx, "pk_hidden")
	require.NoError(t, err)
	assert.False(t, ok)

	schema, err := s.SchemaTable(ctx)
	require.NoError(t, err)
	assert.Equal(t, "sqlite_schema", schema)
}
