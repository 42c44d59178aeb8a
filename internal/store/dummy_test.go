package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDummy_ReportsAbsence(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	d := NewDummy()

	require.NoError(t, d.BeginBatch(ctx))
	require.NoError(t, d.AddClass(ctx, &Class{Name: "A"}))
	require.NoError(t, d.Sync(ctx))

	c, err := d.GetClass(ctx, "", "A")
	require.NoError(t, err)
	assert.Nil(t, c)

	pos, err := d.ClassPosition(ctx, "", "A")
	require.NoError(t, err)
	assert.Nil(t, pos)

	names, err := d.AllClassNames(ctx)
	require.NoError(t, err)
	assert.NotNil(t, names)
	assert.Empty(t, names)

	hits, err := d.Search(ctx, []string{"abc"})
	require.NoError(t, err)
	assert.Empty(t, hits)
}
