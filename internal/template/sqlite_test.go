package template

import (
	"context"
	"path/filepath"
	"testing"

	"dirplan/internal/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLiteStore(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "templates.db")
	store, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()

	doc, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, doc)

	require.NoError(t, Put(ctx, store, "site", sampleTree()))
	require.NoError(t, Put(ctx, store, "blog", core.Tree{core.NewNode("posts")}))

	tree, err := Get(ctx, store, "site")
	require.NoError(t, err)
	assert.Equal(t, core.Render(sampleTree()), core.Render(tree))

	require.NoError(t, Remove(ctx, store, "site"))
	names, err := Names(ctx, store)
	require.NoError(t, err)
	assert.Equal(t, []string{"blog"}, names)

	var rows int
	require.NoError(t, store.db.QueryRow(`SELECT COUNT(*) FROM template_document`).Scan(&rows))
	assert.Equal(t, 1, rows)
}

func TestSQLiteStore_Reopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "templates.db")
	ctx := context.Background()

	store, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	require.NoError(t, Put(ctx, store, "site", sampleTree()))
	require.NoError(t, store.Close())

	reopened, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	defer reopened.Close()

	names, err := Names(ctx, reopened)
	require.NoError(t, err)
	assert.Equal(t, []string{"site"}, names)
}
