package database

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"

	"dirplan/internal/core"
	"dirplan/internal/template"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestRepository connects to DIRPLAN_TEST_DATABASE_URL and empties the
// templates table. Tests are skipped when the variable is unset.
func newTestRepository(t *testing.T) *TemplateRepository {
	t.Helper()
	url := os.Getenv("DIRPLAN_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("DIRPLAN_TEST_DATABASE_URL not set")
	}
	ctx := context.Background()

	db, err := New(ctx, url)
	require.NoError(t, err)
	t.Cleanup(db.Close)

	require.NoError(t, db.RunMigrations(ctx))
	// Running migrations twice is a no-op.
	require.NoError(t, db.RunMigrations(ctx))

	_, err = db.Pool.Exec(ctx, "DELETE FROM templates")
	require.NoError(t, err)
	return NewTemplateRepository(db)
}

func TestTemplateRepository_RoundTrip(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	doc, err := repo.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, doc)

	tree := core.Tree{core.NewNode("src", core.NewNode("css"), core.NewNode("js"))}
	require.NoError(t, template.Put(ctx, repo, "web", tree))
	require.NoError(t, template.Put(ctx, repo, "web copy", tree))
	require.NoError(t, template.Put(ctx, repo, "empty", core.Tree{core.NewNode("only")}))

	got, err := template.Get(ctx, repo, "web")
	require.NoError(t, err)
	assert.Equal(t, core.RenderText(tree), core.RenderText(got))

	dupes, err := repo.GetByFingerprint(ctx, template.Fingerprint(tree))
	require.NoError(t, err)
	require.Len(t, dupes, 2)
	assert.Equal(t, "web", dupes[0].Name)

	stats, err := repo.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.TotalTemplates)
	assert.Equal(t, int64(2), stats.DistinctStructures)
	assert.NotNil(t, stats.LastUpdated)

	require.NoError(t, template.Remove(ctx, repo, "web copy"))
	names, err := template.Names(ctx, repo)
	require.NoError(t, err)
	assert.Equal(t, []string{"empty", "web"}, names)
}

func TestTemplateRepository_ConcurrentPut(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	require.NoError(t, template.Put(ctx, repo, "keep", core.Tree{core.NewNode("a")}))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			name := fmt.Sprintf("t%02d", i)
			assert.NoError(t, template.Put(ctx, repo, name, core.Tree{core.NewNode(name)}))
		}()
	}
	wg.Wait()

	names, err := template.Names(ctx, repo)
	require.NoError(t, err)
	assert.Len(t, names, 21)
	assert.Contains(t, names, "keep")
}

func TestTemplateRepository_SaveWritesOnlyChangedRows(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	require.NoError(t, template.Put(ctx, repo, "a", core.Tree{core.NewNode("a")}))
	require.NoError(t, template.Put(ctx, repo, "b", core.Tree{core.NewNode("b")}))

	before, err := repo.List(ctx)
	require.NoError(t, err)

	doc, err := repo.Load(ctx)
	require.NoError(t, err)
	delete(doc, "b")
	doc["c"] = core.Tree{core.NewNode("c")}
	require.NoError(t, repo.Save(ctx, doc))

	after, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, after, 2)
	assert.Equal(t, "a", after[0].Name)
	assert.True(t, before[0].UpdatedAt.Equal(after[0].UpdatedAt))
	assert.Equal(t, "c", after[1].Name)
}

func TestTemplateRepository_HealthCheck(t *testing.T) {
	repo := newTestRepository(t)

	assert.NoError(t, repo.db.HealthCheck(context.Background()))
}
