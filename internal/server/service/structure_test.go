package service

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"dirplan/internal/core"
	"dirplan/internal/editor"
	"dirplan/internal/server/config"
	"dirplan/internal/server/storage"
	"dirplan/internal/template"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) *StructureService {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.Config{
		BaseURL:         "http://localhost:8080",
		MaterializeRoot: filepath.Join(dir, "projects"),
		ExportTTL:       time.Hour,
	}
	exports := storage.NewFileSystemStore(filepath.Join(dir, "exports"))
	require.NoError(t, exports.EnsureDir())
	templates := template.NewFileStore(filepath.Join(dir, template.DefaultFile))
	return NewStructureService(templates, exports, cfg)
}

func TestCreateAndGetSession(t *testing.T) {
	svc := newTestService(t)

	empty := svc.CreateSession("")
	assert.Equal(t, "empty", empty.State)
	assert.Equal(t, core.Sentinel, empty.Text)
	assert.NotNil(t, empty.Structure)

	view := svc.CreateSession("project\n  src\n  docs")
	assert.Equal(t, "populated", view.State)
	assert.Equal(t, 3, view.Folders)
	assert.Equal(t, []string{"docs", "project", "src"}, view.Names)

	got, err := svc.GetSession(view.ID)
	require.NoError(t, err)
	assert.Equal(t, view.Text, got.Text)

	_, err = svc.GetSession("missing")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSessionEdits(t *testing.T) {
	svc := newTestService(t)
	id := svc.CreateSession("").ID

	view, err := svc.AddFolders(id, "", []string{"project"})
	require.NoError(t, err)
	assert.Equal(t, "project", view.Text)

	_, err = svc.AddFolders(id, "project", []string{"work", "out"})
	require.NoError(t, err)

	_, err = svc.GenerateSubfolders(id, "work", "v", 2)
	require.NoError(t, err)

	view, renamed, err := svc.RenameFolder(id, "out", "exports")
	require.NoError(t, err)
	assert.Equal(t, 1, renamed)
	assert.Equal(t, "project\n    work\n        v_1\n        v_2\n    exports", view.Text)

	view, err = svc.MoveFolder(id, "v_2", "up")
	require.NoError(t, err)
	assert.Equal(t, "project\n    work\n        v_2\n        v_1\n    exports", view.Text)

	view, err = svc.DeleteFolder(id, "work")
	require.NoError(t, err)
	assert.Equal(t, "project\n    exports", view.Text)

	view, err = svc.ClearSession(id)
	require.NoError(t, err)
	assert.Equal(t, "empty", view.State)
}

func TestSessionEditErrors(t *testing.T) {
	svc := newTestService(t)
	id := svc.CreateSession("a\nb").ID

	_, err := svc.AddFolders(id, "", nil)
	var validationErr *core.ValidationError
	assert.ErrorAs(t, err, &validationErr)

	_, err = svc.AddFolders(id, "", []string{"ok", " "})
	assert.ErrorAs(t, err, &validationErr)

	_, err = svc.AddFolders(id, "ghost", []string{"x"})
	assert.ErrorIs(t, err, editor.ErrParentNotFound)

	_, err = svc.MoveFolder(id, "a", "up")
	assert.ErrorIs(t, err, editor.ErrCannotMove)

	_, err = svc.MoveFolder(id, "a", "sideways")
	assert.ErrorAs(t, err, &validationErr)

	_, err = svc.DeleteFolder("missing", "a")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	// Nothing above changed the tree.
	view, err := svc.GetSession(id)
	require.NoError(t, err)
	assert.Equal(t, "a\nb", view.Text)
}

func TestReplaceTextAndDelete(t *testing.T) {
	svc := newTestService(t)
	id := svc.CreateSession("a").ID

	view, err := svc.ReplaceText(id, "File Structure .\nx\n\ty")
	require.NoError(t, err)
	assert.Equal(t, "x\n    y", view.Text)

	require.NoError(t, svc.DeleteSession(id))
	assert.ErrorIs(t, svc.DeleteSession(id), ErrSessionNotFound)
	assert.Equal(t, 0, svc.SessionCount())
}

func TestMaterialize(t *testing.T) {
	svc := newTestService(t)
	id := svc.CreateSession("x\n    y").ID
	ctx := context.Background()

	dry, err := svc.Materialize(ctx, id, "demo", true)
	require.NoError(t, err)
	assert.Len(t, dry.Created, 2)
	assert.NoDirExists(t, filepath.Join(svc.cfg.MaterializeRoot, "demo"))

	res, err := svc.Materialize(ctx, id, "demo", false)
	require.NoError(t, err)
	assert.Len(t, res.Created, 2)
	assert.DirExists(t, filepath.Join(svc.cfg.MaterializeRoot, "demo", "x", "y"))

	again, err := svc.Materialize(ctx, id, "demo", false)
	require.NoError(t, err)
	assert.Empty(t, again.Created)

	_, err = svc.Materialize(ctx, id, "../outside", false)
	var validationErr *core.ValidationError
	assert.ErrorAs(t, err, &validationErr)

	emptyID := svc.CreateSession("").ID
	_, err = svc.Materialize(ctx, emptyID, "demo", false)
	assert.ErrorIs(t, err, editor.ErrEmpty)
}

func TestPruneSessions(t *testing.T) {
	svc := newTestService(t)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	stale := svc.CreateSession("a").ID
	now = now.Add(2 * time.Hour)
	fresh := svc.CreateSession("b").ID

	assert.Equal(t, 1, svc.PruneSessions(time.Hour))

	_, err := svc.GetSession(stale)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = svc.GetSession(fresh)
	assert.NoError(t, err)
}

func TestConcurrentEditsOnOneSession(t *testing.T) {
	svc := newTestService(t)
	id := svc.CreateSession("root").ID

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.GenerateSubfolders(id, "root", "v", 1)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	view, err := svc.GetSession(id)
	require.NoError(t, err)
	assert.Equal(t, 21, view.Folders)
}

func TestTemplateOperations(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	id := svc.CreateSession("shoot\n    raw").ID

	require.NoError(t, svc.SaveTemplate(ctx, id, "photo"))

	list, err := svc.ListTemplates(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "photo", list[0].Name)
	assert.Equal(t, 2, list[0].Folders)

	other := svc.CreateSession("").ID
	view, err := svc.LoadTemplate(ctx, other, "photo")
	require.NoError(t, err)
	assert.Equal(t, "shoot\n    raw", view.Text)

	_, err = svc.LoadTemplate(ctx, other, "missing")
	assert.ErrorIs(t, err, template.ErrNotFound)

	require.NoError(t, svc.DeleteTemplate(ctx, "photo"))
	assert.ErrorIs(t, svc.DeleteTemplate(ctx, "photo"), template.ErrNotFound)

	assert.ErrorIs(t, svc.SaveTemplate(ctx, svc.CreateSession("").ID, "x"), editor.ErrEmpty)
}

func TestSaveTemplate_ConcurrentSessions(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	ids := make([]string, 20)
	for i := range ids {
		ids[i] = svc.CreateSession(fmt.Sprintf("folder_%d", i)).ID
	}

	var wg sync.WaitGroup
	for i, id := range ids {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, svc.SaveTemplate(ctx, id, fmt.Sprintf("tpl_%02d", i)))
		}()
	}
	wg.Wait()

	list, err := svc.ListTemplates(ctx)
	require.NoError(t, err)
	assert.Len(t, list, len(ids))
}

func TestPredefinedAndStats(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	predefined, err := svc.ListPredefined()
	require.NoError(t, err)
	assert.Len(t, predefined, 5)

	id := svc.CreateSession("").ID
	view, err := svc.LoadPredefined(id, "photography")
	require.NoError(t, err)
	assert.Equal(t, "populated", view.State)

	added, err := svc.SeedPredefined(ctx)
	require.NoError(t, err)
	assert.Len(t, added, 5)
	added, err = svc.SeedPredefined(ctx)
	require.NoError(t, err)
	assert.Empty(t, added)

	stats, err := svc.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Sessions)
	assert.Equal(t, 5, stats.Templates)
	assert.Equal(t, 5, stats.PredefinedTemplates)
}

func TestValidate(t *testing.T) {
	svc := newTestService(t)

	res, err := svc.Validate([]byte(`[{"name":"a","children":[{"name":"b","children":[]}]},{"name":"c"}]`))
	require.NoError(t, err)
	assert.True(t, res.Valid)
	assert.Equal(t, 3, res.Folders)
	assert.Equal(t, 2, res.Depth)
	assert.NotEmpty(t, res.Fingerprint)

	_, err = svc.Validate([]byte(`[{"name":""}]`))
	var validationErr *core.ValidationError
	require.True(t, errors.As(err, &validationErr))
	assert.Equal(t, "name", validationErr.Field)

	_, err = svc.Validate([]byte(`[]`))
	assert.ErrorAs(t, err, &validationErr)
}
