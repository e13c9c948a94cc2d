package backup

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) (*Manager, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), DefaultFile)
	return NewManager(path, nil), path
}

func TestManager_AddPersists(t *testing.T) {
	m, path := newTestManager(t)

	require.NoError(t, m.Add(NewTask("docs", "/home/docs", "/mnt/docs", 90*time.Second)))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"name":"docs","source":"/home/docs","destination":"/mnt/docs","interval":90,"status":"Stopped"}]`, string(data))

	reloaded := NewManager(path, nil)
	require.NoError(t, reloaded.Load())
	list := reloaded.List()
	require.Len(t, list, 1)
	assert.Equal(t, 90*time.Second, list[0].Interval)
	assert.Equal(t, StatusStopped, list[0].Status)
}

func TestManager_LoadMissingFile(t *testing.T) {
	m, _ := newTestManager(t)

	require.NoError(t, m.Load())
	assert.Empty(t, m.List())
}

func TestManager_LoadResetsRunningStatus(t *testing.T) {
	m, path := newTestManager(t)
	require.NoError(t, os.WriteFile(path, []byte(`[{"name":"x","source":"/a","destination":"/b","interval":5,"status":"Running"}]`), 0644))

	require.NoError(t, m.Load())

	assert.Equal(t, StatusStopped, m.List()[0].Status)
}

func TestManager_DuplicateAndMissing(t *testing.T) {
	m, _ := newTestManager(t)
	require.NoError(t, m.Add(NewTask("docs", "/a", "/b", time.Minute)))

	assert.ErrorIs(t, m.Add(NewTask("docs", "/c", "/d", time.Minute)), ErrTaskExists)
	assert.ErrorIs(t, m.Remove("ghost"), ErrTaskNotFound)
	assert.ErrorIs(t, m.Update("ghost", NewTask("g", "/a", "/b", time.Minute)), ErrTaskNotFound)
	assert.ErrorIs(t, m.Start(context.Background(), "ghost"), ErrTaskNotFound)
	assert.ErrorIs(t, m.Stop("ghost"), ErrTaskNotFound)
}

func TestManager_UpdateAndRemove(t *testing.T) {
	m, path := newTestManager(t)
	require.NoError(t, m.Add(NewTask("docs", "/a", "/b", time.Minute)))
	require.NoError(t, m.Add(NewTask("media", "/m", "/n", time.Minute)))

	require.NoError(t, m.Update("docs", NewTask("papers", "/a", "/c", 2*time.Minute)))
	assert.ErrorIs(t, m.Update("papers", NewTask("media", "/a", "/c", time.Minute)), ErrTaskExists)

	list := m.List()
	require.Len(t, list, 2)
	assert.Equal(t, "papers", list[0].Name)
	assert.Equal(t, "/c", list[0].Destination)

	require.NoError(t, m.Remove("papers"))

	reloaded := NewManager(path, nil)
	require.NoError(t, reloaded.Load())
	list = reloaded.List()
	require.Len(t, list, 1)
	assert.Equal(t, "media", list[0].Name)
}

func TestManager_StartStopAll(t *testing.T) {
	m, _ := newTestManager(t)
	src := t.TempDir()
	dst := filepath.Join(t.TempDir(), "mirror")
	require.NoError(t, os.WriteFile(filepath.Join(src, "f.txt"), []byte("x"), 0644))
	require.NoError(t, m.Add(NewTask("docs", src, dst, time.Hour)))

	require.NoError(t, m.Start(context.Background(), "docs"))
	assert.Equal(t, StatusRunning, m.List()[0].Status)

	m.StopAll()

	assert.Equal(t, StatusStopped, m.List()[0].Status)
	assert.FileExists(t, filepath.Join(dst, "f.txt"))
}
