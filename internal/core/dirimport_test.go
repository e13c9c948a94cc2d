package core

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Helpers

func setupNestedTestDir(t *testing.T, structure map[string]interface{}) string {
	t.Helper()
	rootDir := t.TempDir()
	createStructure(t, rootDir, structure)
	return rootDir
}

func createStructure(t *testing.T, basePath string, structure map[string]interface{}) {
	t.Helper()
	for name, content := range structure {
		path := filepath.Join(basePath, name)

		switch v := content.(type) {
		case string:
			// file
			require.NoError(t, os.WriteFile(path, []byte(v), 0644), "failed to create file %s", path)

		case map[string]interface{}:
			// dir
			require.NoError(t, os.Mkdir(path, 0755), "failed to create directory %s", path)
			createStructure(t, path, v)
		default:
			t.Fatalf("unsupported structure type for %s", name)
		}
	}
}

// Tests

func TestImportLines(t *testing.T) {
	t.Run("directories only, sorted, indented by depth", func(t *testing.T) {
		root := setupNestedTestDir(t, map[string]interface{}{
			"work": map[string]interface{}{
				"ae":       map[string]interface{}{},
				"notes.md": "x",
			},
			"audio":     map[string]interface{}{},
			"readme.md": "hello",
		})

		lines, err := ImportLines(root)
		require.NoError(t, err)

		assert.Equal(t, []string{
			Sentinel,
			"    audio",
			"    work",
			"        ae",
		}, lines)
	})

	t.Run("missing path", func(t *testing.T) {
		_, err := ImportLines(filepath.Join(t.TempDir(), "missing"))
		assert.Error(t, err)
	})

	t.Run("file instead of directory", func(t *testing.T) {
		root := setupNestedTestDir(t, map[string]interface{}{"a.txt": "x"})

		_, err := ImportLines(filepath.Join(root, "a.txt"))
		assertValidationError(t, err, "path")
	})

	t.Run("skips unreadable directories", func(t *testing.T) {
		if runtime.GOOS == "windows" || os.Geteuid() == 0 {
			t.Skip("permission bits are not enforced here")
		}
		root := setupNestedTestDir(t, map[string]interface{}{
			"locked": map[string]interface{}{
				"inner": map[string]interface{}{},
			},
			"open": map[string]interface{}{},
		})
		locked := filepath.Join(root, "locked")
		require.NoError(t, os.Chmod(locked, 0o000))
		t.Cleanup(func() { os.Chmod(locked, 0o755) })

		lines, err := ImportLines(root)
		require.NoError(t, err)
		assert.Equal(t, []string{Sentinel, "    locked", "    open"}, lines)
	})
}

func TestImportDir(t *testing.T) {
	root := setupNestedTestDir(t, map[string]interface{}{
		"src": map[string]interface{}{
			"api": map[string]interface{}{},
		},
		"docs": map[string]interface{}{},
	})

	tree, err := ImportDir(root)
	require.NoError(t, err)

	assert.Equal(t, []string{"docs", "src", "    api"}, Render(tree))
}
