package core

import (
	"archive/zip"
	"bytes"
	"io"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// helpers

func zipEntries(t *testing.T, zipBytes []byte) map[string]*zip.File {
	t.Helper()

	reader, err := zip.NewReader(bytes.NewReader(zipBytes), int64(len(zipBytes)))
	require.NoError(t, err, "failed to create zip reader")

	entries := make(map[string]*zip.File, len(reader.File))
	for _, f := range reader.File {
		entries[f.Name] = f
	}
	return entries
}

func sortedKeys(m map[string]*zip.File) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Tests

func TestTree_ToZipBytes(t *testing.T) {
	t.Run("nested folders under a root", func(t *testing.T) {
		tree := Tree{NewNode("x", NewNode("y"))}

		zipBytes, err := tree.ToZipBytes("acme_site")
		require.NoError(t, err)

		entries := zipEntries(t, zipBytes)
		assert.Equal(t, []string{
			"acme_site/",
			"acme_site/.gitkeep",
			"acme_site/x/",
			"acme_site/x/.gitkeep",
			"acme_site/x/y/",
			"acme_site/x/y/.gitkeep",
		}, sortedKeys(entries))

		assert.True(t, entries["acme_site/x/"].FileInfo().IsDir())
	})

	t.Run("placeholder content", func(t *testing.T) {
		zipBytes, err := Tree{NewNode("x")}.ToZipBytes("")
		require.NoError(t, err)

		entries := zipEntries(t, zipBytes)
		require.Contains(t, entries, "x/.gitkeep")

		rc, err := entries["x/.gitkeep"].Open()
		require.NoError(t, err)
		defer rc.Close()
		content, err := io.ReadAll(rc)
		require.NoError(t, err)
		assert.Equal(t, placeholderContent, string(content))
	})

	t.Run("forest without root", func(t *testing.T) {
		zipBytes, err := Tree{NewNode("a"), NewNode("b")}.ToZipBytes("")
		require.NoError(t, err)

		assert.Equal(t, []string{"a/", "a/.gitkeep", "b/", "b/.gitkeep"}, sortedKeys(zipEntries(t, zipBytes)))
	})

	t.Run("empty tree yields a valid empty archive", func(t *testing.T) {
		zipBytes, err := Tree(nil).ToZipBytes("")
		require.NoError(t, err)

		assert.Empty(t, zipEntries(t, zipBytes))
	})
}

func buildZip(t *testing.T, names ...string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range names {
		_, err := zw.Create(name)
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestFromZipBytes(t *testing.T) {
	t.Run("inverse of ToZipBytes", func(t *testing.T) {
		tree := Tree{
			NewNode("src", NewNode("css"), NewNode("js", NewNode("vendor"))),
			NewNode("docs"),
		}
		zipBytes, err := tree.ToZipBytes("")
		require.NoError(t, err)

		got, err := FromZipBytes(zipBytes)
		require.NoError(t, err)
		assert.Equal(t, RenderText(tree), RenderText(got))
	})

	t.Run("files imply their folders", func(t *testing.T) {
		got, err := FromZipBytes(buildZip(t, "README.md", "assets/img/logo.png", "assets/fonts/"))
		require.NoError(t, err)

		assert.Equal(t, "assets\n    img\n    fonts", RenderText(got))
	})

	t.Run("rejects escaping entries", func(t *testing.T) {
		_, err := FromZipBytes(buildZip(t, "ok/", "../evil/x.txt"))

		var validationErr *ValidationError
		require.ErrorAs(t, err, &validationErr)
		assert.Equal(t, "archive", validationErr.Field)
	})

	t.Run("trims segments", func(t *testing.T) {
		got, err := FromZipBytes(buildZip(t, " a /", " a / b /x.txt", "a/ c/", "  /loose.txt"))
		require.NoError(t, err)

		assert.Equal(t, "a\n    b\n    c", RenderText(got))
	})

	t.Run("rejects multi-line names", func(t *testing.T) {
		_, err := FromZipBytes(buildZip(t, "a\nb/"))

		var validationErr *ValidationError
		require.ErrorAs(t, err, &validationErr)
		assert.Equal(t, "archive", validationErr.Field)
	})

	t.Run("not a zip", func(t *testing.T) {
		_, err := FromZipBytes([]byte("plain text"))

		var validationErr *ValidationError
		require.ErrorAs(t, err, &validationErr)
	})
}
