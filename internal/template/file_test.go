package template

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"dirplan/internal/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStore_Load(t *testing.T) {
	ctx := context.Background()

	t.Run("missing file is an empty document", func(t *testing.T) {
		doc, err := newTestFileStore(t).Load(ctx)
		require.NoError(t, err)
		assert.Empty(t, doc)
	})

	t.Run("reads the nested record format", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "saved.json")
		content := `{"site": [{"name": "x", "children": [{"name": "y", "children": []}]}]}`
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))

		doc, err := NewFileStore(path).Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"x", "    y"}, core.Render(doc["site"]))
	})

	t.Run("malformed JSON is reported", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "saved.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"site": [`), 0644))

		_, err := NewFileStore(path).Load(ctx)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrMalformed)

		var validationErr *core.ValidationError
		assert.True(t, errors.As(err, &validationErr))
	})

	t.Run("invalid folder records are reported", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "saved.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"site": [{"name": ""}]}`), 0644))

		_, err := NewFileStore(path).Load(ctx)
		assert.ErrorIs(t, err, ErrMalformed)
	})
}

func TestFileStore_Save(t *testing.T) {
	ctx := context.Background()

	t.Run("rewrites the whole document", func(t *testing.T) {
		s := newTestFileStore(t)
		require.NoError(t, s.Save(ctx, Document{"a": sampleTree(), "b": sampleTree()}))
		require.NoError(t, s.Save(ctx, Document{"c": sampleTree()}))

		doc, err := s.Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"c"}, doc.Names())
	})

	t.Run("leaves no temp files behind", func(t *testing.T) {
		s := newTestFileStore(t)
		require.NoError(t, s.Save(ctx, Document{"a": sampleTree()}))

		entries, err := os.ReadDir(filepath.Dir(s.Path()))
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, DefaultFile, entries[0].Name())
	})

	t.Run("writes leaves with empty children lists", func(t *testing.T) {
		s := newTestFileStore(t)
		require.NoError(t, s.Save(ctx, Document{"a": core.Tree{core.NewNode("x")}}))

		data, err := os.ReadFile(s.Path())
		require.NoError(t, err)
		assert.Contains(t, string(data), `"children": []`)
	})

	t.Run("cancelled context", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		assert.ErrorIs(t, newTestFileStore(t).Save(cctx, Document{}), context.Canceled)
	})
}
