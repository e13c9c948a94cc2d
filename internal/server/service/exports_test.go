package service

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"strings"
	"testing"

	"dirplan/internal/core"
	"dirplan/internal/editor"
	"dirplan/internal/server/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Helper to create valid ZIP bytes for testing ---

func createTestZip(t *testing.T, names ...string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for _, name := range names {
		f, err := w.Create(name)
		if err != nil {
			t.Fatalf("failed to create zip entry %s: %v", name, err)
		}
		if !strings.HasSuffix(name, "/") {
			if _, err := f.Write([]byte("content")); err != nil {
				t.Fatalf("failed to write zip entry %s: %v", name, err)
			}
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("failed to close zip writer: %v", err)
	}
	return buf.Bytes()
}

// --- ZIP validation ---

func TestValidateZipMagicBytes(t *testing.T) {
	t.Run("valid ZIP bytes", func(t *testing.T) {
		if err := validateZipMagicBytes(createTestZip(t, "a/b.txt")); err != nil {
			t.Errorf("expected valid ZIP, got error: %v", err)
		}
	})

	t.Run("empty archive", func(t *testing.T) {
		if err := validateZipMagicBytes(createTestZip(t)); err != nil {
			t.Errorf("expected empty archive to pass, got error: %v", err)
		}
	})

	t.Run("too short", func(t *testing.T) {
		if err := validateZipMagicBytes([]byte{0x50, 0x4B}); err == nil {
			t.Error("expected error for data shorter than 4 bytes")
		}
	})

	t.Run("PDF magic bytes rejected", func(t *testing.T) {
		if err := validateZipMagicBytes([]byte("%PDF")); !errors.Is(err, ErrInvalidZip) {
			t.Errorf("expected ErrInvalidZip, got %v", err)
		}
	})
}

// --- Filename sanitization ---

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"simple name", "acme_site", "acme_site"},
		{"drops zip extension", "acme_site.zip", "acme_site"},
		{"strips directory", "/path/to/site", "site"},
		{"strips windows path", "C:\\Users\\test\\site", "site"},
		{"empty name", "", DefaultExportName},
		{"parent reference", "..", DefaultExportName},
		{"trims spaces", "  site  ", "site"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := sanitizeFilename(tt.input)
			if result != tt.expected {
				t.Errorf("sanitizeFilename(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

// --- Exports ---

func TestExportZipAndDownload(t *testing.T) {
	svc := newTestService(t)
	id := svc.CreateSession("src\n    css").ID

	res, err := svc.ExportZip(context.Background(), id, "../site")
	require.NoError(t, err)
	assert.Equal(t, "site.zip", res.Filename)
	assert.Equal(t, "http://localhost:8080/d/"+res.ID, res.DownloadURL)

	path, filename, err := svc.Download(res.ID)
	require.NoError(t, err)
	assert.Equal(t, "site.zip", filename)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	tree, err := core.FromZipBytes(data)
	require.NoError(t, err)
	assert.Equal(t, "site\n    src\n        css", core.RenderText(tree))

	_, _, err = svc.Download("not-an-export")
	assert.ErrorIs(t, err, storage.ErrExportNotFound)

	_, err = svc.ExportZip(context.Background(), svc.CreateSession("").ID, "x")
	assert.ErrorIs(t, err, editor.ErrEmpty)
}

func TestExportImportJSON(t *testing.T) {
	svc := newTestService(t)
	src := svc.CreateSession("a\n    b").ID

	export, err := svc.ExportJSON(src, "")
	require.NoError(t, err)
	assert.Equal(t, DefaultExportName, export.Structure.Name)

	data, err := json.Marshal(export)
	require.NoError(t, err)

	dst := svc.CreateSession("").ID
	view, err := svc.ImportJSON(dst, data)
	require.NoError(t, err)
	assert.Equal(t, "a\n    b", view.Text)

	_, err = svc.ImportJSON(dst, []byte(`{"oops":`))
	var validationErr *core.ValidationError
	assert.ErrorAs(t, err, &validationErr)
	view, _ = svc.GetSession(dst)
	assert.Equal(t, "a\n    b", view.Text)
}

func TestImportZip(t *testing.T) {
	svc := newTestService(t)
	id := svc.CreateSession("old").ID

	t.Run("reads folders and unwraps a single root", func(t *testing.T) {
		data := createTestZip(t, "site/", "site/src/main.go", "site/docs/")

		view, err := svc.ImportZip(id, bytes.NewReader(data), int64(len(data)), true)
		require.NoError(t, err)
		assert.Equal(t, "src\ndocs", view.Text)
	})

	t.Run("keeps the root when asked", func(t *testing.T) {
		data := createTestZip(t, "site/", "site/src/main.go")

		view, err := svc.ImportZip(id, bytes.NewReader(data), int64(len(data)), false)
		require.NoError(t, err)
		assert.Equal(t, "site\n    src", view.Text)
	})

	t.Run("rejects oversize uploads", func(t *testing.T) {
		_, err := svc.ImportZip(id, bytes.NewReader(nil), MaxImportSize+1, false)
		assert.ErrorIs(t, err, ErrImportTooLarge)
	})

	t.Run("rejects non-zip data", func(t *testing.T) {
		data := []byte("hello world")
		_, err := svc.ImportZip(id, bytes.NewReader(data), int64(len(data)), false)
		assert.ErrorIs(t, err, ErrInvalidZip)
	})

	t.Run("rejects archives without folders", func(t *testing.T) {
		data := createTestZip(t, "README.md")
		_, err := svc.ImportZip(id, bytes.NewReader(data), int64(len(data)), false)
		var validationErr *core.ValidationError
		assert.ErrorAs(t, err, &validationErr)
	})

	view, err := svc.GetSession(id)
	require.NoError(t, err)
	assert.Equal(t, "site\n    src", view.Text)
}
