package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"dirplan/internal/core"
	"dirplan/internal/editor"
	"dirplan/internal/template"

	"github.com/google/uuid"
)

// MaxImportSize caps uploaded ZIP archives.
const MaxImportSize = 32 << 20

// DefaultExportName is used when an export has no usable root name.
const DefaultExportName = "folder_structure"

// ExportResult is returned after a ZIP export is stored.
type ExportResult struct {
	ID          string    `json:"id"`
	DownloadURL string    `json:"download_url"`
	Filename    string    `json:"filename"`
	Size        int64     `json:"size"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// ExportZip archives the session's tree under rootName, stores it and
// returns a download link.
func (s *StructureService) ExportZip(ctx context.Context, id, rootName string) (*ExportResult, error) {
	rootName = sanitizeFilename(rootName)

	var data []byte
	err := s.read(id, func(sess *session) error {
		tree := sess.editor.Tree()
		if len(tree) == 0 {
			return editor.ErrEmpty
		}
		var err error
		data, err = tree.ToZipBytes(rootName)
		return err
	})
	if err != nil {
		return nil, err
	}

	exportID := uuid.NewString()
	size, err := s.exports.Save(exportID, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to store export: %w", err)
	}

	filename := rootName + ".zip"
	s.mu.Lock()
	s.exportNames[exportID] = filename
	s.mu.Unlock()

	slog.Info("export created",
		"session_id", id,
		"export_id", exportID,
		"filename", filename,
		"size", size,
	)

	return &ExportResult{
		ID:          exportID,
		DownloadURL: fmt.Sprintf("%s/d/%s", s.cfg.BaseURL, exportID),
		Filename:    filename,
		Size:        size,
		ExpiresAt:   s.now().Add(s.cfg.ExportTTL).UTC(),
	}, nil
}

// Download returns the path and attachment name of a stored export.
func (s *StructureService) Download(exportID string) (filePath string, filename string, err error) {
	path, err := s.exports.GetPath(exportID)
	if err != nil {
		return "", "", err
	}

	s.mu.RLock()
	filename, ok := s.exportNames[exportID]
	s.mu.RUnlock()
	if !ok {
		filename = DefaultExportName + ".zip"
	}
	return path, filename, nil
}

// ExportJSON wraps the session's tree in an export envelope.
func (s *StructureService) ExportJSON(id, name string) (*core.Export, error) {
	var export *core.Export
	err := s.read(id, func(sess *session) error {
		tree := sess.editor.Tree()
		if len(tree) == 0 {
			return editor.ErrEmpty
		}
		if strings.TrimSpace(name) == "" {
			name = DefaultExportName
		}
		export = core.NewExport(name, tree, template.Fingerprint(tree))
		return nil
	})
	return export, err
}

// ImportJSON replaces the session's tree with an export envelope or a bare
// structure list.
func (s *StructureService) ImportJSON(id string, data []byte) (*SessionView, error) {
	_, tree, err := core.DecodeExport(data)
	if err != nil {
		return nil, err
	}
	return s.edit(id, func(e *editor.Editor) error {
		return e.LoadTree(tree)
	})
}

// ImportZip replaces the session's tree with the folders found in an
// uploaded ZIP archive. A single top-level folder is unwrapped when
// stripRoot is set.
func (s *StructureService) ImportZip(id string, data io.Reader, size int64, stripRoot bool) (*SessionView, error) {
	if size > MaxImportSize {
		return nil, ErrImportTooLarge
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, io.LimitReader(data, MaxImportSize+1)); err != nil {
		return nil, fmt.Errorf("failed to read upload data: %w", err)
	}
	if buf.Len() > MaxImportSize {
		return nil, ErrImportTooLarge
	}
	zipData := buf.Bytes()

	if err := validateZipMagicBytes(zipData); err != nil {
		return nil, err
	}
	tree, err := core.FromZipBytes(zipData)
	if err != nil {
		var validationErr *core.ValidationError
		if errors.As(err, &validationErr) && validationErr.Err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidZip, validationErr.Err)
		}
		return nil, err
	}
	if stripRoot && len(tree) == 1 && len(tree[0].Children) > 0 {
		tree = tree[0].Children
	}
	if len(tree) == 0 {
		return nil, &core.ValidationError{Field: "archive", Cause: "archive contains no folders"}
	}

	view, err := s.edit(id, func(e *editor.Editor) error {
		return e.LoadTree(tree)
	})
	if err != nil {
		return nil, err
	}
	slog.Info("archive imported", "session_id", id, "folders", view.Folders, "bytes", len(zipData))
	return view, nil
}

// --- Helpers ---

// validateZipMagicBytes checks that data starts with the ZIP magic number (PK\x03\x04).
func validateZipMagicBytes(data []byte) error {
	if len(data) < 4 {
		return ErrInvalidZip
	}
	// Standard ZIP local file header: PK\x03\x04
	// Empty ZIP (end of central directory): PK\x05\x06
	if data[0] == 0x50 && data[1] == 0x4B {
		if (data[2] == 0x03 && data[3] == 0x04) ||
			(data[2] == 0x05 && data[3] == 0x06) {
			return nil
		}
	}
	return ErrInvalidZip
}

// sanitizeFilename reduces a requested export name to a single safe path
// component without extension.
func sanitizeFilename(name string) string {
	name = strings.ReplaceAll(strings.TrimSpace(name), "\\", "/")
	name = filepath.Base(name)
	name = strings.TrimSuffix(name, ".zip")

	if len(name) > 200 {
		name = name[:200]
	}
	if name == "" || name == "." || name == ".." || name == "/" {
		name = DefaultExportName
	}
	return name
}
