package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

var ErrExportNotFound = errors.New("export not found")

// Store keeps generated ZIP exports until they expire.
type Store interface {
	Save(exportID string, data io.Reader) (int64, error)
	GetPath(exportID string) (string, error)
	Delete(exportID string) error
	EnsureDir() error
	RemoveOlderThan(cutoff time.Time) ([]string, error)
}

// FileSystemStore stores exports as {exportID}.zip under basePath.
type FileSystemStore struct {
	basePath string
}

// NewFileSystemStore creates a new filesystem export store.
func NewFileSystemStore(basePath string) *FileSystemStore {
	return &FileSystemStore{basePath: basePath}
}

// EnsureDir creates the storage directory if it doesn't exist.
func (fs *FileSystemStore) EnsureDir() error {
	if err := os.MkdirAll(fs.basePath, 0755); err != nil {
		return fmt.Errorf("failed to create storage directory %s: %w", fs.basePath, err)
	}
	return nil
}

// Save writes data to {exportID}.zip through a temporary file, so a
// reader never sees a partial archive. Returns the number of bytes written.
func (fs *FileSystemStore) Save(exportID string, data io.Reader) (int64, error) {
	filePath, err := fs.filePath(exportID)
	if err != nil {
		return 0, err
	}

	tmp, err := os.CreateTemp(fs.basePath, ".export-*")
	if err != nil {
		return 0, fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	n, err := io.Copy(tmp, data)
	if err != nil {
		tmp.Close()
		return 0, fmt.Errorf("failed to write export: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return 0, fmt.Errorf("failed to write export: %w", err)
	}
	if err := os.Rename(tmp.Name(), filePath); err != nil {
		return 0, fmt.Errorf("failed to store export %s: %w", exportID, err)
	}
	return n, nil
}

// GetPath returns the path of a stored export.
func (fs *FileSystemStore) GetPath(exportID string) (string, error) {
	filePath, err := fs.filePath(exportID)
	if err != nil {
		return "", err
	}

	if _, err := os.Stat(filePath); err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: %s", ErrExportNotFound, exportID)
		}
		return "", fmt.Errorf("failed to stat file: %w", err)
	}
	return filePath, nil
}

// Delete removes a stored export. Missing exports are not an error.
func (fs *FileSystemStore) Delete(exportID string) error {
	filePath, err := fs.filePath(exportID)
	if err != nil {
		return err
	}
	if err := os.Remove(filePath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete file %s: %w", filePath, err)
	}
	return nil
}

// RemoveOlderThan deletes exports last written before cutoff and returns
// their IDs.
func (fs *FileSystemStore) RemoveOlderThan(cutoff time.Time) ([]string, error) {
	entries, err := os.ReadDir(fs.basePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list exports: %w", err)
	}

	var removed []string
	for _, entry := range entries {
		id, ok := strings.CutSuffix(entry.Name(), ".zip")
		if !ok || entry.IsDir() || !isExportID(id) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}
		if err := fs.Delete(id); err != nil {
			return removed, err
		}
		removed = append(removed, id)
	}
	return removed, nil
}

// filePath only accepts UUIDs, which keeps IDs from naming paths outside
// basePath.
func (fs *FileSystemStore) filePath(exportID string) (string, error) {
	if !isExportID(exportID) {
		return "", fmt.Errorf("%w: %s", ErrExportNotFound, exportID)
	}
	return filepath.Join(fs.basePath, exportID+".zip"), nil
}

func isExportID(s string) bool {
	id, err := uuid.Parse(s)
	return err == nil && id.String() == s
}
