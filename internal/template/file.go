package template

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// DefaultFile is the document name used when no path is configured.
const DefaultFile = "saved_structures.json"

// FileStore keeps the template document as one JSON file.
type FileStore struct {
	path string
	mu   sync.Mutex

	// updateMu is held across a whole Update.
	updateMu sync.Mutex
}

func NewFileStore(path string) *FileStore {
	if path == "" {
		path = DefaultFile
	}
	return &FileStore{path: path}
}

func (fs *FileStore) Path() string {
	return fs.path
}

// Load reads the whole document. A missing file is an empty document.
func (fs *FileStore) Load(ctx context.Context) (Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	fs.mu.Lock()
	defer fs.mu.Unlock()

	data, err := os.ReadFile(fs.path)
	if err != nil {
		if os.IsNotExist(err) {
			return Document{}, nil
		}
		return nil, fmt.Errorf("failed to read template file %s: %w", fs.path, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return Document{}, nil
	}
	doc, err := decodeDocument(data)
	if err != nil {
		return nil, fmt.Errorf("template file %s: %w", fs.path, err)
	}
	return doc, nil
}

// Save rewrites the whole document through a temp file and rename.
func (fs *FileStore) Save(ctx context.Context, doc Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if doc == nil {
		doc = Document{}
	}
	data, err := json.MarshalIndent(doc, "", "    ")
	if err != nil {
		return fmt.Errorf("failed to encode templates: %w", err)
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	dir := filepath.Dir(fs.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create template directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".templates-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp file in %s: %w", dir, err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write template file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write template file: %w", err)
	}
	if err := os.Rename(tmpPath, fs.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to replace template file %s: %w", fs.path, err)
	}
	return nil
}

// Update serializes load, fn and save for every caller sharing this store.
func (fs *FileStore) Update(ctx context.Context, fn func(doc Document) error) error {
	fs.updateMu.Lock()
	defer fs.updateMu.Unlock()
	return updateDocument(ctx, fs.Load, fs.Save, fn)
}
