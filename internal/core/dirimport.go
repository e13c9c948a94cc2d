package core

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// ImportLines walks the directories under basePath and returns a buffer of
// the sentinel followed by one indented line per directory. Files are
// ignored and unreadable directories are skipped.
func ImportLines(basePath string) ([]string, error) {
	info, err := os.Stat(basePath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", basePath, err)
	}
	if !info.IsDir() {
		return nil, &ValidationError{Field: "path", Cause: fmt.Sprintf("%s is not a directory", basePath)}
	}

	lines := []string{Sentinel}
	if err := walkDirLines(basePath, 1, &lines); err != nil {
		return nil, err
	}
	return lines, nil
}

// ImportDir parses the directory layout under basePath into a tree.
func ImportDir(basePath string) (Tree, error) {
	lines, err := ImportLines(basePath)
	if err != nil {
		return nil, err
	}
	return Parse(lines), nil
}

func walkDirLines(dirPath string, depth int, lines *[]string) error {
	entries, err := os.ReadDir(dirPath)
	if err != nil {
		if errors.Is(err, fs.ErrPermission) {
			return nil
		}
		return fmt.Errorf("failed to read directory %s: %w", dirPath, err)
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		*lines = append(*lines, strings.Repeat(" ", IndentUnit*depth)+entry.Name())
		if err := walkDirLines(filepath.Join(dirPath, entry.Name()), depth+1, lines); err != nil {
			return err
		}
	}
	return nil
}
