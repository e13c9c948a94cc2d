package core

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io/fs"
	"path"
	"strings"
	"time"
)

// PlaceholderName is written into every exported folder so empty folders
// survive tools that drop directory entries.
const PlaceholderName = ".gitkeep"

const placeholderContent = "# This file keeps the folder in version control\n"

// ToZipBytes archives the tree as folders under rootName. Each folder gets a
// directory entry and a placeholder file.
func (t Tree) ToZipBytes(rootName string) ([]byte, error) {
	var buf bytes.Buffer
	zipWriter := zip.NewWriter(&buf)
	modified := time.Now()

	base := ""
	if rootName != "" {
		base = rootName
		if err := addDirToZip(zipWriter, base, modified); err != nil {
			zipWriter.Close()
			return nil, err
		}
	}

	for _, n := range t {
		if err := compressNode(zipWriter, n, base, modified); err != nil {
			zipWriter.Close()
			return nil, err
		}
	}

	if err := zipWriter.Close(); err != nil {
		return nil, fmt.Errorf("failed to close zip writer: %w", err)
	}

	return buf.Bytes(), nil
}

func compressNode(zw *zip.Writer, n *Node, basePath string, modified time.Time) error {
	if n.Name == "" {
		return nil
	}
	archivePath := path.Join(basePath, n.Name)
	if err := addDirToZip(zw, archivePath, modified); err != nil {
		return err
	}
	for _, child := range n.Children {
		if err := compressNode(zw, child, archivePath, modified); err != nil {
			return err
		}
	}
	return nil
}

func addDirToZip(zw *zip.Writer, archivePath string, modified time.Time) error {
	dirHeader := &zip.FileHeader{
		Name:     archivePath + "/",
		Method:   zip.Store,
		Modified: modified,
	}
	dirHeader.SetMode(fs.ModeDir | 0o755)
	if _, err := zw.CreateHeader(dirHeader); err != nil {
		return fmt.Errorf("failed to create zip entry %s: %w", archivePath, err)
	}

	header := &zip.FileHeader{
		Name:     path.Join(archivePath, PlaceholderName),
		Method:   zip.Deflate,
		Modified: modified,
	}
	header.SetMode(0o644)
	writer, err := zw.CreateHeader(header)
	if err != nil {
		return fmt.Errorf("failed to create zip entry: %w", err)
	}
	if _, err := writer.Write([]byte(placeholderContent)); err != nil {
		return fmt.Errorf("failed to write placeholder to zip: %w", err)
	}
	return nil
}

// FromZipBytes rebuilds a tree from the folders in a ZIP archive. Files are
// ignored except for the folders they imply. Folders keep the order in
// which the archive first mentions them. Entries with absolute paths or
// ".." components are rejected. Path segments are trimmed and blank
// segments dropped.
func FromZipBytes(data []byte) (Tree, error) {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, &ValidationError{Field: "archive", Cause: "not a readable ZIP archive", Err: err}
	}

	var tree Tree
	index := map[string]*Node{}
	for _, f := range reader.File {
		name := strings.ReplaceAll(f.Name, "\\", "/")
		dir := strings.TrimSuffix(name, "/")
		if !strings.HasSuffix(name, "/") {
			dir = path.Dir(name)
		}
		if dir == "." || dir == "" {
			continue
		}
		if strings.HasPrefix(dir, "/") {
			return nil, &ValidationError{Field: "archive", Cause: fmt.Sprintf("entry %q escapes the archive root", f.Name)}
		}

		var parts []string
		for _, part := range strings.Split(dir, "/") {
			part = strings.TrimSpace(part)
			switch {
			case part == "" || part == ".":
				continue
			case part == "..":
				return nil, &ValidationError{Field: "archive", Cause: fmt.Sprintf("entry %q escapes the archive root", f.Name)}
			}
			if cause := nameProblem(part); cause != "" {
				return nil, &ValidationError{Field: "archive", Cause: fmt.Sprintf("entry %q: folder name %s", f.Name, cause)}
			}
			parts = append(parts, part)
		}
		if len(parts) == 0 {
			continue
		}

		var parent *Node
		for i, part := range parts {
			key := strings.Join(parts[:i+1], "/")
			n, ok := index[key]
			if !ok {
				n = NewNode(part)
				index[key] = n
				if parent == nil {
					tree = append(tree, n)
				} else {
					parent.Children = append(parent.Children, n)
				}
			}
			parent = n
		}
	}
	return tree, nil
}
