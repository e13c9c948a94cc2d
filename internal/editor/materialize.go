package editor

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"dirplan/internal/core"
)

// Filesystem is the collaborator materialization creates directories with.
type Filesystem interface {
	Stat(path string) (fs.FileInfo, error)
	MkdirAll(path string, perm fs.FileMode) error
}

// OSFilesystem creates directories on the local disk.
type OSFilesystem struct{}

func (OSFilesystem) Stat(path string) (fs.FileInfo, error) {
	return os.Stat(path)
}

func (OSFilesystem) MkdirAll(path string, perm fs.FileMode) error {
	return os.MkdirAll(path, perm)
}

// MaterializeError carries the directory that could not be created.
type MaterializeError struct {
	Path string
	Err  error
}

func (e *MaterializeError) Error() string {
	return fmt.Sprintf("cannot create folder %q: %v", e.Path, e.Err)
}

func (e *MaterializeError) Unwrap() error {
	return e.Err
}

// MaterializeOptions tune a materialization run.
type MaterializeOptions struct {
	FS      Filesystem
	DirPerm fs.FileMode
	DryRun  bool
	Logger  *slog.Logger
}

// MaterializeResult lists every path visited and the subset that was newly
// created (or would be, on a dry run).
type MaterializeResult struct {
	Attempted []string `json:"attempted"`
	Created   []string `json:"created"`
}

// Materialize creates one directory per node under basePath, parents before
// children. Existing directories are left alone. The first failure stops
// the walk; directories created before it stay in place.
func Materialize(ctx context.Context, tree core.Tree, basePath string, opts MaterializeOptions) (*MaterializeResult, error) {
	if strings.TrimSpace(basePath) == "" {
		return nil, &core.ValidationError{Field: "base path", Cause: "must not be empty"}
	}
	if len(tree) == 0 {
		return nil, ErrEmpty
	}
	if opts.FS == nil {
		opts.FS = OSFilesystem{}
	}
	if opts.DirPerm == 0 {
		opts.DirPerm = 0755
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	m := &materializer{ctx: ctx, base: filepath.Clean(basePath), opts: opts, result: &MaterializeResult{}}
	err := m.createFolders(tree, m.base)

	opts.Logger.Info("materialized folder structure",
		"base_path", m.base,
		"attempted", len(m.result.Attempted),
		"created", len(m.result.Created),
		"dry_run", opts.DryRun,
	)
	return m.result, err
}

type materializer struct {
	ctx    context.Context
	base   string
	opts   MaterializeOptions
	result *MaterializeResult
}

func (m *materializer) createFolders(nodes []*core.Node, currentPath string) error {
	for _, n := range nodes {
		if err := m.ctx.Err(); err != nil {
			return err
		}
		name := strings.TrimSpace(n.Name)
		if name == "" {
			continue
		}

		folderPath, err := safeJoin(m.base, currentPath, name)
		if err != nil {
			return &MaterializeError{Path: filepath.Join(currentPath, name), Err: err}
		}
		m.result.Attempted = append(m.result.Attempted, folderPath)

		if err := m.ensureDir(folderPath); err != nil {
			return err
		}
		if len(n.Children) > 0 {
			if err := m.createFolders(n.Children, folderPath); err != nil {
				return err
			}
		}
	}
	return nil
}

func (m *materializer) ensureDir(path string) error {
	info, err := m.opts.FS.Stat(path)
	switch {
	case err == nil && info.IsDir():
		m.opts.Logger.Debug("dir exists", "path", path)
		return nil

	case err == nil && !info.IsDir():
		return &MaterializeError{Path: path, Err: fmt.Errorf("a file already exists at this path")}

	case os.IsNotExist(err):
		if !m.opts.DryRun {
			if err := m.opts.FS.MkdirAll(path, m.opts.DirPerm); err != nil {
				return &MaterializeError{Path: path, Err: err}
			}
		}
		m.result.Created = append(m.result.Created, path)
		m.opts.Logger.Debug("dir created", "path", path, "dry_run", m.opts.DryRun)
		return nil

	default:
		return &MaterializeError{Path: path, Err: err}
	}
}

// safeJoin joins name onto parent and refuses results outside root. A
// name must be a single path element.
func safeJoin(root, parent, name string) (string, error) {
	if name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("folder name %q is not a single path element", name)
	}
	p := filepath.Join(parent, name)
	rel, err := filepath.Rel(root, p)
	if err != nil {
		return "", err
	}
	relSl := filepath.ToSlash(rel)
	if relSl == "." || relSl == ".." || strings.HasPrefix(relSl, "../") {
		return "", fmt.Errorf("folder name %q escapes the base path", name)
	}
	return p, nil
}

// SafeJoin resolves a caller-supplied relative path under root.
func SafeJoin(root, rel string) (string, error) {
	if filepath.IsAbs(rel) {
		return "", &core.ValidationError{Field: "path", Cause: "absolute paths are not allowed"}
	}
	p := filepath.Join(root, rel)
	r, err := filepath.Rel(filepath.Clean(root), p)
	if err != nil {
		return "", err
	}
	r = filepath.ToSlash(r)
	if r == ".." || strings.HasPrefix(r, "../") {
		return "", &core.ValidationError{Field: "path", Cause: fmt.Sprintf("%s escapes %s", rel, root)}
	}
	return p, nil
}

// Materialize creates the editor's tree under basePath.
func (e *Editor) Materialize(ctx context.Context, basePath string, opts MaterializeOptions) (*MaterializeResult, error) {
	if err := e.requirePopulated(); err != nil {
		return nil, err
	}
	if opts.Logger == nil {
		opts.Logger = e.logger
	}
	return Materialize(ctx, e.tree, basePath, opts)
}
