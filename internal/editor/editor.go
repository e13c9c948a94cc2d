// Package editor holds one folder tree and applies structural edits to it.
// Each edit keeps the text view in sync by re-rendering through core.
package editor

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"dirplan/internal/core"
)

var (
	ErrEmpty          = errors.New("folder structure is empty")
	ErrNotFound       = errors.New("folder not found")
	ErrParentNotFound = errors.New("parent folder not found")
	ErrCannotMove     = errors.New("cannot move folder")
)

// State is either Empty or Populated.
type State int

const (
	StateEmpty State = iota
	StatePopulated
)

func (s State) String() string {
	if s == StatePopulated {
		return "populated"
	}
	return "empty"
}

// Direction picks the neighbour MoveSibling swaps with.
type Direction int

const (
	Up Direction = iota
	Down
)

func (d Direction) String() string {
	if d == Down {
		return "down"
	}
	return "up"
}

// ParseDirection accepts "up" or "down", case-insensitively.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "up":
		return Up, nil
	case "down":
		return Down, nil
	}
	return Up, &core.ValidationError{Field: "direction", Cause: fmt.Sprintf("%q is not up or down", s)}
}

// Editor is not safe for concurrent use. Callers sharing one across
// goroutines guard the whole editor with a single mutex.
type Editor struct {
	tree   core.Tree
	logger *slog.Logger
}

type Option func(*Editor)

func WithLogger(l *slog.Logger) Option {
	return func(e *Editor) {
		if l != nil {
			e.logger = l
		}
	}
}

func New(opts ...Option) *Editor {
	e := &Editor{logger: slog.Default()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Editor) State() State {
	if len(e.tree) == 0 {
		return StateEmpty
	}
	return StatePopulated
}

// Load replaces the tree with the parse of text.
func (e *Editor) Load(text string) State {
	return e.LoadLines(core.SplitLines(text))
}

func (e *Editor) LoadLines(lines []string) State {
	e.tree = core.Parse(lines)
	return e.State()
}

// LoadTree replaces the tree with a copy of tree.
func (e *Editor) LoadTree(tree core.Tree) error {
	if err := core.ValidateTree(tree); err != nil {
		return err
	}
	e.tree = tree.Clone()
	return nil
}

// ImportDir replaces the tree with the directory layout under basePath.
func (e *Editor) ImportDir(basePath string) error {
	tree, err := core.ImportDir(basePath)
	if err != nil {
		return err
	}
	e.tree = tree
	e.logger.Debug("imported directory layout", "path", basePath, "folders", tree.Len())
	return nil
}

// Clear returns the editor to Empty.
func (e *Editor) Clear() {
	e.tree = nil
}

// Text is the buffer view: the rendered tree, or the sentinel when empty.
func (e *Editor) Text() string {
	return core.RenderText(e.tree)
}

func (e *Editor) Lines() []string {
	if len(e.tree) == 0 {
		return []string{core.Sentinel}
	}
	return core.Render(e.tree)
}

// Tree returns a copy of the current tree.
func (e *Editor) Tree() core.Tree {
	return e.tree.Clone()
}

// Names lists the distinct folder names for a picker.
func (e *Editor) Names() []string {
	return core.ExtractNames(e.Lines())
}

func (e *Editor) requirePopulated() error {
	if len(e.tree) == 0 {
		return ErrEmpty
	}
	return nil
}

// AddRoot appends a new top-level folder. It is allowed on an empty editor.
func (e *Editor) AddRoot(name string) error {
	name, err := core.RequireName("name", name)
	if err != nil {
		return err
	}
	e.tree = append(e.tree, core.NewNode(name))
	return nil
}

// InsertChild appends names, in order, as leaf children of the first folder
// named parentName.
func (e *Editor) InsertChild(parentName string, names ...string) error {
	parentName, err := core.RequireName("parent", parentName)
	if err != nil {
		return err
	}
	if len(names) == 0 {
		return &core.ValidationError{Field: "names", Cause: "at least one folder name is required"}
	}
	cleaned := make([]string, len(names))
	for i, n := range names {
		if cleaned[i], err = core.RequireName("name", n); err != nil {
			return err
		}
	}
	if err := e.requirePopulated(); err != nil {
		return err
	}

	parent := e.tree.Find(parentName)
	if parent == nil {
		return fmt.Errorf("%w: %s", ErrParentNotFound, parentName)
	}
	for _, n := range cleaned {
		parent.Children = append(parent.Children, core.NewNode(n))
	}
	return nil
}

// GenerateSubfolders adds count children named base_1 ... base_count under
// the first folder named parentName.
func (e *Editor) GenerateSubfolders(parentName, baseName string, count int) error {
	parentName, err := core.RequireName("parent", parentName)
	if err != nil {
		return err
	}
	baseName, err = core.RequireName("base name", baseName)
	if err != nil {
		return err
	}
	if count <= 0 {
		return &core.ValidationError{Field: "count", Cause: "must be a positive integer"}
	}

	names := make([]string, count)
	for i := range names {
		names[i] = fmt.Sprintf("%s_%d", baseName, i+1)
	}
	return e.InsertChild(parentName, names...)
}

// RenameNode renames every folder named oldName and returns how many were
// renamed. Duplicate names rename together.
func (e *Editor) RenameNode(oldName, newName string) (int, error) {
	oldName, err := core.RequireName("name", oldName)
	if err != nil {
		return 0, err
	}
	newName, err = core.RequireName("new name", newName)
	if err != nil {
		return 0, err
	}
	if err := e.requirePopulated(); err != nil {
		return 0, err
	}

	renamed := 0
	e.tree.Walk(func(n *core.Node, _ int, _ []*core.Node, _ int) bool {
		if n.Name == oldName {
			n.Name = newName
			renamed++
		}
		return true
	})
	if renamed == 0 {
		return 0, fmt.Errorf("%w: %s", ErrNotFound, oldName)
	}
	return renamed, nil
}

// DeleteSubtree removes the first folder named name together with all of
// its descendants.
func (e *Editor) DeleteSubtree(name string) error {
	name, err := core.RequireName("name", name)
	if err != nil {
		return err
	}
	if err := e.requirePopulated(); err != nil {
		return err
	}

	if !removeFirst(&e.tree, name) {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return nil
}

func removeFirst(nodes *core.Tree, name string) bool {
	for i, n := range *nodes {
		if n.Name == name {
			*nodes = append((*nodes)[:i:i], (*nodes)[i+1:]...)
			return true
		}
		children := core.Tree(n.Children)
		if removeFirst(&children, name) {
			n.Children = children
			return true
		}
	}
	return false
}

// MoveSibling swaps a folder with the adjacent line above or below when
// that line sits at the same indentation. Matches are tried in pre-order
// and the first movable one is moved.
//
// Subtrees move with their folder, unlike a plain line swap: with
// [a, b, b1] where b1 is b's child, moving b up gives [b, b1, a], while
// swapping the two lines would give [b, a, b1] and hand b1 to a. The moves
// allowed are the same in both models.
func (e *Editor) MoveSibling(name string, dir Direction) error {
	name, err := core.RequireName("name", name)
	if err != nil {
		return err
	}
	if err := e.requirePopulated(); err != nil {
		return err
	}

	found, moved := false, false
	e.tree.Walk(func(n *core.Node, _ int, siblings []*core.Node, i int) bool {
		if n.Name != name {
			return true
		}
		found = true
		switch dir {
		case Up:
			// The line above is the previous sibling only when that sibling
			// has no children of its own.
			if i > 0 && len(siblings[i-1].Children) == 0 {
				siblings[i-1], siblings[i] = siblings[i], siblings[i-1]
				moved = true
			}
		case Down:
			// The line below is the next sibling only when n is a leaf.
			if i+1 < len(siblings) && len(n.Children) == 0 {
				siblings[i], siblings[i+1] = siblings[i+1], siblings[i]
				moved = true
			}
		}
		return !moved
	})

	if !found {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if !moved {
		return fmt.Errorf("%w %s: %s", ErrCannotMove, dir, name)
	}
	return nil
}
